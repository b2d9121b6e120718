package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a request, history or image lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Image limits shared by the intake wizard and the upload endpoint.
const (
	MaxImages     = 5
	MaxImageBytes = 5 << 20
)

// Submission is the payload the intake wizard composes and POSTs.
type Submission struct {
	ClientName      string `json:"client_name"`
	ClientPhone     string `json:"client_phone"`
	ClientEmail     string `json:"client_email"`
	ClientAddress   string `json:"client_address"`
	MaintenanceType string `json:"maintenance_type"`
	Priority        string `json:"priority"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	PreferredDate   string `json:"preferred_date"`
	PreferredTime   string `json:"preferred_time"`
	AccessNotes     string `json:"access_notes"`
	ContactPerson   string `json:"contact_person"`
	ContactPhone    string `json:"contact_phone"`
}

// CreateResult is what a successful create returns to the caller.
type CreateResult struct {
	ReferenceNumber string `json:"referenceNumber"`
	RequestID       string `json:"requestId"`
}

// Field error rules.
const (
	RuleRequired = "required"
	RuleInvalid  = "invalid"
)

// FieldError names one field that failed validation and the rule it broke.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

func (e FieldError) Error() string {
	if e.Rule == RuleInvalid {
		return fmt.Sprintf("%s is invalid", e.Field)
	}
	return fmt.Sprintf("%s is required", e.Field)
}

// ValidationError aggregates every failing field of a submission or patch.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func required(errs []FieldError, field, value string) []FieldError {
	if strings.TrimSpace(value) == "" {
		return append(errs, FieldError{Field: field, Rule: RuleRequired})
	}
	return errs
}

// enum appends a required error when value is blank and an invalid error when
// it is not one of the accepted values.
func enum(errs []FieldError, field, value string, valid func(string) bool) []FieldError {
	v := strings.TrimSpace(value)
	if v == "" {
		return append(errs, FieldError{Field: field, Rule: RuleRequired})
	}
	if !valid(v) {
		return append(errs, FieldError{Field: field, Rule: RuleInvalid})
	}
	return errs
}

// ValidateClientInfo checks step 1 of the intake wizard.
func (s Submission) ValidateClientInfo() []FieldError {
	var errs []FieldError
	errs = required(errs, "client_name", s.ClientName)
	errs = required(errs, "client_phone", s.ClientPhone)
	errs = required(errs, "client_email", s.ClientEmail)
	errs = required(errs, "client_address", s.ClientAddress)
	return errs
}

// ValidateRequestDetails checks step 2.
func (s Submission) ValidateRequestDetails() []FieldError {
	var errs []FieldError
	errs = enum(errs, "maintenance_type", s.MaintenanceType, func(v string) bool { return MaintenanceType(v).Valid() })
	errs = enum(errs, "priority", s.Priority, func(v string) bool { return Priority(v).Valid() })
	errs = enum(errs, "category", s.Category, func(v string) bool { return Category(v).Valid() })
	errs = required(errs, "description", s.Description)
	return errs
}

// ValidateScheduling checks step 3.
func (s Submission) ValidateScheduling() []FieldError {
	var errs []FieldError
	errs = required(errs, "preferred_date", s.PreferredDate)
	errs = enum(errs, "preferred_time", s.PreferredTime, func(v string) bool { return TimeSlot(v).Valid() })
	return errs
}

// ValidateAccessInfo checks step 4.
func (s Submission) ValidateAccessInfo() []FieldError {
	var errs []FieldError
	errs = required(errs, "contact_person", s.ContactPerson)
	errs = required(errs, "contact_phone", s.ContactPhone)
	return errs
}

// Validate runs all four step checks and aggregates their errors.
func (s Submission) Validate() []FieldError {
	var errs []FieldError
	errs = append(errs, s.ValidateClientInfo()...)
	errs = append(errs, s.ValidateRequestDetails()...)
	errs = append(errs, s.ValidateScheduling()...)
	errs = append(errs, s.ValidateAccessInfo()...)
	return errs
}

// ToRequest builds an unsaved request from a validated submission.
func (s Submission) ToRequest() *MaintenanceRequest {
	return &MaintenanceRequest{
		ClientName:      strings.TrimSpace(s.ClientName),
		ClientPhone:     strings.TrimSpace(s.ClientPhone),
		ClientEmail:     strings.TrimSpace(s.ClientEmail),
		ClientAddress:   strings.TrimSpace(s.ClientAddress),
		MaintenanceType: MaintenanceType(strings.TrimSpace(s.MaintenanceType)),
		Priority:        Priority(strings.TrimSpace(s.Priority)),
		Category:        Category(strings.TrimSpace(s.Category)),
		Description:     strings.TrimSpace(s.Description),
		PreferredDate:   strings.TrimSpace(s.PreferredDate),
		PreferredTime:   TimeSlot(strings.TrimSpace(s.PreferredTime)),
		AccessNotes:     s.AccessNotes,
		ContactPerson:   strings.TrimSpace(s.ContactPerson),
		ContactPhone:    strings.TrimSpace(s.ContactPhone),
		Status:          StatusPending,
	}
}

// IsImageContentType reports whether a declared or sniffed MIME type is an image.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}
