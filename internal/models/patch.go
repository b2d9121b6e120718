package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Optional distinguishes an absent JSON field from an explicit null.
// Set is true whenever the field appeared in the payload; Value is nil for null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns an Optional carrying v.
func Some[T any](v T) Optional[T] { return Optional[T]{Set: true, Value: &v} }

// Null returns an Optional that clears the field.
func Null[T any]() Optional[T] { return Optional[T]{Set: true} }

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

// IsZero lets encoders with omitzero support skip unset fields.
func (o Optional[T]) IsZero() bool { return !o.Set }

// RequestPatch is the PATCH body for admin updates. Fields left unset are not touched.
type RequestPatch struct {
	Status             *RequestStatus    `json:"status,omitempty"`
	AssignedTechnician Optional[string]  `json:"assigned_technician"`
	EstimatedCost      Optional[float64] `json:"estimated_cost"`
	ActualCost         Optional[float64] `json:"actual_cost"`
	Notes              *string           `json:"notes,omitempty"`
}

// MarshalJSON emits only the fields that are set so that a status-only patch
// never clears assignment or cost fields.
func (p RequestPatch) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	if p.Status != nil {
		out["status"] = *p.Status
	}
	if p.AssignedTechnician.Set {
		out["assigned_technician"] = p.AssignedTechnician
	}
	if p.EstimatedCost.Set {
		out["estimated_cost"] = p.EstimatedCost
	}
	if p.ActualCost.Set {
		out["actual_cost"] = p.ActualCost
	}
	if p.Notes != nil {
		out["notes"] = *p.Notes
	}
	return json.Marshal(out)
}

// Event routing keys published after state changes.
const (
	EventRequestCreated = "maintenance.created"
	EventStatusChanged  = "maintenance.status_changed"
)

// RequestEvent is the message body published for notification consumers.
type RequestEvent struct {
	Event      string             `json:"event"`
	Request    MaintenanceRequest `json:"request"`
	OldStatus  RequestStatus      `json:"oldStatus,omitempty"`
	ChangedBy  string             `json:"changedBy,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}
