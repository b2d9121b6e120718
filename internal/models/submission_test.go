package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSubmission() Submission {
	return Submission{
		ClientName:      "Ahmed Ali",
		ClientPhone:     "01001234567",
		ClientEmail:     "a@b.com",
		ClientAddress:   "Cairo",
		MaintenanceType: "repair",
		Priority:        "high",
		Category:        "plumbing",
		Description:     "Leak under sink",
		PreferredDate:   "2025-06-01",
		PreferredTime:   "morning",
		ContactPerson:   "Ahmed Ali",
		ContactPhone:    "01001234567",
	}
}

func fields(errs []FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Field)
	}
	return out
}

func TestSubmissionValidate_Valid(t *testing.T) {
	assert.Empty(t, validSubmission().Validate())
}

func TestSubmissionSteps_WhitespaceIsMissing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Submission)
		check  func(Submission) []FieldError
		field  string
	}{
		{"name", func(s *Submission) { s.ClientName = "   " }, Submission.ValidateClientInfo, "client_name"},
		{"phone", func(s *Submission) { s.ClientPhone = "" }, Submission.ValidateClientInfo, "client_phone"},
		{"email", func(s *Submission) { s.ClientEmail = "\t" }, Submission.ValidateClientInfo, "client_email"},
		{"address", func(s *Submission) { s.ClientAddress = "" }, Submission.ValidateClientInfo, "client_address"},
		{"type", func(s *Submission) { s.MaintenanceType = "" }, Submission.ValidateRequestDetails, "maintenance_type"},
		{"priority", func(s *Submission) { s.Priority = " " }, Submission.ValidateRequestDetails, "priority"},
		{"category", func(s *Submission) { s.Category = "" }, Submission.ValidateRequestDetails, "category"},
		{"description", func(s *Submission) { s.Description = "  \n" }, Submission.ValidateRequestDetails, "description"},
		{"date", func(s *Submission) { s.PreferredDate = "" }, Submission.ValidateScheduling, "preferred_date"},
		{"time", func(s *Submission) { s.PreferredTime = "" }, Submission.ValidateScheduling, "preferred_time"},
		{"contact person", func(s *Submission) { s.ContactPerson = " " }, Submission.ValidateAccessInfo, "contact_person"},
		{"contact phone", func(s *Submission) { s.ContactPhone = "" }, Submission.ValidateAccessInfo, "contact_phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSubmission()
			tt.mutate(&s)
			errs := tt.check(s)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Equal(t, RuleRequired, errs[0].Rule)
			assert.Contains(t, fields(s.Validate()), tt.field)
		})
	}
}

func TestSubmissionValidate_UnknownEnum(t *testing.T) {
	s := validSubmission()
	s.Category = "roofing"
	errs := s.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, FieldError{Field: "category", Rule: RuleInvalid}, errs[0])
}

func TestSubmissionValidate_AggregatesEveryStep(t *testing.T) {
	errs := Submission{}.Validate()
	assert.Len(t, errs, 12)
}

func TestToRequest_TrimsAndDefaultsPending(t *testing.T) {
	s := validSubmission()
	s.ClientName = "  Ahmed Ali "
	req := s.ToRequest()
	assert.Equal(t, "Ahmed Ali", req.ClientName)
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, CategoryPlumbing, req.Category)
	assert.Empty(t, req.ReferenceNumber)
}

func TestIsImageContentType(t *testing.T) {
	assert.True(t, IsImageContentType("image/png"))
	assert.True(t, IsImageContentType("IMAGE/JPEG"))
	assert.False(t, IsImageContentType("application/pdf"))
	assert.False(t, IsImageContentType(""))
}

func TestCurrentStatus(t *testing.T) {
	assert.Equal(t, StatusPending, (&MaintenanceRequest{}).CurrentStatus())

	// History not loaded: the status column is the answer.
	req := &MaintenanceRequest{Status: StatusCompleted}
	assert.Equal(t, StatusCompleted, req.CurrentStatus())
	req.History = []StatusHistoryEntry{
		{OldStatus: StatusPending, NewStatus: StatusConfirmed},
		{OldStatus: StatusConfirmed, NewStatus: StatusInProgress},
	}
	assert.Equal(t, StatusInProgress, req.CurrentStatus())
}

func TestRequestPatch_AbsentNullAndValue(t *testing.T) {
	var p RequestPatch
	require.NoError(t, json.Unmarshal([]byte(`{"estimated_cost": null, "actual_cost": 120.5}`), &p))

	assert.False(t, p.AssignedTechnician.Set)
	assert.True(t, p.EstimatedCost.Set)
	assert.Nil(t, p.EstimatedCost.Value)
	require.True(t, p.ActualCost.Set)
	assert.Equal(t, 120.5, *p.ActualCost.Value)
	assert.Nil(t, p.Status)
}

func TestRequestPatch_MarshalOnlySetFields(t *testing.T) {
	status := StatusInProgress
	data, err := json.Marshal(RequestPatch{Status: &status})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"in_progress"}`, string(data))

	data, err = json.Marshal(RequestPatch{EstimatedCost: Null[float64](), ActualCost: Some(0.0)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"estimated_cost":null,"actual_cost":0}`, string(data))
}
