package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	EventType string `json:"event_type"         validate:"notblank,max=20"`
	Priority  int    `json:"priority,omitempty" validate:"omitempty,min=1,max=5"`
	Status    string `json:"status"             validate:"required,terminal_status"`
	Mail      string `json:"mail,omitempty"     validate:"omitempty,mail_status"`
}

func TestValidator_Struct(t *testing.T) {
	v := New()

	tests := []struct {
		name   string
		req    sampleRequest
		fields map[string]string
	}{
		{
			name: "valid",
			req:  sampleRequest{EventType: "EVIDENCE_SNAPSHOT", Priority: 2, Status: "completed", Mail: "in_transit"},
		},
		{
			name:   "blank event type",
			req:    sampleRequest{EventType: "   ", Status: "FAILED"},
			fields: map[string]string{"event_type": "event_type is required"},
		},
		{
			name:   "priority out of range",
			req:    sampleRequest{EventType: "X", Priority: 7, Status: "FAILED"},
			fields: map[string]string{"priority": "priority must be at most 5"},
		},
		{
			name:   "non terminal status",
			req:    sampleRequest{EventType: "X", Status: "CLAIMED"},
			fields: map[string]string{"status": "status must be COMPLETED or FAILED"},
		},
		{
			name: "several fields",
			req:  sampleRequest{Status: "", Mail: "LOST"},
			fields: map[string]string{
				"event_type": "event_type is required",
				"status":     "status is required",
				"mail":       "mail must be one of SUBMITTED, IN_TRANSIT, DELIVERED, RETURNED",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if tt.fields == nil {
				require.NoError(t, err)
				return
			}
			var fe *FieldErrors
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.fields, fe.Fields)
			assert.NotEmpty(t, fe.First())
			assert.NotEmpty(t, fe.Error())
		})
	}
}

func TestValidator_FieldOrder(t *testing.T) {
	err := New().Struct(sampleRequest{Status: "nope"})
	var fe *FieldErrors
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "event_type", fe.First())
	assert.Equal(t, "event_type is required; status must be COMPLETED or FAILED", fe.Error())
}

func TestValidator_Register(t *testing.T) {
	type caseRef struct {
		CaseID string `json:"case_id" validate:"case_prefix"`
	}
	v := New(Rule{Rule: registerFn("case_prefix", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) > 5 && fl.Field().String()[:5] == "CASE-"
	})})

	require.NoError(t, v.Struct(caseRef{CaseID: "CASE-1"}))
	err := v.Struct(caseRef{CaseID: "X-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case_id failed case_prefix validation")
}
