// Package testutil provides testing utilities and helpers for the case dispatch system.
package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/target/case-dispatch/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			EventType: model.EventFollowupNoticeDraft,
			Priority:  model.PriorityDefault,
			Payload:   json.RawMessage(`{"case_id":"CASE-TEST"}`),
		},
	}
}

// WithEventType sets the event type.
func (b *JobRequestBuilder) WithEventType(eventType string) *JobRequestBuilder {
	b.req.EventType = eventType
	return b
}

// WithPriority sets the job priority.
func (b *JobRequestBuilder) WithPriority(priority int) *JobRequestBuilder {
	b.req.Priority = priority
	return b
}

// WithPayloadString sets the job payload from a string.
func (b *JobRequestBuilder) WithPayloadString(payload string) *JobRequestBuilder {
	b.req.Payload = json.RawMessage(payload)
	return b
}

// ForCase sets the payload to {"case_id": caseID}.
func (b *JobRequestBuilder) ForCase(caseID string) *JobRequestBuilder {
	b.req.Payload = json.RawMessage(fmt.Sprintf(`{"case_id":%q}`, caseID))
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	r := *b.req
	return &r
}
