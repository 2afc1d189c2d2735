// Package model defines the core data types shared by the case dispatch server, the timeline
// engine and the worker client.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the current status of a job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobStatus string

const (
	// JobStatusPending indicates a job is waiting to be claimed.
	JobStatusPending JobStatus = "PENDING"
	// JobStatusClaimed indicates a worker holds the job.
	JobStatusClaimed JobStatus = "CLAIMED"
	// JobStatusCompleted indicates the handler finished successfully.
	JobStatusCompleted JobStatus = "COMPLETED"
	// JobStatusFailed indicates the handler reported a failure.
	JobStatusFailed JobStatus = "FAILED"
)

const (
	// PriorityHighest is the most urgent priority (enforcement actions).
	PriorityHighest = 1
	// PriorityDefault is used when a producer does not supply a priority.
	PriorityDefault = 3
	// PriorityLowest is the least urgent priority.
	PriorityLowest = 5
)

const (
	// MaxPayloadBytes caps the encoded payload of a new job.
	MaxPayloadBytes = 128 << 10
	// MaxDocumentBytes caps a JSON document exchanged between the Dispatch Server and a worker.
	// Re-encoding a payload can escape HTML-sensitive characters six-fold, so it must stay at
	// least six times MaxPayloadBytes plus room for the envelope.
	MaxDocumentBytes = 1 << 20
)

var (
	// ErrNoJobsAvailable is returned when no pending job matches a claim.
	ErrNoJobsAvailable = errors.New("no jobs available")
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidJobStatus is returned for unknown or non-terminal completion statuses.
	ErrInvalidJobStatus = errors.New("invalid job status")
	// ErrInvalidPriority is returned when a priority is outside 1..5.
	ErrInvalidPriority = errors.New("priority must be between 1 and 5")
	// ErrPayloadTooLarge is returned when a job payload exceeds MaxPayloadBytes.
	ErrPayloadTooLarge = fmt.Errorf("payload exceeds %d bytes", MaxPayloadBytes)
)

// ParseJobStatus parses a status case-insensitively.
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidJobStatus, s)
	}
	return st, nil
}

// UnmarshalText implements encoding.TextUnmarshaler so statuses decode case-insensitively.
func (s *JobStatus) UnmarshalText(text []byte) error {
	st, err := ParseJobStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Valid returns true if the JobStatus is known.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusClaimed || s == JobStatusCompleted ||
		s == JobStatusFailed
}

// Terminal reports whether the status ends the job lifecycle.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is a unit of dispatched work.
type Job struct {
	ID          int64           `json:"id"                     db:"id"`
	EventType   string          `json:"event_type"             db:"event_type"`
	Payload     json.RawMessage `json:"payload"                db:"payload"`
	Status      JobStatus       `json:"status"                 db:"status"`
	Priority    int             `json:"priority"               db:"priority"`
	CreatedAt   time.Time       `json:"created_at"             db:"created_at"`
	ClaimedAt   *time.Time      `json:"claimed_at,omitempty"   db:"claimed_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	WorkerID    *string         `json:"worker_id,omitempty"    db:"worker_id"`
	Result      json.RawMessage `json:"result,omitempty"       db:"result"`
	Retries     int             `json:"retries"                db:"retries"`
}

// Assignment is the view of a claimed job handed to a worker.
type Assignment struct {
	ID        int64           `json:"id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority"`
	CreatedAt time.Time       `json:"created_at"`
}

// Assignment returns the worker-facing view of the job.
func (j *Job) Assignment() *Assignment {
	return &Assignment{
		ID:        j.ID,
		EventType: j.EventType,
		Payload:   j.Payload,
		Priority:  j.Priority,
		CreatedAt: j.CreatedAt,
	}
}

// PayloadString returns a string field from the job payload, or "" if absent.
func (j *Job) PayloadString(key string) string {
	return lookupString(j.Payload, key)
}

// CreateJobRequest represents a request to insert a new PENDING job.
type CreateJobRequest struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority,omitempty"`
}

// Normalize trims the event type, fills the default priority and an empty object payload.
func (r *CreateJobRequest) Normalize() {
	r.EventType = strings.TrimSpace(r.EventType)
	if r.Priority == 0 {
		r.Priority = PriorityDefault
	}
	if len(r.Payload) == 0 || string(r.Payload) == "null" {
		r.Payload = json.RawMessage(`{}`)
	}
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if strings.TrimSpace(r.EventType) == "" {
		return errors.New("event type is required")
	}
	if r.Priority < PriorityHighest || r.Priority > PriorityLowest {
		return ErrInvalidPriority
	}
	if len(r.Payload) > MaxPayloadBytes {
		return ErrPayloadTooLarge
	}
	if len(r.Payload) > 0 && !json.Valid(r.Payload) {
		return errors.New("payload must be valid JSON")
	}
	return nil
}

// ClaimJobRequest selects the next job for a worker.
type ClaimJobRequest struct {
	WorkerID string
	// Types restricts the claim to these event types; empty means any type.
	Types []string
}

// Validate validates the ClaimJobRequest fields.
func (r *ClaimJobRequest) Validate() error {
	if strings.TrimSpace(r.WorkerID) == "" {
		return errors.New("worker id is required")
	}
	return nil
}

// CompleteJobRequest records a terminal outcome for a job.
type CompleteJobRequest struct {
	JobID    int64           `json:"job_id"`
	WorkerID string          `json:"worker_id"`
	Status   JobStatus       `json:"status"`
	Result   json.RawMessage `json:"result,omitempty"`
}

// Validate validates the CompleteJobRequest fields.
func (r *CompleteJobRequest) Validate() error {
	if r.JobID <= 0 {
		return errors.New("job id must be positive")
	}
	if !r.Status.Terminal() {
		return fmt.Errorf("%w: status must be COMPLETED or FAILED", ErrInvalidJobStatus)
	}
	if len(r.Result) > 0 && !json.Valid(r.Result) {
		return errors.New("result must be valid JSON")
	}
	return nil
}

// JobCounts holds job totals by status.
type JobCounts struct {
	Pending   int `json:"pending"`
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// DispatchStats is the operational summary of the job store and timeline log.
type DispatchStats struct {
	Jobs           JobCounts `json:"jobs"`
	TimelineEvents int       `json:"timeline_events"`
	ActiveCases    int       `json:"active_cases"`
}

func lookupString(raw json.RawMessage, key string) string {
	if len(raw) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// ResultString returns a string field from the job result, or "" if absent.
func (j *Job) ResultString(key string) string {
	return lookupString(j.Result, key)
}
