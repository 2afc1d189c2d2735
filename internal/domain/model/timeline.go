package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Timeline event names written by the timeline engine.
const (
	TimelineNoticeSent = EventNoticeSent

	MarkerEscalation24H = "ESCALATION_24H_EMITTED"
	MarkerEscalation48H = "ESCALATION_48H_EMITTED"
	MarkerEscalation72H = "ESCALATION_72H_EMITTED"
)

// EscalationMarkers lists the marker events guarded by the unique marker index.
func EscalationMarkers() []string {
	return []string{MarkerEscalation24H, MarkerEscalation48H, MarkerEscalation72H}
}

// TimelineEntry is an immutable fact about a case.
type TimelineEntry struct {
	ID        int64           `json:"id"                 db:"id"`
	CaseID    string          `json:"case_id"            db:"case_id"`
	Event     string          `json:"event"              db:"event"`
	Timestamp time.Time       `json:"timestamp"          db:"occurred_at"`
	Metadata  json.RawMessage `json:"metadata,omitempty" db:"metadata"`
}

// AppendTimelineRequest appends an entry to a case timeline.
type AppendTimelineRequest struct {
	CaseID   string
	Event    string
	At       time.Time
	Metadata json.RawMessage
}

// Validate validates the AppendTimelineRequest fields.
func (r *AppendTimelineRequest) Validate() error {
	if strings.TrimSpace(r.CaseID) == "" {
		return errors.New("case id is required")
	}
	if strings.TrimSpace(r.Event) == "" {
		return errors.New("event is required")
	}
	if r.At.IsZero() {
		return errors.New("timestamp is required")
	}
	if len(r.Metadata) > 0 && !json.Valid(r.Metadata) {
		return errors.New("metadata must be valid JSON")
	}
	return nil
}

// NoticeClock is the escalation clock of one case: its most recent NOTICE_SENT.
type NoticeClock struct {
	CaseID string
	SentAt time.Time
}

// RecordNoticeRequest starts or restarts the escalation clock of a case.
type RecordNoticeRequest struct {
	CaseID    string          `json:"case_id"             validate:"required,max=200"`
	Recipient string          `json:"recipient,omitempty" validate:"max=500"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// Validate validates the RecordNoticeRequest fields.
func (r *RecordNoticeRequest) Validate() error {
	if strings.TrimSpace(r.CaseID) == "" {
		return errors.New("case id is required")
	}
	if len(r.Metadata) > 0 && !json.Valid(r.Metadata) {
		return errors.New("metadata must be valid JSON")
	}
	return nil
}

// FireEscalationRequest atomically records a marker and queues the escalation jobs.
type FireEscalationRequest struct {
	CaseID   string
	Marker   string
	At       time.Time
	Jobs     []CreateJobRequest
	Metadata json.RawMessage
}

// TickResult summarizes one sweep.
type TickResult struct {
	CasesEvaluated int      `json:"cases_evaluated"`
	Fired          int      `json:"fired"`
	JobsQueued     int      `json:"jobs_queued"`
	Errors         int      `json:"errors"`
	FiredMarkers   []string `json:"fired_markers,omitempty"`
}
