// Package notify defines the narration channel: persona-attributed announcements delivered to
// chat and paging sinks.
package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Announcement is the canonical narration payload sent to sinks.
type Announcement struct {
	Persona    string
	Message    string
	CaseID     string
	Source     string
	Priority   int
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// SeverityForPriority maps a job priority to a sink severity: 1 is critical, 2 a warning,
// everything else informational.
func SeverityForPriority(priority int) string {
	switch priority {
	case 1:
		return SeverityCritical
	case 2:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Sink describes a destination capable of consuming announcements.
type Sink interface {
	Announce(ctx context.Context, a Announcement) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, a Announcement) error

// Announce implements the Sink interface.
func (f SinkFunc) Announce(ctx context.Context, a Announcement) error {
	if f == nil {
		return nil
	}
	return f(ctx, a)
}
