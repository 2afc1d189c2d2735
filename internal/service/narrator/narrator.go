// Package narrator publishes persona narrations: every narration is logged, and fanned out to the
// notification sinks whose priority threshold it meets.
package narrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/target/case-dispatch/internal/domain/model"
	"github.com/target/case-dispatch/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
	// MaxPriority limits the sink to narrations at least this urgent (1 = only priority 1).
	// Zero delivers everything.
	MaxPriority int
}

// Options configures the narrator service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service dispatches narrations to all registered sinks.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
	now    func() time.Time
}

// NewService constructs a narrator.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		if entry.Name == "" {
			entry.Name = "sink"
		}
		sinks = append(sinks, entry)
	}

	return &Service{
		logger: logger.With("component", "narrator"),
		sinks:  sinks,
		now:    now,
	}
}

// Narrate logs n and delivers it to every eligible sink, waiting for all deliveries.
// Delivery failures are logged and never returned.
func (s *Service) Narrate(ctx context.Context, n model.Narration) {
	if n.Message == "" {
		return
	}

	s.logger.InfoContext(ctx, n.Message,
		"persona", n.Persona,
		"case_id", n.CaseID,
		"priority", n.Priority,
		"source", n.Source,
	)

	announcement := notify.Announcement{
		Persona:    n.Persona,
		Message:    n.Message,
		CaseID:     n.CaseID,
		Source:     n.Source,
		Priority:   n.Priority,
		Severity:   notify.SeverityForPriority(n.Priority),
		OccurredAt: s.now(),
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		if !eligible(entry, n.Priority) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.Announce(ctx, announcement); err != nil {
				s.logger.ErrorContext(ctx, "narration delivery failed",
					"sink", entry.Name,
					"persona", n.Persona,
					"case_id", n.CaseID,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

func eligible(entry SinkRegistration, priority int) bool {
	if entry.MaxPriority <= 0 {
		return true
	}
	return priority > 0 && priority <= entry.MaxPriority
}

// Enabled reports whether the narrator has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}
