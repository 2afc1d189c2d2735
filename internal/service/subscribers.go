package service

import (
	"context"
	"fmt"

	"github.com/target/case-dispatch/internal/domain/model"
)

// Emission sources.
const (
	// SourceIngest marks jobs queued by external producers through the event endpoint.
	SourceIngest = "ingest"
	// SourceTimeline marks jobs queued by an escalation.
	SourceTimeline = "timeline"
	// SourceNotice marks the watch job queued when a notice is recorded.
	SourceNotice = "notice"
	// SourceInternal marks jobs queued in-process (admin tooling, tests).
	SourceInternal = "internal"
)

// Emission is a job that was just queued, together with the producer that queued it.
type Emission struct {
	Job    *model.Job
	Source string
}

// CompletionSubscriber is notified after a completion has been stored.
type CompletionSubscriber interface {
	JobCompleted(ctx context.Context, job *model.Job) error
}

// CompletionSubscriberFunc adapts a function to CompletionSubscriber.
type CompletionSubscriberFunc func(ctx context.Context, job *model.Job) error

// JobCompleted implements CompletionSubscriber.
func (f CompletionSubscriberFunc) JobCompleted(ctx context.Context, job *model.Job) error {
	return f(ctx, job)
}

// EmitSubscriber is notified after a job has been queued.
type EmitSubscriber interface {
	JobEmitted(ctx context.Context, e Emission) error
}

// EmitSubscriberFunc adapts a function to EmitSubscriber.
type EmitSubscriberFunc func(ctx context.Context, e Emission) error

// JobEmitted implements EmitSubscriber.
func (f EmitSubscriberFunc) JobEmitted(ctx context.Context, e Emission) error {
	return f(ctx, e)
}

// Narrator publishes persona narrations. *narrator.Service implements it.
type Narrator interface {
	Narrate(ctx context.Context, n model.Narration)
}

// NarrationSubscriber turns completions and ingested events into narrations.
type NarrationSubscriber struct {
	narrator Narrator
}

// NewNarrationSubscriber returns a subscriber publishing through n.
func NewNarrationSubscriber(n Narrator) *NarrationSubscriber {
	return &NarrationSubscriber{narrator: n}
}

// JobCompleted narrates the outcome of a job.
func (s *NarrationSubscriber) JobCompleted(ctx context.Context, job *model.Job) error {
	if s.narrator == nil || job == nil {
		return nil
	}
	worker := "unknown worker"
	if job.WorkerID != nil && *job.WorkerID != "" {
		worker = *job.WorkerID
	}

	n := model.Narration{
		Priority: job.Priority,
		CaseID:   job.PayloadString("case_id"),
		Source:   "completion",
	}
	switch job.Status {
	case model.JobStatusCompleted:
		n.Persona = model.PersonaVaultGuardian
		n.Message = fmt.Sprintf("Job %d completed by %s.", job.ID, worker)
	case model.JobStatusFailed:
		n.Persona = model.PersonaSentinel
		n.Message = fmt.Sprintf("Job %d failed on %s.", job.ID, worker)
	default:
		return nil
	}
	s.narrator.Narrate(ctx, n)
	return nil
}

// JobEmitted narrates events ingested from external producers. Jobs queued by the timeline or
// by notices are narrated by their producer.
func (s *NarrationSubscriber) JobEmitted(ctx context.Context, e Emission) error {
	if s.narrator == nil || e.Job == nil || e.Source != SourceIngest {
		return nil
	}
	job := e.Job
	caseID := job.PayloadString("case_id")

	switch job.EventType {
	case model.EventWeeklyBriefingReady:
		text := job.PayloadString("text")
		if text == "" {
			return nil
		}
		s.narrator.Narrate(ctx, model.Narration{
			Persona:  model.PersonaSintraPrime,
			Message:  text,
			Priority: job.Priority,
			Source:   SourceIngest,
		})
	case model.EventCertifiedMailSubmitted:
		s.narrator.Narrate(ctx, model.Narration{
			Persona: model.PersonaVaultGuardian,
			Message: fmt.Sprintf("Certified mail submitted for case %s. Provider %s. Reference %s.",
				caseID, job.PayloadString("provider"), job.PayloadString("provider_job_id")),
			Priority: job.Priority,
			CaseID:   caseID,
			Source:   SourceIngest,
		})
	default:
		if job.Priority > 2 {
			return nil
		}
		s.narrator.Narrate(ctx, model.Narration{
			Persona:  model.PersonaSentinel,
			Message:  fmt.Sprintf("External event received: %s.", job.EventType),
			Priority: job.Priority,
			CaseID:   caseID,
			Source:   SourceIngest,
		})
	}
	return nil
}

var (
	_ CompletionSubscriber = (*NarrationSubscriber)(nil)
	_ EmitSubscriber       = (*NarrationSubscriber)(nil)
)
