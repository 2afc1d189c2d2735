package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/case-dispatch/internal/core"
	domainjob "github.com/target/case-dispatch/internal/domain/job"
	"github.com/target/case-dispatch/internal/domain/model"
	apperrors "github.com/target/case-dispatch/internal/errors"
	"github.com/target/case-dispatch/internal/observability/metrics"
	"github.com/target/case-dispatch/internal/observability/statsd"
)

// Ack is the acknowledgment kind returned to an event producer.
type Ack string

const (
	AckQueued   Ack = "queued"
	AckSpoken   Ack = "spoken"
	AckRecorded Ack = "recorded"
)

// AckFor returns the acknowledgment for an ingested event type. Every kind queues a job the same
// way; the kind only reflects which side channel handles the event.
func AckFor(eventType string) Ack {
	switch eventType {
	case model.EventWeeklyBriefingReady:
		return AckSpoken
	case model.EventCertifiedMailSubmitted:
		return AckRecorded
	default:
		return AckQueued
	}
}

// IngestResult is the outcome of Ingest.
type IngestResult struct {
	Job *model.Job
	Ack Ack
}

// EventBusOptions groups dependencies for EventBus.
type EventBusOptions struct {
	Repo        core.JobRepository   // Required
	TxRepo      core.JobRepositoryTx // Optional: required for EmitInTx
	Notifier    domainjob.Notifier   // Optional: woken after every publish
	Logger      *slog.Logger
	Metrics     statsd.Sink
	Subscribers []EmitSubscriber
}

// EventBus is the single ingress for new work. It translates events into PENDING jobs and holds
// no state of its own; it never deduplicates.
type EventBus struct {
	repo        core.JobRepository
	txRepo      core.JobRepositoryTx
	notifier    domainjob.Notifier
	logger      *slog.Logger
	metrics     statsd.Sink
	subscribers []EmitSubscriber
}

// NewEventBus constructs an EventBus.
func NewEventBus(opts EventBusOptions) (*EventBus, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	txRepo := opts.TxRepo
	if txRepo == nil {
		if tr, ok := opts.Repo.(core.JobRepositoryTx); ok {
			txRepo = tr
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	subs := make([]EmitSubscriber, 0, len(opts.Subscribers))
	for _, s := range opts.Subscribers {
		if s != nil {
			subs = append(subs, s)
		}
	}

	return &EventBus{
		repo:        opts.Repo,
		txRepo:      txRepo,
		notifier:    opts.Notifier,
		logger:      logger.With("component", "event_bus"),
		metrics:     opts.Metrics,
		subscribers: subs,
	}, nil
}

// MustNewEventBus constructs an EventBus and panics on error.
func MustNewEventBus(opts EventBusOptions) *EventBus {
	bus, err := NewEventBus(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create EventBus: %v", err))
	}
	return bus
}

// Emit queues a job produced in-process.
func (b *EventBus) Emit(ctx context.Context, req model.CreateJobRequest) (*model.Job, error) {
	return b.emit(ctx, SourceInternal, req)
}

// Ingest queues an event received from an external producer and returns its acknowledgment.
func (b *EventBus) Ingest(ctx context.Context, req model.CreateJobRequest) (*IngestResult, error) {
	job, err := b.emit(ctx, SourceIngest, req)
	if err != nil {
		return nil, err
	}
	return &IngestResult{Job: job, Ack: AckFor(job.EventType)}, nil
}

func (b *EventBus) emit(ctx context.Context, source string, req model.CreateJobRequest) (*model.Job, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}

	start := time.Now()
	job, err := b.repo.Create(ctx, &req)
	if err != nil {
		metrics.EmitJobLifecycle(b.metrics, metrics.JobMetric{
			EventType:  req.EventType,
			Transition: metrics.TransitionEmit,
			Result:     metrics.ResultError,
			Err:        err,
		})
		return nil, fmt.Errorf("emit %s: %w", req.EventType, err)
	}
	metrics.EmitJobLifecycle(b.metrics, metrics.JobMetric{
		EventType:  job.EventType,
		Transition: metrics.TransitionEmit,
		Result:     metrics.ResultSuccess,
		Duration:   time.Since(start),
	})

	b.Publish(ctx, source, job)
	return job, nil
}

// EmitInTx queues a job inside tx. The caller must Publish the job after the transaction commits.
func (b *EventBus) EmitInTx(ctx context.Context, tx *sql.Tx, req *model.CreateJobRequest) (*model.Job, error) {
	if b.txRepo == nil {
		return nil, errors.New("transactional emit requires a JobRepositoryTx")
	}
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}
	job, err := b.txRepo.CreateInTx(ctx, tx, req)
	if err != nil {
		return nil, fmt.Errorf("emit %s: %w", req.EventType, err)
	}
	return job, nil
}

// Publish wakes long-polling claimers and notifies emit subscribers about jobs already stored.
func (b *EventBus) Publish(ctx context.Context, source string, jobs ...*model.Job) {
	if len(jobs) == 0 {
		return
	}
	if b.notifier != nil {
		b.notifier.Notify()
	}

	for _, job := range jobs {
		if job == nil {
			continue
		}
		b.logger.DebugContext(ctx, "job queued",
			"id", job.ID,
			"event_type", job.EventType,
			"priority", job.Priority,
			"source", source,
		)
		for _, sub := range b.subscribers {
			if err := sub.JobEmitted(ctx, Emission{Job: job, Source: source}); err != nil {
				b.logger.WarnContext(ctx, "emit subscriber failed",
					"id", job.ID,
					"event_type", job.EventType,
					"error", err,
				)
			}
		}
	}
}

// Pending lists PENDING jobs in claim order without changing them.
func (b *EventBus) Pending(ctx context.Context, eventType string, limit int) ([]*model.Job, error) {
	jobs, err := b.repo.Pending(ctx, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	return jobs, nil
}
