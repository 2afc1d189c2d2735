package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/target/case-dispatch/internal/core"
	domainjob "github.com/target/case-dispatch/internal/domain/job"
	"github.com/target/case-dispatch/internal/domain/model"
	apperrors "github.com/target/case-dispatch/internal/errors"
	"github.com/target/case-dispatch/internal/observability/metrics"
	"github.com/target/case-dispatch/internal/observability/statsd"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo            core.JobRepository        // Required: job repository
	Logger          *slog.Logger              // Optional: structured logger
	Notifier        domainjob.Notifier        // Optional: shared job availability notifier
	NotifierOptions domainjob.NotifierOptions // Optional: configure the default notifier
	// MaxWait caps long-polling claims. Zero disables long-polling.
	MaxWait     time.Duration
	Metrics     statsd.Sink            // Optional
	Subscribers []CompletionSubscriber // Optional: notified after each stored completion
}

// JobService provides the Job Store operations used by workers: claim, long-poll claim and
// completion, plus read-only lookups.
type JobService struct {
	repo        core.JobRepository
	notifier    domainjob.Notifier
	waitPolicy  domainjob.WaitPolicy
	logger      *slog.Logger
	metrics     statsd.Sink
	subscribers []CompletionSubscriber
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = domainjob.NewNotifier(opts.NotifierOptions)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "job_service")

	subs := make([]CompletionSubscriber, 0, len(opts.Subscribers))
	for _, s := range opts.Subscribers {
		if s != nil {
			subs = append(subs, s)
		}
	}

	return &JobService{
		repo:        opts.Repo,
		notifier:    notifier,
		waitPolicy:  domainjob.NewWaitPolicy(opts.MaxWait),
		logger:      logger,
		metrics:     opts.Metrics,
		subscribers: subs,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Notifier returns the notifier shared with the event bus.
func (s *JobService) Notifier() domainjob.Notifier { return s.notifier }

// MaxWait returns the long-poll cap.
func (s *JobService) MaxWait() time.Duration { return s.waitPolicy.Max() }

// Claim claims the next matching job for a worker. It returns (nil, nil) when nothing is available,
// including when a concurrent claimer won the race.
func (s *JobService) Claim(ctx context.Context, req model.ClaimJobRequest) (*model.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.ValidationField("worker_id", err.Error())
	}

	start := time.Now()
	job, err := s.repo.Claim(ctx, req)
	switch {
	case errors.Is(err, model.ErrNoJobsAvailable):
		metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
			Transition: metrics.TransitionClaim,
			Result:     metrics.ResultNoop,
		})
		return nil, nil
	case err != nil:
		metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
			Transition: metrics.TransitionClaim,
			Result:     metrics.ResultError,
			Err:        err,
		})
		return nil, fmt.Errorf("claim job: %w", err)
	}

	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		EventType:  job.EventType,
		Transition: metrics.TransitionClaim,
		Result:     metrics.ResultSuccess,
		Duration:   time.Since(start),
	})
	s.logger.DebugContext(ctx, "job claimed",
		"id", job.ID,
		"event_type", job.EventType,
		"priority", job.Priority,
		"worker_id", req.WorkerID,
	)
	return job, nil
}

// ClaimWait claims like Claim but, when nothing is available, waits up to wait (capped by
// MaxWait) for new work before giving up with (nil, nil).
func (s *JobService) ClaimWait(ctx context.Context, req model.ClaimJobRequest, wait time.Duration) (*model.Job, error) {
	resolved, clamped := s.waitPolicy.Resolve(wait)
	if clamped {
		s.logger.DebugContext(ctx, "clamped claim wait", "requested", wait, "resolved", resolved)
	}
	if resolved <= 0 {
		return s.Claim(ctx, req)
	}

	// Subscribe before the first claim so an insert between the two cannot be missed.
	unsub, ch := s.notifier.Subscribe()
	defer unsub()

	timer := time.NewTimer(resolved)
	defer timer.Stop()

	for {
		job, err := s.Claim(ctx, req)
		if err != nil || job != nil {
			return job, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case _, ok := <-ch:
			if !ok {
				return nil, nil
			}
		}
	}
}

// Complete records a terminal outcome. Repeated completions overwrite the stored outcome.
// Subscribers run after the write; their failures are logged and never returned.
func (s *JobService) Complete(ctx context.Context, req model.CompleteJobRequest) (*model.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}

	job, err := s.repo.Complete(ctx, req)
	if err != nil {
		result := metrics.ResultError
		if errors.Is(err, model.ErrJobNotFound) {
			result = metrics.ResultNoop
			err = apperrors.Wrap(err, apperrors.ErrCodeNotFound, fmt.Sprintf("job %d not found", req.JobID))
		}
		metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
			Transition: metrics.TransitionComplete,
			Result:     result,
			Err:        err,
		})
		return nil, fmt.Errorf("complete job %d: %w", req.JobID, err)
	}

	var duration time.Duration
	if job.ClaimedAt != nil && job.CompletedAt != nil {
		duration = job.CompletedAt.Sub(*job.ClaimedAt)
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		EventType:  job.EventType,
		Transition: metrics.TransitionComplete,
		Result:     strings.ToLower(string(job.Status)),
		Duration:   duration,
	})
	s.logger.InfoContext(ctx, "job completed",
		"id", job.ID,
		"event_type", job.EventType,
		"status", job.Status,
		"worker_id", req.WorkerID,
	)

	for _, sub := range s.subscribers {
		if subErr := sub.JobCompleted(ctx, job); subErr != nil {
			s.logger.WarnContext(ctx, "completion subscriber failed",
				"id", job.ID,
				"event_type", job.EventType,
				"error", subErr,
			)
		}
	}
	return job, nil
}

// GetByID returns a job by its ID.
func (s *JobService) GetByID(ctx context.Context, id int64) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeNotFound, fmt.Sprintf("job %d not found", id))
		}
		return nil, fmt.Errorf("get job by id %d: %w", id, err)
	}
	return job, nil
}

// Stats returns job counts by status and timeline totals.
func (s *JobService) Stats(ctx context.Context) (*model.DispatchStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("get dispatch stats: %w", err)
	}
	return stats, nil
}

// Close releases every long-polling claimer.
func (s *JobService) Close() {
	s.notifier.StopAll()
}
