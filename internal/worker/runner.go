package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/target/case-dispatch/internal/domain/model"
	"github.com/target/case-dispatch/internal/observability/metrics"
	"github.com/target/case-dispatch/internal/observability/statsd"
	"golang.org/x/sync/errgroup"
)

// Defaults for RunnerOptions.
const (
	DefaultPollWait       = 20 * time.Second
	DefaultIdleBackoff    = 2 * time.Second
	DefaultNetworkBackoff = 5 * time.Second
	DefaultErrorBackoff   = 3 * time.Second
	maxCompleteBackoff    = time.Minute
)

// DefaultTypes is the type filter of a general-purpose worker.
func DefaultTypes() []string {
	return []string{
		model.EventFollowupNoticeDraft,
		model.EventFollowupNoticeSend,
		model.EventEvidenceSnapshot,
	}
}

// DefaultWorkerID derives an id from the host name, the process id and a random suffix.
func DefaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

// Dispatcher is the Dispatch Server API used by the runner. *Client implements it.
type Dispatcher interface {
	Next(ctx context.Context, types []string, wait time.Duration) (*model.Assignment, error)
	Complete(ctx context.Context, jobID int64, status model.JobStatus, result any) error
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Client   Dispatcher // Required
	Handlers Registry   // Required
	// Types is the claim filter; defaults to the registered handler types.
	Types          []string
	Concurrency    int
	PollWait       time.Duration
	IdleBackoff    time.Duration
	NetworkBackoff time.Duration
	ErrorBackoff   time.Duration
	Logger         *slog.Logger
	Metrics        statsd.Sink
}

// Runner polls for jobs and executes them with the registered handlers.
type Runner struct {
	client         Dispatcher
	handlers       Registry
	types          []string
	workers        int
	pollWait       time.Duration
	idleBackoff    time.Duration
	networkBackoff time.Duration
	errorBackoff   time.Duration
	logger         *slog.Logger
	metrics        statsd.Sink

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewRunner validates opts and applies defaults.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Client == nil {
		return nil, errors.New("dispatch client is required")
	}
	if len(opts.Handlers) == 0 {
		return nil, errors.New("at least one handler is required")
	}
	types := opts.Types
	if len(types) == 0 {
		types = opts.Handlers.Types()
	}
	workers := max(opts.Concurrency, 1)

	return &Runner{
		client:         opts.Client,
		handlers:       opts.Handlers,
		types:          types,
		workers:        workers,
		pollWait:       orDefault(opts.PollWait, DefaultPollWait),
		idleBackoff:    orDefault(opts.IdleBackoff, DefaultIdleBackoff),
		networkBackoff: orDefault(opts.NetworkBackoff, DefaultNetworkBackoff),
		errorBackoff:   orDefault(opts.ErrorBackoff, DefaultErrorBackoff),
		logger:         loggerOrDefault(opts.Logger).With("component", "worker"),
		metrics:        opts.Metrics,
		sleep:          sleepCtx,
	}, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Types returns the claim filter.
func (r *Runner) Types() []string { return append([]string(nil), r.types...) }

// Run starts the pollers and blocks until ctx is cancelled. A single job's failure never stops
// the loop.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting worker",
		"types", r.types,
		"workers", r.workers,
		"poll_wait", r.pollWait,
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := range r.workers {
		g.Go(func() error {
			r.loop(gctx, i)
			return nil
		})
	}
	_ = g.Wait()

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (r *Runner) loop(ctx context.Context, poller int) {
	logger := r.logger.With("poller", poller)
	for ctx.Err() == nil {
		handled, err := r.RunOnce(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil && IsNetworkError(err):
			logger.WarnContext(ctx, "dispatch server unreachable, retrying", "error", err, "backoff", r.networkBackoff)
			r.sleep(ctx, r.networkBackoff)
		case err != nil:
			logger.ErrorContext(ctx, "worker iteration failed", "error", err, "backoff", r.errorBackoff)
			r.sleep(ctx, r.errorBackoff)
		case !handled:
			r.sleep(ctx, r.idleBackoff)
		}
	}
}

// RunOnce claims at most one job and processes it. handled is false when no job was available.
func (r *Runner) RunOnce(ctx context.Context) (handled bool, err error) {
	start := time.Now()
	job, err := r.client.Next(ctx, r.types, r.pollWait)
	if err != nil {
		r.emit("", metrics.TransitionClaim, metrics.ResultError, start, err)
		return false, err
	}
	if job == nil {
		r.emit("", metrics.TransitionClaim, metrics.ResultNoop, start, nil)
		return false, nil
	}
	r.emit(job.EventType, metrics.TransitionClaim, metrics.ResultSuccess, start, nil)

	r.Process(ctx, job)
	return true, nil
}

// Process runs the handler for job and reports its outcome, retrying the report until it is
// accepted or ctx ends.
func (r *Runner) Process(ctx context.Context, job *model.Assignment) {
	logger := r.logger.With("job_id", job.ID, "event_type", job.EventType)
	logger.InfoContext(ctx, "claimed job")

	start := time.Now()
	status, result, handleErr := r.execute(ctx, job)
	outcome := metrics.ResultSuccess
	if status == model.JobStatusFailed {
		outcome = metrics.ResultError
		logger.WarnContext(ctx, "job failed", "error", result["error"])
	}
	r.emit(job.EventType, metrics.TransitionHandle, outcome, start, handleErr)

	if err := r.complete(ctx, job.ID, status, result); err != nil {
		logger.ErrorContext(ctx, "completion not recorded", "status", status, "error", err)
		return
	}
	logger.InfoContext(ctx, "reported job", "status", status)
}

func (r *Runner) execute(ctx context.Context, job *model.Assignment) (status model.JobStatus, res Result, err error) {
	h, ok := r.handlers[job.EventType]
	if !ok {
		err = fmt.Errorf("no handler for event_type=%s", job.EventType)
		return model.JobStatusFailed, failure(job, err), err
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
			status, res = model.JobStatusFailed, failure(job, err)
		}
	}()

	res, err = h(ctx, job)
	switch {
	case err != nil:
		return model.JobStatusFailed, failure(job, err), err
	case res == nil:
		res = Result{"ok": true}
	}
	if !res.OK() {
		return model.JobStatusFailed, res, nil
	}
	return model.JobStatusCompleted, res, nil
}

func failure(job *model.Assignment, err error) Result {
	res := Result{"ok": false, "error": err.Error()}
	if caseID := payloadString(job, "case_id"); caseID != "" {
		res["case_id"] = caseID
	}
	return res
}

// complete reports the outcome. Completion is idempotent on the server, so transport failures
// and 5xx answers are retried with exponential backoff. Other rejections are final.
func (r *Runner) complete(ctx context.Context, jobID int64, status model.JobStatus, result Result) error {
	backoff := r.networkBackoff
	for attempt := 1; ; attempt++ {
		start := time.Now()
		err := r.client.Complete(ctx, jobID, status, result)
		if err == nil {
			r.emit("", metrics.TransitionComplete, metrics.ResultSuccess, start, nil)
			return nil
		}
		r.emit("", metrics.TransitionComplete, metrics.ResultError, start, err)

		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return err
		}
		r.logger.WarnContext(ctx, "completion report failed, retrying",
			"job_id", jobID,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !r.sleep(ctx, backoff) {
			return fmt.Errorf("complete job %d: %w", jobID, ctx.Err())
		}
		backoff = min(backoff*2, maxCompleteBackoff)
	}
}

func (r *Runner) emit(eventType, transition, result string, start time.Time, err error) {
	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		EventType:  eventType,
		Transition: transition,
		Result:     result,
		Duration:   time.Since(start),
		Err:        err,
	})
}

// sleepCtx waits for d and reports whether ctx is still live.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
