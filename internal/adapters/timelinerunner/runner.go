// Package timelinerunner drives periodic timeline sweeps. Ticks are jittered so replicas started
// together spread out, and each sweep runs under a SweepLock so only one replica fires at a time.
package timelinerunner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"github.com/target/case-dispatch/internal/core"
	"github.com/target/case-dispatch/internal/data"
	"github.com/target/case-dispatch/internal/domain/model"
	"github.com/target/case-dispatch/internal/observability/metrics"
	"github.com/target/case-dispatch/internal/observability/statsd"
)

const (
	defaultInterval = 15 * time.Minute
	defaultLockTTL  = 5 * time.Minute
	releaseTimeout  = 5 * time.Second
)

// Sweeper runs one timeline sweep. *service.TimelineEngine implements it.
type Sweeper interface {
	Tick(ctx context.Context) (model.TickResult, error)
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Engine Sweeper // Required
	// Lock serializes sweeps; defaults to an in-process lock.
	Lock     core.SweepLock
	Interval time.Duration
	// Jitter is the standard deviation applied to each interval.
	Jitter     time.Duration
	LockTTL    time.Duration
	RunOnStart bool
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// Runner provides a simple adapter to run the sweep loop.
type Runner struct {
	engine     Sweeper
	lock       core.SweepLock
	interval   time.Duration
	jitter     time.Duration
	lockTTL    time.Duration
	runOnStart bool
	logger     *slog.Logger
	metrics    statsd.Sink

	// ticks replaces the jittered ticker in tests.
	ticks <-chan time.Time
}

// NewRunner creates a new timeline runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}
	return &Runner{
		engine:     opts.Engine,
		lock:       opts.Lock,
		interval:   opts.Interval,
		jitter:     opts.Jitter,
		lockTTL:    opts.LockTTL,
		runOnStart: opts.RunOnStart,
		logger:     opts.Logger.With("component", "timeline_runner"),
		metrics:    opts.Metrics,
	}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.Engine == nil {
		return errors.New("timeline engine is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Jitter < 0 {
		opts.Jitter = 0
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.Lock == nil {
		opts.Lock = &data.LocalSweepLock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// Run sweeps on every tick until the context is cancelled. Sweep failures are logged and the loop
// keeps going.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting timeline runner",
		"interval", r.interval,
		"jitter", r.jitter,
		"run_on_start", r.runOnStart,
	)

	ticks := r.ticks
	if ticks == nil {
		t := jitterbug.New(r.interval, &jitterbug.Norm{Stdev: r.jitter})
		defer t.Stop()
		ticks = t.C
	}

	if r.runOnStart {
		r.sweep(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "timeline runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticks:
			r.sweep(ctx)
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	if _, _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
		r.logger.ErrorContext(ctx, "timeline sweep failed", "error", err)
	}
}

// RunOnce performs a single locked sweep. ran is false when another holder owned the lock.
func (r *Runner) RunOnce(ctx context.Context) (res model.TickResult, ran bool, err error) {
	release, ok, err := r.lock.TryAcquire(ctx, r.lockTTL)
	if err != nil {
		metrics.EmitSweepLock(r.metrics, metrics.ResultError, err)
		return res, false, err
	}
	if !ok {
		metrics.EmitSweepLock(r.metrics, metrics.ResultNoop, nil)
		r.logger.DebugContext(ctx, "timeline sweep skipped, lock held elsewhere")
		return res, false, nil
	}
	defer func() {
		// Release with a fresh context so shutdown does not strand the lock until its TTL.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if relErr := release(relCtx); relErr != nil {
			r.logger.WarnContext(ctx, "release sweep lock", "error", relErr)
		}
	}()
	metrics.EmitSweepLock(r.metrics, metrics.ResultSuccess, nil)

	res, err = r.engine.Tick(ctx)
	return res, true, err
}
