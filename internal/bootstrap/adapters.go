package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/case-dispatch/config"
	"github.com/target/case-dispatch/internal/adapters/timelinerunner"
	"github.com/target/case-dispatch/internal/core"
	"github.com/target/case-dispatch/internal/observability/statsd"
	"github.com/target/case-dispatch/internal/service"
	"github.com/target/case-dispatch/internal/worker"
)

// TimelineRunnerConfig contains configuration for the periodic sweep.
type TimelineRunnerConfig struct {
	Engine  *service.TimelineEngine
	Lock    core.SweepLock
	Config  config.TimelineConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// NewTimelineRunner builds the sweep loop without starting it.
func NewTimelineRunner(cfg TimelineRunnerConfig) (*timelinerunner.Runner, error) {
	if cfg.Engine == nil {
		return nil, errors.New("timeline engine is required")
	}
	runner, err := timelinerunner.NewRunner(timelinerunner.RunnerOptions{
		Engine:     cfg.Engine,
		Lock:       cfg.Lock,
		Interval:   cfg.Config.TickInterval,
		Jitter:     cfg.Config.TickJitter,
		LockTTL:    cfg.Config.LockTTL,
		RunOnStart: cfg.Config.RunOnStart,
		Logger:     cfg.Logger,
		Metrics:    cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create timeline runner: %w", err)
	}
	return runner, nil
}

// RunTimeline runs the periodic sweep until ctx is cancelled.
func RunTimeline(ctx context.Context, cfg TimelineRunnerConfig) error {
	runner, err := NewTimelineRunner(cfg)
	if err != nil {
		return err
	}
	return runner.Run(ctx)
}

// WorkerRunnerConfig contains configuration for a worker client.
type WorkerRunnerConfig struct {
	Config  config.WorkerConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// NewWorkerRunner builds a worker with the built-in handlers. The client doubles as the event
// emitter of the certified-mail handler.
func NewWorkerRunner(cfg WorkerRunnerConfig) (*worker.Runner, error) {
	id := cfg.Config.ID
	if id == "" {
		id = worker.DefaultWorkerID()
	}

	client, err := worker.NewClient(worker.ClientOptions{
		BaseURL:        cfg.Config.ServerURL,
		WorkerID:       id,
		RequestTimeout: cfg.Config.CompleteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create worker client: %w", err)
	}

	runner, err := worker.NewRunner(worker.RunnerOptions{
		Client: client,
		Handlers: worker.DefaultHandlers(worker.HandlerOptions{
			Events: client,
			Logger: cfg.Logger,
		}),
		Types:          cfg.Config.Types,
		Concurrency:    cfg.Config.Concurrency,
		PollWait:       cfg.Config.PollTimeout,
		IdleBackoff:    cfg.Config.IdleBackoff,
		NetworkBackoff: cfg.Config.NetworkBackoff,
		ErrorBackoff:   cfg.Config.ErrorBackoff,
		Logger:         cfg.Logger,
		Metrics:        cfg.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create worker runner: %w", err)
	}
	return runner, nil
}
