package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/case-dispatch/config"
	"github.com/target/case-dispatch/internal/core"
	"github.com/target/case-dispatch/internal/data"
	domainjob "github.com/target/case-dispatch/internal/domain/job"
	"github.com/target/case-dispatch/internal/observability/metrics"
	"github.com/target/case-dispatch/internal/observability/notify/pagerduty"
	"github.com/target/case-dispatch/internal/observability/notify/slack"
	"github.com/target/case-dispatch/internal/observability/prom"
	"github.com/target/case-dispatch/internal/observability/statsd"
	"github.com/target/case-dispatch/internal/service"
	"github.com/target/case-dispatch/internal/service/narrator"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs      *service.JobService
	Bus       *service.EventBus
	Timeline  *service.TimelineEngine
	Records   *service.CaseRecords
	SweepLock core.SweepLock

	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// Metrics fans out to every enabled backend; nil when none is.
	Metrics  statsd.Sink
	Statsd   *statsd.Client
	Prom     *prom.Sink
	Narrator *narrator.Service
}

// MetricsHandler returns the Prometheus handler, or nil when Prometheus is disabled.
func (o ObservabilityContainer) MetricsHandler() http.Handler {
	if o.Prom == nil {
		return nil
	}
	return o.Prom.Handler()
}

// Close releases observability resources.
func (o ObservabilityContainer) Close() error {
	if o.Statsd == nil {
		return nil
	}
	return o.Statsd.Close()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	Dialect     data.Dialect
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// BuildObservability configures metrics and narration adapters.
func BuildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var (
		out   ObservabilityContainer
		sinks []statsd.Sink
	)
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled:    true,
			Address:    cfg.Metrics.StatsdAddress,
			Prefix:     cfg.Metrics.Prefix,
			Logger:     obsLogger,
			GlobalTags: map[string]string{"service": cfg.ServiceName},
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.Statsd = client
			sinks = append(sinks, client)
		}
	}
	if cfg.Metrics.PrometheusEnabled {
		out.Prom = prom.NewSink(prom.Options{Namespace: cfg.Metrics.Prefix, Labels: metrics.LabelSets()})
		sinks = append(sinks, out.Prom)
	}
	out.Metrics = statsd.Multi(sinks...)
	out.Narrator = buildNarrator(obsLogger, cfg.Narration)
	return out
}

func buildNarrator(logger *slog.Logger, cfg config.NarrationConfig) *narrator.Service {
	var sinks []narrator.SinkRegistration

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:    cfg.Slack.WebhookURL,
			Channel:       cfg.Slack.Channel,
			Username:      cfg.Slack.Username,
			Timeout:       cfg.Timeout,
			RetryLimit:    cfg.RetryLimit,
			CaseURLPrefix: cfg.Slack.CaseURLPrefix,
		})
		if err != nil {
			logger.Error("failed to configure slack narration sink", "error", err)
		} else {
			sinks = append(sinks, narrator.SinkRegistration{
				Name:        "slack",
				Sink:        client,
				MaxPriority: cfg.Slack.MaxPriority,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to configure pagerduty narration sink", "error", err)
		} else {
			sinks = append(sinks, narrator.SinkRegistration{
				Name:        "pagerduty",
				Sink:        client,
				MaxPriority: cfg.PagerDuty.MaxPriority,
			})
		}
	}

	return narrator.NewService(narrator.Options{Logger: logger, Sinks: sinks})
}

// NewServices wires repositories, subscribers and domain services.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil || deps.DB == nil {
		return ServiceContainer{}, errors.New("service deps require config and database")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	obs := BuildObservability(logger, cfg.Observability)

	repoCfg := data.RepoConfig{Dialect: deps.Dialect, Logger: logger}
	jobRepo := data.NewJobRepo(deps.DB, repoCfg)

	records, err := service.NewCaseRecords(service.CaseRecordsOptions{
		Evidence:      data.NewEvidenceRepo(deps.DB, repoCfg),
		CertifiedMail: data.NewCertifiedMailRepo(deps.DB, repoCfg),
		Logger:        logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("case records: %w", err)
	}
	narration := service.NewNarrationSubscriber(obs.Narrator)

	// Only Postgres can wake long-polls for inserts made by other processes.
	var notifierOpts domainjob.NotifierOptions
	if deps.Dialect == data.DialectPostgres {
		notifierOpts.Waiter = jobRepo
	}

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Repo:            jobRepo,
		Logger:          logger,
		NotifierOptions: notifierOpts,
		MaxWait:         cfg.HTTP.MaxWait,
		Metrics:         obs.Metrics,
		Subscribers:     []service.CompletionSubscriber{records, narration},
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("job service: %w", err)
	}

	bus, err := service.NewEventBus(service.EventBusOptions{
		Repo:        jobRepo,
		Notifier:    jobs.Notifier(),
		Logger:      logger,
		Metrics:     obs.Metrics,
		Subscribers: []service.EmitSubscriber{records, narration},
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("event bus: %w", err)
	}

	timeline, err := service.NewTimelineEngine(service.TimelineEngineOptions{
		Timeline: data.NewTimelineRepo(deps.DB, repoCfg),
		Bus:      bus,
		Narrator: obs.Narrator,
		Metrics:  obs.Metrics,
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("timeline engine: %w", err)
	}

	return ServiceContainer{
		Jobs:          jobs,
		Bus:           bus,
		Timeline:      timeline,
		Records:       records,
		SweepLock:     newSweepLock(deps.RedisClient, cfg.Timeline.LockKey),
		Observability: obs,
	}, nil
}

//nolint:ireturn // the lock backend depends on whether Redis is configured.
func newSweepLock(client redis.UniversalClient, key string) core.SweepLock {
	if client == nil {
		return &data.LocalSweepLock{}
	}
	return data.NewCacheSweepLock(data.NewRedisCacheRepo(client), key)
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
		ErrCh:    deps.errCh,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg,
				)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newTimelineBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeTimeline,
		name: "timeline runner",
		start: func(ctx context.Context) error {
			return RunTimeline(ctx, TimelineRunnerConfig{
				Engine:  deps.cfg.Services.Timeline,
				Lock:    deps.cfg.Services.SweepLock,
				Config:  deps.cfg.Config.Timeline,
				Logger:  deps.logger,
				Metrics: deps.cfg.Services.Observability.Metrics,
			})
		},
	}
}

func newWorkerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeWorker,
		name: "worker",
		start: func(ctx context.Context) error {
			runner, err := NewWorkerRunner(WorkerRunnerConfig{
				Config:  deps.cfg.Config.Worker,
				Logger:  deps.logger,
				Metrics: deps.cfg.Services.Observability.Metrics,
			})
			if err != nil {
				return err
			}
			return runner.Run(ctx)
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	return []backgroundService{
		newTimelineBackgroundService(deps),
		newWorkerBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	server := startHTTPServerIfEnabled(deps)
	background := startBackgroundServices(deps, buildBackgroundServices(deps))
	return ServiceStartupResult{HTTPServer: server, Background: background}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// Start all enabled services
	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:             serviceCtx,
		cancel:          cancel,
		errCh:           errCh,
		httpServer:      result.HTTPServer,
		shutdownTimeout: cfg.Config.HTTP.ShutdownTimeout,
		jobService:      cfg.Services.Jobs,
		logger:          logger,
		backgrounds:     result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	return errorChannelCapacity(enabled) + 1
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx             context.Context
	cancel          context.CancelFunc
	errCh           <-chan error
	httpServer      *http.Server
	shutdownTimeout time.Duration
	jobService      *service.JobService
	logger          *slog.Logger
	backgrounds     []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	if cfg.httpServer != nil {
		// The service context is already cancelled; shutdown gets its own deadline.
		timeout := cfg.shutdownTimeout
		if timeout <= 0 {
			timeout = shutdownWaitTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context:    shutdownCtx,
			Server:     cfg.httpServer,
			JobService: cfg.jobService,
			Logger:     cfg.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
