package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/target/case-dispatch/internal/domain/model"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the Dispatch Server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeTimeline runs the periodic escalation sweep.
	ServiceModeTimeline ServiceMode = "timeline"
	// ServiceModeWorker runs a worker client inside the server process.
	ServiceModeWorker ServiceMode = "worker"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeTimeline,
		ServiceModeWorker,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeTimeline, ServiceModeWorker:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, timeline, worker)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

const (
	minTickInterval = time.Minute
	maxTickInterval = time.Hour
)

// TimelineConfig controls the periodic escalation sweep.
type TimelineConfig struct {
	// TickInterval is the mean time between sweeps, clamped to [1m, 1h].
	TickInterval time.Duration `env:"TIMELINE_TICK_INTERVAL" envDefault:"15m"`
	// TickJitter is the standard deviation applied to each interval so replicas drift apart.
	TickJitter time.Duration `env:"TIMELINE_TICK_JITTER" envDefault:"30s"`
	// LockTTL bounds how long a crashed replica can hold the sweep lock.
	LockTTL    time.Duration `env:"TIMELINE_LOCK_TTL"    envDefault:"5m"`
	LockKey    string        `env:"TIMELINE_LOCK_KEY"    envDefault:"casedispatch:timeline:sweep"`
	RunOnStart bool          `env:"TIMELINE_RUN_ON_START" envDefault:"true"`
}

// Sanitize applies guardrails to the sweep schedule.
func (t *TimelineConfig) Sanitize() {
	if t.TickInterval < minTickInterval {
		t.TickInterval = minTickInterval
	}
	if t.TickInterval > maxTickInterval {
		t.TickInterval = maxTickInterval
	}
	if t.TickJitter < 0 {
		t.TickJitter = 0
	}
	if maxJitter := t.TickInterval / 4; t.TickJitter > maxJitter {
		t.TickJitter = maxJitter
	}
	if t.LockTTL < 30*time.Second {
		t.LockTTL = 30 * time.Second
	}
	t.LockKey = strings.TrimSpace(t.LockKey)
}

// WorkerConfig configures worker processes and the in-process worker service.
type WorkerConfig struct {
	ServerURL string `env:"WORKER_SERVER_URL" envDefault:"http://localhost:8080"`
	// ID defaults to <hostname>-<pid>-<random suffix> when empty.
	ID    string   `env:"WORKER_ID"`
	Types []string `env:"WORKER_TYPES" envSeparator:","`

	Concurrency     int           `env:"WORKER_CONCURRENCY"      envDefault:"1"`
	PollTimeout     time.Duration `env:"WORKER_POLL_TIMEOUT"     envDefault:"20s"`
	IdleBackoff     time.Duration `env:"WORKER_IDLE_BACKOFF"     envDefault:"2s"`
	NetworkBackoff  time.Duration `env:"WORKER_NETWORK_BACKOFF"  envDefault:"5s"`
	ErrorBackoff    time.Duration `env:"WORKER_ERROR_BACKOFF"    envDefault:"3s"`
	CompleteTimeout time.Duration `env:"WORKER_COMPLETE_TIMEOUT" envDefault:"30s"`
}

// DefaultWorkerTypes is the claim filter of a general-purpose worker. Certified mail runs on a
// dedicated worker.
func DefaultWorkerTypes() []string {
	return []string{
		model.EventFollowupNoticeDraft,
		model.EventFollowupNoticeSend,
		model.EventEvidenceSnapshot,
	}
}

// Sanitize applies guardrails to worker settings.
func (w *WorkerConfig) Sanitize() {
	w.ServerURL = strings.TrimRight(strings.TrimSpace(w.ServerURL), "/")
	w.ID = strings.TrimSpace(w.ID)

	types := make([]string, 0, len(w.Types))
	for _, t := range w.Types {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		types = DefaultWorkerTypes()
	}
	w.Types = types

	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.Concurrency > 64 {
		w.Concurrency = 64
	}
	w.PollTimeout = positiveOr(w.PollTimeout, 20*time.Second)
	w.IdleBackoff = positiveOr(w.IdleBackoff, 2*time.Second)
	w.NetworkBackoff = positiveOr(w.NetworkBackoff, 5*time.Second)
	w.ErrorBackoff = positiveOr(w.ErrorBackoff, 3*time.Second)
	w.CompleteTimeout = positiveOr(w.CompleteTimeout, 30*time.Second)
}

func positiveOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
