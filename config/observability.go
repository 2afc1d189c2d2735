package config

import (
	"log/slog"
	"strings"
	"time"
)

const defaultServiceName = "case-dispatch"

// ObservabilityConfig groups configuration that controls logging, metrics and narration fan-out.
type ObservabilityConfig struct {
	ServiceName    string `env:"SERVICE_NAME"    envDefault:"case-dispatch"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"dev"`

	Logging   LoggingConfig
	Metrics   MetricsConfig
	Narration NarrationConfig
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize(isDev bool) {
	if c.ServiceName = strings.TrimSpace(c.ServiceName); c.ServiceName == "" {
		c.ServiceName = defaultServiceName
	}
	c.Logging.Sanitize(isDev)
	c.Metrics.Sanitize()
	c.Narration.Sanitize(c.ServiceName)
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT"`
}

// Sanitize picks text output in development when no format is set.
func (c *LoggingConfig) Sanitize(isDev bool) {
	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format != "json" && c.Format != "text" {
		c.Format = "json"
		if isDev {
			c.Format = "text"
		}
	}
}

// SlogLevel maps Level onto slog, defaulting to info.
func (c LoggingConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MetricsConfig controls emission of metrics to StatsD and the Prometheus endpoint.
type MetricsConfig struct {
	Enabled           bool   `env:"METRICS_ENABLED"            envDefault:"false"`
	StatsdAddress     string `env:"METRICS_STATSD_ADDRESS"     envDefault:"127.0.0.1:8125"`
	Prefix            string `env:"METRICS_PREFIX"             envDefault:"casedispatch"`
	PrometheusEnabled bool   `env:"METRICS_PROMETHEUS_ENABLED" envDefault:"false"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *MetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
	if c.Prefix = strings.TrimSpace(c.Prefix); c.Prefix == "" {
		c.Prefix = "casedispatch"
	}
}

// IsEnabled returns true when StatsD emission is active after sanitisation.
func (c *MetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}

// NarrationConfig controls where persona narrations are delivered besides the log.
type NarrationConfig struct {
	Timeout    time.Duration            `env:"NARRATION_TIMEOUT"     envDefault:"5s"`
	RetryLimit int                      `env:"NARRATION_RETRY_LIMIT" envDefault:"3"`
	Slack      SlackNarrationConfig     `                                             envPrefix:"NARRATION_SLACK_"`
	PagerDuty  PagerDutyNarrationConfig `                                             envPrefix:"NARRATION_PAGERDUTY_"`
}

// Sanitize normalises narration configuration values.
func (c *NarrationConfig) Sanitize(serviceName string) {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}

	c.Slack.sanitize(serviceName)
	c.PagerDuty.sanitize(serviceName)
}

// SlackNarrationConfig controls Slack webhook fan-out.
type SlackNarrationConfig struct {
	Enabled       bool   `env:"ENABLED"         envDefault:"false"`
	WebhookURL    string `env:"WEBHOOK_URL"`
	Channel       string `env:"CHANNEL"`
	Username      string `env:"USERNAME"`
	CaseURLPrefix string `env:"CASE_URL_PREFIX"`
	// MaxPriority limits Slack to narrations at least this urgent. Zero delivers everything.
	MaxPriority int `env:"MAX_PRIORITY" envDefault:"0"`
}

func (c *SlackNarrationConfig) sanitize(serviceName string) {
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	c.Channel = strings.TrimSpace(c.Channel)
	c.CaseURLPrefix = strings.TrimSpace(c.CaseURLPrefix)
	if c.Username = strings.TrimSpace(c.Username); c.Username == "" {
		c.Username = serviceName
	}
	if c.MaxPriority < 0 {
		c.MaxPriority = 0
	}
	if c.WebhookURL == "" {
		c.Enabled = false
	}
}

// PagerDutyNarrationConfig controls PagerDuty Events API v2 fan-out. Only urgent narrations page.
type PagerDutyNarrationConfig struct {
	Enabled     bool   `env:"ENABLED"      envDefault:"false"`
	RoutingKey  string `env:"ROUTING_KEY"`
	Source      string `env:"SOURCE"`
	Component   string `env:"COMPONENT"`
	MaxPriority int    `env:"MAX_PRIORITY" envDefault:"1"`
}

func (c *PagerDutyNarrationConfig) sanitize(serviceName string) {
	c.RoutingKey = strings.TrimSpace(c.RoutingKey)
	if c.Source = strings.TrimSpace(c.Source); c.Source == "" {
		c.Source = serviceName
	}
	if c.Component = strings.TrimSpace(c.Component); c.Component == "" {
		c.Component = serviceName
	}
	if c.MaxPriority < 0 {
		c.MaxPriority = 0
	}
	if c.RoutingKey == "" {
		c.Enabled = false
	}
}
