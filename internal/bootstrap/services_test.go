package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/case-dispatch/config"
	"github.com/target/case-dispatch/internal/data"
	"github.com/target/case-dispatch/internal/testutil"
)

func TestErrorChannelCapacity(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{name: "no services enabled", want: 0},
		{name: "http only", modes: []config.ServiceMode{config.ServiceModeHTTP}, want: 1},
		{
			name:  "http and timeline",
			modes: []config.ServiceMode{config.ServiceModeHTTP, config.ServiceModeTimeline},
			want:  2,
		},
		{name: "all services enabled", modes: config.ValidServiceModes(), want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			if got := errorChannelCapacity(enabled); got != tt.want {
				t.Fatalf("errorChannelCapacity(%v) = %d, want %d", tt.modes, got, tt.want)
			}
			if got := errorChannelBufferSize(enabled); got != tt.want+1 {
				t.Fatalf("errorChannelBufferSize(%v) = %d, want %d", tt.modes, got, tt.want+1)
			}
		})
	}
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{Services: "http,timeline"}
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "casedispatch.db")
	cfg.Sanitize()
	return cfg
}

func TestNewServices_SQLite(t *testing.T) {
	cfg := testConfig(t)
	db := testutil.SetupSQLiteDB(t)

	services, err := NewServices(&ServiceDeps{
		Config:  cfg,
		DB:      db,
		Dialect: data.DialectSQLite,
		Logger:  discardLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(services.Jobs.Close)

	assert.NotNil(t, services.Jobs)
	assert.NotNil(t, services.Bus)
	assert.NotNil(t, services.Timeline)
	assert.NotNil(t, services.Records)
	assert.IsType(t, &data.LocalSweepLock{}, services.SweepLock)
	assert.Nil(t, services.Observability.Metrics)
	assert.Nil(t, services.Observability.MetricsHandler())
	assert.Equal(t, cfg.HTTP.MaxWait, services.Jobs.MaxWait())

	srv := httptest.NewServer(NewHTTPHandler(&HTTPServerConfig{Config: cfg, Services: services, Logger: discardLogger()}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "case-dispatch", body["service"])

	// /metrics is only mounted when Prometheus is enabled.
	metrics, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	metrics.Body.Close()
	assert.Equal(t, http.StatusNotFound, metrics.StatusCode)
}

func TestNewServices_RequiresDatabase(t *testing.T) {
	_, err := NewServices(&ServiceDeps{Config: testConfig(t)})
	require.Error(t, err)
}

func TestBuildObservability_Prometheus(t *testing.T) {
	cfg := config.ObservabilityConfig{
		Metrics: config.MetricsConfig{PrometheusEnabled: true, Prefix: "casedispatch"},
	}
	cfg.Sanitize(false)

	obs := BuildObservability(discardLogger(), cfg)
	require.NotNil(t, obs.Prom)
	require.NotNil(t, obs.Metrics)
	require.NotNil(t, obs.Narrator)
	assert.False(t, obs.Narrator.Enabled())

	obs.Metrics.Count("jobs.claim", 1, map[string]string{"result": "success"})

	rec := httptest.NewRecorder()
	obs.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "casedispatch_")
	assert.NoError(t, obs.Close())
}

func TestBuildObservability_NarrationSinks(t *testing.T) {
	cfg := config.ObservabilityConfig{}
	cfg.Narration.Slack = config.SlackNarrationConfig{Enabled: true, WebhookURL: "https://hooks.slack.com/services/T/B/X"}
	cfg.Narration.PagerDuty = config.PagerDutyNarrationConfig{Enabled: true, RoutingKey: "routing-key", MaxPriority: 1}
	cfg.Sanitize(false)

	obs := BuildObservability(discardLogger(), cfg)
	assert.True(t, obs.Narrator.Enabled())
}

func TestNewSweepLock(t *testing.T) {
	assert.IsType(t, &data.LocalSweepLock{}, newSweepLock(nil, ""))

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	assert.IsType(t, &data.CacheSweepLock{}, newSweepLock(client, "k"))
}

func TestNewWorkerRunner(t *testing.T) {
	cfg := config.WorkerConfig{ServerURL: "http://localhost:8080", Types: []string{"CERTIFIED_MAIL_DISPATCH"}}
	cfg.Sanitize()

	runner, err := NewWorkerRunner(WorkerRunnerConfig{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	assert.Equal(t, []string{"CERTIFIED_MAIL_DISPATCH"}, runner.Types())

	cfg.ServerURL = "ftp://nowhere"
	_, err = NewWorkerRunner(WorkerRunnerConfig{Config: cfg, Logger: discardLogger()})
	require.Error(t, err)
}

func TestNewTimelineRunner_RequiresEngine(t *testing.T) {
	_, err := NewTimelineRunner(TimelineRunnerConfig{})
	require.Error(t, err)
}

func TestGetEnabledServices_Sorted(t *testing.T) {
	cfg := &config.AppConfig{Services: "worker,http,timeline"}
	assert.Equal(t, []string{"http", "timeline", "worker"}, GetEnabledServices(cfg))
	assert.Empty(t, GetEnabledServices(&config.AppConfig{Services: "bogus"}))
	assert.Error(t, ValidateServiceConfig(&config.AppConfig{Services: "bogus"}))
	assert.NoError(t, ValidateServiceConfig(cfg))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "k=v")
}

func TestConnectDB_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	db, dialect, err := ConnectDB(ctx, DatabaseConfig{Storage: cfg.Storage, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	assert.Equal(t, data.DialectSQLite, dialect)

	require.NoError(t, RunMigrations(ctx, db, dialect, discardLogger()))
	// Migrations are idempotent.
	require.NoError(t, RunMigrations(ctx, db, dialect, discardLogger()))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&n))
	assert.Zero(t, n)
}

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DBConfig{
		Host:     "db",
		Port:     5432,
		User:     "case",
		Password: "p@ss/word",
		Name:     "casedispatch",
		SSLMode:  "require",
	})
	assert.Equal(t, "postgres://case:p%40ss%2Fword@db:5432/casedispatch?sslmode=require", dsn)
}
