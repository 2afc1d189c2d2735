package testutil

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Setenv("TEST_DB_HOST", "")
	t.Setenv("TEST_DB_PORT", "5432")
	t.Setenv("TEST_DB_USER", "")
	t.Setenv("TEST_DB_PASSWORD", "")
	t.Setenv("TEST_DB_NAME", "dispatch_ci")

	cfg := DefaultTestDBConfig()
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "casedispatch", cfg.User)
	assert.Equal(t, "dispatch_ci", cfg.DBName)
	assert.Contains(t, cfg.dsn(), "@localhost:5432/dispatch_ci?sslmode=")
}

func TestSetupSQLiteDB(t *testing.T) {
	db := SetupSQLiteDB(t)

	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM jobs`).Scan(&n))
	assert.Zero(t, n)
}

func TestRunConcurrent(t *testing.T) {
	boom := errors.New("boom")
	errs := RunConcurrent(
		func() error { return nil },
		func() error { time.Sleep(time.Millisecond); return boom },
	)
	assert.Len(t, errs, 2)
	assert.Contains(t, errs, boom)
}

func TestNewJobRequest(t *testing.T) {
	req := NewJobRequest().WithEventType("EVIDENCE_SNAPSHOT").WithPriority(1).ForCase("C-9").Build()
	assert.Equal(t, "EVIDENCE_SNAPSHOT", req.EventType)
	assert.Equal(t, 1, req.Priority)
	assert.JSONEq(t, `{"case_id":"C-9"}`, string(req.Payload))
}
