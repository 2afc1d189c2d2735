package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/case-dispatch/config"
	"github.com/target/case-dispatch/internal/domain/model"
)

func newTestState() *cliState {
	cfg := config.WorkerConfig{ServerURL: "http://localhost:8080"}
	cfg.Sanitize()
	return &cliState{config: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func execute(t *testing.T, st *cliState, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(st)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestHandlersCommand(t *testing.T) {
	out, err := execute(t, newTestState(), "handlers")
	require.NoError(t, err)

	lines := strings.Fields(out)
	assert.ElementsMatch(t, []string{
		model.EventCertifiedMailDispatch,
		model.EventEvidenceSnapshot,
		model.EventFollowupNoticeDraft,
		model.EventFollowupNoticeSend,
	}, lines)
}

func TestOnceCommand_NoJob(t *testing.T) {
	var gotTypes, gotWorker atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job/next" {
			http.NotFound(w, r)
			return
		}
		gotTypes.Store(r.URL.Query().Get("types"))
		gotWorker.Store(r.URL.Query().Get("worker_id"))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	out, err := execute(t, newTestState(),
		"once",
		"--server", srv.URL,
		"--worker-id", "cli-worker",
		"--types", "CERTIFIED_MAIL_DISPATCH",
	)
	require.NoError(t, err)
	assert.Equal(t, "no job available\n", out)
	assert.Equal(t, "CERTIFIED_MAIL_DISPATCH", gotTypes.Load())
	assert.Equal(t, "cli-worker", gotWorker.Load())
}

func TestApplyFlags(t *testing.T) {
	st := newTestState()
	st.server = "http://dispatch:9000/"
	st.types = "A, B,"
	st.concurrency = 3
	st.applyFlags()

	assert.Equal(t, "http://dispatch:9000", st.config.ServerURL)
	assert.Equal(t, []string{"A", "B"}, st.config.Types)
	assert.Equal(t, 3, st.config.Concurrency)
}

func TestOnceCommand_BadServer(t *testing.T) {
	_, err := execute(t, newTestState(), "once", "--server", "not a url")
	require.Error(t, err)
}
