package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/target/case-dispatch/internal/data"
	"github.com/target/case-dispatch/internal/domain/model"
	"github.com/target/case-dispatch/internal/service"
	"github.com/target/case-dispatch/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type narrations struct {
	mu  sync.Mutex
	got []model.Narration
}

func (n *narrations) Narrate(_ context.Context, msg model.Narration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, msg)
}

func (n *narrations) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.got))
	for _, m := range n.got {
		out = append(out, m.Message)
	}
	return out
}

// testAPI is the full router over a migrated SQLite database with a fixed clock.
type testAPI struct {
	handler   http.Handler
	clock     *data.FixedTimeProvider
	jobs      *service.JobService
	bus       *service.EventBus
	narration *narrations
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	db := testutil.SetupSQLiteDB(t)
	clock := data.NewFixedTimeProvider(testutil.TestTime())
	cfg := data.RepoConfig{Dialect: data.DialectSQLite, Logger: discardLogger(), TimeProvider: clock}
	jobRepo := data.NewJobRepo(db, cfg)

	records, err := service.NewCaseRecords(service.CaseRecordsOptions{
		Evidence:      data.NewEvidenceRepo(db, cfg),
		CertifiedMail: data.NewCertifiedMailRepo(db, cfg),
		Logger:        discardLogger(),
	})
	require.NoError(t, err)

	api := &testAPI{clock: clock, narration: &narrations{}}
	narrationSub := service.NewNarrationSubscriber(api.narration)
	api.jobs = service.MustNewJobService(service.JobServiceOptions{
		Repo:        jobRepo,
		Logger:      discardLogger(),
		MaxWait:     5 * time.Second,
		Subscribers: []service.CompletionSubscriber{records, narrationSub},
	})
	t.Cleanup(api.jobs.Close)

	api.bus = service.MustNewEventBus(service.EventBusOptions{
		Repo:        jobRepo,
		Notifier:    api.jobs.Notifier(),
		Logger:      discardLogger(),
		Subscribers: []service.EmitSubscriber{records, narrationSub},
	})
	engine := service.MustNewTimelineEngine(service.TimelineEngineOptions{
		Timeline: data.NewTimelineRepo(db, cfg),
		Bus:      api.bus,
		Clock:    clock,
		Narrator: api.narration,
		Logger:   discardLogger(),
	})

	api.handler = NewRouter(RouterServices{
		Jobs:        api.jobs,
		Bus:         api.bus,
		Timeline:    engine,
		Records:     records,
		Metrics:     http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "# metrics\n") }),
		ServiceName: "case-dispatch",
		Version:     "test",
		Logger:      discardLogger(),
	})
	return api
}

// do sends a request through the router. body may be nil, a string or a value to encode as JSON.
func (a *testAPI) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *testAPI) ingest(t *testing.T, eventType string, payload map[string]any, priority int) int64 {
	t.Helper()
	body := map[string]any{"event_type": eventType}
	if payload != nil {
		body["payload"] = payload
	}
	if priority != 0 {
		body["priority"] = priority
	}
	rec := a.do(t, http.MethodPost, "/event", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[map[string]any](t, rec)
	return int64(resp["job_id"].(float64))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
