package worker_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/case-dispatch/internal/data"
	"github.com/target/case-dispatch/internal/domain/model"
	httpx "github.com/target/case-dispatch/internal/http"
	"github.com/target/case-dispatch/internal/service"
	"github.com/target/case-dispatch/internal/testutil"
	"github.com/target/case-dispatch/internal/worker"
)

type dispatchServer struct {
	url     string
	clock   *data.FixedTimeProvider
	jobs    *service.JobService
	bus     *service.EventBus
	engine  *service.TimelineEngine
	records *service.CaseRecords
}

func startDispatchServer(t *testing.T) *dispatchServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db := testutil.SetupSQLiteDB(t)
	clock := data.NewFixedTimeProvider(testutil.TestTime())
	cfg := data.RepoConfig{Dialect: data.DialectSQLite, Logger: logger, TimeProvider: clock}
	jobRepo := data.NewJobRepo(db, cfg)

	records, err := service.NewCaseRecords(service.CaseRecordsOptions{
		Evidence:      data.NewEvidenceRepo(db, cfg),
		CertifiedMail: data.NewCertifiedMailRepo(db, cfg),
		Logger:        logger,
	})
	require.NoError(t, err)

	s := &dispatchServer{clock: clock, records: records}
	s.jobs = service.MustNewJobService(service.JobServiceOptions{
		Repo:        jobRepo,
		Logger:      logger,
		MaxWait:     time.Second,
		Subscribers: []service.CompletionSubscriber{records},
	})
	t.Cleanup(s.jobs.Close)
	s.bus = service.MustNewEventBus(service.EventBusOptions{
		Repo:        jobRepo,
		Notifier:    s.jobs.Notifier(),
		Logger:      logger,
		Subscribers: []service.EmitSubscriber{records},
	})
	s.engine = service.MustNewTimelineEngine(service.TimelineEngineOptions{
		Timeline: data.NewTimelineRepo(db, cfg),
		Bus:      s.bus,
		Clock:    clock,
		Logger:   logger,
	})

	srv := httptest.NewServer(httpx.NewRouter(httpx.RouterServices{
		Jobs:        s.jobs,
		Bus:         s.bus,
		Timeline:    s.engine,
		Records:     records,
		ServiceName: "case-dispatch",
		Logger:      logger,
	}))
	t.Cleanup(srv.Close)
	s.url = srv.URL
	return s
}

func newWorker(t *testing.T, s *dispatchServer, id string, types []string) *worker.Runner {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := worker.NewClient(worker.ClientOptions{BaseURL: s.url, WorkerID: id, RequestTimeout: 5 * time.Second})
	require.NoError(t, err)
	r, err := worker.NewRunner(worker.RunnerOptions{
		Client:   client,
		Handlers: worker.DefaultHandlers(worker.HandlerOptions{Events: client, Logger: logger}),
		Types:    types,
		PollWait: 10 * time.Millisecond,
		Logger:   logger,
	})
	require.NoError(t, err)
	return r
}

// drain runs the worker until the queue has nothing it can claim.
func drain(t *testing.T, r *worker.Runner) int {
	t.Helper()
	n := 0
	for {
		handled, err := r.RunOnce(context.Background())
		require.NoError(t, err)
		if !handled {
			return n
		}
		n++
	}
}

func TestWorkers_SeventyTwoHourEscalation(t *testing.T) {
	ctx := context.Background()
	s := startDispatchServer(t)

	_, err := s.engine.RecordNotice(ctx, model.RecordNoticeRequest{CaseID: "CASE-1", Recipient: "Acme"})
	require.NoError(t, err)
	s.clock.AddTime(73 * time.Hour)
	res, err := s.engine.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Fired)

	general := newWorker(t, s, "general-1", worker.DefaultTypes())
	mail := newWorker(t, s, "certmail-1", []string{model.EventCertifiedMailDispatch})

	assert.Equal(t, 1, drain(t, general), "evidence snapshot")
	assert.Equal(t, 1, drain(t, mail), "certified mail dispatch")

	stats, err := s.jobs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Jobs.Completed)
	assert.Zero(t, stats.Jobs.Failed)

	evidence, err := s.records.Evidence(ctx, "CASE-1")
	require.NoError(t, err)
	require.Len(t, evidence, 1)
	assert.Equal(t, "snapshot_72h", evidence[0].Kind)
	assert.Equal(t, "snapshot:CASE-1:72h", evidence[0].Ref)

	mailings, err := s.records.CertifiedMail(ctx, "CASE-1")
	require.NoError(t, err)
	require.Len(t, mailings, 1)
	assert.Equal(t, "CLICK2MAIL", mailings[0].Provider)
	assert.Equal(t, model.MailStatusSubmitted, mailings[0].Status)

	// The submission announcement and the notice watch job are left for other consumers.
	pending, err := s.bus.Pending(ctx, "", 10)
	require.NoError(t, err)
	var types []string
	for _, j := range pending {
		types = append(types, j.EventType)
	}
	assert.ElementsMatch(t, []string{model.EventCertifiedMailSubmitted, model.EventTimelineWatchStart}, types)
}

func TestWorkers_UnhandledTypeIsFailed(t *testing.T) {
	ctx := context.Background()
	s := startDispatchServer(t)
	_, err := s.bus.Emit(ctx, model.CreateJobRequest{EventType: model.EventDocumentGeneration})
	require.NoError(t, err)

	r := newWorker(t, s, "general-1", []string{model.EventDocumentGeneration})
	assert.Equal(t, 1, drain(t, r))

	stats, err := s.jobs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Jobs.Failed)
}

func TestWorkers_LargePayloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := startDispatchServer(t)
	client, err := worker.NewClient(worker.ClientOptions{BaseURL: s.url, WorkerID: "producer", RequestTimeout: 5 * time.Second})
	require.NoError(t, err)

	// Larger than any single read buffer the client could get away with.
	notes := strings.Repeat("x", 100<<10)
	_, err = client.Emit(ctx, model.EventEvidenceSnapshot,
		map[string]any{"case_id": "CASE-7", "level": "48h", "notes": notes}, 2)
	require.NoError(t, err)

	r := newWorker(t, s, "general-1", []string{model.EventEvidenceSnapshot})
	assert.Equal(t, 1, drain(t, r))

	stats, err := s.jobs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Jobs.Completed)
	assert.Zero(t, stats.Jobs.Claimed)
}

func TestWorkers_OversizedPayloadRejectedBeforeQueueing(t *testing.T) {
	ctx := context.Background()
	s := startDispatchServer(t)
	client, err := worker.NewClient(worker.ClientOptions{BaseURL: s.url, WorkerID: "producer", RequestTimeout: 5 * time.Second})
	require.NoError(t, err)

	notes := strings.Repeat("x", model.MaxPayloadBytes)
	_, err = client.Emit(ctx, model.EventEvidenceSnapshot, map[string]any{"case_id": "CASE-7", "notes": notes}, 2)
	var statusErr *worker.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)

	stats, err := s.jobs.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Jobs.Pending)
}
