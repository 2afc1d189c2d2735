package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/target/case-dispatch/internal/data"
	"github.com/target/case-dispatch/internal/domain/model"
	"github.com/target/case-dispatch/internal/mocks"
	"github.com/target/case-dispatch/internal/testutil"
	"go.uber.org/mock/gomock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingNarrator struct {
	mu  sync.Mutex
	got []model.Narration
}

func (r *recordingNarrator) Narrate(_ context.Context, n model.Narration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
}

func (r *recordingNarrator) all() []model.Narration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Narration(nil), r.got...)
}

// countingNotifier records Notify calls.
type countingNotifier struct {
	mu       sync.Mutex
	notified int
	stopped  bool
}

func (n *countingNotifier) Subscribe() (func(), <-chan struct{}) {
	ch := make(chan struct{})
	return func() {}, ch
}

func (n *countingNotifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified++
}

func (n *countingNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopped = true
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notified
}

// txJobRepo joins the two job repository mocks so the bus can emit inside transactions.
type txJobRepo struct {
	*mocks.MockJobRepository
	*mocks.MockJobRepositoryTx
}

func newTxJobRepo(ctrl *gomock.Controller) *txJobRepo {
	return &txJobRepo{
		MockJobRepository:   mocks.NewMockJobRepository(ctrl),
		MockJobRepositoryTx: mocks.NewMockJobRepositoryTx(ctrl),
	}
}

// runTx makes a mocked WithTx invoke its callback without a real transaction.
func runTx(_ context.Context, fn func(*sql.Tx) error) error {
	return fn(nil)
}

// sqliteStack wires the services over a migrated SQLite database with a fixed clock.
type sqliteStack struct {
	db       *sql.DB
	clock    *data.FixedTimeProvider
	jobs     *data.JobRepo
	timeline *data.TimelineRepo
	evidence *data.EvidenceRepo
	mail     *data.CertifiedMailRepo
	narrator *recordingNarrator
	records  *CaseRecords
	bus      *EventBus
	jobSvc   *JobService
	engine   *TimelineEngine
}

func newSQLiteStack(t *testing.T) *sqliteStack {
	t.Helper()

	db := testutil.SetupSQLiteDB(t)
	clock := data.NewFixedTimeProvider(testutil.TestTime())
	cfg := data.RepoConfig{Dialect: data.DialectSQLite, Logger: discardLogger(), TimeProvider: clock}

	s := &sqliteStack{
		db:       db,
		clock:    clock,
		jobs:     data.NewJobRepo(db, cfg),
		timeline: data.NewTimelineRepo(db, cfg),
		evidence: data.NewEvidenceRepo(db, cfg),
		mail:     data.NewCertifiedMailRepo(db, cfg),
		narrator: &recordingNarrator{},
	}

	records, err := NewCaseRecords(CaseRecordsOptions{
		Evidence:      s.evidence,
		CertifiedMail: s.mail,
		Logger:        discardLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	s.records = records

	narration := NewNarrationSubscriber(s.narrator)
	s.jobSvc = MustNewJobService(JobServiceOptions{
		Repo:        s.jobs,
		Logger:      discardLogger(),
		Subscribers: []CompletionSubscriber{records, narration},
	})
	t.Cleanup(s.jobSvc.Close)

	s.bus = MustNewEventBus(EventBusOptions{
		Repo:        s.jobs,
		Notifier:    s.jobSvc.Notifier(),
		Logger:      discardLogger(),
		Subscribers: []EmitSubscriber{records, narration},
	})
	s.engine = MustNewTimelineEngine(TimelineEngineOptions{
		Timeline: s.timeline,
		Bus:      s.bus,
		Clock:    clock,
		Narrator: s.narrator,
		Logger:   discardLogger(),
	})
	return s
}
