package devseed

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/case-dispatch/internal/data"
	"github.com/target/case-dispatch/internal/domain/model"
	"github.com/target/case-dispatch/internal/service"
	"github.com/target/case-dispatch/internal/testutil"
)

func newSeedServices(t *testing.T) (Services, *data.JobRepo) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := testutil.SetupSQLiteDB(t)
	cfg := data.RepoConfig{
		Dialect:      data.DialectSQLite,
		Logger:       logger,
		TimeProvider: data.NewFixedTimeProvider(testutil.TestTime()),
	}
	jobs := data.NewJobRepo(db, cfg)
	bus := service.MustNewEventBus(service.EventBusOptions{Repo: jobs, Logger: logger})
	engine := service.MustNewTimelineEngine(service.TimelineEngineOptions{
		Timeline: data.NewTimelineRepo(db, cfg),
		Bus:      bus,
		Clock:    cfg.TimeProvider,
		Logger:   logger,
	})
	return Services{Timeline: engine, Bus: bus}, jobs
}

func TestRun_SeedsOnce(t *testing.T) {
	ctx := context.Background()
	svcs, jobs := newSeedServices(t)

	sum, err := Run(ctx, svcs, nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{NoticesRecorded: len(DemoNotices()), EventsIngested: 1}, sum)

	sum, err = Run(ctx, svcs, nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{CasesSkipped: len(DemoNotices())}, sum)

	pending, err := jobs.Pending(ctx, model.EventWeeklyBriefing, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	watches, err := jobs.Pending(ctx, model.EventTimelineWatchStart, 10)
	require.NoError(t, err)
	assert.Len(t, watches, len(DemoNotices()))
}

func TestRun_RequiresTimeline(t *testing.T) {
	_, err := Run(context.Background(), Services{}, nil)
	require.Error(t, err)
}
