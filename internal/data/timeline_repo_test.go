package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/case-dispatch/internal/domain/model"
	"github.com/target/case-dispatch/internal/testutil"
)

func TestTimelineRepo_AppendAndList(t *testing.T) {
	forEachDialect(t, func(t *testing.T, f repoFixture) {
		repo := NewTimelineRepo(f.db, f.cfg())
		ctx := context.Background()

		start := testutil.TestTime()
		_, err := repo.Append(ctx, &model.AppendTimelineRequest{
			CaseID: "C-1", Event: model.EventResponseReceived, At: start.Add(hours(2)),
		})
		require.NoError(t, err)
		first, err := repo.Append(ctx, &model.AppendTimelineRequest{
			CaseID:   "C-1",
			Event:    model.TimelineNoticeSent,
			At:       start,
			Metadata: json.RawMessage(`{"recipient":"ops@example.com"}`),
		})
		require.NoError(t, err)
		assert.Positive(t, first.ID)
		assert.Equal(t, start, first.Timestamp)

		entries, err := repo.ListByCase(ctx, "C-1", 0)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, model.TimelineNoticeSent, entries[0].Event)
		assert.JSONEq(t, `{"recipient":"ops@example.com"}`, string(entries[0].Metadata))
		assert.Equal(t, model.EventResponseReceived, entries[1].Event)

		_, err = repo.Append(ctx, &model.AppendTimelineRequest{Event: model.TimelineNoticeSent, At: start})
		require.Error(t, err)
	})
}

func TestTimelineRepo_LatestNotices(t *testing.T) {
	forEachDialect(t, func(t *testing.T, f repoFixture) {
		repo := NewTimelineRepo(f.db, f.cfg())
		ctx := context.Background()
		start := testutil.TestTime()

		appends := []model.AppendTimelineRequest{
			{CaseID: "C-2", Event: model.TimelineNoticeSent, At: start},
			{CaseID: "C-1", Event: model.TimelineNoticeSent, At: start},
			{CaseID: "C-1", Event: model.TimelineNoticeSent, At: start.Add(hours(10))},
			{CaseID: "C-3", Event: model.EventResponseReceived, At: start},
		}
		for i := range appends {
			_, err := repo.Append(ctx, &appends[i])
			require.NoError(t, err)
		}

		clocks, err := repo.LatestNotices(ctx)
		require.NoError(t, err)
		assert.Equal(t, []model.NoticeClock{
			{CaseID: "C-1", SentAt: start.Add(hours(10))},
			{CaseID: "C-2", SentAt: start},
		}, clocks)
	})
}

func TestTimelineRepo_InsertMarkerInTxIsIdempotent(t *testing.T) {
	forEachDialect(t, func(t *testing.T, f repoFixture) {
		repo := NewTimelineRepo(f.db, f.cfg())
		ctx := context.Background()

		insert := func(caseID, marker string) bool {
			var inserted bool
			err := repo.WithTx(ctx, func(tx *sql.Tx) error {
				var insErr error
				inserted, insErr = repo.InsertMarkerInTx(ctx, tx, &model.AppendTimelineRequest{
					CaseID: caseID, Event: marker, At: f.clock.Now(),
				})
				return insErr
			})
			require.NoError(t, err)
			return inserted
		}

		assert.True(t, insert("C-1", model.MarkerEscalation24H))
		assert.False(t, insert("C-1", model.MarkerEscalation24H))
		assert.True(t, insert("C-1", model.MarkerEscalation48H))
		assert.True(t, insert("C-2", model.MarkerEscalation24H))

		fired, err := repo.FiredMarkers(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]map[string]bool{
			"C-1": {model.MarkerEscalation24H: true, model.MarkerEscalation48H: true},
			"C-2": {model.MarkerEscalation24H: true},
		}, fired)

		// Ordinary events may repeat.
		for range 2 {
			_, err = repo.Append(ctx, &model.AppendTimelineRequest{
				CaseID: "C-1", Event: model.TimelineNoticeSent, At: f.clock.Now(),
			})
			require.NoError(t, err)
		}
	})
}

func TestTimelineRepo_WithTxRollsBack(t *testing.T) {
	forEachDialect(t, func(t *testing.T, f repoFixture) {
		repo := NewTimelineRepo(f.db, f.cfg())
		jobs := NewJobRepo(f.db, f.cfg())
		ctx := context.Background()
		boom := errors.New("boom")

		err := repo.WithTx(ctx, func(tx *sql.Tx) error {
			if _, createErr := jobs.CreateInTx(ctx, tx, testutil.NewJobRequest().Build()); createErr != nil {
				return createErr
			}
			if _, appendErr := repo.AppendInTx(ctx, tx, &model.AppendTimelineRequest{
				CaseID: "C-1", Event: model.MarkerEscalation72H, At: f.clock.Now(),
			}); appendErr != nil {
				return appendErr
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		stats, err := jobs.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.Jobs.Pending)
		assert.Zero(t, stats.TimelineEvents)
	})
}
