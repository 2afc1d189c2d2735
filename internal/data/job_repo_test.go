package data

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/case-dispatch/internal/domain/model"
	"github.com/target/case-dispatch/internal/testutil"
)

func TestJobRepo_Create(t *testing.T) {
	forEachDialect(t, func(t *testing.T, f repoFixture) {
		repo := NewJobRepo(f.db, f.cfg())
		ctx := context.Background()

		tests := []struct {
			name    string
			req     *model.CreateJobRequest
			wantErr string
		}{
			{
				name: "valid job",
				req:  testutil.NewJobRequest().WithEventType(model.EventEvidenceSnapshot).WithPriority(2).ForCase("C-1").Build(),
			},
			{
				name: "defaults priority and payload",
				req:  &model.CreateJobRequest{EventType: model.EventWeeklyBriefing},
			},
			{
				name:    "missing event type",
				req:     &model.CreateJobRequest{Payload: json.RawMessage(`{}`)},
				wantErr: "event type is required",
			},
			{
				name:    "priority out of range",
				req:     &model.CreateJobRequest{EventType: "X", Priority: 9},
				wantErr: "priority",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				job, err := repo.Create(ctx, tt.req)
				if tt.wantErr != "" {
					require.Error(t, err)
					assert.Contains(t, err.Error(), tt.wantErr)
					return
				}
				require.NoError(t, err)
				assert.Positive(t, job.ID)
				assert.Equal(t, model.JobStatusPending, job.Status)
				assert.Equal(t, tt.req.EventType, job.EventType)
				assert.Equal(t, testutil.TestTime(), job.CreatedAt)
				assert.Nil(t, job.ClaimedAt)
				assert.Nil(t, job.WorkerID)
				assert.Zero(t, job.Retries)
				assert.True(t, json.Valid(job.Payload))
			})
		}
	})
}

func TestJobRepo_ClaimOrdersByPriorityThenAge(t *testing.T) {
	forEachDialect(t, func(t *testing.T, f repoFixture) {
		repo := NewJobRepo(f.db, f.cfg())
		ctx := context.Background()

		var ids []int64
		for _, p := range []int{3, 1, 2} {
			job, err := repo.Create(ctx, testutil.NewJobRequest().WithPriority(p).Build())
			require.NoError(t, err)
			ids = append(ids, job.ID)
			f.clock.AddTime(time.Second)
		}
		// Same priority as the first job but newer: must come after it.
		late, err := repo.Create(ctx, testutil.NewJobRequest().WithPriority(3).Build())
		require.NoError(t, err)

		want := []int64{ids[1], ids[2], ids[0], late.ID}
		for _, id := range want {
			job, claimErr := repo.Claim(ctx, model.ClaimJobRequest{WorkerID: "worker-1"})
			require.NoError(t, claimErr)
			assert.Equal(t, id, job.ID)
			assert.Equal(t, model.JobStatusClaimed, job.Status)
			require.NotNil(t, job.WorkerID)
			assert.Equal(t, "worker-1", *job.WorkerID)
			require.NotNil(t, job.ClaimedAt)
		}

		_, err = repo.Claim(ctx, model.ClaimJobRequest{WorkerID: "worker-1"})
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)
	})
}

func TestJobRepo_ClaimFiltersByType(t *testing.T) {
	forEachDialect(t, func(t *testing.T, f repoFixture) {
		repo := NewJobRepo(f.db, f.cfg())
		ctx := context.Background()

		_, err := repo.Create(ctx, testutil.NewJobRequest().WithEventType(model.EventCertifiedMailDispatch).WithPriority(1).Build())
		require.NoError(t, err)
		draft, err := repo.Create(ctx, testutil.NewJobRequest().WithEventType(model.EventFollowupNoticeDraft).WithPriority(3).Build())
		require.NoError(t, err)

		job, err := repo.Claim(ctx, model.ClaimJobRequest{
			WorkerID: "w",
			Types:    []string{model.EventFollowupNoticeDraft, model.EventEvidenceSnapshot},
		})
		require.NoError(t, err)
		assert.Equal(t, draft.ID, job.ID)

		_, err = repo.Claim(ctx, model.ClaimJobRequest{WorkerID: "w", Types: []string{model.EventEvidenceSnapshot}})
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)

		pending, err := repo.Pending(ctx, "", 0)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, model.EventCertifiedMailDispatch, pending[0].EventType)
	})
}

func TestJobRepo_ClaimIsExclusive(t *testing.T) {
	forEachDialect(t, func(t *testing.T, f repoFixture) {
		repo := NewJobRepo(f.db, f.cfg())
		ctx := context.Background()

		const jobs = 5
		const workers = 12
		for range jobs {
			_, err := repo.Create(ctx, testutil.NewJobRequest().Build())
			require.NoError(t, err)
		}

		var (
			mu      sync.Mutex
			claimed = map[int64]int{}
			wg      sync.WaitGroup
		)
		for i := range workers {
			wg.Add(1)
			go func(worker int) {
				defer wg.Done()
				job, err := repo.Claim(ctx, model.ClaimJobRequest{WorkerID: "w" + string(rune('a'+worker))})
				if errors.Is(err, model.ErrNoJobsAvailable) {
					return
				}
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}(i)
		}
		wg.Wait()

		assert.Len(t, claimed, jobs)
		for id, n := range claimed {
			assert.Equal(t, 1, n, "job %d claimed more than once", id)
		}
	})
}

func TestJobRepo_Complete(t *testing.T) {
	forEachDialect(t, func(t *testing.T, f repoFixture) {
		repo := NewJobRepo(f.db, f.cfg())
		ctx := context.Background()

		created, err := repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)
		_, err = repo.Claim(ctx, model.ClaimJobRequest{WorkerID: "w1"})
		require.NoError(t, err)

		f.clock.AddTime(time.Minute)
		done, err := repo.Complete(ctx, model.CompleteJobRequest{
			JobID:  created.ID,
			Status: model.JobStatusCompleted,
			Result: json.RawMessage(`{"ok":true}`),
		})
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, done.Status)
		require.NotNil(t, done.CompletedAt)
		assert.Equal(t, testutil.TestTime().Add(time.Minute), *done.CompletedAt)
		require.NotNil(t, done.WorkerID)
		assert.Equal(t, "w1", *done.WorkerID, "worker id is kept when the report omits it")
		assert.JSONEq(t, `{"ok":true}`, string(done.Result))

		// A repeated report overwrites the outcome.
		again, err := repo.Complete(ctx, model.CompleteJobRequest{
			JobID:    created.ID,
			WorkerID: "w2",
			Status:   model.JobStatusFailed,
		})
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, again.Status)
		assert.Equal(t, "w2", *again.WorkerID)
		assert.Empty(t, again.Result)

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.JobCounts{Failed: 1}, stats.Jobs)

		_, err = repo.Complete(ctx, model.CompleteJobRequest{JobID: 9999, Status: model.JobStatusCompleted})
		require.ErrorIs(t, err, model.ErrJobNotFound)
	})
}

func TestJobRepo_GetByID(t *testing.T) {
	forEachDialect(t, func(t *testing.T, f repoFixture) {
		repo := NewJobRepo(f.db, f.cfg())
		ctx := context.Background()

		created, err := repo.Create(ctx, testutil.NewJobRequest().ForCase("C-7").Build())
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "C-7", got.PayloadString("case_id"))

		_, err = repo.GetByID(ctx, created.ID+100)
		require.ErrorIs(t, err, model.ErrJobNotFound)
	})
}

func TestJobRepo_PendingAndStats(t *testing.T) {
	forEachDialect(t, func(t *testing.T, f repoFixture) {
		repo := NewJobRepo(f.db, f.cfg())
		timeline := NewTimelineRepo(f.db, f.cfg())
		ctx := context.Background()

		for _, et := range []string{model.EventEvidenceSnapshot, model.EventEvidenceSnapshot, model.EventFollowupNoticeSend} {
			_, err := repo.Create(ctx, testutil.NewJobRequest().WithEventType(et).Build())
			require.NoError(t, err)
		}
		_, err := repo.Claim(ctx, model.ClaimJobRequest{WorkerID: "w", Types: []string{model.EventFollowupNoticeSend}})
		require.NoError(t, err)

		for _, c := range []string{"C-1", "C-1", "C-2"} {
			_, err = timeline.Append(ctx, &model.AppendTimelineRequest{
				CaseID: c, Event: model.TimelineNoticeSent, At: f.clock.Now(),
			})
			require.NoError(t, err)
		}

		pending, err := repo.Pending(ctx, model.EventEvidenceSnapshot, 1)
		require.NoError(t, err)
		assert.Len(t, pending, 1)

		pending, err = repo.Pending(ctx, "", 0)
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.JobCounts{Pending: 2, Claimed: 1}, stats.Jobs)
		assert.Equal(t, 3, stats.TimelineEvents)
		assert.Equal(t, 2, stats.ActiveCases)
	})
}

func TestJobRepo_WaitForNotificationUnsupportedOnSQLite(t *testing.T) {
	repo := NewJobRepo(testutil.SetupSQLiteDB(t), RepoConfig{Dialect: DialectSQLite})
	err := repo.WaitForNotification(context.Background())
	require.ErrorIs(t, err, ErrNotificationsUnsupported)
}

func TestDialect_Rebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b IN ($2, $3)", DialectPostgres.Rebind("a = ? AND b IN (?, ?)"))
	assert.Equal(t, "a = ?", DialectSQLite.Rebind("a = ?"))
}

func TestDBTime_Scan(t *testing.T) {
	var ts dbTime
	require.NoError(t, ts.Scan("2024-01-01T12:00:00.000000000Z"))
	assert.Equal(t, testutil.TestTime(), ts.Time)

	require.NoError(t, ts.Scan(nil))
	assert.Nil(t, ts.Ptr())

	require.Error(t, ts.Scan(42))
}
