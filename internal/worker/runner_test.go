package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/case-dispatch/internal/domain/model"
)

type completion struct {
	jobID  int64
	status model.JobStatus
	result Result
}

// fakeDispatcher serves queued jobs and records completions. completeErrs are returned by the
// first Complete calls, in order.
type fakeDispatcher struct {
	mu           sync.Mutex
	jobs         []*model.Assignment
	nextErr      error
	completeErrs []error
	completions  []completion
	attempts     int
	gotTypes     []string
}

func (f *fakeDispatcher) Next(_ context.Context, types []string, _ time.Duration) (*model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotTypes = types
	if f.nextErr != nil {
		return nil, f.nextErr
	}
	if len(f.jobs) == 0 {
		return nil, nil
	}
	job := f.jobs[0]
	f.jobs = f.jobs[1:]
	return job, nil
}

func (f *fakeDispatcher) Complete(_ context.Context, jobID int64, status model.JobStatus, result any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if len(f.completeErrs) > 0 {
		err := f.completeErrs[0]
		f.completeErrs = f.completeErrs[1:]
		return err
	}
	f.completions = append(f.completions, completion{jobID: jobID, status: status, result: result.(Result)})
	return nil
}

func (f *fakeDispatcher) done() []completion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]completion(nil), f.completions...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func assignment(id int64, eventType, payload string) *model.Assignment {
	return &model.Assignment{ID: id, EventType: eventType, Payload: []byte(payload), Priority: 3}
}

func newTestRunner(t *testing.T, d Dispatcher, reg Registry) (*Runner, *[]time.Duration) {
	t.Helper()
	r, err := NewRunner(RunnerOptions{Client: d, Handlers: reg, Logger: quietLogger()})
	require.NoError(t, err)
	var mu sync.Mutex
	slept := &[]time.Duration{}
	r.sleep = func(ctx context.Context, d time.Duration) bool {
		mu.Lock()
		*slept = append(*slept, d)
		mu.Unlock()
		return ctx.Err() == nil
	}
	return r, slept
}

func TestNewRunner(t *testing.T) {
	_, err := NewRunner(RunnerOptions{Handlers: Registry{"X": EvidenceSnapshot}})
	assert.Error(t, err)
	_, err = NewRunner(RunnerOptions{Client: &fakeDispatcher{}})
	assert.Error(t, err)

	r, err := NewRunner(RunnerOptions{
		Client:   &fakeDispatcher{},
		Handlers: Registry{"B": EvidenceSnapshot, "A": EvidenceSnapshot},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, r.Types())
	assert.Equal(t, 1, r.workers)
	assert.Equal(t, DefaultPollWait, r.pollWait)
	assert.Equal(t, DefaultIdleBackoff, r.idleBackoff)
	assert.Equal(t, DefaultNetworkBackoff, r.networkBackoff)
	assert.Equal(t, DefaultErrorBackoff, r.errorBackoff)
}

func TestRunOnce_CompletesJob(t *testing.T) {
	d := &fakeDispatcher{jobs: []*model.Assignment{
		assignment(1, model.EventEvidenceSnapshot, `{"case_id":"C-1","level":"72h"}`),
	}}
	r, _ := newTestRunner(t, d, Registry{model.EventEvidenceSnapshot: EvidenceSnapshot})

	handled, err := r.RunOnce(context.Background())

	require.NoError(t, err)
	assert.True(t, handled)
	require.Len(t, d.done(), 1)
	c := d.done()[0]
	assert.Equal(t, int64(1), c.jobID)
	assert.Equal(t, model.JobStatusCompleted, c.status)
	assert.Equal(t, "snapshot:C-1:72h", c.result["ref"])
	assert.Equal(t, []string{model.EventEvidenceSnapshot}, d.gotTypes)
}

func TestRunOnce_Empty(t *testing.T) {
	r, _ := newTestRunner(t, &fakeDispatcher{}, Registry{"X": EvidenceSnapshot})

	handled, err := r.RunOnce(context.Background())

	require.NoError(t, err)
	assert.False(t, handled)
}

func TestProcess_FailureModes(t *testing.T) {
	boom := func(context.Context, *model.Assignment) (Result, error) { return nil, errors.New("printer on fire") }
	notOK := func(context.Context, *model.Assignment) (Result, error) {
		return Result{"ok": false, "reason": "recipient refused"}, nil
	}
	panics := func(context.Context, *model.Assignment) (Result, error) { panic("nil map") }
	nothing := func(context.Context, *model.Assignment) (Result, error) { return nil, nil }

	tests := []struct {
		name       string
		eventType  string
		wantStatus model.JobStatus
		wantError  string
	}{
		{name: "no handler", eventType: "UNKNOWN_TYPE", wantStatus: model.JobStatusFailed, wantError: "no handler for event_type=UNKNOWN_TYPE"},
		{name: "handler error", eventType: "BOOM", wantStatus: model.JobStatusFailed, wantError: "printer on fire"},
		{name: "ok false", eventType: "NOT_OK", wantStatus: model.JobStatusFailed},
		{name: "panic", eventType: "PANIC", wantStatus: model.JobStatusFailed, wantError: "handler panic: nil map"},
		{name: "nil result", eventType: "NOTHING", wantStatus: model.JobStatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{}
			r, _ := newTestRunner(t, d, Registry{"BOOM": boom, "NOT_OK": notOK, "PANIC": panics, "NOTHING": nothing})

			r.Process(context.Background(), assignment(5, tt.eventType, `{"case_id":"C-5"}`))

			require.Len(t, d.done(), 1)
			c := d.done()[0]
			assert.Equal(t, tt.wantStatus, c.status)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, c.result["error"])
				assert.Equal(t, false, c.result["ok"])
				assert.Equal(t, "C-5", c.result["case_id"])
			}
		})
	}
}

func TestProcess_RetriesCompletion(t *testing.T) {
	d := &fakeDispatcher{completeErrs: []error{
		&url.Error{Op: "Post", URL: "http://x/job/complete", Err: errors.New("connection refused")},
		&StatusError{Op: "complete", Status: 503},
	}}
	r, slept := newTestRunner(t, d, Registry{model.EventEvidenceSnapshot: EvidenceSnapshot})

	r.Process(context.Background(), assignment(9, model.EventEvidenceSnapshot, `{"case_id":"C-9"}`))

	assert.Equal(t, 3, d.attempts)
	require.Len(t, d.done(), 1)
	assert.Equal(t, []time.Duration{DefaultNetworkBackoff, 2 * DefaultNetworkBackoff}, *slept)
}

func TestProcess_RejectedCompletionIsFinal(t *testing.T) {
	d := &fakeDispatcher{completeErrs: []error{&StatusError{Op: "complete", Status: 404}}}
	r, slept := newTestRunner(t, d, Registry{model.EventEvidenceSnapshot: EvidenceSnapshot})

	r.Process(context.Background(), assignment(9, model.EventEvidenceSnapshot, `{"case_id":"C-9"}`))

	assert.Equal(t, 1, d.attempts)
	assert.Empty(t, d.done())
	assert.Empty(t, *slept)
}

func TestProcess_CompletionGivesUpWhenCancelled(t *testing.T) {
	d := &fakeDispatcher{completeErrs: []error{context.DeadlineExceeded}}
	r, _ := newTestRunner(t, d, Registry{model.EventEvidenceSnapshot: EvidenceSnapshot})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r.Process(ctx, assignment(9, model.EventEvidenceSnapshot, `{"case_id":"C-9"}`))

	assert.Equal(t, 1, d.attempts)
}

func TestRun_BacksOffAndKeepsGoing(t *testing.T) {
	d := &fakeDispatcher{nextErr: &url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")}}
	r, err := NewRunner(RunnerOptions{Client: d, Handlers: Registry{"X": EvidenceSnapshot}, Logger: quietLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var slept []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) bool {
		mu.Lock()
		defer mu.Unlock()
		slept = append(slept, d)
		if len(slept) == 3 {
			cancel()
		}
		return ctx.Err() == nil
	}

	require.NoError(t, r.Run(ctx))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []time.Duration{DefaultNetworkBackoff, DefaultNetworkBackoff, DefaultNetworkBackoff}, slept)
}

func TestRun_IdleAndServerErrorBackoff(t *testing.T) {
	d := &fakeDispatcher{}
	r, err := NewRunner(RunnerOptions{
		Client:       d,
		Handlers:     Registry{"X": EvidenceSnapshot},
		IdleBackoff:  time.Second,
		ErrorBackoff: 7 * time.Second,
		Logger:       quietLogger(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var slept []time.Duration
	r.sleep = func(ctx context.Context, dur time.Duration) bool {
		slept = append(slept, dur)
		if len(slept) == 1 {
			d.mu.Lock()
			d.nextErr = &StatusError{Op: "claim", Status: 500}
			d.mu.Unlock()
		} else {
			cancel()
		}
		return ctx.Err() == nil
	}

	require.NoError(t, r.Run(ctx))
	assert.Equal(t, []time.Duration{time.Second, 7 * time.Second}, slept)
}

func TestSleepCtx(t *testing.T) {
	assert.True(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepCtx(ctx, time.Hour))
}

func TestDefaultWorkerID(t *testing.T) {
	a, b := DefaultWorkerID(), DefaultWorkerID()
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
