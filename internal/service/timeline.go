package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/target/case-dispatch/internal/core"
	"github.com/target/case-dispatch/internal/domain/escalation"
	"github.com/target/case-dispatch/internal/domain/model"
	apperrors "github.com/target/case-dispatch/internal/errors"
	"github.com/target/case-dispatch/internal/observability/metrics"
	"github.com/target/case-dispatch/internal/observability/statsd"
)

// errAlreadyFired rolls back a fire whose marker another sweep recorded first.
var errAlreadyFired = errors.New("escalation already fired")

// Clock supplies the current time. data.TimeProvider implementations satisfy it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// TimelineEngineOptions groups dependencies for TimelineEngine.
type TimelineEngineOptions struct {
	Timeline core.TimelineRepository // Required
	Bus      *EventBus               // Required; must support EmitInTx
	Ladder   escalation.Ladder       // Optional: defaults to escalation.DefaultLadder
	Clock    Clock                   // Optional: defaults to UTC wall clock
	Narrator Narrator                // Optional
	Metrics  statsd.Sink             // Optional
	Logger   *slog.Logger            // Optional
}

// TimelineEngine records notices and turns elapsed time into escalation jobs, at most once per
// case and threshold.
type TimelineEngine struct {
	timeline core.TimelineRepository
	bus      *EventBus
	ladder   escalation.Ladder
	clock    Clock
	narrator Narrator
	metrics  statsd.Sink
	logger   *slog.Logger
}

// NewTimelineEngine constructs a TimelineEngine.
func NewTimelineEngine(opts TimelineEngineOptions) (*TimelineEngine, error) {
	if opts.Timeline == nil {
		return nil, errors.New("TimelineRepository is required")
	}
	if opts.Bus == nil {
		return nil, errors.New("EventBus is required")
	}

	ladder := opts.Ladder
	if len(ladder) == 0 {
		ladder = escalation.DefaultLadder()
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &TimelineEngine{
		timeline: opts.Timeline,
		bus:      opts.Bus,
		ladder:   ladder.Sorted(),
		clock:    clock,
		narrator: opts.Narrator,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "timeline_engine"),
	}, nil
}

// MustNewTimelineEngine constructs a TimelineEngine and panics on error.
func MustNewTimelineEngine(opts TimelineEngineOptions) *TimelineEngine {
	e, err := NewTimelineEngine(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create TimelineEngine: %v", err))
	}
	return e
}

// NoticeResult is the outcome of RecordNotice.
type NoticeResult struct {
	CaseID    string               `json:"case_id"`
	Recipient string               `json:"recipient,omitempty"`
	Entry     *model.TimelineEntry `json:"entry"`
	WatchJob  *model.Job           `json:"watch_job"`
}

// RecordNotice appends NOTICE_SENT for the case, starting or restarting its clock, and queues a
// TIMELINE_WATCH_START job in the same transaction.
func (e *TimelineEngine) RecordNotice(ctx context.Context, req model.RecordNoticeRequest) (*NoticeResult, error) {
	req.CaseID = strings.TrimSpace(req.CaseID)
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}

	entryMeta, err := noticeMetadata(req, false)
	if err != nil {
		return nil, err
	}
	payload, err := noticeMetadata(req, true)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	res := &NoticeResult{CaseID: req.CaseID, Recipient: req.Recipient}
	err = e.timeline.WithTx(ctx, func(tx *sql.Tx) error {
		entry, appendErr := e.timeline.AppendInTx(ctx, tx, &model.AppendTimelineRequest{
			CaseID:   req.CaseID,
			Event:    model.TimelineNoticeSent,
			At:       now,
			Metadata: entryMeta,
		})
		if appendErr != nil {
			return appendErr
		}
		job, emitErr := e.bus.EmitInTx(ctx, tx, &model.CreateJobRequest{
			EventType: model.EventTimelineWatchStart,
			Payload:   payload,
			Priority:  model.PriorityDefault,
		})
		if emitErr != nil {
			return emitErr
		}
		res.Entry = entry
		res.WatchJob = job
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record notice for case %s: %w", req.CaseID, err)
	}

	e.bus.Publish(ctx, SourceNotice, res.WatchJob)
	e.narrate(ctx, model.Narration{
		Persona:  model.PersonaSintraPrime,
		Message:  fmt.Sprintf("Notice recorded for case %s. Escalation timeline started.", req.CaseID),
		Priority: model.PriorityDefault,
		CaseID:   req.CaseID,
		Source:   SourceNotice,
	})
	return res, nil
}

func noticeMetadata(req model.RecordNoticeRequest, withCase bool) (json.RawMessage, error) {
	m := map[string]any{}
	if withCase {
		m["case_id"] = req.CaseID
	}
	if req.Recipient != "" {
		m["recipient"] = req.Recipient
	}
	if len(req.Metadata) > 0 {
		m["metadata"] = req.Metadata
	}
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode notice metadata: %w", err)
	}
	return raw, nil
}

// Tick runs one sweep: every case's latest notice is compared with the ladder and at most one
// threshold fires per case. A threshold that already fired is skipped silently. Per-case failures
// are counted and logged; only failures to read the timeline are returned.
func (e *TimelineEngine) Tick(ctx context.Context) (model.TickResult, error) {
	start := time.Now()
	res, err := e.sweep(ctx)

	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultError
	case res.Fired == 0:
		result = metrics.ResultNoop
	}
	metrics.EmitSweep(e.metrics, metrics.SweepMetric{
		Result:         result,
		Duration:       time.Since(start),
		CasesEvaluated: res.CasesEvaluated,
		Fired:          res.Fired,
		JobsQueued:     res.JobsQueued,
		Errors:         res.Errors,
		Err:            err,
	})

	if err != nil {
		return res, err
	}
	if res.Fired > 0 || res.Errors > 0 {
		e.logger.InfoContext(ctx, "timeline sweep finished",
			"cases_evaluated", res.CasesEvaluated,
			"fired", res.Fired,
			"jobs_queued", res.JobsQueued,
			"errors", res.Errors,
			"duration", time.Since(start),
		)
	}
	return res, nil
}

func (e *TimelineEngine) sweep(ctx context.Context) (model.TickResult, error) {
	var res model.TickResult

	clocks, err := e.timeline.LatestNotices(ctx)
	if err != nil {
		return res, fmt.Errorf("load notice clocks: %w", err)
	}
	fired, err := e.timeline.FiredMarkers(ctx)
	if err != nil {
		return res, fmt.Errorf("load escalation markers: %w", err)
	}

	now := e.clock.Now()
	for _, c := range clocks {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		res.CasesEvaluated++

		lvl, due := e.ladder.Due(now.Sub(c.SentAt), fired[c.CaseID])
		if !due {
			continue
		}

		jobs, fireErr := e.fire(ctx, c, lvl, now)
		if errors.Is(fireErr, errAlreadyFired) {
			e.logger.DebugContext(ctx, "escalation already recorded", "case_id", c.CaseID, "threshold", lvl.Name)
			continue
		}
		if fireErr != nil {
			res.Errors++
			e.logger.ErrorContext(ctx, "escalation failed",
				"case_id", c.CaseID,
				"threshold", lvl.Name,
				"error", fireErr,
			)
			continue
		}

		res.Fired++
		res.JobsQueued += len(jobs)
		res.FiredMarkers = append(res.FiredMarkers, c.CaseID+":"+lvl.Marker)
		metrics.EmitEscalation(e.metrics, lvl.Name)
		e.logger.InfoContext(ctx, "escalation fired",
			"case_id", c.CaseID,
			"threshold", lvl.Name,
			"jobs", len(jobs),
		)

		e.bus.Publish(ctx, SourceTimeline, jobs...)
		e.narrate(ctx, lvl.Narration(c.CaseID))
	}
	return res, nil
}

// fire queues the level's jobs and records its marker in one transaction. When the marker
// already exists the transaction rolls back and errAlreadyFired is returned.
func (e *TimelineEngine) fire(
	ctx context.Context,
	c model.NoticeClock,
	lvl escalation.Level,
	now time.Time,
) ([]*model.Job, error) {
	reqs, err := lvl.Jobs(c.CaseID, c.SentAt)
	if err != nil {
		return nil, err
	}

	var jobs []*model.Job
	err = e.timeline.WithTx(ctx, func(tx *sql.Tx) error {
		jobs = jobs[:0]
		ids := make([]int64, 0, len(reqs))
		for i := range reqs {
			job, emitErr := e.bus.EmitInTx(ctx, tx, &reqs[i])
			if emitErr != nil {
				return emitErr
			}
			jobs = append(jobs, job)
			ids = append(ids, job.ID)
		}

		meta, metaErr := json.Marshal(map[string]any{
			"threshold": lvl.Name,
			"since":     c.SentAt.UTC().Format(time.RFC3339),
			"job_ids":   ids,
		})
		if metaErr != nil {
			return fmt.Errorf("encode marker metadata: %w", metaErr)
		}

		inserted, markErr := e.timeline.InsertMarkerInTx(ctx, tx, &model.AppendTimelineRequest{
			CaseID:   c.CaseID,
			Event:    lvl.Marker,
			At:       now,
			Metadata: meta,
		})
		if markErr != nil {
			return markErr
		}
		if !inserted {
			return errAlreadyFired
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Timeline returns the entries of a case, oldest first.
func (e *TimelineEngine) Timeline(ctx context.Context, caseID string, limit int) ([]*model.TimelineEntry, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, apperrors.ValidationField("case_id", "case id is required")
	}
	entries, err := e.timeline.ListByCase(ctx, caseID, limit)
	if err != nil {
		return nil, fmt.Errorf("list timeline for case %s: %w", caseID, err)
	}
	return entries, nil
}

func (e *TimelineEngine) narrate(ctx context.Context, n model.Narration) {
	if e.narrator == nil {
		return
	}
	e.narrator.Narrate(ctx, n)
}
