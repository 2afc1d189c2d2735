// Package devseed loads a handful of demo cases into a development store.
package devseed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/case-dispatch/internal/domain/model"
	"github.com/target/case-dispatch/internal/service"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	Timeline *service.TimelineEngine
	Bus      *service.EventBus
}

// Summary reports what a seeding run changed.
type Summary struct {
	NoticesRecorded int
	CasesSkipped    int
	EventsIngested  int
}

// DemoNotices lists the notices recorded by Run.
func DemoNotices() []model.RecordNoticeRequest {
	return []model.RecordNoticeRequest{
		{CaseID: "DEMO-1001", Recipient: "Acme Property Management"},
		{CaseID: "DEMO-1002", Recipient: "Riverside Holdings LLC"},
		{CaseID: "DEMO-1003", Recipient: "J. Alvarez", Metadata: json.RawMessage(`{"unit":"4B"}`)},
	}
}

// Run records the demo notices and queues a weekly briefing. Cases that already have a
// timeline are left alone, so running it twice does not restart their clocks.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) (Summary, error) {
	var sum Summary
	if svcs.Timeline == nil {
		return sum, errors.New("devseed: timeline engine is required")
	}

	failures := 0
	for _, req := range DemoNotices() {
		created, err := seedNotice(ctx, svcs.Timeline, req)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed notice", "case_id", req.CaseID, "error", err)
			}
			failures++
			continue
		}
		if !created {
			sum.CasesSkipped++
			if logger != nil {
				logger.InfoContext(ctx, "case already seeded", "case_id", req.CaseID)
			}
			continue
		}
		sum.NoticesRecorded++
		if logger != nil {
			logger.InfoContext(ctx, "seeded notice", "case_id", req.CaseID)
		}
	}

	if svcs.Bus != nil && sum.NoticesRecorded > 0 {
		if _, err := svcs.Bus.Ingest(ctx, model.CreateJobRequest{EventType: model.EventWeeklyBriefing}); err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to queue weekly briefing", "error", err)
			}
			failures++
		} else {
			sum.EventsIngested++
		}
	}

	if failures > 0 {
		return sum, fmt.Errorf("%d seed errors; check logs", failures)
	}
	return sum, nil
}

func seedNotice(ctx context.Context, engine *service.TimelineEngine, req model.RecordNoticeRequest) (bool, error) {
	existing, err := engine.Timeline(ctx, req.CaseID, 1)
	if err != nil {
		return false, fmt.Errorf("load timeline: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}
	if _, err := engine.RecordNotice(ctx, req); err != nil {
		return false, err
	}
	return true, nil
}
