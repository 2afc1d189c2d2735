package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/target/case-dispatch/internal/bootstrap"
	"github.com/target/case-dispatch/internal/devseed"
)

func runTick(cmdCtx *commandContext, args []string) error {
	opts, err := parseTimeoutFlags("tick", defaultCommandTimeout, args)
	if err != nil {
		return err
	}

	return withServices(cmdCtx, opts.Timeout, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
		res, tickErr := svc.Timeline.Tick(ctx)
		if tickErr != nil {
			return fmt.Errorf("tick: %w", tickErr)
		}
		if err := writef(cmdCtx.out(), "cases evaluated: %d\nfired: %d\njobs queued: %d\nerrors: %d\n",
			res.CasesEvaluated, res.Fired, res.JobsQueued, res.Errors); err != nil {
			return err
		}
		for _, m := range res.FiredMarkers {
			if err := writef(cmdCtx.out(), "  %s\n", m); err != nil {
				return err
			}
		}
		return nil
	})
}

func runNotice(cmdCtx *commandContext, args []string) error {
	opts, err := parseNoticeFlags(args)
	if err != nil {
		return err
	}

	return withServices(cmdCtx, defaultCommandTimeout, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
		res, recErr := svc.Timeline.RecordNotice(ctx, opts.Request)
		if recErr != nil {
			return fmt.Errorf("record notice: %w", recErr)
		}
		var watchID int64
		if res.WatchJob != nil {
			watchID = res.WatchJob.ID
		}
		return writef(cmdCtx.out(), "notice recorded for case %s (watch job %d)\n", res.CaseID, watchID)
	})
}

func runTimeline(cmdCtx *commandContext, args []string) error {
	opts, err := parseTimelineFlags(args)
	if err != nil {
		return err
	}

	return withServices(cmdCtx, defaultCommandTimeout, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
		entries, listErr := svc.Timeline.Timeline(ctx, opts.CaseID, opts.Limit)
		if listErr != nil {
			return listErr
		}
		if len(entries) == 0 {
			return writef(cmdCtx.out(), "no timeline entries for case %s\n", opts.CaseID)
		}

		w := tabwriter.NewWriter(cmdCtx.out(), 0, 4, 2, ' ', 0)
		if err := writeln(w, "ID\tEVENT\tTIMESTAMP"); err != nil {
			return fmt.Errorf("write timeline header: %w", err)
		}
		for _, e := range entries {
			if err := writef(w, "%d\t%s\t%s\n", e.ID, e.Event, formatTime(e.Timestamp)); err != nil {
				return fmt.Errorf("write timeline entry %d: %w", e.ID, err)
			}
		}
		return w.Flush()
	})
}

func runSeed(cmdCtx *commandContext, args []string) error {
	opts, err := parseSeedFlags(args)
	if err != nil {
		return err
	}
	if !cmdCtx.Config.IsDev && !opts.Force {
		return errors.New("refusing to seed outside development; pass --force to override")
	}

	return withServices(cmdCtx, defaultCommandTimeout, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
		sum, seedErr := devseed.Run(ctx, devseed.Services{Timeline: svc.Timeline, Bus: svc.Bus}, cmdCtx.Logger)
		if seedErr != nil {
			return fmt.Errorf("seed: %w", seedErr)
		}
		return writef(cmdCtx.out(), "seeded %d notices (%d cases already present, %d events queued)\n",
			sum.NoticesRecorded, sum.CasesSkipped, sum.EventsIngested)
	})
}
