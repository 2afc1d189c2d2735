package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/target/case-dispatch/internal/bootstrap"
)

func runStats(cmdCtx *commandContext, args []string) error {
	opts, err := parseStatsFlags(args)
	if err != nil {
		return err
	}

	return withServices(cmdCtx, defaultCommandTimeout, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
		stats, statsErr := svc.Jobs.Stats(ctx)
		if statsErr != nil {
			return fmt.Errorf("load stats: %w", statsErr)
		}
		if opts.JSON {
			return printJSON(cmdCtx.out(), stats)
		}

		w := tabwriter.NewWriter(cmdCtx.out(), 0, 4, 2, ' ', 0)
		rows := []struct {
			label string
			value int
		}{
			{"Pending", stats.Jobs.Pending},
			{"Claimed", stats.Jobs.Claimed},
			{"Completed", stats.Jobs.Completed},
			{"Failed", stats.Jobs.Failed},
			{"Timeline events", stats.TimelineEvents},
			{"Active cases", stats.ActiveCases},
		}
		if err := writeln(w, "Metric\tValue"); err != nil {
			return fmt.Errorf("write stats header: %w", err)
		}
		for _, row := range rows {
			if err := writef(w, "%s\t%d\n", row.label, row.value); err != nil {
				return fmt.Errorf("write stats row %q: %w", row.label, err)
			}
		}
		return w.Flush()
	})
}

func runPending(cmdCtx *commandContext, args []string) error {
	opts, err := parsePendingFlags(args)
	if err != nil {
		return err
	}

	return withServices(cmdCtx, defaultCommandTimeout, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
		jobs, listErr := svc.Bus.Pending(ctx, opts.EventType, opts.Limit)
		if listErr != nil {
			return listErr
		}
		if len(jobs) == 0 {
			return writeln(cmdCtx.out(), "no pending jobs")
		}

		w := tabwriter.NewWriter(cmdCtx.out(), 0, 4, 2, ' ', 0)
		if err := writeln(w, "ID\tEVENT TYPE\tPRIORITY\tCREATED\tCASE"); err != nil {
			return fmt.Errorf("write pending header: %w", err)
		}
		for _, j := range jobs {
			caseID := j.PayloadString("case_id")
			if caseID == "" {
				caseID = "-"
			}
			if err := writef(w, "%d\t%s\t%d\t%s\t%s\n", j.ID, j.EventType, j.Priority, formatTime(j.CreatedAt), caseID); err != nil {
				return fmt.Errorf("write pending job %d: %w", j.ID, err)
			}
		}
		return w.Flush()
	})
}

func runEmit(cmdCtx *commandContext, args []string) error {
	opts, err := parseEmitFlags(args)
	if err != nil {
		return err
	}

	return withServices(cmdCtx, defaultCommandTimeout, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
		res, emitErr := svc.Bus.Ingest(ctx, opts.Request)
		if emitErr != nil {
			return fmt.Errorf("emit %s: %w", opts.Request.EventType, emitErr)
		}
		return writef(cmdCtx.out(), "%s %s as job %d (priority %d)\n",
			res.Ack, res.Job.EventType, res.Job.ID, res.Job.Priority)
	})
}
