package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/target/case-dispatch/config"
	"github.com/target/case-dispatch/internal/bootstrap"
	"github.com/target/case-dispatch/internal/worker"
)

type cliState struct {
	config config.WorkerConfig
	logger *slog.Logger

	server      string
	workerID    string
	types       string
	concurrency int
}

func newRootCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "casedispatch-worker",
		Short:         "Claim and process jobs from a case-dispatch server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			st.applyFlags()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&st.server, "server", "", "dispatch server URL (overrides WORKER_SERVER_URL)")
	flags.StringVar(&st.workerID, "worker-id", "", "worker id (overrides WORKER_ID)")
	flags.StringVar(&st.types, "types", "", "comma-separated event types to claim (overrides WORKER_TYPES)")
	flags.IntVar(&st.concurrency, "concurrency", 0, "number of pollers (overrides WORKER_CONCURRENCY)")

	cmd.AddCommand(newRunCmd(st), newOnceCmd(st), newHandlersCmd())
	return cmd
}

func (st *cliState) applyFlags() {
	if st.server != "" {
		st.config.ServerURL = st.server
	}
	if st.workerID != "" {
		st.config.ID = st.workerID
	}
	if st.types != "" {
		st.config.Types = strings.Split(st.types, ",")
	}
	if st.concurrency > 0 {
		st.config.Concurrency = st.concurrency
	}
	st.config.Sanitize()
}

func (st *cliState) runner() (*worker.Runner, error) {
	return bootstrap.NewWorkerRunner(bootstrap.WorkerRunnerConfig{
		Config: st.config,
		Logger: st.logger,
	})
}

func newRunCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll for jobs until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := st.runner()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runner.Run(ctx)
		},
	}
}

func newOnceCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Claim and process at most one job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := st.runner()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			handled, err := runner.RunOnce(ctx)
			if err != nil {
				return err
			}
			if !handled {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "no job available")
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "processed one job")
			return err
		},
	}
}

func newHandlersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "handlers",
		Short: "List the event types this worker can handle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Any emitter enables the certified-mail handler; nothing is sent while listing.
			registry := worker.DefaultHandlers(worker.HandlerOptions{Events: noopEmitter{}})
			for _, t := range registry.Types() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), t); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, string, any, int) (int64, error) { return 0, nil }
