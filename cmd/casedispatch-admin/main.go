package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/target/case-dispatch/config"
	"github.com/target/case-dispatch/internal/bootstrap"
	"github.com/target/case-dispatch/internal/data"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 30 * time.Second
)

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	logger = bootstrap.NewLogger(cfg.Observability.Logging, os.Stderr)

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"tick": {
			name:        "tick",
			description: "Run one escalation sweep now",
			run:         runTick,
		},
		"stats": {
			name:        "stats",
			description: "Show job counts, timeline size and active cases",
			run:         runStats,
		},
		"pending": {
			name:        "pending",
			description: "List pending jobs in claim order",
			run:         runPending,
		},
		"emit": {
			name:        "emit",
			description: "Publish an event as a pending job",
			run:         runEmit,
		},
		"notice": {
			name:        "notice",
			description: "Record that a notice was sent for a case",
			run:         runNotice,
		},
		"seed": {
			name:        "seed",
			description: "Load demo cases into a development store",
			run:         runSeed,
		},
		"timeline": {
			name:        "timeline",
			description: "Show the timeline of a case",
			run:         runTimeline,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: casedispatch-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands()[name]
		if err := writef(w, "  %-12s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

func (cmdCtx *commandContext) out() io.Writer {
	if cmdCtx.Out == nil {
		return os.Stdout
	}
	return cmdCtx.Out
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseTimeoutFlags("migrate", defaultMigrationTimeout, args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB, dialect data.Dialect) error {
		cmdCtx.Logger.Info("running database migrations", "driver", dialect)
		if migrateErr := bootstrap.RunMigrations(ctx, db, dialect, cmdCtx.Logger); migrateErr != nil {
			return fmt.Errorf("run migrations: %w", migrateErr)
		}
		cmdCtx.Logger.Info("migrations completed successfully")
		return writeln(cmdCtx.out(), "migrations applied")
	})
}

func withDatabase(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, *sql.DB, data.Dialect) error,
) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, dialect, err := bootstrap.ConnectDB(ctx, bootstrap.DatabaseConfig{
		Storage:  cmdCtx.Config.Storage,
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db, dialect)
}

// withServices wires the domain services over the configured store. Narration sinks stay
// configured so operator actions are announced like server-side ones.
func withServices(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, bootstrap.ServiceContainer) error,
) error {
	return withDatabase(cmdCtx, timeout, func(ctx context.Context, db *sql.DB, dialect data.Dialect) error {
		cfg := cmdCtx.Config
		services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
			Config:  &cfg,
			DB:      db,
			Dialect: dialect,
			Logger:  cmdCtx.Logger,
		})
		if err != nil {
			return err
		}
		defer services.Jobs.Close()
		defer func() {
			if cerr := services.Observability.Close(); cerr != nil {
				cmdCtx.Logger.Warn("metrics close failed", "error", cerr)
			}
		}()
		return f(ctx, services)
	})
}

var errMissingFlag = errors.New("missing required flag")
