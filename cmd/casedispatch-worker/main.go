package main

import (
	"context"
	"os"

	"github.com/target/case-dispatch/internal/bootstrap"
)

func main() {
	logger := bootstrap.InitLogger()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	logger = bootstrap.NewLogger(cfg.Observability.Logging, os.Stderr)

	root := newRootCmd(&cliState{config: cfg.Worker, logger: logger})
	if err := root.Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}
