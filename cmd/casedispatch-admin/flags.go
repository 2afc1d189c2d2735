package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/target/case-dispatch/internal/domain/model"
)

type timeoutOptions struct {
	Timeout time.Duration
}

func parseTimeoutFlags(name string, def time.Duration, args []string) (timeoutOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := timeoutOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", def, "Maximum duration to wait for the command to complete")

	if err := fs.Parse(args); err != nil {
		return timeoutOptions{}, err
	}
	if opts.Timeout <= 0 {
		return timeoutOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

type statsOptions struct {
	JSON bool
}

func parseStatsFlags(args []string) (statsOptions, error) {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts statsOptions
	fs.BoolVar(&opts.JSON, "json", false, "Print raw JSON")
	if err := fs.Parse(args); err != nil {
		return statsOptions{}, err
	}
	return opts, nil
}

type pendingOptions struct {
	EventType string
	Limit     int
}

func parsePendingFlags(args []string) (pendingOptions, error) {
	fs := flag.NewFlagSet("pending", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts pendingOptions
	fs.StringVar(&opts.EventType, "type", "", "Only list jobs of this event type")
	fs.IntVar(&opts.Limit, "limit", 10, "Maximum number of jobs to list (max 500)")
	if err := fs.Parse(args); err != nil {
		return pendingOptions{}, err
	}
	if opts.Limit < 1 || opts.Limit > 500 {
		return pendingOptions{}, errors.New("--limit must be between 1 and 500")
	}
	opts.EventType = strings.TrimSpace(opts.EventType)
	return opts, nil
}

type emitOptions struct {
	Request model.CreateJobRequest
}

func parseEmitFlags(args []string) (emitOptions, error) {
	fs := flag.NewFlagSet("emit", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		eventType string
		payload   string
		priority  int
	)
	fs.StringVar(&eventType, "type", "", "Event type (required)")
	fs.StringVar(&payload, "payload", "{}", "JSON object payload")
	fs.IntVar(&priority, "priority", model.PriorityDefault, "Priority 1 (most urgent) to 5")
	if err := fs.Parse(args); err != nil {
		return emitOptions{}, err
	}

	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return emitOptions{}, fmt.Errorf("%w: --type", errMissingFlag)
	}
	raw := json.RawMessage(strings.TrimSpace(payload))
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return emitOptions{}, fmt.Errorf("--payload must be a JSON object: %w", err)
	}

	return emitOptions{Request: model.CreateJobRequest{
		EventType: eventType,
		Payload:   raw,
		Priority:  priority,
	}}, nil
}

type noticeOptions struct {
	Request model.RecordNoticeRequest
}

func parseNoticeFlags(args []string) (noticeOptions, error) {
	fs := flag.NewFlagSet("notice", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts noticeOptions
	fs.StringVar(&opts.Request.CaseID, "case", "", "Case id (required)")
	fs.StringVar(&opts.Request.Recipient, "recipient", "", "Who the notice was sent to")
	if err := fs.Parse(args); err != nil {
		return noticeOptions{}, err
	}
	opts.Request.CaseID = strings.TrimSpace(opts.Request.CaseID)
	if opts.Request.CaseID == "" {
		return noticeOptions{}, fmt.Errorf("%w: --case", errMissingFlag)
	}
	return opts, nil
}

type timelineOptions struct {
	CaseID string
	Limit  int
}

func parseTimelineFlags(args []string) (timelineOptions, error) {
	fs := flag.NewFlagSet("timeline", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts timelineOptions
	fs.StringVar(&opts.CaseID, "case", "", "Case id (required)")
	fs.IntVar(&opts.Limit, "limit", 200, "Maximum number of entries")
	if err := fs.Parse(args); err != nil {
		return timelineOptions{}, err
	}
	opts.CaseID = strings.TrimSpace(opts.CaseID)
	if opts.CaseID == "" {
		return timelineOptions{}, fmt.Errorf("%w: --case", errMissingFlag)
	}
	if opts.Limit < 1 {
		return timelineOptions{}, errors.New("--limit must be greater than zero")
	}
	return opts, nil
}

type seedOptions struct {
	Force bool
}

func parseSeedFlags(args []string) (seedOptions, error) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts seedOptions
	fs.BoolVar(&opts.Force, "force", false, "Seed even when the environment is not marked as development")
	if err := fs.Parse(args); err != nil {
		return seedOptions{}, err
	}
	return opts, nil
}
