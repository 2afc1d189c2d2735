package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/target/case-dispatch/internal/domain/model"
)

// Result is the structured outcome reported with a completion. A result whose "ok" is false is
// reported as FAILED.
type Result map[string]any

// OK reports whether the result marks success.
func (r Result) OK() bool {
	ok, _ := r["ok"].(bool)
	return ok
}

// HandlerFunc executes one claimed job. A returned error fails the job with the error captured in
// the result.
type HandlerFunc func(ctx context.Context, job *model.Assignment) (Result, error)

// Registry maps event types to handlers.
type Registry map[string]HandlerFunc

// Types lists the registered event types, sorted.
func (r Registry) Types() []string {
	out := make([]string, 0, len(r))
	for t := range r {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

var errNoCaseID = errors.New("payload has no case_id")

// NoticeDrafter produces a follow-up notice draft and returns a reference to it.
type NoticeDrafter interface {
	Draft(ctx context.Context, caseID string, job *model.Assignment) (string, error)
}

// NoticeSender delivers a follow-up notice. sent is false when delivery was deferred.
type NoticeSender interface {
	Send(ctx context.Context, caseID string, job *model.Assignment) (sent bool, err error)
}

// MailSubmission describes a mailing accepted by a provider.
type MailSubmission struct {
	Provider       string `json:"provider"`
	ProviderJobID  string `json:"provider_job_id"`
	TrackingNumber string `json:"tracking_number"`
	Status         string `json:"status"`
}

// MailProvider submits certified mail for a case.
type MailProvider interface {
	Submit(ctx context.Context, caseID string, job *model.Assignment) (*MailSubmission, error)
}

// Emitter posts follow-on events. *Client implements it.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload any, priority int) (int64, error)
}

// LogNoticeDrafter only logs; the draft reference names the case.
type LogNoticeDrafter struct{ Logger *slog.Logger }

func (d LogNoticeDrafter) Draft(ctx context.Context, caseID string, _ *model.Assignment) (string, error) {
	loggerOrDefault(d.Logger).InfoContext(ctx, "drafting follow-up notice", "case_id", caseID)
	return "draft:" + caseID, nil
}

// LogNoticeSender only logs and reports the notice as not sent.
type LogNoticeSender struct{ Logger *slog.Logger }

func (s LogNoticeSender) Send(ctx context.Context, caseID string, _ *model.Assignment) (bool, error) {
	loggerOrDefault(s.Logger).InfoContext(ctx, "follow-up notice send deferred", "case_id", caseID)
	return false, nil
}

// DemoMailProvider simulates a Click2Mail submission.
type DemoMailProvider struct {
	Now func() time.Time
}

func (p DemoMailProvider) Submit(_ context.Context, caseID string, _ *model.Assignment) (*MailSubmission, error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	ts := now().Unix()
	return &MailSubmission{
		Provider:       "CLICK2MAIL",
		ProviderJobID:  fmt.Sprintf("demo-%s-%d", caseID, ts),
		TrackingNumber: fmt.Sprintf("USPS-%s-%d", caseID, ts),
		Status:         string(model.MailStatusSubmitted),
	}, nil
}

// HandlerOptions supplies the collaborators of the built-in handlers. Nil fields get the log-only
// or demo defaults.
type HandlerOptions struct {
	Drafter NoticeDrafter
	Sender  NoticeSender
	Mail    MailProvider
	Events  Emitter
	Logger  *slog.Logger
}

// DefaultHandlers returns the built-in handlers keyed by event type.
func DefaultHandlers(opts HandlerOptions) Registry {
	logger := loggerOrDefault(opts.Logger)
	if opts.Drafter == nil {
		opts.Drafter = LogNoticeDrafter{Logger: logger}
	}
	if opts.Sender == nil {
		opts.Sender = LogNoticeSender{Logger: logger}
	}
	if opts.Mail == nil {
		opts.Mail = DemoMailProvider{}
	}

	reg := Registry{
		model.EventEvidenceSnapshot:    EvidenceSnapshot,
		model.EventFollowupNoticeDraft: DraftNotice(opts.Drafter),
		model.EventFollowupNoticeSend:  SendNotice(opts.Sender),
	}
	if opts.Events != nil {
		reg[model.EventCertifiedMailDispatch] = DispatchCertifiedMail(opts.Mail, opts.Events, logger)
	}
	return reg
}

// EvidenceSnapshot fingerprints the job payload.
func EvidenceSnapshot(_ context.Context, job *model.Assignment) (Result, error) {
	caseID, err := caseIDOf(job)
	if err != nil {
		return nil, err
	}
	level := payloadString(job, "level")
	if level == "" {
		level = "unknown"
	}
	sum := sha256.Sum256(job.Payload)
	return Result{
		"ok":      true,
		"case_id": caseID,
		"level":   level,
		"ref":     fmt.Sprintf("snapshot:%s:%s", caseID, level),
		"hash":    hex.EncodeToString(sum[:]),
	}, nil
}

// DraftNotice drafts a follow-up notice through d.
func DraftNotice(d NoticeDrafter) HandlerFunc {
	return func(ctx context.Context, job *model.Assignment) (Result, error) {
		caseID, err := caseIDOf(job)
		if err != nil {
			return nil, err
		}
		ref, err := d.Draft(ctx, caseID, job)
		if err != nil {
			return nil, fmt.Errorf("draft notice: %w", err)
		}
		return Result{"ok": true, "case_id": caseID, "draft": ref}, nil
	}
}

// SendNotice sends a follow-up notice through s.
func SendNotice(s NoticeSender) HandlerFunc {
	return func(ctx context.Context, job *model.Assignment) (Result, error) {
		caseID, err := caseIDOf(job)
		if err != nil {
			return nil, err
		}
		sent, err := s.Send(ctx, caseID, job)
		if err != nil {
			return nil, fmt.Errorf("send notice: %w", err)
		}
		return Result{"ok": true, "case_id": caseID, "sent": sent}, nil
	}
}

// DispatchCertifiedMail submits a mailing and announces it with a CERTIFIED_MAIL_SUBMITTED event.
// A failed announcement is logged but does not fail the job: the mail has already gone out.
func DispatchCertifiedMail(p MailProvider, events Emitter, logger *slog.Logger) HandlerFunc {
	logger = loggerOrDefault(logger)
	return func(ctx context.Context, job *model.Assignment) (Result, error) {
		caseID, err := caseIDOf(job)
		if err != nil {
			return nil, err
		}
		sub, err := p.Submit(ctx, caseID, job)
		if err != nil {
			return nil, fmt.Errorf("submit certified mail: %w", err)
		}

		details := map[string]any{
			"case_id":         caseID,
			"provider":        sub.Provider,
			"provider_job_id": sub.ProviderJobID,
			"tracking_number": sub.TrackingNumber,
			"status":          sub.Status,
		}
		res := Result{"ok": true}
		for k, v := range details {
			res[k] = v
		}

		if _, emitErr := events.Emit(ctx, model.EventCertifiedMailSubmitted, details, model.PriorityHighest); emitErr != nil {
			logger.WarnContext(ctx, "announce certified mail",
				"case_id", caseID,
				"tracking_number", sub.TrackingNumber,
				"error", emitErr,
			)
			res["event_emitted"] = false
		} else {
			res["event_emitted"] = true
		}
		return res, nil
	}
}

func caseIDOf(job *model.Assignment) (string, error) {
	caseID := payloadString(job, "case_id")
	if caseID == "" {
		return "", errNoCaseID
	}
	return caseID, nil
}

func payloadString(job *model.Assignment, key string) string {
	return strings.TrimSpace((&model.Job{Payload: job.Payload}).PayloadString(key))
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
