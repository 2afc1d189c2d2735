package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/target/case-dispatch/internal/core"
	"github.com/target/case-dispatch/internal/domain/model"
	apperrors "github.com/target/case-dispatch/internal/errors"
)

// CaseRecordsOptions groups dependencies for CaseRecords.
type CaseRecordsOptions struct {
	Evidence      core.EvidenceRepository      // Required
	CertifiedMail core.CertifiedMailRepository // Required
	Logger        *slog.Logger
}

// CaseRecords keeps the evidence and certified-mail bookkeeping of cases. It subscribes to job
// completions and ingested events, and serves the read side of both tables.
type CaseRecords struct {
	evidence core.EvidenceRepository
	mail     core.CertifiedMailRepository
	logger   *slog.Logger
}

// NewCaseRecords constructs a CaseRecords service.
func NewCaseRecords(opts CaseRecordsOptions) (*CaseRecords, error) {
	if opts.Evidence == nil {
		return nil, errors.New("EvidenceRepository is required")
	}
	if opts.CertifiedMail == nil {
		return nil, errors.New("CertifiedMailRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CaseRecords{
		evidence: opts.Evidence,
		mail:     opts.CertifiedMail,
		logger:   logger.With("component", "case_records"),
	}, nil
}

// JobCompleted records evidence snapshots and certified mailings reported by workers.
// Failed jobs leave no record.
func (c *CaseRecords) JobCompleted(ctx context.Context, job *model.Job) error {
	if job == nil || job.Status != model.JobStatusCompleted {
		return nil
	}
	switch job.EventType {
	case model.EventEvidenceSnapshot:
		return c.recordEvidence(ctx, job)
	case model.EventCertifiedMailDispatch:
		return c.recordDispatch(ctx, job)
	default:
		return nil
	}
}

// JobEmitted records CERTIFIED_MAIL_SUBMITTED events carrying a tracking number. The dispatch
// completion usually records the same mailing first; the tracking number keeps this idempotent.
func (c *CaseRecords) JobEmitted(ctx context.Context, e Emission) error {
	if e.Job == nil || e.Source != SourceIngest || e.Job.EventType != model.EventCertifiedMailSubmitted {
		return nil
	}
	job := e.Job
	if job.PayloadString("tracking_number") == "" {
		return nil
	}
	return c.recordMail(ctx, job.Payload, job.ID, job.CreatedAt)
}

func (c *CaseRecords) recordEvidence(ctx context.Context, job *model.Job) error {
	caseID := firstNonEmpty(job.ResultString("case_id"), job.PayloadString("case_id"))
	if caseID == "" {
		return fmt.Errorf("evidence snapshot job %d has no case id", job.ID)
	}

	kind := "snapshot"
	if level := firstNonEmpty(job.PayloadString("level"), job.ResultString("level")); level != "" {
		kind += "_" + level
	}
	ref := firstNonEmpty(job.ResultString("ref"), fmt.Sprintf("job:%d", job.ID))
	hash := job.ResultString("hash")
	if hash == "" {
		sum := sha256.Sum256(job.Result)
		hash = hex.EncodeToString(sum[:])
	}

	rec, err := c.evidence.Create(ctx, &model.CreateEvidenceRequest{
		CaseID: caseID,
		Kind:   kind,
		Ref:    ref,
		Hash:   &hash,
		JobID:  &job.ID,
	})
	if err != nil {
		return fmt.Errorf("record evidence for job %d: %w", job.ID, err)
	}
	c.logger.InfoContext(ctx, "evidence recorded", "case_id", caseID, "kind", kind, "evidence_id", rec.ID)
	return nil
}

func (c *CaseRecords) recordDispatch(ctx context.Context, job *model.Job) error {
	var mailedAt time.Time
	if job.CompletedAt != nil {
		mailedAt = *job.CompletedAt
	}
	// The result describes the mailing; the payload only knows the case.
	merged := map[string]any{"case_id": job.PayloadString("case_id")}
	if len(job.Result) > 0 {
		var result map[string]any
		if err := json.Unmarshal(job.Result, &result); err == nil {
			for k, v := range result {
				merged[k] = v
			}
		}
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode dispatch result: %w", err)
	}
	return c.recordMail(ctx, raw, job.ID, mailedAt)
}

func (c *CaseRecords) recordMail(ctx context.Context, raw json.RawMessage, jobID int64, mailedAt time.Time) error {
	src := &model.Job{Payload: raw}
	tracking := src.PayloadString("tracking_number")
	if tracking == "" {
		return fmt.Errorf("certified mail for job %d has no tracking number", jobID)
	}

	status := model.MailStatusSubmitted
	if s := src.PayloadString("status"); s != "" {
		parsed, err := model.ParseMailStatus(s)
		if err != nil {
			return fmt.Errorf("certified mail for job %d: %w", jobID, err)
		}
		status = parsed
	}

	var recipient *string
	if r := src.PayloadString("recipient"); r != "" {
		recipient = &r
	}
	meta, err := json.Marshal(map[string]any{
		"job_id":          jobID,
		"provider_job_id": src.PayloadString("provider_job_id"),
	})
	if err != nil {
		return fmt.Errorf("encode certified mail metadata: %w", err)
	}

	rec, err := c.mail.Create(ctx, &model.CreateCertifiedMailRequest{
		CaseID:         src.PayloadString("case_id"),
		TrackingNumber: tracking,
		Provider:       firstNonEmpty(src.PayloadString("provider"), "UNKNOWN"),
		Status:         status,
		MailedAt:       mailedAt,
		Recipient:      recipient,
		Metadata:       meta,
	})
	if err != nil {
		return fmt.Errorf("record certified mail %s: %w", tracking, err)
	}
	c.logger.InfoContext(ctx, "certified mail recorded",
		"case_id", rec.CaseID,
		"tracking_number", rec.TrackingNumber,
		"status", rec.Status,
	)
	return nil
}

// Evidence lists the evidence records of a case.
func (c *CaseRecords) Evidence(ctx context.Context, caseID string) ([]*model.EvidenceRecord, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, apperrors.ValidationField("case_id", "case id is required")
	}
	recs, err := c.evidence.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("list evidence for case %s: %w", caseID, err)
	}
	return recs, nil
}

// CertifiedMail lists the mailings of a case.
func (c *CaseRecords) CertifiedMail(ctx context.Context, caseID string) ([]*model.CertifiedMailRecord, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, apperrors.ValidationField("case_id", "case id is required")
	}
	recs, err := c.mail.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("list certified mail for case %s: %w", caseID, err)
	}
	return recs, nil
}

// UpdateMailStatus applies a provider status callback.
func (c *CaseRecords) UpdateMailStatus(
	ctx context.Context,
	req model.UpdateMailStatusRequest,
) (*model.CertifiedMailRecord, error) {
	req.TrackingNumber = strings.TrimSpace(req.TrackingNumber)
	if req.TrackingNumber == "" {
		return nil, apperrors.ValidationField("tracking_number", "tracking number is required")
	}
	status, err := model.ParseMailStatus(string(req.Status))
	if err != nil {
		return nil, apperrors.ValidationField("status", err.Error())
	}
	req.Status = status

	rec, err := c.mail.UpdateStatus(ctx, req)
	switch {
	case errors.Is(err, model.ErrCertifiedMailNotFound):
		return nil, apperrors.Wrap(err, apperrors.ErrCodeNotFound,
			fmt.Sprintf("certified mail %s not found", req.TrackingNumber))
	case errors.Is(err, model.ErrInvalidMailTransition):
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConflict, err.Error())
	case err != nil:
		return nil, fmt.Errorf("update certified mail %s: %w", req.TrackingNumber, err)
	}
	c.logger.InfoContext(ctx, "certified mail status updated",
		"tracking_number", rec.TrackingNumber,
		"status", rec.Status,
	)
	return rec, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var (
	_ CompletionSubscriber = (*CaseRecords)(nil)
	_ EmitSubscriber       = (*CaseRecords)(nil)
)
