package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/case-dispatch/internal/data/pgxutil"
	"github.com/target/case-dispatch/internal/domain/model"
)

// EvidenceRepo stores append-only evidence records.
type EvidenceRepo struct {
	DB           *sql.DB
	dialect      Dialect
	timeProvider TimeProvider
}

// NewEvidenceRepo creates a new EvidenceRepo.
func NewEvidenceRepo(db *sql.DB, cfg RepoConfig) *EvidenceRepo {
	cfg = cfg.normalized()
	return &EvidenceRepo{DB: db, dialect: cfg.Dialect, timeProvider: cfg.TimeProvider}
}

const evidenceColumns = `id, case_id, kind, ref, created_at, hash, job_id`

func scanEvidence(scanner rowScanner) (*model.EvidenceRecord, error) {
	var (
		rec   model.EvidenceRecord
		at    dbTime
		hash  sql.NullString
		jobID sql.NullInt64
	)
	if err := scanner.Scan(&rec.ID, &rec.CaseID, &rec.Kind, &rec.Ref, &at, &hash, &jobID); err != nil {
		return nil, err
	}
	rec.CreatedAt = at.Time
	rec.Hash = cloneNullableString(hash)
	if jobID.Valid {
		id := jobID.Int64
		rec.JobID = &id
	}
	return &rec, nil
}

// Create appends an evidence record. When the request names a job that already produced a
// record, the stored record is returned unchanged.
func (r *EvidenceRepo) Create(ctx context.Context, req *model.CreateEvidenceRequest) (*model.EvidenceRecord, error) {
	if req == nil {
		return nil, errors.New("create evidence request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var jobID any
	if req.JobID != nil {
		jobID = *req.JobID
	}
	query := r.dialect.Rebind(`
		INSERT INTO evidence (case_id, kind, ref, created_at, hash, job_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO NOTHING
		RETURNING ` + evidenceColumns)
	rec, err := scanEvidence(r.DB.QueryRowContext(ctx, query,
		strings.TrimSpace(req.CaseID),
		req.Kind,
		req.Ref,
		r.dialect.TimeArg(r.timeProvider.Now()),
		NullStringArg(req.Hash),
		jobID,
	))
	if errors.Is(err, sql.ErrNoRows) && req.JobID != nil {
		return r.getByJobID(ctx, *req.JobID)
	}
	if err != nil {
		return nil, fmt.Errorf("insert evidence: %w", err)
	}
	return rec, nil
}

func (r *EvidenceRepo) getByJobID(ctx context.Context, jobID int64) (*model.EvidenceRecord, error) {
	query := r.dialect.Rebind(`SELECT ` + evidenceColumns + ` FROM evidence WHERE job_id = ?`)
	rec, err := scanEvidence(r.DB.QueryRowContext(ctx, query, jobID))
	if err != nil {
		return nil, fmt.Errorf("load evidence for job %d: %w", jobID, err)
	}
	return rec, nil
}

// ListByCase returns the evidence of a case, oldest first.
func (r *EvidenceRepo) ListByCase(ctx context.Context, caseID string) ([]*model.EvidenceRecord, error) {
	query := r.dialect.Rebind(`SELECT ` + evidenceColumns + ` FROM evidence WHERE case_id = ? ORDER BY created_at, id`)
	rows, err := r.DB.QueryContext(ctx, query, strings.TrimSpace(caseID))
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	var out []*model.EvidenceRecord
	for rows.Next() {
		rec, scanErr := scanEvidence(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan evidence: %w", scanErr)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CertifiedMailRepo tracks outbound certified mailings.
type CertifiedMailRepo struct {
	DB           *sql.DB
	dialect      Dialect
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewCertifiedMailRepo creates a new CertifiedMailRepo.
func NewCertifiedMailRepo(db *sql.DB, cfg RepoConfig) *CertifiedMailRepo {
	cfg = cfg.normalized()
	return &CertifiedMailRepo{
		DB:           db,
		dialect:      cfg.Dialect,
		timeProvider: cfg.TimeProvider,
		logger:       cfg.Logger.With("component", "certified_mail_repo"),
	}
}

const certifiedMailColumns = `id, case_id, tracking_number, provider, status, mailed_at, delivered_at, recipient, metadata`

func scanCertifiedMail(scanner rowScanner) (*model.CertifiedMailRecord, error) {
	var (
		rec                   model.CertifiedMailRecord
		mailedAt, deliveredAt dbTime
		recipient             sql.NullString
		metadata              []byte
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.CaseID,
		&rec.TrackingNumber,
		&rec.Provider,
		&rec.Status,
		&mailedAt,
		&deliveredAt,
		&recipient,
		&metadata,
	); err != nil {
		return nil, err
	}
	rec.MailedAt = mailedAt.Ptr()
	rec.DeliveredAt = deliveredAt.Ptr()
	rec.Recipient = cloneNullableString(recipient)
	if len(metadata) > 0 {
		rec.Metadata = append([]byte(nil), metadata...)
	}
	return &rec, nil
}

// Create inserts a mailing. A tracking number that already exists is left untouched and the
// stored record is returned, so a repeated dispatch completion does not fail.
func (r *CertifiedMailRepo) Create(
	ctx context.Context,
	req *model.CreateCertifiedMailRequest,
) (*model.CertifiedMailRecord, error) {
	if req == nil {
		return nil, errors.New("create certified mail request is required")
	}
	if req.Status == "" {
		req.Status = model.MailStatusSubmitted
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	mailedAt := req.MailedAt
	if mailedAt.IsZero() {
		mailedAt = r.timeProvider.Now()
	}

	query := r.dialect.Rebind(`
		INSERT INTO certified_mail (case_id, tracking_number, provider, status, mailed_at, recipient, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tracking_number) DO NOTHING`)
	if _, err := r.DB.ExecContext(ctx, query,
		strings.TrimSpace(req.CaseID),
		strings.TrimSpace(req.TrackingNumber),
		req.Provider,
		string(req.Status),
		r.dialect.TimeArg(mailedAt),
		NullStringArg(req.Recipient),
		JSONArg(req.Metadata),
	); err != nil {
		return nil, fmt.Errorf("insert certified mail: %w", err)
	}
	return r.GetByTrackingNumber(ctx, req.TrackingNumber)
}

// GetByTrackingNumber retrieves a mailing by tracking number.
func (r *CertifiedMailRepo) GetByTrackingNumber(
	ctx context.Context,
	trackingNumber string,
) (*model.CertifiedMailRecord, error) {
	return r.getByTrackingNumber(ctx, r.DB, trackingNumber)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *CertifiedMailRepo) getByTrackingNumber(
	ctx context.Context,
	q queryRower,
	trackingNumber string,
) (*model.CertifiedMailRecord, error) {
	query := r.dialect.Rebind(`SELECT ` + certifiedMailColumns + ` FROM certified_mail WHERE tracking_number = ?`)
	rec, err := scanCertifiedMail(q.QueryRowContext(ctx, query, strings.TrimSpace(trackingNumber)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrCertifiedMailNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get certified mail: %w", err)
	}
	return rec, nil
}

// ListByCase returns the mailings of a case, oldest first.
func (r *CertifiedMailRepo) ListByCase(ctx context.Context, caseID string) ([]*model.CertifiedMailRecord, error) {
	query := r.dialect.Rebind(`SELECT ` + certifiedMailColumns + ` FROM certified_mail WHERE case_id = ? ORDER BY mailed_at, id`)
	rows, err := r.DB.QueryContext(ctx, query, strings.TrimSpace(caseID))
	if err != nil {
		return nil, fmt.Errorf("list certified mail: %w", err)
	}
	defer rows.Close()

	var out []*model.CertifiedMailRecord
	for rows.Next() {
		rec, scanErr := scanCertifiedMail(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan certified mail: %w", scanErr)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateStatus applies a provider status callback. Backwards transitions are rejected with
// model.ErrInvalidMailTransition; DELIVERED stamps delivered_at.
func (r *CertifiedMailRepo) UpdateStatus(
	ctx context.Context,
	req model.UpdateMailStatusRequest,
) (*model.CertifiedMailRecord, error) {
	next, err := model.ParseMailStatus(string(req.Status))
	if err != nil {
		return nil, err
	}

	var updated *model.CertifiedMailRecord
	txErr := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			current, getErr := r.getByTrackingNumber(ctx, tx, req.TrackingNumber)
			if getErr != nil {
				return getErr
			}
			if !current.Status.CanTransition(next) {
				return fmt.Errorf("%w: %s -> %s", model.ErrInvalidMailTransition, current.Status, next)
			}

			deliveredAt := current.DeliveredAt
			if next == model.MailStatusDelivered && deliveredAt == nil {
				at := r.timeProvider.Now()
				if req.DeliveredAt != nil {
					at = *req.DeliveredAt
				}
				deliveredAt = &at
			}

			query := r.dialect.Rebind(`
				UPDATE certified_mail SET status = ?, delivered_at = ?
				WHERE id = ?
				RETURNING ` + certifiedMailColumns)
			rec, updErr := scanCertifiedMail(tx.QueryRowContext(ctx, query,
				string(next),
				r.dialect.NullTimeArg(deliveredAt),
				current.ID,
			))
			if updErr != nil {
				return fmt.Errorf("update certified mail: %w", updErr)
			}
			updated = rec
			return nil
		},
	})
	if txErr != nil {
		return nil, txErr
	}
	return updated, nil
}
