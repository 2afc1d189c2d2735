package core

import (
	"context"
	"database/sql"

	"github.com/target/case-dispatch/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Services depend on these interfaces; internal/data provides the Postgres and SQLite implementations.

// JobRepository defines the interface for job store operations.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id int64) (*model.Job, error)
	// Claim transitions the next matching PENDING job to CLAIMED with a single conditional
	// update. It returns model.ErrNoJobsAvailable when nothing matches or the race was lost.
	Claim(ctx context.Context, req model.ClaimJobRequest) (*model.Job, error)
	// Complete records a terminal status unconditionally; repeated calls overwrite the outcome.
	Complete(ctx context.Context, req model.CompleteJobRequest) (*model.Job, error)
	Pending(ctx context.Context, eventType string, limit int) ([]*model.Job, error)
	Stats(ctx context.Context) (*model.DispatchStats, error)
	// WaitForNotification blocks until another process reports new work.
	// Storage engines without cross-process notifications return ErrNotificationsUnsupported.
	WaitForNotification(ctx context.Context) error
}

// JobRepositoryTx defines transactional job creation support.
type JobRepositoryTx interface {
	CreateInTx(ctx context.Context, tx *sql.Tx, req *model.CreateJobRequest) (*model.Job, error)
}

// TimelineRepository defines the interface for the append-only case timeline.
type TimelineRepository interface {
	Append(ctx context.Context, req *model.AppendTimelineRequest) (*model.TimelineEntry, error)
	AppendInTx(ctx context.Context, tx *sql.Tx, req *model.AppendTimelineRequest) (*model.TimelineEntry, error)
	// InsertMarkerInTx appends an escalation marker unless one already exists for the case.
	// It reports whether the marker was written.
	InsertMarkerInTx(ctx context.Context, tx *sql.Tx, req *model.AppendTimelineRequest) (bool, error)
	// LatestNotices returns the most recent NOTICE_SENT timestamp of every case.
	LatestNotices(ctx context.Context) ([]model.NoticeClock, error)
	// FiredMarkers returns the escalation markers already recorded, keyed by case id.
	FiredMarkers(ctx context.Context) (map[string]map[string]bool, error)
	ListByCase(ctx context.Context, caseID string, limit int) ([]*model.TimelineEntry, error)
	WithTx(ctx context.Context, fn func(*sql.Tx) error) error
}

// EvidenceRepository defines the interface for evidence records.
type EvidenceRepository interface {
	Create(ctx context.Context, req *model.CreateEvidenceRequest) (*model.EvidenceRecord, error)
	ListByCase(ctx context.Context, caseID string) ([]*model.EvidenceRecord, error)
}

// CertifiedMailRepository defines the interface for certified mail tracking.
type CertifiedMailRepository interface {
	// Create inserts a mailing; an existing tracking number returns the stored record unchanged.
	Create(ctx context.Context, req *model.CreateCertifiedMailRequest) (*model.CertifiedMailRecord, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*model.CertifiedMailRecord, error)
	ListByCase(ctx context.Context, caseID string) ([]*model.CertifiedMailRecord, error)
	UpdateStatus(ctx context.Context, req model.UpdateMailStatusRequest) (*model.CertifiedMailRecord, error)
}
