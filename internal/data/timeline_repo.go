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

const defaultTimelineLimit = 200

// TimelineRepo stores the append-only case timeline.
type TimelineRepo struct {
	DB      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewTimelineRepo creates a new TimelineRepo.
func NewTimelineRepo(db *sql.DB, cfg RepoConfig) *TimelineRepo {
	cfg = cfg.normalized()
	return &TimelineRepo{
		DB:      db,
		dialect: cfg.Dialect,
		logger:  cfg.Logger.With("component", "timeline_repo"),
	}
}

const timelineColumns = `id, case_id, event, occurred_at, metadata`

func scanTimelineEntry(scanner rowScanner) (*model.TimelineEntry, error) {
	var (
		e        model.TimelineEntry
		at       dbTime
		metadata []byte
	)
	if err := scanner.Scan(&e.ID, &e.CaseID, &e.Event, &at, &metadata); err != nil {
		return nil, err
	}
	e.Timestamp = at.Time
	if len(metadata) > 0 {
		e.Metadata = append([]byte(nil), metadata...)
	}
	return &e, nil
}

// WithTx runs fn inside a transaction on the timeline database.
func (r *TimelineRepo) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{Fn: fn})
}

// Append writes a timeline entry in its own transaction.
func (r *TimelineRepo) Append(ctx context.Context, req *model.AppendTimelineRequest) (*model.TimelineEntry, error) {
	var entry *model.TimelineEntry
	err := r.WithTx(ctx, func(tx *sql.Tx) error {
		var appendErr error
		entry, appendErr = r.AppendInTx(ctx, tx, req)
		return appendErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// AppendInTx writes a timeline entry within tx.
func (r *TimelineRepo) AppendInTx(
	ctx context.Context,
	tx *sql.Tx,
	req *model.AppendTimelineRequest,
) (*model.TimelineEntry, error) {
	if req == nil {
		return nil, errors.New("append timeline request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := r.dialect.Rebind(`
		INSERT INTO timelines (case_id, event, occurred_at, metadata)
		VALUES (?, ?, ?, ?)
		RETURNING ` + timelineColumns)
	entry, err := scanTimelineEntry(tx.QueryRowContext(ctx, query,
		strings.TrimSpace(req.CaseID),
		req.Event,
		r.dialect.TimeArg(req.At),
		JSONArg(req.Metadata),
	))
	if err != nil {
		return nil, fmt.Errorf("append timeline entry: %w", err)
	}
	return entry, nil
}

// InsertMarkerInTx appends an escalation marker unless the case already has it. The unique
// marker index turns a duplicate into a no-op, so concurrent sweeps cannot both succeed.
func (r *TimelineRepo) InsertMarkerInTx(
	ctx context.Context,
	tx *sql.Tx,
	req *model.AppendTimelineRequest,
) (bool, error) {
	if req == nil {
		return false, errors.New("append timeline request is required")
	}
	if err := req.Validate(); err != nil {
		return false, err
	}

	query := r.dialect.Rebind(`
		INSERT INTO timelines (case_id, event, occurred_at, metadata)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING`)
	res, err := tx.ExecContext(ctx, query,
		strings.TrimSpace(req.CaseID),
		req.Event,
		r.dialect.TimeArg(req.At),
		JSONArg(req.Metadata),
	)
	if err != nil {
		return false, fmt.Errorf("insert escalation marker: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert escalation marker: %w", err)
	}
	return n == 1, nil
}

// LatestNotices returns the most recent NOTICE_SENT time of every case, ordered by case id.
func (r *TimelineRepo) LatestNotices(ctx context.Context) ([]model.NoticeClock, error) {
	query := r.dialect.Rebind(`
		SELECT case_id, MAX(occurred_at)
		FROM timelines
		WHERE event = ?
		GROUP BY case_id
		ORDER BY case_id`)
	rows, err := r.DB.QueryContext(ctx, query, model.TimelineNoticeSent)
	if err != nil {
		return nil, fmt.Errorf("list notice clocks: %w", err)
	}
	defer rows.Close()

	var clocks []model.NoticeClock
	for rows.Next() {
		var (
			c  model.NoticeClock
			at dbTime
		)
		if scanErr := rows.Scan(&c.CaseID, &at); scanErr != nil {
			return nil, fmt.Errorf("scan notice clock: %w", scanErr)
		}
		c.SentAt = at.Time
		clocks = append(clocks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notice clocks: %w", err)
	}
	return clocks, nil
}

// FiredMarkers returns every recorded escalation marker keyed by case id.
func (r *TimelineRepo) FiredMarkers(ctx context.Context) (map[string]map[string]bool, error) {
	markers := model.EscalationMarkers()
	args := make([]any, len(markers))
	for i, m := range markers {
		args[i] = m
	}

	query := r.dialect.Rebind(`
		SELECT case_id, event FROM timelines
		WHERE event IN (` + inPlaceholders(len(markers)) + `)`)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list escalation markers: %w", err)
	}
	defer rows.Close()

	fired := make(map[string]map[string]bool)
	for rows.Next() {
		var caseID, event string
		if scanErr := rows.Scan(&caseID, &event); scanErr != nil {
			return nil, fmt.Errorf("scan escalation marker: %w", scanErr)
		}
		if fired[caseID] == nil {
			fired[caseID] = make(map[string]bool)
		}
		fired[caseID][event] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escalation markers: %w", err)
	}
	return fired, nil
}

// ListByCase returns the timeline of a case in chronological order.
func (r *TimelineRepo) ListByCase(ctx context.Context, caseID string, limit int) ([]*model.TimelineEntry, error) {
	if limit <= 0 {
		limit = defaultTimelineLimit
	}
	query := r.dialect.Rebind(`
		SELECT ` + timelineColumns + `
		FROM timelines
		WHERE case_id = ?
		ORDER BY occurred_at ASC, id ASC
		LIMIT ?`)
	rows, err := r.DB.QueryContext(ctx, query, strings.TrimSpace(caseID), limit)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	defer rows.Close()

	var entries []*model.TimelineEntry
	for rows.Next() {
		e, scanErr := scanTimelineEntry(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan timeline entry: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline: %w", err)
	}
	return entries, nil
}
