package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/target/case-dispatch/internal/data/pgxutil"
	"github.com/target/case-dispatch/internal/domain/model"
)

// jobsAddedChannel is the LISTEN/NOTIFY channel signalled after every insert.
const jobsAddedChannel = "jobs_added"

const (
	defaultPendingLimit = 10
	maxPendingLimit     = 500
)

// Create inserts a new PENDING job.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}

	var job *model.Job
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var insertErr error
			job, insertErr = r.CreateInTx(ctx, tx, req)
			return insertErr
		},
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// CreateInTx inserts a job within an existing SQL transaction.
func (r *JobRepo) CreateInTx(ctx context.Context, tx *sql.Tx, req *model.CreateJobRequest) (*model.Job, error) {
	if tx == nil {
		return nil, errors.New("transaction is required")
	}
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := r.dialect.Rebind(`
		INSERT INTO jobs (event_type, payload, status, priority, created_at, retries)
		VALUES (?, ?, 'PENDING', ?, ?, 0)
		RETURNING ` + jobColumns)

	job, err := scanJob(tx.QueryRowContext(ctx, query,
		req.EventType,
		string(req.Payload),
		req.Priority,
		r.dialect.TimeArg(r.timeProvider.Now()),
	))
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	if r.dialect == DialectPostgres {
		if _, execErr := tx.ExecContext(ctx, `SELECT pg_notify($1::text, $2::text)`, jobsAddedChannel, job.EventType); execErr != nil {
			return nil, fmt.Errorf("send job notification: %w", execErr)
		}
	}
	return job, nil
}

// claimSQL returns the single-statement compare-and-swap used by Claim. Placeholders appear in
// argument order: the type filter (if any) is bound where it occurs in the text.
func (r *JobRepo) claimSQL(typeCount int) (string, bool) {
	filter := ""
	if typeCount > 0 {
		filter = " AND event_type IN (" + inPlaceholders(typeCount) + ")"
	}

	if r.dialect == DialectPostgres {
		return r.dialect.Rebind(`
			WITH cte AS (
				SELECT id FROM jobs
				WHERE status = 'PENDING'` + filter + `
				ORDER BY priority ASC, created_at ASC, id ASC
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			)
			UPDATE jobs j
			SET status = 'CLAIMED', claimed_at = ?, worker_id = ?
			FROM cte
			WHERE j.id = cte.id AND j.status = 'PENDING'
			RETURNING ` + qualifiedJobColumns("j")), true
	}

	return `
		UPDATE jobs
		SET status = 'CLAIMED', claimed_at = ?, worker_id = ?
		WHERE status = 'PENDING' AND id = (
			SELECT id FROM jobs
			WHERE status = 'PENDING'` + filter + `
			ORDER BY priority ASC, created_at ASC, id ASC
			LIMIT 1
		)
		RETURNING ` + jobColumns, false
}

// Claim transitions the most urgent, oldest PENDING job (optionally restricted to req.Types) to
// CLAIMED. The status predicate on the UPDATE makes the transition a compare-and-swap, so a
// caller that loses the race gets model.ErrNoJobsAvailable.
func (r *JobRepo) Claim(ctx context.Context, req model.ClaimJobRequest) (*model.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	types := normalizeTypes(req.Types)

	query, filterFirst := r.claimSQL(len(types))
	claimArgs := []any{r.dialect.TimeArg(r.timeProvider.Now()), strings.TrimSpace(req.WorkerID)}
	args := make([]any, 0, len(types)+len(claimArgs))
	if filterFirst {
		for _, t := range types {
			args = append(args, t)
		}
		args = append(args, claimArgs...)
	} else {
		args = append(args, claimArgs...)
		for _, t := range types {
			args = append(args, t)
		}
	}

	job, err := scanJob(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNoJobsAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// Complete records the terminal status, completion time, worker and result of a job.
// It does not look at the current status: repeated reports overwrite the previous outcome.
func (r *JobRepo) Complete(ctx context.Context, req model.CompleteJobRequest) (*model.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	query := r.dialect.Rebind(`
		UPDATE jobs
		SET status = ?, completed_at = ?, worker_id = COALESCE(?, worker_id), result = ?
		WHERE id = ?
		RETURNING ` + jobColumns)

	var workerID any
	if w := strings.TrimSpace(req.WorkerID); w != "" {
		workerID = w
	}

	job, err := scanJob(r.DB.QueryRowContext(ctx, query,
		string(req.Status),
		r.dialect.TimeArg(r.timeProvider.Now()),
		workerID,
		JSONArg(req.Result),
		req.JobID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("complete job: %w", err)
	}
	return job, nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id int64) (*model.Job, error) {
	query := r.dialect.Rebind(`SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`)
	job, err := scanJob(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Pending lists PENDING jobs in claim order, optionally filtered by event type.
func (r *JobRepo) Pending(ctx context.Context, eventType string, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = defaultPendingLimit
	}
	if limit > maxPendingLimit {
		limit = maxPendingLimit
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`SELECT ` + jobColumns + ` FROM jobs WHERE status = 'PENDING'`)
	if et := strings.TrimSpace(eventType); et != "" {
		sb.WriteString(` AND event_type = ?`)
		args = append(args, et)
	}
	sb.WriteString(` ORDER BY priority ASC, created_at ASC, id ASC LIMIT ?`)
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, r.dialect.Rebind(sb.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan pending jobs: %w", err)
	}
	return jobs, nil
}

// Stats returns job counts by status together with timeline totals.
func (r *JobRepo) Stats(ctx context.Context) (*model.DispatchStats, error) {
	var s model.DispatchStats
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'PENDING')   AS pending,
			count(*) FILTER (WHERE status = 'CLAIMED')   AS claimed,
			count(*) FILTER (WHERE status = 'COMPLETED') AS completed,
			count(*) FILTER (WHERE status = 'FAILED')    AS failed,
			(SELECT count(*) FROM timelines) AS timeline_events,
			(SELECT count(DISTINCT case_id) FROM timelines WHERE event = 'NOTICE_SENT') AS active_cases
		FROM jobs
	`).Scan(
		&s.Jobs.Pending,
		&s.Jobs.Claimed,
		&s.Jobs.Completed,
		&s.Jobs.Failed,
		&s.TimelineEvents,
		&s.ActiveCases,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	return &s, nil
}

// WaitForNotification blocks until a job insert is signalled on the jobs_added channel.
func (r *JobRepo) WaitForNotification(ctx context.Context) error {
	if r.dialect != DialectPostgres {
		return ErrNotificationsUnsupported
	}

	return pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		quoted := pgx.Identifier{jobsAddedChannel}.Sanitize()
		if _, err := conn.Exec(ctx, "LISTEN "+quoted); err != nil {
			return fmt.Errorf("listen %s: %w", jobsAddedChannel, err)
		}
		defer func() {
			if _, err := conn.Exec(context.Background(), "UNLISTEN "+quoted); err != nil {
				r.logger.Debug("unlisten failed", "error", err)
			}
		}()

		_, err := conn.WaitForNotification(ctx)
		return err
	})
}

func normalizeTypes(types []string) []string {
	out := make([]string, 0, len(types))
	seen := make(map[string]struct{}, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
