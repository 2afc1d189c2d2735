package data

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/target/case-dispatch/internal/domain/model"
)

// RepoConfig holds configuration options shared by the repositories.
type RepoConfig struct {
	Dialect      Dialect
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

func (c RepoConfig) normalized() RepoConfig {
	if c.Dialect == "" {
		c.Dialect = DialectPostgres
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.TimeProvider == nil {
		c.TimeProvider = &RealTimeProvider{}
	}
	return c
}

// JobRepo provides job store operations for Postgres and SQLite.
type JobRepo struct {
	DB           *sql.DB
	dialect      Dialect
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	cfg = cfg.normalized()
	return &JobRepo{
		DB:           db,
		dialect:      cfg.Dialect,
		timeProvider: cfg.TimeProvider,
		logger:       cfg.Logger.With("component", "job_repo"),
	}
}

var jobColumnList = []string{
	"id",
	"event_type",
	"payload",
	"status",
	"priority",
	"created_at",
	"claimed_at",
	"completed_at",
	"worker_id",
	"result",
	"retries",
}

var jobColumns = strings.Join(jobColumnList, ", ")

// qualifiedJobColumns prefixes every job column with alias.
func qualifiedJobColumns(alias string) string {
	cols := make([]string, len(jobColumnList))
	for i, c := range jobColumnList {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	payload, result        []byte
	createdAt              dbTime
	claimedAt, completedAt dbTime
	workerID               sql.NullString
}

func (d *jobRowData) scanInto(scanner rowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&job.EventType,
		&d.payload,
		&job.Status,
		&job.Priority,
		&d.createdAt,
		&d.claimedAt,
		&d.completedAt,
		&d.workerID,
		&d.result,
		&job.Retries,
	)
}

func (d *jobRowData) apply(job *model.Job) {
	job.Payload = cloneJSON(d.payload)
	job.CreatedAt = d.createdAt.Time
	job.ClaimedAt = d.claimedAt.Ptr()
	job.CompletedAt = d.completedAt.Ptr()
	job.WorkerID = cloneNullableString(d.workerID)
	if len(d.result) > 0 {
		job.Result = append(json.RawMessage(nil), d.result...)
	}
}

func scanJob(scanner rowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}
	data.apply(job)
	return job, nil
}

func scanJobs(rows *sql.Rows) ([]*model.Job, error) {
	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// inPlaceholders returns "?, ?, ?" for n values.
func inPlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
