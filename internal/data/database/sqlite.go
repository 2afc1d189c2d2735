// Package database opens the embedded SQLite store used by single-node deployments and tests.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLiteOptions configures OpenSQLite.
type SQLiteOptions struct {
	// Path is the database file. ":memory:" is rejected because every pooled connection
	// would see a different database.
	Path string
	// Synchronous is the PRAGMA synchronous level (OFF, NORMAL, FULL). Defaults to NORMAL.
	Synchronous string
	// BusyTimeout bounds how long a writer waits for the write lock.
	BusyTimeout time.Duration
	// MaxOpenConns caps the pool. WAL lets readers proceed while one writer holds the lock.
	MaxOpenConns int
}

// SQLiteDSN builds a modernc.org/sqlite DSN with WAL journaling and immediate write transactions.
func SQLiteDSN(opts SQLiteOptions) (string, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return "", errors.New("sqlite path is required")
	}
	if path == ":memory:" {
		return "", errors.New("sqlite in-memory databases are not supported; use a file path")
	}

	sync := strings.ToUpper(strings.TrimSpace(opts.Synchronous))
	switch sync {
	case "":
		sync = "NORMAL"
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return "", fmt.Errorf("invalid sqlite synchronous level %q", opts.Synchronous)
	}

	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous("+sync+")")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")

	return "file:" + path + "?" + q.Encode(), nil
}

// OpenSQLite opens and pings a SQLite database.
func OpenSQLite(ctx context.Context, opts SQLiteOptions) (*sql.DB, error) {
	dsn, err := SQLiteDSN(opts)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 8
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		if closeErr := db.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close sqlite: %w", closeErr))
		}
		return nil, fmt.Errorf("ping sqlite: %w", pingErr)
	}
	return db, nil
}
