package pgxutil_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/case-dispatch/internal/data/database"
	"github.com/target/case-dispatch/internal/data/pgxutil"
)

func openScratchDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, database.SQLiteOptions{
		Path:        filepath.Join(t.TempDir(), "tx.db"),
		BusyTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `CREATE TABLE notes (body TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countNotes(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM notes`).Scan(&n))
	return n
}

func TestWithSQLTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		db := openScratchDB(t)
		err := pgxutil.WithSQLTx(ctx, db, pgxutil.SQLTxConfig{Fn: func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO notes (body) VALUES ('kept')`)
			return err
		}})
		require.NoError(t, err)
		assert.Equal(t, 1, countNotes(t, db))
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db := openScratchDB(t)
		boom := errors.New("boom")
		err := pgxutil.WithSQLTx(ctx, db, pgxutil.SQLTxConfig{Fn: func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `INSERT INTO notes (body) VALUES ('dropped')`); err != nil {
				return err
			}
			return boom
		}})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 0, countNotes(t, db))
	})

	t.Run("requires a func", func(t *testing.T) {
		db := openScratchDB(t)
		require.Error(t, pgxutil.WithSQLTx(ctx, db, pgxutil.SQLTxConfig{}))
	})
}

func TestWithPgxConn_RejectsOtherDrivers(t *testing.T) {
	db := openScratchDB(t)
	called := false
	err := pgxutil.WithPgxConn(context.Background(), db, func(*pgx.Conn) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}
