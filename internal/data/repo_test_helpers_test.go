package data

import (
	"database/sql"
	"testing"
	"time"

	"github.com/target/case-dispatch/internal/testutil"
)

type repoFixture struct {
	db      *sql.DB
	dialect Dialect
	clock   *FixedTimeProvider
}

func (f repoFixture) cfg() RepoConfig {
	return RepoConfig{Dialect: f.dialect, TimeProvider: f.clock}
}

// forEachDialect runs fn against SQLite and, when TEST_DB_* points at a reachable server,
// against Postgres.
func forEachDialect(t *testing.T, fn func(t *testing.T, f repoFixture)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) {
		fn(t, repoFixture{
			db:      testutil.SetupSQLiteDB(t),
			dialect: DialectSQLite,
			clock:   NewFixedTimeProvider(testutil.TestTime()),
		})
	})

	t.Run("postgres", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping integration test")
		}
		fn(t, repoFixture{
			db:      testutil.SetupTestDB(t),
			dialect: DialectPostgres,
			clock:   NewFixedTimeProvider(testutil.TestTime()),
		})
	})
}

func hours(n int) time.Duration { return time.Duration(n) * time.Hour }
