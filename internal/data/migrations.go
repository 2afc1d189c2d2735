package data

import (
	"context"
	"database/sql"

	"github.com/target/case-dispatch/internal/migrate"
)

// RunMigrations applies the schema for the given dialect by delegating to the migrate package.
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect) error {
	return migrate.Run(ctx, db, string(dialect))
}
