package errors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// reKeyField extracts field name from unique violation detail: "Key (field)=(value) already exists.".
var reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)

// reSQLiteUnique extracts the column from "UNIQUE constraint failed: table.column".
var reSQLiteUnique = regexp.MustCompile(`UNIQUE constraint failed: [^.]+\.(\w+)`)

// MapDBError maps database errors from either storage engine to AppError instances:
//   - sql.ErrNoRows → NotFound
//   - unique violations → Conflict
//   - check / not-null violations → Validation
//   - connection failures, lock timeouts and SQLITE_BUSY → Unavailable
//   - context timeouts/cancellations → Timeout/Canceled
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{Code: ErrCodeTimeout, Message: "Request timed out. Please try again.", Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{Code: ErrCodeCanceled, Message: "Request was canceled.", Cause: err}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &AppError{Code: ErrCodeNotFound, Message: "Resource not found", Cause: err}
	}
	if errors.Is(err, sql.ErrConnDone) {
		return &AppError{Code: ErrCodeUnavailable, Message: "Storage is unavailable.", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return mapSQLiteError(liteErr)
	}

	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch {
	case pgErr.Code == pgerrcode.UniqueViolation:
		field := pgErr.ColumnName
		if field == "" && pgErr.Detail != "" {
			if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
				field = m[1]
			}
		}
		return &AppError{Code: ErrCodeConflict, Message: "This value already exists.", Field: field, Cause: pgErr}
	case pgErr.Code == pgerrcode.CheckViolation, pgErr.Code == pgerrcode.NotNullViolation:
		return &AppError{Code: ErrCodeValidation, Message: "Invalid data.", Field: pgErr.ColumnName, Cause: pgErr}
	case pgerrcode.IsConnectionException(pgErr.Code),
		pgErr.Code == pgerrcode.LockNotAvailable,
		pgErr.Code == pgerrcode.CannotConnectNow,
		pgErr.Code == pgerrcode.AdminShutdown:
		return &AppError{Code: ErrCodeUnavailable, Message: "Storage is unavailable.", Cause: pgErr}
	default:
		return &AppError{Code: ErrCodeInternal, Message: "A database error occurred.", Cause: pgErr}
	}
}

func mapSQLiteError(liteErr *sqlite.Error) error {
	code := liteErr.Code()
	switch code & 0xff {
	case sqlite3.SQLITE_CONSTRAINT:
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			var field string
			if m := reSQLiteUnique.FindStringSubmatch(liteErr.Error()); len(m) == 2 {
				field = m[1]
			}
			return &AppError{Code: ErrCodeConflict, Message: "This value already exists.", Field: field, Cause: liteErr}
		}
		return &AppError{Code: ErrCodeValidation, Message: "Invalid data.", Cause: liteErr}
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR:
		return &AppError{Code: ErrCodeUnavailable, Message: "Storage is unavailable.", Cause: liteErr}
	default:
		return &AppError{Code: ErrCodeInternal, Message: "A database error occurred.", Cause: liteErr}
	}
}
