package data

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/target/case-dispatch/internal/migrate"
)

// Dialect selects the SQL flavour of the backing storage engine.
type Dialect string

const (
	// DialectPostgres uses pgx through database/sql.
	DialectPostgres Dialect = migrate.DriverPostgres
	// DialectSQLite uses the pure-Go modernc.org/sqlite driver.
	DialectSQLite Dialect = migrate.DriverSQLite
)

// ErrNotificationsUnsupported is returned by WaitForNotification on engines without LISTEN/NOTIFY.
var ErrNotificationsUnsupported = errors.New("storage engine does not support notifications")

// ParseDialect parses a STORAGE_DRIVER value.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("unsupported storage driver %q (valid options: postgres, sqlite)", s)
}

// Rebind rewrites '?' placeholders into the dialect's bind syntax.
// Queries in this package never contain a literal '?'.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqliteTimeLayout is fixed width so lexical order equals chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// TimeArg encodes t as a bind argument. SQLite stores UTC text, Postgres TIMESTAMPTZ.
func (d Dialect) TimeArg(t time.Time) any {
	if d == DialectSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// NullTimeArg encodes an optional time.
func (d Dialect) NullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.TimeArg(*t)
}

// JSONArg encodes a JSON document as a bind argument; empty documents become NULL.
func JSONArg(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

var sqliteParseLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
}

// dbTime scans a timestamp from either engine: pgx yields time.Time, SQLite yields text.
type dbTime struct {
	Time  time.Time
	Valid bool
}

var _ sql.Scanner = (*dbTime)(nil)

// Scan implements sql.Scanner.
func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range sqliteParseLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("parse timestamp %q", s)
}

// Ptr returns nil for NULL timestamps.
func (t dbTime) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// NullStringArg encodes an optional string.
func NullStringArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
