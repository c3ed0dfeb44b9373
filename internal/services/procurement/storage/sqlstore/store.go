// Package sqlstore implements procurement persistence over database/sql.
//
// Queries are written once with "?" placeholders and rebound per dialect, so
// the SQLite and PostgreSQL adapters share every transaction body. Adapters
// only supply the connection, schema, and constraint classification.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Dialect captures the differences between supported SQL engines.
type Dialect struct {
	// Name identifies the engine in logs and errors.
	Name string
	// NumberedParams rewrites "?" placeholders to "$1", "$2", ...
	NumberedParams bool
	// LockSuffix is appended to row reads that must serialize writers, such as
	// " FOR UPDATE". Engines that lock the whole database on BEGIN leave it empty.
	LockSuffix string
	// IsUniqueViolation reports whether err is a uniqueness constraint failure.
	IsUniqueViolation func(error) bool
}

// Store implements storage.Store over a *sql.DB.
type Store struct {
	sqlDB   *sql.DB
	dialect Dialect
}

// New wraps an open, migrated database handle.
func New(sqlDB *sql.DB, dialect Dialect) *Store {
	if dialect.IsUniqueViolation == nil {
		dialect.IsUniqueViolation = func(error) bool { return false }
	}
	return &Store{sqlDB: sqlDB, dialect: dialect}
}

// DB returns the raw database handle.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q rebinds a query written with "?" placeholders for the active dialect.
func (s *Store) q(query string) string {
	if !s.dialect.NumberedParams {
		return query
	}
	return Rebind(query)
}

// Rebind rewrites "?" placeholders outside string literals to "$n".
func Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inString := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inString = !inString
			b.WriteByte(c)
		case c == '?' && !inString:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// toMicros normalizes timestamps into microsecond precision for storage.
func toMicros(value time.Time) int64 {
	return value.UTC().UnixMicro()
}

// fromMicros restores microsecond precision and keeps UTC normalization.
func fromMicros(value int64) time.Time {
	return time.UnixMicro(value).UTC()
}

func nullMicros(value *time.Time) sql.NullInt64 {
	if value == nil || value.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMicros(*value), Valid: true}
}

func timePtr(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMicros(value.Int64)
	return &t
}

func nullInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func intPtr(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}

// money renders an amount the way every money column stores it.
func money(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func nullMoney(value decimal.NullDecimal) sql.NullString {
	if !value.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: money(value.Decimal), Valid: true}
}

func encodeJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeJSON(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}
