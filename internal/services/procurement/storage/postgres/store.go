// Package postgres provides the PostgreSQL-backed procurement store.
//
// Acceptance transactions lock the RFQ row with SELECT ... FOR UPDATE so
// concurrent accepts on one RFQ run one after another; the unique index on
// orders.rfq_id still decides any race.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	sqlmigrate "github.com/onemarinex/portside/internal/platform/storage/sqlmigrate"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
	"github.com/onemarinex/portside/internal/services/procurement/storage/postgres/migrations"
	"github.com/onemarinex/portside/internal/services/procurement/storage/sqlstore"
)

const uniqueViolation = pq.ErrorCode("23505")

// Store persists procurement state in PostgreSQL.
type Store struct {
	*sqlstore.Store
}

// Open connects to PostgreSQL and applies bundled migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres db: %w", err)
	}
	if err := sqlmigrate.ApplyMigrations(ctx, sqlDB, sqlmigrate.DialectPostgres, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{Store: sqlstore.New(sqlDB, Dialect())}, nil
}

// Dialect describes PostgreSQL for the shared SQL store.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:              "postgres",
		NumberedParams:    true,
		LockSuffix:        " FOR UPDATE",
		IsUniqueViolation: isUniqueViolation,
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

var _ storage.Store = (*Store)(nil)
