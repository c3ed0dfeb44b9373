// Package driver opens the configured procurement store.
package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/onemarinex/portside/internal/services/procurement/storage"
	"github.com/onemarinex/portside/internal/services/procurement/storage/postgres"
	"github.com/onemarinex/portside/internal/services/procurement/storage/sqlite"
)

// Supported drivers.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Config selects and locates the backing database.
type Config struct {
	Driver string
	Path   string
	DSN    string
}

// Open opens and migrates the store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (storage.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", SQLite:
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case Postgres:
		store, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
