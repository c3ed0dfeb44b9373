// Package procurement parses procurement service flags and launches the API.
package procurement

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/onemarinex/portside/internal/platform/cmd"
	"github.com/onemarinex/portside/internal/platform/discovery"
	server "github.com/onemarinex/portside/internal/services/procurement/app"
	"github.com/onemarinex/portside/internal/services/procurement/identity"
	"github.com/onemarinex/portside/internal/services/procurement/storage/driver"
)

// Config holds procurement command configuration.
type Config struct {
	HTTPAddr             string        `env:"PORTSIDE_PROCUREMENT_HTTP_ADDR"`
	GRPCAddr             string        `env:"PORTSIDE_PROCUREMENT_GRPC_ADDR"`
	StoreDriver          string        `env:"PORTSIDE_PROCUREMENT_DB_DRIVER" envDefault:"sqlite"`
	StorePath            string        `env:"PORTSIDE_PROCUREMENT_DB_PATH" envDefault:"data/procurement.db"`
	StoreDSN             string        `env:"PORTSIDE_PROCUREMENT_DB_DSN"`
	AuthIssuer           string        `env:"PORTSIDE_AUTH_ISSUER" envDefault:"portside"`
	AuthHMACKey          string        `env:"PORTSIDE_AUTH_HMAC_KEY"`
	VendorCacheRedisAddr string        `env:"PORTSIDE_VENDOR_CACHE_REDIS_ADDR"`
	VendorCacheTTL       time.Duration `env:"PORTSIDE_VENDOR_CACHE_TTL" envDefault:"5m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = discovery.Listen(discovery.ServiceProcurement, discovery.HTTP)
	}
	if cfg.GRPCAddr == "" {
		cfg.GRPCAddr = discovery.Listen(discovery.ServiceProcurement, discovery.GRPC)
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The procurement HTTP API listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "The procurement health gRPC listen address")
	fs.StringVar(&cfg.StoreDriver, "store-driver", cfg.StoreDriver, "Procurement store driver (sqlite or postgres)")
	fs.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "Procurement SQLite database path")
	fs.StringVar(&cfg.StoreDSN, "store-dsn", cfg.StoreDSN, "Procurement PostgreSQL DSN")
	fs.StringVar(&cfg.VendorCacheRedisAddr, "vendor-cache-redis-addr", cfg.VendorCacheRedisAddr, "Optional Redis address for the vendor profile cache")
	fs.DurationVar(&cfg.VendorCacheTTL, "vendor-cache-ttl", cfg.VendorCacheTTL, "Vendor profile cache entry lifetime")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the procurement API.
func Run(ctx context.Context, cfg Config) error {
	identityCfg, err := identity.NewConfig(cfg.AuthIssuer, cfg.AuthHMACKey, nil)
	if err != nil {
		return fmt.Errorf("identity config: %w", err)
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceProcurement, func(context.Context) error {
		return server.Run(ctx, server.Config{
			HTTPAddr: cfg.HTTPAddr,
			GRPCAddr: cfg.GRPCAddr,
			Store: driver.Config{
				Driver: cfg.StoreDriver,
				Path:   cfg.StorePath,
				DSN:    cfg.StoreDSN,
			},
			Identity:             identityCfg,
			VendorCacheTTL:       cfg.VendorCacheTTL,
			VendorCacheRedisAddr: cfg.VendorCacheRedisAddr,
		})
	})
}
