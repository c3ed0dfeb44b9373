// Package seed parses seed command flags and loads demo procurement data.
package seed

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/onemarinex/portside/internal/platform/config"
	"github.com/onemarinex/portside/internal/services/procurement/identity"
	"github.com/onemarinex/portside/internal/tools/seed"
)

// Config holds seed command configuration.
type Config struct {
	SeedConfig   seed.Config
	AuthIssuer   string
	AuthHMACKey  string
	FixturePath  string
	PrintFixture bool
}

type seedEnv struct {
	APIURL      string `env:"PORTSIDE_SEED_API_URL"`
	GRPCAddr    string `env:"PORTSIDE_SEED_GRPC_ADDR"`
	AuthIssuer  string `env:"PORTSIDE_AUTH_ISSUER" envDefault:"portside"`
	AuthHMACKey string `env:"PORTSIDE_AUTH_HMAC_KEY"`
}

// ParseConfig parses environ and flags into a Config. A nil environ reads
// the process environment.
func ParseConfig(fs *flag.FlagSet, args []string, environ map[string]string) (Config, error) {
	var raw seedEnv
	if err := config.ParseEnvFrom(&raw, environ); err != nil {
		return Config{}, err
	}
	seedCfg := seed.DefaultConfig()
	if v := strings.TrimSpace(raw.APIURL); v != "" {
		seedCfg.BaseURL = v
	}
	if v := strings.TrimSpace(raw.GRPCAddr); v != "" {
		seedCfg.GRPCAddr = v
	}
	cfg := Config{
		AuthIssuer:  strings.TrimSpace(raw.AuthIssuer),
		AuthHMACKey: strings.TrimSpace(raw.AuthHMACKey),
	}

	fs.StringVar(&seedCfg.BaseURL, "api-url", seedCfg.BaseURL, "procurement HTTP API base URL")
	fs.StringVar(&seedCfg.GRPCAddr, "grpc-addr", seedCfg.GRPCAddr, "procurement health address (empty skips the wait)")
	fs.DurationVar(&seedCfg.HealthTimeout, "health-timeout", seedCfg.HealthTimeout, "how long to wait for procurement health")
	fs.BoolVar(&seedCfg.Verbose, "v", false, "verbose output")
	fs.StringVar(&cfg.FixturePath, "fixture", "", "JSON fixture file (default: built-in demo data)")
	fs.BoolVar(&cfg.PrintFixture, "print-fixture", false, "print the built-in demo fixture and exit")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.SeedConfig = seedCfg
	return cfg, nil
}

// Run executes the seed command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	if cfg.PrintFixture {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(seed.DemoFixture())
	}

	fixture, err := loadFixture(cfg.FixturePath)
	if err != nil {
		return err
	}
	identityCfg, err := identity.NewConfig(cfg.AuthIssuer, cfg.AuthHMACKey, time.Now)
	if err != nil {
		return fmt.Errorf("identity config: %w", err)
	}
	seedCfg := cfg.SeedConfig
	seedCfg.Identity = identityCfg

	summary, err := seed.Run(ctx, seedCfg, fixture, out)
	if err != nil {
		fmt.Fprintf(errOut, "seed stopped after vendors=%d rfqs=%d quotes=%d orders=%d\n",
			summary.Vendors, summary.RFQs, summary.Quotes, summary.Orders)
		return err
	}
	return nil
}

func loadFixture(path string) (seed.Fixture, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return seed.DemoFixture(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return seed.Fixture{}, fmt.Errorf("open fixture: %w", err)
	}
	defer file.Close()
	return seed.LoadFixture(file)
}
