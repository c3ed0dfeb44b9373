package seed

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil, map[string]string{})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.SeedConfig.BaseURL != "http://procurement:8080" {
		t.Fatalf("base url = %q", cfg.SeedConfig.BaseURL)
	}
	if cfg.SeedConfig.GRPCAddr != "procurement:8082" {
		t.Fatalf("grpc addr = %q", cfg.SeedConfig.GRPCAddr)
	}
	if cfg.AuthIssuer != "portside" {
		t.Fatalf("issuer = %q", cfg.AuthIssuer)
	}
	if cfg.FixturePath != "" || cfg.PrintFixture {
		t.Fatalf("unexpected fixture flags: %+v", cfg)
	}
}

func TestParseConfigEnvAndFlags(t *testing.T) {
	environ := map[string]string{
		"PORTSIDE_SEED_API_URL":  "http://localhost:8080",
		"PORTSIDE_AUTH_HMAC_KEY": "  seed-cmd-signing-key-0123  ",
	}
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-grpc-addr", "", "-v", "-fixture", "demo.json"}, environ)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.SeedConfig.BaseURL != "http://localhost:8080" {
		t.Fatalf("base url = %q", cfg.SeedConfig.BaseURL)
	}
	if cfg.SeedConfig.GRPCAddr != "" {
		t.Fatalf("grpc addr = %q, want empty", cfg.SeedConfig.GRPCAddr)
	}
	if !cfg.SeedConfig.Verbose {
		t.Fatal("expected verbose")
	}
	if cfg.AuthHMACKey != "seed-cmd-signing-key-0123" {
		t.Fatalf("hmac key = %q", cfg.AuthHMACKey)
	}
	if cfg.FixturePath != "demo.json" {
		t.Fatalf("fixture = %q", cfg.FixturePath)
	}
}

func TestRunPrintsFixture(t *testing.T) {
	var out bytes.Buffer
	if err := Run(context.Background(), Config{PrintFixture: true}, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), `"company_name": "Harbor Supply"`) {
		t.Fatalf("output = %s", out.String())
	}
}

func TestRunRequiresSigningKey(t *testing.T) {
	err := Run(context.Background(), Config{}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "PORTSIDE_AUTH_HMAC_KEY") {
		t.Fatalf("expected signing key error, got %v", err)
	}
}

func TestRunRejectsBadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, []byte(`{"rfqs": [{"title": "no buyer"}]}`), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	err := Run(context.Background(), Config{FixturePath: path}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "buyer_user_id") {
		t.Fatalf("expected fixture error, got %v", err)
	}

	err = Run(context.Background(), Config{FixturePath: filepath.Join(t.TempDir(), "missing.json")}, nil, nil)
	if err == nil || !strings.Contains(err.Error(), "open fixture") {
		t.Fatalf("expected open error, got %v", err)
	}
}
