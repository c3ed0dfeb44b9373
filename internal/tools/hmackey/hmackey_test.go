package hmackey

import (
	"bytes"
	"flag"
	"fmt"
	"strings"
	"testing"

	"github.com/onemarinex/portside/internal/services/procurement/identity"
)

func TestParseConfig(t *testing.T) {
	fs := flag.NewFlagSet("hmackey", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Bytes != 32 || cfg.Raw {
		t.Fatalf("defaults = %+v", cfg)
	}

	fs = flag.NewFlagSet("hmackey", flag.ContinueOnError)
	cfg, err = ParseConfig(fs, []string{"-bytes", "24", "-raw"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Bytes != 24 || !cfg.Raw {
		t.Fatalf("overrides = %+v", cfg)
	}
}

func TestRunRejectsShortSecrets(t *testing.T) {
	for _, n := range []int{-1, 0, 15} {
		if err := Run(Config{Bytes: n}, &bytes.Buffer{}, bytes.NewReader(nil)); err == nil {
			t.Fatalf("expected error for %d bytes", n)
		}
	}
}

func TestRunWritesEnvLine(t *testing.T) {
	buf := &bytes.Buffer{}
	reader := bytes.NewReader(bytes.Repeat([]byte{0xab}, 16))
	if err := Run(Config{Bytes: 16}, buf, reader); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "PORTSIDE_AUTH_HMAC_KEY=" + strings.Repeat("ab", 16)
	if got := strings.TrimSpace(buf.String()); got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestRunRaw(t *testing.T) {
	buf := &bytes.Buffer{}
	reader := bytes.NewReader(bytes.Repeat([]byte{0x01}, 16))
	if err := Run(Config{Bytes: 16, Raw: true}, buf, reader); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := buf.String(); got != strings.Repeat("01", 16)+"\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestGeneratedSecretIsAcceptedByIdentity(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := Run(Config{Bytes: 32, Raw: true}, buf, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	secret := strings.TrimSpace(buf.String())
	if len(secret) != 64 {
		t.Fatalf("secret length = %d, want 64", len(secret))
	}
	if _, err := identity.NewConfig("", secret, nil); err != nil {
		t.Fatalf("identity rejected generated secret: %v", err)
	}
}

func TestRunNilOutput(t *testing.T) {
	if err := Run(Config{Bytes: 16}, nil, nil); err == nil {
		t.Fatal("expected error for nil output")
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, fmt.Errorf("read error") }

func TestRunReaderError(t *testing.T) {
	err := Run(Config{Bytes: 16}, &bytes.Buffer{}, errReader{})
	if err == nil || !strings.Contains(err.Error(), "generate random bytes") {
		t.Fatalf("expected reader error, got %v", err)
	}
}
