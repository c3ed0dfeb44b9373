// Package hmackey generates signing secrets for bearer token verification.
package hmackey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
)

// EnvVar is the variable the procurement API reads its signing secret from.
const EnvVar = "PORTSIDE_AUTH_HMAC_KEY"

const minBytes = 16

// Config holds configuration for HMAC key generation.
type Config struct {
	Bytes int
	// Raw prints only the hex secret, for piping into secret stores.
	Raw bool
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: 32}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes (minimum 16)")
	fs.BoolVar(&cfg.Raw, "raw", false, "print the hex secret without the variable name")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the secret and writes it to out.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes < minBytes {
		return fmt.Errorf("bytes must be at least %d", minBytes)
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	secret := hex.EncodeToString(buf)
	if cfg.Raw {
		_, err := fmt.Fprintln(out, secret)
		return err
	}
	_, err := fmt.Fprintf(out, "%s=%s\n", EnvVar, secret)
	return err
}
