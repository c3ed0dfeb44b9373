// Package devtoken mints bearer tokens for local development and scripts.
package devtoken

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/onemarinex/portside/internal/services/procurement/domain"
	"github.com/onemarinex/portside/internal/services/procurement/identity"
)

// Config holds token minting options.
type Config struct {
	UserID string
	Role   string
	TTL    time.Duration
	// Header prints an Authorization header line instead of the bare token.
	Header bool
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{TTL: identity.DefaultTokenTTL}
	fs.StringVar(&cfg.UserID, "user", "", "subject user id (required)")
	fs.StringVar(&cfg.Role, "role", string(domain.RoleShippingCompany), "role claim: shipping_company, vendor, agent or crew")
	fs.DurationVar(&cfg.TTL, "ttl", cfg.TTL, "token lifetime")
	fs.BoolVar(&cfg.Header, "header", false, "print an Authorization header line")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run signs a token with identityCfg and writes it to out.
func Run(cfg Config, identityCfg identity.Config, out io.Writer) error {
	if out == nil {
		return errors.New("output is required")
	}
	userID := strings.TrimSpace(cfg.UserID)
	if userID == "" {
		return errors.New("-user is required")
	}
	role := domain.ParseRole(cfg.Role)
	switch role {
	case domain.RoleShippingCompany, domain.RoleVendor, domain.RoleAgent, domain.RoleCrew:
	default:
		return fmt.Errorf("unknown role %q", cfg.Role)
	}
	if cfg.TTL <= 0 {
		return errors.New("ttl must be positive")
	}

	token, err := identity.Issue(identityCfg, domain.Caller{UserID: userID, Role: role}, cfg.TTL)
	if err != nil {
		return err
	}
	if cfg.Header {
		_, err = fmt.Fprintf(out, "Authorization: Bearer %s\n", token)
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
