// Package identity resolves bearer credentials into marketplace callers.
//
// Credentials are HS256 JWTs carrying the user id in `sub` and the
// marketplace role in `role`. Issuance outside development tooling belongs
// to the external identity provider.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/onemarinex/portside/internal/platform/errors"
	"github.com/onemarinex/portside/internal/services/procurement/domain"
)

const (
	// DefaultIssuer is the issuer used when none is configured.
	DefaultIssuer = "portside"
	// DefaultTokenTTL is the lifetime of tokens minted by Issue.
	DefaultTokenTTL = 24 * time.Hour

	minKeyBytes = 16
)

// identityEnv holds raw env values before post-parse validation.
type identityEnv struct {
	HMACKey string `env:"PORTSIDE_AUTH_HMAC_KEY"`
	Issuer  string `env:"PORTSIDE_AUTH_ISSUER" envDefault:"portside"`
}

// Config defines how credentials are signed and verified.
type Config struct {
	Issuer string
	Key    []byte
	Now    func() time.Time
}

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// LoadConfigFromEnv reads the signing configuration.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw identityEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse identity env: %w", err)
	}
	return NewConfig(raw.Issuer, raw.HMACKey, now)
}

// NewConfig validates an issuer and shared secret.
func NewConfig(issuer string, key string, now func() time.Time) (Config, error) {
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Config{}, fmt.Errorf("PORTSIDE_AUTH_HMAC_KEY is required")
	}
	if len(key) < minKeyBytes {
		return Config{}, fmt.Errorf("PORTSIDE_AUTH_HMAC_KEY must be at least %d bytes", minKeyBytes)
	}
	if now == nil {
		now = time.Now
	}
	return Config{Issuer: issuer, Key: []byte(key), Now: now}, nil
}

// Resolver turns bearer tokens into callers.
type Resolver struct {
	cfg Config
}

// NewResolver creates a resolver for the given configuration.
func NewResolver(cfg Config) *Resolver {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Resolver{cfg: cfg}
}

// Resolve verifies a raw bearer token and returns the caller it names.
func (r *Resolver) Resolve(token string) (domain.Caller, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Caller{}, apperrors.New(apperrors.CodeUnauthenticated, "bearer token is required")
	}
	if r == nil || len(r.cfg.Key) == 0 {
		return domain.Caller{}, errors.New("identity resolver is not configured")
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return r.cfg.Key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return domain.Caller{}, mapJWTError(err)
	}

	if parsed.Issuer != r.cfg.Issuer {
		return domain.Caller{}, apperrors.WithMetadata(
			apperrors.CodeCredentialInvalid,
			"credential issuer mismatch",
			map[string]string{"Field": "iss"},
		)
	}
	if parsed.ExpiresAt == nil {
		return domain.Caller{}, apperrors.New(apperrors.CodeCredentialInvalid, "credential exp is required")
	}
	now := r.cfg.Now().UTC()
	if !parsed.ExpiresAt.Time.After(now) {
		return domain.Caller{}, apperrors.New(apperrors.CodeCredentialExpired, "credential is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time) {
		return domain.Caller{}, apperrors.New(apperrors.CodeCredentialInvalid, "credential not active yet")
	}

	caller := domain.Caller{
		UserID: strings.TrimSpace(parsed.Subject),
		Role:   domain.ParseRole(parsed.Role),
	}
	if !caller.Valid() {
		return domain.Caller{}, apperrors.WithMetadata(
			apperrors.CodeCredentialInvalid,
			"credential subject is required",
			map[string]string{"Field": "sub"},
		)
	}
	if caller.Role == "" {
		return domain.Caller{}, apperrors.WithMetadata(
			apperrors.CodeCredentialInvalid,
			"credential role is required",
			map[string]string{"Field": "role"},
		)
	}
	return caller, nil
}

// Issue signs a token for the caller valid for ttl. It backs development
// tooling and tests.
func Issue(cfg Config, caller domain.Caller, ttl time.Duration) (string, error) {
	if len(cfg.Key) == 0 {
		return "", errors.New("signing key is required")
	}
	if !caller.Valid() || caller.Role == "" {
		return "", errors.New("caller user id and role are required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	issued := now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   caller.UserID,
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
		Role: string(caller.Role),
	})
	return token.SignedString(cfg.Key)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.New(apperrors.CodeCredentialInvalid, "credential signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeCredentialInvalid, "credential alg is invalid")
	}
	return apperrors.New(apperrors.CodeCredentialInvalid, "credential is invalid")
}
