// Package domain defines the procurement vocabulary shared by storage,
// services, and transport: roles, callers, and the status state machines.
package domain

import (
	"strings"

	apperrors "github.com/onemarinex/portside/internal/platform/errors"
)

// Role is the marketplace role resolved for an authenticated user.
type Role string

const (
	RoleShippingCompany Role = "shipping_company"
	RoleVendor          Role = "vendor"
	RoleAgent           Role = "agent"
	RoleCrew            Role = "crew"
)

// ParseRole normalizes a role claim. Unknown values are kept so callers with
// roles outside procurement resolve but see nothing.
func ParseRole(value string) Role {
	return Role(strings.ToLower(strings.TrimSpace(value)))
}

// Caller is the identity every procurement operation runs as.
type Caller struct {
	UserID string
	Role   Role
}

// Valid reports whether the caller carries a user id.
func (c Caller) Valid() bool {
	return strings.TrimSpace(c.UserID) != ""
}

// IsAgent reports whether the caller has marketplace-wide visibility.
func (c Caller) IsAgent() bool {
	return c.Role == RoleAgent
}

// IsVendor reports whether the caller is a vendor.
func (c Caller) IsVendor() bool {
	return c.Role == RoleVendor
}

// IsBuyer reports whether the caller authors RFQs as a shipping company.
func (c Caller) IsBuyer() bool {
	return c.Role == RoleShippingCompany
}

// RequireCaller rejects operations that run without a resolved identity.
func RequireCaller(c Caller) error {
	if !c.Valid() {
		return apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	}
	return nil
}
