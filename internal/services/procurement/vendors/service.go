// Package vendors manages the vendor directory used to gate and label quotes.
package vendors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/onemarinex/portside/internal/platform/errors"
	"github.com/onemarinex/portside/internal/platform/otel"
	"github.com/onemarinex/portside/internal/services/procurement/domain"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
)

var tracer = otel.Tracer("procurement/vendors")

// UpsertInput is the editable part of a vendor profile.
type UpsertInput struct {
	CompanyName string
	PortsServed []string
}

// Service reads and writes vendor profiles.
type Service struct {
	store storage.VendorStore
	clock func() time.Time
}

// NewService creates a vendor directory service.
func NewService(store storage.VendorStore) *Service {
	return &Service{store: store, clock: time.Now}
}

// Upsert creates or replaces the calling vendor's profile.
func (s *Service) Upsert(ctx context.Context, caller domain.Caller, in UpsertInput) (profile storage.VendorProfile, err error) {
	ctx, span := tracer.Start(ctx, "procurement.vendors.Upsert")
	defer func() { otel.Finish(span, err) }()

	if err := domain.RequireCaller(caller); err != nil {
		return storage.VendorProfile{}, err
	}
	if !caller.IsVendor() {
		return storage.VendorProfile{}, apperrors.New(apperrors.CodeRoleNotAllowed, "only vendors have vendor profiles")
	}
	company := strings.TrimSpace(in.CompanyName)
	if company == "" {
		return storage.VendorProfile{}, apperrors.Field(apperrors.CodeVendorCompanyNameEmpty, "company_name", "company_name is required")
	}

	now := s.now()
	profile, err = s.store.PutVendorProfile(ctx, storage.VendorProfile{
		UserID:      caller.UserID,
		CompanyName: company,
		PortsServed: normalizePorts(in.PortsServed),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return storage.VendorProfile{}, apperrors.Storage(fmt.Errorf("put vendor profile: %w", err))
	}
	return profile, nil
}

// Get returns the profile for userID.
func (s *Service) Get(ctx context.Context, userID string) (profile storage.VendorProfile, err error) {
	ctx, span := tracer.Start(ctx, "procurement.vendors.Get")
	defer func() { otel.Finish(span, err) }()

	profile, err = s.store.GetVendorProfile(ctx, strings.TrimSpace(userID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.VendorProfile{}, apperrors.New(apperrors.CodeVendorProfileNotFound, "vendor profile not found")
		}
		return storage.VendorProfile{}, apperrors.Storage(fmt.Errorf("get vendor profile: %w", err))
	}
	return profile, nil
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

// normalizePorts trims ports and drops blanks and case-insensitive repeats,
// keeping first spelling and order.
func normalizePorts(ports []string) []string {
	seen := make(map[string]struct{}, len(ports))
	out := make([]string, 0, len(ports))
	for _, port := range ports {
		port = strings.TrimSpace(port)
		if port == "" {
			continue
		}
		key := strings.ToLower(port)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, port)
	}
	return out
}
