package vendors

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "github.com/onemarinex/portside/internal/platform/errors"
	"github.com/onemarinex/portside/internal/services/procurement/domain"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
)

type fakeVendorStore struct {
	mu       sync.Mutex
	profiles map[string]storage.VendorProfile
	gets     int
}

func newFakeVendorStore() *fakeVendorStore {
	return &fakeVendorStore{profiles: map[string]storage.VendorProfile{}}
}

func (s *fakeVendorStore) PutVendorProfile(_ context.Context, profile storage.VendorProfile) (storage.VendorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.profiles[profile.UserID]; ok {
		profile.CreatedAt = existing.CreatedAt
	}
	s.profiles[profile.UserID] = profile
	return profile, nil
}

func (s *fakeVendorStore) GetVendorProfile(_ context.Context, userID string) (storage.VendorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	profile, ok := s.profiles[userID]
	if !ok {
		return storage.VendorProfile{}, storage.ErrNotFound
	}
	return profile, nil
}

var vendorCaller = domain.Caller{UserID: "vendor-1", Role: domain.RoleVendor}

func TestUpsertNormalizesPorts(t *testing.T) {
	store := newFakeVendorStore()
	svc := NewService(store)
	svc.clock = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	profile, err := svc.Upsert(context.Background(), vendorCaller, UpsertInput{
		CompanyName: " Harbor Supply ",
		PortsServed: []string{" Singapore", "singapore", "", "Rotterdam"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if profile.CompanyName != "Harbor Supply" {
		t.Fatalf("company = %q", profile.CompanyName)
	}
	if len(profile.PortsServed) != 2 || profile.PortsServed[0] != "Singapore" || profile.PortsServed[1] != "Rotterdam" {
		t.Fatalf("ports = %v", profile.PortsServed)
	}
}

func TestUpsertValidation(t *testing.T) {
	svc := NewService(newFakeVendorStore())
	buyer := domain.Caller{UserID: "buyer-1", Role: domain.RoleShippingCompany}

	if _, err := svc.Upsert(context.Background(), buyer, UpsertInput{CompanyName: "x"}); apperrors.CodeOf(err) != apperrors.CodeRoleNotAllowed {
		t.Fatalf("buyer code = %s", apperrors.CodeOf(err))
	}
	if _, err := svc.Upsert(context.Background(), vendorCaller, UpsertInput{CompanyName: "  "}); apperrors.CodeOf(err) != apperrors.CodeVendorCompanyNameEmpty {
		t.Fatalf("empty name code = %s", apperrors.CodeOf(err))
	}
	if _, err := svc.Upsert(context.Background(), domain.Caller{}, UpsertInput{CompanyName: "x"}); apperrors.CodeOf(err) != apperrors.CodeUnauthenticated {
		t.Fatalf("anonymous code = %s", apperrors.CodeOf(err))
	}
}

func TestGetMissingProfile(t *testing.T) {
	svc := NewService(newFakeVendorStore())
	if _, err := svc.Get(context.Background(), "vendor-9"); apperrors.CodeOf(err) != apperrors.CodeVendorProfileNotFound {
		t.Fatalf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeVendorProfileNotFound)
	}
}
