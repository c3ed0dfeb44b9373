package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/onemarinex/portside/internal/services/procurement/storage"
)

// PutVendorProfile inserts or replaces a vendor profile, keeping created_at.
func (s *Store) PutVendorProfile(ctx context.Context, profile storage.VendorProfile) (storage.VendorProfile, error) {
	if err := s.ready(ctx); err != nil {
		return storage.VendorProfile{}, err
	}
	profile.UserID = strings.TrimSpace(profile.UserID)
	if profile.UserID == "" {
		return storage.VendorProfile{}, fmt.Errorf("user id is required")
	}
	ports := profile.PortsServed
	if ports == nil {
		ports = []string{}
	}
	portsJSON, err := encodeJSON(ports)
	if err != nil {
		return storage.VendorProfile{}, fmt.Errorf("encode ports served: %w", err)
	}

	var createdAt int64
	err = s.sqlDB.QueryRowContext(ctx, s.q(`
INSERT INTO vendor_profiles (user_id, company_name, ports_served_json, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
	company_name = excluded.company_name,
	ports_served_json = excluded.ports_served_json,
	updated_at = excluded.updated_at
RETURNING created_at
`),
		profile.UserID,
		profile.CompanyName,
		portsJSON,
		toMicros(profile.CreatedAt),
		toMicros(profile.UpdatedAt),
	).Scan(&createdAt)
	if err != nil {
		return storage.VendorProfile{}, fmt.Errorf("put vendor profile: %w", err)
	}
	profile.PortsServed = ports
	profile.CreatedAt = fromMicros(createdAt)
	profile.UpdatedAt = fromMicros(toMicros(profile.UpdatedAt))
	return profile, nil
}

// GetVendorProfile returns the profile for a vendor user.
func (s *Store) GetVendorProfile(ctx context.Context, userID string) (storage.VendorProfile, error) {
	if err := s.ready(ctx); err != nil {
		return storage.VendorProfile{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.VendorProfile{}, storage.ErrNotFound
	}
	return getVendorProfile(ctx, s.sqlDB, s.q(`
SELECT user_id, company_name, ports_served_json, created_at, updated_at
FROM vendor_profiles
WHERE user_id = ?
`), userID)
}

func getVendorProfile(ctx context.Context, q queryer, query string, userID string) (storage.VendorProfile, error) {
	var (
		profile   storage.VendorProfile
		portsJSON []byte
		createdAt int64
		updatedAt int64
	)
	err := q.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.CompanyName,
		&portsJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.VendorProfile{}, storage.ErrNotFound
		}
		return storage.VendorProfile{}, fmt.Errorf("get vendor profile: %w", err)
	}
	if err := decodeJSON(portsJSON, &profile.PortsServed); err != nil {
		return storage.VendorProfile{}, fmt.Errorf("decode ports served: %w", err)
	}
	if profile.PortsServed == nil {
		profile.PortsServed = []string{}
	}
	profile.CreatedAt = fromMicros(createdAt)
	profile.UpdatedAt = fromMicros(updatedAt)
	return profile, nil
}
