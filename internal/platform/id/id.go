// Package id generates identifiers for stored records.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a canonical UUIDv7 string. The leading 48 bits are a
// millisecond timestamp, so ids roughly follow creation order.
func NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return value.String(), nil
}
