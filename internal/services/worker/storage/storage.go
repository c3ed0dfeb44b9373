// Package storage defines persistence for relay attempt history.
package storage

import (
	"context"
	"time"
)

// Relay attempt outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRetry     = "retry"
	OutcomeDead      = "dead"
)

// AttemptRecord is one durable relay outcome for an outbox event.
type AttemptRecord struct {
	ID           int64
	EventID      string
	EventType    string
	AggregateID  string
	Consumer     string
	Outcome      string
	AttemptCount int
	LastError    string
	CreatedAt    time.Time
}

// AttemptStore persists relay attempt records.
type AttemptStore interface {
	RecordAttempt(ctx context.Context, attempt AttemptRecord) error
	ListAttempts(ctx context.Context, limit int) ([]AttemptRecord, error)
	ListAttemptsForEvent(ctx context.Context, eventID string) ([]AttemptRecord, error)
}
