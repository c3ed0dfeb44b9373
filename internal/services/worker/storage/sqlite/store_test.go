package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/onemarinex/portside/internal/services/worker/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestRecordAndListAttempts(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)

	if err := store.RecordAttempt(context.Background(), storage.AttemptRecord{
		EventID:      "evt-1",
		EventType:    "order.created",
		AggregateID:  "order-1",
		Consumer:     "relay-1",
		Outcome:      storage.OutcomeRetry,
		AttemptCount: 1,
		LastError:    "broker unavailable",
		CreatedAt:    now,
	}); err != nil {
		t.Fatalf("record attempt: %v", err)
	}
	if err := store.RecordAttempt(context.Background(), storage.AttemptRecord{
		EventID:      "evt-1",
		EventType:    "order.created",
		AggregateID:  "order-1",
		Consumer:     "relay-1",
		Outcome:      storage.OutcomeSucceeded,
		AttemptCount: 2,
		CreatedAt:    now.Add(time.Minute),
	}); err != nil {
		t.Fatalf("record attempt second: %v", err)
	}

	attempts, err := store.ListAttempts(context.Background(), 10)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("attempts len = %d, want 2", len(attempts))
	}
	if attempts[0].Outcome != storage.OutcomeSucceeded {
		t.Fatalf("attempts[0].outcome = %q, want %q", attempts[0].Outcome, storage.OutcomeSucceeded)
	}
	if attempts[1].LastError != "broker unavailable" || attempts[1].AggregateID != "order-1" {
		t.Fatalf("unexpected attempts[1]: %+v", attempts[1])
	}

	forEvent, err := store.ListAttemptsForEvent(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("list attempts for event: %v", err)
	}
	if len(forEvent) != 2 || forEvent[0].AttemptCount != 1 || forEvent[1].AttemptCount != 2 {
		t.Fatalf("event attempts = %+v", forEvent)
	}
}

func TestRecordAttemptValidation(t *testing.T) {
	store := openTempStore(t)

	if err := store.RecordAttempt(context.Background(), storage.AttemptRecord{}); err == nil {
		t.Fatal("expected validation error for empty attempt")
	}
	err := store.RecordAttempt(context.Background(), storage.AttemptRecord{
		EventID:   "evt-1",
		EventType: "order.created",
		Consumer:  "relay-1",
		Outcome:   "skipped",
	})
	if err == nil {
		t.Fatal("expected validation error for unknown outcome")
	}
}

func TestListAttemptsRequiresLimit(t *testing.T) {
	store := openTempStore(t)
	if _, err := store.ListAttempts(context.Background(), 0); err == nil {
		t.Fatal("expected limit error")
	}
}
