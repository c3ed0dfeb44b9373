package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onemarinex/portside/internal/services/procurement/storage"
)

const outboxColumns = `
	id,
	event_type,
	aggregate_id,
	payload_json,
	dedupe_key,
	status,
	attempt_count,
	next_attempt_at,
	lease_owner,
	lease_expires_at,
	last_error,
	processed_at,
	created_at,
	updated_at`

// enqueueOutbox writes one outbox row inside the caller's transaction. A row
// with the same dedupe key is kept and the new one dropped.
func (s *Store) enqueueOutbox(ctx context.Context, q queryer, event storage.OutboxEvent) error {
	event.ID = strings.TrimSpace(event.ID)
	event.EventType = strings.TrimSpace(event.EventType)
	event.DedupeKey = strings.TrimSpace(event.DedupeKey)
	if event.ID == "" {
		return fmt.Errorf("outbox event id is required")
	}
	if event.EventType == "" {
		return fmt.Errorf("outbox event type is required")
	}
	if event.DedupeKey == "" {
		return fmt.Errorf("outbox dedupe key is required")
	}
	if event.Status == "" {
		event.Status = storage.OutboxStatusPending
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = event.CreatedAt
	}
	if event.NextAttemptAt.IsZero() {
		event.NextAttemptAt = event.CreatedAt
	}

	_, err := q.ExecContext(ctx, s.q(`
INSERT INTO outbox_events (`+outboxColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (dedupe_key) DO NOTHING
`),
		event.ID,
		event.EventType,
		event.AggregateID,
		string(event.PayloadJSON),
		event.DedupeKey,
		event.Status,
		event.AttemptCount,
		toMicros(event.NextAttemptAt),
		event.LeaseOwner,
		nullMicros(event.LeaseExpiresAt),
		event.LastError,
		nullMicros(event.ProcessedAt),
		toMicros(event.CreatedAt),
		toMicros(event.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("enqueue outbox event: %w", err)
	}
	return nil
}

// GetOutboxEvent returns one outbox event by id.
func (s *Store) GetOutboxEvent(ctx context.Context, id string) (storage.OutboxEvent, error) {
	if err := s.ready(ctx); err != nil {
		return storage.OutboxEvent{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.OutboxEvent{}, fmt.Errorf("event id is required")
	}
	return s.getOutboxEvent(ctx, s.sqlDB, id)
}

func (s *Store) getOutboxEvent(ctx context.Context, q queryer, id string) (storage.OutboxEvent, error) {
	row := q.QueryRowContext(ctx, s.q(`SELECT `+outboxColumns+` FROM outbox_events WHERE id = ?`), id)
	event, err := scanOutboxEvent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.OutboxEvent{}, storage.ErrNotFound
		}
		return storage.OutboxEvent{}, fmt.Errorf("get outbox event: %w", err)
	}
	return event, nil
}

// ListOutboxEvents returns every outbox row for an aggregate, oldest first.
func (s *Store) ListOutboxEvents(ctx context.Context, aggregateID string) ([]storage.OutboxEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, s.q(`
SELECT `+outboxColumns+`
FROM outbox_events
WHERE aggregate_id = ?
ORDER BY created_at ASC, id ASC
`), aggregateID)
	if err != nil {
		return nil, fmt.Errorf("list outbox events: %w", err)
	}
	defer rows.Close()

	events := make([]storage.OutboxEvent, 0)
	for rows.Next() {
		event, err := scanOutboxEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox events: %w", err)
	}
	return events, nil
}

// LeaseOutboxEvents leases due outbox events for one worker.
func (s *Store) LeaseOutboxEvents(ctx context.Context, consumer string, limit int, now time.Time, leaseTTL time.Duration) ([]storage.OutboxEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return nil, fmt.Errorf("consumer is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	if leaseTTL <= 0 {
		return nil, fmt.Errorf("lease ttl must be greater than zero")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	now = now.UTC()
	leaseExpiresAt := now.Add(leaseTTL)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("start lease transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, s.q(`
SELECT id
FROM outbox_events
WHERE (
	(status = ? AND next_attempt_at <= ?)
	OR
	(status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?)
)
ORDER BY next_attempt_at ASC, created_at ASC, id ASC
LIMIT ?
`),
		storage.OutboxStatusPending,
		toMicros(now),
		storage.OutboxStatusLeased,
		toMicros(now),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select lease candidates: %w", err)
	}
	candidateIDs := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan lease candidate: %w", scanErr)
		}
		candidateIDs = append(candidateIDs, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate lease candidates: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close lease candidates: %w", err)
	}
	if len(candidateIDs) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit empty lease transaction: %w", err)
		}
		return []storage.OutboxEvent{}, nil
	}

	leased := make([]storage.OutboxEvent, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		result, updateErr := tx.ExecContext(ctx, s.q(`
UPDATE outbox_events
SET
	status = ?,
	lease_owner = ?,
	lease_expires_at = ?,
	updated_at = ?
WHERE id = ?
AND (
	(status = ? AND next_attempt_at <= ?)
	OR
	(status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at <= ?)
)
`),
			storage.OutboxStatusLeased,
			consumer,
			toMicros(leaseExpiresAt),
			toMicros(now),
			id,
			storage.OutboxStatusPending,
			toMicros(now),
			storage.OutboxStatusLeased,
			toMicros(now),
		)
		if updateErr != nil {
			return nil, fmt.Errorf("lease outbox event %s: %w", id, updateErr)
		}
		rowsAffected, rowsErr := result.RowsAffected()
		if rowsErr != nil {
			return nil, fmt.Errorf("lease rows affected for %s: %w", id, rowsErr)
		}
		if rowsAffected == 0 {
			continue
		}

		event, scanErr := s.getOutboxEvent(ctx, tx, id)
		if scanErr != nil {
			return nil, fmt.Errorf("scan leased outbox event %s: %w", id, scanErr)
		}
		leased = append(leased, event)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lease transaction: %w", err)
	}
	return leased, nil
}

// MarkOutboxSucceeded marks one leased outbox event as published.
func (s *Store) MarkOutboxSucceeded(ctx context.Context, id string, consumer string, processedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id, consumer, err := leaseKey(id, consumer)
	if err != nil {
		return err
	}
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	return s.settle(ctx, "mark outbox succeeded", `
UPDATE outbox_events
SET
	status = ?,
	lease_owner = '',
	lease_expires_at = NULL,
	last_error = '',
	processed_at = ?,
	updated_at = ?
WHERE id = ?
AND status = ?
AND lease_owner = ?
`,
		storage.OutboxStatusSucceeded,
		toMicros(processedAt),
		toMicros(processedAt),
		id,
		storage.OutboxStatusLeased,
		consumer,
	)
}

// MarkOutboxRetry returns one leased outbox event to pending for a later attempt.
func (s *Store) MarkOutboxRetry(ctx context.Context, id string, consumer string, nextAttemptAt time.Time, lastError string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id, consumer, err := leaseKey(id, consumer)
	if err != nil {
		return err
	}
	if nextAttemptAt.IsZero() {
		return fmt.Errorf("next attempt at is required")
	}

	return s.settle(ctx, "mark outbox retry", `
UPDATE outbox_events
SET
	status = ?,
	attempt_count = attempt_count + 1,
	next_attempt_at = ?,
	lease_owner = '',
	lease_expires_at = NULL,
	last_error = ?,
	processed_at = NULL,
	updated_at = ?
WHERE id = ?
AND status = ?
AND lease_owner = ?
`,
		storage.OutboxStatusPending,
		toMicros(nextAttemptAt),
		strings.TrimSpace(lastError),
		toMicros(time.Now()),
		id,
		storage.OutboxStatusLeased,
		consumer,
	)
}

// MarkOutboxDead parks one leased outbox event after its final failed attempt.
func (s *Store) MarkOutboxDead(ctx context.Context, id string, consumer string, lastError string, processedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id, consumer, err := leaseKey(id, consumer)
	if err != nil {
		return err
	}
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}

	return s.settle(ctx, "mark outbox dead", `
UPDATE outbox_events
SET
	status = ?,
	attempt_count = attempt_count + 1,
	lease_owner = '',
	lease_expires_at = NULL,
	last_error = ?,
	processed_at = ?,
	updated_at = ?
WHERE id = ?
AND status = ?
AND lease_owner = ?
`,
		storage.OutboxStatusDead,
		strings.TrimSpace(lastError),
		toMicros(processedAt),
		toMicros(processedAt),
		id,
		storage.OutboxStatusLeased,
		consumer,
	)
}

func leaseKey(id string, consumer string) (string, string, error) {
	id = strings.TrimSpace(id)
	consumer = strings.TrimSpace(consumer)
	if id == "" {
		return "", "", fmt.Errorf("event id is required")
	}
	if consumer == "" {
		return "", "", fmt.Errorf("consumer is required")
	}
	return id, consumer, nil
}

// settle runs a lease-guarded update. A row owned by another worker, or no
// longer leased, reports ErrNotFound.
func (s *Store) settle(ctx context.Context, op string, query string, args ...any) error {
	result, err := s.sqlDB.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanOutboxEvent(scan rowScanner) (storage.OutboxEvent, error) {
	var (
		event          storage.OutboxEvent
		payload        []byte
		nextAttemptAt  int64
		leaseExpiresAt sql.NullInt64
		processedAt    sql.NullInt64
		createdAt      int64
		updatedAt      int64
	)
	if err := scan(
		&event.ID,
		&event.EventType,
		&event.AggregateID,
		&payload,
		&event.DedupeKey,
		&event.Status,
		&event.AttemptCount,
		&nextAttemptAt,
		&event.LeaseOwner,
		&leaseExpiresAt,
		&event.LastError,
		&processedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.OutboxEvent{}, err
	}
	event.PayloadJSON = payload
	event.NextAttemptAt = fromMicros(nextAttemptAt)
	event.LeaseExpiresAt = timePtr(leaseExpiresAt)
	event.ProcessedAt = timePtr(processedAt)
	event.CreatedAt = fromMicros(createdAt)
	event.UpdatedAt = fromMicros(updatedAt)
	return event, nil
}
