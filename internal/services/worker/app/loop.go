package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/onemarinex/portside/internal/platform/timeouts"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
	workerstorage "github.com/onemarinex/portside/internal/services/worker/storage"
)

const (
	defaultConsumer      = "worker-relay"
	defaultPollInterval  = 2 * time.Second
	defaultLeaseTTL      = 30 * time.Second
	defaultBatchSize     = 32
	defaultMaxAttempts   = 8
	defaultRetryBackoff  = 5 * time.Second
	defaultRetryMaxDelay = 5 * time.Minute
)

// Config controls outbox polling, leasing and retry behavior.
type Config struct {
	Consumer      string
	PollInterval  time.Duration
	LeaseTTL      time.Duration
	BatchSize     int
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

func (c Config) normalized() Config {
	c.Consumer = strings.TrimSpace(c.Consumer)
	if c.Consumer == "" {
		c.Consumer = defaultConsumer
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = defaultLeaseTTL
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	if c.RetryMaxDelay < c.RetryBackoff {
		c.RetryMaxDelay = c.RetryBackoff
	}
	return c
}

// OutboxStore is the lease surface the relay needs from procurement storage.
type OutboxStore interface {
	LeaseOutboxEvents(ctx context.Context, consumer string, limit int, now time.Time, leaseTTL time.Duration) ([]storage.OutboxEvent, error)
	MarkOutboxSucceeded(ctx context.Context, id string, consumer string, processedAt time.Time) error
	MarkOutboxRetry(ctx context.Context, id string, consumer string, nextAttemptAt time.Time, lastError string) error
	MarkOutboxDead(ctx context.Context, id string, consumer string, lastError string, processedAt time.Time) error
}

// EventHandler delivers one leased outbox event.
type EventHandler interface {
	Handle(ctx context.Context, event storage.OutboxEvent) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event storage.OutboxEvent) error

// Handle calls f.
func (f EventHandlerFunc) Handle(ctx context.Context, event storage.OutboxEvent) error {
	return f(ctx, event)
}

// Attempt is one relay outcome passed to the recorder.
type Attempt struct {
	EventID      string
	EventType    string
	AggregateID  string
	Outcome      string
	AttemptCount int
	Error        string
	CreatedAt    time.Time
}

// AttemptRecorder keeps relay history. Recorder failures are logged only.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt Attempt) error
}

// RelayMetrics counts relay outcomes.
type RelayMetrics interface {
	RelayPublished()
	RelayRetried()
	RelayDead()
}

// Loop relays committed outbox rows to the broker with at-least-once delivery.
type Loop struct {
	store    OutboxStore
	handler  EventHandler
	recorder AttemptRecorder
	cfg      Config
	metrics  RelayMetrics
	clock    func() time.Time
}

// New builds a relay loop. recorder and metrics may be nil.
func New(store OutboxStore, handler EventHandler, recorder AttemptRecorder, cfg Config, metrics RelayMetrics) *Loop {
	return &Loop{
		store:    store,
		handler:  handler,
		recorder: recorder,
		cfg:      cfg.normalized(),
		metrics:  metrics,
		clock:    time.Now,
	}
}

// Run polls until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if l == nil || l.store == nil || l.handler == nil {
		return fmt.Errorf("relay loop is not configured")
	}
	log.Printf("outbox relay started consumer=%s poll=%s batch=%d", l.cfg.Consumer, l.cfg.PollInterval, l.cfg.BatchSize)

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()
	for {
		processed, err := l.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("outbox relay pass failed: %v", err)
		}
		if ctx.Err() != nil {
			log.Printf("outbox relay stopped consumer=%s", l.cfg.Consumer)
			return nil
		}
		// A full batch usually means more work is waiting.
		if processed == l.cfg.BatchSize {
			continue
		}
		select {
		case <-ctx.Done():
			log.Printf("outbox relay stopped consumer=%s", l.cfg.Consumer)
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce leases one batch and settles every event in it. It returns the
// number of events leased.
func (l *Loop) RunOnce(ctx context.Context) (int, error) {
	if l == nil || l.store == nil || l.handler == nil {
		return 0, fmt.Errorf("relay loop is not configured")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	leased, err := l.store.LeaseOutboxEvents(ctx, l.cfg.Consumer, l.cfg.BatchSize, l.now(), l.cfg.LeaseTTL)
	if err != nil {
		return 0, fmt.Errorf("lease outbox events: %w", err)
	}
	var errs []error
	for _, event := range leased {
		if err := l.process(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return len(leased), errors.Join(errs...)
}

func (l *Loop) process(ctx context.Context, event storage.OutboxEvent) error {
	publishCtx, cancel := context.WithTimeout(ctx, timeouts.BrokerPublish)
	handleErr := l.handler.Handle(publishCtx, event)
	cancel()

	attempt := event.AttemptCount + 1
	now := l.now()
	if handleErr == nil {
		if err := l.store.MarkOutboxSucceeded(ctx, event.ID, l.cfg.Consumer, now); err != nil {
			return fmt.Errorf("ack outbox event %s: %w", event.ID, err)
		}
		if l.metrics != nil {
			l.metrics.RelayPublished()
		}
		l.record(ctx, event, workerstorage.OutcomeSucceeded, attempt, "", now)
		return nil
	}

	reason := handleErr.Error()
	if attempt >= l.cfg.MaxAttempts {
		if err := l.store.MarkOutboxDead(ctx, event.ID, l.cfg.Consumer, reason, now); err != nil {
			return fmt.Errorf("dead-letter outbox event %s: %w", event.ID, err)
		}
		log.Printf("outbox event dead id=%s type=%s attempts=%d err=%v", event.ID, event.EventType, attempt, handleErr)
		if l.metrics != nil {
			l.metrics.RelayDead()
		}
		l.record(ctx, event, workerstorage.OutcomeDead, attempt, reason, now)
		return nil
	}

	next := now.Add(l.retryDelay(attempt))
	if err := l.store.MarkOutboxRetry(ctx, event.ID, l.cfg.Consumer, next, reason); err != nil {
		return fmt.Errorf("retry outbox event %s: %w", event.ID, err)
	}
	log.Printf("outbox event retry id=%s type=%s attempt=%d next=%s err=%v", event.ID, event.EventType, attempt, next.Format(time.RFC3339), handleErr)
	if l.metrics != nil {
		l.metrics.RelayRetried()
	}
	l.record(ctx, event, workerstorage.OutcomeRetry, attempt, reason, now)
	return nil
}

// retryDelay doubles the base backoff per failed attempt up to the cap.
func (l *Loop) retryDelay(attempt int) time.Duration {
	delay := l.cfg.RetryBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= l.cfg.RetryMaxDelay {
			return l.cfg.RetryMaxDelay
		}
	}
	return min(delay, l.cfg.RetryMaxDelay)
}

func (l *Loop) record(ctx context.Context, event storage.OutboxEvent, outcome string, attemptCount int, reason string, at time.Time) {
	if l.recorder == nil {
		return
	}
	if err := l.recorder.RecordAttempt(ctx, Attempt{
		EventID:      event.ID,
		EventType:    event.EventType,
		AggregateID:  event.AggregateID,
		Outcome:      outcome,
		AttemptCount: attemptCount,
		Error:        reason,
		CreatedAt:    at,
	}); err != nil {
		log.Printf("record relay attempt id=%s: %v", event.ID, err)
	}
}

func (l *Loop) now() time.Time {
	if l.clock == nil {
		return time.Now().UTC()
	}
	return l.clock().UTC()
}
