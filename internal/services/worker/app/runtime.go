package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	platformgrpc "github.com/onemarinex/portside/internal/platform/grpc"
	"github.com/onemarinex/portside/internal/platform/telemetry/metrics"
	"github.com/onemarinex/portside/internal/platform/timeouts"
	"github.com/onemarinex/portside/internal/services/procurement/events"
	"github.com/onemarinex/portside/internal/services/procurement/storage"
	"github.com/onemarinex/portside/internal/services/procurement/storage/driver"
	workerstorage "github.com/onemarinex/portside/internal/services/worker/storage"
	workersqlite "github.com/onemarinex/portside/internal/services/worker/storage/sqlite"
)

// RuntimeConfig controls worker startup, dependencies, and loop behavior.
type RuntimeConfig struct {
	GRPCAddr      string
	MetricsAddr   string
	Store         driver.Config
	AttemptDBPath string
	KafkaBrokers  []string
	KafkaTopic    string
	Consumer      string
	PollInterval  time.Duration
	LeaseTTL      time.Duration
	BatchSize     int
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

const (
	defaultWorkerGRPCAddr = ":8089"
	defaultAttemptDB      = "data/worker.db"
	healthService         = "worker.relay"
)

// Run starts worker runtime dependencies and the background relay loop.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.GRPCAddr) == "" {
		cfg.GRPCAddr = defaultWorkerGRPCAddr
	}
	if strings.TrimSpace(cfg.AttemptDBPath) == "" {
		cfg.AttemptDBPath = defaultAttemptDB
	}

	publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return fmt.Errorf("configure kafka publisher: %w", err)
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			log.Printf("close kafka publisher: %v", closeErr)
		}
	}()

	store, err := driver.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close procurement store: %v", closeErr)
		}
	}()

	if dir := filepath.Dir(cfg.AttemptDBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create worker storage dir: %w", err)
		}
	}
	attemptStore, err := workersqlite.Open(cfg.AttemptDBPath)
	if err != nil {
		return fmt.Errorf("open worker sqlite store: %w", err)
	}
	defer func() {
		if closeErr := attemptStore.Close(); closeErr != nil {
			log.Printf("close worker sqlite store: %v", closeErr)
		}
	}()

	relayMetrics := metrics.New()
	loopConfig := Config{
		Consumer:      cfg.Consumer,
		PollInterval:  cfg.PollInterval,
		LeaseTTL:      cfg.LeaseTTL,
		BatchSize:     cfg.BatchSize,
		MaxAttempts:   cfg.MaxAttempts,
		RetryBackoff:  cfg.RetryBackoff,
		RetryMaxDelay: cfg.RetryMaxDelay,
	}.normalized()
	loop := New(
		store,
		publishHandler(publisher),
		newAttemptStoreRecorder(attemptStore, loopConfig.Consumer),
		loopConfig,
		relayMetrics,
	)

	healthEndpoint, err := platformgrpc.NewHealthEndpoint(cfg.GRPCAddr, healthService)
	if err != nil {
		return err
	}
	healthErr := make(chan error, 1)
	go func() {
		healthErr <- healthEndpoint.Serve()
	}()
	defer func() {
		healthEndpoint.Stop()
		if serveErr := <-healthErr; serveErr != nil {
			log.Printf("worker health endpoint: %v", serveErr)
		}
	}()
	log.Printf("worker health listening at %s", healthEndpoint.Addr())

	if addr := strings.TrimSpace(cfg.MetricsAddr); addr != "" {
		metricsServer := &http.Server{
			Addr:              addr,
			Handler:           metricsMux(relayMetrics),
			ReadHeaderTimeout: timeouts.ReadHeader,
		}
		go func() {
			if serveErr := metricsServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				log.Printf("worker metrics server: %v", serveErr)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
		log.Printf("worker metrics listening at %s", addr)
	}

	return loop.Run(ctx)
}

func metricsMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	return mux
}

// publishHandler relays every event type to the broker.
func publishHandler(publisher events.Publisher) EventHandler {
	return EventHandlerFunc(func(ctx context.Context, event storage.OutboxEvent) error {
		return publisher.Publish(ctx, event)
	})
}

type attemptStoreRecorder struct {
	store    workerstorage.AttemptStore
	consumer string
}

func newAttemptStoreRecorder(store workerstorage.AttemptStore, consumer string) *attemptStoreRecorder {
	normalizedConsumer := strings.TrimSpace(consumer)
	if normalizedConsumer == "" {
		normalizedConsumer = defaultConsumer
	}
	return &attemptStoreRecorder{store: store, consumer: normalizedConsumer}
}

func (r *attemptStoreRecorder) RecordAttempt(ctx context.Context, attempt Attempt) error {
	if r == nil || r.store == nil {
		return nil
	}
	consumer := strings.TrimSpace(r.consumer)
	if consumer == "" {
		consumer = defaultConsumer
	}
	return r.store.RecordAttempt(ctx, workerstorage.AttemptRecord{
		EventID:      attempt.EventID,
		EventType:    attempt.EventType,
		AggregateID:  attempt.AggregateID,
		Consumer:     consumer,
		Outcome:      attempt.Outcome,
		AttemptCount: attempt.AttemptCount,
		LastError:    attempt.Error,
		CreatedAt:    attempt.CreatedAt,
	})
}
