// Package worker parses worker command flags and launches the outbox relay.
package worker

import (
	"context"
	"flag"
	"strings"
	"time"

	entrypoint "github.com/onemarinex/portside/internal/platform/cmd"
	"github.com/onemarinex/portside/internal/platform/discovery"
	"github.com/onemarinex/portside/internal/services/procurement/storage/driver"
	workerserver "github.com/onemarinex/portside/internal/services/worker/app"
)

// Config holds worker command configuration.
type Config struct {
	GRPCAddr      string        `env:"PORTSIDE_WORKER_GRPC_ADDR"`
	MetricsAddr   string        `env:"PORTSIDE_WORKER_METRICS_ADDR"`
	DBPath        string        `env:"PORTSIDE_WORKER_DB_PATH" envDefault:"data/worker.db"`
	StoreDriver   string        `env:"PORTSIDE_PROCUREMENT_DB_DRIVER" envDefault:"sqlite"`
	StorePath     string        `env:"PORTSIDE_PROCUREMENT_DB_PATH" envDefault:"data/procurement.db"`
	StoreDSN      string        `env:"PORTSIDE_PROCUREMENT_DB_DSN"`
	KafkaBrokers  string        `env:"PORTSIDE_KAFKA_BROKERS"`
	KafkaTopic    string        `env:"PORTSIDE_KAFKA_TOPIC" envDefault:"portside.procurement"`
	Consumer      string        `env:"PORTSIDE_WORKER_CONSUMER" envDefault:"worker-relay"`
	PollInterval  time.Duration `env:"PORTSIDE_WORKER_POLL_INTERVAL" envDefault:"2s"`
	LeaseTTL      time.Duration `env:"PORTSIDE_WORKER_LEASE_TTL" envDefault:"30s"`
	BatchSize     int           `env:"PORTSIDE_WORKER_BATCH_SIZE" envDefault:"32"`
	MaxAttempts   int           `env:"PORTSIDE_WORKER_MAX_ATTEMPTS" envDefault:"8"`
	RetryBackoff  time.Duration `env:"PORTSIDE_WORKER_RETRY_BACKOFF" envDefault:"5s"`
	RetryMaxDelay time.Duration `env:"PORTSIDE_WORKER_RETRY_MAX_DELAY" envDefault:"5m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.GRPCAddr) == "" {
		cfg.GRPCAddr = discovery.Listen(discovery.ServiceWorker, discovery.GRPC)
	}
	if strings.TrimSpace(cfg.KafkaBrokers) == "" {
		cfg.KafkaBrokers = discovery.Addr(discovery.ServiceKafka, discovery.TCP)
	}
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "The worker health gRPC listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Optional Prometheus metrics listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The worker SQLite database path for relay attempts")
	fs.StringVar(&cfg.StoreDriver, "store-driver", cfg.StoreDriver, "Procurement store driver (sqlite or postgres)")
	fs.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "Procurement SQLite database path")
	fs.StringVar(&cfg.StoreDSN, "store-dsn", cfg.StoreDSN, "Procurement PostgreSQL DSN")
	fs.StringVar(&cfg.KafkaBrokers, "kafka-brokers", cfg.KafkaBrokers, "Comma-separated Kafka broker addresses")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", cfg.KafkaTopic, "Kafka topic for procurement events")
	fs.StringVar(&cfg.Consumer, "consumer", cfg.Consumer, "Outbox lease owner name")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Outbox poll interval")
	fs.DurationVar(&cfg.LeaseTTL, "lease-ttl", cfg.LeaseTTL, "Outbox lease duration")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Outbox events leased per poll")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Maximum publish attempts before dead-letter")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Base retry backoff delay")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "Maximum retry delay")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Brokers splits the configured broker list.
func (c Config) Brokers() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// Run starts the worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(context.Context) error {
		return workerserver.Run(ctx, workerserver.RuntimeConfig{
			GRPCAddr:    cfg.GRPCAddr,
			MetricsAddr: cfg.MetricsAddr,
			Store: driver.Config{
				Driver: cfg.StoreDriver,
				Path:   cfg.StorePath,
				DSN:    cfg.StoreDSN,
			},
			AttemptDBPath: cfg.DBPath,
			KafkaBrokers:  cfg.Brokers(),
			KafkaTopic:    cfg.KafkaTopic,
			Consumer:      cfg.Consumer,
			PollInterval:  cfg.PollInterval,
			LeaseTTL:      cfg.LeaseTTL,
			BatchSize:     cfg.BatchSize,
			MaxAttempts:   cfg.MaxAttempts,
			RetryBackoff:  cfg.RetryBackoff,
			RetryMaxDelay: cfg.RetryMaxDelay,
		})
	})
}
