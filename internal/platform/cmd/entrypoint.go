// Package cmd holds the startup sequence shared by portside binaries: env
// defaults, flag overrides, then a run loop wrapped in tracing setup.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/onemarinex/portside/internal/platform/config"
	"github.com/onemarinex/portside/internal/platform/otel"
)

const defaultOTelShutdownTimeout = 5 * time.Second

// Service names used for tracing resources and log prefixes.
const (
	ServiceProcurement = "procurement"
	ServiceWorker      = "worker"
	ServiceSeed        = "seed"
)

// RunOptions controls RunWithTelemetryAndOptions.
type RunOptions struct {
	// ShutdownTimeout bounds the tracer flush on exit.
	ShutdownTimeout time.Duration
	// LogPrefix overrides the default "[SERVICE] " prefix.
	LogPrefix string
}

// ParseConfig loads environment defaults into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// LogPrefix returns the standard log prefix for service.
func LogPrefix(service string) string {
	return "[" + strings.ToUpper(strings.TrimSpace(service)) + "] "
}

// RunWithTelemetry runs service with default options.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	return RunWithTelemetryAndOptions(ctx, service, RunOptions{}, run)
}

// RunWithTelemetryAndOptions sets the log prefix, starts tracing, runs the
// service loop and flushes traces when it returns.
func RunWithTelemetryAndOptions(ctx context.Context, service string, options RunOptions, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	prefix := options.LogPrefix
	if prefix == "" {
		prefix = LogPrefix(service)
	}
	log.SetPrefix(prefix)

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		timeout := options.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultOTelShutdownTimeout
		}
		flushCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("otel shutdown service=%s err=%v", service, err)
		}
	}()

	log.Printf("starting service=%s", service)
	err = run(ctx)
	log.Printf("stopped service=%s err=%v", service, err)
	return err
}
