// Package main starts the outbox relay worker.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	workercmd "github.com/onemarinex/portside/internal/cmd/worker"
	"github.com/onemarinex/portside/internal/platform/config"
)

func main() {
	cfg, err := workercmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := workercmd.Run(ctx, cfg); err != nil {
		config.Exitf("worker: %v", err)
	}
}
