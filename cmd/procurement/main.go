// Package main starts the procurement API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	procurementcmd "github.com/onemarinex/portside/internal/cmd/procurement"
	"github.com/onemarinex/portside/internal/platform/config"
)

func main() {
	cfg, err := procurementcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := procurementcmd.Run(ctx, cfg); err != nil {
		config.Exitf("procurement: %v", err)
	}
}
