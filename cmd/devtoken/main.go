// Package main prints a signed development bearer token.
package main

import (
	"flag"
	"os"

	"github.com/onemarinex/portside/internal/platform/config"
	"github.com/onemarinex/portside/internal/services/procurement/identity"
	"github.com/onemarinex/portside/internal/tools/devtoken"
)

func main() {
	cfg, err := devtoken.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	identityCfg, err := identity.LoadConfigFromEnv(nil)
	if err != nil {
		config.Exitf("identity config: %v", err)
	}
	if err := devtoken.Run(cfg, identityCfg, os.Stdout); err != nil {
		config.Exitf("mint token: %v", err)
	}
}
