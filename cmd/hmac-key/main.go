// Package main prints a fresh bearer token signing secret, ready to paste
// into an env file:
//
//	hmac-key >> .env
//	hmac-key -raw -bytes 64
package main

import (
	"crypto/rand"
	"flag"
	"os"

	"github.com/onemarinex/portside/internal/platform/config"
	"github.com/onemarinex/portside/internal/tools/hmackey"
)

func main() {
	fs := flag.NewFlagSet("hmac-key", flag.ExitOnError)
	cfg, err := hmackey.ParseConfig(fs, os.Args[1:])
	if err != nil {
		config.Exitf("hmac-key: %v", err)
	}
	if err := hmackey.Run(cfg, os.Stdout, rand.Reader); err != nil {
		config.Exitf("hmac-key: %v", err)
	}
}
