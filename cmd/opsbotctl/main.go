// Package main runs the opsbot operator command line.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/orbicity/opsbot/internal/cmd/opsbotctl"
	"github.com/orbicity/opsbot/internal/platform/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := opsbotctl.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		config.Exitf("opsbotctl: %v", err)
	}
}
