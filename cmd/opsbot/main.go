// Package main wires the opsbot orchestrator process lifecycle.
//
// It reads config from flags/env and runs the gRPC server until shutdown.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	opsbotcmd "github.com/orbicity/opsbot/internal/cmd/opsbot"
)

func main() {
	cfg, err := opsbotcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := opsbotcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
