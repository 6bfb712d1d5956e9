// Package opsbot parses server command flags and launches the orchestrator.
package opsbot

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/orbicity/opsbot/internal/platform/cmd"
	"github.com/orbicity/opsbot/internal/platform/logging"
	"github.com/orbicity/opsbot/internal/platform/timeouts"
	server "github.com/orbicity/opsbot/internal/services/orchestrator/app"
)

// Config holds server command configuration.
type Config struct {
	Port     int    `env:"OPSBOT_PORT" envDefault:"8095"`
	LogLevel string `env:"OPSBOT_LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"OPSBOT_LOG_FILE"`

	Server server.Config
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The orchestrator gRPC server port")
	fs.StringVar(&cfg.Server.DBPath, "db", cfg.Server.DBPath, "SQLite database path")
	fs.StringVar(&cfg.Server.ModuleSeed, "module-seed", cfg.Server.ModuleSeed, "YAML file with initial module configs")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the orchestrator with tracing until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	logging.SetDefault(logger)

	options := entrypoint.RunOptions{ShutdownTimeout: timeouts.Shutdown}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceOrchestrator, options, func(ctx context.Context) error {
		return server.Run(ctx, fmt.Sprintf(":%d", cfg.Port), cfg.Server, logging.Component("opsbot"))
	})
}
