package opsbot

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("opsbot", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8095 {
		t.Fatalf("port = %d, want 8095", cfg.Port)
	}
	if cfg.Server.Workers != 4 || cfg.Server.QueueSize != 64 {
		t.Fatalf("workers = %d queue = %d, want 4 and 64", cfg.Server.Workers, cfg.Server.QueueSize)
	}
	if cfg.Server.Generation.Provider != "static" {
		t.Fatalf("provider = %q, want %q", cfg.Server.Generation.Provider, "static")
	}
	if cfg.Server.Gateways.Timeout != 15*time.Second {
		t.Fatalf("gateway timeout = %s, want 15s", cfg.Server.Gateways.Timeout)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("OPSBOT_PORT", "9002")
	t.Setenv("OPSBOT_DB_PATH", "/tmp/env.db")
	t.Setenv("OPSBOT_LLM_PROVIDER", "anthropic")
	t.Setenv("OPSBOT_EXECUTION_WORKERS", "9")

	fs := flag.NewFlagSet("opsbot", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-port", "9010", "-db", "/tmp/flag.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9010 {
		t.Fatalf("port = %d, want 9010", cfg.Port)
	}
	if cfg.Server.DBPath != "/tmp/flag.db" {
		t.Fatalf("db = %q, want %q", cfg.Server.DBPath, "/tmp/flag.db")
	}
	if cfg.Server.Generation.Provider != "anthropic" {
		t.Fatalf("provider = %q, want %q", cfg.Server.Generation.Provider, "anthropic")
	}
	if cfg.Server.Workers != 9 {
		t.Fatalf("workers = %d, want 9", cfg.Server.Workers)
	}
}

func TestParseConfigRejectsBadEnv(t *testing.T) {
	t.Setenv("OPSBOT_PORT", "not-a-port")
	fs := flag.NewFlagSet("opsbot", flag.ContinueOnError)
	if _, err := ParseConfig(fs, nil); err == nil {
		t.Fatal("expected error for malformed port")
	}
}
