package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Port int `env:"OPSBOT_TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("OPSBOT_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

type nestedEnvConfig struct {
	Port  int `env:"OPSBOT_TEST_PORT" envDefault:"123"`
	Store struct {
		Path string `env:"OPSBOT_TEST_DB" envDefault:"data/opsbot.db"`
	}
}

func TestParseEnvMapUsesValuesAndDefaults(t *testing.T) {
	t.Setenv("OPSBOT_TEST_PORT", "999")
	var cfg nestedEnvConfig

	if err := ParseEnvMap(&cfg, map[string]string{"OPSBOT_TEST_DB": "/tmp/ops.db"}); err != nil {
		t.Fatalf("parse env map: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("port = %d, want default 123 (process env ignored)", cfg.Port)
	}
	if cfg.Store.Path != "/tmp/ops.db" {
		t.Fatalf("db path = %q, want /tmp/ops.db", cfg.Store.Path)
	}
}

func TestParseEnvMapNil(t *testing.T) {
	var cfg nestedEnvConfig
	if err := ParseEnvMap(&cfg, nil); err != nil {
		t.Fatalf("parse env map: %v", err)
	}
	if cfg.Store.Path != "data/opsbot.db" {
		t.Fatalf("db path = %q, want default", cfg.Store.Path)
	}
}
