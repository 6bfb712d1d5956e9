package moduleconfig

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
	"github.com/orbicity/opsbot/internal/testkit/opsfakes"
)

func TestDefaultConfigs(t *testing.T) {
	configs := DefaultConfigs()
	if len(configs) != len(module.All()) {
		t.Fatalf("configs len = %d, want %d", len(configs), len(module.All()))
	}
	for _, cfg := range configs {
		if !cfg.Enabled {
			t.Fatalf("%s default should be enabled", cfg.Module)
		}
		if cfg.RequiresApproval(module.RiskLow) || !cfg.RequiresApproval(module.RiskMedium) {
			t.Fatalf("%s default tiers = %v, want [low]", cfg.Module, cfg.AutoApproveRiskTiers)
		}
		if strings.TrimSpace(cfg.BehaviorPrompt) == "" {
			t.Fatalf("%s default behavior prompt is empty", cfg.Module)
		}
	}
}

func TestParseSeedOverridesDefaults(t *testing.T) {
	configs, err := ParseSeed([]byte(`
modules:
  marketing:
    enabled: false
  finance:
    auto_approve: [low, medium]
    personality:
      name: Ledger
      style: terse
`))
	if err != nil {
		t.Fatalf("parse seed: %v", err)
	}
	byModule := make(map[module.Module]Config, len(configs))
	for _, cfg := range configs {
		byModule[cfg.Module] = cfg
	}
	if byModule[module.Marketing].Enabled {
		t.Fatal("marketing should be disabled by seed")
	}
	if byModule[module.Marketing].BehaviorPrompt == "" {
		t.Fatal("marketing should keep its default behavior prompt")
	}
	if byModule[module.Finance].RequiresApproval(module.RiskMedium) {
		t.Fatal("finance should auto-approve medium")
	}
	if byModule[module.Finance].Personality.Name != "Ledger" {
		t.Fatalf("finance personality = %+v", byModule[module.Finance].Personality)
	}
	if !byModule[module.Logistics].Enabled {
		t.Fatal("logistics should keep the default")
	}
}

func TestParseSeedRejectsUnknownModule(t *testing.T) {
	if _, err := ParseSeed([]byte("modules:\n  spa:\n    enabled: true\n")); err == nil {
		t.Fatal("expected unknown module error")
	}
	if _, err := ParseSeed([]byte("modules:\n  finance:\n    auto_approve: [urgent]\n")); err == nil {
		t.Fatal("expected unknown tier error")
	}
}

func TestLoadSeedFile(t *testing.T) {
	configs, err := LoadSeedFile("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if len(configs) != len(module.All()) {
		t.Fatalf("default configs len = %d", len(configs))
	}

	path := filepath.Join(t.TempDir(), "modules.yaml")
	if err := os.WriteFile(path, []byte("modules:\n  general:\n    enabled: false\n"), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	configs, err = LoadSeedFile(path)
	if err != nil {
		t.Fatalf("load seed file: %v", err)
	}
	if configs[0].Module != module.General || configs[0].Enabled {
		t.Fatalf("general = %+v, want disabled", configs[0])
	}

	if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected missing file error")
	}
}

func TestSeedInsertsOnlyAbsentModules(t *testing.T) {
	ctx := context.Background()
	records := opsfakes.NewStore()
	records.Configs["finance"] = storage.ModuleConfigRecord{Module: "finance", Enabled: false}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	inserted, err := Seed(ctx, records, DefaultConfigs(), now)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if inserted != len(module.All())-1 {
		t.Fatalf("inserted = %d, want %d", inserted, len(module.All())-1)
	}
	if records.Configs["finance"].Enabled {
		t.Fatal("seed overwrote the operator-edited finance row")
	}
	if !records.Configs["general"].UpdatedAt.Equal(now) {
		t.Fatalf("general updated at = %v, want %v", records.Configs["general"].UpdatedAt, now)
	}

	inserted, err = Seed(ctx, records, DefaultConfigs(), now)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("reseed inserted = %d, want 0", inserted)
	}
}
