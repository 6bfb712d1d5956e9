package moduleconfig

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

type seedFile struct {
	Modules map[string]seedModule `yaml:"modules"`
}

type seedModule struct {
	Enabled        *bool            `yaml:"enabled"`
	AutoApprove    *[]string        `yaml:"auto_approve"`
	Capabilities   *[]string        `yaml:"capabilities"`
	BehaviorPrompt *string          `yaml:"behavior_prompt"`
	Personality    *seedPersonality `yaml:"personality"`
}

type seedPersonality struct {
	Name   string `yaml:"name"`
	NameKa string `yaml:"name_ka"`
	Style  string `yaml:"style"`
}

// LoadSeedFile reads a YAML seed document from path and applies it over
// DefaultConfigs. An empty path returns the defaults.
func LoadSeedFile(path string) ([]Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultConfigs(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed applies a YAML seed document over DefaultConfigs. Fields left out
// of the document keep their default values.
//
//	modules:
//	  finance:
//	    enabled: true
//	    auto_approve: [low, medium]
func ParseSeed(data []byte) ([]Config, error) {
	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	configs := DefaultConfigs()
	index := make(map[module.Module]int, len(configs))
	for i, cfg := range configs {
		index[cfg.Module] = i
	}

	for name, override := range doc.Modules {
		m, err := module.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("seed file: %w", err)
		}
		cfg := configs[index[m]]
		if override.Enabled != nil {
			cfg.Enabled = *override.Enabled
		}
		if override.AutoApprove != nil {
			cfg.AutoApproveRiskTiers = cfg.AutoApproveRiskTiers[:0:0]
			for _, tier := range *override.AutoApprove {
				cfg.AutoApproveRiskTiers = append(cfg.AutoApproveRiskTiers, module.RiskTier(tier))
			}
		}
		if override.Capabilities != nil {
			cfg.Capabilities = append([]string(nil), (*override.Capabilities)...)
		}
		if override.BehaviorPrompt != nil {
			cfg.BehaviorPrompt = *override.BehaviorPrompt
		}
		if override.Personality != nil {
			cfg.Personality = module.Personality{
				Name:   override.Personality.Name,
				NameKa: override.Personality.NameKa,
				Style:  override.Personality.Style,
			}
		}
		normalized, err := Normalize(cfg)
		if err != nil {
			return nil, fmt.Errorf("seed module %s: %w", m, err)
		}
		configs[index[m]] = normalized
	}
	return configs, nil
}

// Seed writes each config that has no stored row yet and reports how many
// rows were inserted. Existing rows are left as operators edited them.
func Seed(ctx context.Context, records storage.ModuleConfigStore, configs []Config, now time.Time) (int, error) {
	if records == nil {
		return 0, fmt.Errorf("config store is not configured")
	}
	inserted := 0
	for _, cfg := range configs {
		normalized, err := Normalize(cfg)
		if err != nil {
			return inserted, err
		}
		normalized.UpdatedAt = now.UTC()
		ok, err := records.InsertModuleConfigIfAbsent(ctx, toRecord(normalized))
		if err != nil {
			return inserted, fmt.Errorf("seed module %s: %w", normalized.Module, err)
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}
