// Package moduleconfig holds the operator-editable policy for each module and
// the cache the orchestrator reads it through.
package moduleconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

var (
	// ErrNotFound indicates no usable config exists for a module. Callers
	// treat it as disabled.
	ErrNotFound = errors.New("module config not found")
	// ErrInvalidConfig indicates a config failed validation.
	ErrInvalidConfig = errors.New("invalid module config")
)

// Config is the policy snapshot for one module.
type Config struct {
	Module               module.Module
	Enabled              bool
	AutoApproveRiskTiers []module.RiskTier
	Capabilities         []string
	BehaviorPrompt       string
	Personality          module.Personality
	UpdatedAt            time.Time
}

// AutoApproves reports whether actions at tier skip human approval.
func (c Config) AutoApproves(tier module.RiskTier) bool {
	for _, candidate := range c.AutoApproveRiskTiers {
		if candidate == tier {
			return true
		}
	}
	return false
}

// RequiresApproval reports whether actions at tier must wait for an operator.
func (c Config) RequiresApproval(tier module.RiskTier) bool {
	return !c.AutoApproves(tier)
}

// Normalize validates c and returns a canonical copy with trimmed text,
// deduplicated tiers, and a default personality when none is set.
func Normalize(c Config) (Config, error) {
	if !c.Module.Valid() {
		return Config{}, fmt.Errorf("%w: %w: %q", ErrInvalidConfig, module.ErrUnknownModule, c.Module)
	}

	seen := make(map[module.RiskTier]struct{}, len(c.AutoApproveRiskTiers))
	tiers := make([]module.RiskTier, 0, len(c.AutoApproveRiskTiers))
	for _, raw := range c.AutoApproveRiskTiers {
		tier, err := module.ParseRiskTier(string(raw))
		if err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		if _, ok := seen[tier]; ok {
			continue
		}
		seen[tier] = struct{}{}
		tiers = append(tiers, tier)
	}

	capabilities := make([]string, 0, len(c.Capabilities))
	for _, capability := range c.Capabilities {
		if capability = strings.TrimSpace(capability); capability != "" {
			capabilities = append(capabilities, capability)
		}
	}

	personality := module.Personality{
		Name:   strings.TrimSpace(c.Personality.Name),
		NameKa: strings.TrimSpace(c.Personality.NameKa),
		Style:  strings.TrimSpace(c.Personality.Style),
	}
	if personality.Name == "" {
		personality = module.DefaultPersonality(c.Module)
	}

	return Config{
		Module:               c.Module,
		Enabled:              c.Enabled,
		AutoApproveRiskTiers: tiers,
		Capabilities:         capabilities,
		BehaviorPrompt:       strings.TrimSpace(c.BehaviorPrompt),
		Personality:          personality,
		UpdatedAt:            c.UpdatedAt,
	}, nil
}

func fromRecord(record storage.ModuleConfigRecord) (Config, error) {
	m, err := module.Parse(record.Module)
	if err != nil {
		return Config{}, err
	}
	tiers := make([]module.RiskTier, 0, len(record.AutoApproveRiskTiers))
	for _, raw := range record.AutoApproveRiskTiers {
		tiers = append(tiers, module.RiskTier(raw))
	}
	return Normalize(Config{
		Module:               m,
		Enabled:              record.Enabled,
		AutoApproveRiskTiers: tiers,
		Capabilities:         record.Capabilities,
		BehaviorPrompt:       record.BehaviorPrompt,
		Personality: module.Personality{
			Name:   record.PersonalityName,
			NameKa: record.PersonalityNameKa,
			Style:  record.PersonalityStyle,
		},
		UpdatedAt: record.UpdatedAt,
	})
}

func toRecord(c Config) storage.ModuleConfigRecord {
	tiers := make([]string, 0, len(c.AutoApproveRiskTiers))
	for _, tier := range c.AutoApproveRiskTiers {
		tiers = append(tiers, string(tier))
	}
	return storage.ModuleConfigRecord{
		Module:               string(c.Module),
		Enabled:              c.Enabled,
		AutoApproveRiskTiers: tiers,
		Capabilities:         append([]string(nil), c.Capabilities...),
		BehaviorPrompt:       c.BehaviorPrompt,
		PersonalityName:      c.Personality.Name,
		PersonalityNameKa:    c.Personality.NameKa,
		PersonalityStyle:     c.Personality.Style,
		UpdatedAt:            c.UpdatedAt,
	}
}

func clone(c Config) Config {
	c.AutoApproveRiskTiers = append([]module.RiskTier(nil), c.AutoApproveRiskTiers...)
	c.Capabilities = append([]string(nil), c.Capabilities...)
	return c
}
