package orchestrator

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
	"github.com/orbicity/opsbot/internal/services/orchestrator/moduleconfig"
)

// GetModuleConfig returns the cached policy of one module.
func (s *Service) GetModuleConfig(ctx context.Context, in *ModuleRequest) (*ModuleConfigResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "get module config request is required")
	}
	mod, err := module.Parse(in.Module)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	cfg, err := s.configs.Get(ctx, mod)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &ModuleConfigResponse{Config: configToWire(cfg)}, nil
}

// UpdateModuleConfig applies the set fields to a module's policy. A module
// without a stored policy starts from the built-in defaults.
func (s *Service) UpdateModuleConfig(ctx context.Context, in *UpdateModuleConfigRequest) (*ModuleConfigResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "update module config request is required")
	}
	mod, err := module.Parse(in.Module)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	cfg, err := s.configs.Get(ctx, mod)
	if err != nil {
		if !errors.Is(err, moduleconfig.ErrNotFound) {
			return nil, s.toStatus(ctx, err)
		}
		cfg = defaultConfig(mod)
	}

	if in.Enabled != nil {
		cfg.Enabled = *in.Enabled
	}
	if in.AutoApprove != nil {
		cfg.AutoApproveRiskTiers = make([]module.RiskTier, 0, len(in.AutoApprove))
		for _, tier := range in.AutoApprove {
			cfg.AutoApproveRiskTiers = append(cfg.AutoApproveRiskTiers, module.RiskTier(tier))
		}
	}
	if in.Capabilities != nil {
		cfg.Capabilities = in.Capabilities
	}
	if in.BehaviorPrompt != nil {
		cfg.BehaviorPrompt = *in.BehaviorPrompt
	}
	if in.Personality != nil {
		cfg.Personality = module.Personality{
			Name:   in.Personality.Name,
			NameKa: in.Personality.NameKa,
			Style:  in.Personality.Style,
		}
	}

	updated, err := s.configs.Put(ctx, cfg)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &ModuleConfigResponse{Config: configToWire(updated)}, nil
}

// ReloadModuleConfig refreshes one module's policy from storage, or every
// module when none is named.
func (s *Service) ReloadModuleConfig(ctx context.Context, in *ModuleRequest) (*ModuleConfigsResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "reload module config request is required")
	}
	mod, err := parseOptionalModule(in.Module)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if mod != "" {
		cfg, err := s.configs.Reload(ctx, mod)
		if err != nil {
			return nil, s.toStatus(ctx, err)
		}
		return &ModuleConfigsResponse{Configs: []ModuleConfig{configToWire(cfg)}}, nil
	}

	if err := s.configs.ReloadAll(ctx); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	configs, err := s.configs.List(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	resp := &ModuleConfigsResponse{Configs: make([]ModuleConfig, 0, len(configs))}
	for _, cfg := range configs {
		resp.Configs = append(resp.Configs, configToWire(cfg))
	}
	return resp, nil
}

// ListModules describes every module with its catalog and enablement.
func (s *Service) ListModules(ctx context.Context, in *ListModulesRequest) (*ListModulesResponse, error) {
	resp := &ListModulesResponse{Modules: make([]Module, 0, len(module.All()))}
	for _, mod := range module.All() {
		entry := Module{
			Name:        string(mod),
			Personality: personalityToWire(module.DefaultPersonality(mod)),
			Actions:     definitionsToWire(module.Definitions(mod)),
		}
		if cfg, err := s.configs.Get(ctx, mod); err == nil {
			entry.Configured = true
			entry.Enabled = cfg.Enabled
			entry.Personality = personalityToWire(cfg.Personality)
		}
		resp.Modules = append(resp.Modules, entry)
	}
	return resp, nil
}

func defaultConfig(mod module.Module) moduleconfig.Config {
	for _, cfg := range moduleconfig.DefaultConfigs() {
		if cfg.Module == mod {
			return cfg
		}
	}
	return moduleconfig.Config{Module: mod}
}
