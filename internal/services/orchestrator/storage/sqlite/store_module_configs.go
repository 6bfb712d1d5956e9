package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

const moduleConfigColumns = `module, enabled, auto_approve_risk_tiers, capabilities, behavior_prompt, personality_name, personality_name_ka, personality_style, updated_at`

type moduleConfigArgs struct {
	tiers        string
	capabilities string
}

func validateModuleConfig(record storage.ModuleConfigRecord) (moduleConfigArgs, error) {
	if strings.TrimSpace(record.Module) == "" {
		return moduleConfigArgs{}, fmt.Errorf("module is required")
	}
	if record.UpdatedAt.IsZero() {
		return moduleConfigArgs{}, fmt.Errorf("updated at is required")
	}
	tiers, err := encodeStrings(record.AutoApproveRiskTiers)
	if err != nil {
		return moduleConfigArgs{}, err
	}
	capabilities, err := encodeStrings(record.Capabilities)
	if err != nil {
		return moduleConfigArgs{}, err
	}
	return moduleConfigArgs{tiers: tiers, capabilities: capabilities}, nil
}

// PutModuleConfig inserts or replaces the policy row for one module.
func (s *Store) PutModuleConfig(ctx context.Context, record storage.ModuleConfigRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	args, err := validateModuleConfig(record)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO module_configs (`+moduleConfigColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(module) DO UPDATE SET
	enabled = excluded.enabled,
	auto_approve_risk_tiers = excluded.auto_approve_risk_tiers,
	capabilities = excluded.capabilities,
	behavior_prompt = excluded.behavior_prompt,
	personality_name = excluded.personality_name,
	personality_name_ka = excluded.personality_name_ka,
	personality_style = excluded.personality_style,
	updated_at = excluded.updated_at
`,
		strings.TrimSpace(record.Module),
		record.Enabled,
		args.tiers,
		args.capabilities,
		record.BehaviorPrompt,
		strings.TrimSpace(record.PersonalityName),
		strings.TrimSpace(record.PersonalityNameKa),
		strings.TrimSpace(record.PersonalityStyle),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put module config: %w", err)
	}
	return nil
}

// InsertModuleConfigIfAbsent writes record only when its module has no row yet.
func (s *Store) InsertModuleConfigIfAbsent(ctx context.Context, record storage.ModuleConfigRecord) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	args, err := validateModuleConfig(record)
	if err != nil {
		return false, err
	}

	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO module_configs (`+moduleConfigColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(module) DO NOTHING
`,
		strings.TrimSpace(record.Module),
		record.Enabled,
		args.tiers,
		args.capabilities,
		record.BehaviorPrompt,
		strings.TrimSpace(record.PersonalityName),
		strings.TrimSpace(record.PersonalityNameKa),
		strings.TrimSpace(record.PersonalityStyle),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert module config: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert module config rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetModuleConfig fetches the policy row for one module.
func (s *Store) GetModuleConfig(ctx context.Context, module string) (storage.ModuleConfigRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ModuleConfigRecord{}, err
	}
	module = strings.TrimSpace(module)
	if module == "" {
		return storage.ModuleConfigRecord{}, fmt.Errorf("module is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+moduleConfigColumns+` FROM module_configs WHERE module = ?`, module)
	rec, err := scanModuleConfig(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ModuleConfigRecord{}, storage.ErrNotFound
		}
		return storage.ModuleConfigRecord{}, fmt.Errorf("get module config: %w", err)
	}
	return rec, nil
}

// ListModuleConfigs returns every stored policy row ordered by module.
func (s *Store) ListModuleConfigs(ctx context.Context) ([]storage.ModuleConfigRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+moduleConfigColumns+` FROM module_configs ORDER BY module`)
	if err != nil {
		return nil, fmt.Errorf("list module configs: %w", err)
	}
	defer rows.Close()

	var records []storage.ModuleConfigRecord
	for rows.Next() {
		rec, err := scanModuleConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan module config row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate module config rows: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModuleConfig(row rowScanner) (storage.ModuleConfigRecord, error) {
	var (
		rec             storage.ModuleConfigRecord
		tiersRaw        string
		capabilitiesRaw string
		updatedAt       int64
	)
	if err := row.Scan(
		&rec.Module,
		&rec.Enabled,
		&tiersRaw,
		&capabilitiesRaw,
		&rec.BehaviorPrompt,
		&rec.PersonalityName,
		&rec.PersonalityNameKa,
		&rec.PersonalityStyle,
		&updatedAt,
	); err != nil {
		return storage.ModuleConfigRecord{}, err
	}
	tiers, err := decodeStrings(tiersRaw)
	if err != nil {
		return storage.ModuleConfigRecord{}, err
	}
	capabilities, err := decodeStrings(capabilitiesRaw)
	if err != nil {
		return storage.ModuleConfigRecord{}, err
	}
	rec.AutoApproveRiskTiers = tiers
	rec.Capabilities = capabilities
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}
