package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

const actionColumns = `id, conversation_id, module, type, data, status, risk_tier, requires_approval, result, error, created_at, updated_at, approved_at, executed_at`

// PutAction inserts a new action record.
func (s *Store) PutAction(ctx context.Context, record storage.ActionRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("action id is required")
	}
	if strings.TrimSpace(record.Module) == "" {
		return fmt.Errorf("module is required")
	}
	if strings.TrimSpace(record.Type) == "" {
		return fmt.Errorf("action type is required")
	}
	if strings.TrimSpace(record.Status) == "" {
		return fmt.Errorf("status is required")
	}
	if strings.TrimSpace(record.RiskTier) == "" {
		return fmt.Errorf("risk tier is required")
	}
	data, err := encodeObject(record.Data)
	if err != nil {
		return err
	}
	if data == "" {
		data = "{}"
	}
	result, err := encodeObject(record.Result)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO actions (`+actionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		strings.TrimSpace(record.ID),
		strings.TrimSpace(record.ConversationID),
		strings.TrimSpace(record.Module),
		strings.TrimSpace(record.Type),
		data,
		record.Status,
		record.RiskTier,
		record.RequiresApproval,
		result,
		record.Error,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
		nullMillis(record.ApprovedAt),
		nullMillis(record.ExecutedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("put action: %w", err)
	}
	return nil
}

// GetAction fetches one action by ID.
func (s *Store) GetAction(ctx context.Context, actionID string) (storage.ActionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ActionRecord{}, err
	}
	actionID = strings.TrimSpace(actionID)
	if actionID == "" {
		return storage.ActionRecord{}, fmt.Errorf("action id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM actions WHERE id = ?`, actionID)
	rec, err := scanAction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ActionRecord{}, storage.ErrNotFound
		}
		return storage.ActionRecord{}, fmt.Errorf("get action: %w", err)
	}
	return rec, nil
}

// TransitionAction applies a compare-and-swap status update. The write only
// lands when the stored status equals from.
func (s *Store) TransitionAction(ctx context.Context, actionID string, from string, to string, patch storage.ActionPatch) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	actionID = strings.TrimSpace(actionID)
	if actionID == "" {
		return fmt.Errorf("action id is required")
	}
	if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
		return fmt.Errorf("from and to status are required")
	}
	if patch.At.IsZero() {
		return fmt.Errorf("transition time is required")
	}

	at := toMillis(patch.At)
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{to, at}
	if patch.Result != nil {
		result, err := encodeObject(patch.Result)
		if err != nil {
			return err
		}
		sets = append(sets, "result = ?")
		args = append(args, result)
	}
	if patch.Error != "" {
		sets = append(sets, "error = ?")
		args = append(args, patch.Error)
	}
	if patch.SetApprovedAt {
		sets = append(sets, "approved_at = ?")
		args = append(args, at)
	}
	if patch.SetExecutedAt {
		sets = append(sets, "executed_at = ?")
		args = append(args, at)
	}
	args = append(args, actionID, from)

	res, err := s.sqlDB.ExecContext(ctx,
		"UPDATE actions SET "+strings.Join(sets, ", ")+" WHERE id = ? AND status = ?",
		args...,
	)
	if err != nil {
		return fmt.Errorf("transition action: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition action rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	err = s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM actions WHERE id = ?`, actionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check action exists: %w", err)
	}
	return storage.ErrConflict
}

// ListActions returns one page of actions ordered newest first.
func (s *Store) ListActions(ctx context.Context, query storage.ActionQuery) (storage.ActionPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ActionPage{}, err
	}
	if query.PageSize <= 0 {
		return storage.ActionPage{}, fmt.Errorf("page size must be greater than zero")
	}

	var (
		where []string
		args  []any
	)
	if module := strings.TrimSpace(query.Module); module != "" {
		where = append(where, "module = ?")
		args = append(args, module)
	}
	if len(query.Statuses) > 0 {
		placeholders := make([]string, len(query.Statuses))
		for i, status := range query.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if clause := strings.TrimSpace(query.FilterClause); clause != "" {
		where = append(where, "("+clause+")")
		args = append(args, query.FilterParams...)
	}
	if query.After != nil {
		after := toMillis(query.After.CreatedAt)
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, after, after, query.After.ID)
	}

	statement := `SELECT ` + actionColumns + ` FROM actions`
	if len(where) > 0 {
		statement += " WHERE " + strings.Join(where, " AND ")
	}
	statement += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, query.PageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, statement, args...)
	if err != nil {
		return storage.ActionPage{}, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	page := storage.ActionPage{Actions: make([]storage.ActionRecord, 0, query.PageSize)}
	for rows.Next() {
		rec, err := scanAction(rows)
		if err != nil {
			return storage.ActionPage{}, fmt.Errorf("scan action row: %w", err)
		}
		page.Actions = append(page.Actions, rec)
	}
	if err := rows.Err(); err != nil {
		return storage.ActionPage{}, fmt.Errorf("iterate action rows: %w", err)
	}
	if len(page.Actions) > query.PageSize {
		page.Actions = page.Actions[:query.PageSize]
		page.HasMore = true
	}
	return page, nil
}

func scanAction(row rowScanner) (storage.ActionRecord, error) {
	var (
		rec        storage.ActionRecord
		dataRaw    string
		resultRaw  string
		createdAt  int64
		updatedAt  int64
		approvedAt sql.NullInt64
		executedAt sql.NullInt64
	)
	if err := row.Scan(
		&rec.ID,
		&rec.ConversationID,
		&rec.Module,
		&rec.Type,
		&dataRaw,
		&rec.Status,
		&rec.RiskTier,
		&rec.RequiresApproval,
		&resultRaw,
		&rec.Error,
		&createdAt,
		&updatedAt,
		&approvedAt,
		&executedAt,
	); err != nil {
		return storage.ActionRecord{}, err
	}
	data, err := decodeObject(dataRaw)
	if err != nil {
		return storage.ActionRecord{}, err
	}
	if data == nil {
		data = map[string]any{}
	}
	result, err := decodeObject(resultRaw)
	if err != nil {
		return storage.ActionRecord{}, err
	}
	rec.Data = data
	rec.Result = result
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	rec.ApprovedAt = fromNullMillis(approvedAt)
	rec.ExecutedAt = fromNullMillis(executedAt)
	return rec, nil
}
