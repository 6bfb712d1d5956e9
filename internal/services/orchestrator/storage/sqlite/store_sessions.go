package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

// PutSession upserts one session's working module and locale.
func (s *Store) PutSession(ctx context.Context, record storage.SessionRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(record.Module) == "" {
		return fmt.Errorf("module is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sessions (id, module, locale, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	module = excluded.module,
	locale = excluded.locale,
	updated_at = excluded.updated_at
`,
		strings.TrimSpace(record.ID),
		strings.TrimSpace(record.Module),
		strings.TrimSpace(record.Locale),
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetSession fetches one session by ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SessionRecord{}, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return storage.SessionRecord{}, fmt.Errorf("session id is required")
	}

	var (
		rec       storage.SessionRecord
		createdAt int64
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT id, module, locale, created_at, updated_at FROM sessions WHERE id = ?
`, sessionID).Scan(&rec.ID, &rec.Module, &rec.Locale, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}
