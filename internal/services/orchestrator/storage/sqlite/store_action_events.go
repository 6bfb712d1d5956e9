package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

// PutActionEvent appends one lifecycle audit entry.
func (s *Store) PutActionEvent(ctx context.Context, record storage.ActionEventRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ActionID) == "" {
		return fmt.Errorf("action id is required")
	}
	if strings.TrimSpace(record.EventName) == "" {
		return fmt.Errorf("event name is required")
	}
	if record.CreatedAt.IsZero() {
		return fmt.Errorf("created at is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO action_events (action_id, event_name, from_status, to_status, detail, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`,
		strings.TrimSpace(record.ActionID),
		strings.TrimSpace(record.EventName),
		strings.TrimSpace(record.FromStatus),
		strings.TrimSpace(record.ToStatus),
		record.Detail,
		toMillis(record.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put action event: %w", err)
	}
	return nil
}

// ListActionEvents returns an action's audit trail in insertion order.
func (s *Store) ListActionEvents(ctx context.Context, actionID string) ([]storage.ActionEventRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	actionID = strings.TrimSpace(actionID)
	if actionID == "" {
		return nil, fmt.Errorf("action id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, action_id, event_name, from_status, to_status, detail, created_at
FROM action_events
WHERE action_id = ?
ORDER BY id
`, actionID)
	if err != nil {
		return nil, fmt.Errorf("list action events: %w", err)
	}
	defer rows.Close()

	var records []storage.ActionEventRecord
	for rows.Next() {
		var (
			rec       storage.ActionEventRecord
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.ActionID, &rec.EventName, &rec.FromStatus, &rec.ToStatus, &rec.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan action event row: %w", err)
		}
		rec.CreatedAt = fromMillis(createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action event rows: %w", err)
	}
	return records, nil
}
