package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

const conversationColumns = `id, session_id, module, context, is_active, created_at, updated_at`

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// CreateConversation inserts a conversation; a second active conversation for
// the same session and module is rejected with storage.ErrConflict.
func (s *Store) CreateConversation(ctx context.Context, record storage.ConversationRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("conversation id is required")
	}
	if strings.TrimSpace(record.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(record.Module) == "" {
		return fmt.Errorf("module is required")
	}
	contextJSON, err := encodeObject(record.Context)
	if err != nil {
		return err
	}
	if contextJSON == "" {
		contextJSON = "{}"
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO conversations (`+conversationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		strings.TrimSpace(record.ID),
		strings.TrimSpace(record.SessionID),
		strings.TrimSpace(record.Module),
		contextJSON,
		record.IsActive,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// GetConversation fetches one conversation by ID.
func (s *Store) GetConversation(ctx context.Context, conversationID string) (storage.ConversationRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ConversationRecord{}, err
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return storage.ConversationRecord{}, fmt.Errorf("conversation id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, conversationID)
	rec, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ConversationRecord{}, storage.ErrNotFound
		}
		return storage.ConversationRecord{}, fmt.Errorf("get conversation: %w", err)
	}
	return rec, nil
}

// GetActiveConversation fetches the active conversation for a session and module.
func (s *Store) GetActiveConversation(ctx context.Context, sessionID string, module string) (storage.ConversationRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ConversationRecord{}, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return storage.ConversationRecord{}, fmt.Errorf("session id is required")
	}
	module = strings.TrimSpace(module)
	if module == "" {
		return storage.ConversationRecord{}, fmt.Errorf("module is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+conversationColumns+` FROM conversations
WHERE session_id = ? AND module = ? AND is_active = 1
`, sessionID, module)
	rec, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ConversationRecord{}, storage.ErrNotFound
		}
		return storage.ConversationRecord{}, fmt.Errorf("get active conversation: %w", err)
	}
	return rec, nil
}

// ListConversations returns every conversation of a session, oldest first.
func (s *Store) ListConversations(ctx context.Context, sessionID string) ([]storage.ConversationRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT `+conversationColumns+` FROM conversations
WHERE session_id = ?
ORDER BY created_at, id
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var records []storage.ConversationRecord
	for rows.Next() {
		rec, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}
	return records, nil
}

// UpdateConversationContext replaces the free-form context of a conversation.
func (s *Store) UpdateConversationContext(ctx context.Context, conversationID string, values map[string]any, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return fmt.Errorf("conversation id is required")
	}
	contextJSON, err := encodeObject(values)
	if err != nil {
		return err
	}
	if contextJSON == "" {
		contextJSON = "{}"
	}

	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE conversations SET context = ?, updated_at = ? WHERE id = ?
`, contextJSON, toMillis(updatedAt), conversationID)
	if err != nil {
		return fmt.Errorf("update conversation context: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update conversation context rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeactivateConversation marks the active conversation for a session and
// module inactive and returns its ID. The row is retained.
func (s *Store) DeactivateConversation(ctx context.Context, sessionID string, module string, at time.Time) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", fmt.Errorf("session id is required")
	}
	module = strings.TrimSpace(module)
	if module == "" {
		return "", fmt.Errorf("module is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin deactivate conversation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var conversationID string
	err = tx.QueryRowContext(ctx, `
SELECT id FROM conversations WHERE session_id = ? AND module = ? AND is_active = 1
`, sessionID, module).Scan(&conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("find active conversation: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE conversations SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1
`, toMillis(at), conversationID); err != nil {
		return "", fmt.Errorf("deactivate conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit deactivate conversation: %w", err)
	}
	return conversationID, nil
}

// AppendMessage appends a message at the next sequence number of its
// conversation and bumps the conversation's update time.
func (s *Store) AppendMessage(ctx context.Context, record storage.MessageRecord) (storage.MessageRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.MessageRecord{}, err
	}
	if strings.TrimSpace(record.ID) == "" {
		return storage.MessageRecord{}, fmt.Errorf("message id is required")
	}
	record.ConversationID = strings.TrimSpace(record.ConversationID)
	if record.ConversationID == "" {
		return storage.MessageRecord{}, fmt.Errorf("conversation id is required")
	}
	if strings.TrimSpace(record.Role) == "" {
		return storage.MessageRecord{}, fmt.Errorf("role is required")
	}
	if record.CreatedAt.IsZero() {
		return storage.MessageRecord{}, fmt.Errorf("created at is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.MessageRecord{}, fmt.Errorf("begin append message: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	if err := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?
`, record.ConversationID).Scan(&next); err != nil {
		return storage.MessageRecord{}, fmt.Errorf("next message seq: %w", err)
	}
	record.Seq = next

	if _, err := tx.ExecContext(ctx, `
INSERT INTO messages (id, conversation_id, seq, role, content, action_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		record.ID,
		record.ConversationID,
		record.Seq,
		record.Role,
		record.Content,
		strings.TrimSpace(record.ActionID),
		toMillis(record.CreatedAt),
	); err != nil {
		return storage.MessageRecord{}, fmt.Errorf("insert message: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
UPDATE conversations SET updated_at = ? WHERE id = ?
`, toMillis(record.CreatedAt), record.ConversationID)
	if err != nil {
		return storage.MessageRecord{}, fmt.Errorf("touch conversation: %w", err)
	}
	if affected, err := res.RowsAffected(); err != nil {
		return storage.MessageRecord{}, fmt.Errorf("touch conversation rows affected: %w", err)
	} else if affected == 0 {
		return storage.MessageRecord{}, storage.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return storage.MessageRecord{}, fmt.Errorf("commit append message: %w", err)
	}
	return record, nil
}

// ListMessages returns the newest limit messages of a conversation in append
// order; limit <= 0 returns the full history.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]storage.MessageRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, fmt.Errorf("conversation id is required")
	}

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.sqlDB.QueryContext(ctx, `
SELECT id, conversation_id, seq, role, content, action_id, created_at FROM (
	SELECT id, conversation_id, seq, role, content, action_id, created_at
	FROM messages WHERE conversation_id = ?
	ORDER BY seq DESC
	LIMIT ?
) ORDER BY seq
`, conversationID, limit)
	} else {
		rows, err = s.sqlDB.QueryContext(ctx, `
SELECT id, conversation_id, seq, role, content, action_id, created_at
FROM messages WHERE conversation_id = ?
ORDER BY seq
`, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var records []storage.MessageRecord
	for rows.Next() {
		var (
			rec       storage.MessageRecord
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &rec.Seq, &rec.Role, &rec.Content, &rec.ActionID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		rec.CreatedAt = fromMillis(createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return records, nil
}

func scanConversation(row rowScanner) (storage.ConversationRecord, error) {
	var (
		rec        storage.ConversationRecord
		contextRaw string
		createdAt  int64
		updatedAt  int64
	)
	if err := row.Scan(&rec.ID, &rec.SessionID, &rec.Module, &contextRaw, &rec.IsActive, &createdAt, &updatedAt); err != nil {
		return storage.ConversationRecord{}, err
	}
	values, err := decodeObject(contextRaw)
	if err != nil {
		return storage.ConversationRecord{}, err
	}
	rec.Context = values
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}
