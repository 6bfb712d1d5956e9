package lifecycle

import (
	"context"
	"fmt"

	"github.com/orbicity/opsbot/internal/services/orchestrator/action"
	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

// Lifecycle audit event names.
const (
	EventSubmitted    = "action.submitted"
	EventAutoApproved = "action.auto_approved"
	EventApproved     = "action.approved"
	EventRejected     = "action.rejected"
	EventExecuting    = "action.executing"
	EventCompleted    = "action.completed"
	EventFailed       = "action.failed"
)

// Event is one audit entry in an action's lifecycle.
type Event = storage.ActionEventRecord

// recordEvent appends an audit entry. The trail is best effort: a failed
// write is logged and never undoes the transition it describes.
func (e *Engine) recordEvent(ctx context.Context, actionID, name string, from, to action.Status, detail string) {
	err := e.store.PutActionEvent(ctx, storage.ActionEventRecord{
		ActionID:   actionID,
		EventName:  name,
		FromStatus: string(from),
		ToStatus:   string(to),
		Detail:     detail,
		CreatedAt:  e.now().UTC(),
	})
	if err != nil {
		logger := e.actionLogger(ctx, actionID)
		logger.Warn().Err(err).Str("event", name).Msg("record action event")
	}
}

// Events returns the audit trail for one action in write order.
func (e *Engine) Events(ctx context.Context, actionID string) ([]Event, error) {
	if _, err := e.store.GetAction(ctx, actionID); err != nil {
		return nil, err
	}
	events, err := e.store.ListActionEvents(ctx, actionID)
	if err != nil {
		return nil, fmt.Errorf("list action events: %w", err)
	}
	return events, nil
}
