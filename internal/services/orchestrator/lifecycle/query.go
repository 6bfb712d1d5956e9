package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/orbicity/opsbot/internal/platform/grpc/pagination"
	"github.com/orbicity/opsbot/internal/services/orchestrator/action"
	"github.com/orbicity/opsbot/internal/services/orchestrator/filter"
	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

// ErrInvalidFilter indicates a list filter expression could not be parsed.
var ErrInvalidFilter = errors.New("invalid action filter")

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
	scanPageSize        = 200
)

var listPageSize = pagination.PageSizeConfig{Default: 50, Max: 200}

// Get returns one action by ID.
func (e *Engine) Get(ctx context.Context, actionID string) (action.Action, error) {
	actionID = strings.TrimSpace(actionID)
	if actionID == "" {
		return action.Action{}, action.ErrEmptyID
	}
	record, err := e.store.GetAction(ctx, actionID)
	if err != nil {
		return action.Action{}, err
	}
	return action.FromRecord(record), nil
}

// GetPending returns every pending action, newest first. An empty module
// spans all modules.
func (e *Engine) GetPending(ctx context.Context, m module.Module) ([]action.Action, error) {
	var (
		out   []action.Action
		after *storage.ActionCursor
	)
	for {
		page, err := e.store.ListActions(ctx, storage.ActionQuery{
			Module:   string(m),
			Statuses: []string{string(action.StatusPending)},
			PageSize: scanPageSize,
			After:    after,
		})
		if err != nil {
			return nil, fmt.Errorf("list pending actions: %w", err)
		}
		out = append(out, action.FromRecords(page.Actions)...)
		if !page.HasMore || len(page.Actions) == 0 {
			return out, nil
		}
		last := page.Actions[len(page.Actions)-1]
		after = &storage.ActionCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
}

// GetHistory returns the most recent terminal actions, newest first. Limit
// defaults to 10 and is capped at 100.
func (e *Engine) GetHistory(ctx context.Context, m module.Module, limit int) ([]action.Action, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	statuses := make([]string, 0, len(action.TerminalStatuses()))
	for _, status := range action.TerminalStatuses() {
		statuses = append(statuses, string(status))
	}
	page, err := e.store.ListActions(ctx, storage.ActionQuery{
		Module:   string(m),
		Statuses: statuses,
		PageSize: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list action history: %w", err)
	}
	return action.FromRecords(page.Actions), nil
}

// ListInput selects a filtered page of actions.
type ListInput struct {
	Module    module.Module
	Filter    string
	PageSize  int32
	PageToken string
}

// ListOutput is one page of actions.
type ListOutput struct {
	Actions       []action.Action
	NextPageToken string
}

// List returns actions matching an AIP-160 filter expression, newest first.
func (e *Engine) List(ctx context.Context, input ListInput) (ListOutput, error) {
	query := storage.ActionQuery{
		Module:   string(input.Module),
		PageSize: pagination.ClampPageSize(input.PageSize, listPageSize),
	}
	if strings.TrimSpace(input.Filter) != "" {
		cond, err := filter.ParseActionFilter(input.Filter)
		if err != nil {
			return ListOutput{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		query.FilterClause = cond.Clause
		query.FilterParams = cond.Params
	}
	cursor, ok, err := pagination.DecodeCursor(input.PageToken)
	if err != nil {
		return ListOutput{}, err
	}
	if ok {
		query.After = &storage.ActionCursor{CreatedAt: cursor.CreatedAt, ID: cursor.ID}
	}

	page, err := e.store.ListActions(ctx, query)
	if err != nil {
		return ListOutput{}, fmt.Errorf("list actions: %w", err)
	}
	out := ListOutput{Actions: action.FromRecords(page.Actions)}
	if page.HasMore && len(page.Actions) > 0 {
		last := page.Actions[len(page.Actions)-1]
		out.NextPageToken = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return out, nil
}

// ResumeApproved queues every action left approved by a previous process,
// oldest first, and returns how many were queued. With a WaitingScheduler it
// waits for queue space instead of failing the backlog. Actions it could not
// queue stay approved for the next resume.
func (e *Engine) ResumeApproved(ctx context.Context) (int, error) {
	var (
		approved []storage.ActionRecord
		after    *storage.ActionCursor
	)
	for {
		page, err := e.store.ListActions(ctx, storage.ActionQuery{
			Statuses: []string{string(action.StatusApproved)},
			PageSize: scanPageSize,
			After:    after,
		})
		if err != nil {
			return 0, fmt.Errorf("list approved actions: %w", err)
		}
		approved = append(approved, page.Actions...)
		if !page.HasMore || len(page.Actions) == 0 {
			break
		}
		last := page.Actions[len(page.Actions)-1]
		after = &storage.ActionCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	queued := 0
	for i := len(approved) - 1; i >= 0; i-- {
		actionID := approved[i].ID
		if err := e.resume(ctx, actionID); err != nil {
			e.logger.Warn().Err(err).
				Int("queued", queued).
				Int("remaining", i+1).
				Msg("resume approved actions stopped")
			return queued, fmt.Errorf("resume action %s: %w", actionID, err)
		}
		queued++
	}
	if queued > 0 {
		e.logger.Info().Int("count", queued).Msg("resumed approved actions")
	}
	return queued, nil
}

func (e *Engine) resume(ctx context.Context, actionID string) error {
	switch s := e.scheduler.(type) {
	case nil:
		return ErrNoScheduler
	case WaitingScheduler:
		return s.ScheduleWait(ctx, actionID)
	default:
		return s.Schedule(actionID)
	}
}
