// Package lifecycle drives actions from proposal through approval to a
// recorded outcome.
//
// Every status change is a compare-and-swap on the stored status, so
// concurrent approvals or an approval racing an execution can never invoke a
// side-effecting handler twice. Execution runs in the background through a
// Scheduler; callers observe outcomes by re-reading the action.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"

	"github.com/orbicity/opsbot/internal/platform/id"
	"github.com/orbicity/opsbot/internal/platform/logging"
	"github.com/orbicity/opsbot/internal/platform/timeouts"
	"github.com/orbicity/opsbot/internal/services/orchestrator/action"
	"github.com/orbicity/opsbot/internal/services/orchestrator/handler"
	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
	"github.com/orbicity/opsbot/internal/services/orchestrator/moduleconfig"
	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

var tracer = otel.Tracer("github.com/orbicity/opsbot/internal/services/orchestrator/lifecycle")

// ErrNoScheduler indicates execution was requested before a scheduler was attached.
var ErrNoScheduler = errors.New("no execution scheduler attached")

// scheduleFailure is the error recorded when execution could not be queued.
const scheduleFailure = "execution could not be scheduled"

// ConfigSource supplies module policy snapshots.
type ConfigSource interface {
	Get(ctx context.Context, m module.Module) (moduleconfig.Config, error)
}

// HandlerResolver maps an action type to its handler.
type HandlerResolver interface {
	Resolve(actionType string) handler.Handler
}

// Scheduler queues an action for background execution without blocking.
type Scheduler interface {
	Schedule(actionID string) error
}

// WaitingScheduler is a Scheduler that can also wait for queue space.
// ResumeApproved uses it so a backlog larger than the queue is not failed.
type WaitingScheduler interface {
	Scheduler
	ScheduleWait(ctx context.Context, actionID string) error
}

// Store is the persistence the engine needs.
type Store interface {
	storage.ActionStore
	storage.ActionEventStore
}

// Engine owns action state transitions.
type Engine struct {
	store          Store
	configs        ConfigSource
	handlers       HandlerResolver
	scheduler      Scheduler
	handlerTimeout time.Duration
	now            func() time.Time
	idGenerator    func() (string, error)
	logger         zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides action ID generation.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(e *Engine) {
		if gen != nil {
			e.idGenerator = gen
		}
	}
}

// WithHandlerTimeout caps each handler invocation.
func WithHandlerTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.handlerTimeout = timeout
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithScheduler attaches the background executor at construction.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) {
		e.scheduler = s
	}
}

// NewEngine builds an engine over store.
func NewEngine(store Store, configs ConfigSource, handlers HandlerResolver, opts ...Option) *Engine {
	e := &Engine{
		store:          store,
		configs:        configs,
		handlers:       handlers,
		handlerTimeout: timeouts.Handler,
		now:            time.Now,
		idGenerator:    id.NewID,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AttachScheduler sets the scheduler used for background execution. The
// dispatcher needs the engine to exist first, so it is attached afterwards.
func (e *Engine) AttachScheduler(s Scheduler) {
	e.scheduler = s
}

// SubmitInput describes one proposed action.
type SubmitInput struct {
	Type           string
	Data           map[string]any
	Module         module.Module
	ConversationID string
}

// Submit classifies and persists a proposal. Actions the module policy
// auto-approves are queued for execution before Submit returns; a queueing
// failure is recorded on the action as failed rather than returned.
func (e *Engine) Submit(ctx context.Context, input SubmitInput) (action.Action, error) {
	ctx, span := tracer.Start(ctx, "lifecycle.Submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("action.type", input.Type),
		attribute.String("module", string(input.Module)),
	)

	var policy action.ApprovalPolicy
	if e.configs != nil {
		cfg, err := e.configs.Get(ctx, input.Module)
		if err != nil {
			e.logger.Warn().Err(err).Str("module", string(input.Module)).Msg("module config unavailable, requiring approval")
		} else {
			policy = cfg
		}
	}

	created, err := action.Create(action.CreateInput{
		Type:           input.Type,
		Data:           input.Data,
		Module:         input.Module,
		ConversationID: input.ConversationID,
	}, policy, e.now, e.idGenerator)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "create action")
		return action.Action{}, err
	}

	if err := e.store.PutAction(ctx, action.ToRecord(created)); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "put action")
		return action.Action{}, fmt.Errorf("put action: %w", err)
	}
	span.SetAttributes(
		attribute.String("action.id", created.ID),
		attribute.String("action.risk_tier", string(created.RiskTier)),
		attribute.Bool("action.requires_approval", created.RequiresApproval),
	)

	logger := e.actionLogger(ctx, created.ID)
	e.recordEvent(ctx, created.ID, EventSubmitted, "", created.Status, string(created.RiskTier))
	logger.Info().
		Str("type", created.Type).
		Str("module", string(created.Module)).
		Str("risk_tier", string(created.RiskTier)).
		Str("status", string(created.Status)).
		Msg("action submitted")

	if created.Status == action.StatusApproved {
		e.recordEvent(ctx, created.ID, EventAutoApproved, action.StatusPending, action.StatusApproved, "")
		if !e.schedule(ctx, created.ID) {
			if refreshed, err := e.Get(ctx, created.ID); err == nil {
				return refreshed, nil
			}
		}
	}
	return created, nil
}

// Approve moves a pending action to approved and queues it. Approving an
// action that is already approved, executing, or completed is a no-op.
func (e *Engine) Approve(ctx context.Context, actionID string) error {
	actionID = strings.TrimSpace(actionID)
	if actionID == "" {
		return action.ErrEmptyID
	}
	ctx, span := tracer.Start(ctx, "lifecycle.Approve")
	defer span.End()
	span.SetAttributes(attribute.String("action.id", actionID))

	err := e.store.TransitionAction(ctx, actionID, string(action.StatusPending), string(action.StatusApproved), storage.ActionPatch{
		At:            e.now().UTC(),
		SetApprovedAt: true,
	})
	if errors.Is(err, storage.ErrConflict) {
		current, getErr := e.store.GetAction(ctx, actionID)
		if getErr != nil {
			return fmt.Errorf("get action: %w", getErr)
		}
		switch action.Status(current.Status) {
		case action.StatusApproved, action.StatusExecuting, action.StatusCompleted:
			return nil
		}
		return fmt.Errorf("%w: action %s is %s", action.ErrNotPending, actionID, current.Status)
	}
	if err != nil {
		span.RecordError(err)
		return err
	}

	e.recordEvent(ctx, actionID, EventApproved, action.StatusPending, action.StatusApproved, "")
	logger := e.actionLogger(ctx, actionID)
	logger.Info().Msg("action approved")
	e.schedule(ctx, actionID)
	return nil
}

// Reject cancels a pending action and records reason as its error.
func (e *Engine) Reject(ctx context.Context, actionID string, reason string) error {
	actionID = strings.TrimSpace(actionID)
	if actionID == "" {
		return action.ErrEmptyID
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "rejected by operator"
	}

	err := e.store.TransitionAction(ctx, actionID, string(action.StatusPending), string(action.StatusCancelled), storage.ActionPatch{
		At:    e.now().UTC(),
		Error: reason,
	})
	if errors.Is(err, storage.ErrConflict) {
		current, getErr := e.store.GetAction(ctx, actionID)
		if getErr != nil {
			return fmt.Errorf("get action: %w", getErr)
		}
		return fmt.Errorf("%w: action %s is %s", action.ErrNotPending, actionID, current.Status)
	}
	if err != nil {
		return err
	}

	e.recordEvent(ctx, actionID, EventRejected, action.StatusPending, action.StatusCancelled, reason)
	logger := e.actionLogger(ctx, actionID)
	logger.Info().Str("reason", reason).Msg("action rejected")
	return nil
}

// Execute claims an approved action, runs its handler, and records the
// outcome. It reports false without error when another caller already
// claimed the action or it is not approved.
func (e *Engine) Execute(ctx context.Context, actionID string) (bool, error) {
	actionID = strings.TrimSpace(actionID)
	if actionID == "" {
		return false, action.ErrEmptyID
	}
	ctx, span := tracer.Start(ctx, "lifecycle.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("action.id", actionID))

	err := e.store.TransitionAction(ctx, actionID, string(action.StatusApproved), string(action.StatusExecuting), storage.ActionPatch{
		At: e.now().UTC(),
	})
	if errors.Is(err, storage.ErrConflict) {
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	e.recordEvent(ctx, actionID, EventExecuting, action.StatusApproved, action.StatusExecuting, "")

	// The action is claimed; the outcome must be written even if ctx ends.
	finishCtx := context.WithoutCancel(ctx)
	logger := e.actionLogger(ctx, actionID)

	record, err := e.store.GetAction(ctx, actionID)
	if err != nil {
		return false, e.finish(finishCtx, actionID, handler.Result{}, fmt.Errorf("load action: %w", err))
	}

	result, handlerErr := e.invoke(ctx, action.FromRecord(record))
	if handlerErr != nil {
		span.RecordError(handlerErr)
		span.SetStatus(otelcodes.Error, "handler failed")
		logger.Warn().Err(handlerErr).Str("type", record.Type).Msg("action handler failed")
	} else if !result.Success {
		span.SetStatus(otelcodes.Error, "handler reported failure")
		logger.Warn().Str("type", record.Type).Str("error", result.Error).Msg("action handler reported failure")
	}

	if err := e.finish(finishCtx, actionID, result, handlerErr); err != nil {
		return false, err
	}
	success := handlerErr == nil && result.Success
	logger.Info().Str("type", record.Type).Bool("success", success).Msg("action executed")
	return success, nil
}

// invoke runs the handler for a under the handler timeout, converting panics
// into errors.
func (e *Engine) invoke(ctx context.Context, a action.Action) (result handler.Result, err error) {
	if e.handlers == nil {
		return handler.Result{}, errors.New("no handler registry configured")
	}
	ctx, cancel := context.WithTimeout(ctx, e.handlerTimeout)
	defer cancel()
	defer func() {
		if recovered := recover(); recovered != nil {
			result = handler.Result{}
			err = fmt.Errorf("handler panic: %v", recovered)
		}
	}()
	return e.handlers.Resolve(a.Type).Handle(ctx, handler.Request{
		ActionID: a.ID,
		Type:     a.Type,
		Module:   a.Module,
		Data:     a.Data,
	})
}

// finish writes the terminal transition out of executing.
func (e *Engine) finish(ctx context.Context, actionID string, result handler.Result, handlerErr error) error {
	patch := storage.ActionPatch{
		At:            e.now().UTC(),
		Result:        result.Data,
		SetExecutedAt: true,
	}
	to := action.StatusCompleted
	event := EventCompleted
	switch {
	case handlerErr != nil:
		to = action.StatusFailed
		event = EventFailed
		patch.Error = handlerErr.Error()
	case !result.Success:
		to = action.StatusFailed
		event = EventFailed
		patch.Error = strings.TrimSpace(result.Error)
		if patch.Error == "" {
			patch.Error = "handler reported failure"
		}
	}

	if err := e.store.TransitionAction(ctx, actionID, string(action.StatusExecuting), string(to), patch); err != nil {
		logger := e.actionLogger(ctx, actionID)
		logger.Error().Err(err).Str("to", string(to)).Msg("record action outcome")
		return fmt.Errorf("record action outcome: %w", err)
	}
	e.recordEvent(ctx, actionID, event, action.StatusExecuting, to, patch.Error)
	return nil
}

// schedule queues actionID, converting a queueing failure into a failed
// action. It reports whether the action was queued.
func (e *Engine) schedule(ctx context.Context, actionID string) bool {
	err := ErrNoScheduler
	if e.scheduler != nil {
		err = e.scheduler.Schedule(actionID)
	}
	if err == nil {
		return true
	}

	logger := e.actionLogger(ctx, actionID)
	logger.Error().Err(err).Msg("schedule action execution")

	ctx = context.WithoutCancel(ctx)
	if err := e.store.TransitionAction(ctx, actionID, string(action.StatusApproved), string(action.StatusExecuting), storage.ActionPatch{
		At: e.now().UTC(),
	}); err != nil {
		logger.Error().Err(err).Msg("claim unscheduled action")
		return false
	}
	e.recordEvent(ctx, actionID, EventExecuting, action.StatusApproved, action.StatusExecuting, "")
	if err := e.finish(ctx, actionID, handler.Result{}, errors.New(scheduleFailure)); err != nil {
		logger.Error().Err(err).Msg("fail unscheduled action")
	}
	return false
}

func (e *Engine) actionLogger(ctx context.Context, actionID string) zerolog.Logger {
	return logging.From(logging.WithActionID(ctx, actionID), e.logger)
}
