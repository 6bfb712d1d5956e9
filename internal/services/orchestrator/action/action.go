// Package action models AI-proposed operations and the state machine they
// move through from proposal to a terminal outcome.
package action

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orbicity/opsbot/internal/platform/id"
	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
)

// Status represents action lifecycle state.
type Status string

const (
	// StatusPending indicates the action waits for an operator decision.
	StatusPending Status = "pending"
	// StatusApproved indicates the action may run.
	StatusApproved Status = "approved"
	// StatusExecuting indicates a handler invocation is in flight.
	StatusExecuting Status = "executing"
	// StatusCompleted indicates the handler reported success.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the handler reported failure or could not run.
	StatusFailed Status = "failed"
	// StatusCancelled indicates an operator rejected the action.
	StatusCancelled Status = "cancelled"
)

var (
	// ErrEmptyID indicates an action ID is required.
	ErrEmptyID = errors.New("action id is required")
	// ErrEmptyType indicates an action type is required.
	ErrEmptyType = errors.New("action type is required")
	// ErrUnknownActionType indicates the type is not in the module's catalog.
	ErrUnknownActionType = errors.New("unknown action type")
	// ErrNotPending indicates only pending actions may be approved or rejected.
	ErrNotPending = errors.New("action is not pending")
	// ErrInvalidTransition indicates a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid action status transition")
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusCancelled},
	StatusApproved:  {StatusExecuting},
	StatusExecuting: {StatusCompleted, StatusFailed},
}

// ParseStatus normalizes and validates a status name.
func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case StatusPending, StatusApproved, StatusExecuting, StatusCompleted, StatusFailed, StatusCancelled:
		return status, nil
	default:
		return "", fmt.Errorf("unknown action status %q", value)
	}
}

// CanTransition reports whether the state machine allows from → to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// TerminalStatuses lists the statuses reported as history.
func TerminalStatuses() []Status {
	return []Status{StatusCompleted, StatusFailed, StatusCancelled}
}

// Action stores one proposed operation and its outcome.
type Action struct {
	ID             string
	ConversationID string
	Module         module.Module
	Type           string
	Data           map[string]any

	Status           Status
	RiskTier         module.RiskTier
	RequiresApproval bool

	Result map[string]any
	Error  string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ApprovedAt *time.Time
	ExecutedAt *time.Time
}

// ApprovalPolicy decides whether a risk tier needs an operator decision.
type ApprovalPolicy interface {
	RequiresApproval(tier module.RiskTier) bool
}

// CreateInput contains the fields of a new proposal.
type CreateInput struct {
	Type           string
	Data           map[string]any
	Module         module.Module
	ConversationID string
}

// NormalizeCreateInput canonicalizes input and resolves its catalog entry.
func NormalizeCreateInput(input CreateInput) (CreateInput, module.ActionDefinition, error) {
	if !input.Module.Valid() {
		return CreateInput{}, module.ActionDefinition{}, fmt.Errorf("%w: %q", module.ErrUnknownModule, input.Module)
	}
	input.Type = strings.TrimSpace(input.Type)
	if input.Type == "" {
		return CreateInput{}, module.ActionDefinition{}, ErrEmptyType
	}
	def, ok := module.Lookup(input.Module, input.Type)
	if !ok {
		return CreateInput{}, module.ActionDefinition{}, fmt.Errorf("%w: %s in %s", ErrUnknownActionType, input.Type, input.Module)
	}
	input.ConversationID = strings.TrimSpace(input.ConversationID)
	input.Data = cloneData(input.Data)
	return input, def, nil
}

// Create constructs an action classified by the catalog risk tier. It starts
// pending when policy requires approval for that tier, approved otherwise.
// A nil policy requires approval.
func Create(input CreateInput, policy ApprovalPolicy, now func() time.Time, idGenerator func() (string, error)) (Action, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, def, err := NormalizeCreateInput(input)
	if err != nil {
		return Action{}, err
	}

	actionID, err := idGenerator()
	if err != nil {
		return Action{}, fmt.Errorf("generate action id: %w", err)
	}

	requiresApproval := policy == nil || policy.RequiresApproval(def.Risk)
	createdAt := now().UTC()
	created := Action{
		ID:               actionID,
		ConversationID:   normalized.ConversationID,
		Module:           normalized.Module,
		Type:             normalized.Type,
		Data:             normalized.Data,
		Status:           StatusPending,
		RiskTier:         def.Risk,
		RequiresApproval: requiresApproval,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
	if !requiresApproval {
		created.Status = StatusApproved
		created.ApprovedAt = &createdAt
	}
	return created, nil
}

func cloneData(data map[string]any) map[string]any {
	cloned := make(map[string]any, len(data))
	for key, value := range data {
		cloned[key] = value
	}
	return cloned
}
