// Package storage defines the persistence records and store contracts used by
// the orchestrator.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrConflict indicates a conditional write lost against the current state.
var ErrConflict = errors.New("record conflict")

// ModuleConfigRecord stores the operator policy row for one module.
type ModuleConfigRecord struct {
	Module               string
	Enabled              bool
	AutoApproveRiskTiers []string
	Capabilities         []string
	BehaviorPrompt       string
	PersonalityName      string
	PersonalityNameKa    string
	PersonalityStyle     string
	UpdatedAt            time.Time
}

// SessionRecord stores the working state of one operator session.
type SessionRecord struct {
	ID        string
	Module    string
	Locale    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConversationRecord stores one conversation for a (session, module) pair.
type ConversationRecord struct {
	ID        string
	SessionID string
	Module    string
	Context   map[string]any
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageRecord stores one appended conversation turn.
type MessageRecord struct {
	ID             string
	ConversationID string
	Seq            int64
	Role           string
	Content        string
	ActionID       string
	CreatedAt      time.Time
}

// ActionRecord stores one proposed action and its lifecycle state.
type ActionRecord struct {
	ID               string
	ConversationID   string
	Module           string
	Type             string
	Data             map[string]any
	Status           string
	RiskTier         string
	RequiresApproval bool
	Result           map[string]any
	Error            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ApprovedAt       *time.Time
	ExecutedAt       *time.Time
}

// ActionPatch carries the fields written alongside a status transition.
type ActionPatch struct {
	At            time.Time
	Result        map[string]any
	Error         string
	SetApprovedAt bool
	SetExecutedAt bool
}

// ActionCursor is the keyset position after which a page starts.
type ActionCursor struct {
	CreatedAt time.Time
	ID        string
}

// ActionQuery selects a page of actions ordered newest first.
type ActionQuery struct {
	Module       string
	Statuses     []string
	FilterClause string
	FilterParams []any
	PageSize     int
	After        *ActionCursor
}

// ActionPage is a paged set of actions.
type ActionPage struct {
	Actions []ActionRecord
	// HasMore reports whether rows exist after the last returned action.
	HasMore bool
}

// ActionEventRecord stores one audit entry in an action's lifecycle.
type ActionEventRecord struct {
	ID         int64
	ActionID   string
	EventName  string
	FromStatus string
	ToStatus   string
	Detail     string
	CreatedAt  time.Time
}

// ModuleConfigStore persists module policy rows.
type ModuleConfigStore interface {
	GetModuleConfig(ctx context.Context, module string) (ModuleConfigRecord, error)
	PutModuleConfig(ctx context.Context, record ModuleConfigRecord) error
	// InsertModuleConfigIfAbsent writes record only when no row exists for its module.
	InsertModuleConfigIfAbsent(ctx context.Context, record ModuleConfigRecord) (bool, error)
	ListModuleConfigs(ctx context.Context) ([]ModuleConfigRecord, error)
}

// SessionStore persists session working state.
type SessionStore interface {
	GetSession(ctx context.Context, sessionID string) (SessionRecord, error)
	PutSession(ctx context.Context, record SessionRecord) error
}

// ConversationStore persists conversations and their append-only messages.
type ConversationStore interface {
	// CreateConversation returns ErrConflict when an active conversation
	// already exists for the same session and module.
	CreateConversation(ctx context.Context, record ConversationRecord) error
	GetConversation(ctx context.Context, conversationID string) (ConversationRecord, error)
	GetActiveConversation(ctx context.Context, sessionID string, module string) (ConversationRecord, error)
	ListConversations(ctx context.Context, sessionID string) ([]ConversationRecord, error)
	UpdateConversationContext(ctx context.Context, conversationID string, values map[string]any, updatedAt time.Time) error
	// DeactivateConversation clears the active flag; ErrNotFound when none is active.
	DeactivateConversation(ctx context.Context, sessionID string, module string, at time.Time) (string, error)
	AppendMessage(ctx context.Context, record MessageRecord) (MessageRecord, error)
	// ListMessages returns the newest limit messages in append order; limit <= 0 returns all.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]MessageRecord, error)
}

// ActionStore persists actions with compare-and-swap status transitions.
type ActionStore interface {
	PutAction(ctx context.Context, record ActionRecord) error
	GetAction(ctx context.Context, actionID string) (ActionRecord, error)
	// TransitionAction moves an action from one status to another only when
	// its current status equals from; otherwise it returns ErrConflict.
	TransitionAction(ctx context.Context, actionID string, from string, to string, patch ActionPatch) error
	ListActions(ctx context.Context, query ActionQuery) (ActionPage, error)
}

// ActionEventStore persists the lifecycle audit trail.
type ActionEventStore interface {
	PutActionEvent(ctx context.Context, record ActionEventRecord) error
	ListActionEvents(ctx context.Context, actionID string) ([]ActionEventRecord, error)
}

// Store is the full persistence surface the orchestrator runs on.
type Store interface {
	ModuleConfigStore
	SessionStore
	ConversationStore
	ActionStore
	ActionEventStore
}
