package orchestrator

import "time"

// ChatRequest is one operator message.
type ChatRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	Module    string         `json:"module,omitempty"`
	Message   string         `json:"message"`
	Locale    string         `json:"locale,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// ChatResponse is the assistant's answer.
type ChatResponse struct {
	Reply          string  `json:"reply"`
	ConversationID string  `json:"conversation_id,omitempty"`
	Module         string  `json:"module"`
	Disabled       bool    `json:"disabled,omitempty"`
	Action         *Action `json:"action,omitempty"`
}

// SetModuleRequest changes a session's working module.
type SetModuleRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Module    string `json:"module"`
}

// SetModuleResponse echoes the working module.
type SetModuleResponse struct {
	Module string `json:"module"`
}

// ClearConversationRequest ends the active conversation of a session in a module.
type ClearConversationRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Module    string `json:"module,omitempty"`
}

// ClearConversationResponse reports whether a conversation was active.
type ClearConversationResponse struct {
	Cleared bool `json:"cleared"`
}

// GetConversationRequest selects a conversation by ID, or the session's
// active conversation in a module when ConversationID is empty.
type GetConversationRequest struct {
	SessionID      string `json:"session_id,omitempty"`
	Module         string `json:"module,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

// GetConversationResponse carries one conversation with messages.
type GetConversationResponse struct {
	Conversation Conversation `json:"conversation"`
}

// ListConversationsRequest selects a session.
type ListConversationsRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

// ListConversationsResponse carries conversations without messages.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

// SubmitActionRequest proposes an action directly.
type SubmitActionRequest struct {
	Module         string         `json:"module"`
	Type           string         `json:"type"`
	Data           map[string]any `json:"data,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
}

// ActionIDRequest selects one action.
type ActionIDRequest struct {
	ActionID string `json:"action_id"`
}

// RejectActionRequest cancels a pending action.
type RejectActionRequest struct {
	ActionID string `json:"action_id"`
	Reason   string `json:"reason,omitempty"`
}

// ActionResponse carries one action.
type ActionResponse struct {
	Action Action `json:"action"`
}

// ListPendingActionsRequest selects pending actions; an empty module spans all.
type ListPendingActionsRequest struct {
	Module string `json:"module,omitempty"`
}

// ListActionHistoryRequest selects recent terminal actions.
type ListActionHistoryRequest struct {
	Module string `json:"module,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// ListActionsRequest selects a filtered page of actions.
type ListActionsRequest struct {
	Module    string `json:"module,omitempty"`
	Filter    string `json:"filter,omitempty"`
	PageSize  int32  `json:"page_size,omitempty"`
	PageToken string `json:"page_token,omitempty"`
}

// ListActionsResponse carries a page of actions.
type ListActionsResponse struct {
	Actions       []Action `json:"actions"`
	NextPageToken string   `json:"next_page_token,omitempty"`
}

// ListActionEventsResponse carries an action's audit trail.
type ListActionEventsResponse struct {
	Events []ActionEvent `json:"events"`
}

// ModuleRequest selects one module; empty means every module where allowed.
type ModuleRequest struct {
	Module string `json:"module,omitempty"`
}

// ModuleConfigResponse carries one module config.
type ModuleConfigResponse struct {
	Config ModuleConfig `json:"config"`
}

// UpdateModuleConfigRequest changes the fields that are set and keeps the rest.
// A null list keeps the current value; an empty list clears it.
type UpdateModuleConfigRequest struct {
	Module         string       `json:"module"`
	Enabled        *bool        `json:"enabled,omitempty"`
	AutoApprove    []string     `json:"auto_approve"`
	Capabilities   []string     `json:"capabilities"`
	BehaviorPrompt *string      `json:"behavior_prompt,omitempty"`
	Personality    *Personality `json:"personality,omitempty"`
}

// ModuleConfigsResponse carries several module configs.
type ModuleConfigsResponse struct {
	Configs []ModuleConfig `json:"configs"`
}

// ListModulesRequest is empty.
type ListModulesRequest struct{}

// ListModulesResponse describes every module and its action catalog.
type ListModulesResponse struct {
	Modules []Module `json:"modules"`
}

// Action is the wire form of one action.
type Action struct {
	ID               string         `json:"id"`
	ConversationID   string         `json:"conversation_id,omitempty"`
	Module           string         `json:"module"`
	Type             string         `json:"type"`
	Data             map[string]any `json:"data,omitempty"`
	Status           string         `json:"status"`
	RiskTier         string         `json:"risk_tier"`
	RequiresApproval bool           `json:"requires_approval"`
	Result           map[string]any `json:"result,omitempty"`
	Error            string         `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	ApprovedAt       *time.Time     `json:"approved_at,omitempty"`
	ExecutedAt       *time.Time     `json:"executed_at,omitempty"`
}

// ActionEvent is the wire form of one audit entry.
type ActionEvent struct {
	Name       string    `json:"name"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message is the wire form of one conversation turn.
type Message struct {
	Seq       int64     `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ActionID  string    `json:"action_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the wire form of one conversation.
type Conversation struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Module    string         `json:"module"`
	IsActive  bool           `json:"is_active"`
	Context   map[string]any `json:"context,omitempty"`
	Messages  []Message      `json:"messages,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Personality is the wire form of a module persona.
type Personality struct {
	Name   string `json:"name,omitempty"`
	NameKa string `json:"name_ka,omitempty"`
	Style  string `json:"style,omitempty"`
}

// ModuleConfig is the wire form of a module policy.
type ModuleConfig struct {
	Module         string      `json:"module"`
	Enabled        bool        `json:"enabled"`
	AutoApprove    []string    `json:"auto_approve"`
	Capabilities   []string    `json:"capabilities,omitempty"`
	BehaviorPrompt string      `json:"behavior_prompt,omitempty"`
	Personality    Personality `json:"personality"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ActionDefinition is the wire form of one catalog entry.
type ActionDefinition struct {
	Type          string `json:"type"`
	Risk          string `json:"risk"`
	Description   string `json:"description"`
	DescriptionKa string `json:"description_ka,omitempty"`
}

// Module is the wire form of one module and its catalog.
type Module struct {
	Name        string             `json:"name"`
	Configured  bool               `json:"configured"`
	Enabled     bool               `json:"enabled"`
	Personality Personality        `json:"personality"`
	Actions     []ActionDefinition `json:"actions"`
}
