// Package conversation runs the chat turn: it keeps one active conversation
// per session and module, prompts the generation service with module policy
// and recent history, and hands any proposed action to the lifecycle engine.
package conversation

import (
	"errors"
	"time"

	"github.com/orbicity/opsbot/internal/services/orchestrator/action"
	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

// HistoryWindow is the number of most recent messages sent with each prompt.
const HistoryWindow = 10

var (
	// ErrEmptySessionID indicates a chat call without a session.
	ErrEmptySessionID = errors.New("session id is required")
	// ErrEmptyMessage indicates a chat call without user text.
	ErrEmptyMessage = errors.New("message text is required")
	// ErrNoActiveConversation indicates the session has no active conversation for the module.
	ErrNoActiveConversation = errors.New("no active conversation")
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one stored conversation turn.
type Message struct {
	ID        string
	Seq       int64
	Role      Role
	Content   string
	ActionID  string
	Timestamp time.Time
}

// Conversation is the message history of one session in one module.
type Conversation struct {
	ID        string
	SessionID string
	Module    module.Module
	Messages  []Message
	Context   map[string]any
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatInput is one user turn.
type ChatInput struct {
	SessionID string
	// Module selects the conversation; empty uses the session's working module.
	Module module.Module
	Text   string
	// Locale is the operator's language tag; empty keeps the session's.
	Locale string
	// Context is merged into the conversation's stored context.
	Context map[string]any
}

// ChatOutput is the assistant's answer to one turn.
type ChatOutput struct {
	Reply          string
	Action         *action.Action
	ConversationID string
	Module         module.Module
	// Disabled is set when the module is disabled or unconfigured.
	Disabled bool
}

func messageFromRecord(record storage.MessageRecord) Message {
	return Message{
		ID:        record.ID,
		Seq:       record.Seq,
		Role:      Role(record.Role),
		Content:   record.Content,
		ActionID:  record.ActionID,
		Timestamp: record.CreatedAt,
	}
}

func conversationFromRecord(record storage.ConversationRecord, messages []storage.MessageRecord) Conversation {
	c := Conversation{
		ID:        record.ID,
		SessionID: record.SessionID,
		Module:    module.Module(record.Module),
		Context:   record.Context,
		IsActive:  record.IsActive,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
	if len(messages) > 0 {
		c.Messages = make([]Message, 0, len(messages))
		for _, m := range messages {
			c.Messages = append(c.Messages, messageFromRecord(m))
		}
	}
	return c
}
