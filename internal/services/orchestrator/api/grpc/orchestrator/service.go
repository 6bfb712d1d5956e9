package orchestrator

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/metadata"

	"github.com/orbicity/opsbot/internal/services/orchestrator/action"
	"github.com/orbicity/opsbot/internal/services/orchestrator/conversation"
	"github.com/orbicity/opsbot/internal/services/orchestrator/lifecycle"
	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
	"github.com/orbicity/opsbot/internal/services/orchestrator/moduleconfig"
)

const (
	// SessionIDHeader carries the operator session when a request omits it.
	SessionIDHeader = "x-opsbot-session-id"
	// LocaleHeader carries the operator's language tag.
	LocaleHeader = "x-opsbot-locale"
)

// Conversations is the chat surface the service drives.
type Conversations interface {
	Chat(ctx context.Context, input conversation.ChatInput) (conversation.ChatOutput, error)
	SetModule(ctx context.Context, sessionID string, m module.Module) error
	CurrentModule(ctx context.Context, sessionID string) (module.Module, error)
	ClearConversation(ctx context.Context, sessionID string, m module.Module) (bool, error)
	History(ctx context.Context, sessionID string, m module.Module, limit int) (conversation.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (conversation.Conversation, error)
	ListConversations(ctx context.Context, sessionID string) ([]conversation.Conversation, error)
}

// Actions is the lifecycle surface the service drives.
type Actions interface {
	Submit(ctx context.Context, input lifecycle.SubmitInput) (action.Action, error)
	Approve(ctx context.Context, actionID string) error
	Reject(ctx context.Context, actionID string, reason string) error
	Get(ctx context.Context, actionID string) (action.Action, error)
	GetPending(ctx context.Context, m module.Module) ([]action.Action, error)
	GetHistory(ctx context.Context, m module.Module, limit int) ([]action.Action, error)
	List(ctx context.Context, input lifecycle.ListInput) (lifecycle.ListOutput, error)
	Events(ctx context.Context, actionID string) ([]lifecycle.Event, error)
}

// Configs is the module policy surface the service drives.
type Configs interface {
	Get(ctx context.Context, m module.Module) (moduleconfig.Config, error)
	Put(ctx context.Context, cfg moduleconfig.Config) (moduleconfig.Config, error)
	Reload(ctx context.Context, m module.Module) (moduleconfig.Config, error)
	ReloadAll(ctx context.Context) error
	List(ctx context.Context) ([]moduleconfig.Config, error)
}

// Service implements OrchestratorServiceServer.
type Service struct {
	conversations Conversations
	actions       Actions
	configs       Configs
	logger        zerolog.Logger
}

var _ OrchestratorServiceServer = (*Service)(nil)

// NewService builds the gRPC service over the orchestrator components.
func NewService(conversations Conversations, actions Actions, configs Configs, logger zerolog.Logger) *Service {
	return &Service{
		conversations: conversations,
		actions:       actions,
		configs:       configs,
		logger:        logger,
	}
}

func headerValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// sessionID prefers the request field over the session header.
func sessionID(ctx context.Context, fromRequest string) string {
	if value := strings.TrimSpace(fromRequest); value != "" {
		return value
	}
	return headerValue(ctx, SessionIDHeader)
}

func localeFromContext(ctx context.Context) string {
	return headerValue(ctx, LocaleHeader)
}

// parseOptionalModule parses a module name where empty is allowed.
func parseOptionalModule(value string) (module.Module, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	return module.Parse(value)
}
