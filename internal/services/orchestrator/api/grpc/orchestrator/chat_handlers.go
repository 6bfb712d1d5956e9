package orchestrator

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/orbicity/opsbot/internal/services/orchestrator/conversation"
	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
)

// Chat runs one operator turn.
func (s *Service) Chat(ctx context.Context, in *ChatRequest) (*ChatResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "chat request is required")
	}
	mod, err := parseOptionalModule(in.Module)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	locale := in.Locale
	if locale == "" {
		locale = localeFromContext(ctx)
	}
	out, err := s.conversations.Chat(ctx, conversation.ChatInput{
		SessionID: sessionID(ctx, in.SessionID),
		Module:    mod,
		Text:      in.Message,
		Locale:    locale,
		Context:   in.Context,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	resp := &ChatResponse{
		Reply:          out.Reply,
		ConversationID: out.ConversationID,
		Module:         string(out.Module),
		Disabled:       out.Disabled,
	}
	if out.Action != nil {
		wire := actionToWire(*out.Action)
		resp.Action = &wire
	}
	return resp, nil
}

// SetModule changes the session's working module.
func (s *Service) SetModule(ctx context.Context, in *SetModuleRequest) (*SetModuleResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "set module request is required")
	}
	mod, err := module.Parse(in.Module)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if err := s.conversations.SetModule(ctx, sessionID(ctx, in.SessionID), mod); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &SetModuleResponse{Module: string(mod)}, nil
}

// ClearConversation ends the active conversation; an empty module uses the
// session's working module.
func (s *Service) ClearConversation(ctx context.Context, in *ClearConversationRequest) (*ClearConversationResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "clear conversation request is required")
	}
	session := sessionID(ctx, in.SessionID)
	mod, err := s.moduleOrCurrent(ctx, session, in.Module)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	cleared, err := s.conversations.ClearConversation(ctx, session, mod)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &ClearConversationResponse{Cleared: cleared}, nil
}

// GetConversation returns a conversation by ID or the session's active one.
func (s *Service) GetConversation(ctx context.Context, in *GetConversationRequest) (*GetConversationResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "get conversation request is required")
	}
	if in.ConversationID != "" {
		conv, err := s.conversations.GetConversation(ctx, in.ConversationID)
		if err != nil {
			return nil, s.toStatus(ctx, err)
		}
		return &GetConversationResponse{Conversation: conversationToWire(conv)}, nil
	}
	session := sessionID(ctx, in.SessionID)
	mod, err := s.moduleOrCurrent(ctx, session, in.Module)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	conv, err := s.conversations.History(ctx, session, mod, in.Limit)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &GetConversationResponse{Conversation: conversationToWire(conv)}, nil
}

// ListConversations returns every conversation of a session.
func (s *Service) ListConversations(ctx context.Context, in *ListConversationsRequest) (*ListConversationsResponse, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "list conversations request is required")
	}
	conversations, err := s.conversations.ListConversations(ctx, sessionID(ctx, in.SessionID))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	resp := &ListConversationsResponse{Conversations: make([]Conversation, 0, len(conversations))}
	for _, c := range conversations {
		resp.Conversations = append(resp.Conversations, conversationToWire(c))
	}
	return resp, nil
}

func (s *Service) moduleOrCurrent(ctx context.Context, session, value string) (module.Module, error) {
	mod, err := parseOptionalModule(value)
	if err != nil || mod != "" {
		return mod, err
	}
	return s.conversations.CurrentModule(ctx, session)
}
