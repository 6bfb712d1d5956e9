package conversation

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"

	"github.com/orbicity/opsbot/internal/platform/i18n/catalog"
	"github.com/orbicity/opsbot/internal/platform/id"
	"github.com/orbicity/opsbot/internal/platform/logging"
	"github.com/orbicity/opsbot/internal/platform/timeouts"
	"github.com/orbicity/opsbot/internal/services/orchestrator/action"
	"github.com/orbicity/opsbot/internal/services/orchestrator/directive"
	"github.com/orbicity/opsbot/internal/services/orchestrator/generation"
	"github.com/orbicity/opsbot/internal/services/orchestrator/lifecycle"
	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
	"github.com/orbicity/opsbot/internal/services/orchestrator/moduleconfig"
	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

var tracer = otel.Tracer("github.com/orbicity/opsbot/internal/services/orchestrator/conversation")

// Fixed reply keys in the chat catalog.
const (
	replyDisabled    = "chat.disabled"
	replyError       = "chat.error"
	replyFallback    = "chat.fallback"
	replyQueueFailed = "chat.queue_failed"
)

// ConfigSource supplies module policy snapshots.
type ConfigSource interface {
	Get(ctx context.Context, m module.Module) (moduleconfig.Config, error)
}

// ActionSubmitter accepts proposals for the action lifecycle.
type ActionSubmitter interface {
	Submit(ctx context.Context, input lifecycle.SubmitInput) (action.Action, error)
}

// Store is the persistence the manager needs.
type Store interface {
	storage.SessionStore
	storage.ConversationStore
}

// Manager runs chat turns and owns conversation state.
type Manager struct {
	store             Store
	configs           ConfigSource
	generator         generation.Generator
	actions           ActionSubmitter
	replies           *catalog.Bundle
	generationTimeout time.Duration
	now               func() time.Time
	idGenerator       func() (string, error)
	logger            zerolog.Logger
	locks             *keyLock
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the manager clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides conversation and message ID generation.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(m *Manager) {
		if gen != nil {
			m.idGenerator = gen
		}
	}
}

// WithGenerationTimeout caps each generation call.
func WithGenerationTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.generationTimeout = timeout
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithReplies overrides the fixed reply catalog.
func WithReplies(bundle *catalog.Bundle) Option {
	return func(m *Manager) {
		if bundle != nil {
			m.replies = bundle
		}
	}
}

// NewManager builds a conversation manager.
func NewManager(store Store, configs ConfigSource, generator generation.Generator, actions ActionSubmitter, opts ...Option) *Manager {
	m := &Manager{
		store:             store,
		configs:           configs,
		generator:         generator,
		actions:           actions,
		replies:           catalog.Default(),
		generationTimeout: timeouts.Generation,
		now:               time.Now,
		idGenerator:       id.NewID,
		logger:            zerolog.Nop(),
		locks:             newKeyLock(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Chat runs one user turn. Generation failures and action queueing failures
// become fixed replies; only invalid input, store failures, and proposals of
// unknown action types are returned as errors.
func (m *Manager) Chat(ctx context.Context, input ChatInput) (ChatOutput, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return ChatOutput{}, ErrEmptySessionID
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return ChatOutput{}, ErrEmptyMessage
	}
	ctx = logging.WithSessionID(ctx, sessionID)
	ctx, span := tracer.Start(ctx, "conversation.Chat")
	defer span.End()

	mod := input.Module
	var session *storage.SessionRecord
	if mod == "" {
		record, err := m.store.GetSession(ctx, sessionID)
		switch {
		case err == nil:
			session = &record
			mod = module.Module(record.Module)
		case errors.Is(err, storage.ErrNotFound):
			mod = module.General
		default:
			return ChatOutput{}, fmt.Errorf("get session: %w", err)
		}
	}
	if !mod.Valid() {
		return ChatOutput{}, fmt.Errorf("%w: %q", module.ErrUnknownModule, mod)
	}
	span.SetAttributes(attribute.String("module", string(mod)))
	logger := logging.From(ctx, m.logger).With().Str("module", string(mod)).Logger()

	locale := strings.TrimSpace(input.Locale)
	if locale == "" && session != nil {
		locale = session.Locale
	}

	cfg, err := m.configs.Get(ctx, mod)
	if err != nil && !errors.Is(err, moduleconfig.ErrNotFound) {
		return ChatOutput{}, err
	}
	if err != nil || !cfg.Enabled {
		span.SetAttributes(attribute.Bool("module.disabled", true))
		return ChatOutput{Reply: m.reply(locale, replyDisabled), Module: mod, Disabled: true}, nil
	}

	unlock := m.locks.Lock(sessionID + "\x00" + string(mod))
	defer unlock()

	if session == nil {
		record, err := m.store.GetSession(ctx, sessionID)
		switch {
		case err == nil:
			session = &record
		case errors.Is(err, storage.ErrNotFound):
		default:
			return ChatOutput{}, fmt.Errorf("get session: %w", err)
		}
	}
	if locale == "" && session != nil {
		locale = session.Locale
	}
	if err := m.touchSession(ctx, sessionID, session, mod, input.Locale); err != nil {
		return ChatOutput{}, err
	}

	conv, err := m.activeConversation(ctx, sessionID, mod)
	if err != nil {
		return ChatOutput{}, err
	}
	span.SetAttributes(attribute.String("conversation.id", conv.ID))

	convContext := conv.Context
	if len(input.Context) > 0 {
		convContext = maps.Clone(conv.Context)
		if convContext == nil {
			convContext = make(map[string]any, len(input.Context))
		}
		maps.Copy(convContext, input.Context)
		if err := m.store.UpdateConversationContext(ctx, conv.ID, convContext, m.now().UTC()); err != nil {
			return ChatOutput{}, fmt.Errorf("update conversation context: %w", err)
		}
	}

	if _, err := m.appendMessage(ctx, conv.ID, RoleUser, text, ""); err != nil {
		return ChatOutput{}, err
	}

	recent, err := m.store.ListMessages(ctx, conv.ID, HistoryWindow)
	if err != nil {
		return ChatOutput{}, fmt.Errorf("list messages: %w", err)
	}
	history := make([]generation.Turn, 0, len(recent))
	for _, msg := range recent {
		history = append(history, generation.Turn{Role: generation.Role(msg.Role), Content: msg.Content})
	}

	out := ChatOutput{ConversationID: conv.ID, Module: mod}
	reply, err := m.generate(ctx, generation.Request{
		SystemPrompt: BuildSystemPrompt(PromptInput{Config: cfg, Context: convContext, Locale: locale}),
		History:      history,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "generation failed")
		logger.Warn().Err(err).Msg("generation failed")
		out.Reply = m.reply(locale, replyError)
		if _, err := m.appendMessage(ctx, conv.ID, RoleAssistant, out.Reply, ""); err != nil {
			return ChatOutput{}, err
		}
		return out, nil
	}
	if strings.TrimSpace(reply) == "" {
		reply = m.reply(locale, replyFallback)
	}

	parsed := directive.Parse(reply, func(actionType string) bool {
		return module.Allows(mod, actionType)
	})
	if parsed.Discarded != nil {
		logger.Warn().
			Str("type", parsed.Discarded.Type).
			Str("reason", parsed.Discarded.Reason).
			Msg("discarded action directive")
	}
	out.Reply = parsed.Text

	var actionID string
	if parsed.Proposal != nil {
		submitted, err := m.actions.Submit(ctx, lifecycle.SubmitInput{
			Type:           parsed.Proposal.Type,
			Data:           parsed.Proposal.Data,
			Module:         mod,
			ConversationID: conv.ID,
		})
		switch {
		case errors.Is(err, action.ErrUnknownActionType):
			span.RecordError(err)
			// The user turn is already stored, so close it with an error reply.
			if _, appendErr := m.appendMessage(ctx, conv.ID, RoleAssistant, m.reply(locale, replyError), ""); appendErr != nil {
				logger.Warn().Err(appendErr).Msg("append error reply")
			}
			return ChatOutput{}, err
		case err != nil:
			span.RecordError(err)
			logger.Error().Err(err).Str("type", parsed.Proposal.Type).Msg("submit proposed action")
			out.Reply = m.reply(locale, replyQueueFailed)
		default:
			actionID = submitted.ID
			out.Action = &submitted
			span.SetAttributes(attribute.String("action.id", submitted.ID))
		}
	}

	if _, err := m.appendMessage(ctx, conv.ID, RoleAssistant, out.Reply, actionID); err != nil {
		return ChatOutput{}, err
	}
	return out, nil
}

func (m *Manager) generate(ctx context.Context, req generation.Request) (string, error) {
	if m.generator == nil {
		return "", errors.New("no generator configured")
	}
	ctx, cancel := context.WithTimeout(ctx, m.generationTimeout)
	defer cancel()
	reply, err := m.generator.Generate(ctx, req)
	if errors.Is(err, generation.ErrEmptyOutput) {
		return "", nil
	}
	return reply, err
}

func (m *Manager) reply(locale, key string) string {
	return m.replies.Text(locale, key)
}

// touchSession creates the session on first use and records a new locale.
func (m *Manager) touchSession(ctx context.Context, sessionID string, session *storage.SessionRecord, mod module.Module, locale string) error {
	locale = strings.TrimSpace(locale)
	now := m.now().UTC()
	if session == nil {
		return m.putSession(ctx, storage.SessionRecord{
			ID:        sessionID,
			Module:    string(mod),
			Locale:    locale,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if locale == "" || locale == session.Locale {
		return nil
	}
	updated := *session
	updated.Locale = locale
	updated.UpdatedAt = now
	return m.putSession(ctx, updated)
}

func (m *Manager) putSession(ctx context.Context, record storage.SessionRecord) error {
	if err := m.store.PutSession(ctx, record); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// activeConversation returns the active conversation for the key, creating
// one when none exists.
func (m *Manager) activeConversation(ctx context.Context, sessionID string, mod module.Module) (storage.ConversationRecord, error) {
	record, err := m.store.GetActiveConversation(ctx, sessionID, string(mod))
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.ConversationRecord{}, fmt.Errorf("get active conversation: %w", err)
	}

	convID, err := m.idGenerator()
	if err != nil {
		return storage.ConversationRecord{}, fmt.Errorf("generate conversation id: %w", err)
	}
	now := m.now().UTC()
	record = storage.ConversationRecord{
		ID:        convID,
		SessionID: sessionID,
		Module:    string(mod),
		Context:   map[string]any{},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = m.store.CreateConversation(ctx, record)
	if errors.Is(err, storage.ErrConflict) {
		// Another process created it first.
		return m.store.GetActiveConversation(ctx, sessionID, string(mod))
	}
	if err != nil {
		return storage.ConversationRecord{}, fmt.Errorf("create conversation: %w", err)
	}
	logger := logging.From(ctx, m.logger)
	logger.Info().Str("module", string(mod)).Str("conversation_id", convID).Msg("conversation started")
	return record, nil
}

func (m *Manager) appendMessage(ctx context.Context, conversationID string, role Role, content, actionID string) (storage.MessageRecord, error) {
	msgID, err := m.idGenerator()
	if err != nil {
		return storage.MessageRecord{}, fmt.Errorf("generate message id: %w", err)
	}
	stored, err := m.store.AppendMessage(ctx, storage.MessageRecord{
		ID:             msgID,
		ConversationID: conversationID,
		Role:           string(role),
		Content:        content,
		ActionID:       actionID,
		CreatedAt:      m.now().UTC(),
	})
	if err != nil {
		return storage.MessageRecord{}, fmt.Errorf("append %s message: %w", role, err)
	}
	return stored, nil
}

// SetModule records the session's working module. Existing conversations
// are left untouched.
func (m *Manager) SetModule(ctx context.Context, sessionID string, mod module.Module) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrEmptySessionID
	}
	if !mod.Valid() {
		return fmt.Errorf("%w: %q", module.ErrUnknownModule, mod)
	}
	now := m.now().UTC()
	record, err := m.store.GetSession(ctx, sessionID)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		record = storage.SessionRecord{ID: sessionID, CreatedAt: now}
	default:
		return fmt.Errorf("get session: %w", err)
	}
	record.Module = string(mod)
	record.UpdatedAt = now
	return m.putSession(ctx, record)
}

// CurrentModule returns the session's working module, general by default.
func (m *Manager) CurrentModule(ctx context.Context, sessionID string) (module.Module, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", ErrEmptySessionID
	}
	record, err := m.store.GetSession(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return module.General, nil
	}
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}
	if mod := module.Module(record.Module); mod.Valid() {
		return mod, nil
	}
	return module.General, nil
}

// ClearConversation ends the active conversation for the session and module.
// The conversation is retained for audit; the next chat starts a new one.
// It reports whether a conversation was active.
func (m *Manager) ClearConversation(ctx context.Context, sessionID string, mod module.Module) (bool, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return false, ErrEmptySessionID
	}
	if !mod.Valid() {
		return false, fmt.Errorf("%w: %q", module.ErrUnknownModule, mod)
	}
	unlock := m.locks.Lock(sessionID + "\x00" + string(mod))
	defer unlock()

	convID, err := m.store.DeactivateConversation(ctx, sessionID, string(mod), m.now().UTC())
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deactivate conversation: %w", err)
	}
	logger := logging.From(logging.WithSessionID(ctx, sessionID), m.logger)
	logger.Info().
		Str("module", string(mod)).
		Str("conversation_id", convID).
		Msg("conversation cleared")
	return true, nil
}

// History returns the active conversation with its newest limit messages;
// limit <= 0 returns every stored message.
func (m *Manager) History(ctx context.Context, sessionID string, mod module.Module, limit int) (Conversation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Conversation{}, ErrEmptySessionID
	}
	if !mod.Valid() {
		return Conversation{}, fmt.Errorf("%w: %q", module.ErrUnknownModule, mod)
	}
	record, err := m.store.GetActiveConversation(ctx, sessionID, string(mod))
	if errors.Is(err, storage.ErrNotFound) {
		return Conversation{}, fmt.Errorf("%w: %w", ErrNoActiveConversation, err)
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("get active conversation: %w", err)
	}
	messages, err := m.store.ListMessages(ctx, record.ID, limit)
	if err != nil {
		return Conversation{}, fmt.Errorf("list messages: %w", err)
	}
	return conversationFromRecord(record, messages), nil
}

// GetConversation returns any conversation, active or retained, with all of
// its messages.
func (m *Manager) GetConversation(ctx context.Context, conversationID string) (Conversation, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return Conversation{}, errors.New("conversation id is required")
	}
	record, err := m.store.GetConversation(ctx, conversationID)
	if err != nil {
		return Conversation{}, err
	}
	messages, err := m.store.ListMessages(ctx, conversationID, 0)
	if err != nil {
		return Conversation{}, fmt.Errorf("list messages: %w", err)
	}
	return conversationFromRecord(record, messages), nil
}

// ListConversations returns every conversation of a session, oldest first,
// without messages.
func (m *Manager) ListConversations(ctx context.Context, sessionID string) ([]Conversation, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	records, err := m.store.ListConversations(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]Conversation, 0, len(records))
	for _, record := range records {
		out = append(out, conversationFromRecord(record, nil))
	}
	return out, nil
}
