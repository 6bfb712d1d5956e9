package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey string

const (
	sessionIDKey contextKey = "session_id"
	actionIDKey  contextKey = "action_id"
)

// WithSessionID adds a session ID to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithActionID adds an action ID to the context.
func WithActionID(ctx context.Context, actionID string) context.Context {
	return context.WithValue(ctx, actionIDKey, actionID)
}

// SessionID returns the session ID stored in ctx, or "".
func SessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

// ActionID returns the action ID stored in ctx, or "".
func ActionID(ctx context.Context) string {
	if id, ok := ctx.Value(actionIDKey).(string); ok {
		return id
	}
	return ""
}

// From decorates logger with the IDs carried by ctx.
func From(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	builder := logger.With()
	if id := SessionID(ctx); id != "" {
		builder = builder.Str("session_id", id)
	}
	if id := ActionID(ctx); id != "" {
		builder = builder.Str("action_id", id)
	}
	return builder.Logger()
}
