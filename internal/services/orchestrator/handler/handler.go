// Package handler maps action types to the routines that carry them out
// against external systems.
package handler

import (
	"context"
	"sort"

	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
)

// Request is one action execution handed to a handler.
type Request struct {
	ActionID string
	Type     string
	Module   module.Module
	Data     map[string]any
}

// Result is the success/data/error triple a handler reports.
type Result struct {
	Success bool
	Data    map[string]any
	Error   string
}

// Handler executes one action against an external system.
type Handler interface {
	Handle(ctx context.Context, req Request) (Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (Result, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// RecordOnly acknowledges an action without calling any external system.
var RecordOnly = HandlerFunc(func(_ context.Context, req Request) (Result, error) {
	return Result{
		Success: true,
		Data: map[string]any{
			"message":   "Action " + req.Type + " recorded",
			"simulated": true,
		},
	}, nil
})

// Entry binds a handler to one action type.
type Entry struct {
	Type    string
	Handler Handler
}

// Registry is an immutable action type → handler map.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds a registry from entries. Later entries for the same type win.
func NewRegistry(entries ...Entry) *Registry {
	handlers := make(map[string]Handler, len(entries))
	for _, entry := range entries {
		if entry.Type == "" || entry.Handler == nil {
			continue
		}
		handlers[entry.Type] = entry.Handler
	}
	return &Registry{handlers: handlers}
}

// Resolve returns the handler for actionType, or RecordOnly when none is registered.
func (r *Registry) Resolve(actionType string) Handler {
	if r != nil {
		if h, ok := r.handlers[actionType]; ok {
			return h
		}
	}
	return RecordOnly
}

// Types lists the registered action types in sorted order.
func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}
	types := make([]string, 0, len(r.handlers))
	for actionType := range r.handlers {
		types = append(types, actionType)
	}
	sort.Strings(types)
	return types
}
