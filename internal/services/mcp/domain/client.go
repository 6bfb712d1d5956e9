package domain

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"

	"github.com/orbicity/opsbot/internal/services/orchestrator/api/grpc/orchestrator"
)

// OrchestratorClient is the subset of the orchestrator API the MCP tools call.
type OrchestratorClient interface {
	Chat(ctx context.Context, in *orchestrator.ChatRequest, opts ...grpc.CallOption) (*orchestrator.ChatResponse, error)
	ApproveAction(ctx context.Context, in *orchestrator.ActionIDRequest, opts ...grpc.CallOption) (*orchestrator.ActionResponse, error)
	RejectAction(ctx context.Context, in *orchestrator.RejectActionRequest, opts ...grpc.CallOption) (*orchestrator.ActionResponse, error)
	GetAction(ctx context.Context, in *orchestrator.ActionIDRequest, opts ...grpc.CallOption) (*orchestrator.ActionResponse, error)
	ListPendingActions(ctx context.Context, in *orchestrator.ListPendingActionsRequest, opts ...grpc.CallOption) (*orchestrator.ListActionsResponse, error)
	ListActionHistory(ctx context.Context, in *orchestrator.ListActionHistoryRequest, opts ...grpc.CallOption) (*orchestrator.ListActionsResponse, error)
	ListActionEvents(ctx context.Context, in *orchestrator.ActionIDRequest, opts ...grpc.CallOption) (*orchestrator.ListActionEventsResponse, error)
}

// ActionResult is the MCP view of one action.
type ActionResult struct {
	ID               string         `json:"id" jsonschema:"action identifier"`
	Module           string         `json:"module" jsonschema:"module that proposed the action"`
	Type             string         `json:"type" jsonschema:"action type"`
	Status           string         `json:"status" jsonschema:"pending, approved, executing, completed, failed or cancelled"`
	RiskTier         string         `json:"risk_tier" jsonschema:"low, medium, high or critical"`
	RequiresApproval bool           `json:"requires_approval" jsonschema:"whether an operator decision was required"`
	Data             map[string]any `json:"data,omitempty" jsonschema:"action parameters"`
	Result           map[string]any `json:"result,omitempty" jsonschema:"handler output for completed actions"`
	Error            string         `json:"error,omitempty" jsonschema:"failure or rejection reason"`
	CreatedAt        string         `json:"created_at" jsonschema:"RFC3339 timestamp when the action was proposed"`
	UpdatedAt        string         `json:"updated_at" jsonschema:"RFC3339 timestamp of the last status change"`
	ExecutedAt       string         `json:"executed_at,omitempty" jsonschema:"RFC3339 timestamp when the action finished"`
}

// ActionListResult wraps a list of actions.
type ActionListResult struct {
	Actions []ActionResult `json:"actions" jsonschema:"matching actions"`
}

func actionResultFromWire(a orchestrator.Action) ActionResult {
	result := ActionResult{
		ID:               a.ID,
		Module:           a.Module,
		Type:             a.Type,
		Status:           a.Status,
		RiskTier:         a.RiskTier,
		RequiresApproval: a.RequiresApproval,
		Data:             a.Data,
		Result:           a.Result,
		Error:            a.Error,
		CreatedAt:        formatTime(a.CreatedAt),
		UpdatedAt:        formatTime(a.UpdatedAt),
	}
	if a.ExecutedAt != nil {
		result.ExecutedAt = formatTime(*a.ExecutedAt)
	}
	return result
}

func actionListFromWire(actions []orchestrator.Action) ActionListResult {
	out := ActionListResult{Actions: make([]ActionResult, 0, len(actions))}
	for _, a := range actions {
		out.Actions = append(out.Actions, actionResultFromWire(a))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func sessionOrDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}
