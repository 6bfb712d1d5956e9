package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/orbicity/opsbot/internal/services/orchestrator/api/grpc/orchestrator"
)

// ChatInput represents the MCP tool input for one operator message.
type ChatInput struct {
	Message   string `json:"message" jsonschema:"operator message"`
	Module    string `json:"module,omitempty" jsonschema:"module to talk to (general, marketing, reservations, finance, logistics); defaults to the session's working module"`
	SessionID string `json:"session_id,omitempty" jsonschema:"operator session; defaults to the server's session"`
	Locale    string `json:"locale,omitempty" jsonschema:"BCP 47 language tag for fixed replies"`
}

// ChatResult represents the assistant's answer.
type ChatResult struct {
	Reply          string        `json:"reply" jsonschema:"assistant reply with any action directive removed"`
	Module         string        `json:"module" jsonschema:"module that answered"`
	ConversationID string        `json:"conversation_id,omitempty" jsonschema:"conversation identifier"`
	Disabled       bool          `json:"disabled,omitempty" jsonschema:"true when the module is disabled"`
	Action         *ActionResult `json:"action,omitempty" jsonschema:"action proposed by this turn"`
}

// ChatTool defines the MCP tool schema for chatting with a module assistant.
func ChatTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "chat",
		Description: "Sends a message to a module assistant. The reply may propose an action that needs approval.",
	}
}

// ChatHandler executes one chat turn.
func ChatHandler(client OrchestratorClient, defaultSession string) mcp.ToolHandlerFor[ChatInput, ChatResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ChatInput) (*mcp.CallToolResult, ChatResult, error) {
		if strings.TrimSpace(input.Message) == "" {
			return nil, ChatResult{}, fmt.Errorf("message is required")
		}
		runCtx, cancel := context.WithTimeout(ctx, chatCallTimeout)
		defer cancel()

		resp, err := client.Chat(runCtx, &orchestrator.ChatRequest{
			SessionID: sessionOrDefault(input.SessionID, defaultSession),
			Module:    input.Module,
			Message:   input.Message,
			Locale:    input.Locale,
		})
		if err != nil {
			return nil, ChatResult{}, fmt.Errorf("chat failed: %w", err)
		}
		result := ChatResult{
			Reply:          resp.Reply,
			Module:         resp.Module,
			ConversationID: resp.ConversationID,
			Disabled:       resp.Disabled,
		}
		if resp.Action != nil {
			action := actionResultFromWire(*resp.Action)
			result.Action = &action
		}
		return nil, result, nil
	}
}

// ModuleFilterInput selects actions of one module, or all when empty.
type ModuleFilterInput struct {
	Module string `json:"module,omitempty" jsonschema:"module to filter by; empty lists every module"`
}

// ListPendingActionsTool defines the MCP tool schema for listing pending actions.
func ListPendingActionsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_pending_actions",
		Description: "Lists actions waiting for an operator decision, oldest first.",
	}
}

// ListPendingActionsHandler lists pending actions.
func ListPendingActionsHandler(client OrchestratorClient) mcp.ToolHandlerFor[ModuleFilterInput, ActionListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ModuleFilterInput) (*mcp.CallToolResult, ActionListResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		resp, err := client.ListPendingActions(runCtx, &orchestrator.ListPendingActionsRequest{Module: input.Module})
		if err != nil {
			return nil, ActionListResult{}, fmt.Errorf("list pending actions failed: %w", err)
		}
		return nil, actionListFromWire(resp.Actions), nil
	}
}

// ActionHistoryInput selects recent finished actions.
type ActionHistoryInput struct {
	Module string `json:"module,omitempty" jsonschema:"module to filter by; empty lists every module"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of actions (default 10, max 100)"`
}

// ActionHistoryTool defines the MCP tool schema for recent finished actions.
func ActionHistoryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "action_history",
		Description: "Lists recently completed, failed or cancelled actions, newest first.",
	}
}

// ActionHistoryHandler lists finished actions.
func ActionHistoryHandler(client OrchestratorClient) mcp.ToolHandlerFor[ActionHistoryInput, ActionListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ActionHistoryInput) (*mcp.CallToolResult, ActionListResult, error) {
		if input.Limit < 0 {
			return nil, ActionListResult{}, fmt.Errorf("limit must not be negative")
		}
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		resp, err := client.ListActionHistory(runCtx, &orchestrator.ListActionHistoryRequest{Module: input.Module, Limit: input.Limit})
		if err != nil {
			return nil, ActionListResult{}, fmt.Errorf("action history failed: %w", err)
		}
		return nil, actionListFromWire(resp.Actions), nil
	}
}

// ActionIDInput selects one action.
type ActionIDInput struct {
	ActionID string `json:"action_id" jsonschema:"action identifier"`
}

// ApproveActionTool defines the MCP tool schema for approving an action.
func ApproveActionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "approve_action",
		Description: "Approves a pending action. Approved actions run in the background.",
	}
}

// ApproveActionHandler approves a pending action.
func ApproveActionHandler(client OrchestratorClient) mcp.ToolHandlerFor[ActionIDInput, ActionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ActionIDInput) (*mcp.CallToolResult, ActionResult, error) {
		if strings.TrimSpace(input.ActionID) == "" {
			return nil, ActionResult{}, fmt.Errorf("action_id is required")
		}
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		resp, err := client.ApproveAction(runCtx, &orchestrator.ActionIDRequest{ActionID: input.ActionID})
		if err != nil {
			return nil, ActionResult{}, fmt.Errorf("approve action failed: %w", err)
		}
		return nil, actionResultFromWire(resp.Action), nil
	}
}

// RejectActionInput selects the action to reject.
type RejectActionInput struct {
	ActionID string `json:"action_id" jsonschema:"action identifier"`
	Reason   string `json:"reason,omitempty" jsonschema:"why the action was rejected"`
}

// RejectActionTool defines the MCP tool schema for rejecting an action.
func RejectActionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "reject_action",
		Description: "Rejects a pending action so it never runs.",
	}
}

// RejectActionHandler rejects a pending action.
func RejectActionHandler(client OrchestratorClient) mcp.ToolHandlerFor[RejectActionInput, ActionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RejectActionInput) (*mcp.CallToolResult, ActionResult, error) {
		if strings.TrimSpace(input.ActionID) == "" {
			return nil, ActionResult{}, fmt.Errorf("action_id is required")
		}
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		resp, err := client.RejectAction(runCtx, &orchestrator.RejectActionRequest{ActionID: input.ActionID, Reason: input.Reason})
		if err != nil {
			return nil, ActionResult{}, fmt.Errorf("reject action failed: %w", err)
		}
		return nil, actionResultFromWire(resp.Action), nil
	}
}

// ActionEventResult is one audit entry.
type ActionEventResult struct {
	Name      string `json:"name" jsonschema:"event name"`
	From      string `json:"from,omitempty" jsonschema:"status before the event"`
	To        string `json:"to,omitempty" jsonschema:"status after the event"`
	Detail    string `json:"detail,omitempty" jsonschema:"event detail"`
	CreatedAt string `json:"created_at" jsonschema:"RFC3339 timestamp of the event"`
}

// GetActionResult is an action with its audit trail.
type GetActionResult struct {
	Action ActionResult        `json:"action" jsonschema:"the action"`
	Events []ActionEventResult `json:"events" jsonschema:"status changes in order"`
}

// GetActionTool defines the MCP tool schema for inspecting an action.
func GetActionTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "get_action",
		Description: "Returns one action with its audit trail.",
	}
}

// GetActionHandler returns an action and its events.
func GetActionHandler(client OrchestratorClient) mcp.ToolHandlerFor[ActionIDInput, GetActionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ActionIDInput) (*mcp.CallToolResult, GetActionResult, error) {
		if strings.TrimSpace(input.ActionID) == "" {
			return nil, GetActionResult{}, fmt.Errorf("action_id is required")
		}
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		resp, err := client.GetAction(runCtx, &orchestrator.ActionIDRequest{ActionID: input.ActionID})
		if err != nil {
			return nil, GetActionResult{}, fmt.Errorf("get action failed: %w", err)
		}
		events, err := client.ListActionEvents(runCtx, &orchestrator.ActionIDRequest{ActionID: input.ActionID})
		if err != nil {
			return nil, GetActionResult{}, fmt.Errorf("list action events failed: %w", err)
		}

		result := GetActionResult{
			Action: actionResultFromWire(resp.Action),
			Events: make([]ActionEventResult, 0, len(events.Events)),
		}
		for _, e := range events.Events {
			result.Events = append(result.Events, ActionEventResult{
				Name:      e.Name,
				From:      e.FromStatus,
				To:        e.ToStatus,
				Detail:    e.Detail,
				CreatedAt: formatTime(e.CreatedAt),
			})
		}
		return nil, result, nil
	}
}
