package orchestrator

import (
	"context"

	"google.golang.org/grpc"

	platformgrpc "github.com/orbicity/opsbot/internal/platform/grpc"
)

// Client calls the orchestrator service with the JSON codec.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func invoke[Req, Resp any](ctx context.Context, c *Client, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{platformgrpc.JSONCallOption()}, opts...)
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Chat(ctx context.Context, in *ChatRequest, opts ...grpc.CallOption) (*ChatResponse, error) {
	return invoke[ChatRequest, ChatResponse](ctx, c, "Chat", in, opts)
}

func (c *Client) SetModule(ctx context.Context, in *SetModuleRequest, opts ...grpc.CallOption) (*SetModuleResponse, error) {
	return invoke[SetModuleRequest, SetModuleResponse](ctx, c, "SetModule", in, opts)
}

func (c *Client) ClearConversation(ctx context.Context, in *ClearConversationRequest, opts ...grpc.CallOption) (*ClearConversationResponse, error) {
	return invoke[ClearConversationRequest, ClearConversationResponse](ctx, c, "ClearConversation", in, opts)
}

func (c *Client) GetConversation(ctx context.Context, in *GetConversationRequest, opts ...grpc.CallOption) (*GetConversationResponse, error) {
	return invoke[GetConversationRequest, GetConversationResponse](ctx, c, "GetConversation", in, opts)
}

func (c *Client) ListConversations(ctx context.Context, in *ListConversationsRequest, opts ...grpc.CallOption) (*ListConversationsResponse, error) {
	return invoke[ListConversationsRequest, ListConversationsResponse](ctx, c, "ListConversations", in, opts)
}

func (c *Client) SubmitAction(ctx context.Context, in *SubmitActionRequest, opts ...grpc.CallOption) (*ActionResponse, error) {
	return invoke[SubmitActionRequest, ActionResponse](ctx, c, "SubmitAction", in, opts)
}

func (c *Client) ApproveAction(ctx context.Context, in *ActionIDRequest, opts ...grpc.CallOption) (*ActionResponse, error) {
	return invoke[ActionIDRequest, ActionResponse](ctx, c, "ApproveAction", in, opts)
}

func (c *Client) RejectAction(ctx context.Context, in *RejectActionRequest, opts ...grpc.CallOption) (*ActionResponse, error) {
	return invoke[RejectActionRequest, ActionResponse](ctx, c, "RejectAction", in, opts)
}

func (c *Client) GetAction(ctx context.Context, in *ActionIDRequest, opts ...grpc.CallOption) (*ActionResponse, error) {
	return invoke[ActionIDRequest, ActionResponse](ctx, c, "GetAction", in, opts)
}

func (c *Client) ListPendingActions(ctx context.Context, in *ListPendingActionsRequest, opts ...grpc.CallOption) (*ListActionsResponse, error) {
	return invoke[ListPendingActionsRequest, ListActionsResponse](ctx, c, "ListPendingActions", in, opts)
}

func (c *Client) ListActionHistory(ctx context.Context, in *ListActionHistoryRequest, opts ...grpc.CallOption) (*ListActionsResponse, error) {
	return invoke[ListActionHistoryRequest, ListActionsResponse](ctx, c, "ListActionHistory", in, opts)
}

func (c *Client) ListActions(ctx context.Context, in *ListActionsRequest, opts ...grpc.CallOption) (*ListActionsResponse, error) {
	return invoke[ListActionsRequest, ListActionsResponse](ctx, c, "ListActions", in, opts)
}

func (c *Client) ListActionEvents(ctx context.Context, in *ActionIDRequest, opts ...grpc.CallOption) (*ListActionEventsResponse, error) {
	return invoke[ActionIDRequest, ListActionEventsResponse](ctx, c, "ListActionEvents", in, opts)
}

func (c *Client) GetModuleConfig(ctx context.Context, in *ModuleRequest, opts ...grpc.CallOption) (*ModuleConfigResponse, error) {
	return invoke[ModuleRequest, ModuleConfigResponse](ctx, c, "GetModuleConfig", in, opts)
}

func (c *Client) UpdateModuleConfig(ctx context.Context, in *UpdateModuleConfigRequest, opts ...grpc.CallOption) (*ModuleConfigResponse, error) {
	return invoke[UpdateModuleConfigRequest, ModuleConfigResponse](ctx, c, "UpdateModuleConfig", in, opts)
}

func (c *Client) ReloadModuleConfig(ctx context.Context, in *ModuleRequest, opts ...grpc.CallOption) (*ModuleConfigsResponse, error) {
	return invoke[ModuleRequest, ModuleConfigsResponse](ctx, c, "ReloadModuleConfig", in, opts)
}

func (c *Client) ListModules(ctx context.Context, in *ListModulesRequest, opts ...grpc.CallOption) (*ListModulesResponse, error) {
	return invoke[ListModulesRequest, ListModulesResponse](ctx, c, "ListModules", in, opts)
}
