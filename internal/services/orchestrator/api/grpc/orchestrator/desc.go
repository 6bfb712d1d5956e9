package orchestrator

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "opsbot.v1.OrchestratorService"

// OrchestratorServiceServer is the server API for the orchestrator service.
type OrchestratorServiceServer interface {
	Chat(context.Context, *ChatRequest) (*ChatResponse, error)
	SetModule(context.Context, *SetModuleRequest) (*SetModuleResponse, error)
	ClearConversation(context.Context, *ClearConversationRequest) (*ClearConversationResponse, error)
	GetConversation(context.Context, *GetConversationRequest) (*GetConversationResponse, error)
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	SubmitAction(context.Context, *SubmitActionRequest) (*ActionResponse, error)
	ApproveAction(context.Context, *ActionIDRequest) (*ActionResponse, error)
	RejectAction(context.Context, *RejectActionRequest) (*ActionResponse, error)
	GetAction(context.Context, *ActionIDRequest) (*ActionResponse, error)
	ListPendingActions(context.Context, *ListPendingActionsRequest) (*ListActionsResponse, error)
	ListActionHistory(context.Context, *ListActionHistoryRequest) (*ListActionsResponse, error)
	ListActions(context.Context, *ListActionsRequest) (*ListActionsResponse, error)
	ListActionEvents(context.Context, *ActionIDRequest) (*ListActionEventsResponse, error)
	GetModuleConfig(context.Context, *ModuleRequest) (*ModuleConfigResponse, error)
	UpdateModuleConfig(context.Context, *UpdateModuleConfigRequest) (*ModuleConfigResponse, error)
	ReloadModuleConfig(context.Context, *ModuleRequest) (*ModuleConfigsResponse, error)
	ListModules(context.Context, *ListModulesRequest) (*ListModulesResponse, error)
}

// ServiceDesc describes the orchestrator service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrchestratorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Chat", OrchestratorServiceServer.Chat),
		unary("SetModule", OrchestratorServiceServer.SetModule),
		unary("ClearConversation", OrchestratorServiceServer.ClearConversation),
		unary("GetConversation", OrchestratorServiceServer.GetConversation),
		unary("ListConversations", OrchestratorServiceServer.ListConversations),
		unary("SubmitAction", OrchestratorServiceServer.SubmitAction),
		unary("ApproveAction", OrchestratorServiceServer.ApproveAction),
		unary("RejectAction", OrchestratorServiceServer.RejectAction),
		unary("GetAction", OrchestratorServiceServer.GetAction),
		unary("ListPendingActions", OrchestratorServiceServer.ListPendingActions),
		unary("ListActionHistory", OrchestratorServiceServer.ListActionHistory),
		unary("ListActions", OrchestratorServiceServer.ListActions),
		unary("ListActionEvents", OrchestratorServiceServer.ListActionEvents),
		unary("GetModuleConfig", OrchestratorServiceServer.GetModuleConfig),
		unary("UpdateModuleConfig", OrchestratorServiceServer.UpdateModuleConfig),
		unary("ReloadModuleConfig", OrchestratorServiceServer.ReloadModuleConfig),
		unary("ListModules", OrchestratorServiceServer.ListModules),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "opsbot/v1/orchestrator",
}

// RegisterOrchestratorServiceServer registers srv on s.
func RegisterOrchestratorServiceServer(s grpc.ServiceRegistrar, srv OrchestratorServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary builds the method descriptor for one request/response RPC.
func unary[Req, Resp any](method string, call func(OrchestratorServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			server := srv.(OrchestratorServiceServer)
			if interceptor == nil {
				return call(server, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(server, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
