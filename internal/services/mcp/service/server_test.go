package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/orbicity/opsbot/internal/services/orchestrator/api/grpc/orchestrator"
)

type stubClient struct {
	pendingModule string
}

func (s *stubClient) Chat(context.Context, *orchestrator.ChatRequest, ...grpc.CallOption) (*orchestrator.ChatResponse, error) {
	return &orchestrator.ChatResponse{Reply: "ok", Module: "general"}, nil
}

func (s *stubClient) ApproveAction(context.Context, *orchestrator.ActionIDRequest, ...grpc.CallOption) (*orchestrator.ActionResponse, error) {
	return &orchestrator.ActionResponse{}, nil
}

func (s *stubClient) RejectAction(context.Context, *orchestrator.RejectActionRequest, ...grpc.CallOption) (*orchestrator.ActionResponse, error) {
	return &orchestrator.ActionResponse{}, nil
}

func (s *stubClient) GetAction(context.Context, *orchestrator.ActionIDRequest, ...grpc.CallOption) (*orchestrator.ActionResponse, error) {
	return &orchestrator.ActionResponse{}, nil
}

func (s *stubClient) ListPendingActions(_ context.Context, in *orchestrator.ListPendingActionsRequest, _ ...grpc.CallOption) (*orchestrator.ListActionsResponse, error) {
	s.pendingModule = in.Module
	return &orchestrator.ListActionsResponse{Actions: []orchestrator.Action{}}, nil
}

func (s *stubClient) ListActionHistory(context.Context, *orchestrator.ListActionHistoryRequest, ...grpc.CallOption) (*orchestrator.ListActionsResponse, error) {
	return &orchestrator.ListActionsResponse{Actions: []orchestrator.Action{}}, nil
}

func (s *stubClient) ListActionEvents(context.Context, *orchestrator.ActionIDRequest, ...grpc.CallOption) (*orchestrator.ListActionEventsResponse, error) {
	return &orchestrator.ListActionEventsResponse{Events: []orchestrator.ActionEvent{}}, nil
}

func TestServerRegistersTools(t *testing.T) {
	client := &stubClient{}
	server := newServer(client, nil, "", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.serveWithTransport(ctx, serverTransport)
	}()

	mcpClient := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	clientCtx, clientCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer clientCancel()
	session, err := mcpClient.Connect(clientCtx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(clientCtx, &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{"action_history", "approve_action", "chat", "get_action", "list_pending_actions", "reject_action"}
	if len(names) != len(want) {
		t.Fatalf("tools = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("tools = %v, want %v", names, want)
		}
	}

	result, err := session.CallTool(clientCtx, &mcp.CallToolParams{
		Name:      "list_pending_actions",
		Arguments: map[string]any{"module": "finance"},
	})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool returned error: %+v", result.Content)
	}
	if client.pendingModule != "finance" {
		t.Fatalf("module = %q, want %q", client.pendingModule, "finance")
	}

	cancel()
	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestRunFailsWithoutOrchestrator(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	serverTransport, _ := mcp.NewInMemoryTransports()
	if err := runWithTransport(ctx, Config{GRPCAddr: "127.0.0.1:1", Logger: zerolog.Nop()}, serverTransport); err == nil {
		t.Fatal("expected error when orchestrator is unreachable")
	}
}
