package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	platformgrpc "github.com/orbicity/opsbot/internal/platform/grpc"
	"github.com/orbicity/opsbot/internal/platform/timeouts"
	"github.com/orbicity/opsbot/internal/services/mcp/domain"
	"github.com/orbicity/opsbot/internal/services/orchestrator/api/grpc/orchestrator"
)

const (
	serverName    = "opsbot"
	serverVersion = "0.1.0"
	// DefaultSessionID is the operator session used when a tool call names none.
	DefaultSessionID = "mcp"
)

// Config holds MCP bridge configuration.
type Config struct {
	GRPCAddr  string
	SessionID string
	Logger    zerolog.Logger
}

// Server exposes orchestrator operations as MCP tools.
type Server struct {
	mcpServer *mcp.Server
	conn      io.Closer
	logger    zerolog.Logger
}

// newServer registers every tool against client. conn is closed with the server.
func newServer(client domain.OrchestratorClient, conn io.Closer, sessionID string, logger zerolog.Logger) *Server {
	if strings.TrimSpace(sessionID) == "" {
		sessionID = DefaultSessionID
	}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(mcpServer, domain.ChatTool(), domain.ChatHandler(client, sessionID))
	mcp.AddTool(mcpServer, domain.ListPendingActionsTool(), domain.ListPendingActionsHandler(client))
	mcp.AddTool(mcpServer, domain.ApproveActionTool(), domain.ApproveActionHandler(client))
	mcp.AddTool(mcpServer, domain.RejectActionTool(), domain.RejectActionHandler(client))
	mcp.AddTool(mcpServer, domain.ActionHistoryTool(), domain.ActionHistoryHandler(client))
	mcp.AddTool(mcpServer, domain.GetActionTool(), domain.GetActionHandler(client))
	return &Server{mcpServer: mcpServer, conn: conn, logger: logger}
}

// Run dials the orchestrator and serves MCP over stdio until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return runWithTransport(ctx, cfg, &mcp.StdioTransport{})
}

func runWithTransport(ctx context.Context, cfg Config, transport mcp.Transport) error {
	conn, err := dialOrchestrator(ctx, cfg.GRPCAddr, cfg.Logger)
	if err != nil {
		return err
	}
	server := newServer(orchestrator.NewClient(conn), conn, cfg.SessionID, cfg.Logger)
	return server.serveWithTransport(ctx, transport)
}

// Close releases the gRPC connection held by the server.
func (s *Server) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if closeErr := s.Close(); closeErr != nil {
		if err == nil {
			return fmt.Errorf("close gRPC connection: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close gRPC connection: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

func dialOrchestrator(ctx context.Context, addr string, logger zerolog.Logger) (*grpc.ClientConn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger = logger.With().Str("addr", addr).Logger()
	conn, err := platformgrpc.DialWithHealth(ctx, addr, platformgrpc.DialConfig{
		Timeout: timeouts.GRPCDial,
		Service: orchestrator.ServiceName,
		Logger:  &logger,
	})
	if err != nil {
		var dialErr *platformgrpc.DialError
		if errors.As(err, &dialErr) {
			if dialErr.Stage == platformgrpc.DialStageConnect {
				return nil, fmt.Errorf("connect to opsbot at %s: %w", addr, dialErr.Err)
			}
			return nil, dialErr.Err
		}
		return nil, err
	}
	return conn, nil
}
