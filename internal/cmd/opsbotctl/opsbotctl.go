// Package opsbotctl implements the operator command line for opsbot.
package opsbotctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	entrypoint "github.com/orbicity/opsbot/internal/platform/cmd"
	platformgrpc "github.com/orbicity/opsbot/internal/platform/grpc"
	"github.com/orbicity/opsbot/internal/platform/logging"
	"github.com/orbicity/opsbot/internal/platform/timeouts"
	"github.com/orbicity/opsbot/internal/services/orchestrator/api/grpc/orchestrator"
)

// Config holds CLI configuration shared by every command.
type Config struct {
	Addr      string `env:"OPSBOT_ADDR" envDefault:"localhost:8095"`
	SessionID string `env:"OPSBOT_SESSION_ID" envDefault:"cli"`
	Locale    string `env:"OPSBOT_LOCALE"`
	LogLevel  string `env:"OPSBOT_LOG_LEVEL" envDefault:"warn"`
	JSON      bool   `env:"OPSBOT_JSON"`
}

// Orchestrator is the orchestrator API the CLI calls.
type Orchestrator interface {
	Chat(ctx context.Context, in *orchestrator.ChatRequest, opts ...grpc.CallOption) (*orchestrator.ChatResponse, error)
	SetModule(ctx context.Context, in *orchestrator.SetModuleRequest, opts ...grpc.CallOption) (*orchestrator.SetModuleResponse, error)
	ClearConversation(ctx context.Context, in *orchestrator.ClearConversationRequest, opts ...grpc.CallOption) (*orchestrator.ClearConversationResponse, error)
	GetConversation(ctx context.Context, in *orchestrator.GetConversationRequest, opts ...grpc.CallOption) (*orchestrator.GetConversationResponse, error)
	ListConversations(ctx context.Context, in *orchestrator.ListConversationsRequest, opts ...grpc.CallOption) (*orchestrator.ListConversationsResponse, error)
	SubmitAction(ctx context.Context, in *orchestrator.SubmitActionRequest, opts ...grpc.CallOption) (*orchestrator.ActionResponse, error)
	ApproveAction(ctx context.Context, in *orchestrator.ActionIDRequest, opts ...grpc.CallOption) (*orchestrator.ActionResponse, error)
	RejectAction(ctx context.Context, in *orchestrator.RejectActionRequest, opts ...grpc.CallOption) (*orchestrator.ActionResponse, error)
	GetAction(ctx context.Context, in *orchestrator.ActionIDRequest, opts ...grpc.CallOption) (*orchestrator.ActionResponse, error)
	ListPendingActions(ctx context.Context, in *orchestrator.ListPendingActionsRequest, opts ...grpc.CallOption) (*orchestrator.ListActionsResponse, error)
	ListActionHistory(ctx context.Context, in *orchestrator.ListActionHistoryRequest, opts ...grpc.CallOption) (*orchestrator.ListActionsResponse, error)
	ListActions(ctx context.Context, in *orchestrator.ListActionsRequest, opts ...grpc.CallOption) (*orchestrator.ListActionsResponse, error)
	ListActionEvents(ctx context.Context, in *orchestrator.ActionIDRequest, opts ...grpc.CallOption) (*orchestrator.ListActionEventsResponse, error)
	GetModuleConfig(ctx context.Context, in *orchestrator.ModuleRequest, opts ...grpc.CallOption) (*orchestrator.ModuleConfigResponse, error)
	UpdateModuleConfig(ctx context.Context, in *orchestrator.UpdateModuleConfigRequest, opts ...grpc.CallOption) (*orchestrator.ModuleConfigResponse, error)
	ReloadModuleConfig(ctx context.Context, in *orchestrator.ModuleRequest, opts ...grpc.CallOption) (*orchestrator.ModuleConfigsResponse, error)
	ListModules(ctx context.Context, in *orchestrator.ListModulesRequest, opts ...grpc.CallOption) (*orchestrator.ListModulesResponse, error)
}

// Connector opens an orchestrator client and returns its closer.
type Connector func(ctx context.Context, addr string) (Orchestrator, func() error, error)

// App is the CLI application state.
type App struct {
	cfg     Config
	out     io.Writer
	connect Connector
}

// NewApp builds the CLI over connect. A nil connect dials addr over gRPC.
func NewApp(cfg Config, out io.Writer, connect Connector) *App {
	if connect == nil {
		connect = dialOrchestrator
	}
	return &App{cfg: cfg, out: out, connect: connect}
}

// Execute parses env config and runs the command line in args.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) error {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return err
	}
	root := NewApp(cfg, out, nil).RootCommand()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCTL, func(ctx context.Context) error {
		return root.ExecuteContext(ctx)
	})
}

// RootCommand builds the command tree.
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "opsbotctl",
		Short:         "Operate the opsbot action orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			logger, _, err := logging.New(a.cfg.LogLevel, "")
			if err != nil {
				return err
			}
			logging.SetDefault(logger)
			return nil
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&a.cfg.Addr, "addr", a.cfg.Addr, "opsbot gRPC address")
	flags.StringVar(&a.cfg.SessionID, "session", a.cfg.SessionID, "operator session id")
	flags.StringVar(&a.cfg.Locale, "locale", a.cfg.Locale, "language tag for fixed replies and errors")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level")
	flags.BoolVar(&a.cfg.JSON, "json", a.cfg.JSON, "print raw JSON responses")

	root.AddCommand(
		a.chatCommand(),
		a.moduleCommand(),
		a.conversationCommand(),
		a.actionsCommand(),
		a.configCommand(),
		a.modulesCommand(),
		a.mcpCommand(),
	)
	return root
}

// call opens a client, runs fn with a request-scoped context, and closes it.
func (a *App) call(cmd *cobra.Command, timeout time.Duration, fn func(context.Context, Orchestrator) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	client, closeClient, err := a.connect(ctx, a.cfg.Addr)
	if err != nil {
		return err
	}
	defer func() { _ = closeClient() }()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if locale := strings.TrimSpace(a.cfg.Locale); locale != "" {
		callCtx = metadata.AppendToOutgoingContext(callCtx, orchestrator.LocaleHeader, locale)
	}
	return fn(callCtx, client)
}

// printJSON writes v as indented JSON.
func (a *App) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

func dialOrchestrator(ctx context.Context, addr string) (Orchestrator, func() error, error) {
	conn, err := platformgrpc.DialWithHealth(ctx, addr, platformgrpc.DialConfig{
		Timeout: timeouts.GRPCDial,
		Service: orchestrator.ServiceName,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to opsbot at %s: %w", addr, err)
	}
	return orchestrator.NewClient(conn), conn.Close, nil
}
