package opsbotctl

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/orbicity/opsbot/internal/platform/logging"
	"github.com/orbicity/opsbot/internal/platform/timeouts"
	mcpservice "github.com/orbicity/opsbot/internal/services/mcp/service"
	"github.com/orbicity/opsbot/internal/services/orchestrator/api/grpc/orchestrator"
)

func (a *App) chatCommand() *cobra.Command {
	var module string
	var values map[string]string
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Send a message to a module assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &orchestrator.ChatRequest{
				SessionID: a.cfg.SessionID,
				Module:    module,
				Message:   strings.Join(args, " "),
				Locale:    a.cfg.Locale,
			}
			if len(values) > 0 {
				req.Context = make(map[string]any, len(values))
				for k, v := range values {
					req.Context[k] = v
				}
			}
			return a.call(cmd, timeouts.ChatRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.Chat(ctx, req)
				if err != nil {
					return err
				}
				if a.cfg.JSON {
					return a.printJSON(resp)
				}
				fmt.Fprintf(a.out, "[%s] %s\n", resp.Module, resp.Reply)
				if resp.Action != nil {
					fmt.Fprintf(a.out, "action %s %s (%s, risk %s)\n", resp.Action.ID, resp.Action.Type, resp.Action.Status, resp.Action.RiskTier)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&module, "module", "m", "", "module to talk to; defaults to the session's working module")
	cmd.Flags().StringToStringVar(&values, "context", nil, "business context as key=value pairs")
	return cmd
}

func (a *App) moduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "module",
		Short: "Manage the session's working module",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <module>",
		Short: "Switch the working module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.SetModule(ctx, &orchestrator.SetModuleRequest{SessionID: a.cfg.SessionID, Module: args[0]})
				if err != nil {
					return err
				}
				if a.cfg.JSON {
					return a.printJSON(resp)
				}
				fmt.Fprintf(a.out, "working module: %s\n", resp.Module)
				return nil
			})
		},
	})
	return cmd
}

func (a *App) conversationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversation",
		Short: "Inspect or clear conversations",
	}

	var clearModule string
	clear := &cobra.Command{
		Use:   "clear",
		Short: "End the active conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.ClearConversation(ctx, &orchestrator.ClearConversationRequest{SessionID: a.cfg.SessionID, Module: clearModule})
				if err != nil {
					return err
				}
				if a.cfg.JSON {
					return a.printJSON(resp)
				}
				if resp.Cleared {
					fmt.Fprintln(a.out, "conversation cleared")
				} else {
					fmt.Fprintln(a.out, "no active conversation")
				}
				return nil
			})
		},
	}
	clear.Flags().StringVarP(&clearModule, "module", "m", "", "module; defaults to the working module")

	var showModule, showID string
	var showLimit int
	show := &cobra.Command{
		Use:   "show",
		Short: "Print a conversation with its recent messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.GetConversation(ctx, &orchestrator.GetConversationRequest{
					SessionID:      a.cfg.SessionID,
					Module:         showModule,
					ConversationID: showID,
					Limit:          showLimit,
				})
				if err != nil {
					return err
				}
				if a.cfg.JSON {
					return a.printJSON(resp)
				}
				conv := resp.Conversation
				fmt.Fprintf(a.out, "conversation %s (%s, active=%t)\n", conv.ID, conv.Module, conv.IsActive)
				for _, msg := range conv.Messages {
					line := fmt.Sprintf("%s  %-9s %s", msg.Timestamp.Format(time.RFC3339), msg.Role, msg.Content)
					if msg.ActionID != "" {
						line += "  [action " + msg.ActionID + "]"
					}
					fmt.Fprintln(a.out, line)
				}
				return nil
			})
		},
	}
	show.Flags().StringVarP(&showModule, "module", "m", "", "module; defaults to the working module")
	show.Flags().StringVar(&showID, "id", "", "conversation id; overrides --module")
	show.Flags().IntVar(&showLimit, "limit", 0, "maximum number of messages")

	list := &cobra.Command{
		Use:   "list",
		Short: "List every conversation of the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.ListConversations(ctx, &orchestrator.ListConversationsRequest{SessionID: a.cfg.SessionID})
				if err != nil {
					return err
				}
				if a.cfg.JSON {
					return a.printJSON(resp)
				}
				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tMODULE\tACTIVE\tCREATED")
				for _, c := range resp.Conversations {
					fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", c.ID, c.Module, c.IsActive, c.CreatedAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}

	cmd.AddCommand(clear, show, list)
	return cmd
}

func (a *App) actionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "actions",
		Aliases: []string{"action"},
		Short:   "Review and decide on actions",
	}

	var pendingModule string
	pending := &cobra.Command{
		Use:   "pending",
		Short: "List actions waiting for a decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.ListPendingActions(ctx, &orchestrator.ListPendingActionsRequest{Module: pendingModule})
				if err != nil {
					return err
				}
				return a.printActions(resp)
			})
		},
	}
	pending.Flags().StringVarP(&pendingModule, "module", "m", "", "module; empty lists every module")

	var historyModule string
	var historyLimit int
	history := &cobra.Command{
		Use:   "history",
		Short: "List recently finished actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.ListActionHistory(ctx, &orchestrator.ListActionHistoryRequest{Module: historyModule, Limit: historyLimit})
				if err != nil {
					return err
				}
				return a.printActions(resp)
			})
		},
	}
	history.Flags().StringVarP(&historyModule, "module", "m", "", "module; empty lists every module")
	history.Flags().IntVar(&historyLimit, "limit", 0, "maximum number of actions")

	var listReq orchestrator.ListActionsRequest
	list := &cobra.Command{
		Use:   "list",
		Short: "List actions matching a filter expression",
		Example: `  opsbotctl actions list --filter 'status = "failed" AND risk_tier = "high"'
  opsbotctl actions list --module finance --page-size 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.ListActions(ctx, &listReq)
				if err != nil {
					return err
				}
				if err := a.printActions(resp); err != nil {
					return err
				}
				if !a.cfg.JSON && resp.NextPageToken != "" {
					fmt.Fprintf(a.out, "next page: --page-token %s\n", resp.NextPageToken)
				}
				return nil
			})
		},
	}
	list.Flags().StringVarP(&listReq.Module, "module", "m", "", "module; empty lists every module")
	list.Flags().StringVar(&listReq.Filter, "filter", "", "filter expression")
	list.Flags().Int32Var(&listReq.PageSize, "page-size", 0, "page size")
	list.Flags().StringVar(&listReq.PageToken, "page-token", "", "token from a previous page")

	get := &cobra.Command{
		Use:   "get <action-id>",
		Short: "Print one action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.GetAction(ctx, &orchestrator.ActionIDRequest{ActionID: args[0]})
				if err != nil {
					return err
				}
				return a.printJSON(resp.Action)
			})
		},
	}

	events := &cobra.Command{
		Use:   "events <action-id>",
		Short: "Print an action's audit trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.ListActionEvents(ctx, &orchestrator.ActionIDRequest{ActionID: args[0]})
				if err != nil {
					return err
				}
				if a.cfg.JSON {
					return a.printJSON(resp)
				}
				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tEVENT\tFROM\tTO\tDETAIL")
				for _, e := range resp.Events {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Name, e.FromStatus, e.ToStatus, e.Detail)
				}
				return w.Flush()
			})
		},
	}

	approve := &cobra.Command{
		Use:   "approve <action-id>",
		Short: "Approve a pending action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.ApproveAction(ctx, &orchestrator.ActionIDRequest{ActionID: args[0]})
				if err != nil {
					return err
				}
				return a.printDecision(resp)
			})
		},
	}

	var reason string
	reject := &cobra.Command{
		Use:   "reject <action-id>",
		Short: "Reject a pending action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.RejectAction(ctx, &orchestrator.RejectActionRequest{ActionID: args[0], Reason: reason})
				if err != nil {
					return err
				}
				return a.printDecision(resp)
			})
		},
	}
	reject.Flags().StringVar(&reason, "reason", "", "why the action is rejected")

	var submitModule, submitData string
	submit := &cobra.Command{
		Use:   "submit <type>",
		Short: "Propose an action directly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &orchestrator.SubmitActionRequest{Module: submitModule, Type: args[0]}
			if strings.TrimSpace(submitData) != "" {
				if err := json.Unmarshal([]byte(submitData), &req.Data); err != nil {
					return fmt.Errorf("parse --data: %w", err)
				}
			}
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.SubmitAction(ctx, req)
				if err != nil {
					return err
				}
				return a.printDecision(resp)
			})
		},
	}
	submit.Flags().StringVarP(&submitModule, "module", "m", "", "module proposing the action")
	submit.Flags().StringVar(&submitData, "data", "", "action parameters as a JSON object")
	_ = submit.MarkFlagRequired("module")

	cmd.AddCommand(pending, history, list, get, events, approve, reject, submit)
	return cmd
}

func (a *App) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change module policies",
	}

	get := &cobra.Command{
		Use:   "get <module>",
		Short: "Print a module's policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.GetModuleConfig(ctx, &orchestrator.ModuleRequest{Module: args[0]})
				if err != nil {
					return err
				}
				return a.printJSON(resp.Config)
			})
		},
	}

	var (
		enabled        bool
		autoApprove    []string
		capabilities   []string
		behaviorPrompt string
		personality    orchestrator.Personality
	)
	set := &cobra.Command{
		Use:   "set <module>",
		Short: "Change the given fields of a module's policy",
		Example: `  opsbotctl config set marketing --enabled=false
  opsbotctl config set reservations --auto-approve low,medium`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &orchestrator.UpdateModuleConfigRequest{Module: args[0]}
			flags := cmd.Flags()
			if flags.Changed("enabled") {
				req.Enabled = &enabled
			}
			if flags.Changed("auto-approve") {
				req.AutoApprove = nonNil(autoApprove)
			}
			if flags.Changed("capabilities") {
				req.Capabilities = nonNil(capabilities)
			}
			if flags.Changed("behavior-prompt") {
				req.BehaviorPrompt = &behaviorPrompt
			}
			if flags.Changed("name") || flags.Changed("name-ka") || flags.Changed("style") {
				req.Personality = &personality
			}
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				if req.Personality != nil {
					current, err := client.GetModuleConfig(ctx, &orchestrator.ModuleRequest{Module: args[0]})
					if err == nil {
						mergePersonality(req.Personality, current.Config.Personality, flags.Changed)
					}
				}
				resp, err := client.UpdateModuleConfig(ctx, req)
				if err != nil {
					return err
				}
				return a.printJSON(resp.Config)
			})
		},
	}
	set.Flags().BoolVar(&enabled, "enabled", true, "whether the module answers chat")
	set.Flags().StringSliceVar(&autoApprove, "auto-approve", nil, "risk tiers that skip approval")
	set.Flags().StringSliceVar(&capabilities, "capabilities", nil, "capability lines for the system prompt")
	set.Flags().StringVar(&behaviorPrompt, "behavior-prompt", "", "module behaviour prompt")
	set.Flags().StringVar(&personality.Name, "name", "", "assistant name")
	set.Flags().StringVar(&personality.NameKa, "name-ka", "", "assistant name in Georgian")
	set.Flags().StringVar(&personality.Style, "style", "", "assistant style")

	reload := &cobra.Command{
		Use:   "reload [module]",
		Short: "Reload policies from storage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := &orchestrator.ModuleRequest{}
			if len(args) == 1 {
				req.Module = args[0]
			}
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.ReloadModuleConfig(ctx, req)
				if err != nil {
					return err
				}
				if a.cfg.JSON {
					return a.printJSON(resp)
				}
				for _, cfg := range resp.Configs {
					fmt.Fprintf(a.out, "reloaded %s (enabled=%t, auto-approve=%s)\n", cfg.Module, cfg.Enabled, strings.Join(cfg.AutoApprove, ","))
				}
				return nil
			})
		},
	}

	cmd.AddCommand(get, set, reload)
	return cmd
}

func (a *App) modulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List modules and their action catalogs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.call(cmd, timeouts.GRPCRequest, func(ctx context.Context, client Orchestrator) error {
				resp, err := client.ListModules(ctx, &orchestrator.ListModulesRequest{})
				if err != nil {
					return err
				}
				if a.cfg.JSON {
					return a.printJSON(resp)
				}
				w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "MODULE\tENABLED\tASSISTANT\tACTIONS")
				for _, m := range resp.Modules {
					types := make([]string, 0, len(m.Actions))
					for _, def := range m.Actions {
						types = append(types, def.Type)
					}
					enabled := "unconfigured"
					if m.Configured {
						enabled = fmt.Sprintf("%t", m.Enabled)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.Name, enabled, m.Personality.Name, strings.Join(types, ","))
				}
				return w.Flush()
			})
		},
	}
}

func (a *App) mcpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the orchestrator as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mcpservice.Run(cmd.Context(), mcpservice.Config{
				GRPCAddr:  a.cfg.Addr,
				SessionID: a.cfg.SessionID,
				Logger:    logging.Component("mcp"),
			})
		},
	}
}

func (a *App) printActions(resp *orchestrator.ListActionsResponse) error {
	if a.cfg.JSON {
		return a.printJSON(resp)
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODULE\tTYPE\tRISK\tSTATUS\tCREATED")
	for _, act := range resp.Actions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", act.ID, act.Module, act.Type, act.RiskTier, act.Status, act.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func (a *App) printDecision(resp *orchestrator.ActionResponse) error {
	if a.cfg.JSON {
		return a.printJSON(resp)
	}
	act := resp.Action
	fmt.Fprintf(a.out, "action %s %s: %s\n", act.ID, act.Type, act.Status)
	if act.Error != "" {
		fmt.Fprintf(a.out, "reason: %s\n", act.Error)
	}
	return nil
}

// mergePersonality fills the fields the operator did not set from current.
func mergePersonality(p *orchestrator.Personality, current orchestrator.Personality, changed func(string) bool) {
	if !changed("name") {
		p.Name = current.Name
	}
	if !changed("name-ka") {
		p.NameKa = current.NameKa
	}
	if !changed("style") {
		p.Style = current.Style
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
