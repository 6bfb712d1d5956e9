package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/orbicity/opsbot/internal/services/orchestrator/action"
	"github.com/orbicity/opsbot/internal/services/orchestrator/conversation"
	"github.com/orbicity/opsbot/internal/services/orchestrator/generation"
	"github.com/orbicity/opsbot/internal/services/orchestrator/handler"
	"github.com/orbicity/opsbot/internal/services/orchestrator/lifecycle"
	"github.com/orbicity/opsbot/internal/services/orchestrator/moduleconfig"
	"github.com/orbicity/opsbot/internal/testkit/opsfakes"
	"github.com/rs/zerolog"
)

// queuedScheduler records scheduled IDs without running them.
type queuedScheduler struct {
	mu  sync.Mutex
	ids []string
}

func (s *queuedScheduler) Schedule(actionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, actionID)
	return nil
}

// replyGenerator answers every turn with the same text.
type replyGenerator struct {
	reply string
}

func (g replyGenerator) Generate(context.Context, generation.Request) (string, error) {
	return g.reply, nil
}

type testEnv struct {
	service   *Service
	store     *opsfakes.Store
	configs   *moduleconfig.Store
	engine    *lifecycle.Engine
	scheduler *queuedScheduler
}

func newTestEnv(t *testing.T, reply string, seed bool) testEnv {
	t.Helper()
	store := opsfakes.NewStore()
	if seed {
		if _, err := moduleconfig.Seed(context.Background(), store, moduleconfig.DefaultConfigs(), time.Now()); err != nil {
			t.Fatalf("seed configs: %v", err)
		}
	}
	configs := moduleconfig.NewStore(store)
	scheduler := &queuedScheduler{}
	engine := lifecycle.NewEngine(store, configs, handler.NewRegistry(), lifecycle.WithScheduler(scheduler))
	manager := conversation.NewManager(store, configs, replyGenerator{reply: reply}, engine)
	return testEnv{
		service:   NewService(manager, engine, configs, zerolog.Nop()),
		store:     store,
		configs:   configs,
		engine:    engine,
		scheduler: scheduler,
	}
}

func requireCode(t *testing.T, err error, want codes.Code) *status.Status {
	t.Helper()
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("error %v is not a status", err)
	}
	if st.Code() != want {
		t.Fatalf("code = %s, want %s (%v)", st.Code(), want, err)
	}
	return st
}

func errorReason(st *status.Status) string {
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok {
			return info.Reason
		}
	}
	return ""
}

func errorMetadata(st *status.Status) map[string]string {
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok {
			return info.Metadata
		}
	}
	return nil
}

func localizedLocale(st *status.Status) string {
	for _, detail := range st.Details() {
		if msg, ok := detail.(*errdetails.LocalizedMessage); ok {
			return msg.Locale
		}
	}
	return ""
}

func TestChatProposesPendingAction(t *testing.T) {
	env := newTestEnv(t, `Raising the rate. [ACTION:update_price:{"room":"101","price":120}]`, true)
	ctx := context.Background()

	resp, err := env.service.Chat(ctx, &ChatRequest{SessionID: "s-1", Module: "reservations", Message: "raise room 101 to 120"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Reply != "Raising the rate." {
		t.Fatalf("reply = %q, want %q", resp.Reply, "Raising the rate.")
	}
	if resp.Action == nil {
		t.Fatal("expected action in response")
	}
	if resp.Action.Status != string(action.StatusPending) {
		t.Fatalf("status = %q, want %q", resp.Action.Status, action.StatusPending)
	}
	if !resp.Action.RequiresApproval {
		t.Fatal("expected approval to be required for medium risk")
	}

	pending, err := env.service.ListPendingActions(ctx, &ListPendingActionsRequest{Module: "reservations"})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending.Actions) != 1 || pending.Actions[0].ID != resp.Action.ID {
		t.Fatalf("pending = %+v, want %s", pending.Actions, resp.Action.ID)
	}

	approved, err := env.service.ApproveAction(ctx, &ActionIDRequest{ActionID: resp.Action.ID})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Action.Status != string(action.StatusApproved) {
		t.Fatalf("status = %q, want %q", approved.Action.Status, action.StatusApproved)
	}
	if approved.Action.ApprovedAt == nil {
		t.Fatal("expected approved_at")
	}
	if len(env.scheduler.ids) != 1 || env.scheduler.ids[0] != resp.Action.ID {
		t.Fatalf("scheduled = %v, want [%s]", env.scheduler.ids, resp.Action.ID)
	}

	events, err := env.service.ListActionEvents(ctx, &ActionIDRequest{ActionID: resp.Action.ID})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events.Events) != 2 || events.Events[1].Name != lifecycle.EventApproved {
		t.Fatalf("events = %+v", events.Events)
	}
}

func TestChatUsesSessionHeader(t *testing.T) {
	env := newTestEnv(t, "hello", true)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(SessionIDHeader, "s-header"))

	resp, err := env.service.Chat(ctx, &ChatRequest{Message: "hi"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Module != "general" {
		t.Fatalf("module = %q, want %q", resp.Module, "general")
	}

	list, err := env.service.ListConversations(ctx, &ListConversationsRequest{})
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(list.Conversations) != 1 || list.Conversations[0].SessionID != "s-header" {
		t.Fatalf("conversations = %+v", list.Conversations)
	}
}

func TestChatRejectsMissingSession(t *testing.T) {
	env := newTestEnv(t, "hello", true)
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(LocaleHeader, "ka-GE"))

	_, err := env.service.Chat(ctx, &ChatRequest{Message: "hi"})
	st := requireCode(t, err, codes.InvalidArgument)
	if got := errorReason(st); got != "SESSION_ID_EMPTY" {
		t.Fatalf("reason = %q, want %q", got, "SESSION_ID_EMPTY")
	}
	if got := localizedLocale(st); got != "ka-GE" {
		t.Fatalf("locale = %q, want %q", got, "ka-GE")
	}
}

func TestUnknownModuleIsInvalidArgument(t *testing.T) {
	env := newTestEnv(t, "hello", true)
	_, err := env.service.SetModule(context.Background(), &SetModuleRequest{SessionID: "s-1", Module: "housekeeping"})
	st := requireCode(t, err, codes.InvalidArgument)
	if got := errorReason(st); got != "MODULE_UNKNOWN" {
		t.Fatalf("reason = %q, want %q", got, "MODULE_UNKNOWN")
	}
}

func TestClearConversationUsesWorkingModule(t *testing.T) {
	env := newTestEnv(t, "hello", true)
	ctx := context.Background()

	if _, err := env.service.SetModule(ctx, &SetModuleRequest{SessionID: "s-1", Module: "finance"}); err != nil {
		t.Fatalf("set module: %v", err)
	}
	if _, err := env.service.Chat(ctx, &ChatRequest{SessionID: "s-1", Message: "revenue?"}); err != nil {
		t.Fatalf("chat: %v", err)
	}

	got, err := env.service.GetConversation(ctx, &GetConversationRequest{SessionID: "s-1"})
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if got.Conversation.Module != "finance" || len(got.Conversation.Messages) != 2 {
		t.Fatalf("conversation = %+v", got.Conversation)
	}

	cleared, err := env.service.ClearConversation(ctx, &ClearConversationRequest{SessionID: "s-1"})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !cleared.Cleared {
		t.Fatal("expected an active conversation to be cleared")
	}

	_, err = env.service.GetConversation(ctx, &GetConversationRequest{SessionID: "s-1"})
	st := requireCode(t, err, codes.NotFound)
	if got := errorReason(st); got != "NO_ACTIVE_CONVERSATION" {
		t.Fatalf("reason = %q, want %q", got, "NO_ACTIVE_CONVERSATION")
	}

	byID, err := env.service.GetConversation(ctx, &GetConversationRequest{ConversationID: got.Conversation.ID})
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Conversation.IsActive {
		t.Fatal("expected cleared conversation to be inactive")
	}
}

func TestActionErrors(t *testing.T) {
	env := newTestEnv(t, "hello", true)
	ctx := context.Background()

	created, err := env.service.SubmitAction(ctx, &SubmitActionRequest{Module: "reservations", Type: "block_dates"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	rejected, err := env.service.RejectAction(ctx, &RejectActionRequest{ActionID: created.Action.ID})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Action.Status != string(action.StatusCancelled) {
		t.Fatalf("status = %q, want %q", rejected.Action.Status, action.StatusCancelled)
	}

	tests := []struct {
		name   string
		call   func() error
		code   codes.Code
		reason string
	}{
		{
			name: "approve rejected",
			call: func() error {
				_, err := env.service.ApproveAction(ctx, &ActionIDRequest{ActionID: created.Action.ID})
				return err
			},
			code:   codes.FailedPrecondition,
			reason: "ACTION_NOT_PENDING",
		},
		{
			name: "get missing",
			call: func() error {
				_, err := env.service.GetAction(ctx, &ActionIDRequest{ActionID: "missing"})
				return err
			},
			code:   codes.NotFound,
			reason: "NOT_FOUND",
		},
		{
			name: "unknown type",
			call: func() error {
				_, err := env.service.SubmitAction(ctx, &SubmitActionRequest{Module: "finance", Type: "launch_rocket"})
				return err
			},
			code:   codes.InvalidArgument,
			reason: "ACTION_TYPE_UNKNOWN",
		},
		{
			name: "bad filter",
			call: func() error {
				_, err := env.service.ListActions(ctx, &ListActionsRequest{Filter: "status = "})
				return err
			},
			code:   codes.InvalidArgument,
			reason: "FILTER_INVALID",
		},
		{
			name: "bad page token",
			call: func() error {
				_, err := env.service.ListActions(ctx, &ListActionsRequest{PageToken: "%%%"})
				return err
			},
			code:   codes.InvalidArgument,
			reason: "PAGE_TOKEN_INVALID",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := requireCode(t, tc.call(), tc.code)
			if got := errorReason(st); got != tc.reason {
				t.Fatalf("reason = %q, want %q", got, tc.reason)
			}
		})
	}
}

func TestActionErrorsCarryActionID(t *testing.T) {
	env := newTestEnv(t, "hello", true)
	ctx := context.Background()

	created, err := env.service.SubmitAction(ctx, &SubmitActionRequest{Module: "reservations", Type: "block_dates"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.service.RejectAction(ctx, &RejectActionRequest{ActionID: created.Action.ID}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	_, err = env.service.ApproveAction(ctx, &ActionIDRequest{ActionID: created.Action.ID})
	st := requireCode(t, err, codes.FailedPrecondition)
	if got := errorMetadata(st)["action_id"]; got != created.Action.ID {
		t.Fatalf("action_id = %q, want %q", got, created.Action.ID)
	}

	_, err = env.service.GetAction(ctx, &ActionIDRequest{ActionID: "missing"})
	st = requireCode(t, err, codes.NotFound)
	if got := errorMetadata(st)["action_id"]; got != "missing" {
		t.Fatalf("action_id = %q, want missing", got)
	}
	if got := errorReason(st); got != "NOT_FOUND" {
		t.Fatalf("reason = %q, want NOT_FOUND", got)
	}
}

func TestListActionHistory(t *testing.T) {
	env := newTestEnv(t, "hello", true)
	ctx := context.Background()

	created, err := env.service.SubmitAction(ctx, &SubmitActionRequest{Module: "logistics", Type: "order_supplies"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.service.RejectAction(ctx, &RejectActionRequest{ActionID: created.Action.ID, Reason: "not now"}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	history, err := env.service.ListActionHistory(ctx, &ListActionHistoryRequest{Module: "logistics"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history.Actions) != 1 || history.Actions[0].Error != "not now" {
		t.Fatalf("history = %+v", history.Actions)
	}
}

func TestUpdateModuleConfigMergesFields(t *testing.T) {
	env := newTestEnv(t, "hello", false)
	ctx := context.Background()

	disabled := false
	updated, err := env.service.UpdateModuleConfig(ctx, &UpdateModuleConfigRequest{
		Module:      "marketing",
		Enabled:     &disabled,
		AutoApprove: []string{"low", "medium"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	cfg := updated.Config
	if cfg.Enabled {
		t.Fatal("expected marketing to be disabled")
	}
	if len(cfg.AutoApprove) != 2 {
		t.Fatalf("auto approve = %v, want [low medium]", cfg.AutoApprove)
	}
	if cfg.BehaviorPrompt == "" {
		t.Fatal("expected default behaviour prompt to be kept")
	}

	prompt := "Keep posts short."
	again, err := env.service.UpdateModuleConfig(ctx, &UpdateModuleConfigRequest{Module: "marketing", BehaviorPrompt: &prompt})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if again.Config.Enabled || again.Config.BehaviorPrompt != prompt || len(again.Config.AutoApprove) != 2 {
		t.Fatalf("config = %+v", again.Config)
	}

	_, err = env.service.UpdateModuleConfig(ctx, &UpdateModuleConfigRequest{Module: "marketing", AutoApprove: []string{"extreme"}})
	requireCode(t, err, codes.InvalidArgument)
}

func TestReloadModuleConfig(t *testing.T) {
	env := newTestEnv(t, "hello", true)
	ctx := context.Background()

	one, err := env.service.ReloadModuleConfig(ctx, &ModuleRequest{Module: "finance"})
	if err != nil {
		t.Fatalf("reload one: %v", err)
	}
	if len(one.Configs) != 1 || one.Configs[0].Module != "finance" {
		t.Fatalf("configs = %+v", one.Configs)
	}

	all, err := env.service.ReloadModuleConfig(ctx, &ModuleRequest{})
	if err != nil {
		t.Fatalf("reload all: %v", err)
	}
	if len(all.Configs) != 5 {
		t.Fatalf("configs = %d, want 5", len(all.Configs))
	}
}

func TestGetModuleConfigMissing(t *testing.T) {
	env := newTestEnv(t, "hello", false)
	_, err := env.service.GetModuleConfig(context.Background(), &ModuleRequest{Module: "finance"})
	requireCode(t, err, codes.NotFound)
}

func TestListModules(t *testing.T) {
	env := newTestEnv(t, "hello", false)
	ctx := context.Background()
	enabled := true
	if _, err := env.service.UpdateModuleConfig(ctx, &UpdateModuleConfigRequest{Module: "finance", Enabled: &enabled}); err != nil {
		t.Fatalf("update: %v", err)
	}

	resp, err := env.service.ListModules(ctx, &ListModulesRequest{})
	if err != nil {
		t.Fatalf("list modules: %v", err)
	}
	if len(resp.Modules) != 5 {
		t.Fatalf("modules = %d, want 5", len(resp.Modules))
	}
	for _, m := range resp.Modules {
		if len(m.Actions) == 0 {
			t.Fatalf("module %s has no actions", m.Name)
		}
		wantConfigured := m.Name == "finance"
		if m.Configured != wantConfigured {
			t.Fatalf("module %s configured = %v, want %v", m.Name, m.Configured, wantConfigured)
		}
	}
}
