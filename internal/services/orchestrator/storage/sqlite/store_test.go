package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/orbicity/opsbot/internal/services/orchestrator/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opsbot.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenIsIdempotentAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opsbot.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("open first: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close first: %v", err)
	}
	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = second.Close()
}

func TestNilStoreReportsNotConfigured(t *testing.T) {
	var store *Store
	if _, err := store.GetAction(context.Background(), "a"); err == nil {
		t.Fatal("expected error from nil store")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
}

func TestModuleConfigPutGetList(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, err := store.GetModuleConfig(ctx, "finance"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing config err = %v, want ErrNotFound", err)
	}

	record := storage.ModuleConfigRecord{
		Module:               "finance",
		Enabled:              true,
		AutoApproveRiskTiers: []string{"low"},
		Capabilities:         []string{"reports", "invoices"},
		BehaviorPrompt:       "You are the finance agent.",
		PersonalityName:      "OpsBot Finance",
		UpdatedAt:            now,
	}
	if err := store.PutModuleConfig(ctx, record); err != nil {
		t.Fatalf("put config: %v", err)
	}

	got, err := store.GetModuleConfig(ctx, "finance")
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if !got.Enabled || len(got.AutoApproveRiskTiers) != 1 || got.AutoApproveRiskTiers[0] != "low" {
		t.Fatalf("config = %+v", got)
	}
	if len(got.Capabilities) != 2 || got.BehaviorPrompt != record.BehaviorPrompt {
		t.Fatalf("config = %+v", got)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Fatalf("updated at = %v, want %v", got.UpdatedAt, now)
	}

	record.Enabled = false
	record.UpdatedAt = now.Add(time.Hour)
	if err := store.PutModuleConfig(ctx, record); err != nil {
		t.Fatalf("update config: %v", err)
	}
	got, err = store.GetModuleConfig(ctx, "finance")
	if err != nil {
		t.Fatalf("get updated config: %v", err)
	}
	if got.Enabled {
		t.Fatal("expected config to be disabled after update")
	}

	all, err := store.ListModuleConfigs(ctx)
	if err != nil {
		t.Fatalf("list configs: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("configs len = %d, want 1", len(all))
	}
}

func TestInsertModuleConfigIfAbsentKeepsExisting(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	inserted, err := store.InsertModuleConfigIfAbsent(ctx, storage.ModuleConfigRecord{Module: "marketing", Enabled: false, UpdatedAt: now})
	if err != nil || !inserted {
		t.Fatalf("first insert = %v, %v; want true, nil", inserted, err)
	}
	inserted, err = store.InsertModuleConfigIfAbsent(ctx, storage.ModuleConfigRecord{Module: "marketing", Enabled: true, UpdatedAt: now})
	if err != nil || inserted {
		t.Fatalf("second insert = %v, %v; want false, nil", inserted, err)
	}
	got, err := store.GetModuleConfig(ctx, "marketing")
	if err != nil {
		t.Fatalf("get config: %v", err)
	}
	if got.Enabled {
		t.Fatal("seed insert overwrote existing row")
	}
}

func TestModuleConfigValidation(t *testing.T) {
	store := openTempStore(t)
	if err := store.PutModuleConfig(context.Background(), storage.ModuleConfigRecord{}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSessionPutGet(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if _, err := store.GetSession(ctx, "s1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing session err = %v, want ErrNotFound", err)
	}
	if err := store.PutSession(ctx, storage.SessionRecord{ID: "s1", Module: "finance", Locale: "ka", CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("put session: %v", err)
	}
	if err := store.PutSession(ctx, storage.SessionRecord{ID: "s1", Module: "marketing", Locale: "ka", CreatedAt: now.Add(time.Hour), UpdatedAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("update session: %v", err)
	}
	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Module != "marketing" || got.Locale != "ka" {
		t.Fatalf("session = %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("created at = %v, want original %v", got.CreatedAt, now)
	}
}

func TestConversationSingleActivePerSessionModule(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := storage.ConversationRecord{ID: "c1", SessionID: "s1", Module: "finance", IsActive: true, CreatedAt: now, UpdatedAt: now}
	if err := store.CreateConversation(ctx, first); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	second := storage.ConversationRecord{ID: "c2", SessionID: "s1", Module: "finance", IsActive: true, CreatedAt: now, UpdatedAt: now}
	if err := store.CreateConversation(ctx, second); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("second active create err = %v, want ErrConflict", err)
	}
	other := storage.ConversationRecord{ID: "c3", SessionID: "s1", Module: "marketing", IsActive: true, CreatedAt: now, UpdatedAt: now}
	if err := store.CreateConversation(ctx, other); err != nil {
		t.Fatalf("create other module conversation: %v", err)
	}

	deactivated, err := store.DeactivateConversation(ctx, "s1", "finance", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if deactivated != "c1" {
		t.Fatalf("deactivated = %q, want c1", deactivated)
	}
	if _, err := store.GetActiveConversation(ctx, "s1", "finance"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get active after deactivate err = %v, want ErrNotFound", err)
	}
	if _, err := store.DeactivateConversation(ctx, "s1", "finance", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second deactivate err = %v, want ErrNotFound", err)
	}
	if err := store.CreateConversation(ctx, second); err != nil {
		t.Fatalf("create after deactivate: %v", err)
	}

	retained, err := store.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("get retained conversation: %v", err)
	}
	if retained.IsActive {
		t.Fatal("retained conversation should be inactive")
	}

	all, err := store.ListConversations(ctx, "s1")
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("conversations len = %d, want 3", len(all))
	}
}

func TestConversationContextRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := store.CreateConversation(ctx, storage.ConversationRecord{ID: "c1", SessionID: "s1", Module: "reservations", IsActive: true, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	if err := store.UpdateConversationContext(ctx, "c1", map[string]any{"occupancy": 87, "room": "101"}, now.Add(time.Second)); err != nil {
		t.Fatalf("update context: %v", err)
	}
	got, err := store.GetActiveConversation(ctx, "s1", "reservations")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if got.Context["occupancy"] != int64(87) || got.Context["room"] != "101" {
		t.Fatalf("context = %#v", got.Context)
	}
	if err := store.UpdateConversationContext(ctx, "missing", nil, now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("update missing err = %v, want ErrNotFound", err)
	}
}

func TestAppendAndListMessages(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	if err := store.CreateConversation(ctx, storage.ConversationRecord{ID: "c1", SessionID: "s1", Module: "finance", IsActive: true, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	for i := 0; i < 12; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		msg, err := store.AppendMessage(ctx, storage.MessageRecord{
			ID:             "m" + string(rune('a'+i)),
			ConversationID: "c1",
			Role:           role,
			Content:        "turn",
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("append message %d: %v", i, err)
		}
		if msg.Seq != int64(i+1) {
			t.Fatalf("seq = %d, want %d", msg.Seq, i+1)
		}
	}

	window, err := store.ListMessages(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("list window: %v", err)
	}
	if len(window) != 10 {
		t.Fatalf("window len = %d, want 10", len(window))
	}
	if window[0].Seq != 3 || window[9].Seq != 12 {
		t.Fatalf("window seqs = %d..%d, want 3..12", window[0].Seq, window[9].Seq)
	}

	full, err := store.ListMessages(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("list full: %v", err)
	}
	if len(full) != 12 {
		t.Fatalf("full len = %d, want 12", len(full))
	}

	conversation, err := store.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if !conversation.UpdatedAt.Equal(now.Add(11 * time.Second)) {
		t.Fatalf("updated at = %v, want last message time", conversation.UpdatedAt)
	}
}

func TestAppendMessageValidation(t *testing.T) {
	store := openTempStore(t)
	if _, err := store.AppendMessage(context.Background(), storage.MessageRecord{ID: "m1"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func putTestAction(t *testing.T, store *Store, id string, module string, status string, createdAt time.Time) {
	t.Helper()
	err := store.PutAction(context.Background(), storage.ActionRecord{
		ID:               id,
		ConversationID:   "c1",
		Module:           module,
		Type:             "update_price",
		Data:             map[string]any{"roomId": "101", "price": 145},
		Status:           status,
		RiskTier:         "medium",
		RequiresApproval: status == "pending",
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	})
	if err != nil {
		t.Fatalf("put action %s: %v", id, err)
	}
}

func TestActionPutGetPreservesPayload(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	putTestAction(t, store, "a1", "reservations", "pending", now)

	got, err := store.GetAction(context.Background(), "a1")
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if got.Data["roomId"] != "101" || got.Data["price"] != int64(145) {
		t.Fatalf("data = %#v", got.Data)
	}
	if !got.RequiresApproval || got.Status != "pending" {
		t.Fatalf("action = %+v", got)
	}
	if got.ApprovedAt != nil || got.ExecutedAt != nil || got.Result != nil {
		t.Fatalf("expected unset lifecycle fields, got %+v", got)
	}
	if _, err := store.GetAction(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing err = %v, want ErrNotFound", err)
	}
}

func TestTransitionActionCompareAndSwap(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	putTestAction(t, store, "a1", "reservations", "pending", now)

	if err := store.TransitionAction(ctx, "a1", "pending", "approved", storage.ActionPatch{At: now.Add(time.Second), SetApprovedAt: true}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := store.TransitionAction(ctx, "a1", "pending", "approved", storage.ActionPatch{At: now.Add(2 * time.Second), SetApprovedAt: true}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("second approve err = %v, want ErrConflict", err)
	}
	if err := store.TransitionAction(ctx, "missing", "pending", "approved", storage.ActionPatch{At: now}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing transition err = %v, want ErrNotFound", err)
	}
	if err := store.TransitionAction(ctx, "a1", "approved", "executing", storage.ActionPatch{At: now.Add(3 * time.Second)}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if err := store.TransitionAction(ctx, "a1", "executing", "completed", storage.ActionPatch{
		At:            now.Add(4 * time.Second),
		Result:        map[string]any{"updated": true},
		SetExecutedAt: true,
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := store.GetAction(ctx, "a1")
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if got.Status != "completed" {
		t.Fatalf("status = %q, want completed", got.Status)
	}
	if got.ApprovedAt == nil || !got.ApprovedAt.Equal(now.Add(time.Second)) {
		t.Fatalf("approved at = %v", got.ApprovedAt)
	}
	if got.ExecutedAt == nil || !got.ExecutedAt.Equal(now.Add(4*time.Second)) {
		t.Fatalf("executed at = %v", got.ExecutedAt)
	}
	if got.Result["updated"] != true {
		t.Fatalf("result = %#v", got.Result)
	}
}

func TestTransitionActionConcurrentSingleWinner(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	putTestAction(t, store, "a1", "marketing", "approved", now)

	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.TransitionAction(ctx, "a1", "approved", "executing", storage.ActionPatch{At: now.Add(time.Second)})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, storage.ErrConflict) {
				t.Errorf("transition err = %v, want nil or ErrConflict", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
}

func TestListActionsFiltersAndPages(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	putTestAction(t, store, "a1", "finance", "pending", base)
	putTestAction(t, store, "a2", "finance", "completed", base.Add(time.Minute))
	putTestAction(t, store, "a3", "finance", "pending", base.Add(2*time.Minute))
	putTestAction(t, store, "a4", "marketing", "pending", base.Add(3*time.Minute))
	putTestAction(t, store, "a5", "finance", "pending", base.Add(4*time.Minute))

	page, err := store.ListActions(ctx, storage.ActionQuery{Module: "finance", Statuses: []string{"pending"}, PageSize: 2})
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(page.Actions) != 2 || !page.HasMore {
		t.Fatalf("first page = %d actions, more %v", len(page.Actions), page.HasMore)
	}
	if page.Actions[0].ID != "a5" || page.Actions[1].ID != "a3" {
		t.Fatalf("first page ids = %s,%s; want a5,a3", page.Actions[0].ID, page.Actions[1].ID)
	}

	last := page.Actions[1]
	page, err = store.ListActions(ctx, storage.ActionQuery{
		Module:   "finance",
		Statuses: []string{"pending"},
		PageSize: 2,
		After:    &storage.ActionCursor{CreatedAt: last.CreatedAt, ID: last.ID},
	})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(page.Actions) != 1 || page.HasMore || page.Actions[0].ID != "a1" {
		t.Fatalf("second page = %+v", page)
	}

	filtered, err := store.ListActions(ctx, storage.ActionQuery{
		FilterClause: "status = ? AND module = ?",
		FilterParams: []any{"completed", "finance"},
		PageSize:     10,
	})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered.Actions) != 1 || filtered.Actions[0].ID != "a2" {
		t.Fatalf("filtered = %+v", filtered.Actions)
	}

	if _, err := store.ListActions(ctx, storage.ActionQuery{}); err == nil {
		t.Fatal("expected page size validation error")
	}
}

func TestActionEventsInOrder(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	events := []storage.ActionEventRecord{
		{ActionID: "a1", EventName: "action.submitted", ToStatus: "pending", CreatedAt: now},
		{ActionID: "a1", EventName: "action.approved", FromStatus: "pending", ToStatus: "approved", CreatedAt: now.Add(time.Second)},
		{ActionID: "a2", EventName: "action.submitted", ToStatus: "approved", CreatedAt: now},
	}
	for _, event := range events {
		if err := store.PutActionEvent(ctx, event); err != nil {
			t.Fatalf("put event: %v", err)
		}
	}
	got, err := store.ListActionEvents(ctx, "a1")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events len = %d, want 2", len(got))
	}
	if got[0].EventName != "action.submitted" || got[1].ToStatus != "approved" {
		t.Fatalf("events = %+v", got)
	}
	if err := store.PutActionEvent(ctx, storage.ActionEventRecord{}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestCanceledContext(t *testing.T) {
	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.GetAction(ctx, "a1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
