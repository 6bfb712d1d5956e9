package action

import (
	"errors"
	"testing"
	"time"

	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
)

type tierPolicy map[module.RiskTier]bool

func (p tierPolicy) RequiresApproval(tier module.RiskTier) bool {
	return !p[tier]
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func fixedID() (string, error) {
	return "action-1", nil
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusCancelled, true},
		{StatusApproved, StatusExecuting, true},
		{StatusExecuting, StatusCompleted, true},
		{StatusExecuting, StatusFailed, true},
		{StatusPending, StatusExecuting, false},
		{StatusApproved, StatusCancelled, false},
		{StatusCompleted, StatusFailed, false},
		{StatusCancelled, StatusApproved, false},
		{StatusFailed, StatusExecuting, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminalStatusesAdmitNoTransition(t *testing.T) {
	all := []Status{StatusPending, StatusApproved, StatusExecuting, StatusCompleted, StatusFailed, StatusCancelled}
	for _, from := range TerminalStatuses() {
		if !from.Terminal() {
			t.Fatalf("%s should be terminal", from)
		}
		for _, to := range all {
			if CanTransition(from, to) {
				t.Fatalf("terminal %s allows transition to %s", from, to)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus(" Pending ")
	if err != nil {
		t.Fatalf("parse status: %v", err)
	}
	if got != StatusPending {
		t.Fatalf("status = %q, want %q", got, StatusPending)
	}
	if _, err := ParseStatus("done"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestCreateLowRiskAutoApproved(t *testing.T) {
	created, err := Create(CreateInput{
		Type:           "suggest_price",
		Data:           map[string]any{"roomId": "101"},
		Module:         module.Reservations,
		ConversationID: " conv-1 ",
	}, tierPolicy{module.RiskLow: true}, fixedNow, fixedID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != StatusApproved || created.RequiresApproval {
		t.Fatalf("status = %q requires = %v, want approved/false", created.Status, created.RequiresApproval)
	}
	if created.RiskTier != module.RiskLow {
		t.Fatalf("risk = %q, want low", created.RiskTier)
	}
	if created.ApprovedAt == nil || !created.ApprovedAt.Equal(fixedNow()) {
		t.Fatalf("approved at = %v", created.ApprovedAt)
	}
	if created.ConversationID != "conv-1" || created.ID != "action-1" {
		t.Fatalf("created = %+v", created)
	}
}

func TestCreateMediumRiskPending(t *testing.T) {
	created, err := Create(CreateInput{
		Type:   "update_price",
		Data:   map[string]any{"roomId": "101", "price": int64(145)},
		Module: module.Reservations,
	}, tierPolicy{module.RiskLow: true}, fixedNow, fixedID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != StatusPending || !created.RequiresApproval {
		t.Fatalf("status = %q requires = %v, want pending/true", created.Status, created.RequiresApproval)
	}
	if created.RiskTier != module.RiskMedium {
		t.Fatalf("risk = %q, want medium", created.RiskTier)
	}
	if created.ApprovedAt != nil {
		t.Fatal("pending action should not carry approved at")
	}
}

func TestCreateNilPolicyRequiresApproval(t *testing.T) {
	created, err := Create(CreateInput{Type: "check_inventory", Module: module.Logistics}, nil, fixedNow, fixedID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != StatusPending {
		t.Fatalf("status = %q, want pending", created.Status)
	}
	if created.Data == nil {
		t.Fatal("data should be an empty map, not nil")
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name  string
		input CreateInput
		want  error
	}{
		{name: "unknown module", input: CreateInput{Type: "update_price", Module: "spa"}, want: module.ErrUnknownModule},
		{name: "empty type", input: CreateInput{Type: " ", Module: module.Finance}, want: ErrEmptyType},
		{name: "type from other module", input: CreateInput{Type: "update_price", Module: module.Finance}, want: ErrUnknownActionType},
		{name: "made up type", input: CreateInput{Type: "launch_rocket", Module: module.General}, want: ErrUnknownActionType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(tt.input, nil, fixedNow, fixedID)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreateIDFailure(t *testing.T) {
	_, err := Create(CreateInput{Type: "check_inventory", Module: module.Logistics}, nil, fixedNow, func() (string, error) {
		return "", errors.New("entropy exhausted")
	})
	if err == nil {
		t.Fatal("expected id generation error")
	}
}

func TestCreateCopiesData(t *testing.T) {
	data := map[string]any{"roomId": "101"}
	created, err := Create(CreateInput{Type: "check_availability", Module: module.Reservations, Data: data}, nil, fixedNow, fixedID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	data["roomId"] = "202"
	if created.Data["roomId"] != "101" {
		t.Fatalf("data = %v, want copy of original", created.Data)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	approvedAt := fixedNow().Add(time.Minute)
	original := Action{
		ID:               "a1",
		ConversationID:   "c1",
		Module:           module.Finance,
		Type:             "create_invoice",
		Data:             map[string]any{"amount": int64(100)},
		Status:           StatusApproved,
		RiskTier:         module.RiskMedium,
		RequiresApproval: true,
		CreatedAt:        fixedNow(),
		UpdatedAt:        approvedAt,
		ApprovedAt:       &approvedAt,
	}
	got := FromRecord(ToRecord(original))
	if got.ID != original.ID || got.Module != original.Module || got.Status != original.Status || got.RiskTier != original.RiskTier {
		t.Fatalf("round trip = %+v", got)
	}
	if got.ApprovedAt == nil || !got.ApprovedAt.Equal(approvedAt) {
		t.Fatalf("approved at = %v", got.ApprovedAt)
	}
}
