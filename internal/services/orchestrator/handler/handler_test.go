package handler

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
)

func TestRegistryResolve(t *testing.T) {
	called := false
	registry := NewRegistry(Entry{Type: "update_price", Handler: HandlerFunc(func(context.Context, Request) (Result, error) {
		called = true
		return Result{Success: true}, nil
	})})

	if _, err := registry.Resolve("update_price").Handle(context.Background(), Request{Type: "update_price"}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !called {
		t.Fatal("registered handler was not called")
	}
}

func TestRegistryFallsBackToRecordOnly(t *testing.T) {
	var registry *Registry
	result, err := registry.Resolve("teleport_guest").Handle(context.Background(), Request{Type: "teleport_guest"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !result.Success {
		t.Fatal("record-only result should succeed")
	}
	if result.Data["message"] != "Action teleport_guest recorded" || result.Data["simulated"] != true {
		t.Fatalf("data = %#v", result.Data)
	}
}

func TestRegistryIgnoresEmptyEntries(t *testing.T) {
	registry := NewRegistry(Entry{Type: "", Handler: RecordOnly}, Entry{Type: "x"})
	if got := registry.Types(); len(got) != 0 {
		t.Fatalf("types = %v, want none", got)
	}
}

func TestDefaultRegistryCoversCatalog(t *testing.T) {
	registry := DefaultRegistry(GatewayConfig{}, zerolog.Nop())
	registered := make(map[string]bool)
	for _, actionType := range registry.Types() {
		registered[actionType] = true
	}
	for _, actionType := range module.ActionTypes() {
		if !registered[actionType] {
			t.Fatalf("catalog type %s has no handler", actionType)
		}
	}
}

func TestSimulate(t *testing.T) {
	result := Simulate(Request{ActionID: "a1", Type: "update_price", Data: map[string]any{"roomId": "101", "price": int64(145)}})
	if !result.Success {
		t.Fatal("simulated update should succeed")
	}
	if result.Data["newPrice"] != int64(145) || result.Data["roomId"] != "101" || result.Data["updated"] != true {
		t.Fatalf("data = %#v", result.Data)
	}

	report := Simulate(Request{ActionID: "a2", Type: "generate_report"})
	if report.Data["reportId"] != "report_a2" {
		t.Fatalf("report id = %#v, want report_a2", report.Data["reportId"])
	}

	other := Simulate(Request{Type: "order_supplies"})
	if other.Data["message"] != "Action order_supplies recorded" {
		t.Fatalf("data = %#v", other.Data)
	}
}
