package module

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Module
		wantErr bool
	}{
		{in: "finance", want: Finance},
		{in: "  Marketing ", want: Marketing},
		{in: "LOGISTICS", want: Logistics},
		{in: "", wantErr: true},
		{in: "reports", wantErr: true},
	}
	for _, tc := range tests {
		got, err := Parse(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrUnknownModule) {
				t.Fatalf("Parse(%q) err = %v, want ErrUnknownModule", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseRiskTier(t *testing.T) {
	got, err := ParseRiskTier(" HIGH ")
	if err != nil {
		t.Fatalf("parse risk tier: %v", err)
	}
	if got != RiskHigh {
		t.Fatalf("ParseRiskTier = %q, want %q", got, RiskHigh)
	}
	if _, err := ParseRiskTier("critical"); !errors.Is(err, ErrUnknownRiskTier) {
		t.Fatalf("err = %v, want ErrUnknownRiskTier", err)
	}
}

func TestRiskTierRank(t *testing.T) {
	if !(RiskLow.Rank() < RiskMedium.Rank() && RiskMedium.Rank() < RiskHigh.Rank()) {
		t.Fatal("expected low < medium < high")
	}
}

func TestEveryModuleHasCatalogAndPersonality(t *testing.T) {
	for _, m := range All() {
		defs := Definitions(m)
		if len(defs) == 0 {
			t.Fatalf("module %q has empty catalog", m)
		}
		for _, def := range defs {
			if !def.Risk.Valid() {
				t.Fatalf("%s/%s has invalid risk %q", m, def.Type, def.Risk)
			}
			if def.Description == "" || def.DescriptionKa == "" {
				t.Fatalf("%s/%s is missing descriptions", m, def.Type)
			}
		}
		if DefaultPersonality(m).Name == "" {
			t.Fatalf("module %q has no personality", m)
		}
	}
}

func TestLookup(t *testing.T) {
	def, ok := Lookup(Marketing, "publish_social_post")
	if !ok {
		t.Fatal("expected publish_social_post in marketing catalog")
	}
	if def.Risk != RiskHigh {
		t.Fatalf("risk = %q, want %q", def.Risk, RiskHigh)
	}
	if _, ok := Lookup(Finance, "publish_social_post"); ok {
		t.Fatal("publish_social_post must not be allowed in finance")
	}
	if Allows(Module("unknown"), "generate_report") {
		t.Fatal("unknown module must allow nothing")
	}
}

func TestGenerateReportRiskIsPerModule(t *testing.T) {
	general, _ := Lookup(General, "generate_report")
	finance, _ := Lookup(Finance, "generate_report")
	if general.Description == finance.Description {
		t.Fatal("expected module-specific descriptions for generate_report")
	}
}

func TestDefinitionsReturnsCopy(t *testing.T) {
	defs := Definitions(Finance)
	defs[0].Risk = RiskHigh
	if again := Definitions(Finance); again[0].Risk != RiskLow {
		t.Fatal("catalog mutated through returned slice")
	}
}

func TestActionTypesDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, actionType := range ActionTypes() {
		if seen[actionType] {
			t.Fatalf("duplicate action type %q", actionType)
		}
		seen[actionType] = true
	}
	if !seen["order_supplies"] || !seen["analyze_data"] {
		t.Fatal("expected types from every module")
	}
}
