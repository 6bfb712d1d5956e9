package conversation

import (
	"strings"
	"testing"

	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
	"github.com/orbicity/opsbot/internal/services/orchestrator/moduleconfig"
)

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt(PromptInput{
		Config: moduleconfig.Config{
			Module:         module.Logistics,
			BehaviorPrompt: "Keep rooms ready.",
			Capabilities:   []string{"inventory", "housekeeping"},
			Personality:    module.Personality{Name: "Nino", Style: "brisk"},
		},
		Context: map[string]any{"floor": 3},
		Locale:  "ka-GE",
	})

	for _, want := range []string{
		"You are Nino, the logistics assistant. Your style is brisk.",
		"Keep rooms ready.",
		"Capabilities:\n- inventory\n- housekeeping",
		"Current context:\n{\n  \"floor\": 3\n}",
		"Available actions for logistics module:",
		"- order_supplies: Order supplies (risk: high)",
		"[ACTION:<type>:<json object>]",
		"Respond in the same language the user uses.",
		"prefer Georgian.",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "- publish_social_post") {
		t.Fatal("prompt lists another module's action")
	}
}

func TestBuildSystemPromptDefaults(t *testing.T) {
	prompt := BuildSystemPrompt(PromptInput{Config: moduleconfig.Config{Module: module.Finance}})
	if !strings.HasPrefix(prompt, "You are "+module.DefaultPersonality(module.Finance).Name) {
		t.Fatalf("prompt = %q", prompt)
	}
	if strings.Contains(prompt, "Current context") || strings.Contains(prompt, "Capabilities") {
		t.Fatalf("prompt has empty sections:\n%s", prompt)
	}
}

func TestLanguageHint(t *testing.T) {
	tests := []struct {
		locale string
		want   string
	}{
		{locale: "", want: ""},
		{locale: "en-US", want: ""},
		{locale: "bogus tag", want: ""},
		{locale: "ka", want: "When the user's language is unclear, prefer Georgian."},
		{locale: "ru-RU", want: "When the user's language is unclear, prefer Russian."},
	}
	for _, tc := range tests {
		if got := languageHint(tc.locale); got != tc.want {
			t.Fatalf("languageHint(%q) = %q, want %q", tc.locale, got, tc.want)
		}
	}
}

func TestKeyLockReleasesEntries(t *testing.T) {
	locks := newKeyLock()
	unlockA := locks.Lock("a")
	unlockB := locks.Lock("b")
	if size := locks.size(); size != 2 {
		t.Fatalf("size = %d, want 2", size)
	}
	unlockA()
	unlockB()
	if size := locks.size(); size != 0 {
		t.Fatalf("size = %d, want 0", size)
	}
}
