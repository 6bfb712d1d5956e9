package conversation

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/orbicity/opsbot/internal/platform/i18n/catalog"
	"github.com/orbicity/opsbot/internal/services/orchestrator/module"
	"github.com/orbicity/opsbot/internal/services/orchestrator/moduleconfig"
)

const directiveInstruction = `To propose an action, append exactly one directive at the end of your reply:
[ACTION:<type>:<json object>]
Use only the action types listed above and put every parameter in the JSON object. Propose at most one action per reply.`

// PromptInput is everything the system prompt is built from.
type PromptInput struct {
	Config  moduleconfig.Config
	Context map[string]any
	// Locale is the session locale, used as a language hint.
	Locale string
}

// BuildSystemPrompt renders the module policy, context, and action catalog
// into the system prompt for one turn.
func BuildSystemPrompt(input PromptInput) string {
	cfg := input.Config
	var b strings.Builder

	personality := cfg.Personality
	if strings.TrimSpace(personality.Name) == "" {
		personality = module.DefaultPersonality(cfg.Module)
	}
	fmt.Fprintf(&b, "You are %s", personality.Name)
	if personality.NameKa != "" {
		fmt.Fprintf(&b, " (%s)", personality.NameKa)
	}
	fmt.Fprintf(&b, ", the %s assistant.", cfg.Module)
	if personality.Style != "" {
		fmt.Fprintf(&b, " Your style is %s.", personality.Style)
	}

	if prompt := strings.TrimSpace(cfg.BehaviorPrompt); prompt != "" {
		b.WriteString("\n\n")
		b.WriteString(prompt)
	}

	if len(cfg.Capabilities) > 0 {
		b.WriteString("\n\nCapabilities:\n")
		for _, capability := range cfg.Capabilities {
			fmt.Fprintf(&b, "- %s\n", capability)
		}
	}

	if len(input.Context) > 0 {
		if encoded, err := json.MarshalIndent(input.Context, "", "  "); err == nil {
			b.WriteString("\n\nCurrent context:\n")
			b.Write(encoded)
		}
	}

	fmt.Fprintf(&b, "\n\nAvailable actions for %s module:\n", cfg.Module)
	for _, def := range module.Definitions(cfg.Module) {
		fmt.Fprintf(&b, "- %s: %s (risk: %s)\n", def.Type, def.Description, def.Risk)
	}

	b.WriteString("\n")
	b.WriteString(directiveInstruction)

	b.WriteString("\n\n")
	b.WriteString(catalog.Default().Text(catalog.BaseLocale, "chat.language"))
	if hint := languageHint(input.Locale); hint != "" {
		b.WriteString(" ")
		b.WriteString(hint)
	}
	return strings.TrimRight(b.String(), "\n")
}

// languageHint names the session language when it is known and not English.
func languageHint(locale string) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return ""
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	if base.String() == "en" || base.String() == "und" {
		return ""
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return ""
	}
	return fmt.Sprintf("When the user's language is unclear, prefer %s.", name)
}
