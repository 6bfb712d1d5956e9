// Package generation adapts external text generation services to the single
// request/response call the conversation manager needs.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Role identifies the author of a history turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

var (
	// ErrEmptyOutput indicates the service answered without any text.
	ErrEmptyOutput = errors.New("generation returned no text")
	// ErrUnknownProvider indicates an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown generation provider")
)

// Turn is one message of conversation history.
type Turn struct {
	Role    Role
	Content string
}

// Request is one generation call.
type Request struct {
	SystemPrompt string
	History      []Turn
}

// Generator produces the assistant reply for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Provider names a generation backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderStatic    Provider = "static"
)

// Config selects and configures a generation backend.
type Config struct {
	Provider  string `env:"OPSBOT_LLM_PROVIDER" envDefault:"static"`
	Model     string `env:"OPSBOT_LLM_MODEL"`
	APIKey    string `env:"OPSBOT_LLM_API_KEY"`
	BaseURL   string `env:"OPSBOT_LLM_BASE_URL"`
	MaxTokens int64  `env:"OPSBOT_LLM_MAX_TOKENS" envDefault:"1024"`
	// StaticReply is returned by the static provider.
	StaticReply string `env:"OPSBOT_LLM_STATIC_REPLY"`
}

// New builds the generator named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Generator, error) {
	provider := Provider(strings.ToLower(strings.TrimSpace(cfg.Provider)))
	if provider != ProviderStatic && provider != "" && strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s provider requires an API key", provider)
	}
	switch provider {
	case ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case ProviderAnthropic:
		return NewAnthropic(cfg), nil
	case ProviderGemini:
		return NewGemini(ctx, cfg)
	case ProviderStatic, "":
		return Static{Reply: cfg.StaticReply}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

func modelOrDefault(model, fallback string) string {
	if model = strings.TrimSpace(model); model != "" {
		return model
	}
	return fallback
}

func maxTokensOrDefault(value int64) int64 {
	if value > 0 {
		return value
	}
	return 1024
}

func nonEmpty(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyOutput
	}
	return text, nil
}
