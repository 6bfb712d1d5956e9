package generation

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// Gemini generates replies with the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGemini builds a Gemini generator.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	return newGemini(ctx, cfg, nil)
}

func newGemini(ctx context.Context, cfg Config, httpClient *http.Client) (*Gemini, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		clientConfig.HTTPOptions.BaseURL = baseURL
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	maxTokens := maxTokensOrDefault(cfg.MaxTokens)
	return &Gemini{
		client: client,
		model:  modelOrDefault(cfg.Model, defaultGeminiModel),
		config: &genai.GenerateContentConfig{MaxOutputTokens: int32(maxTokens)},
	}, nil
}

// Generate sends the history as contents with the system prompt as the
// system instruction. Thought parts are left out of the reply.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.History))
	for _, turn := range req.History {
		role := genai.RoleUser
		if turn.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Content}},
		})
	}

	config := *g.config
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, &config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	var text strings.Builder
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text.WriteString(part.Text)
		}
		break
	}
	return nonEmpty(text.String())
}
