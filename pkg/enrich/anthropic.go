package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const anthropicVersion = "2023-06-01"

func init() {
	Providers.Register("anthropic", func(config map[string]string) (Provider, error) {
		apiKey := config["api_key"]
		if apiKey == "" {
			return nil, fmt.Errorf("anthropic API key required (set ANTHROPIC_API_KEY)")
		}
		return &Anthropic{
			apiKey:  apiKey,
			baseURL: strings.TrimRight(configOr(config, "base_url", "https://api.anthropic.com"), "/"),
			model:   configOr(config, "model", "claude-3-5-haiku-latest"),
			client:  httpClientFor(config),
		}, nil
	})
}

// Anthropic completes prompts with the Anthropic Messages API.
type Anthropic struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Complete(ctx context.Context, p Prompt) (string, error) {
	system := p.System
	if p.JSON {
		system = strings.TrimSpace(system + "\nRespond with a single JSON object and nothing else.")
	}
	req := anthropicRequest{
		Model:     a.model,
		MaxTokens: 1024,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: p.User}},
	}
	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var resp anthropicResponse
	if err := doJSON(ctx, a.client, a.baseURL+"/v1/messages", headers, req, &resp); err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("anthropic: empty response content")
	}
	return sb.String(), nil
}
