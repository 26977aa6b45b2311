package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

func init() {
	Providers.Register("ollama", func(config map[string]string) (Provider, error) {
		return &Ollama{
			baseURL: strings.TrimRight(configOr(config, "base_url", "http://localhost:11434"), "/"),
			model:   configOr(config, "model", "qwen2.5:3b"),
			client:  httpClientFor(config),
		}, nil
	})
}

// Ollama completes prompts with a local Ollama server.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  struct {
		Temperature float64 `json:"temperature"`
	} `json:"options"`
}

type ollamaResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Complete(ctx context.Context, p Prompt) (string, error) {
	req := ollamaRequest{Model: o.model}
	if p.System != "" {
		req.Messages = append(req.Messages, ollamaMessage{Role: "system", Content: p.System})
	}
	req.Messages = append(req.Messages, ollamaMessage{Role: "user", Content: p.User})
	if p.JSON {
		req.Format = "json"
	}
	req.Options.Temperature = 0.1

	var resp ollamaResponse
	if err := doJSON(ctx, o.client, o.baseURL+"/api/chat", nil, req, &resp); err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama: %s", resp.Error)
	}
	if resp.Message.Content == "" {
		return "", errors.New("ollama: empty response")
	}
	return resp.Message.Content, nil
}
