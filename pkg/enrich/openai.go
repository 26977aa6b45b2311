package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

func init() {
	Providers.Register("openai", func(config map[string]string) (Provider, error) {
		apiKey := config["api_key"]
		if apiKey == "" {
			return nil, fmt.Errorf("openai API key required (set OPENAI_API_KEY)")
		}
		return &OpenAI{
			apiKey:  apiKey,
			baseURL: strings.TrimRight(configOr(config, "base_url", "https://api.openai.com/v1"), "/"),
			model:   configOr(config, "model", "gpt-4o-mini"),
			client:  httpClientFor(config),
		}, nil
	})
}

// OpenAI completes prompts with an OpenAI-compatible chat completions API.
type OpenAI struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Complete(ctx context.Context, p Prompt) (string, error) {
	req := openAIRequest{
		Model:       o.model,
		Temperature: 0.3,
	}
	if p.System != "" {
		req.Messages = append(req.Messages, openAIMessage{Role: "system", Content: p.System})
	}
	req.Messages = append(req.Messages, openAIMessage{Role: "user", Content: p.User})
	if p.JSON {
		req.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}

	var resp openAIResponse
	if err := doJSON(ctx, o.client, o.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty response choices")
	}
	return resp.Choices[0].Message.Content, nil
}
