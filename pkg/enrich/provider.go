package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/livescribe/livescribe/internal/registry"
)

// Prompt is a single-turn request to a model.
type Prompt struct {
	System string
	User   string
	// JSON asks the provider for a JSON object response when it supports it.
	JSON bool
}

// Provider completes prompts against a remote model.
type Provider interface {
	Complete(ctx context.Context, p Prompt) (string, error)
	Name() string
}

// Providers is the registry of model provider adapters. Config keys:
// api_key, base_url, model, timeout_sec.
var Providers = registry.New[Provider]()

// NewProvider creates the named provider from config.
func NewProvider(name string, config map[string]string) (Provider, error) {
	return Providers.Create(name, config)
}

const defaultTimeout = 30 * time.Second

func httpClientFor(config map[string]string) *http.Client {
	timeout := defaultTimeout
	if v, err := strconv.Atoi(config["timeout_sec"]); err == nil && v > 0 {
		timeout = time.Duration(v) * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func configOr(config map[string]string, key, def string) string {
	if v := config[key]; v != "" {
		return v
	}
	return def
}

// doJSON sends a JSON request and decodes the JSON response into dest.
func doJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any, dest any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
