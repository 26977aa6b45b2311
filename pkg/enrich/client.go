package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/livescribe/livescribe/internal/breaker"
	"github.com/livescribe/livescribe/pkg/language"
)

// Client runs the enrichment operations against a Provider.
type Client struct {
	provider Provider
	breaker  *breaker.Breaker
}

// Option configures a Client.
type Option func(*Client)

// WithBreaker guards provider calls with a circuit breaker.
func WithBreaker(cfg breaker.Config) Option {
	return func(c *Client) {
		c.breaker = breaker.New(cfg)
	}
}

// NewClient creates a client over provider.
func NewClient(provider Provider, opts ...Option) *Client {
	c := &Client{provider: provider}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BreakerState reports the state of the provider circuit breaker.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

func (c *Client) complete(ctx context.Context, p Prompt) (string, error) {
	if c.provider == nil {
		return "", ErrProviderUnavailable
	}
	if !c.breaker.Allow() {
		return "", ErrProviderUnavailable
	}
	text, err := c.provider.Complete(ctx, p)
	if err != nil {
		// A cancelled caller says nothing about provider health.
		if !errors.Is(err, context.Canceled) {
			c.breaker.Failure()
		}
		return "", err
	}
	c.breaker.Success()
	return text, nil
}

// Analyze answers question about transcription. Provider failures are
// returned to the caller; there is no meaningful default answer.
func (c *Client) Analyze(ctx context.Context, transcription, question string) (AnalysisResult, error) {
	if strings.TrimSpace(transcription) == "" || strings.TrimSpace(question) == "" {
		return AnalysisResult{}, ErrInvalidInput
	}

	text, err := c.complete(ctx, analyzePrompt(transcription, question))
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("analyze: %w", err)
	}

	var resp struct {
		Answer        string   `json:"answer"`
		Confidence    score    `json:"confidence"`
		RelatedTopics []string `json:"relatedTopics"`
	}
	if err := decodeModelJSON(text, &resp); err != nil {
		slog.WarnContext(ctx, "analyze: malformed model output", slog.String("error", err.Error()))
		answer := strings.TrimSpace(text)
		if answer == "" {
			answer = FallbackAnswer
		}
		return AnalysisResult{Answer: answer, Confidence: malformedConfidence, RelatedTopics: []string{}}, nil
	}

	answer := strings.TrimSpace(resp.Answer)
	if answer == "" {
		answer = FallbackAnswer
	}
	return AnalysisResult{
		Answer:        answer,
		Confidence:    resp.Confidence.or(defaultAnalysisConfidence),
		RelatedTopics: nonBlank(resp.RelatedTopics),
	}, nil
}

// Summarize summarizes transcription. Provider failures are returned to the
// caller.
func (c *Client) Summarize(ctx context.Context, transcription string) (string, error) {
	if strings.TrimSpace(transcription) == "" {
		return "", ErrInvalidInput
	}

	text, err := c.complete(ctx, summaryPrompt(transcription))
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	var resp struct {
		Summary string `json:"summary"`
	}
	if err := decodeModelJSON(text, &resp); err != nil {
		if raw := strings.TrimSpace(text); raw != "" {
			return raw, nil
		}
		return FallbackSummary, nil
	}
	if s := strings.TrimSpace(resp.Summary); s != "" {
		return s, nil
	}
	return FallbackSummary, nil
}

// DetectLanguage identifies the language of text. It never fails because of
// a malformed model response; it returns DefaultDetection instead. When the
// provider call itself fails, DefaultDetection is returned together with the
// error so callers can fall back to the keyword heuristic.
func (c *Client) DetectLanguage(ctx context.Context, text string) (LanguageDetection, error) {
	if strings.TrimSpace(text) == "" {
		return DefaultDetection(), ErrInvalidInput
	}

	out, err := c.complete(ctx, detectPrompt(text))
	if err != nil {
		return DefaultDetection(), fmt.Errorf("detect language: %w", err)
	}

	var resp struct {
		Language     string `json:"language"`
		Confidence   score  `json:"confidence"`
		LanguageCode string `json:"languageCode"`
	}
	if err := decodeModelJSON(out, &resp); err != nil {
		slog.WarnContext(ctx, "detect language: malformed model output", slog.String("error", err.Error()))
		return DefaultDetection(), nil
	}

	name := strings.TrimSpace(resp.Language)
	code := strings.TrimSpace(resp.LanguageCode)
	if name == "" && code == "" {
		return DefaultDetection(), nil
	}
	if code == "" {
		code = UnknownLanguageCode
	}
	if name == "" {
		name = language.DisplayName(code)
	}
	return LanguageDetection{
		Language:     name,
		Confidence:   resp.Confidence.or(defaultDetectionConfidence),
		LanguageCode: code,
	}, nil
}

// Enhance corrects grammar and punctuation of text written in
// targetLanguage. It never fails because of a malformed model response; it
// returns the original text instead. Provider failures return the same
// default together with the error.
func (c *Client) Enhance(ctx context.Context, text, targetLanguage string) (Enhancement, error) {
	if strings.TrimSpace(text) == "" {
		return DefaultEnhancement(text), ErrInvalidInput
	}
	if targetLanguage == "" {
		targetLanguage = language.Default
	}

	out, err := c.complete(ctx, enhancePrompt(text, targetLanguage))
	if err != nil {
		return DefaultEnhancement(text), fmt.Errorf("enhance: %w", err)
	}

	var resp struct {
		EnhancedText string      `json:"enhancedText"`
		Corrections  corrections `json:"corrections"`
		Confidence   score       `json:"confidence"`
	}
	if err := decodeModelJSON(out, &resp); err != nil {
		slog.WarnContext(ctx, "enhance: malformed model output", slog.String("error", err.Error()))
		return DefaultEnhancement(text), nil
	}

	enhanced := strings.TrimSpace(resp.EnhancedText)
	if enhanced == "" {
		enhanced = text
	}
	fixes := []string(resp.Corrections)
	if fixes == nil {
		fixes = []string{}
	}
	return Enhancement{
		EnhancedText: enhanced,
		Corrections:  fixes,
		Confidence:   resp.Confidence.or(defaultEnhanceConfidence),
	}, nil
}
