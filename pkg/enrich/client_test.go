package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/livescribe/livescribe/internal/breaker"
)

type fakeProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	prompts []Prompt
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, p Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, p)
	return f.reply, f.err
}

func TestAnalyze(t *testing.T) {
	p := &fakeProvider{reply: `{"answer":"Three items.","confidence":0.9,"relatedTopics":["budget"," ",""]}`}
	c := NewClient(p)

	res, err := c.Analyze(context.Background(), "we discussed the budget", "how many items?")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Answer != "Three items." {
		t.Errorf("Answer = %q", res.Answer)
	}
	if res.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", res.Confidence)
	}
	if len(res.RelatedTopics) != 1 || res.RelatedTopics[0] != "budget" {
		t.Errorf("RelatedTopics = %v, want [budget]", res.RelatedTopics)
	}
	if !p.prompts[0].JSON {
		t.Error("analyze prompt should request JSON output")
	}
	if !strings.Contains(p.prompts[0].User, "how many items?") {
		t.Error("prompt should contain the question")
	}
}

func TestAnalyzeDefaults(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		answer     string
		confidence float64
	}{
		{"missing confidence", `{"answer":"yes"}`, "yes", defaultAnalysisConfidence},
		{"confidence clamped", `{"answer":"yes","confidence":1.5}`, "yes", 1.0},
		{"negative confidence", `{"answer":"yes","confidence":-2}`, "yes", 0},
		{"string confidence", `{"answer":"yes","confidence":"0.7"}`, "yes", 0.7},
		{"word confidence", `{"answer":"Sim, falaram de preços.","confidence":"alta"}`, "Sim, falaram de preços.", defaultAnalysisConfidence},
		{"object confidence", `{"answer":"yes","confidence":{"level":"high"}}`, "yes", defaultAnalysisConfidence},
		{"empty answer", `{"answer":"  ","confidence":0.4}`, FallbackAnswer, 0.4},
		{"fenced json", "```json\n{\"answer\":\"ok\",\"confidence\":0.6}\n```", "ok", 0.6},
		{"malformed", "just some prose", "just some prose", malformedConfidence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(&fakeProvider{reply: tt.reply})
			res, err := c.Analyze(context.Background(), "text", "question")
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if res.Answer != tt.answer {
				t.Errorf("Answer = %q, want %q", res.Answer, tt.answer)
			}
			if res.Confidence != tt.confidence {
				t.Errorf("Confidence = %v, want %v", res.Confidence, tt.confidence)
			}
			if res.RelatedTopics == nil {
				t.Error("RelatedTopics should never be nil")
			}
		})
	}
}

func TestInvalidInputSkipsProvider(t *testing.T) {
	p := &fakeProvider{reply: `{}`}
	c := NewClient(p)
	ctx := context.Background()

	if _, err := c.Analyze(ctx, "text", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Analyze empty question: err = %v", err)
	}
	if _, err := c.Analyze(ctx, "  ", "q"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Analyze empty transcription: err = %v", err)
	}
	if _, err := c.Summarize(ctx, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Summarize empty: err = %v", err)
	}
	if _, err := c.DetectLanguage(ctx, ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("DetectLanguage empty: err = %v", err)
	}
	if _, err := c.Enhance(ctx, "", "en-US"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Enhance empty: err = %v", err)
	}
	if p.calls != 0 {
		t.Errorf("provider called %d times, want 0", p.calls)
	}
}

func TestAnalyzeProviderError(t *testing.T) {
	boom := errors.New("boom")
	c := NewClient(&fakeProvider{err: boom})
	if _, err := c.Analyze(context.Background(), "text", "q"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"json", `{"summary":"A short meeting."}`, "A short meeting."},
		{"empty summary", `{"summary":""}`, FallbackSummary},
		{"plain text", "A plain summary.", "A plain summary."},
		{"blank", "   ", FallbackSummary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(&fakeProvider{reply: tt.reply})
			got, err := c.Summarize(context.Background(), "some transcript")
			if err != nil {
				t.Fatalf("Summarize: %v", err)
			}
			if got != tt.want {
				t.Errorf("Summarize = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  LanguageDetection
	}{
		{
			"complete",
			`{"language":"English (US)","confidence":0.93,"languageCode":"en-US"}`,
			LanguageDetection{Language: "English (US)", Confidence: 0.93, LanguageCode: "en-US"},
		},
		{
			"name from code",
			`{"languageCode":"es-ES","confidence":2}`,
			LanguageDetection{Language: "Español (España)", Confidence: 1, LanguageCode: "es-ES"},
		},
		{
			"missing confidence",
			`{"language":"Português (Brasil)","languageCode":"pt-BR"}`,
			LanguageDetection{Language: "Português (Brasil)", Confidence: defaultDetectionConfidence, LanguageCode: "pt-BR"},
		},
		{
			"word confidence",
			`{"language":"English (US)","confidence":"high","languageCode":"en-US"}`,
			LanguageDetection{Language: "English (US)", Confidence: defaultDetectionConfidence, LanguageCode: "en-US"},
		},
		{"malformed", "no idea", DefaultDetection()},
		{"empty object", `{}`, DefaultDetection()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(&fakeProvider{reply: tt.reply})
			got, err := c.DetectLanguage(context.Background(), "hello there")
			if err != nil {
				t.Fatalf("DetectLanguage: %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectLanguage = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDetectLanguageProviderErrorReturnsDefault(t *testing.T) {
	c := NewClient(&fakeProvider{err: errors.New("down")})
	got, err := c.DetectLanguage(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !got.IsUnknown() || got.Language != UnknownLanguage {
		t.Errorf("got %+v, want default detection", got)
	}
}

func TestEnhance(t *testing.T) {
	p := &fakeProvider{reply: `{"enhancedText":"Hello, world.","corrections":["hello → Hello",{"original":"world","corrected":"world."}],"confidence":0.7}`}
	c := NewClient(p)

	got, err := c.Enhance(context.Background(), "hello world", "en-US")
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if got.EnhancedText != "Hello, world." {
		t.Errorf("EnhancedText = %q", got.EnhancedText)
	}
	if len(got.Corrections) != 2 || got.Corrections[1] != "world → world." {
		t.Errorf("Corrections = %v", got.Corrections)
	}
	if got.Confidence != 0.7 {
		t.Errorf("Confidence = %v", got.Confidence)
	}
	if !strings.Contains(p.prompts[0].User, "en-US") {
		t.Error("prompt should name the target language")
	}
}

func TestEnhanceWordConfidenceKeepsText(t *testing.T) {
	c := NewClient(&fakeProvider{reply: `{"enhancedText":"Olá, tudo bem?","corrections":["ola → Olá"],"confidence":"alta"}`})
	got, err := c.Enhance(context.Background(), "ola tudo bem", "pt-BR")
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if got.EnhancedText != "Olá, tudo bem?" {
		t.Errorf("EnhancedText = %q", got.EnhancedText)
	}
	if got.Confidence != defaultEnhanceConfidence {
		t.Errorf("Confidence = %v, want %v", got.Confidence, defaultEnhanceConfidence)
	}
}

func TestEnhanceMalformedReturnsOriginal(t *testing.T) {
	for _, reply := range []string{"garbage", `{"corrections":[]}`, `{"enhancedText":"x","corrections":42}`} {
		c := NewClient(&fakeProvider{reply: reply})
		got, err := c.Enhance(context.Background(), "original text", "pt-BR")
		if err != nil {
			t.Fatalf("Enhance(%q): %v", reply, err)
		}
		if got.EnhancedText != "original text" {
			t.Errorf("Enhance(%q) text = %q, want original", reply, got.EnhancedText)
		}
		if got.Corrections == nil {
			t.Errorf("Enhance(%q) corrections nil", reply)
		}
	}
}

func TestEnhanceProviderErrorReturnsOriginal(t *testing.T) {
	c := NewClient(&fakeProvider{err: errors.New("down")})
	got, err := c.Enhance(context.Background(), "keep me", "pt-BR")
	if err == nil {
		t.Fatal("expected error")
	}
	if got.EnhancedText != "keep me" {
		t.Errorf("EnhancedText = %q", got.EnhancedText)
	}
}

func TestClientBreakerFailsFast(t *testing.T) {
	p := &fakeProvider{err: errors.New("down")}
	c := NewClient(p, WithBreaker(breaker.Config{FailureThreshold: 2, ResetTimeout: time.Hour}))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.Summarize(ctx, "text"); err == nil {
			t.Fatal("expected provider error")
		}
	}
	if c.BreakerState() != breaker.StateOpen {
		t.Fatalf("state = %s, want open", c.BreakerState())
	}

	_, err := c.Summarize(ctx, "text")
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if p.calls != 2 {
		t.Errorf("provider calls = %d, want 2", p.calls)
	}
}

func TestNilProvider(t *testing.T) {
	c := NewClient(nil)
	if _, err := c.Summarize(context.Background(), "text"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}
