package language

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectEnglishKeywords(t *testing.T) {
	h := DefaultHeuristic()

	got, ok := h.Detect("the and is to it you that this")
	if !ok {
		t.Fatal("expected a detection")
	}
	if got.Code != "en-US" {
		t.Errorf("code = %q, want %q", got.Code, "en-US")
	}
	if got.Name != "English (US)" {
		t.Errorf("name = %q, want %q", got.Name, "English (US)")
	}
	if got.Confidence != 0.82 {
		t.Errorf("confidence = %v, want 0.82", got.Confidence)
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{name: "portuguese", text: "Eu não sei se você está em casa, mas isso é muito bom", want: "pt-BR", wantOK: true},
		{name: "spanish", text: "El perro y la casa son muy grandes", want: "es-ES", wantOK: true},
		{name: "punctuation and case", text: "THE cat, AND the dog.", want: "en-US", wantOK: true},
		{name: "empty", text: "", wantOK: false},
		{name: "no keywords", text: "xyz qwerty", wantOK: false},
		{name: "tie", text: "the el", wantOK: false},
		{name: "shared keywords only", text: "para como", wantOK: false},
	}

	h := DefaultHeuristic()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := h.Detect(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.Code != tt.want {
				t.Errorf("code = %q, want %q", got.Code, tt.want)
			}
		})
	}
}

func TestConfidenceIsFixedPerLanguage(t *testing.T) {
	h := DefaultHeuristic()
	one, _ := h.Detect("the")
	many, _ := h.Detect("the and is to it you that this of in for with")
	if one.Confidence != many.Confidence {
		t.Errorf("confidence changed with score: %v vs %v", one.Confidence, many.Confidence)
	}
}

func TestNewHeuristicRejectsUnknownLanguage(t *testing.T) {
	if _, err := NewHeuristic([]Profile{{Code: "xx-XX", Keywords: []string{"a"}}}); err == nil {
		t.Fatal("expected error for unsupported language")
	}
}

func TestLoaderMergesProfiles(t *testing.T) {
	dir := t.TempDir()
	extra := "profiles:\n  - code: en-US\n    keywords: [hello, world]\n"
	if err := os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(extra), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}

	l := NewLoader(dir)
	if err := l.LoadAll(); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	got, ok := l.Heuristic().Detect("hello world")
	if !ok || got.Code != "en-US" {
		t.Errorf("Detect = %+v, %v; want en-US", got, ok)
	}
	// Defaults are still present.
	if got, ok := l.Heuristic().Detect("você não está"); !ok || got.Code != "pt-BR" {
		t.Errorf("Detect = %+v, %v; want pt-BR", got, ok)
	}
}

func TestLoaderKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("profiles:\n  - code: zz\n    keywords: [a]\n"), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	l := NewLoader(dir)
	before := l.Heuristic()
	if err := l.LoadAll(); err == nil {
		t.Fatal("expected error")
	}
	if l.Heuristic() != before {
		t.Error("heuristic replaced after failed load")
	}
}

func TestNext(t *testing.T) {
	seen := map[string]bool{}
	code := Default
	for range Codes() {
		seen[code] = true
		code = Next(code)
	}
	if len(seen) != len(Codes()) {
		t.Errorf("Next visited %d languages, want %d", len(seen), len(Codes()))
	}
	if DisplayName("xx") != "xx" {
		t.Errorf("DisplayName fallback = %q", DisplayName("xx"))
	}
}
