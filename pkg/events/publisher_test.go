package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeSerialization(t *testing.T) {
	data := &TranscriptData{
		Transcript: "olá mundo",
		Interim:    "tudo",
		Version:    3,
		WordCount:  2,
	}

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}

	env := Envelope{
		ID:        "test-id",
		Type:      TranscriptUpdated,
		Source:    "live",
		SessionID: "session-123",
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}

	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	var decoded Envelope
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if decoded.Type != TranscriptUpdated {
		t.Errorf("type = %q, want %q", decoded.Type, TranscriptUpdated)
	}
	if decoded.SessionID != "session-123" {
		t.Errorf("session_id = %q, want %q", decoded.SessionID, "session-123")
	}

	var payload TranscriptData
	if err := json.Unmarshal(decoded.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Transcript != "olá mundo" || payload.Version != 3 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestEventTypeConstants(t *testing.T) {
	types := []EventType{
		SessionStarted, SessionStopped, SessionTick, AudioLevel,
		TranscriptUpdated, TranscriptEnhanced, TranscriptCleared,
		LanguageDetected, LanguageSwitched, EnhancedModeToggled,
		EnrichmentDiscarded, RecognizerError, Notification,
	}

	seen := make(map[EventType]bool)
	for _, et := range types {
		if et == "" {
			t.Error("empty event type constant")
		}
		if seen[et] {
			t.Errorf("duplicate event type: %q", et)
		}
		seen[et] = true
	}
}

func TestLocalPublisherFanOut(t *testing.T) {
	p := NewLocalPublisher("test")
	ch := p.Subscribe("sub-1", 4)
	defer p.Unsubscribe("sub-1")

	if err := p.Emit(context.Background(), SessionStarted, "s1", &SessionStateData{Language: "pt-BR"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := p.EmitLocal(AudioLevel, "s1", &AudioLevelData{Percent: 42}); err != nil {
		t.Fatalf("EmitLocal: %v", err)
	}

	first := <-ch
	if first.Type != SessionStarted || first.Source != "test" || first.ID == "" {
		t.Errorf("first = %+v", first)
	}
	second := <-ch
	if second.Type != AudioLevel {
		t.Errorf("second type = %q", second.Type)
	}
}

func TestSubscriberBufferFullDrops(t *testing.T) {
	p := NewLocalPublisher("test")
	ch := p.Subscribe("slow", 1)

	for i := 0; i < 3; i++ {
		_ = p.EmitLocal(SessionTick, "s1", &TickData{RecordingSeconds: i})
	}
	p.Unsubscribe("slow")

	n := 0
	for range ch {
		n++
	}
	if n != 1 {
		t.Errorf("received %d events, want 1", n)
	}
}
