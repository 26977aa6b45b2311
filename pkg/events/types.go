package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event flowing through the system.
type EventType string

const (
	SessionStarted      EventType = "session.started"
	SessionStopped      EventType = "session.stopped"
	SessionTick         EventType = "session.tick"
	AudioLevel          EventType = "audio.level"
	TranscriptUpdated   EventType = "transcript.updated"
	TranscriptEnhanced  EventType = "transcript.enhanced"
	TranscriptCleared   EventType = "transcript.cleared"
	LanguageDetected    EventType = "language.detected"
	LanguageSwitched    EventType = "language.switched"
	EnhancedModeToggled EventType = "enhanced_mode.toggled"
	EnrichmentDiscarded EventType = "enrichment.discarded"
	RecognizerError     EventType = "recognizer.error"
	Notification        EventType = "notification"
	WebhookTest         EventType = "webhook.test"
)

// Envelope is the standard event wrapper published to the event bus.
type Envelope struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Source    string            `json:"source"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SessionStateData is the payload for session.started and session.stopped events.
type SessionStateData struct {
	Language string `json:"language"`
	Reason   string `json:"reason,omitempty"`
}

// TickData is the payload for session.tick events.
type TickData struct {
	RecordingSeconds int `json:"recording_seconds"`
}

// AudioLevelData is the payload for audio.level events.
type AudioLevelData struct {
	Percent int `json:"percent"`
}

// TranscriptData is the payload for transcript.updated events.
type TranscriptData struct {
	Transcript string `json:"transcript"`
	Interim    string `json:"interim,omitempty"`
	Segment    string `json:"segment,omitempty"`
	Version    uint64 `json:"version"`
	WordCount  int    `json:"word_count"`
}

// EnhancementData is the payload for transcript.enhanced events.
type EnhancementData struct {
	Original    string   `json:"original"`
	Enhanced    string   `json:"enhanced"`
	Corrections []string `json:"corrections,omitempty"`
	Version     uint64   `json:"version"`
}

// DetectionData is the payload for language.detected events.
type DetectionData struct {
	Language     string  `json:"language"`
	LanguageCode string  `json:"language_code"`
	Confidence   float64 `json:"confidence"`
	Heuristic    bool    `json:"heuristic"`
}

// LanguageSwitchData is the payload for language.switched events.
type LanguageSwitchData struct {
	From string `json:"from"`
	To   string `json:"to"`
	Name string `json:"name"`
}

// EnhancedModeData is the payload for enhanced_mode.toggled events.
type EnhancedModeData struct {
	Enabled bool `json:"enabled"`
}

// DiscardData is the payload for enrichment.discarded events.
type DiscardData struct {
	Kind        string `json:"kind"`
	SentVersion uint64 `json:"sent_version"`
	Version     uint64 `json:"version"`
}

// ErrorData is the payload for recognizer.error events.
type ErrorData struct {
	Error string `json:"error"`
}

// NotificationData is the payload for notification events.
type NotificationData struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// WebhookTestData is the payload for webhook.test events.
type WebhookTestData struct {
	WebhookID string `json:"webhook_id"`
	Message   string `json:"message"`
}
