package api

import (
	"time"

	"github.com/livescribe/livescribe/pkg/store"
)

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	Title         string         `json:"title"`
	Transcription string         `json:"transcription"`
	Language      string         `json:"language"`
	Duration      int            `json:"duration"`
	WordCount     int            `json:"wordCount"`
	IsActive      bool           `json:"isActive"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// UpdateSessionRequest is the body of PATCH /api/sessions/{id}.
type UpdateSessionRequest struct {
	Title         *string        `json:"title,omitempty"`
	Transcription *string        `json:"transcription,omitempty"`
	Language      *string        `json:"language,omitempty"`
	Duration      *int           `json:"duration,omitempty"`
	WordCount     *int           `json:"wordCount,omitempty"`
	IsActive      *bool          `json:"isActive,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// SessionResponse is a stored session.
type SessionResponse struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Transcription string         `json:"transcription"`
	Language      string         `json:"language"`
	Duration      int            `json:"duration"`
	WordCount     int            `json:"wordCount"`
	IsActive      bool           `json:"isActive"`
	Metadata      map[string]any `json:"metadata"`
	CreatedAt     string         `json:"createdAt"`
	UpdatedAt     string         `json:"updatedAt"`
}

// CreateAnalysisRequest is the body of POST /api/analyses.
type CreateAnalysisRequest struct {
	SessionID     string   `json:"sessionId"`
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	Confidence    float64  `json:"confidence"`
	RelatedTopics []string `json:"relatedTopics"`
}

// AnalysisResponse is a stored analysis.
type AnalysisResponse struct {
	ID            string   `json:"id"`
	SessionID     string   `json:"sessionId"`
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	Confidence    float64  `json:"confidence"`
	RelatedTopics []string `json:"relatedTopics"`
	CreatedAt     string   `json:"createdAt"`
}

// AnalyzeRequest is the body of POST /api/ai/analyze.
type AnalyzeRequest struct {
	Transcription string `json:"transcription"`
	Question      string `json:"question"`
}

// SummaryRequest is the body of POST /api/ai/summary.
type SummaryRequest struct {
	Transcription string `json:"transcription"`
}

// SummaryResponse is the reply of POST /api/ai/summary.
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// DetectLanguageRequest is the body of POST /api/ai/detect-language.
type DetectLanguageRequest struct {
	Text string `json:"text"`
}

// EnhanceRequest is the body of POST /api/ai/enhance.
type EnhanceRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"targetLanguage"`
}

// CreateLiveRequest is the body of POST /api/live.
type CreateLiveRequest struct {
	Language     string `json:"language,omitempty"`
	EnhancedMode bool   `json:"enhancedMode,omitempty"`
	Backend      string `json:"backend,omitempty"`
}

// SwitchLanguageRequest is the body of POST /api/live/{id}/language.
type SwitchLanguageRequest struct {
	Code string `json:"code"`
}

// ResultsRequest carries one client-side recognizer event.
type ResultsRequest struct {
	Results []ResultItem `json:"results"`
	Error   string       `json:"error,omitempty"`
}

// ResultItem is one recognition hypothesis.
type ResultItem struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"isFinal"`
}

// MessageResponse is a plain confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toSessionResponse(s *store.Session) SessionResponse {
	meta := map[string]any(s.Metadata)
	if meta == nil {
		meta = map[string]any{}
	}
	return SessionResponse{
		ID:            s.ID,
		Title:         s.Title,
		Transcription: s.Transcription,
		Language:      s.Language,
		Duration:      s.DurationSeconds,
		WordCount:     s.WordCount,
		IsActive:      s.IsActive,
		Metadata:      meta,
		CreatedAt:     formatTime(s.CreatedAt),
		UpdatedAt:     formatTime(s.ModifiedAt),
	}
}

func toAnalysisResponse(a *store.Analysis) AnalysisResponse {
	topics := []string(a.RelatedTopics)
	if topics == nil {
		topics = []string{}
	}
	return AnalysisResponse{
		ID:            a.ID,
		SessionID:     a.SessionID,
		Question:      a.Question,
		Answer:        a.Answer,
		Confidence:    a.Confidence,
		RelatedTopics: topics,
		CreatedAt:     formatTime(a.CreatedAt),
	}
}
