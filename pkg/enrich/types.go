// Package enrich implements the AI enrichment operations layered over a live
// transcript: question answering, summaries, language detection and text
// enhancement. Each operation is a stateless request/reply call to a model
// provider.
package enrich

import "errors"

var (
	// ErrInvalidInput is returned when a required field is empty. No provider
	// call is made.
	ErrInvalidInput = errors.New("enrich: missing required input")

	// ErrProviderUnavailable is returned while the circuit breaker is open.
	ErrProviderUnavailable = errors.New("enrich: provider unavailable")
)

// Fallback texts used when the model response lacks a field.
const (
	FallbackAnswer  = "Não foi possível gerar uma resposta."
	FallbackSummary = "Não foi possível gerar um resumo."

	UnknownLanguage     = "Não identificado"
	UnknownLanguageCode = "unknown"
)

// Default confidences used when the model omits the value.
const (
	defaultAnalysisConfidence  = 0.8
	defaultDetectionConfidence = 0.5
	defaultEnhanceConfidence   = 0.5
	malformedConfidence        = 0.5
)

// AnalysisResult is the answer to a question about a transcript.
type AnalysisResult struct {
	Answer        string   `json:"answer"`
	Confidence    float64  `json:"confidence"`
	RelatedTopics []string `json:"relatedTopics"`
}

// LanguageDetection is the detected language of a piece of text.
type LanguageDetection struct {
	Language     string  `json:"language"`
	Confidence   float64 `json:"confidence"`
	LanguageCode string  `json:"languageCode"`
}

// Enhancement is a grammar and punctuation corrected version of a text.
type Enhancement struct {
	EnhancedText string   `json:"enhancedText"`
	Corrections  []string `json:"corrections"`
	Confidence   float64  `json:"confidence"`
}

// DefaultDetection is returned when the language cannot be determined.
func DefaultDetection() LanguageDetection {
	return LanguageDetection{
		Language:     UnknownLanguage,
		Confidence:   0,
		LanguageCode: UnknownLanguageCode,
	}
}

// DefaultEnhancement is returned when text cannot be enhanced: the original
// text, unchanged.
func DefaultEnhancement(text string) Enhancement {
	return Enhancement{
		EnhancedText: text,
		Corrections:  []string{},
		Confidence:   defaultEnhanceConfidence,
	}
}

// IsUnknown reports whether d is the "could not determine" detection.
func (d LanguageDetection) IsUnknown() bool {
	return d.LanguageCode == "" || d.LanguageCode == UnknownLanguageCode
}
