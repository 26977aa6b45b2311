// Package store persists transcription sessions and their saved analyses.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrNotFound is returned when a session id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalid is returned when a record fails validation. Nothing is
	// written.
	ErrInvalid = errors.New("invalid")
)

// Store is the session persistence contract.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	ListSessions(ctx context.Context) ([]Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSession(ctx context.Context, id string, patch SessionPatch) (*Session, error)
	// DeleteSession removes a session and, in the same transaction, all of
	// its analyses.
	DeleteSession(ctx context.Context, id string) error

	CreateAnalysis(ctx context.Context, a *Analysis) error
	ListAnalyses(ctx context.Context, sessionID string) ([]Analysis, error)

	Close() error
}

// SessionPatch holds the fields of a partial session update. Nil fields are
// left unchanged.
type SessionPatch struct {
	Title           *string
	Transcription   *string
	Language        *string
	DurationSeconds *int
	WordCount       *int
	IsActive        *bool
	Metadata        Metadata
}

func (p SessionPatch) apply(s *Session) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Transcription != nil {
		s.Transcription = *p.Transcription
	}
	if p.Language != nil {
		s.Language = *p.Language
	}
	if p.DurationSeconds != nil {
		s.DurationSeconds = *p.DurationSeconds
	}
	if p.WordCount != nil {
		s.WordCount = *p.WordCount
	}
	if p.IsActive != nil {
		s.IsActive = *p.IsActive
	}
	if p.Metadata != nil {
		s.Metadata = p.Metadata
	}
}

func validateSession(s *Session) error {
	s.Title = strings.TrimSpace(s.Title)
	if s.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if s.DurationSeconds < 0 || s.WordCount < 0 {
		return fmt.Errorf("%w: counters must not be negative", ErrInvalid)
	}
	if s.Metadata == nil {
		s.Metadata = Metadata{}
	}
	return nil
}

func validateAnalysis(a *Analysis) error {
	switch {
	case strings.TrimSpace(a.SessionID) == "":
		return fmt.Errorf("%w: sessionId is required", ErrInvalid)
	case strings.TrimSpace(a.Question) == "":
		return fmt.Errorf("%w: question is required", ErrInvalid)
	case strings.TrimSpace(a.Answer) == "":
		return fmt.Errorf("%w: answer is required", ErrInvalid)
	}
	switch {
	case a.Confidence < 0 || math.IsNaN(a.Confidence):
		a.Confidence = 0
	case a.Confidence > 1:
		a.Confidence = 1
	}
	if a.RelatedTopics == nil {
		a.RelatedTopics = StringList{}
	}
	return nil
}
