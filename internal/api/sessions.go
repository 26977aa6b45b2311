package api

import (
	"errors"
	"net/http"

	"github.com/livescribe/livescribe/pkg/store"
)

// ListSessions handles GET /api/sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListSessions(r.Context())
	if err != nil {
		serverError(w, r, err, "Falha ao listar sessões")
		return
	}

	items := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		items = append(items, toSessionResponse(&sessions[i]))
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateSession handles POST /api/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s := &store.Session{
		Title:           req.Title,
		Transcription:   req.Transcription,
		Language:        req.Language,
		DurationSeconds: req.Duration,
		WordCount:       req.WordCount,
		IsActive:        req.IsActive,
		Metadata:        store.Metadata(req.Metadata),
	}
	if err := h.store.CreateSession(r.Context(), s); err != nil {
		if errors.Is(err, store.ErrInvalid) {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		serverError(w, r, err, "Falha ao criar sessão")
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(s))
}

// GetSession handles GET /api/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		h.sessionError(w, r, err, "Falha ao buscar sessão")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

// UpdateSession handles PATCH /api/sessions/{id}.
func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var req UpdateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := store.SessionPatch{
		Title:           req.Title,
		Transcription:   req.Transcription,
		Language:        req.Language,
		DurationSeconds: req.Duration,
		WordCount:       req.WordCount,
		IsActive:        req.IsActive,
		Metadata:        store.Metadata(req.Metadata),
	}
	s, err := h.store.UpdateSession(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		h.sessionError(w, r, err, "Falha ao atualizar sessão")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

// DeleteSession handles DELETE /api/sessions/{id}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		h.sessionError(w, r, err, "Falha ao excluir sessão")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: msgSessionDeleted})
}

// CreateAnalysis handles POST /api/analyses.
func (h *Handler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req CreateAnalysisRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a := &store.Analysis{
		SessionID:     req.SessionID,
		Question:      req.Question,
		Answer:        req.Answer,
		Confidence:    req.Confidence,
		RelatedTopics: store.StringList(req.RelatedTopics),
	}
	if err := h.store.CreateAnalysis(r.Context(), a); err != nil {
		if errors.Is(err, store.ErrInvalid) {
			writeError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		serverError(w, r, err, "Falha ao salvar análise")
		return
	}

	writeJSON(w, http.StatusCreated, toAnalysisResponse(a))
}

// ListAnalyses handles GET /api/sessions/{id}/analyses.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	analyses, err := h.store.ListAnalyses(r.Context(), r.PathValue("id"))
	if err != nil {
		serverError(w, r, err, "Falha ao listar análises")
		return
	}

	items := make([]AnalysisResponse, 0, len(analyses))
	for i := range analyses {
		items = append(items, toAnalysisResponse(&analyses[i]))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) sessionError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, msgSessionNotFound)
	case errors.Is(err, store.ErrInvalid):
		writeError(w, http.StatusBadRequest, msgInvalidBody)
	default:
		serverError(w, r, err, msg)
	}
}
