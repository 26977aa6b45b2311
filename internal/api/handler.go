// Package api exposes the REST surface of the service: stored sessions and
// analyses, the AI enrichment operations and live recognition sessions.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pitabwire/util"

	"github.com/livescribe/livescribe/pkg/enrich"
	"github.com/livescribe/livescribe/pkg/store"
)

const maxRequestBodySize = 1 << 20 // 1 MiB

// Response messages.
const (
	msgSessionNotFound  = "Sessão não encontrada"
	msgSessionDeleted   = "Sessão excluída com sucesso"
	msgInvalidBody      = "Dados inválidos"
	msgLiveNotFound     = "Sessão ao vivo não encontrada"
	msgLiveClosed       = "Sessão ao vivo encerrada"
	msgUnsupported      = "Reconhecimento de voz não suportado"
	msgQuestionRequired = "Transcrição e pergunta são obrigatórias"
	msgTextRequired     = "Texto é obrigatório"
	msgTranscriptionReq = "Transcrição é obrigatória"
)

// AI is the enrichment client used by the /api/ai routes.
type AI interface {
	Analyze(ctx context.Context, transcription, question string) (enrich.AnalysisResult, error)
	Summarize(ctx context.Context, transcription string) (string, error)
	DetectLanguage(ctx context.Context, text string) (enrich.LanguageDetection, error)
	Enhance(ctx context.Context, text, targetLanguage string) (enrich.Enhancement, error)
}

// Handler serves the /api routes.
type Handler struct {
	store store.Store
	ai    AI
	live  *LiveManager
}

// NewHandler creates the API handler. live may be nil to disable the live
// session routes.
func NewHandler(st store.Store, ai AI, live *LiveManager) *Handler {
	return &Handler{store: st, ai: ai, live: live}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.ListSessions)
	mux.HandleFunc("POST /api/sessions", h.CreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.GetSession)
	mux.HandleFunc("PATCH /api/sessions/{id}", h.UpdateSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.DeleteSession)
	mux.HandleFunc("GET /api/sessions/{id}/analyses", h.ListAnalyses)
	mux.HandleFunc("POST /api/analyses", h.CreateAnalysis)

	mux.HandleFunc("POST /api/ai/analyze", h.Analyze)
	mux.HandleFunc("POST /api/ai/summary", h.Summary)
	mux.HandleFunc("POST /api/ai/detect-language", h.DetectLanguage)
	mux.HandleFunc("POST /api/ai/enhance", h.Enhance)

	if h.live != nil {
		h.live.RegisterRoutes(mux)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// serverError logs err and answers 500 with msg.
func serverError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	util.Log(r.Context()).WithError(err).Error(msg)
	writeError(w, http.StatusInternalServerError, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	return true
}

func logWarn(r *http.Request, err error, msg string) {
	util.Log(r.Context()).WithError(err).Warn(msg)
}
