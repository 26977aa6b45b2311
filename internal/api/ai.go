package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/livescribe/livescribe/pkg/enrich"
)

// Analyze handles POST /api/ai/analyze.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Transcription) == "" || strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, msgQuestionRequired)
		return
	}

	result, err := h.ai.Analyze(r.Context(), req.Transcription, req.Question)
	if err != nil {
		h.aiError(w, r, err, "Erro ao analisar transcrição")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Summary handles POST /api/ai/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Transcription) == "" {
		writeError(w, http.StatusBadRequest, msgTranscriptionReq)
		return
	}

	summary, err := h.ai.Summarize(r.Context(), req.Transcription)
	if err != nil {
		h.aiError(w, r, err, "Erro ao gerar resumo")
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{Summary: summary})
}

// DetectLanguage handles POST /api/ai/detect-language. A provider failure
// still carries the default detection in the body.
func (h *Handler) DetectLanguage(w http.ResponseWriter, r *http.Request) {
	var req DetectLanguageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, msgTextRequired)
		return
	}

	detection, err := h.ai.DetectLanguage(r.Context(), req.Text)
	if err != nil {
		logWarn(r, err, "language detection failed")
		writeJSON(w, http.StatusInternalServerError, detection)
		return
	}
	writeJSON(w, http.StatusOK, detection)
}

// Enhance handles POST /api/ai/enhance. A provider failure answers with the
// unchanged text.
func (h *Handler) Enhance(w http.ResponseWriter, r *http.Request) {
	var req EnhanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, msgTextRequired)
		return
	}

	enhancement, err := h.ai.Enhance(r.Context(), req.Text, req.TargetLanguage)
	if err != nil {
		logWarn(r, err, "text enhancement failed")
		writeJSON(w, http.StatusInternalServerError, enhancement)
		return
	}
	writeJSON(w, http.StatusOK, enhancement)
}

func (h *Handler) aiError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if errors.Is(err, enrich.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	serverError(w, r, err, msg)
}
