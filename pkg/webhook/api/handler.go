// Package api exposes webhook management over REST.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pitabwire/util"
	"github.com/rs/xid"

	"github.com/livescribe/livescribe/pkg/events"
	"github.com/livescribe/livescribe/pkg/urlvalidation"
	"github.com/livescribe/livescribe/pkg/webhook"
)

const maxRequestBodySize = 1 << 20 // 1 MiB

// Handler provides REST endpoints for webhook management.
type Handler struct {
	store        webhook.Store
	deliverer    *webhook.Deliverer
	validateOpts []urlvalidation.Option
}

// NewHandler creates a webhook API handler.
func NewHandler(store webhook.Store, deliverer *webhook.Deliverer, validateOpts ...urlvalidation.Option) *Handler {
	return &Handler{store: store, deliverer: deliverer, validateOpts: validateOpts}
}

// RegisterRoutes registers all webhook API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/webhooks", h.Create)
	mux.HandleFunc("GET /api/webhooks", h.List)
	mux.HandleFunc("GET /api/webhooks/{id}", h.Get)
	mux.HandleFunc("PATCH /api/webhooks/{id}", h.Update)
	mux.HandleFunc("DELETE /api/webhooks/{id}", h.Delete)
	mux.HandleFunc("POST /api/webhooks/{id}/rotate-secret", h.RotateSecret)
	mux.HandleFunc("GET /api/webhooks/{id}/deliveries", h.ListDeliveries)
	mux.HandleFunc("GET /api/webhooks/{id}/dead-letters", h.ListDeadLetters)
	mux.HandleFunc("POST /api/webhooks/{id}/dead-letters/{dlid}/replay", h.ReplayDeadLetter)
	mux.HandleFunc("POST /api/webhooks/{id}/test", h.Test)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if errors.Is(err, webhook.ErrNotFound) {
		writeError(w, http.StatusNotFound, "webhook not found")
		return
	}
	util.Log(r.Context()).WithError(err).Error(msg)
	writeError(w, http.StatusInternalServerError, msg)
}

func (h *Handler) response(ep *webhook.Endpoint, includeSecret bool) WebhookResponse {
	return toWebhookResponse(ep, h.deliverer.BreakerState(ep.ID), includeSecret)
}

// Create handles POST /api/webhooks
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req CreateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, "name and url are required")
		return
	}
	if err := urlvalidation.ValidateWebhookURL(req.URL, h.validateOpts...); err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook URL: "+err.Error())
		return
	}

	secret, err := webhook.GenerateSecret()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate secret")
		return
	}

	ep := &webhook.Endpoint{
		Name:        req.Name,
		URL:         req.URL,
		Secret:      secret,
		EventTypes:  webhook.EventTypes(req.EventTypes),
		SessionID:   req.SessionID,
		IsActive:    true,
		Description: req.Description,
	}
	if err := h.store.CreateEndpoint(r.Context(), ep); err != nil {
		h.storeError(w, r, err, "failed to create webhook")
		return
	}
	writeJSON(w, http.StatusCreated, h.response(ep, true))
}

// List handles GET /api/webhooks
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.store.ListEndpoints(r.Context())
	if err != nil {
		h.storeError(w, r, err, "failed to list webhooks")
		return
	}
	resp := make([]WebhookResponse, 0, len(endpoints))
	for i := range endpoints {
		resp = append(resp, h.response(&endpoints[i], false))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/webhooks/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ep, err := h.store.GetEndpoint(r.Context(), r.PathValue("id"))
	if err != nil {
		h.storeError(w, r, err, "failed to get webhook")
		return
	}
	writeJSON(w, http.StatusOK, h.response(ep, false))
}

// Update handles PATCH /api/webhooks/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	ep, err := h.store.GetEndpoint(r.Context(), r.PathValue("id"))
	if err != nil {
		h.storeError(w, r, err, "failed to get webhook")
		return
	}

	var req UpdateWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != nil {
		ep.Name = *req.Name
	}
	if req.URL != nil {
		if err := urlvalidation.ValidateWebhookURL(*req.URL, h.validateOpts...); err != nil {
			writeError(w, http.StatusBadRequest, "invalid webhook URL: "+err.Error())
			return
		}
		ep.URL = *req.URL
	}
	if req.EventTypes != nil {
		ep.EventTypes = webhook.EventTypes(*req.EventTypes)
	}
	if req.SessionID != nil {
		ep.SessionID = *req.SessionID
	}
	if req.IsActive != nil {
		ep.IsActive = *req.IsActive
	}
	if req.Description != nil {
		ep.Description = *req.Description
	}

	if err := h.store.UpdateEndpoint(r.Context(), ep); err != nil {
		h.storeError(w, r, err, "failed to update webhook")
		return
	}
	writeJSON(w, http.StatusOK, h.response(ep, false))
}

// Delete handles DELETE /api/webhooks/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteEndpoint(r.Context(), r.PathValue("id")); err != nil {
		h.storeError(w, r, err, "failed to delete webhook")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RotateSecret handles POST /api/webhooks/{id}/rotate-secret
func (h *Handler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	ep, err := h.store.GetEndpoint(r.Context(), r.PathValue("id"))
	if err != nil {
		h.storeError(w, r, err, "failed to get webhook")
		return
	}
	secret, err := webhook.GenerateSecret()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate secret")
		return
	}
	ep.Secret = secret
	if err := h.store.UpdateEndpoint(r.Context(), ep); err != nil {
		h.storeError(w, r, err, "failed to update secret")
		return
	}
	writeJSON(w, http.StatusOK, h.response(ep, true))
}

// ListDeliveries handles GET /api/webhooks/{id}/deliveries
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	deliveries, err := h.store.ListDeliveries(r.Context(), r.PathValue("id"), 50)
	if err != nil {
		h.storeError(w, r, err, "failed to list deliveries")
		return
	}
	resp := make([]DeliveryResponse, 0, len(deliveries))
	for i := range deliveries {
		resp = append(resp, toDeliveryResponse(&deliveries[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListDeadLetters handles GET /api/webhooks/{id}/dead-letters
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	letters, err := h.store.ListDeadLetters(r.Context(), r.PathValue("id"))
	if err != nil {
		h.storeError(w, r, err, "failed to list dead letters")
		return
	}
	resp := make([]DeadLetterResponse, 0, len(letters))
	for i := range letters {
		resp = append(resp, toDeadLetterResponse(&letters[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReplayDeadLetter handles POST /api/webhooks/{id}/dead-letters/{dlid}/replay.
// The event is sent once more to the same endpoint.
func (h *Handler) ReplayDeadLetter(w http.ResponseWriter, r *http.Request) {
	ep, err := h.store.GetEndpoint(r.Context(), r.PathValue("id"))
	if err != nil {
		h.storeError(w, r, err, "failed to get webhook")
		return
	}
	dl, err := h.store.GetDeadLetter(r.Context(), ep.ID, r.PathValue("dlid"))
	if err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			writeError(w, http.StatusNotFound, "dead letter not found")
			return
		}
		h.storeError(w, r, err, "failed to get dead letter")
		return
	}
	if !dl.Replayable {
		writeError(w, http.StatusConflict, "dead letter already replayed")
		return
	}

	if err := h.deliverer.Replay(r.Context(), *ep, *dl); err != nil {
		writeError(w, http.StatusBadGateway, "replay failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "replayed"})
}

// Test handles POST /api/webhooks/{id}/test
func (h *Handler) Test(w http.ResponseWriter, r *http.Request) {
	ep, err := h.store.GetEndpoint(r.Context(), r.PathValue("id"))
	if err != nil {
		h.storeError(w, r, err, "failed to get webhook")
		return
	}

	data, _ := json.Marshal(events.WebhookTestData{
		WebhookID: ep.ID,
		Message:   "Teste de webhook do livescribe",
	})
	env := events.Envelope{
		ID:        xid.New().String(),
		Type:      events.WebhookTest,
		Source:    "livescribe",
		SessionID: ep.SessionID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	if err := h.deliverer.Deliver(r.Context(), *ep, env); err != nil {
		writeError(w, http.StatusBadGateway, "test delivery failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "delivered"})
}
