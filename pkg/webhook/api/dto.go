package api

import (
	"time"

	"github.com/livescribe/livescribe/pkg/events"
	"github.com/livescribe/livescribe/pkg/webhook"
)

// CreateWebhookRequest is the request body for creating a webhook.
type CreateWebhookRequest struct {
	Name        string             `json:"name"`
	URL         string             `json:"url"`
	EventTypes  []events.EventType `json:"eventTypes"`
	SessionID   string             `json:"sessionId,omitempty"`
	Description string             `json:"description,omitempty"`
}

// UpdateWebhookRequest is the request body for updating a webhook.
type UpdateWebhookRequest struct {
	Name        *string             `json:"name,omitempty"`
	URL         *string             `json:"url,omitempty"`
	EventTypes  *[]events.EventType `json:"eventTypes,omitempty"`
	SessionID   *string             `json:"sessionId,omitempty"`
	IsActive    *bool               `json:"isActive,omitempty"`
	Description *string             `json:"description,omitempty"`
}

// WebhookResponse is the API response for a webhook endpoint.
type WebhookResponse struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	URL          string             `json:"url"`
	Secret       string             `json:"secret,omitempty"` // only on create and rotate
	EventTypes   []events.EventType `json:"eventTypes"`
	SessionID    string             `json:"sessionId,omitempty"`
	IsActive     bool               `json:"isActive"`
	Description  string             `json:"description,omitempty"`
	FailureCount int                `json:"failureCount"`
	CircuitState string             `json:"circuitState"`
	CreatedAt    string             `json:"createdAt"`
	ModifiedAt   string             `json:"modifiedAt"`
}

// DeliveryResponse is the API response for a delivery attempt.
type DeliveryResponse struct {
	ID           string `json:"id"`
	EventID      string `json:"eventId"`
	EventType    string `json:"eventType"`
	SessionID    string `json:"sessionId,omitempty"`
	ResponseCode int    `json:"responseCode"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	DurationMs   int64  `json:"durationMs"`
	Replay       bool   `json:"replay"`
	CreatedAt    string `json:"createdAt"`
}

// DeadLetterResponse is the API response for a dead letter.
type DeadLetterResponse struct {
	ID        string `json:"id"`
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
	LastError string `json:"lastError"`
	Attempts  int    `json:"attempts"`
	CreatedAt string `json:"createdAt"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func toWebhookResponse(ep *webhook.Endpoint, circuit string, includeSecret bool) WebhookResponse {
	types := []events.EventType(ep.EventTypes)
	if types == nil {
		types = []events.EventType{}
	}
	resp := WebhookResponse{
		ID:           ep.ID,
		Name:         ep.Name,
		URL:          ep.URL,
		EventTypes:   types,
		SessionID:    ep.SessionID,
		IsActive:     ep.IsActive,
		Description:  ep.Description,
		FailureCount: ep.FailureCount,
		CircuitState: circuit,
		CreatedAt:    ep.CreatedAt.Format(time.RFC3339),
		ModifiedAt:   ep.ModifiedAt.Format(time.RFC3339),
	}
	if includeSecret {
		resp.Secret = ep.Secret
	}
	return resp
}

func toDeliveryResponse(d *webhook.Delivery) DeliveryResponse {
	return DeliveryResponse{
		ID:           d.ID,
		EventID:      d.EventID,
		EventType:    d.EventType,
		SessionID:    d.SessionID,
		ResponseCode: d.ResponseCode,
		Status:       d.Status,
		Error:        d.Error,
		DurationMs:   d.DurationMs,
		Replay:       d.Replay,
		CreatedAt:    d.CreatedAt.Format(time.RFC3339),
	}
}

func toDeadLetterResponse(dl *webhook.DeadLetter) DeadLetterResponse {
	return DeadLetterResponse{
		ID:        dl.ID,
		EventID:   dl.EventID,
		EventType: dl.EventType,
		LastError: dl.LastError,
		Attempts:  dl.Attempts,
		CreatedAt: dl.CreatedAt.Format(time.RFC3339),
	}
}
