package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/livescribe/livescribe/pkg/events"
)

func TestEndpointWants(t *testing.T) {
	env := testEnvelope()
	tests := []struct {
		name string
		ep   Endpoint
		want bool
	}{
		{"all events", Endpoint{IsActive: true}, true},
		{"inactive", Endpoint{IsActive: false}, false},
		{"matching type", Endpoint{IsActive: true, EventTypes: EventTypes{events.TranscriptUpdated}}, true},
		{"other type", Endpoint{IsActive: true, EventTypes: EventTypes{events.LanguageDetected}}, false},
		{"same session", Endpoint{IsActive: true, SessionID: "sess-1"}, true},
		{"other session", Endpoint{IsActive: true, SessionID: "sess-2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ep.Wants(env); got != tt.want {
				t.Errorf("Wants = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubscriberRoutesToMatchingEndpoints(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	wanted := testEndpoint(ts.URL)
	other := testEndpoint(ts.URL)
	other.ID = "wh-2"
	other.EventTypes = EventTypes{events.SessionStarted}

	store := newMemStore(wanted, other)
	sub := &Subscriber{Store: store, Deliverer: newTestDeliverer(store)}

	msg, _ := json.Marshal(testEnvelope())
	if err := sub.Handle(t.Context(), nil, msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("deliveries = %d, want 1", n)
	}
}

func TestSubscriberRejectsMalformedMessage(t *testing.T) {
	sub := &Subscriber{Store: newMemStore(), Deliverer: newTestDeliverer(nil)}
	if err := sub.Handle(t.Context(), nil, []byte("{not json")); err == nil {
		t.Error("expected unmarshal error")
	}
}
