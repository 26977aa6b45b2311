// Package webhook delivers session events to registered HTTP endpoints.
// Each event is delivered once; a failed delivery is parked as a dead
// letter until someone replays it.
package webhook

import (
	"database/sql"
	"encoding/json"
	"slices"

	"github.com/pitabwire/frame/data"

	"github.com/livescribe/livescribe/pkg/events"
)

// Delivery statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Endpoint is a registered webhook subscription.
type Endpoint struct {
	data.BaseModel

	Name          string       `gorm:"type:varchar(255);not null"`
	URL           string       `gorm:"type:varchar(2048);not null"`
	Secret        string       `gorm:"type:varchar(512);not null"`
	EventTypes    EventTypes   `gorm:"type:jsonb;default:'[]'"`
	SessionID     string       `gorm:"type:varchar(50);index:idx_endpoint_session"`
	IsActive      bool         `gorm:"default:true"`
	Description   string       `gorm:"type:text"`
	FailureCount  int          `gorm:"default:0"`
	LastFailureAt sql.NullTime
}

func (Endpoint) TableName() string { return "webhook_endpoints" }

// Wants reports whether the endpoint subscribes to env. An endpoint without
// event types receives every type; one bound to a session only receives
// that session's events.
func (e *Endpoint) Wants(env events.Envelope) bool {
	if !e.IsActive {
		return false
	}
	if e.SessionID != "" && e.SessionID != env.SessionID {
		return false
	}
	return len(e.EventTypes) == 0 || e.EventTypes.Contains(env.Type)
}

// EventTypes is a JSON encoded list of event types.
type EventTypes []events.EventType

func (e EventTypes) Value() (interface{}, error) {
	if e == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(e)
}

func (e *EventTypes) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		*e = EventTypes{}
		return nil
	}
}

// Contains checks whether the list includes the given event type.
func (e EventTypes) Contains(et events.EventType) bool {
	return slices.Contains(e, et)
}

// Delivery records one attempt to deliver an event to an endpoint.
type Delivery struct {
	data.BaseModel

	WebhookID    string `gorm:"type:varchar(50);not null;index:idx_delivery_webhook"`
	EventID      string `gorm:"type:varchar(50);not null"`
	EventType    string `gorm:"type:varchar(100);not null"`
	SessionID    string `gorm:"type:varchar(50)"`
	ResponseCode int    `gorm:"default:0"`
	ResponseBody string `gorm:"type:text"`
	Status       string `gorm:"type:varchar(20);not null"`
	Error        string `gorm:"type:text"`
	DurationMs   int64  `gorm:"default:0"`
	Replay       bool   `gorm:"default:false"`
}

func (Delivery) TableName() string { return "webhook_deliveries" }

// DeadLetter holds an event whose delivery failed. It stays replayable until
// a replay succeeds.
type DeadLetter struct {
	data.BaseModel

	WebhookID  string `gorm:"type:varchar(50);not null;index:idx_dead_letter_webhook"`
	EventID    string `gorm:"type:varchar(50);not null"`
	EventType  string `gorm:"type:varchar(100);not null"`
	Payload    string `gorm:"type:text;not null"`
	LastError  string `gorm:"type:text"`
	Attempts   int    `gorm:"default:1"`
	Replayable bool   `gorm:"default:true"`
}

func (DeadLetter) TableName() string { return "webhook_dead_letters" }

// Envelope decodes the stored event.
func (d *DeadLetter) Envelope() (events.Envelope, error) {
	var env events.Envelope
	err := json.Unmarshal([]byte(d.Payload), &env)
	return env, err
}
