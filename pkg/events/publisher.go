package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pitabwire/frame/queue"
	"github.com/rs/xid"
)

// Publisher wraps frame's queue manager to emit typed events.
// It also supports local in-process subscriptions for event streaming.
// A Publisher without a queue manager only fans out locally.
type Publisher struct {
	queueMgr queue.Manager
	source   string
	queueRef string

	subMu       sync.RWMutex
	subscribers map[string]chan Envelope
}

// NewPublisher creates a publisher that emits events to the given queue reference.
func NewPublisher(queueMgr queue.Manager, source string, queueRef string) *Publisher {
	return &Publisher{
		queueMgr:    queueMgr,
		source:      source,
		queueRef:    queueRef,
		subscribers: make(map[string]chan Envelope),
	}
}

// NewLocalPublisher creates a publisher with in-process subscribers only.
func NewLocalPublisher(source string) *Publisher {
	return NewPublisher(nil, source, "")
}

// Emit publishes a typed event to the event bus and fans out to local subscribers.
func (p *Publisher) Emit(ctx context.Context, eventType EventType, sessionID string, data any) error {
	envelope, err := p.envelope(eventType, sessionID, data)
	if err != nil {
		return err
	}
	p.fanOut(envelope)

	if p.queueMgr == nil || p.queueRef == "" {
		return nil
	}
	return p.queueMgr.Publish(ctx, p.queueRef, envelope)
}

// EmitLocal fans an event out to local subscribers only. Used for high
// frequency events such as audio levels that have no value on the bus.
func (p *Publisher) EmitLocal(eventType EventType, sessionID string, data any) error {
	envelope, err := p.envelope(eventType, sessionID, data)
	if err != nil {
		return err
	}
	p.fanOut(envelope)
	return nil
}

func (p *Publisher) envelope(eventType EventType, sessionID string, data any) (Envelope, error) {
	envelope := Envelope{
		ID:        xid.New().String(),
		Type:      eventType,
		Source:    p.source,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	envelope.Data = raw
	return envelope, nil
}

// fanOut delivers to local subscribers without blocking.
func (p *Publisher) fanOut(envelope Envelope) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()
	for id, ch := range p.subscribers {
		select {
		case ch <- envelope:
		default:
			slog.Warn("event dropped: subscriber buffer full",
				slog.String("subscriber", id), slog.String("event_type", string(envelope.Type)))
		}
	}
}

// Subscribe creates a local in-process subscription for events.
// Returns a channel that receives Envelope values.
// The caller must call Unsubscribe with the same id to clean up.
func (p *Publisher) Subscribe(id string, bufSize int) <-chan Envelope {
	if bufSize <= 0 {
		bufSize = 64
	}
	ch := make(chan Envelope, bufSize)
	p.subMu.Lock()
	p.subscribers[id] = ch
	p.subMu.Unlock()
	return ch
}

// Unsubscribe removes a local subscription and closes its channel.
func (p *Publisher) Unsubscribe(id string) {
	p.subMu.Lock()
	if ch, ok := p.subscribers[id]; ok {
		close(ch)
		delete(p.subscribers, id)
	}
	p.subMu.Unlock()
}
