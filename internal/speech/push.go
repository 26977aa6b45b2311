package speech

import (
	"context"
	"errors"
	"sync"

	"github.com/livescribe/livescribe/pkg/recognition"
)

// ErrNotRunning is returned when input arrives for a recognizer that has
// not been started.
var ErrNotRunning = errors.New("recognizer is not running")

// ErrBusy is returned when the session cannot keep up with pushed events.
var ErrBusy = errors.New("recognizer busy")

// Push is a recognizer whose events are produced elsewhere, typically by a
// client-side recognizer posting results over HTTP.
type Push struct {
	mu sync.Mutex
	ch chan recognition.Event
}

// NewPush creates a push recognizer.
func NewPush() *Push {
	return &Push{}
}

func (p *Push) Start(_ context.Context, _ recognition.Options) (<-chan recognition.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		close(p.ch)
	}
	p.ch = make(chan recognition.Event, 32)
	return p.ch, nil
}

func (p *Push) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		close(p.ch)
		p.ch = nil
	}
	return nil
}

// Push delivers one recognizer event to the running session. It never
// blocks; a full buffer reports ErrBusy.
func (p *Push) Push(ctx context.Context, ev recognition.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return ErrNotRunning
	}
	select {
	case p.ch <- ev:
		return nil
	default:
		return ErrBusy
	}
}
