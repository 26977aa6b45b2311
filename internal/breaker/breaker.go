// Package breaker implements the circuit breaker guarding calls to flaky
// remote services.
package breaker

import (
	"sync"
	"time"
)

// Breaker states.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

// Config holds the parameters for a circuit breaker.
type Config struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

// Breaker stops calling a failing service for a while. It never retries a
// call; it only decides whether the next one is attempted.
type Breaker struct {
	mu              sync.Mutex
	state           string
	failures        int
	probing         bool
	lastFailureTime time.Time
	config          Config
	now             func() time.Time
}

// New creates a breaker. A threshold <= 0 disables it.
func New(cfg Config) *Breaker {
	return &Breaker{
		state:  StateClosed,
		config: cfg,
		now:    time.Now,
	}
}

// Allow returns true if a call should be attempted. While half-open only one
// probe is let through at a time.
func (b *Breaker) Allow() bool {
	if b == nil || b.config.FailureThreshold <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailureTime) < b.config.ResetTimeout {
			return false
		}
		b.state = StateHalfOpen
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// Success records a successful call.
func (b *Breaker) Success() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	b.state = StateClosed
}

// Failure records a failed call.
func (b *Breaker) Failure() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailureTime = b.now()
	b.probing = false

	if b.state == StateHalfOpen || (b.config.FailureThreshold > 0 && b.failures >= b.config.FailureThreshold) {
		b.state = StateOpen
	}
}

// State returns the current breaker state.
func (b *Breaker) State() string {
	if b == nil {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
