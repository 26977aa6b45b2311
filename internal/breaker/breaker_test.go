package breaker

import (
	"testing"
	"time"
)

func TestBreakerTransitions(t *testing.T) {
	now := time.Unix(1000, 0)
	b := New(Config{FailureThreshold: 3, ResetTimeout: 10 * time.Second})
	b.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		b.Failure()
	}
	if b.State() != StateClosed || !b.Allow() {
		t.Fatal("breaker should stay closed below threshold")
	}

	b.Failure()
	if b.State() != StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}
	if b.Allow() {
		t.Fatal("open breaker should reject calls")
	}

	now = now.Add(11 * time.Second)
	if !b.Allow() {
		t.Fatal("breaker should allow a probe after the reset timeout")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %s, want half_open", b.State())
	}
	if b.Allow() {
		t.Fatal("only one probe may run while half-open")
	}

	b.Failure()
	if b.State() != StateOpen {
		t.Fatalf("failed probe: state = %s, want open", b.State())
	}

	now = now.Add(11 * time.Second)
	b.Allow()
	b.Success()
	if b.State() != StateClosed {
		t.Fatalf("state = %s, want closed", b.State())
	}
}

func TestBreakerDisabled(t *testing.T) {
	b := New(Config{})
	for i := 0; i < 10; i++ {
		b.Failure()
	}
	if !b.Allow() {
		t.Fatal("disabled breaker should always allow")
	}

	var nilBreaker *Breaker
	if !nilBreaker.Allow() || nilBreaker.State() != StateClosed {
		t.Fatal("nil breaker should behave as closed")
	}
}
