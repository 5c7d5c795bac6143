package risk

import (
	"errors"
	"testing"
)

func TestCircuitBreaker_ConsecutiveErrors(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxConsecutiveErrors: 3})
	for i := 0; i < 2; i++ {
		cb.OnError()
	}
	if err := cb.AllowTrading(); err != nil {
		t.Fatalf("AllowTrading after 2 errors: %v", err)
	}
	cb.OnSuccess()
	for i := 0; i < 3; i++ {
		cb.OnError()
	}
	if err := cb.AllowTrading(); !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Fatalf("AllowTrading after 3 errors got=%v want=%v", err, ErrCircuitBreakerOpen)
	}
	// stays open after success until resumed
	cb.OnSuccess()
	if err := cb.AllowTrading(); !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Fatalf("breaker closed without Resume")
	}
	cb.Resume()
	if err := cb.AllowTrading(); err != nil {
		t.Fatalf("AllowTrading after Resume: %v", err)
	}
}

func TestCircuitBreaker_ManualHalt(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	cb.Halt()
	st := cb.State()
	if !st.Halted || !st.ManualHalt {
		t.Fatalf("state after Halt: %+v", st)
	}
	if err := cb.AllowTrading(); !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Fatalf("AllowTrading while halted got=%v", err)
	}
	cb.Resume()
	if cb.State().Halted {
		t.Fatalf("still halted after Resume")
	}
}

func TestCircuitBreaker_NilSafe(t *testing.T) {
	var cb *CircuitBreaker
	cb.OnError()
	cb.Halt()
	if err := cb.AllowTrading(); err != nil {
		t.Fatalf("nil breaker should allow trading: %v", err)
	}
}
