package retry

import (
	"testing"
	"time"

	"github.com/Timwood0x10/StyleAgent/errors"
)

func newTestBreaker(cfg BreakerConfig) (*CircuitBreaker, *time.Time) {
	cb := NewCircuitBreaker("model", cfg, nil)
	now := time.Now()
	cb.now = func() time.Time { return now }
	return cb, &now
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(BreakerConfig{FailureThreshold: 3, CoolDown: time.Minute})

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
		if cb.State() != StateClosed {
			t.Fatalf("opened after %d failures", i+1)
		}
	}
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatal("not open at threshold")
	}
	if cb.Allow() {
		t.Error("open breaker admitted a call")
	}
}

func TestBreakerLazyHalfOpen(t *testing.T) {
	cb, now := newTestBreaker(BreakerConfig{FailureThreshold: 1, CoolDown: time.Minute})

	cb.RecordFailure()
	if cb.Allow() {
		t.Fatal("expected open")
	}

	*now = now.Add(time.Minute)
	if !cb.Allow() {
		t.Fatal("cool-down elapsed, probe should be admitted")
	}
	if cb.State() != StateHalfOpen {
		t.Errorf("state = %s, want half-open", cb.State())
	}
}

func TestBreakerHalfOpenOutcomes(t *testing.T) {
	cb, now := newTestBreaker(BreakerConfig{FailureThreshold: 1, CoolDown: time.Minute})

	cb.RecordFailure()
	*now = now.Add(time.Minute)
	cb.Allow()
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatal("half-open failure should reopen")
	}

	*now = now.Add(time.Minute)
	cb.Allow()
	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Fatal("half-open success should close")
	}
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Error("failure count not reset on close")
	}
}

func TestBreakerCall(t *testing.T) {
	cb, _ := newTestBreaker(BreakerConfig{FailureThreshold: 1, CoolDown: time.Minute})

	boom := errors.New(errors.KindModelFailure, "completion failed")
	if err := cb.Call(func() error { return boom }); err != boom {
		t.Fatalf("got %v, want the callee's error", err)
	}

	called := false
	err := cb.Call(func() error { called = true; return nil })
	if called {
		t.Error("open breaker invoked the callee")
	}
	if errors.KindOf(err) != errors.KindModelFailure {
		t.Errorf("rejection kind = %s", errors.KindOf(err))
	}
}
