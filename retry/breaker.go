package retry

import (
	"sync"
	"time"

	"github.com/Timwood0x10/StyleAgent/errors"
	"github.com/Timwood0x10/StyleAgent/logging"
)

// State is the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens
	// the breaker. Default: 5
	FailureThreshold int

	// CoolDown is how long the breaker stays open before admitting
	// probes. Default: 30 seconds
	CoolDown time.Duration
}

// DefaultBreakerConfig returns configuration with sensible defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		CoolDown:         30 * time.Second,
	}
}

// CircuitBreaker guards a dependency with closed/open/half-open
// states. The open-to-half-open transition happens lazily inside the
// next Allow call after the cool-down, not on a background timer.
type CircuitBreaker struct {
	cfg    BreakerConfig
	name   string
	logger *logging.Logger

	// now is replaceable in tests.
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

// NewCircuitBreaker creates a breaker for the named dependency.
func NewCircuitBreaker(name string, cfg BreakerConfig, logger *logging.Logger) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = DefaultBreakerConfig().CoolDown
	}
	if logger == nil {
		logger = logging.New()
	}
	return &CircuitBreaker{
		cfg:    cfg,
		name:   name,
		logger: logger.WithComponent("breaker"),
		now:    time.Now,
		state:  StateClosed,
	}
}

// State returns the breaker's current state, applying the lazy
// open-to-half-open decay first.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.decayLocked()
	return cb.state
}

// Allow reports whether a call may proceed. While half-open every
// caller is admitted; there is no single-probe limiting.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.decayLocked()
	return cb.state != StateOpen
}

// Call runs fn under the breaker. When the breaker is open it returns
// a model-failure error without invoking fn.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.Allow() {
		return errors.New(errors.KindModelFailure, "circuit breaker open for "+cb.name)
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// RecordSuccess resets the failure count and closes the breaker from
// any state.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateClosed {
		cb.logger.Info("breaker_closed", map[string]interface{}{"name": cb.name})
	}
	cb.state = StateClosed
	cb.failures = 0
}

// RecordFailure bumps the failure count; at the threshold, or on any
// failure while half-open, the breaker opens.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.decayLocked()

	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
		if cb.state != StateOpen {
			cb.logger.Warn("breaker_opened", map[string]interface{}{
				"name":     cb.name,
				"failures": cb.failures,
			})
		}
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
}

func (cb *CircuitBreaker) decayLocked() {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.CoolDown {
		cb.state = StateHalfOpen
		cb.logger.Info("breaker_half_open", map[string]interface{}{"name": cb.name})
	}
}
