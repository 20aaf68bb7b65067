package retry

import (
	"math"
	"sync"
	"time"

	"github.com/Timwood0x10/StyleAgent/errors"
	"github.com/Timwood0x10/StyleAgent/logging"
)

// Config holds retry handler configuration.
type Config struct {
	// MaxRetries is the number of re-attempts after the initial call.
	// Default: 3
	MaxRetries int

	// InitialDelay is the sleep before the first retry.
	// Default: 1 second
	InitialDelay time.Duration

	// BackoffFactor multiplies the delay for each further attempt.
	// Default: 2.0
	BackoffFactor float64

	// MaxDelay caps the computed delay.
	// Default: 30 seconds
	MaxDelay time.Duration

	// RetryableKinds is the allow-list of error kinds worth retrying.
	// Default: errors.DefaultRetryable
	RetryableKinds []errors.Kind
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialDelay:   time.Second,
		BackoffFactor:  2.0,
		MaxDelay:       30 * time.Second,
		RetryableKinds: errors.DefaultRetryable,
	}
}

// Handler runs operations with bounded retry and exponential backoff.
// Attempt counters are tracked per key so independent operations do
// not share budget.
type Handler struct {
	cfg       Config
	retryable map[errors.Kind]bool
	logger    *logging.Logger

	// sleep is replaceable in tests.
	sleep func(time.Duration)

	mu       sync.Mutex
	attempts map[string]int
}

// NewHandler creates a retry handler.
func NewHandler(cfg Config, logger *logging.Logger) *Handler {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultConfig().InitialDelay
	}
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = DefaultConfig().BackoffFactor
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultConfig().MaxDelay
	}
	if cfg.RetryableKinds == nil {
		cfg.RetryableKinds = errors.DefaultRetryable
	}
	if logger == nil {
		logger = logging.New()
	}
	retryable := make(map[errors.Kind]bool, len(cfg.RetryableKinds))
	for _, k := range cfg.RetryableKinds {
		retryable[k] = true
	}
	return &Handler{
		cfg:       cfg,
		retryable: retryable,
		logger:    logger.WithComponent("retry"),
		sleep:     time.Sleep,
		attempts:  make(map[string]int),
	}
}

// Do runs fn, retrying on retryable failures up to MaxRetries times
// after the initial call. The delay before attempt n is
// InitialDelay * BackoffFactor^(n-1), capped at MaxDelay, with no
// jitter; sleeping is synchronous on the caller's goroutine. On
// success the key's attempt counter is cleared; on exhaustion the
// last error is returned.
func (h *Handler) Do(key string, fn func() error) error {
	var lastErr error
	for {
		lastErr = fn()
		if lastErr == nil {
			h.Reset(key)
			return nil
		}

		kind := errors.Classify(lastErr)
		if !h.retryable[kind] {
			h.logger.Debug("not_retrying", map[string]interface{}{
				"key":  key,
				"kind": string(kind),
			})
			return lastErr
		}

		attempts := h.increment(key)
		if attempts > h.cfg.MaxRetries {
			h.logger.Warn("retries_exhausted", map[string]interface{}{
				"key":      key,
				"attempts": attempts,
				"error":    lastErr.Error(),
			})
			return lastErr
		}

		delay := h.Delay(attempts - 1)
		h.logger.Info("retrying", map[string]interface{}{
			"key":     key,
			"attempt": attempts,
			"max":     h.cfg.MaxRetries,
			"delay":   delay.String(),
			"error":   lastErr.Error(),
		})
		h.sleep(delay)
	}
}

// Delay computes the backoff for the given zero-based attempt index.
func (h *Handler) Delay(attempt int) time.Duration {
	d := time.Duration(float64(h.cfg.InitialDelay) * math.Pow(h.cfg.BackoffFactor, float64(attempt)))
	if d > h.cfg.MaxDelay {
		d = h.cfg.MaxDelay
	}
	return d
}

// Attempts returns the key's current attempt count.
func (h *Handler) Attempts(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts[key]
}

// Reset clears the key's attempt counter.
func (h *Handler) Reset(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.attempts, key)
}

func (h *Handler) increment(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts[key]++
	return h.attempts[key]
}
