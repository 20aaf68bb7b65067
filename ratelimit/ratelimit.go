// Package ratelimit provides token-bucket rate limiting for model
// calls. Buckets refill continuously over their window and also act
// as semaphores: Release returns a token immediately so short bursts
// are not penalized by the time-based refill.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClosed is returned when the limiter has been closed.
	ErrClosed = errors.New("ratelimit: limiter closed")

	// ErrResourceUnknown is returned for resources with no bucket.
	ErrResourceUnknown = errors.New("ratelimit: unknown resource")
)

// Capacity describes the current state of a resource's bucket.
type Capacity struct {
	Resource  string
	Available int
	Total     int
	Window    time.Duration
	InFlight  int
}

// Limiter is the rate limiting interface.
type Limiter interface {
	// SetCapacity configures the rate limit for a resource.
	SetCapacity(resource string, capacity int, window time.Duration)

	// Acquire blocks until a token is available or the context ends.
	Acquire(ctx context.Context, resource string) error

	// TryAcquire attempts to acquire a token without blocking.
	TryAcquire(resource string) bool

	// Release returns a token to the resource bucket.
	Release(resource string)

	// GetCapacity returns current capacity info, or nil when unknown.
	GetCapacity(resource string) *Capacity

	// Close shuts down the limiter and wakes all waiters.
	Close() error
}
