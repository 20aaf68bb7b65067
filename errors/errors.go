package errors

import (
	"errors"
	"fmt"
	"time"
)

// Error is a structured error with a failure kind and correlation ids.
type Error struct {
	kind      Kind
	message   string
	cause     error
	agentID   string
	taskID    string
	retryable *bool // nil means use the kind's default
	timestamp time.Time
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Kind returns the failure kind.
func (e *Error) Kind() Kind {
	return e.kind
}

// Retryable returns whether this error is retryable.
func (e *Error) Retryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	return e.kind.Retryable()
}

// AgentID returns the source agent id, if set.
func (e *Error) AgentID() string {
	return e.agentID
}

// TaskID returns the related task id, if set.
func (e *Error) TaskID() string {
	return e.taskID
}

// Timestamp returns when the error occurred.
func (e *Error) Timestamp() time.Time {
	return e.timestamp
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Option is a functional option for configuring an Error.
type Option func(*Error)

// WithAgentID sets the source agent id.
func WithAgentID(id string) Option {
	return func(e *Error) {
		e.agentID = id
	}
}

// WithTaskID sets the related task id.
func WithTaskID(id string) Option {
	return func(e *Error) {
		e.taskID = id
	}
}

// WithRetryable explicitly overrides the kind's retry default.
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// New creates a new Error with the given kind and message.
func New(kind Kind, message string, opts ...Option) *Error {
	e := &Error{
		kind:      kind,
		message:   message,
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf creates a new Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap creates a new Error wrapping a cause.
func Wrap(kind Kind, message string, cause error, opts ...Option) *Error {
	opts = append(opts, WithCause(cause))
	return New(kind, message, opts...)
}

// KindOf extracts the kind from an error chain, classifying plain
// errors by their text.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return Classify(err)
}

// IsRetryable reports whether the error may succeed on retry, using
// the structured kind when present and Classify otherwise.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return Classify(err).Retryable()
}
