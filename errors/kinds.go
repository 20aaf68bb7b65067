package errors

import "strings"

// Kind classifies a failure for retry and fallback decisions.
type Kind string

// Failure kinds understood by the retry handler.
const (
	// KindTimeout indicates an operation exceeded its deadline.
	KindTimeout Kind = "timeout"

	// KindToolFailure indicates a tool invocation failed.
	KindToolFailure Kind = "tool_failed"

	// KindModelFailure indicates a completion service call failed.
	KindModelFailure Kind = "model_failed"

	// KindNetwork indicates a connectivity problem.
	KindNetwork Kind = "network"

	// KindValidation indicates malformed or rejected input/output.
	KindValidation Kind = "validation"

	// KindUnknown is the fallback for unclassifiable failures.
	KindUnknown Kind = "unknown"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Retryable returns true if failures of this kind may succeed on retry.
func (k Kind) Retryable() bool {
	switch k {
	case KindTimeout, KindNetwork, KindToolFailure, KindModelFailure:
		return true
	default:
		return false
	}
}

// DefaultRetryable is the default allow-list used by the retry handler.
var DefaultRetryable = []Kind{
	KindTimeout,
	KindNetwork,
	KindToolFailure,
	KindModelFailure,
}

// Classify assigns a Kind by substring inspection of the error text.
// This is an explicit heuristic: error messages from completion
// services and tools are free text, so classification checks markers
// in a fixed order. A *Error with an explicit kind is returned as-is.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if e, ok := err.(*Error); ok && e.kind != "" {
		return e.kind
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "timed out"),
		strings.Contains(msg, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(msg, "tool"):
		return KindToolFailure
	case strings.Contains(msg, "llm"),
		strings.Contains(msg, "model"),
		strings.Contains(msg, "completion"):
		return KindModelFailure
	case strings.Contains(msg, "network"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "refused"):
		return KindNetwork
	case strings.Contains(msg, "validation"):
		return KindValidation
	default:
		return KindUnknown
	}
}
