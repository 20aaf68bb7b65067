package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		msg  string
		want Kind
	}{
		{"request timeout after 30s", KindTimeout},
		{"operation timed out", KindTimeout},
		{"context deadline exceeded", KindTimeout},
		{"tool execution failed", KindToolFailure},
		{"llm invocation failed", KindModelFailure},
		{"model not connected", KindModelFailure},
		{"network unreachable", KindNetwork},
		{"connection refused", KindNetwork},
		{"validation failed for category top", KindValidation},
		{"something else entirely", KindUnknown},
	}

	for _, tt := range tests {
		got := Classify(stderrors.New(tt.msg))
		if got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.msg, got, tt.want)
		}
	}
}

func TestClassifyNil(t *testing.T) {
	if got := Classify(nil); got != KindUnknown {
		t.Errorf("Classify(nil) = %s, want %s", got, KindUnknown)
	}
}

func TestClassifyStructuredError(t *testing.T) {
	// An explicit kind wins over the text heuristic.
	err := New(KindValidation, "request timeout")
	if got := Classify(err); got != KindValidation {
		t.Errorf("Classify = %s, want %s", got, KindValidation)
	}
}

func TestKindRetryable(t *testing.T) {
	retryable := []Kind{KindTimeout, KindNetwork, KindToolFailure, KindModelFailure}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("%s should be retryable by default", k)
		}
	}
	for _, k := range []Kind{KindValidation, KindUnknown} {
		if k.Retryable() {
			t.Errorf("%s should not be retryable by default", k)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(KindModelFailure, "invoke failed", cause, WithTaskID("t-1"))

	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.TaskID() != "t-1" {
		t.Errorf("TaskID = %q, want t-1", err.TaskID())
	}
	if err.Error() != "invoke failed: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestRetryableOverride(t *testing.T) {
	err := New(KindValidation, "bad payload", WithRetryable(true))
	if !err.Retryable() {
		t.Error("explicit override should make validation retryable")
	}

	err = New(KindTimeout, "slow", WithRetryable(false))
	if err.Retryable() {
		t.Error("explicit override should make timeout non-retryable")
	}
}

func TestKindOfWrapped(t *testing.T) {
	inner := New(KindNetwork, "connect")
	wrapped := fmt.Errorf("dispatch: %w", inner)

	if got := KindOf(wrapped); got != KindNetwork {
		t.Errorf("KindOf = %s, want %s", got, KindNetwork)
	}
	if !IsRetryable(wrapped) {
		t.Error("wrapped network error should be retryable")
	}
}
