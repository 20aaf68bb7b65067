package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetLevel(LevelWarn)

	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")

	out := buf.String()
	if strings.Contains(out, "debug msg") || strings.Contains(out, "info msg") {
		t.Errorf("below-threshold messages were logged: %q", out)
	}
	if !strings.Contains(out, "warn msg") || !strings.Contains(out, "error msg") {
		t.Errorf("expected warn and error messages, got %q", out)
	}
}

func TestComponentAndSession(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)

	scoped := l.WithComponent("fabric").WithSessionID("sess-1")
	scoped.SetOutput(&buf)
	scoped.Info("hello")

	out := buf.String()
	if !strings.Contains(out, "[fabric]") {
		t.Errorf("expected component tag, got %q", out)
	}
	if !strings.Contains(out, "session=sess-1") {
		t.Errorf("expected session field, got %q", out)
	}
}

func TestFields(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)

	l.Info("dispatch", map[string]interface{}{"task": "t-9"})

	if !strings.Contains(buf.String(), "task=t-9") {
		t.Errorf("expected task field, got %q", buf.String())
	}
}
