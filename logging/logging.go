// Package logging provides leveled key=value console logging.
// Components receive a scoped logger so every line carries the
// component name and, when available, the session id.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Logger provides structured logging to stdout.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	sessionID string
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		sessionID: l.sessionID,
	}
}

// WithSessionID returns a new logger with the given session id.
func (l *Logger) WithSessionID(sessionID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		sessionID: sessionID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		if l.sessionID != "" {
			fields[0]["session"] = l.sessionID
		}
		fieldStr = formatFields(fields[0])
	} else if l.sessionID != "" {
		fieldStr = " session=" + l.sessionID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Protocol event helpers ---
// Called by the fabric, sender and orchestrator so the wire traffic is
// visible in real time with a consistent vocabulary.

// Sent logs an envelope leaving a sender.
func (l *Logger) Sent(method, target, taskID string) {
	l.Debug("sent", map[string]interface{}{
		"method": method,
		"target": target,
		"task":   taskID,
	})
}

// Received logs an envelope arriving at a receiver.
func (l *Logger) Received(method, sender, taskID string) {
	l.Debug("received", map[string]interface{}{
		"method": method,
		"sender": sender,
		"task":   taskID,
	})
}

// DuplicateDropped logs a deduplicated envelope.
func (l *Logger) DuplicateDropped(messageID, recipient string) {
	l.Warn("duplicate_dropped", map[string]interface{}{
		"message_id": messageID,
		"recipient":  recipient,
	})
}

// DeadLettered logs an envelope moved to the dead-letter sink.
func (l *Logger) DeadLettered(recipient, taskID, reason string) {
	l.Error("dead_lettered", map[string]interface{}{
		"recipient": recipient,
		"task":      taskID,
		"reason":    reason,
	})
}

// TaskDispatched logs a task handed to a worker.
func (l *Logger) TaskDispatched(taskID, agentID, category string) {
	l.Info("task_dispatched", map[string]interface{}{
		"task":     taskID,
		"agent":    agentID,
		"category": category,
	})
}

// TaskCompleted logs a terminal task outcome.
func (l *Logger) TaskCompleted(taskID, agentID string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"task":     taskID,
		"agent":    agentID,
		"duration": duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("task_failed", fields)
	} else {
		l.Info("task_completed", fields)
	}
}
