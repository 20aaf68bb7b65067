package protocol

import (
	"time"

	"github.com/google/uuid"
)

// Method identifies the purpose of an envelope.
type Method string

// The complete method vocabulary. Demultiplexing switches over these
// values exhaustively; adding a method means updating every switch.
const (
	MethodTask          Method = "TASK"
	MethodResult        Method = "RESULT"
	MethodProgress      Method = "PROGRESS"
	MethodHeartbeat     Method = "HEARTBEAT"
	MethodAck           Method = "ACK"
	MethodTokenRequest  Method = "TOKEN_REQUEST"
	MethodTokenResponse Method = "TOKEN_RESPONSE"
)

// String returns the string representation of the method.
func (m Method) String() string {
	return string(m)
}

// Valid reports whether the method is part of the vocabulary.
func (m Method) Valid() bool {
	switch m {
	case MethodTask, MethodResult, MethodProgress, MethodHeartbeat,
		MethodAck, MethodTokenRequest, MethodTokenResponse:
		return true
	default:
		return false
	}
}

// Result status values carried in envelope payloads.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Well-known payload keys.
const (
	KeyResult             = "result"
	KeyStatus             = "status"
	KeyProgress           = "progress"
	KeyMessage            = "message"
	KeyCompactInstruction = "compact_instruction"
	KeyAckOf              = "ack_of"
	KeyCategory           = "category"
	KeyInstruction        = "instruction"
	KeyError              = "error"
)

// Envelope is the immutable unit of inter-agent communication.
// It is created once by a sender and never mutated afterwards.
type Envelope struct {
	Method     Method         `json:"method"`
	SenderID   string         `json:"sender_id"`
	TargetID   string         `json:"target_id"`
	TaskID     string         `json:"task_id"`
	SessionID  string         `json:"session_id"`
	Payload    map[string]any `json:"payload"`
	TokenLimit int            `json:"token_limit"`
	Timestamp  time.Time      `json:"timestamp"`
	MessageID  string         `json:"message_id"`
}

// NewEnvelope creates an envelope with a fresh message id and timestamp.
func NewEnvelope(method Method, sender, target, taskID, sessionID string, payload map[string]any) *Envelope {
	if payload == nil {
		payload = make(map[string]any)
	}
	return &Envelope{
		Method:    method,
		SenderID:  sender,
		TargetID:  target,
		TaskID:    taskID,
		SessionID: sessionID,
		Payload:   payload,
		Timestamp: time.Now(),
		MessageID: uuid.NewString(),
	}
}

// PayloadString returns a string payload field, or "" when absent or
// of a different type.
func (e *Envelope) PayloadString(key string) string {
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}

// PayloadFloat returns a numeric payload field, or 0 when absent.
func (e *Envelope) PayloadFloat(key string) float64 {
	switch v := e.Payload[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

// PayloadMap returns a nested map payload field, or nil when absent.
func (e *Envelope) PayloadMap(key string) map[string]any {
	if v, ok := e.Payload[key].(map[string]any); ok {
		return v
	}
	return nil
}
