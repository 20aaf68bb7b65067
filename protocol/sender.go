package protocol

import (
	"time"

	"github.com/Timwood0x10/StyleAgent/logging"
)

// Sender is a typed facade over the fabric for outgoing envelopes.
type Sender struct {
	fabric   *Fabric
	budgeter *Budgeter
	agentID  string
	logger   *logging.Logger
}

// NewSender creates a sender acting as agentID.
func NewSender(fabric *Fabric, budgeter *Budgeter, agentID string, logger *logging.Logger) *Sender {
	if budgeter == nil {
		budgeter = NewBudgeter(0)
	}
	if logger == nil {
		logger = logging.New()
	}
	return &Sender{
		fabric:   fabric,
		budgeter: budgeter,
		agentID:  agentID,
		logger:   logger.WithComponent("sender"),
	}
}

// SendTask dispatches a task envelope. The compact instruction is
// built from the payload's facts under the target's token limit and
// injected into the payload before sending.
func (s *Sender) SendTask(target, taskID, sessionID string, payload map[string]any, context string) *Envelope {
	if payload == nil {
		payload = make(map[string]any)
	}

	limit := s.budgeter.Limit(target)
	facts := FactsFromPayload(asMap(payload["user_info"]))
	task := TaskFacts{
		Category:    stringField(payload, KeyCategory),
		Instruction: stringField(payload, KeyInstruction),
	}
	payload[KeyCompactInstruction] = s.budgeter.BuildInstruction(facts, task, context, limit)

	env := NewEnvelope(MethodTask, s.agentID, target, taskID, sessionID, payload)
	env.TokenLimit = limit
	s.fabric.Send(target, env)
	s.logger.Sent(MethodTask.String(), target, taskID)
	return env
}

// SendResult reports a terminal task outcome.
func (s *Sender) SendResult(target, taskID, sessionID string, result map[string]any, status string) *Envelope {
	env := NewEnvelope(MethodResult, s.agentID, target, taskID, sessionID, map[string]any{
		KeyResult: result,
		KeyStatus: status,
	})
	s.fabric.Send(target, env)
	s.logger.Sent(MethodResult.String(), target, taskID)
	return env
}

// SendProgress reports intermediate progress in [0, 1].
func (s *Sender) SendProgress(target, taskID, sessionID string, progress float64, message string) *Envelope {
	env := NewEnvelope(MethodProgress, s.agentID, target, taskID, sessionID, map[string]any{
		KeyProgress: progress,
		KeyMessage:  message,
	})
	s.fabric.Send(target, env)
	return env
}

// SendHeartbeat signals liveness to the target and records the
// sender's own heartbeat in the fabric.
func (s *Sender) SendHeartbeat(target, sessionID string) *Envelope {
	env := NewEnvelope(MethodHeartbeat, s.agentID, target, "", sessionID, map[string]any{
		"timestamp": time.Now().Format(time.RFC3339Nano),
	})
	s.fabric.UpdateHeartbeat(s.agentID)
	s.fabric.Send(target, env)
	return env
}

// SendAck acknowledges receipt of the given envelope to its sender.
func (s *Sender) SendAck(of *Envelope, status string) *Envelope {
	env := NewEnvelope(MethodAck, s.agentID, of.SenderID, of.TaskID, of.SessionID, map[string]any{
		KeyAckOf:  of.MessageID,
		KeyStatus: status,
	})
	s.fabric.Send(of.SenderID, env)
	return env
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}
