package protocol

import (
	"time"

	"github.com/Timwood0x10/StyleAgent/logging"
)

// Receiver is a typed facade over the fabric for incoming envelopes.
// Receiving is a pure read; acknowledgment is the explicit MaybeAck
// step so callers decide when (and whether) an ack goes out.
type Receiver struct {
	fabric  *Fabric
	sender  *Sender
	agentID string
	logger  *logging.Logger
}

// NewReceiver creates a receiver acting as agentID. The sender is used
// only to emit acks.
func NewReceiver(fabric *Fabric, sender *Sender, agentID string, logger *logging.Logger) *Receiver {
	if logger == nil {
		logger = logging.New()
	}
	return &Receiver{
		fabric:  fabric,
		sender:  sender,
		agentID: agentID,
		logger:  logger.WithComponent("receiver"),
	}
}

// Receive pops the next envelope for this agent, waiting at most
// timeout. Each successful receive also refreshes the agent's own
// heartbeat: a draining agent is a live agent.
func (r *Receiver) Receive(timeout time.Duration) (*Envelope, bool) {
	env, ok := r.fabric.Receive(r.agentID, timeout)
	if !ok {
		return nil, false
	}
	r.fabric.UpdateHeartbeat(r.agentID)
	r.logger.Received(env.Method.String(), env.SenderID, env.TaskID)
	return env, true
}

// MaybeAck acknowledges the envelope when its method warrants one.
// Task, Result and Progress envelopes are acked; Heartbeat and token
// negotiation are fire-and-forget, and acking an Ack would cycle.
func (r *Receiver) MaybeAck(env *Envelope) {
	if env == nil || r.sender == nil {
		return
	}
	switch env.Method {
	case MethodTask, MethodResult, MethodProgress:
		r.sender.SendAck(env, StatusSuccess)
	}
}

// WaitForTask receives until a Task envelope arrives or the deadline
// expires. Non-task envelopes are acked where warranted and dropped;
// a worker waiting for work has no other consumer to hand them to.
func (r *Receiver) WaitForTask(timeout time.Duration) (*Envelope, bool) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false
		}
		env, ok := r.Receive(remaining)
		if !ok {
			return nil, false
		}
		if env.Method == MethodTask {
			return env, true
		}
		r.MaybeAck(env)
	}
}
