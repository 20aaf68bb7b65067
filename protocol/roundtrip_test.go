package protocol

import (
	"testing"
	"time"
)

func newPair(f *Fabric, id string) (*Sender, *Receiver) {
	s := NewSender(f, NewBudgeter(500), id, nil)
	return s, NewReceiver(f, s, id, nil)
}

func TestTaskRoundTrip(t *testing.T) {
	f := NewFabric(DefaultConfig(), nil)
	leaderSend, leaderRecv := newPair(f, "leader")
	workerSend, workerRecv := newPair(f, "agent_top")

	sent := leaderSend.SendTask("agent_top", "t1", "s1", map[string]any{
		KeyCategory:    "top",
		KeyInstruction: "casual friday",
		"user_info":    map[string]any{"name": "Alice", "age": 28},
	}, "")

	env, ok := workerRecv.Receive(time.Second)
	if !ok {
		t.Fatal("worker never received the task")
	}
	if env.Method != MethodTask || env.MessageID != sent.MessageID {
		t.Fatalf("wrong envelope: %+v", env)
	}
	instr := env.PayloadString(KeyCompactInstruction)
	if instr == "" {
		t.Fatal("compact instruction not injected")
	}
	if env.TokenLimit != 500 {
		t.Errorf("token limit = %d, want 500", env.TokenLimit)
	}

	workerRecv.MaybeAck(env)
	workerSend.SendResult("leader", "t1", "s1", map[string]any{"text": "navy blazer"}, StatusSuccess)

	ack, ok := leaderRecv.Receive(time.Second)
	if !ok || ack.Method != MethodAck {
		t.Fatalf("expected ack first, got %+v", ack)
	}
	if ack.PayloadString(KeyAckOf) != sent.MessageID {
		t.Errorf("ack references %q, want %q", ack.PayloadString(KeyAckOf), sent.MessageID)
	}

	res, ok := leaderRecv.Receive(time.Second)
	if !ok || res.Method != MethodResult {
		t.Fatalf("expected result, got %+v", res)
	}
	if res.PayloadString(KeyStatus) != StatusSuccess {
		t.Errorf("status = %q", res.PayloadString(KeyStatus))
	}
}

func TestMaybeAckNeverAcksAck(t *testing.T) {
	f := NewFabric(DefaultConfig(), nil)
	_, leaderRecv := newPair(f, "leader")
	workerSend, workerRecv := newPair(f, "worker")

	env := NewEnvelope(MethodAck, "leader", "worker", "t1", "s1", nil)
	f.Send("worker", env)

	got, ok := workerRecv.Receive(time.Second)
	if !ok {
		t.Fatal("ack not delivered")
	}
	workerRecv.MaybeAck(got)
	workerSend.SendHeartbeat("leader", "s1")

	// The leader's next envelope must be the heartbeat, not an ack of
	// an ack.
	next, ok := leaderRecv.Receive(time.Second)
	if !ok {
		t.Fatal("nothing delivered to leader")
	}
	if next.Method == MethodAck {
		t.Error("acked an ack")
	}
}

func TestWaitForTaskSkipsOtherMethods(t *testing.T) {
	f := NewFabric(DefaultConfig(), nil)
	_, workerRecv := newPair(f, "worker")

	f.Send("worker", NewEnvelope(MethodHeartbeat, "leader", "worker", "", "s1", nil))
	task := NewEnvelope(MethodTask, "leader", "worker", "t9", "s1", nil)
	f.Send("worker", task)

	env, ok := workerRecv.WaitForTask(time.Second)
	if !ok {
		t.Fatal("task never surfaced")
	}
	if env.MessageID != task.MessageID {
		t.Errorf("got %s, want the task envelope", env.Method)
	}
}

func TestWaitForTaskTimeout(t *testing.T) {
	f := NewFabric(DefaultConfig(), nil)
	_, workerRecv := newPair(f, "worker")

	start := time.Now()
	if _, ok := workerRecv.WaitForTask(50 * time.Millisecond); ok {
		t.Fatal("expected timeout")
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("waited far longer than the deadline")
	}
}

func TestReceiveRefreshesHeartbeat(t *testing.T) {
	f := NewFabric(DefaultConfig(), nil)
	_, workerRecv := newPair(f, "worker")

	if _, ok := f.LastHeartbeat("worker"); ok {
		t.Fatal("unexpected heartbeat before any receive")
	}
	f.Send("worker", NewEnvelope(MethodTask, "leader", "worker", "t1", "s1", nil))
	if _, ok := workerRecv.Receive(time.Second); !ok {
		t.Fatal("receive failed")
	}
	if _, ok := f.LastHeartbeat("worker"); !ok {
		t.Error("receive should record a heartbeat")
	}
}
