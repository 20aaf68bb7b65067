package protocol

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestSendReceiveOrder(t *testing.T) {
	f := NewFabric(DefaultConfig(), nil)

	for i := 0; i < 5; i++ {
		env := NewEnvelope(MethodTask, "leader", "worker", fmt.Sprintf("task-%d", i), "s1", nil)
		f.Send("worker", env)
	}

	for i := 0; i < 5; i++ {
		env, ok := f.Receive("worker", time.Second)
		if !ok {
			t.Fatalf("receive %d timed out", i)
		}
		want := fmt.Sprintf("task-%d", i)
		if env.TaskID != want {
			t.Errorf("out of order: got %q, want %q", env.TaskID, want)
		}
	}
}

func TestDuplicateDelivery(t *testing.T) {
	f := NewFabric(DefaultConfig(), nil)

	env := NewEnvelope(MethodTask, "leader", "worker", "t1", "s1", nil)
	f.Send("worker", env)
	f.Send("worker", env)

	if _, ok := f.Receive("worker", time.Second); !ok {
		t.Fatal("first delivery missing")
	}
	if _, ok := f.Receive("worker", 50*time.Millisecond); ok {
		t.Error("duplicate message id delivered twice")
	}
}

func TestDuplicateAcrossRecipients(t *testing.T) {
	f := NewFabric(DefaultConfig(), nil)

	env := NewEnvelope(MethodHeartbeat, "leader", "", "", "s1", nil)
	f.Broadcast([]string{"a", "b"}, env)

	for _, recipient := range []string{"a", "b"} {
		if _, ok := f.Receive(recipient, time.Second); !ok {
			t.Errorf("broadcast not delivered to %s", recipient)
		}
	}
}

func TestReceiveTimeout(t *testing.T) {
	f := NewFabric(DefaultConfig(), nil)

	start := time.Now()
	env, ok := f.Receive("nobody", 50*time.Millisecond)
	if ok || env != nil {
		t.Fatalf("expected timeout, got %+v", env)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Error("returned before timeout elapsed")
	}
}

func TestMailboxFullDeadLetters(t *testing.T) {
	f := NewFabric(Config{BufferSize: 2, MaxRetries: 3, HeartbeatTimeout: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		env := NewEnvelope(MethodTask, "leader", "slow", fmt.Sprintf("t%d", i), "s1", nil)
		f.Send("slow", env)
	}

	entries := f.DeadLetters("slow")
	if len(entries) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(entries))
	}
	if entries[0].Error != errMailboxFull {
		t.Errorf("error = %q, want %q", entries[0].Error, errMailboxFull)
	}
	if entries[0].Envelope.TaskID != "t2" {
		t.Errorf("wrong envelope dead-lettered: %s", entries[0].Envelope.TaskID)
	}
}

func TestDeadLetterSnapshotsRetryCount(t *testing.T) {
	f := NewFabric(DefaultConfig(), nil)

	env := NewEnvelope(MethodTask, "leader", "worker", "t1", "s1", nil)
	f.IncrementRetry(env.MessageID)
	f.IncrementRetry(env.MessageID)
	f.ToDeadLetter("worker", env, "worker crashed")

	entries := f.DeadLetters("worker")
	if len(entries) != 1 {
		t.Fatalf("dead letters = %d, want 1", len(entries))
	}
	if entries[0].RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", entries[0].RetryCount)
	}

	// Later retries must not mutate the recorded entry.
	f.IncrementRetry(env.MessageID)
	if got := f.DeadLetters("worker")[0].RetryCount; got != 2 {
		t.Errorf("entry mutated after snapshot: %d", got)
	}
}

func TestRetryCounters(t *testing.T) {
	f := NewFabric(Config{MaxRetries: 2}, nil)

	id := "msg-1"
	if !f.ShouldRetry(id) {
		t.Fatal("fresh message should be retryable")
	}
	f.IncrementRetry(id)
	if !f.ShouldRetry(id) {
		t.Fatal("one attempt under limit should be retryable")
	}
	f.IncrementRetry(id)
	if f.ShouldRetry(id) {
		t.Fatal("at limit should not be retryable")
	}
	f.ResetRetry(id)
	if !f.ShouldRetry(id) {
		t.Fatal("reset should restore retry budget")
	}
}

func TestHeartbeatLiveness(t *testing.T) {
	f := NewFabric(DefaultConfig(), nil)

	if !f.IsAlive("never-seen", time.Minute) {
		t.Error("agent with no heartbeat should be optimistically alive")
	}

	f.UpdateHeartbeat("worker")
	if !f.IsAlive("worker", time.Minute) {
		t.Error("recent heartbeat should be alive")
	}

	time.Sleep(20 * time.Millisecond)
	if f.IsAlive("worker", 10*time.Millisecond) {
		t.Error("stale heartbeat should be dead")
	}
}

func TestConcurrentSenders(t *testing.T) {
	f := NewFabric(Config{BufferSize: 1024}, nil)

	const senders = 8
	const perSender = 50

	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				env := NewEnvelope(MethodProgress, fmt.Sprintf("w%d", s), "leader", "t1", "s1", nil)
				f.Send("leader", env)
			}
		}(s)
	}
	wg.Wait()

	got := 0
	for {
		if _, ok := f.Receive("leader", 20*time.Millisecond); !ok {
			break
		}
		got++
	}
	if got != senders*perSender {
		t.Errorf("delivered %d, want %d", got, senders*perSender)
	}
}
