package protocol

import (
	"sync"
	"time"

	"github.com/Timwood0x10/StyleAgent/logging"
)

// DeadLetterEntry is a snapshot of an envelope that failed processing,
// kept for inspection and never auto-replayed.
type DeadLetterEntry struct {
	Envelope   *Envelope
	Error      string
	Timestamp  time.Time
	RetryCount int
}

// Config holds fabric configuration.
type Config struct {
	// BufferSize is the capacity of each mailbox channel.
	// Default: 256
	BufferSize int

	// MaxRetries bounds the per-message retry counters.
	// Default: 3
	MaxRetries int

	// HeartbeatTimeout is the default liveness window for IsAlive.
	// Default: 60 seconds
	HeartbeatTimeout time.Duration
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:       256,
		MaxRetries:       3,
		HeartbeatTimeout: 60 * time.Second,
	}
}

// Fabric owns the per-agent mailboxes and the bookkeeping around them:
// dedup sets, heartbeats, dead letters and retry counters. It is safe
// for concurrent senders; each mailbox expects a single logical reader.
type Fabric struct {
	cfg    Config
	logger *logging.Logger

	mu          sync.Mutex
	mailboxes   map[string]chan *Envelope
	seen        map[string]map[string]struct{} // recipient -> delivered message ids
	heartbeats  map[string]time.Time
	deadLetters map[string][]DeadLetterEntry
	retries     map[string]int // message id -> attempts
}

// NewFabric creates a fabric with the given configuration.
func NewFabric(cfg Config, logger *logging.Logger) *Fabric {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = DefaultConfig().HeartbeatTimeout
	}
	if logger == nil {
		logger = logging.New()
	}
	return &Fabric{
		cfg:         cfg,
		logger:      logger.WithComponent("fabric"),
		mailboxes:   make(map[string]chan *Envelope),
		seen:        make(map[string]map[string]struct{}),
		heartbeats:  make(map[string]time.Time),
		deadLetters: make(map[string][]DeadLetterEntry),
		retries:     make(map[string]int),
	}
}

// mailbox returns the recipient's mailbox, creating it on first use.
func (f *Fabric) mailbox(agentID string) chan *Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mailboxLocked(agentID)
}

func (f *Fabric) mailboxLocked(agentID string) chan *Envelope {
	mb, ok := f.mailboxes[agentID]
	if !ok {
		mb = make(chan *Envelope, f.cfg.BufferSize)
		f.mailboxes[agentID] = mb
	}
	return mb
}

// Send enqueues an envelope into the recipient's mailbox. A message id
// already delivered to that recipient is dropped and logged, not
// reported as an error to the sender (idempotent send).
func (f *Fabric) Send(recipient string, env *Envelope) {
	f.mu.Lock()
	ids, ok := f.seen[recipient]
	if !ok {
		ids = make(map[string]struct{})
		f.seen[recipient] = ids
	}
	if _, dup := ids[env.MessageID]; dup {
		f.mu.Unlock()
		f.logger.DuplicateDropped(env.MessageID, recipient)
		return
	}
	ids[env.MessageID] = struct{}{}
	mb := f.mailboxLocked(recipient)
	f.mu.Unlock()

	select {
	case mb <- env:
	default:
		// Mailbox full: the recipient is not draining. Dead-letter
		// instead of blocking a sender that may hold other work.
		f.ToDeadLetter(recipient, env, errMailboxFull)
	}
}

const errMailboxFull = "mailbox full"

// Receive pops the next envelope for the recipient, waiting at most
// timeout. The second return value is false on expiry; an empty
// mailbox is not an error.
func (f *Fabric) Receive(recipient string, timeout time.Duration) (*Envelope, bool) {
	mb := f.mailbox(recipient)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case env := <-mb:
		return env, true
	case <-timer.C:
		return nil, false
	}
}

// Broadcast sends the same content to each recipient independently.
// Each recipient's dedup set is evaluated separately, so one delivery
// per recipient results even though the message id is shared.
func (f *Fabric) Broadcast(recipients []string, env *Envelope) {
	for _, r := range recipients {
		f.Send(r, env)
	}
}

// UpdateHeartbeat records a liveness signal for the agent.
func (f *Fabric) UpdateHeartbeat(agentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats[agentID] = time.Now()
}

// LastHeartbeat returns the last recorded heartbeat time for the
// agent and whether one was ever recorded.
func (f *Fabric) LastHeartbeat(agentID string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.heartbeats[agentID]
	return t, ok
}

// IsAlive reports whether the agent heartbeated within the timeout.
// An agent with no recorded heartbeat is optimistically alive.
func (f *Fabric) IsAlive(agentID string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = f.cfg.HeartbeatTimeout
	}
	last, ok := f.LastHeartbeat(agentID)
	if !ok {
		return true
	}
	return time.Since(last) < timeout
}

// ToDeadLetter appends the envelope to the recipient's dead-letter
// list together with the failure text and the retry count at failure.
func (f *Fabric) ToDeadLetter(recipient string, env *Envelope, errText string) {
	f.mu.Lock()
	entry := DeadLetterEntry{
		Envelope:   env,
		Error:      errText,
		Timestamp:  time.Now(),
		RetryCount: f.retries[env.MessageID],
	}
	f.deadLetters[recipient] = append(f.deadLetters[recipient], entry)
	f.mu.Unlock()

	f.logger.DeadLettered(recipient, env.TaskID, errText)
}

// DeadLetters returns a snapshot of the recipient's dead letters.
func (f *Fabric) DeadLetters(recipient string) []DeadLetterEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := f.deadLetters[recipient]
	out := make([]DeadLetterEntry, len(entries))
	copy(out, entries)
	return out
}

// AllDeadLetters returns a snapshot of every dead-letter list.
func (f *Fabric) AllDeadLetters() map[string][]DeadLetterEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]DeadLetterEntry, len(f.deadLetters))
	for recipient, entries := range f.deadLetters {
		cp := make([]DeadLetterEntry, len(entries))
		copy(cp, entries)
		out[recipient] = cp
	}
	return out
}

// ShouldRetry reports whether the message has retry budget left.
// The counter space is independent from dead-lettering.
func (f *Fabric) ShouldRetry(messageID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retries[messageID] < f.cfg.MaxRetries
}

// IncrementRetry bumps the message's retry counter and returns it.
func (f *Fabric) IncrementRetry(messageID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries[messageID]++
	return f.retries[messageID]
}

// ResetRetry clears the message's retry counter.
func (f *Fabric) ResetRetry(messageID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.retries, messageID)
}
