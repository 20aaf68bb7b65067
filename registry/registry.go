// Package registry tracks the lifecycle of dispatched tasks.
//
// # Overview
//
// The registry is the leader's authoritative view of every task it has
// handed out: who owns it, what state it is in, and how often it has
// been retried. Locking is two-level: a registry-wide mutex guards the
// record and lock tables, while a per-task mutex serializes state
// transitions on one task without blocking the rest. Writes through to
// the store are best-effort; a storage failure is logged and the
// in-memory record stays authoritative.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/Timwood0x10/StyleAgent/errors"
	"github.com/Timwood0x10/StyleAgent/logging"
	"github.com/Timwood0x10/StyleAgent/storage"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// TaskRecord is the registry's view of one task.
type TaskRecord struct {
	ID           string
	SessionID    string
	ParentTaskID string
	AgentID      string
	Title        string
	Category     string
	Instruction  string
	Status       Status
	Result       map[string]any
	Error        string
	RetryCount   int
	MaxRetries   int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  time.Time
}

// TaskRegistry tracks task records and their single-owner claims.
type TaskRegistry struct {
	store  storage.Store
	logger *logging.Logger

	mu    sync.Mutex
	tasks map[string]*TaskRecord
	locks map[string]*sync.Mutex
}

// NewTaskRegistry creates a registry. The store may be nil, in which
// case records live only in memory.
func NewTaskRegistry(store storage.Store, logger *logging.Logger) *TaskRegistry {
	if logger == nil {
		logger = logging.New()
	}
	return &TaskRegistry{
		store:  store,
		logger: logger.WithComponent("registry"),
		tasks:  make(map[string]*TaskRecord),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Register adds a new pending task.
func (r *TaskRegistry) Register(ctx context.Context, rec TaskRecord) error {
	if rec.ID == "" {
		return errors.New(errors.KindValidation, "task id is required")
	}
	now := time.Now()
	rec.Status = StatusPending
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.MaxRetries <= 0 {
		rec.MaxRetries = 3
	}

	r.mu.Lock()
	if _, exists := r.tasks[rec.ID]; exists {
		r.mu.Unlock()
		return errors.New(errors.KindValidation, "task already registered: "+rec.ID,
			errors.WithTaskID(rec.ID))
	}
	r.tasks[rec.ID] = &rec
	r.locks[rec.ID] = &sync.Mutex{}
	r.mu.Unlock()

	r.writeThrough(ctx, &rec)
	return nil
}

// taskLock fetches the record and its lock. The registry mutex only
// guards the table lookup; callers hold the per-task lock for the
// actual transition.
func (r *TaskRegistry) taskLock(taskID string) (*TaskRecord, *sync.Mutex, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tasks[taskID]
	if !ok {
		return nil, nil, false
	}
	return rec, r.locks[taskID], true
}

// Claim marks the task in-progress for the agent. Exactly one of any
// number of concurrent claimants succeeds; the task must be pending.
func (r *TaskRegistry) Claim(ctx context.Context, taskID, agentID string) bool {
	rec, lock, ok := r.taskLock(taskID)
	if !ok {
		return false
	}

	lock.Lock()
	if rec.Status != StatusPending {
		lock.Unlock()
		return false
	}
	rec.Status = StatusInProgress
	rec.AgentID = agentID
	rec.UpdatedAt = time.Now()
	snapshot := *rec
	lock.Unlock()

	r.logger.TaskDispatched(taskID, agentID, snapshot.Category)
	r.writeThrough(ctx, &snapshot)
	return true
}

// Complete records a successful result. Terminal states are sticky;
// completing a cancelled or failed task is refused.
func (r *TaskRegistry) Complete(ctx context.Context, taskID string, result map[string]any) error {
	return r.transition(ctx, taskID, func(rec *TaskRecord) error {
		if rec.Status.Terminal() {
			return errors.New(errors.KindValidation, "task already terminal",
				errors.WithTaskID(taskID))
		}
		rec.Status = StatusCompleted
		rec.Result = result
		rec.Error = ""
		return nil
	})
}

// Fail records a failure.
func (r *TaskRegistry) Fail(ctx context.Context, taskID, errText string) error {
	return r.transition(ctx, taskID, func(rec *TaskRecord) error {
		if rec.Status.Terminal() {
			return errors.New(errors.KindValidation, "task already terminal",
				errors.WithTaskID(taskID))
		}
		rec.Status = StatusFailed
		rec.Error = errText
		return nil
	})
}

// Cancel marks the task cancelled. Cancelling a completed task is
// refused; cancelling twice is a no-op.
func (r *TaskRegistry) Cancel(ctx context.Context, taskID string) error {
	return r.transition(ctx, taskID, func(rec *TaskRecord) error {
		switch rec.Status {
		case StatusCancelled:
			return nil
		case StatusCompleted:
			return errors.New(errors.KindValidation, "cannot cancel a completed task",
				errors.WithTaskID(taskID))
		}
		rec.Status = StatusCancelled
		return nil
	})
}

// Requeue returns a failed task to pending and bumps its retry count,
// clearing the previous owner and error. Refused once the record's
// retry budget is spent.
func (r *TaskRegistry) Requeue(ctx context.Context, taskID string) error {
	return r.transition(ctx, taskID, func(rec *TaskRecord) error {
		if rec.Status != StatusFailed {
			return errors.New(errors.KindValidation, "only failed tasks can be requeued",
				errors.WithTaskID(taskID))
		}
		if rec.RetryCount >= rec.MaxRetries {
			return errors.New(errors.KindValidation, "retry budget exhausted",
				errors.WithTaskID(taskID))
		}
		rec.Status = StatusPending
		rec.AgentID = ""
		rec.Error = ""
		rec.CompletedAt = time.Time{}
		rec.RetryCount++
		return nil
	})
}

func (r *TaskRegistry) transition(ctx context.Context, taskID string, fn func(*TaskRecord) error) error {
	rec, lock, ok := r.taskLock(taskID)
	if !ok {
		return errors.New(errors.KindValidation, "task not found: "+taskID)
	}

	lock.Lock()
	if err := fn(rec); err != nil {
		lock.Unlock()
		return err
	}
	rec.UpdatedAt = time.Now()
	if rec.Status.Terminal() && rec.CompletedAt.IsZero() {
		rec.CompletedAt = rec.UpdatedAt
	}
	snapshot := *rec
	lock.Unlock()

	if snapshot.Status == StatusCompleted {
		r.logger.TaskCompleted(taskID, snapshot.AgentID, snapshot.CompletedAt.Sub(snapshot.CreatedAt), nil)
	}
	r.writeThrough(ctx, &snapshot)
	return nil
}

// Get returns a copy of the record, or nil when unknown.
func (r *TaskRegistry) Get(taskID string) *TaskRecord {
	rec, lock, ok := r.taskLock(taskID)
	if !ok {
		return nil
	}
	lock.Lock()
	defer lock.Unlock()
	snapshot := *rec
	return &snapshot
}

// Pending returns a point-in-time snapshot of pending records,
// optionally filtered by category ("" matches all).
func (r *TaskRegistry) Pending(category string) []TaskRecord {
	return r.filter(func(rec *TaskRecord) bool {
		if rec.Status != StatusPending {
			return false
		}
		return category == "" || rec.Category == category
	})
}

// SessionTasks returns copies of the session's records.
func (r *TaskRegistry) SessionTasks(sessionID string) []TaskRecord {
	return r.filter(func(rec *TaskRecord) bool { return rec.SessionID == sessionID })
}

func (r *TaskRegistry) filter(keep func(*TaskRecord) bool) []TaskRecord {
	r.mu.Lock()
	ids := make([]string, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var out []TaskRecord
	for _, id := range ids {
		rec, lock, ok := r.taskLock(id)
		if !ok {
			continue
		}
		lock.Lock()
		if keep(rec) {
			out = append(out, *rec)
		}
		lock.Unlock()
	}
	return out
}

// writeThrough persists the record. Failures are logged and swallowed;
// the in-memory record stays authoritative.
func (r *TaskRegistry) writeThrough(ctx context.Context, rec *TaskRecord) {
	if r.store == nil {
		return
	}
	doc := storage.TaskDocument{
		ID:          rec.ID,
		SessionID:   rec.SessionID,
		AgentID:     rec.AgentID,
		Category:    rec.Category,
		Status:      string(rec.Status),
		Instruction: rec.Instruction,
		Result:      rec.Result,
		RetryCount:  rec.RetryCount,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
	err := r.store.SaveTask(ctx, doc)
	if err != nil {
		r.logger.Warn("write_through_failed", map[string]interface{}{
			"task":  rec.ID,
			"error": err.Error(),
		})
	}
}
