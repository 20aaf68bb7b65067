// Package storage persists sessions, dispatched tasks and generated
// recommendations. MemoryStore keeps everything in maps for tests and
// single-run sessions; BleveStore adds a persistent full-text index so
// earlier recommendations can be recalled as context for new requests.
package storage

import (
	"context"
	"time"
)

// TaskDocument is the persisted form of a dispatched task.
type TaskDocument struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	AgentID     string         `json:"agent_id"`
	Category    string         `json:"category"`
	Status      string         `json:"status"`
	Instruction string         `json:"instruction"`
	Result      map[string]any `json:"result,omitempty"`
	RetryCount  int            `json:"retry_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SessionDocument is the persisted form of a user session.
type SessionDocument struct {
	ID          string         `json:"id"`
	Profile     map[string]any `json:"profile"`
	Request     string         `json:"request"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt time.Time      `json:"completed_at,omitempty"`
}

// Recommendation is a single generated suggestion, indexed so similar
// past suggestions can be recalled for context.
type Recommendation struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RecommendationResult is a recommendation with its search score.
type RecommendationResult struct {
	Recommendation
	Score float64 `json:"score"`
}

// Store is the persistence interface. All writes from the task
// registry are best-effort; callers log and continue on error.
type Store interface {
	SaveTask(ctx context.Context, doc TaskDocument) error
	GetTask(ctx context.Context, id string) (*TaskDocument, error)
	UpdateTask(ctx context.Context, doc TaskDocument) error
	TasksBySession(ctx context.Context, sessionID string) ([]TaskDocument, error)

	SaveSession(ctx context.Context, doc SessionDocument) error
	GetSession(ctx context.Context, id string) (*SessionDocument, error)
	CompleteSession(ctx context.Context, id string) error

	SaveRecommendation(ctx context.Context, rec Recommendation) error
	SearchSimilar(ctx context.Context, query string, limit int) ([]RecommendationResult, error)

	Close() error
}
