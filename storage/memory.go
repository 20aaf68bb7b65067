package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and single-run sessions.
type MemoryStore struct {
	mu              sync.RWMutex
	tasks           map[string]TaskDocument
	sessions        map[string]SessionDocument
	recommendations map[string]Recommendation
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:           make(map[string]TaskDocument),
		sessions:        make(map[string]SessionDocument),
		recommendations: make(map[string]Recommendation),
	}
}

// SaveTask stores a task document.
func (s *MemoryStore) SaveTask(ctx context.Context, doc TaskDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("task id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[doc.ID] = doc
	return nil
}

// GetTask returns the task by id, or nil when absent.
func (s *MemoryStore) GetTask(ctx context.Context, id string) (*TaskDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

// UpdateTask overwrites an existing task document.
func (s *MemoryStore) UpdateTask(ctx context.Context, doc TaskDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[doc.ID]; !ok {
		return fmt.Errorf("task not found: %s", doc.ID)
	}
	s.tasks[doc.ID] = doc
	return nil
}

// TasksBySession returns the session's tasks ordered by creation time.
func (s *MemoryStore) TasksBySession(ctx context.Context, sessionID string) ([]TaskDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []TaskDocument
	for _, doc := range s.tasks {
		if doc.SessionID == sessionID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// SaveSession stores a session document.
func (s *MemoryStore) SaveSession(ctx context.Context, doc SessionDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[doc.ID] = doc
	return nil
}

// GetSession returns the session by id, or nil when absent.
func (s *MemoryStore) GetSession(ctx context.Context, id string) (*SessionDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

// CompleteSession stamps the session's completion time.
func (s *MemoryStore) CompleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	doc.CompletedAt = time.Now()
	s.sessions[id] = doc
	return nil
}

// SaveRecommendation stores a recommendation.
func (s *MemoryStore) SaveRecommendation(ctx context.Context, rec Recommendation) error {
	if rec.ID == "" {
		return fmt.Errorf("recommendation id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recommendations[rec.ID] = rec
	return nil
}

// SearchSimilar scores recommendations by the fraction of query words
// their content contains. Crude next to the Bleve store, but enough
// for tests and offline runs.
func (s *MemoryStore) SearchSimilar(ctx context.Context, query string, limit int) ([]RecommendationResult, error) {
	if limit <= 0 {
		limit = 5
	}
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []RecommendationResult
	for _, rec := range s.recommendations {
		content := strings.ToLower(rec.Content + " " + rec.Category)
		matched := 0
		for _, w := range words {
			if strings.Contains(content, w) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		results = append(results, RecommendationResult{
			Recommendation: rec,
			Score:          float64(matched) / float64(len(words)),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
