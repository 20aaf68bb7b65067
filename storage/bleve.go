package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// BleveStore is a persistent Store. Recommendations go into a Bleve
// index for BM25 search; tasks and sessions live in JSON files
// alongside the index.
type BleveStore struct {
	mu    sync.RWMutex
	index bleve.Index

	tasks    map[string]TaskDocument
	sessions map[string]SessionDocument

	tasksPath    string
	sessionsPath string
}

// BleveConfig configures the persistent store.
type BleveConfig struct {
	// BasePath is the directory for the index and data files.
	BasePath string
}

// NewBleveStore opens or creates a persistent store under BasePath.
func NewBleveStore(cfg BleveConfig) (*BleveStore, error) {
	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	indexPath := filepath.Join(cfg.BasePath, "recommendations.bleve")

	var index bleve.Index
	var err error
	if _, statErr := os.Stat(indexPath); os.IsNotExist(statErr) {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create bleve index: %w", err)
		}
	} else {
		index, err = bleve.Open(indexPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bleve index: %w", err)
		}
	}

	store := &BleveStore{
		index:        index,
		tasks:        make(map[string]TaskDocument),
		sessions:     make(map[string]SessionDocument),
		tasksPath:    filepath.Join(cfg.BasePath, "tasks.json"),
		sessionsPath: filepath.Join(cfg.BasePath, "sessions.json"),
	}

	if err := loadJSON(store.tasksPath, &store.tasks); err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	if err := loadJSON(store.sessionsPath, &store.sessions); err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	return store, nil
}

// buildIndexMapping creates the Bleve index mapping for recommendations.
func buildIndexMapping() mapping.IndexMapping {
	recMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	dateFieldMapping := bleve.NewDateTimeFieldMapping()

	recMapping.AddFieldMappingsAt("content", textFieldMapping)
	recMapping.AddFieldMappingsAt("category", keywordFieldMapping)
	recMapping.AddFieldMappingsAt("session_id", keywordFieldMapping)
	recMapping.AddFieldMappingsAt("created_at", dateFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = recMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// SaveTask stores a task document and flushes the task file.
func (s *BleveStore) SaveTask(ctx context.Context, doc TaskDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("task id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[doc.ID] = doc
	return saveJSON(s.tasksPath, s.tasks)
}

// GetTask returns the task by id, or nil when absent.
func (s *BleveStore) GetTask(ctx context.Context, id string) (*TaskDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

// UpdateTask overwrites an existing task document.
func (s *BleveStore) UpdateTask(ctx context.Context, doc TaskDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[doc.ID]; !ok {
		return fmt.Errorf("task not found: %s", doc.ID)
	}
	s.tasks[doc.ID] = doc
	return saveJSON(s.tasksPath, s.tasks)
}

// TasksBySession returns the session's tasks ordered by creation time.
func (s *BleveStore) TasksBySession(ctx context.Context, sessionID string) ([]TaskDocument, error) {
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

// SaveSession stores a session document and flushes the session file.
func (s *BleveStore) SaveSession(ctx context.Context, doc SessionDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[doc.ID] = doc
	return saveJSON(s.sessionsPath, s.sessions)
}

// GetSession returns the session by id, or nil when absent.
func (s *BleveStore) GetSession(ctx context.Context, id string) (*SessionDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

// CompleteSession stamps the session's completion time and flushes the
// session file.
func (s *BleveStore) CompleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	doc.CompletedAt = time.Now()
	s.sessions[id] = doc
	return saveJSON(s.sessionsPath, s.sessions)
}

// SaveRecommendation indexes a recommendation for later recall.
func (s *BleveStore) SaveRecommendation(ctx context.Context, rec Recommendation) error {
	if rec.ID == "" {
		return fmt.Errorf("recommendation id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Index(rec.ID, rec); err != nil {
		return fmt.Errorf("failed to index recommendation: %w", err)
	}
	return nil
}

// SearchSimilar runs a BM25 match query over recommendation content.
func (s *BleveStore) SearchSimilar(ctx context.Context, query string, limit int) ([]RecommendationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}

	matchQuery := bleve.NewMatchQuery(query)
	searchReq := bleve.NewSearchRequest(matchQuery)
	searchReq.Size = limit
	searchReq.Fields = []string{"content", "category", "session_id"}

	searchResult, err := s.index.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var results []RecommendationResult
	for _, hit := range searchResult.Hits {
		rec := Recommendation{ID: hit.ID}
		if v, ok := hit.Fields["content"].(string); ok {
			rec.Content = v
		}
		if v, ok := hit.Fields["category"].(string); ok {
			rec.Category = v
		}
		if v, ok := hit.Fields["session_id"].(string); ok {
			rec.SessionID = v
		}
		results = append(results, RecommendationResult{
			Recommendation: rec,
			Score:          hit.Score,
		})
	}
	return results, nil
}

// Close flushes the data files and closes the index.
func (s *BleveStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saveJSON(s.tasksPath, s.tasks)
	saveJSON(s.sessionsPath, s.sessions)
	return s.index.Close()
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
