package storage

import (
	"context"
	"testing"
	"time"
)

func TestBleveStoreSearch(t *testing.T) {
	s, err := NewBleveStore(BleveConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	recs := []Recommendation{
		{ID: "r1", SessionID: "s1", Category: "top", Content: "navy blazer over a crisp white shirt", CreatedAt: time.Now()},
		{ID: "r2", SessionID: "s1", Category: "shoes", Content: "brown leather oxford shoes", CreatedAt: time.Now()},
		{ID: "r3", SessionID: "s2", Category: "top", Content: "linen shirt for summer evenings", CreatedAt: time.Now()},
	}
	for _, rec := range recs {
		if err := s.SaveRecommendation(ctx, rec); err != nil {
			t.Fatalf("save %s: %v", rec.ID, err)
		}
	}

	results, err := s.SearchSimilar(ctx, "blazer shirt", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results for matching query")
	}
	if results[0].ID != "r1" {
		t.Errorf("top hit = %s, want r1", results[0].ID)
	}
	for _, r := range results {
		if r.ID == "r2" {
			t.Error("unrelated recommendation matched")
		}
	}
}

func TestBleveStorePersistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewBleveStore(BleveConfig{BasePath: dir})
	if err != nil {
		t.Fatal(err)
	}
	s.SaveTask(ctx, TaskDocument{ID: "t1", SessionID: "s1", Status: "completed", CreatedAt: time.Now()})
	s.SaveSession(ctx, SessionDocument{ID: "s1", Request: "weekend outfit", CreatedAt: time.Now()})
	s.SaveRecommendation(ctx, Recommendation{ID: "r1", SessionID: "s1", Content: "denim jacket", CreatedAt: time.Now()})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewBleveStore(BleveConfig{BasePath: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	task, err := reopened.GetTask(ctx, "t1")
	if err != nil || task == nil {
		t.Fatalf("task lost across restart: %v, %v", task, err)
	}
	sess, err := reopened.GetSession(ctx, "s1")
	if err != nil || sess == nil {
		t.Fatalf("session lost across restart: %v, %v", sess, err)
	}
	results, err := reopened.SearchSimilar(ctx, "denim", 5)
	if err != nil || len(results) == 0 {
		t.Fatalf("index lost across restart: %v, %v", results, err)
	}
}
