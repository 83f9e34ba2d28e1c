package memory

import (
	"context"
	"testing"
)

func TestInMemoryStoreRanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	if err := s.EnsureCollection(ctx, "knowledge", 2); err != nil {
		t.Fatal(err)
	}
	err := s.Upsert(ctx, "knowledge", []Point{
		{ID: "aligned", Vector: []float32{1, 0}, Payload: map[string]any{"text": "a"}},
		{ID: "orthogonal", Vector: []float32{0, 1}, Payload: map[string]any{"text": "b"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, "knowledge", []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].ID != "aligned" {
		t.Fatalf("hits = %+v", hits)
	}
	if hits[0].Score <= hits[1].Score {
		t.Fatalf("ranking broken: %f <= %f", hits[0].Score, hits[1].Score)
	}
}

func TestInMemoryStoreDimChecks(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	if err := s.EnsureCollection(ctx, "c", 3); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureCollection(ctx, "c", 3); err != nil {
		t.Fatalf("re-ensure with same dim should be idempotent: %v", err)
	}
	if err := s.EnsureCollection(ctx, "c", 4); err == nil {
		t.Fatal("dim mismatch on existing collection should error")
	}
	if err := s.Upsert(ctx, "c", []Point{{ID: "p", Vector: []float32{1, 2}}}); err == nil {
		t.Fatal("wrong-dim vector should be rejected")
	}
}
