package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/trinity-stack/trinity/pkg/models"
)

// stubStore returns canned hits per collection and records upserts.
type stubStore struct {
	hits     map[string][]ScoredPoint
	searched []string
	upserts  map[string][]Point
}

func newStubStore() *stubStore {
	return &stubStore{hits: map[string][]ScoredPoint{}, upserts: map[string][]Point{}}
}

func (s *stubStore) EnsureCollection(context.Context, string, int) error { return nil }

func (s *stubStore) Upsert(_ context.Context, collection string, points []Point) error {
	s.upserts[collection] = append(s.upserts[collection], points...)
	return nil
}

func (s *stubStore) Search(_ context.Context, collection string, _ []float32, _ int) ([]ScoredPoint, error) {
	s.searched = append(s.searched, collection)
	return s.hits[collection], nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedding service down")
}

func testBank(store VectorStore, summarizer models.Agent) *MemoryBank {
	return NewMemoryBank(DummyEmbedder{Dim: 8}, store, summarizer, Options{VectorDim: 8})
}

func TestGetContextThresholdFiltering(t *testing.T) {
	store := newStubStore()
	store.hits["knowledge"] = []ScoredPoint{
		{Point: Point{ID: "k1", Payload: map[string]any{"text": "香港面積約1100平方公里"}}, Score: 0.82},
		{Point: Point{ID: "k2", Payload: map[string]any{"text": "irrelevant chunk"}}, Score: 0.31},
	}
	store.hits["conversation_memory"] = []ScoredPoint{
		{Point: Point{ID: "m1", Payload: map[string]any{"content": "用戶鍾意飲凍檸茶", "time": "Mon Sep  1 10:00:00 2025"}}, Score: 0.64},
		{Point: Point{ID: "m2", Payload: map[string]any{"content": "below threshold", "time": "x"}}, Score: 0.45},
	}

	bundle := testBank(store, &models.DummyLLM{}).GetContext(context.Background(), "香港有幾大？")
	if len(bundle.Snippets) != 2 {
		t.Fatalf("got %d snippets, want 2: %+v", len(bundle.Snippets), bundle.Snippets)
	}
	ctxText := bundle.String()

	if !strings.Contains(ctxText, "香港面積約1100平方公里") {
		t.Fatalf("missing high-score knowledge hit:\n%s", ctxText)
	}
	if strings.Contains(ctxText, "irrelevant chunk") {
		t.Fatalf("below-threshold knowledge hit leaked:\n%s", ctxText)
	}
	if !strings.Contains(ctxText, "用戶鍾意飲凍檸茶") {
		t.Fatalf("missing high-score memory hit:\n%s", ctxText)
	}
	if strings.Contains(ctxText, "below threshold") {
		t.Fatalf("below-threshold memory hit leaked:\n%s", ctxText)
	}
	// Knowledge block comes before the memory block.
	if strings.Index(ctxText, "【知識庫】") > strings.Index(ctxText, "【回憶】") {
		t.Fatalf("knowledge block should precede memory block:\n%s", ctxText)
	}
}

func TestGetContextEmptyOnEmbedFailure(t *testing.T) {
	store := newStubStore()
	bank := NewMemoryBank(failingEmbedder{}, store, &models.DummyLLM{}, Options{VectorDim: 8})
	if got := bank.GetContext(context.Background(), "anything"); !got.Empty() {
		t.Fatalf("want empty context on embedding failure, got %+v", got)
	}
	if len(store.searched) != 0 {
		t.Fatalf("no searches should run without a vector, got %v", store.searched)
	}
}

func TestSaveMemorySkipsSentinel(t *testing.T) {
	store := newStubStore()
	testBank(store, &models.DummyLLM{Response: "SKIP"}).
		SaveMemory(context.Background(), "你好", "你好呀！")
	if n := len(store.upserts["conversation_memory"]); n != 0 {
		t.Fatalf("sentinel summary must not be persisted, got %d records", n)
	}
}

func TestSaveMemorySkipsShortSummary(t *testing.T) {
	store := newStubStore()
	testBank(store, &models.DummyLLM{Response: "嗯好。"}).
		SaveMemory(context.Background(), "ok", "ok")
	if n := len(store.upserts["conversation_memory"]); n != 0 {
		t.Fatalf("summary under the rune minimum must not be persisted, got %d records", n)
	}
}

func TestSaveMemoryWritesUniqueIDs(t *testing.T) {
	store := newStubStore()
	bank := testBank(store, &models.DummyLLM{Response: "用戶個貓叫波子，今年三歲。"})
	bank.SaveMemory(context.Background(), "我隻貓叫波子", "波子真係好名！")
	bank.SaveMemory(context.Background(), "佢三歲喇", "三歲正值壯年。")

	records := store.upserts["conversation_memory"]
	if len(records) != 2 {
		t.Fatalf("want 2 records, got %d", len(records))
	}
	if records[0].ID == records[1].ID || records[0].ID == "" {
		t.Fatalf("record ids must be fresh and unique: %q vs %q", records[0].ID, records[1].ID)
	}
	if got, _ := records[0].Payload["content"].(string); got != "用戶個貓叫波子，今年三歲。" {
		t.Fatalf("payload content = %q", got)
	}
	if _, ok := records[0].Payload["time"].(string); !ok {
		t.Fatal("payload missing time field")
	}
}

func TestSaveMemorySwallowsSummarizerFailure(t *testing.T) {
	store := newStubStore()
	testBank(store, &models.DummyLLM{Err: errors.New("model offline")}).
		SaveMemory(context.Background(), "q", "a")
	if n := len(store.upserts["conversation_memory"]); n != 0 {
		t.Fatalf("failure path must not persist, got %d records", n)
	}
}

func TestAddToKnowledgeChunkCount(t *testing.T) {
	store := newStubStore()
	bank := NewMemoryBank(DummyEmbedder{Dim: 8}, store, &models.DummyLLM{}, Options{
		VectorDim: 8,
		Chunker:   Chunker{Size: 500, Overlap: 50},
	})
	n, err := bank.AddToKnowledge(context.Background(), strings.Repeat("文", 1200), "handbook", nil)
	if err != nil {
		t.Fatalf("AddToKnowledge: %v", err)
	}
	if n != 3 {
		t.Fatalf("stored %d chunks, want 3", n)
	}
	points := store.upserts["knowledge"]
	if len(points) != 3 {
		t.Fatalf("upserted %d points, want 3", len(points))
	}
	seen := map[string]bool{}
	for _, p := range points {
		if seen[p.ID] {
			t.Fatalf("duplicate chunk id %q", p.ID)
		}
		seen[p.ID] = true
		if got, _ := p.Payload["source"].(string); got != "handbook" {
			t.Fatalf("source = %q", got)
		}
		if _, ok := p.Payload["timestamp"].(string); !ok {
			t.Fatal("chunk payload missing timestamp")
		}
	}
}

func TestAddToKnowledgeExcludesFailedEmbeds(t *testing.T) {
	store := newStubStore()
	bank := NewMemoryBank(failingEmbedder{}, store, &models.DummyLLM{}, Options{VectorDim: 8})
	n, err := bank.AddToKnowledge(context.Background(), strings.Repeat("x", 1200), "doc", nil)
	if err != nil {
		t.Fatalf("AddToKnowledge: %v", err)
	}
	if n != 0 {
		t.Fatalf("failed embeds must not count, got %d", n)
	}
	if len(store.upserts["knowledge"]) != 0 {
		t.Fatal("nothing should be upserted when every embed fails")
	}
}
