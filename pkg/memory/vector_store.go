package memory

import "context"

// Point is one stored vector with its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a search hit with its cosine similarity score.
type ScoredPoint struct {
	Point
	Score float64
}

// VectorStore is the contract for similarity-search backends. Collections
// are provisioned lazily and idempotently; every vector written must match
// the collection's configured dimensionality.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string, dim int) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error)
}

// PayloadText extracts the snippet text from a payload, tolerating both the
// `text` key (knowledge chunks) and the `content` key (memory summaries).
func PayloadText(payload map[string]any) string {
	if payload == nil {
		return ""
	}
	if s, ok := payload["text"].(string); ok && s != "" {
		return s
	}
	if s, ok := payload["content"].(string); ok {
		return s
	}
	return ""
}
