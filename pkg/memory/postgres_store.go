package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements VectorStore on Postgres + pgvector, for
// deployments that already run Postgres and would rather not operate a
// separate Qdrant instance. All collections share one table keyed by
// (collection, id).
type PostgresStore struct {
	DB *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

func (ps *PostgresStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	schema := `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS trinity_points (
        collection text NOT NULL,
        id text NOT NULL,
        embedding vector,
        payload jsonb,
        PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS trinity_points_collection_idx ON trinity_points (collection);
`
	if _, err := ps.DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure collection %s: %w", name, err)
	}
	return nil
}

func (ps *PostgresStore) Upsert(ctx context.Context, collection string, points []Point) error {
	if ps == nil || ps.DB == nil || len(points) == 0 {
		return nil
	}
	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return err
		}
		_, err = ps.DB.Exec(ctx, `
INSERT INTO trinity_points (collection, id, embedding, payload)
VALUES ($1, $2, $3::vector, $4::jsonb)
ON CONFLICT (collection, id) DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload;
`, collection, p.ID, vectorLiteral(p.Vector), string(payload))
		if err != nil {
			return fmt.Errorf("upsert into %s: %w", collection, err)
		}
	}
	return nil
}

func (ps *PostgresStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredPoint, error) {
	if ps == nil || ps.DB == nil || limit <= 0 {
		return nil, nil
	}
	rows, err := ps.DB.Query(ctx, `
SELECT id, payload, 1 - (embedding <=> $1::vector) AS score
FROM trinity_points
WHERE collection = $2
ORDER BY embedding <=> $1::vector
LIMIT $3;
`, vectorLiteral(vector), collection, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []ScoredPoint
	for rows.Next() {
		var (
			id      string
			payload []byte
			score   float64
		)
		if err := rows.Scan(&id, &payload, &score); err != nil {
			return nil, err
		}
		var m map[string]any
		_ = json.Unmarshal(payload, &m)
		hits = append(hits, ScoredPoint{Point: Point{ID: id, Payload: m}, Score: score})
	}
	return hits, rows.Err()
}

// Close releases the underlying connection pool.
func (ps *PostgresStore) Close() error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	ps.DB.Close()
	return nil
}

// vectorLiteral renders a pgvector input literal like "[0.1,0.2]".
func vectorLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
