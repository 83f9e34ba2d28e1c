package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder calls an OpenAI-compatible embedding endpoint with
// `{"input": ..., "model": ...}`. Local embedding servers disagree on both
// the route and the response envelope, so the client tolerates the
// `data[0].embedding` form and the bare-list form, and retries once against
// the `/v1/embeddings` variant when the configured path is rejected.
type OpenAIEmbedder struct {
	URL    string
	APIKey string
	Model  string
	client *http.Client
}

func NewOpenAIEmbedder(url, apiKey, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		URL:    url,
		APIKey: apiKey,
		Model:  model,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	body, err := json.Marshal(map[string]string{"input": text, "model": e.Model})
	if err != nil {
		return nil, err
	}

	payload, err := e.post(ctx, e.URL, body)
	if err != nil {
		alt := fallbackEmbeddingURL(e.URL)
		if alt == "" {
			return nil, err
		}
		payload, err = e.post(ctx, alt, body)
		if err != nil {
			return nil, err
		}
	}
	return parseEmbedding(payload)
}

func (e *OpenAIEmbedder) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding service: http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	return payload, nil
}

// fallbackEmbeddingURL maps ".../embeddings" to ".../v1/embeddings", the
// other route local servers commonly expose. Returns "" when no alternate
// route exists.
func fallbackEmbeddingURL(url string) string {
	if strings.Contains(url, "/v1/embeddings") || !strings.HasSuffix(url, "/embeddings") {
		return ""
	}
	return strings.TrimSuffix(url, "/embeddings") + "/v1/embeddings"
}

// parseEmbedding accepts `{"data":[{"embedding":[...]}]}` or the bare
// `[{"embedding":[...]}]` list form.
func parseEmbedding(payload []byte) ([]float32, error) {
	body := string(payload)
	vec := gjson.Get(body, "data.0.embedding")
	if !vec.Exists() {
		vec = gjson.Get(body, "0.embedding")
	}
	if !vec.IsArray() {
		return nil, errors.New("embedding service: unrecognised response shape")
	}
	raw := vec.Array()
	out := make([]float32, 0, len(raw))
	for _, v := range raw {
		out = append(out, float32(v.Float()))
	}
	if len(out) == 0 {
		return nil, errors.New("embedding service: empty vector")
	}
	return out, nil
}

// DummyEmbedder produces a deterministic byte-fold vector; it exists for
// tests and store-less development.
type DummyEmbedder struct {
	Dim int
}

func (d DummyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dim := d.Dim
	if dim <= 0 {
		dim = 768
	}
	vec := make([]float32, dim)
	for i, ch := range []byte(text) {
		vec[i%dim] += float32(ch) / 255.0
	}
	return vec, nil
}
