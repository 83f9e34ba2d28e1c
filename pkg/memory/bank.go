package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/trinity-stack/trinity/pkg/models"
)

// Options tunes retrieval and persistence. Zero values fall back to the
// reference deployment's settings.
type Options struct {
	KnowledgeCollection    string
	ConversationCollection string
	VectorDim              int

	KnowledgeLimit        int
	KnowledgeThreshold    float64
	ConversationLimit     int
	ConversationThreshold float64

	Chunker         Chunker
	MinSummaryRunes int
}

func (o *Options) applyDefaults() {
	if o.KnowledgeCollection == "" {
		o.KnowledgeCollection = "knowledge"
	}
	if o.ConversationCollection == "" {
		o.ConversationCollection = "conversation_memory"
	}
	if o.VectorDim <= 0 {
		o.VectorDim = 1024
	}
	if o.KnowledgeLimit <= 0 {
		o.KnowledgeLimit = 2
	}
	if o.KnowledgeThreshold == 0 {
		o.KnowledgeThreshold = 0.4
	}
	if o.ConversationLimit <= 0 {
		o.ConversationLimit = 3
	}
	if o.ConversationThreshold == 0 {
		o.ConversationThreshold = 0.5
	}
	if o.Chunker.Size <= 0 {
		o.Chunker = Chunker{Size: 500, Overlap: 50}
	}
	if o.MinSummaryRunes <= 0 {
		o.MinSummaryRunes = 6
	}
}

// MemoryBank ties the embedder, the vector store and a small summarizer
// model into the retrieval/persistence surface the router uses. Retrieval
// and persistence are both best-effort: a broken store degrades answers,
// it never blocks them.
type MemoryBank struct {
	embedder   Embedder
	store      VectorStore
	summarizer models.Agent
	opts       Options
}

func NewMemoryBank(embedder Embedder, store VectorStore, summarizer models.Agent, opts Options) *MemoryBank {
	opts.applyDefaults()
	return &MemoryBank{
		embedder:   embedder,
		store:      store,
		summarizer: summarizer,
		opts:       opts,
	}
}

// EnsureCollections provisions both collections. Safe to call on every
// startup.
func (b *MemoryBank) EnsureCollections(ctx context.Context) error {
	for _, name := range []string{b.opts.KnowledgeCollection, b.opts.ConversationCollection} {
		if err := b.store.EnsureCollection(ctx, name, b.opts.VectorDim); err != nil {
			return fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}
	return nil
}

// GetContext retrieves relevant knowledge chunks and past-conversation
// summaries for the query, knowledge first. An empty bundle means no
// relevant context, never an error: retrieval failures are logged and
// degrade to empty.
func (b *MemoryBank) GetContext(ctx context.Context, query string) ContextBundle {
	var bundle ContextBundle

	vec, err := b.embedder.Embed(ctx, query)
	if err != nil || len(vec) == 0 {
		if err != nil {
			log.Printf("[MEMORY] query embedding failed: %v", err)
		}
		return bundle
	}

	hits, err := b.store.Search(ctx, b.opts.KnowledgeCollection, vec, b.opts.KnowledgeLimit)
	if err != nil {
		log.Printf("[MEMORY] knowledge search failed: %v", err)
	} else {
		for _, h := range hits {
			if h.Score < b.opts.KnowledgeThreshold {
				continue
			}
			if t := PayloadText(h.Payload); t != "" {
				bundle.Snippets = append(bundle.Snippets, Snippet{
					Text:   t,
					Source: SourceKnowledge,
					Score:  h.Score,
				})
			}
		}
	}

	hits, err = b.store.Search(ctx, b.opts.ConversationCollection, vec, b.opts.ConversationLimit)
	if err != nil {
		log.Printf("[MEMORY] conversation search failed: %v", err)
	} else {
		for _, h := range hits {
			if h.Score < b.opts.ConversationThreshold {
				continue
			}
			content := PayloadText(h.Payload)
			if content == "" {
				continue
			}
			when, _ := h.Payload["time"].(string)
			bundle.Snippets = append(bundle.Snippets, Snippet{
				Text:   content,
				Source: SourceMemory,
				Score:  h.Score,
				Time:   when,
			})
		}
	}

	return bundle
}

// SaveMemory summarizes one exchange and persists the summary into the
// conversation collection. The summarizer is instructed to answer with the
// SKIP sentinel for chit-chat; those and near-empty summaries are dropped.
// Every failure is swallowed and logged.
func (b *MemoryBank) SaveMemory(ctx context.Context, question, answer string) {
	prompt := fmt.Sprintf(
		"摘要對話重點。若是閒聊/打招呼/廢話，只回 SKIP。若是重要資訊/設定/技術教學，請總結。\n問：%s\n答：%s",
		question, answer)

	summary, err := b.summarizer.Generate(ctx, prompt)
	if err != nil {
		log.Printf("[MEMORY] summarization failed: %v", err)
		return
	}
	summary = strings.TrimSpace(summary)
	if strings.Contains(strings.ToUpper(summary), "SKIP") {
		return
	}
	if len([]rune(summary)) < b.opts.MinSummaryRunes {
		return
	}

	vec, err := b.embedder.Embed(ctx, summary)
	if err != nil || len(vec) == 0 {
		if err != nil {
			log.Printf("[MEMORY] summary embedding failed: %v", err)
		}
		return
	}

	point := Point{
		ID:     uuid.NewString(),
		Vector: vec,
		Payload: map[string]any{
			"content": summary,
			"time":    time.Now().Format(time.ANSIC),
		},
	}
	if err := b.store.Upsert(ctx, b.opts.ConversationCollection, []Point{point}); err != nil {
		log.Printf("[MEMORY] upsert failed: %v", err)
		return
	}
	log.Printf("[MEMORY] saved: %.20s...", summary)
}

// AddToKnowledge chunks a document, embeds every chunk and bulk-upserts
// the results. It reports how many chunks were stored; chunks whose
// embedding fails are logged and excluded from the count.
func (b *MemoryBank) AddToKnowledge(ctx context.Context, text, source string, metadata map[string]any) (int, error) {
	chunks := b.opts.Chunker.Chunk(text)
	if len(chunks) == 0 {
		return 0, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	points := make([]Point, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := b.embedder.Embed(ctx, chunk)
		if err != nil || len(vec) == 0 {
			log.Printf("[MEMORY] chunk embedding failed, skipping: %v", err)
			continue
		}
		payload := map[string]any{
			"text":      chunk,
			"source":    source,
			"timestamp": now,
		}
		if len(metadata) > 0 {
			payload["metadata"] = metadata
		}
		points = append(points, Point{
			ID:      ulid.Make().String(),
			Vector:  vec,
			Payload: payload,
		})
	}
	if len(points) == 0 {
		return 0, nil
	}
	if err := b.store.Upsert(ctx, b.opts.KnowledgeCollection, points); err != nil {
		return 0, fmt.Errorf("upsert knowledge: %w", err)
	}
	return len(points), nil
}
