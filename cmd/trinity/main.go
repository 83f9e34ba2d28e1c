package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/trinity-stack/trinity/pkg/config"
	"github.com/trinity-stack/trinity/pkg/dispatch"
	"github.com/trinity-stack/trinity/pkg/memory"
	"github.com/trinity-stack/trinity/pkg/models"
	"github.com/trinity-stack/trinity/pkg/router"
)

var (
	cfgPath string
	cfg     config.Config
)

func main() {
	root := &cobra.Command{
		Use:   "trinity",
		Short: "Tiered inference router with a vector memory bank",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			var err error
			cfg, err = config.Load(cfgPath)
			return err
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to TOML config (defaults apply when omitted)")

	root.AddCommand(askCmd(), ingestCmd(), setupCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	var deep bool
	cmd := &cobra.Command{
		Use:   "ask \"question\"",
		Short: "Route a question and stream the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, cleanup, err := buildBank(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			d := dispatch.NewDispatcher()
			r := router.New(cfg, buildClassifier(), bank, d)
			events, err := r.RouteQuestion(cmd.Context(), args[0], deep)
			if err != nil {
				return err
			}
			for ev := range events {
				switch ev.Kind {
				case dispatch.Thinking:
					fmt.Fprintln(os.Stderr, ev.Text)
				case dispatch.Token:
					fmt.Print(ev.Text)
				case dispatch.Done:
					fmt.Println()
				case dispatch.Error:
					fmt.Println()
					return ev.Err
				}
			}
			// Flush the detached memory write before exit.
			d.Wait()
			return nil
		},
	}
	cmd.Flags().BoolVar(&deep, "deep", false, "allow routing to the deep-thinking tier")
	return cmd
}

func ingestCmd() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Chunk a document into the knowledge collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if source == "" {
				source = filepath.Base(args[0])
			}

			bank, cleanup, err := buildBank(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := bank.AddToKnowledge(cmd.Context(), string(raw), source, nil)
			if err != nil {
				return err
			}
			fmt.Printf("stored %d chunks from %s\n", n, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "source tag for the stored chunks (defaults to the file name)")
	return cmd
}

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Provision the vector collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, cleanup, err := buildBank(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			if err := bank.EnsureCollections(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("collections %s and %s ready\n",
				cfg.Store.KnowledgeCollection, cfg.Store.ConversationCollection)
			return nil
		},
	}
}

func buildBank(ctx context.Context) (*memory.MemoryBank, func(), error) {
	store, cleanup, err := buildStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	embedder, err := buildEmbedder()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	summarizer := models.NewOpenAICompatLLM(
		openAIBaseURL(cfg.Tiers.Easy.Endpoint), "", cfg.Tiers.Easy.Model).
		WithBudget(100, 5*time.Second)

	bank := memory.NewMemoryBank(embedder, store, summarizer, memory.Options{
		KnowledgeCollection:    cfg.Store.KnowledgeCollection,
		ConversationCollection: cfg.Store.ConversationCollection,
		VectorDim:              cfg.Store.VectorDim,
		KnowledgeLimit:         cfg.Memory.KnowledgeLimit,
		KnowledgeThreshold:     cfg.Memory.KnowledgeThreshold,
		ConversationLimit:      cfg.Memory.ConversationLimit,
		ConversationThreshold:  cfg.Memory.ConversationThreshold,
		Chunker:                memory.Chunker{Size: cfg.Memory.ChunkSize, Overlap: cfg.Memory.ChunkOverlap},
		MinSummaryRunes:        cfg.Memory.MinSummaryRunes,
	})
	return bank, cleanup, nil
}

func buildStore(ctx context.Context) (memory.VectorStore, func(), error) {
	switch cfg.Store.Backend {
	case "qdrant", "":
		return memory.NewQdrantStore(cfg.Store.URL, cfg.Store.APIKey), func() {}, nil
	case "postgres":
		ps, err := memory.NewPostgresStore(ctx, cfg.Store.ConnString)
		if err != nil {
			return nil, nil, err
		}
		return ps, func() { ps.Close() }, nil
	case "memory":
		return memory.NewInMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func buildEmbedder() (memory.Embedder, error) {
	switch cfg.Embedder.Provider {
	case "openai", "":
		return memory.NewOpenAIEmbedder(cfg.Embedder.URL, cfg.Embedder.APIKey, cfg.Embedder.Model), nil
	case "ollama":
		return memory.NewOllamaEmbedder(cfg.Embedder.URL, cfg.Embedder.Model)
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Embedder.Provider)
	}
}

func buildClassifier() *router.Classifier {
	model := models.NewOpenAICompatLLM(
		openAIBaseURL(cfg.Tiers.Easy.Endpoint), "", cfg.Tiers.Easy.Model).
		WithBudget(5, 5*time.Second)
	return &router.Classifier{Model: model}
}

// openAIBaseURL strips the chat-completions path from a tier endpoint,
// yielding the base URL the go-openai client expects.
func openAIBaseURL(endpoint string) string {
	return strings.TrimSuffix(endpoint, "/chat/completions")
}
