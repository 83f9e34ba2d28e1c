package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Tier describes one backend in the fast/balanced/deep ladder.
type Tier struct {
	Endpoint       string `toml:"endpoint"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	ExtraPrompt    string `toml:"extra_prompt"`
}

// Tiers holds the three routing targets.
type Tiers struct {
	Easy   Tier `toml:"easy"`
	Medium Tier `toml:"medium"`
	Hard   Tier `toml:"hard"`
}

// Store selects and configures the vector backend.
type Store struct {
	Backend                string `toml:"backend"` // qdrant | postgres | memory
	URL                    string `toml:"url"`
	APIKey                 string `toml:"api_key"`
	ConnString             string `toml:"conn_string"`
	KnowledgeCollection    string `toml:"knowledge_collection"`
	ConversationCollection string `toml:"conversation_collection"`
	VectorDim              int    `toml:"vector_dim"`
}

// Embedder selects and configures the embedding client.
type Embedder struct {
	Provider string `toml:"provider"` // openai | ollama
	URL      string `toml:"url"`
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
}

// Memory holds the retrieval and persistence knobs.
type Memory struct {
	KnowledgeLimit        int     `toml:"knowledge_limit"`
	KnowledgeThreshold    float64 `toml:"knowledge_threshold"`
	ConversationLimit     int     `toml:"conversation_limit"`
	ConversationThreshold float64 `toml:"conversation_threshold"`
	ChunkSize             int     `toml:"chunk_size"`
	ChunkOverlap          int     `toml:"chunk_overlap"`
	MinSummaryRunes       int     `toml:"min_summary_runes"`
}

// Config is the full startup configuration. Values are read once at boot
// and treated as immutable afterwards.
type Config struct {
	SystemPrompt    string   `toml:"system_prompt"`
	DeepThinkSuffix string   `toml:"deep_think_suffix"`
	Tiers           Tiers    `toml:"tiers"`
	Store           Store    `toml:"store"`
	Embedder        Embedder `toml:"embedder"`
	Memory          Memory   `toml:"memory"`
}

const defaultSystemPrompt = `你係 **小丸 (Xiao Wan)**，一個由 Trinity 架構驅動嘅智能助理。
行為準則：
1. **身份**：你叫「小丸」，係一位得力助手。
2. **語言**：全程使用 **地道香港廣東話**，語氣活潑、親切、專業。
3. **誠實**：識就識，唔識就查記憶，查唔到就話唔知。
`

const deepThinkSuffix = "\n(當前模式：深度思考。請提供極具邏輯性、結構嚴謹、有深度的詳細回答。)"

// Default returns the built-in configuration matching the reference
// three-tier local deployment.
func Default() Config {
	return Config{
		SystemPrompt:    defaultSystemPrompt,
		DeepThinkSuffix: deepThinkSuffix,
		Tiers: Tiers{
			Easy: Tier{
				Endpoint:       "http://localhost:8603/v1/chat/completions",
				Model:          "Qwen/Qwen2.5-1.5B-Instruct",
				TimeoutSeconds: 30,
			},
			Medium: Tier{
				Endpoint:       "http://localhost:8601/v1/chat/completions",
				Model:          "JunHowie/Qwen3-30B-A3B-Instruct-2507-GPTQ-Int4",
				TimeoutSeconds: 150,
			},
			Hard: Tier{
				Endpoint:       "http://localhost:8607/v1/chat/completions",
				Model:          "jart25/Qwen3-Next-80B-A3B-Instruct-Int4-GPTQ",
				TimeoutSeconds: 900,
				ExtraPrompt:    deepThinkSuffix,
			},
		},
		Store: Store{
			Backend:                "qdrant",
			URL:                    "http://localhost:6333",
			KnowledgeCollection:    "knowledge",
			ConversationCollection: "conversation_memory",
			VectorDim:              1024,
		},
		Embedder: Embedder{
			Provider: "openai",
			URL:      "http://localhost:8602/embeddings",
			Model:    "BAAI/bge-m3",
		},
		Memory: Memory{
			KnowledgeLimit:        2,
			KnowledgeThreshold:    0.4,
			ConversationLimit:     3,
			ConversationThreshold: 0.5,
			ChunkSize:             500,
			ChunkOverlap:          50,
			MinSummaryRunes:       6,
		},
	}
}

// Load decodes a TOML file over the defaults, then applies environment
// overrides for secrets. An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		cfg.Store.APIKey = v
	}
	if v := os.Getenv("EMBED_API_KEY"); v != "" {
		cfg.Embedder.APIKey = v
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	for _, t := range []struct {
		name string
		tier Tier
	}{
		{"easy", c.Tiers.Easy},
		{"medium", c.Tiers.Medium},
		{"hard", c.Tiers.Hard},
	} {
		if t.tier.Endpoint == "" {
			return fmt.Errorf("tier %s: endpoint required", t.name)
		}
		if t.tier.TimeoutSeconds <= 0 {
			return fmt.Errorf("tier %s: timeout must be positive, got %d", t.name, t.tier.TimeoutSeconds)
		}
	}
	if c.Store.VectorDim <= 0 {
		return fmt.Errorf("store: vector_dim must be positive, got %d", c.Store.VectorDim)
	}
	if c.Memory.ChunkOverlap >= c.Memory.ChunkSize {
		return fmt.Errorf("memory: chunk_overlap %d must be smaller than chunk_size %d",
			c.Memory.ChunkOverlap, c.Memory.ChunkSize)
	}
	return nil
}
