package models

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompatLLM talks to any OpenAI-compatible chat endpoint. The local
// tiers all expose this surface, so one client type covers every backend.
type OpenAICompatLLM struct {
	Client      *openai.Client
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// NewOpenAICompatLLM creates a client against baseURL (e.g.
// "http://localhost:8603/v1"). An empty apiKey is fine for local servers.
func NewOpenAICompatLLM(baseURL, apiKey, model string) *OpenAICompatLLM {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return &OpenAICompatLLM{
		Client:      openai.NewClientWithConfig(cfg),
		Model:       model,
		Temperature: 0.1,
		Timeout:     5 * time.Second,
	}
}

// WithBudget caps the response size and per-call timeout. Classifier calls
// need only a handful of tokens; summaries get a little more room.
func (o *OpenAICompatLLM) WithBudget(maxTokens int, timeout time.Duration) *OpenAICompatLLM {
	o.MaxTokens = maxTokens
	if timeout > 0 {
		o.Timeout = timeout
	}
	return o
}

func (o *OpenAICompatLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}
	resp, err := o.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.Model,
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Agent = (*OpenAICompatLLM)(nil)
