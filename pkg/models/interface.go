package models

import "context"

// Agent is a minimal completion client used for the short, cheap model
// calls in the routing path (difficulty classification, exchange
// summarization).
type Agent interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
