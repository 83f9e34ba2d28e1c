package memory

import (
	"fmt"
	"strings"
)

const (
	SourceKnowledge = "knowledge"
	SourceMemory    = "memory"
)

// Snippet is one retrieved piece of context.
type Snippet struct {
	Text   string
	Source string
	Score  float64
	Time   string
}

// ContextBundle holds the snippets retrieved for one query, knowledge
// hits before conversation hits. It is built fresh per query and never
// persisted.
type ContextBundle struct {
	Snippets []Snippet
}

func (b ContextBundle) Empty() bool { return len(b.Snippets) == 0 }

// String renders the bundle as labeled text blocks for prompt injection.
// An empty bundle renders as "".
func (b ContextBundle) String() string {
	var knowledge, memories []string
	for _, s := range b.Snippets {
		switch s.Source {
		case SourceMemory:
			memories = append(memories, fmt.Sprintf("- %s (%s)", s.Text, s.Time))
		default:
			knowledge = append(knowledge, s.Text)
		}
	}
	var parts []string
	if len(knowledge) > 0 {
		parts = append(parts, "【知識庫】：\n"+strings.Join(knowledge, "\n"))
	}
	if len(memories) > 0 {
		parts = append(parts, "【回憶】：\n"+strings.Join(memories, "\n"))
	}
	return strings.Join(parts, "\n\n")
}
