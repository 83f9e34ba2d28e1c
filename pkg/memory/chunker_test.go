package memory

import (
	"strings"
	"testing"
)

func TestChunkCountFormula(t *testing.T) {
	c := Chunker{Size: 500, Overlap: 50}

	// 1200 runes at stride 450: ceil(1200/450) = 3.
	text := strings.Repeat("字", 1200)
	chunks := c.Chunk(text)
	if len(chunks) != 3 {
		t.Fatalf("1200 runes: got %d chunks, want 3", len(chunks))
	}

	// Exact multiple of the stride.
	chunks = c.Chunk(strings.Repeat("a", 900))
	if len(chunks) != 2 {
		t.Fatalf("900 runes: got %d chunks, want 2", len(chunks))
	}

	// Tail landing inside the overlap region still gets its own chunk:
	// ceil(910/450) = 3, the last chunk being the final 10 runes.
	chunks = c.Chunk(strings.Repeat("b", 910))
	if len(chunks) != 3 {
		t.Fatalf("910 runes: got %d chunks, want 3", len(chunks))
	}
	if last := chunks[2]; len(last) != 10 {
		t.Fatalf("last chunk has %d runes, want 10", len(last))
	}

	// One full chunk size: ceil(500/450) = 2.
	chunks = c.Chunk(strings.Repeat("c", 500))
	if len(chunks) != 2 {
		t.Fatalf("500 runes: got %d chunks, want 2", len(chunks))
	}

	// Shorter than one stride.
	chunks = c.Chunk("short")
	if len(chunks) != 1 || chunks[0] != "short" {
		t.Fatalf("short text: got %v", chunks)
	}
}

func TestChunkOverlapSharedRunes(t *testing.T) {
	c := Chunker{Size: 500, Overlap: 50}
	var sb strings.Builder
	for i := 0; i < 1200; i++ {
		sb.WriteRune(rune('一' + i%400))
	}
	chunks := c.Chunk(sb.String())
	if len(chunks) < 2 {
		t.Fatalf("need at least 2 chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		cur := []rune(chunks[i])
		tail := string(prev[len(prev)-50:])
		head := string(cur[:50])
		if tail != head {
			t.Fatalf("chunk %d does not share a 50-rune boundary with its predecessor", i)
		}
	}
}

func TestChunkEmptyText(t *testing.T) {
	if got := (Chunker{Size: 500, Overlap: 50}).Chunk(""); got != nil {
		t.Fatalf("empty text: got %v, want nil", got)
	}
}
