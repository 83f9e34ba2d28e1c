package memory

// Chunker splits long documents into fixed-size overlapping pieces before
// embedding. Sizes are in runes so CJK text is not cut mid-character; each
// chunk after the first starts Overlap runes before the previous chunk's
// end, preserving cross-boundary context.
type Chunker struct {
	Size    int
	Overlap int
}

// Chunk splits text. len(text)=L runes yields ceil(L/(Size-Overlap))
// chunks; empty input yields none.
func (c Chunker) Chunk(text string) []string {
	size, overlap := c.Size, c.Overlap
	if size <= 0 {
		size, overlap = 500, 50
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var out []string
	for i := 0; i < len(runes); i += size - overlap {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}
