package indexer

import "strings"

const (
	// DefaultMaxChunkChars targets the character length of one chunk.
	// Chunks break on word boundaries, so a single oversized word can
	// exceed the target.
	DefaultMaxChunkChars = 900

	// DefaultMaxChunks caps chunks per entity to bound index growth.
	DefaultMaxChunks = 6
)

// Chunk splits text into word-bounded segments of at most maxChars
// characters, capped at maxChunks segments. Text beyond the cap is
// dropped. Non-positive limits use the defaults.
func Chunk(text string, maxChars, maxChunks int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChunkChars
	}
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}

	var chunks []string
	var b strings.Builder
	for _, tok := range strings.Fields(text) {
		needed := len(tok)
		if b.Len() > 0 {
			needed++ // joining space
		}
		if b.Len() > 0 && b.Len()+needed > maxChars {
			chunks = append(chunks, b.String())
			if len(chunks) >= maxChunks {
				return chunks
			}
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(tok)
	}
	if b.Len() > 0 && len(chunks) < maxChunks {
		chunks = append(chunks, b.String())
	}
	return chunks
}
