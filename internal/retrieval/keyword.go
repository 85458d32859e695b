package retrieval

import (
	"math"
	"strings"
)

// keywordScore counts literal occurrences of each whitespace-split query
// token in the record text, dampened by text length so long records do
// not win on volume alone. Both sides are lowercased first.
func keywordScore(query, text string) float32 {
	lowered := strings.ToLower(text)
	var hits int
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		hits += strings.Count(lowered, tok)
	}
	if hits == 0 {
		return 0
	}
	return float32(float64(hits) / math.Log10(50+float64(len(text))))
}
