package embedding

import (
	"context"
	"strings"
)

// scatterPositions is how many vector positions each token contributes
// to. Spreading a token across several pseudo-random positions reduces
// collision bias compared to a single hashed position.
const scatterPositions = 4

// Knuth's multiplicative hash constant, used to derive the scatter
// positions from a token hash.
const scatterStride = 2654435761

// Local is the deterministic fallback provider. It trades semantic
// fidelity for availability and stability: the same text always maps to
// the same unit-norm vector, with no network involved.
type Local struct{}

func (Local) Embed(_ context.Context, text string, dim int) ([]float32, error) {
	return LocalVector(text, dim), nil
}

// LocalVector builds a unit-norm vector for text by hashing whitespace
// tokens into dim buckets.
func LocalVector(text string, dim int) []float32 {
	vec := make([]float32, max(dim, 0))
	if dim <= 0 {
		return vec
	}

	for _, tok := range strings.Fields(strings.ToLower(text)) {
		// Order-independent hash over the token's runes.
		// Collisions are acceptable here.
		var h uint32
		for _, r := range tok {
			h += uint32(r)
		}
		for j := uint32(0); j < scatterPositions; j++ {
			pos := (h + j*scatterStride) % uint32(dim)
			vec[pos] += 1 + float32(h%8)/8
		}
	}
	return Normalize(vec)
}
