package embedding

import "math"

// Norm returns the L2 norm of a vector.
func Norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// Normalize returns v scaled to unit L2 norm. A zero vector is returned
// unchanged rather than producing NaN components.
func Normalize(v []float32) []float32 {
	n := float64(Norm(v))
	if n == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / n)
	}
	return out
}

// Cosine computes the cosine similarity of two vectors. Mismatched
// dimensions and zero vectors score 0, never NaN.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, aSq, bSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		aSq += float64(a[i]) * float64(a[i])
		bSq += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(aSq) * math.Sqrt(bSq)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

// Resize converts v to the given dimension: contiguous blocks are
// averaged when shrinking, elements are repeated nearest-neighbor style
// when growing, and the result is renormalized to unit norm. A
// same-dimension input is returned as an equal copy without rescaling.
func Resize(v []float32, dim int) []float32 {
	if dim <= 0 || len(v) == 0 {
		return make([]float32, max(dim, 0))
	}
	if len(v) == dim {
		out := make([]float32, dim)
		copy(out, v)
		return out
	}

	out := make([]float32, dim)
	if len(v) > dim {
		// Downsample: average each contiguous source block.
		for i := 0; i < dim; i++ {
			start := i * len(v) / dim
			end := (i + 1) * len(v) / dim
			if end <= start {
				end = start + 1
			}
			var sum float64
			for j := start; j < end; j++ {
				sum += float64(v[j])
			}
			out[i] = float32(sum / float64(end-start))
		}
	} else {
		// Upsample: repeat the nearest source element.
		for i := 0; i < dim; i++ {
			out[i] = v[i*len(v)/dim]
		}
	}
	return Normalize(out)
}
