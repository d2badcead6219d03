// Package vector provides utilities for embedding vectors: cosine similarity,
// element-wise averaging, L2 normalization, and defensive cleaning.
package vector

import (
	"math"

	"github.com/soleprint/hub/internal/apperrors"
)

// Cosine returns the cosine similarity dot(a,b) / (|a| * |b|) between a and b.
// ok is false when either vector has zero norm (similarity undefined); callers
// must skip such pairs rather than treat them as similarity 0.
// Accumulates in float64 so long vectors don't lose precision.
func Cosine(a, b []float32) (sim float64, ok bool) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64

	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, false
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

// Average returns the element-wise arithmetic mean of the given vectors.
// All inputs are assumed to share one dimension (caller contract); the output
// has the dimension of the first vector. Returns EmptyInputError for zero vectors.
func Average(embeddings [][]float32) ([]float32, error) {
	if len(embeddings) == 0 {
		return nil, apperrors.NewEmptyInputError("cannot average empty list of embeddings")
	}

	dim := len(embeddings[0])
	sums := make([]float64, dim)

	for _, emb := range embeddings {
		for i, v := range emb {
			if i >= dim {
				break
			}

			sums[i] += float64(v)
		}
	}

	avg := make([]float32, dim)
	n := float64(len(embeddings))

	for i, s := range sums {
		avg[i] = float32(s / n)
	}

	return avg, nil
}

// NormalizeL2 normalizes a raw embedding vector to length 1, in place to avoid
// allocations on the ingestion path. All-zero vectors are left unchanged.
func NormalizeL2(vector []float32) {
	var sumSquares float64

	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	if sumSquares == 0 {
		return
	}

	magnitude := math.Sqrt(sumSquares)

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}

// Clean returns a copy of the vector with every NaN or infinite component
// replaced by 0. Query embeddings are cleaned, never rejected.
func Clean(embedding []float32) []float32 {
	out := make([]float32, len(embedding))

	for i, v := range embedding {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			out[i] = 0
			continue
		}

		out[i] = v
	}

	return out
}

// Round4 rounds a similarity score to 4 decimal places for presentation.
func Round4(score float64) float64 {
	return math.Round(score*10000) / 10000
}
