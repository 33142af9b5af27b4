// Package embeddings provides embedding generation and vector similarity
// for the semantic cache and the input deduplicator.
package embeddings

import (
	"context"
	"math"
)

// Embedder generates an embedding vector for a piece of text.
type Embedder interface {
	// Embed returns the embedding for text. Implementations must be safe
	// for concurrent use.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
}

// Cosine computes cosine similarity between two vectors. Returns 0 when
// the vectors differ in length or either has zero magnitude.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
