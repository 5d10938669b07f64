package retrieval

import (
	"context"
	"crypto/sha256"
)

const hashDimension = 128

// HashEmbedder derives a deterministic pseudo-embedding from SHA-256 of the
// text. It carries no semantic signal, but keeps ingestion and retrieval
// fully offline and reproducible: identical text always maps to the same
// vector, so exact-topic lookups and tests behave deterministically without
// an API key.
type HashEmbedder struct{}

func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{}
}

func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		sum := sha256.Sum256([]byte(t))
		vec := make([]float32, hashDimension)
		for i := 0; i < hashDimension; i++ {
			vec[i] = float32(sum[i%len(sum)]) / 255.0
		}
		out = append(out, vec)
	}
	return out, nil
}

func (h *HashEmbedder) Dimension() int {
	return hashDimension
}
