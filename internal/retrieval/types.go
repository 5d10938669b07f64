package retrieval

import (
	"context"

	"github.com/GaneshTappiti/notes-to-material/internal/corpus"
)

// Embedder defines the interface for converting text to vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorItem represents a page paired with its embedding.
type VectorItem struct {
	Page      corpus.SourcePage
	Embedding []float32
}

// Index manages the storage and similarity search of VectorItems.
type Index interface {
	Add(ctx context.Context, items []VectorItem) error
	Search(ctx context.Context, queryVector []float32, topK int) ([]Hit, error)
}

// Hit is one retrieved page with its relevance score in [0,1].
type Hit struct {
	Page  corpus.SourcePage `json:"page"`
	Score float64           `json:"score"`
}

// Refs returns the "document:page" keys of a hit set.
func Refs(hits []Hit) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Page.Ref())
	}
	return out
}
