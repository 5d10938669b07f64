package retrieval

import (
	"context"
	"fmt"
	"strings"
)

// Retriever ranks corpus pages against a topic. Pure with respect to the
// corpus: nothing here mutates the index.
type Retriever struct {
	embedder Embedder
	index    Index
}

func NewRetriever(embedder Embedder, index Index) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve returns up to topK hits ordered by descending score, ties broken
// by (document, page) ascending. An empty corpus yields an empty slice, not
// an error.
func (r *Retriever) Retrieve(ctx context.Context, topic string, topK int) ([]Hit, error) {
	return r.RetrieveFiltered(ctx, topic, topK, nil)
}

// RetrieveFiltered restricts hits to the given documents when the filter is
// non-empty. TopK applies after filtering.
func (r *Retriever) RetrieveFiltered(ctx context.Context, topic string, topK int, documents []string) ([]Hit, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("topic must not be empty")
	}
	if topK < 1 {
		return nil, fmt.Errorf("top_k must be >= 1, got %d", topK)
	}

	vectors, err := r.embedder.Embed(ctx, []string{topic})
	if err != nil {
		return nil, fmt.Errorf("failed to embed topic: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	// Over-fetch when filtering so the filter does not starve topK.
	fetch := topK
	if len(documents) > 0 {
		fetch = topK * 4
	}
	hits, err := r.index.Search(ctx, vectors[0], fetch)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	if len(documents) > 0 {
		allowed := make(map[string]bool, len(documents))
		for _, d := range documents {
			allowed[d] = true
		}
		filtered := hits[:0]
		for _, h := range hits {
			if allowed[h.Page.Document] {
				filtered = append(filtered, h)
			}
		}
		hits = filtered
	}

	SortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}
