package retrieval

import (
	"context"
	"math"
	"sort"
)

// MemoryIndex is a simple in-memory vector index with cosine similarity.
type MemoryIndex struct {
	items []VectorItem
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{items: []VectorItem{}}
}

func (m *MemoryIndex) Add(ctx context.Context, items []VectorItem) error {
	m.items = append(m.items, items...)
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, queryVector []float32, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(m.items))
	for _, item := range m.items {
		score := CosineSimilarity(queryVector, item.Embedding)
		hits = append(hits, Hit{Page: item.Page, Score: ClampScore(score)})
	}
	SortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// SortHits orders hits by descending score, ties broken by (document, page)
// ascending so results are deterministic.
func SortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Page.Document != hits[j].Page.Document {
			return hits[i].Page.Document < hits[j].Page.Document
		}
		return hits[i].Page.PageNo < hits[j].Page.PageNo
	})
}

// ClampScore maps raw cosine similarity into the [0,1] hit score range.
// Real embedding models can produce slightly negative similarity for
// unrelated text; below zero there is no ranking signal left, only
// "irrelevant".
func ClampScore(s float32) float64 {
	if s <= 0 {
		return 0
	}
	if s >= 1 {
		return 1
	}
	return float64(s)
}

func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float32
	for i := 0; i < len(a); i++ {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (float32(math.Sqrt(float64(magA))) * float32(math.Sqrt(float64(magB))))
}
