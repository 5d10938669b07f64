package retrieval

import (
	"context"
	"testing"

	"github.com/GaneshTappiti/notes-to-material/internal/corpus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEmbedder struct {
	vectors map[string][]float32
}

func (f *fixedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{1, 0}
		}
	}
	return out, nil
}

func (f *fixedEmbedder) Dimension() int { return 2 }

func seededIndex(t *testing.T) *MemoryIndex {
	t.Helper()
	index := NewMemoryIndex()
	require.NoError(t, index.Add(context.Background(), []VectorItem{
		{Page: corpus.SourcePage{Document: "a.pdf", PageNo: 1, Text: "alpha"}, Embedding: []float32{1, 0}},
		{Page: corpus.SourcePage{Document: "a.pdf", PageNo: 2, Text: "beta"}, Embedding: []float32{0.8, 0.6}},
		{Page: corpus.SourcePage{Document: "b.pdf", PageNo: 1, Text: "gamma"}, Embedding: []float32{0, 1}},
	}))
	return index
}

func TestRetrieve_RankedAndTruncated(t *testing.T) {
	r := NewRetriever(&fixedEmbedder{}, seededIndex(t))

	hits, err := r.Retrieve(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "a.pdf:1", hits[0].Page.Ref())
	assert.Equal(t, "a.pdf:2", hits[1].Page.Ref())
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestRetrieve_EmptyCorpus(t *testing.T) {
	r := NewRetriever(&fixedEmbedder{}, NewMemoryIndex())

	hits, err := r.Retrieve(context.Background(), "query", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestRetrieve_CallerErrors(t *testing.T) {
	r := NewRetriever(&fixedEmbedder{}, seededIndex(t))

	_, err := r.Retrieve(context.Background(), "   ", 5)
	assert.Error(t, err)

	_, err = r.Retrieve(context.Background(), "query", 0)
	assert.Error(t, err)
}

func TestRetrieveFiltered(t *testing.T) {
	r := NewRetriever(&fixedEmbedder{}, seededIndex(t))

	hits, err := r.RetrieveFiltered(context.Background(), "query", 5, []string{"b.pdf"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b.pdf", hits[0].Page.Document)
}

func TestSortHits_DeterministicTies(t *testing.T) {
	hits := []Hit{
		{Page: corpus.SourcePage{Document: "b.pdf", PageNo: 2}, Score: 0.5},
		{Page: corpus.SourcePage{Document: "a.pdf", PageNo: 9}, Score: 0.5},
		{Page: corpus.SourcePage{Document: "a.pdf", PageNo: 1}, Score: 0.5},
		{Page: corpus.SourcePage{Document: "c.pdf", PageNo: 1}, Score: 0.9},
	}
	SortHits(hits)

	got := make([]string, len(hits))
	for i, h := range hits {
		got[i] = h.Page.Ref()
	}
	assert.Equal(t, []string{"c.pdf:1", "a.pdf:1", "a.pdf:9", "b.pdf:2"}, got)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Zero(t, CosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Zero(t, CosineSimilarity(nil, nil))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-0.4))
	assert.Equal(t, 1.0, ClampScore(1.0001))
	assert.InDelta(t, 0.5, ClampScore(0.5), 1e-6)
}

func TestSearch_ScoresStayInUnitRange(t *testing.T) {
	index := NewMemoryIndex()
	require.NoError(t, index.Add(context.Background(), []VectorItem{
		{Page: corpus.SourcePage{Document: "a.pdf", PageNo: 1}, Embedding: []float32{-1, 0}},
	}))

	hits, err := index.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0.0, hits[0].Score)
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder()

	first, err := e.Embed(context.Background(), []string{"stacks", "queues"})
	require.NoError(t, err)
	second, err := e.Embed(context.Background(), []string{"stacks", "queues"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
	assert.Len(t, first[0], e.Dimension())
	assert.NotEqual(t, first[0], first[1])
}

func TestRefs(t *testing.T) {
	assert.Equal(t, []string{"a.pdf:1", "b.pdf:3"}, Refs([]Hit{
		{Page: corpus.SourcePage{Document: "a.pdf", PageNo: 1}},
		{Page: corpus.SourcePage{Document: "b.pdf", PageNo: 3}},
	}))
	assert.Empty(t, Refs(nil))
}
