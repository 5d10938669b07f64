package corpus

import (
	"context"
	"sort"
)

// Store provides read access to ingested pages. The generation pipeline
// never mutates the corpus.
type Store interface {
	// PagesFor returns pages for the given documents, every page when the
	// document set is empty. Ordered by (document, page) ascending.
	PagesFor(ctx context.Context, documents []string) ([]SourcePage, error)
	// PageByRef resolves a single "document:page" reference.
	PageByRef(ctx context.Context, ref string) (SourcePage, bool, error)
}

// MemoryStore keeps pages in memory. Used in tests and for one-shot CLI runs
// that never persist a corpus.
type MemoryStore struct {
	pages map[string]SourcePage
}

func NewMemoryStore(pages ...SourcePage) *MemoryStore {
	m := &MemoryStore{pages: make(map[string]SourcePage, len(pages))}
	for _, p := range pages {
		m.pages[p.Ref()] = p
	}
	return m
}

func (m *MemoryStore) Add(p SourcePage) {
	m.pages[p.Ref()] = p
}

func (m *MemoryStore) PagesFor(ctx context.Context, documents []string) ([]SourcePage, error) {
	filter := make(map[string]bool, len(documents))
	for _, d := range documents {
		filter[d] = true
	}

	out := make([]SourcePage, 0, len(m.pages))
	for _, p := range m.pages {
		if len(filter) > 0 && !filter[p.Document] {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Document == out[j].Document {
			return out[i].PageNo < out[j].PageNo
		}
		return out[i].Document < out[j].Document
	})
	return out, nil
}

func (m *MemoryStore) PageByRef(ctx context.Context, ref string) (SourcePage, bool, error) {
	p, ok := m.pages[ref]
	return p, ok, nil
}
