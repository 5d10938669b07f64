package grounding

import (
	"strings"
	"testing"

	"github.com/GaneshTappiti/notes-to-material/internal/corpus"
	"github.com/GaneshTappiti/notes-to-material/internal/item"
	"github.com/GaneshTappiti/notes-to-material/internal/retrieval"

	"github.com/stretchr/testify/assert"
)

func testHits() []retrieval.Hit {
	return []retrieval.Hit{
		{Page: corpus.SourcePage{Document: "notes_ch1.pdf", PageNo: 3,
			Text: "A stack is a LIFO data structure.\nPush and pop operate on the top element."}, Score: 0.82},
		{Page: corpus.SourcePage{Document: "notes_ch1.pdf", PageNo: 4,
			Text: "Stack overflow occurs when the stack exceeds its capacity."}, Score: 0.41},
	}
}

func TestClassify_Found(t *testing.T) {
	res := Classify(Payload{
		Answer:         "A stack is a LIFO structure.",
		Status:         item.StatusFound,
		PageReferences: []string{"notes_ch1.pdf:3", "notes_ch1.pdf:4"},
		VerbatimQuotes: []item.VerbatimQuote{
			{Text: "a stack is a LIFO data structure", Page: "notes_ch1.pdf:3"},
		},
	}, testHits(), 0.35)

	assert.Equal(t, item.StatusFound, res.Status)
	assert.Equal(t, []float64{0.82, 0.41}, res.Scores)
}

func TestClassify_EmptyAnswerIsNotFound(t *testing.T) {
	res := Classify(Payload{
		Answer:         "   ",
		Status:         item.StatusFound,
		PageReferences: []string{"notes_ch1.pdf:3"},
	}, testHits(), 0.35)

	assert.Equal(t, item.StatusNotFound, res.Status)
	assert.Empty(t, res.Scores)
}

func TestClassify_DeclaredNotFoundWins(t *testing.T) {
	res := Classify(Payload{
		Answer:         "Some answer text anyway.",
		Status:         item.StatusNotFound,
		PageReferences: []string{"notes_ch1.pdf:3"},
	}, testHits(), 0.35)

	assert.Equal(t, item.StatusNotFound, res.Status)
}

func TestClassify_ZeroCitationsIsNotFound(t *testing.T) {
	res := Classify(Payload{
		Answer: "An answer with no evidence.",
		Status: item.StatusFound,
	}, testHits(), 0.35)

	assert.Equal(t, item.StatusNotFound, res.Status)
}

func TestClassify_UnknownReferenceNeedsReview(t *testing.T) {
	res := Classify(Payload{
		Answer:         "A stack is a LIFO structure.",
		Status:         item.StatusFound,
		PageReferences: []string{"notes_ch1.pdf:3", "other.pdf:9"},
	}, testHits(), 0.35)

	assert.Equal(t, item.StatusNeedsReview, res.Status)
	// Scores cover only the verifiable references.
	assert.Equal(t, []float64{0.82}, res.Scores)
}

func TestClassify_UnverifiableQuoteNeedsReview(t *testing.T) {
	res := Classify(Payload{
		Answer:         "A stack is a LIFO structure.",
		Status:         item.StatusFound,
		PageReferences: []string{"notes_ch1.pdf:3"},
		VerbatimQuotes: []item.VerbatimQuote{
			{Text: "this sentence is not on the page", Page: "notes_ch1.pdf:3"},
		},
	}, testHits(), 0.35)

	assert.Equal(t, item.StatusNeedsReview, res.Status)
}

func TestClassify_LowScoreNeedsReview(t *testing.T) {
	res := Classify(Payload{
		Answer:         "Stack overflow exceeds capacity.",
		Status:         item.StatusFound,
		PageReferences: []string{"notes_ch1.pdf:4"},
	}, testHits(), 0.5)

	assert.Equal(t, item.StatusNeedsReview, res.Status)
	assert.Equal(t, []float64{0.41}, res.Scores)
}

func TestQuoteVerifies(t *testing.T) {
	hits := testHits()
	byRef := map[string]retrieval.Hit{
		hits[0].Page.Ref(): hits[0],
	}

	// Case and line breaks are normalized away.
	assert.True(t, QuoteVerifies(item.VerbatimQuote{
		Text: "LIFO data structure. push and pop", Page: "notes_ch1.pdf:3"}, byRef))

	// Wrong page.
	assert.False(t, QuoteVerifies(item.VerbatimQuote{
		Text: "a stack is", Page: "notes_ch1.pdf:4"}, byRef))

	// Over the word cap.
	long := strings.Repeat("word ", item.MaxQuoteWords+1)
	assert.False(t, QuoteVerifies(item.VerbatimQuote{Text: long, Page: "notes_ch1.pdf:3"}, byRef))

	// Empty quote.
	assert.False(t, QuoteVerifies(item.VerbatimQuote{Text: "  ", Page: "notes_ch1.pdf:3"}, byRef))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a stack is a lifo structure", Normalize("  A stack\n\tis   a LIFO\nstructure"))
	assert.Equal(t, "", Normalize(" \n\t "))
}
