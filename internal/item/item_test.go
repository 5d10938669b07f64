package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerFormatFor(t *testing.T) {
	cases := map[int]string{2: "concise", 5: "structured", 10: "detailed"}
	for mark, want := range cases {
		got, ok := AnswerFormatFor(mark)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}

	for _, mark := range []int{0, 1, 3, 7, 100, -2} {
		_, ok := AnswerFormatFor(mark)
		assert.False(t, ok, "mark %d must be rejected", mark)
		assert.False(t, ValidMark(mark))
	}
}

func TestNotFoundInvariant(t *testing.T) {
	it := NotFound("abc123", "job1", "stacks", 5, GenerationMetadata{ModelID: "m"})

	assert.Equal(t, StatusNotFound, it.Status)
	assert.Empty(t, it.AnswerText)
	assert.Empty(t, it.PageReferences)
	assert.Empty(t, it.VerbatimQuotes)
	assert.Empty(t, it.RetrievalScores)
	assert.Equal(t, "structured", it.AnswerFormat)
	assert.Equal(t, "stacks", it.QuestionText)
	require.NoError(t, it.Validate())
}

func TestValidate(t *testing.T) {
	good := GeneratedItem{ID: "a", MarkValue: 2, AnswerFormat: "concise", AnswerText: "x", Status: StatusFound}
	assert.NoError(t, good.Validate())

	noID := good
	noID.ID = ""
	assert.Error(t, noID.Validate())

	badMark := good
	badMark.MarkValue = 3
	assert.Error(t, badMark.Validate())

	mismatch := good
	mismatch.AnswerFormat = "detailed"
	assert.Error(t, mismatch.Validate())

	notFoundWithAnswer := GeneratedItem{ID: "a", MarkValue: 2, AnswerFormat: "concise",
		AnswerText: "leftover", Status: StatusNotFound}
	assert.Error(t, notFoundWithAnswer.Validate())

	notFoundWithRefs := GeneratedItem{ID: "a", MarkValue: 2, AnswerFormat: "concise",
		PageReferences: []string{"doc.pdf:1"}, Status: StatusNotFound}
	assert.Error(t, notFoundWithRefs.Validate())
}

func TestCanApprove(t *testing.T) {
	for status, want := range map[Status]bool{
		StatusFound:       true,
		StatusNeedsReview: true,
		StatusNotFound:    false,
		StatusApproved:    false,
	} {
		it := GeneratedItem{Status: status}
		assert.Equal(t, want, it.CanApprove(), "status %s", status)
	}
}

func TestQuoteWordCount(t *testing.T) {
	assert.Equal(t, 0, VerbatimQuote{Text: "  "}.WordCount())
	assert.Equal(t, 5, VerbatimQuote{Text: "push and pop\n operate  on"}.WordCount())
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
}

func TestAggregate(t *testing.T) {
	items := []GeneratedItem{
		{Status: StatusFound},
		{Status: StatusFound},
		{Status: StatusNotFound},
		{Status: StatusNeedsReview},
		{Status: StatusApproved},
	}

	want := CoverageReport{Total: 5, Found: 2, NotFound: 1, NeedsReview: 1, Approved: 1}
	assert.Equal(t, want, Aggregate(items))

	// Order independence.
	reversed := make([]GeneratedItem, len(items))
	for i, it := range items {
		reversed[len(items)-1-i] = it
	}
	assert.Equal(t, want, Aggregate(reversed))
}

func TestMerge(t *testing.T) {
	a := CoverageReport{Total: 2, Found: 1, NotFound: 1}
	b := CoverageReport{Total: 3, Found: 1, NeedsReview: 1, Approved: 1}
	c := CoverageReport{Total: 1, NotFound: 1}

	// Commutative.
	assert.Equal(t, Merge(a, b), Merge(b, a))

	// Associative.
	assert.Equal(t, Merge(Merge(a, b), c), Merge(a, Merge(b, c)))

	// Merging split halves equals aggregating the whole.
	items := []GeneratedItem{{Status: StatusFound}, {Status: StatusNotFound}, {Status: StatusNeedsReview}}
	whole := Aggregate(items)
	split := Merge(Aggregate(items[:1]), Aggregate(items[1:]))
	assert.Equal(t, whole, split)
}
