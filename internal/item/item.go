package item

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the grounding outcome of a generated item.
type Status string

const (
	// StatusFound means every reference and quote verified against the corpus.
	StatusFound Status = "FOUND"
	// StatusNotFound means no grounded answer could be derived. The item
	// carries an empty answer and no references.
	StatusNotFound Status = "NOT_FOUND"
	// StatusNeedsReview means the answer is kept but a reference, quote, or
	// retrieval score failed verification; a human must adjudicate.
	StatusNeedsReview Status = "NEEDS_REVIEW"
	// StatusApproved is set by an explicit reviewer action, reachable only
	// from FOUND or NEEDS_REVIEW.
	StatusApproved Status = "APPROVED"
)

// ValidMarks are the supported exam point-weights.
var ValidMarks = []int{2, 5, 10}

// answerFormats is the closed mark-value → answer depth mapping.
var answerFormats = map[int]string{
	2:  "concise",
	5:  "structured",
	10: "detailed",
}

// AnswerFormatFor returns the answer format for a mark value.
func AnswerFormatFor(mark int) (string, bool) {
	f, ok := answerFormats[mark]
	return f, ok
}

// ValidMark reports whether the mark value is one of {2, 5, 10}.
func ValidMark(mark int) bool {
	_, ok := answerFormats[mark]
	return ok
}

// VerbatimQuote is a short quote tagged with the "document:page" it was
// copied from. Quotes longer than MaxQuoteWords fail grounding.
type VerbatimQuote struct {
	Text string `json:"text"`
	Page string `json:"page"`
}

// MaxQuoteWords caps quote length.
const MaxQuoteWords = 25

// WordCount counts whitespace-separated words in the quote.
func (q VerbatimQuote) WordCount() int {
	return len(strings.Fields(q.Text))
}

// GenerationMetadata records how an item was produced.
type GenerationMetadata struct {
	PromptTemplate string    `json:"prompt_template"`
	ModelID        string    `json:"model_id"`
	GeneratedAt    time.Time `json:"generated_at"`
	Attempts       int       `json:"attempts"`
	RepairAttempts int       `json:"repair_attempts"`
}

// GeneratedItem is one exam-style question/answer pair with its grounding
// evidence. The id stays stable across regenerations within a job.
type GeneratedItem struct {
	ID              string             `json:"id"`
	JobID           string             `json:"job_id"`
	Topic           string             `json:"topic"`
	QuestionText    string             `json:"question_text"`
	AnswerText      string             `json:"answer_text"`
	MarkValue       int                `json:"mark_value"`
	AnswerFormat    string             `json:"answer_format"`
	PageReferences  []string           `json:"page_references"`
	VerbatimQuotes  []VerbatimQuote    `json:"verbatim_quotes"`
	DiagramImages   []string           `json:"diagram_images,omitempty"`
	RetrievalScores []float64          `json:"retrieval_scores"`
	Status          Status             `json:"status"`
	Metadata        GenerationMetadata `json:"generation_metadata"`
}

// NewID returns a short stable identifier for items and jobs.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// NotFound builds the deterministic fallback item: empty answer, no
// references, no quotes.
func NotFound(id, jobID, topic string, mark int, meta GenerationMetadata) GeneratedItem {
	format := answerFormats[mark]
	return GeneratedItem{
		ID:              id,
		JobID:           jobID,
		Topic:           topic,
		QuestionText:    topic,
		AnswerText:      "",
		MarkValue:       mark,
		AnswerFormat:    format,
		PageReferences:  []string{},
		VerbatimQuotes:  []VerbatimQuote{},
		RetrievalScores: []float64{},
		Status:          StatusNotFound,
		Metadata:        meta,
	}
}

// Validate checks the item's internal invariants.
func (it *GeneratedItem) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("item id is required")
	}
	if !ValidMark(it.MarkValue) {
		return fmt.Errorf("invalid mark value: %d", it.MarkValue)
	}
	if want := answerFormats[it.MarkValue]; it.AnswerFormat != want {
		return fmt.Errorf("answer format %q does not match mark %d (want %q)", it.AnswerFormat, it.MarkValue, want)
	}
	if it.Status == StatusNotFound {
		if it.AnswerText != "" {
			return fmt.Errorf("NOT_FOUND item must have empty answer")
		}
		if len(it.PageReferences) != 0 {
			return fmt.Errorf("NOT_FOUND item must have no page references")
		}
	}
	return nil
}

// CanApprove reports whether the reviewer transition to APPROVED is legal
// from the item's current status.
func (it *GeneratedItem) CanApprove() bool {
	return it.Status == StatusFound || it.Status == StatusNeedsReview
}
