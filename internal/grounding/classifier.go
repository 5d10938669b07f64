package grounding

import (
	"strings"

	"github.com/GaneshTappiti/notes-to-material/internal/item"
	"github.com/GaneshTappiti/notes-to-material/internal/retrieval"
)

// Payload is the parsed model output the classifier verifies. Only the
// grounding-relevant fields matter here; the pipeline owns the rest.
type Payload struct {
	Answer         string
	Status         item.Status
	PageReferences []string
	VerbatimQuotes []item.VerbatimQuote
}

// Result carries the verdict and the retrieval scores of the cited pages,
// in page-reference order.
type Result struct {
	Status item.Status
	Scores []float64
}

// Classify cross-checks the payload against the hit set it was generated
// from. Rules are evaluated in order: missing grounding evidence outranks
// low-confidence-but-grounded answers, and both outrank good-looking but
// unverifiable text.
func Classify(p Payload, hits []retrieval.Hit, retrievalThreshold float64) Result {
	// Rule 1: empty answer, declared NOT_FOUND, or zero citations.
	if strings.TrimSpace(p.Answer) == "" || p.Status == item.StatusNotFound || len(p.PageReferences) == 0 {
		return Result{Status: item.StatusNotFound, Scores: []float64{}}
	}

	byRef := make(map[string]retrieval.Hit, len(hits))
	for _, h := range hits {
		byRef[h.Page.Ref()] = h
	}

	scores := make([]float64, 0, len(p.PageReferences))
	verified := true
	for _, ref := range p.PageReferences {
		h, ok := byRef[ref]
		if !ok {
			verified = false
			continue
		}
		scores = append(scores, h.Score)
	}

	// Rule 2: every reference must name a retrieved page and every quote
	// must be a normalized substring of its cited page.
	if verified {
		for _, q := range p.VerbatimQuotes {
			if !QuoteVerifies(q, byRef) {
				verified = false
				break
			}
		}
	}
	if !verified {
		return Result{Status: item.StatusNeedsReview, Scores: scores}
	}

	// Rule 3: the weakest cited page decides confidence.
	if minScore(scores) < retrievalThreshold {
		return Result{Status: item.StatusNeedsReview, Scores: scores}
	}

	return Result{Status: item.StatusFound, Scores: scores}
}

// QuoteVerifies checks that the quote cites a retrieved page, respects the
// word cap, and appears verbatim (whitespace/case-normalized) in that page.
func QuoteVerifies(q item.VerbatimQuote, byRef map[string]retrieval.Hit) bool {
	if q.WordCount() == 0 || q.WordCount() > item.MaxQuoteWords {
		return false
	}
	h, ok := byRef[q.Page]
	if !ok {
		return false
	}
	return strings.Contains(Normalize(h.Page.Text), Normalize(q.Text))
}

// Normalize folds case and collapses all whitespace runs to single spaces so
// OCR line breaks and spacing differences do not defeat substring checks.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func minScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	min := scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
	}
	return min
}
