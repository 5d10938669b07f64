package item

// CoverageReport summarizes the grounding outcomes of a batch. Derived from
// items, never mutated directly.
type CoverageReport struct {
	Total       int `json:"total"`
	Found       int `json:"found_count"`
	NotFound    int `json:"not_found_count"`
	NeedsReview int `json:"needs_review_count"`
	Approved    int `json:"approved_count"`
}

// Aggregate reduces items to a coverage report. Order-independent, so
// partial batches can be aggregated and merged in any order.
func Aggregate(items []GeneratedItem) CoverageReport {
	var r CoverageReport
	for _, it := range items {
		r.Total++
		switch it.Status {
		case StatusFound:
			r.Found++
		case StatusNotFound:
			r.NotFound++
		case StatusNeedsReview:
			r.NeedsReview++
		case StatusApproved:
			r.Approved++
		}
	}
	return r
}

// Merge combines two reports. Associative and commutative, which lets
// streaming jobs fold partial reports as items complete.
func Merge(a, b CoverageReport) CoverageReport {
	return CoverageReport{
		Total:       a.Total + b.Total,
		Found:       a.Found + b.Found,
		NotFound:    a.NotFound + b.NotFound,
		NeedsReview: a.NeedsReview + b.NeedsReview,
		Approved:    a.Approved + b.Approved,
	}
}
