package corpus

import (
	"fmt"
	"strconv"
	"strings"
)

// SourcePage is one page of extracted note text, keyed by (document, page).
// Pages are immutable once ingested.
type SourcePage struct {
	Document   string   `json:"document"`
	PageNo     int      `json:"page_no"`
	Text       string   `json:"text"`
	ImagePaths []string `json:"image_paths,omitempty"`
}

// Ref returns the canonical "document:page" key used in page references.
func (p SourcePage) Ref() string {
	return fmt.Sprintf("%s:%d", p.Document, p.PageNo)
}

// ParseRef splits a "document:page" reference. The document name may itself
// contain colons (e.g. scanned file names), so the page number is taken from
// the last segment.
func ParseRef(ref string) (document string, pageNo int, err error) {
	idx := strings.LastIndex(ref, ":")
	if idx <= 0 || idx == len(ref)-1 {
		return "", 0, fmt.Errorf("invalid page reference: %q", ref)
	}
	n, err := strconv.Atoi(ref[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid page number in reference %q", ref)
	}
	return ref[:idx], n, nil
}
