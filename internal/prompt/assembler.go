package prompt

import (
	"fmt"
	"strings"

	"github.com/GaneshTappiti/notes-to-material/internal/genclient"
	"github.com/GaneshTappiti/notes-to-material/internal/item"
	"github.com/GaneshTappiti/notes-to-material/internal/retrieval"
)

// TemplateID identifies the prompt layout an item was generated with,
// recorded in generation metadata.
const TemplateID = "strict-qa-v1"

// RepairTemplateID marks repair follow-ups.
const RepairTemplateID = "strict-qa-repair-v1"

// GenerationRequest is one immutable generation attempt input. Built once
// per item attempt; identical inputs produce byte-identical prompts.
type GenerationRequest struct {
	Topic          string
	MarkValue      int
	Hits           []retrieval.Hit
	StrictSourcing bool
	// Ungroundable is set when the hit set is empty: the pipeline must
	// short-circuit to NOT_FOUND without calling the model, because strict
	// sourcing can never be satisfied by an empty corpus.
	Ungroundable bool
	Prompt       string
	TemplateID   string
}

// Builder constructs the strict generation and repair prompts.
type Builder struct{}

const systemMessage = `SYSTEM:
You are an academic answer generator. You MUST ONLY use the exact text present in the FILE blocks below.
Do not use outside knowledge. If the answer is not present in the provided files, return "status": "NOT_FOUND" with an empty answer.
Return output only in the exact JSON schema described under OUTPUT.`

var depthInstructions = map[int]string{
	2:  "Write a concise answer of 2-4 sentences.",
	5:  "Write a structured answer with short labelled points covering each aspect found in the files.",
	10: "Write a detailed answer with an introduction, full explanation of every relevant aspect found in the files, and a closing summary.",
}

// Assemble deterministically turns (topic, mark, hits, strict) into a
// GenerationRequest. Caller errors (bad mark, empty topic) surface as
// InvalidArgument.
func (b *Builder) Assemble(topic string, mark int, hits []retrieval.Hit, strict bool) (GenerationRequest, error) {
	if strings.TrimSpace(topic) == "" {
		return GenerationRequest{}, genclient.Errorf(genclient.KindInvalidArgument, "topic must not be empty")
	}
	format, ok := item.AnswerFormatFor(mark)
	if !ok {
		return GenerationRequest{}, genclient.Errorf(genclient.KindInvalidArgument, "mark value must be one of {2,5,10}, got %d", mark)
	}

	req := GenerationRequest{
		Topic:          topic,
		MarkValue:      mark,
		Hits:           hits,
		StrictSourcing: strict,
		Ungroundable:   len(hits) == 0,
		TemplateID:     TemplateID,
	}

	var sb strings.Builder
	sb.WriteString(systemMessage)
	sb.WriteString("\n\nFILES:\n")
	sb.WriteString(AssembleContext(hits))

	fmt.Fprintf(&sb, "\nTask: %s marks=%d\n", topic, mark)
	sb.WriteString(depthInstructions[mark])
	sb.WriteString("\n")
	if strict {
		sb.WriteString("Strict sourcing is ON: every factual claim must be traceable to one of the FILE blocks above.\n")
	}

	sb.WriteString("\nOUTPUT:\n")
	sb.WriteString("Return a single JSON object with exactly these fields:\n")
	fmt.Fprintf(&sb, `{"question_id": string, "question_text": string, "marks": %d, "answer": string, "answer_format": "%s", `, mark, format)
	sb.WriteString(`"page_references": ["document:page", ...], "diagram_images": [string, ...], `)
	sb.WriteString(`"verbatim_quotes": [{"text": string, "page": "document:page"}, ...], "status": "FOUND" or "NOT_FOUND"}`)
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Every page reference must name one of the FILE blocks. Every verbatim quote must be at most %d words copied exactly from its cited page.\n", item.MaxQuoteWords)
	sb.WriteString("If the files do not contain the answer, set status to NOT_FOUND, answer to \"\", and leave page_references and verbatim_quotes empty.\n")
	sb.WriteString("JSON only:")

	req.Prompt = sb.String()
	return req, nil
}

// BuildRepairPrompt re-issues a request with the prior malformed output and
// an explicit conformance instruction. The repaired prompt keeps the full
// original context so the model can re-derive the answer, not just reformat.
func (b *Builder) BuildRepairPrompt(req GenerationRequest, badOutput string, parseErr error) string {
	var sb strings.Builder
	sb.WriteString(req.Prompt)
	sb.WriteString("\n\n# REPAIR\n")
	sb.WriteString("Your previous output could not be parsed")
	if parseErr != nil {
		fmt.Fprintf(&sb, " (%v)", parseErr)
	}
	sb.WriteString(". It was:\n")
	sb.WriteString(strings.TrimSpace(badOutput))
	sb.WriteString("\nEmit STRICT VALID JSON matching the OUTPUT schema above. No commentary, no code fences.\nJSON only:")
	return sb.String()
}

// AssembleContext formats retrieved pages into FILE blocks:
//
//	FILE:<document>:<page>
//	<text>
//
// Hits are assumed already sorted by descending score.
func AssembleContext(hits []retrieval.Hit) string {
	if len(hits) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(hits))
	for _, h := range hits {
		text := strings.TrimSpace(h.Page.Text)
		blocks = append(blocks, fmt.Sprintf("FILE:%s:%d\n%s\n", h.Page.Document, h.Page.PageNo, text))
	}
	return strings.Join(blocks, "\n") + "\n"
}
