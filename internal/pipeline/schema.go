package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"

	"github.com/GaneshTappiti/notes-to-material/internal/genclient"
	"github.com/GaneshTappiti/notes-to-material/internal/item"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// itemSchema is the fixed output contract every generation attempt must
// satisfy before its payload reaches the grounding classifier.
const itemSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "question_id": {"type": "string"},
    "question_text": {"type": "string"},
    "marks": {"type": "integer"},
    "answer": {"type": "string"},
    "answer_format": {"type": "string"},
    "page_references": {"type": "array", "items": {"type": "string"}},
    "diagram_images": {"type": "array", "items": {"type": "string"}},
    "verbatim_quotes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "text": {"type": "string"},
          "page": {"type": "string"}
        },
        "required": ["text", "page"]
      }
    },
    "status": {"type": "string", "enum": ["FOUND", "NOT_FOUND"]}
  },
  "required": ["question_text", "marks", "answer", "answer_format", "page_references", "verbatim_quotes", "status"],
  "additionalProperties": true
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadItemSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("item.schema.json", strings.NewReader(itemSchema)); err != nil {
			schemaErr = err
			return
		}
		compiledSchema, schemaErr = compiler.Compile("item.schema.json")
	})
	return compiledSchema, schemaErr
}

// Payload is the parsed, schema-valid model output of one attempt.
type Payload struct {
	QuestionID     string               `json:"question_id"`
	QuestionText   string               `json:"question_text"`
	Marks          int                  `json:"marks"`
	Answer         string               `json:"answer"`
	AnswerFormat   string               `json:"answer_format"`
	PageReferences []string             `json:"page_references"`
	DiagramImages  []string             `json:"diagram_images"`
	VerbatimQuotes []item.VerbatimQuote `json:"verbatim_quotes"`
	Status         item.Status          `json:"status"`
}

// ParsePayload parses raw model output against the item schema. Code fences
// are stripped and a lightweight JSON repair is attempted before giving up.
// All failures are KindMalformed so the caller enters the repair loop.
func ParsePayload(raw string) (*Payload, error) {
	text := stripCodeFences(raw)
	if strings.TrimSpace(text) == "" {
		return nil, genclient.Errorf(genclient.KindMalformed, "empty model output")
	}

	var generic any
	if err := json.Unmarshal([]byte(text), &generic); err != nil {
		repaired, ok := repairJSON(text)
		if !ok {
			return nil, genclient.Errorf(genclient.KindMalformed, "json parse error: %v", err)
		}
		if err := json.Unmarshal([]byte(repaired), &generic); err != nil {
			return nil, genclient.Errorf(genclient.KindMalformed, "json parse error after repair: %v", err)
		}
		text = repaired
	}

	schema, err := loadItemSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(generic); err != nil {
		return nil, genclient.Errorf(genclient.KindMalformed, "schema validation failed: %v", err)
	}

	var p Payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil, genclient.Errorf(genclient.KindMalformed, "payload decode failed: %v", err)
	}
	return &p, nil
}

// stripCodeFences removes a surrounding ```json / ``` fence if present.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}

var bareKeyRe = regexp.MustCompile(`([,{]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)

// repairJSON attempts a lightweight fix: truncate to the last balanced
// closing brace and quote bare object keys. Returns false when no balanced
// object exists at all.
func repairJSON(text string) (string, bool) {
	openCount := 0
	lastGood := -1
	inString := false
	escaped := false
	for i, ch := range text {
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '{':
			if !inString {
				openCount++
			}
		case '}':
			if !inString {
				openCount--
				if openCount == 0 {
					lastGood = i
				}
			}
		}
	}
	if lastGood == -1 {
		return "", false
	}
	candidate := text[:lastGood+1]
	candidate = bareKeyRe.ReplaceAllString(candidate, `$1"$2"$3`)
	return candidate, true
}
