package prompt

import (
	"errors"
	"testing"

	"github.com/GaneshTappiti/notes-to-material/internal/corpus"
	"github.com/GaneshTappiti/notes-to-material/internal/genclient"
	"github.com/GaneshTappiti/notes-to-material/internal/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHits() []retrieval.Hit {
	return []retrieval.Hit{
		{Page: corpus.SourcePage{Document: "notes_ch1.pdf", PageNo: 3,
			Text: "A stack is a LIFO data structure."}, Score: 0.9},
		{Page: corpus.SourcePage{Document: "notes_ch2.pdf", PageNo: 7,
			Text: "A queue is a FIFO data structure."}, Score: 0.6},
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	var b Builder
	first, err := b.Assemble("stacks", 5, sampleHits(), true)
	require.NoError(t, err)
	second, err := b.Assemble("stacks", 5, sampleHits(), true)
	require.NoError(t, err)

	assert.Equal(t, first.Prompt, second.Prompt)
	assert.Equal(t, TemplateID, first.TemplateID)
	assert.False(t, first.Ungroundable)
}

func TestAssemble_PromptContent(t *testing.T) {
	var b Builder
	req, err := b.Assemble("stacks", 10, sampleHits(), true)
	require.NoError(t, err)

	assert.Contains(t, req.Prompt, "FILE:notes_ch1.pdf:3\nA stack is a LIFO data structure.\n")
	assert.Contains(t, req.Prompt, "FILE:notes_ch2.pdf:7\n")
	assert.Contains(t, req.Prompt, "Task: stacks marks=10")
	assert.Contains(t, req.Prompt, `"answer_format": "detailed"`)
	assert.Contains(t, req.Prompt, "Strict sourcing is ON")
	assert.Contains(t, req.Prompt, `"status": "FOUND" or "NOT_FOUND"`)
}

func TestAssemble_StrictOff(t *testing.T) {
	var b Builder
	req, err := b.Assemble("stacks", 2, sampleHits(), false)
	require.NoError(t, err)
	assert.NotContains(t, req.Prompt, "Strict sourcing is ON")
}

func TestAssemble_EmptyHitsIsUngroundable(t *testing.T) {
	var b Builder
	req, err := b.Assemble("stacks", 2, nil, true)
	require.NoError(t, err)
	assert.True(t, req.Ungroundable)
}

func TestAssemble_CallerErrors(t *testing.T) {
	var b Builder

	_, err := b.Assemble("  ", 2, sampleHits(), true)
	require.Error(t, err)
	assert.True(t, genclient.IsInvalidArgument(err))

	_, err = b.Assemble("stacks", 4, sampleHits(), true)
	require.Error(t, err)
	assert.True(t, genclient.IsInvalidArgument(err))
}

func TestBuildRepairPrompt(t *testing.T) {
	var b Builder
	req, err := b.Assemble("stacks", 5, sampleHits(), true)
	require.NoError(t, err)

	repair := b.BuildRepairPrompt(req, "  {broken output  ", errors.New("unexpected end of input"))

	assert.Contains(t, repair, req.Prompt)
	assert.Contains(t, repair, "# REPAIR")
	assert.Contains(t, repair, "{broken output")
	assert.Contains(t, repair, "unexpected end of input")
}

func TestAssembleContext(t *testing.T) {
	assert.Equal(t, "", AssembleContext(nil))

	ctx := AssembleContext(sampleHits())
	assert.Equal(t, "FILE:notes_ch1.pdf:3\nA stack is a LIFO data structure.\n\n"+
		"FILE:notes_ch2.pdf:7\nA queue is a FIFO data structure.\n\n", ctx)
}
