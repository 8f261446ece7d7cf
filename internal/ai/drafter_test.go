package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraft(t *testing.T) {
	llm := &scriptedLLM{answer: "  Thank you, the payment is scheduled.  \n"}
	d := NewDrafter(llm)

	got, err := d.Draft(context.Background(), "Please pay invoice 4", "friendly")
	require.NoError(t, err)
	assert.Equal(t, "Thank you, the payment is scheduled.", got)
	assert.Contains(t, llm.prompts[0], "friendly, warm")
}

func TestDraftUnknownToneIsFormal(t *testing.T) {
	llm := &scriptedLLM{answer: "ok"}
	_, err := NewDrafter(llm).Draft(context.Background(), "x", "sarcastic")
	require.NoError(t, err)
	assert.Contains(t, llm.prompts[0], "professional, polite")
}

func TestDraftFailures(t *testing.T) {
	_, err := NewDrafter(&scriptedLLM{answer: "   "}).Draft(context.Background(), "x", "formal")
	assert.ErrorIs(t, err, ErrEmptyDraft)

	boom := errors.New("boom")
	_, err = NewDrafter(&scriptedLLM{err: boom}).Draft(context.Background(), "x", "formal")
	assert.ErrorIs(t, err, boom)
}
