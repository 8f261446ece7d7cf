package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyDraft is returned when the model produced no usable text.
var ErrEmptyDraft = errors.New("model returned an empty draft")

// Drafter writes reply drafts.
type Drafter struct {
	llm LLM
}

// NewDrafter returns a Drafter over llm.
func NewDrafter(llm LLM) *Drafter {
	return &Drafter{llm: llm}
}

// Draft returns a short reply to body in the given tone ("formal" or
// "friendly"; anything else is treated as formal).
func (d *Drafter) Draft(ctx context.Context, body, tone string) (string, error) {
	raw, err := d.llm.Complete(ctx, draftPrompt(body, tone), Options{Temperature: 0.4})
	if err != nil {
		return "", fmt.Errorf("drafting reply: %w", err)
	}
	draft := strings.TrimSpace(raw)
	if draft == "" {
		return "", ErrEmptyDraft
	}
	return draft, nil
}
