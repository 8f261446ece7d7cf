package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-triage/internal/logging"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		answer       string
		err          error
		wantReply    bool
		wantFallback bool
	}{
		{"no means reply", "NO", nil, true, false},
		{"lowercase no", "no.", nil, true, false},
		{"yes means skip", "YES", nil, false, false},
		{"yes with prose", "Yes, this is a newsletter.", nil, false, false},
		{"empty", "", nil, true, true},
		{"gibberish", "maybe later", nil, true, true},
		{"not is not no", "NOT SURE", nil, true, true},
		{"answer too late", "I think that overall the answer is NO", nil, true, true},
		{"error", "", errors.New("connection refused"), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &scriptedLLM{answer: tt.answer, err: tt.err}
			c := NewClassifier(llm, logging.Discard())

			got := c.Classify(context.Background(), "Subject: hi\n\nbody")
			assert.Equal(t, tt.wantReply, got.RequiresReply)
			assert.Equal(t, tt.wantFallback, got.Fallback)
			require.Len(t, llm.prompts, 1)
			assert.Contains(t, llm.prompts[0], "YES or NO")
		})
	}
}

func TestClassifyTimeoutFailsOpen(t *testing.T) {
	llm := WithLimits(&scriptedLLM{block: true}, 0, 20*time.Millisecond)
	c := NewClassifier(llm, logging.Discard())

	start := time.Now()
	assert.True(t, c.RequiresReply(context.Background(), "body"))
	assert.Less(t, time.Since(start), 2*time.Second)
}
