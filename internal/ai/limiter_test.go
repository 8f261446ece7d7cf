package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLimitsTimeout(t *testing.T) {
	llm := WithLimits(&scriptedLLM{block: true}, 0, 10*time.Millisecond)

	_, err := llm.Complete(context.Background(), "p", Options{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithLimitsRate(t *testing.T) {
	inner := &scriptedLLM{answer: "ok"}
	llm := WithLimits(inner, 20, 0)

	start := time.Now()
	for i := 0; i < 3; i++ {
		got, err := llm.Complete(context.Background(), "p", Options{})
		require.NoError(t, err)
		assert.Equal(t, "ok", got)
	}
	// Burst of one at 20/s: the second and third calls wait ~50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Len(t, inner.prompts, 3)
}

func TestWithLimitsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &scriptedLLM{answer: "ok"}
	_, err := WithLimits(inner, 1, 0).Complete(ctx, "p", Options{})
	assert.Error(t, err)
	assert.Empty(t, inner.prompts)
}
