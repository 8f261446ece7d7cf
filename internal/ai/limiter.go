package ai

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// gate admits calls at a bounded rate and cancels each one after a timeout.
// Non-positive values disable the respective limit.
type gate struct {
	limiter *rate.Limiter
	timeout time.Duration
}

func newGate(rps float64, timeout time.Duration) gate {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return gate{limiter: rate.NewLimiter(limit, 1), timeout: timeout}
}

// enter waits for admission and returns the context the call must run under.
// The returned cancel func is always non-nil.
func (g gate) enter(ctx context.Context) (context.Context, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	if g.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("waiting for rate limit: %w", err)
	}
	return ctx, cancel, nil
}

// limitedLLM throttles and bounds calls to another LLM.
type limitedLLM struct {
	next LLM
	gate gate
}

// WithLimits wraps next so that calls are admitted at most rps per second
// and each one is cancelled after timeout. Non-positive values disable the
// respective limit.
func WithLimits(next LLM, rps float64, timeout time.Duration) LLM {
	return &limitedLLM{next: next, gate: newGate(rps, timeout)}
}

func (l *limitedLLM) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	ctx, cancel, err := l.gate.enter(ctx)
	if err != nil {
		return "", fmt.Errorf("llm: %w", err)
	}
	defer cancel()
	return l.next.Complete(ctx, prompt, opts)
}
