package ai

import (
	"context"
	"sync"
)

// scriptedLLM returns a fixed answer and records prompts.
type scriptedLLM struct {
	mu      sync.Mutex
	answer  string
	err     error
	block   bool
	prompts []string
	opts    []Options
}

func (s *scriptedLLM) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.opts = append(s.opts, opts)
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.answer, s.err
}
