// Package ai holds the LLM-backed stages of the pipeline: classification,
// enrichment, reply drafting, and embeddings. Every stage tolerates empty or
// malformed model output.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/mail-triage/internal/model"
)

// Options tunes a single completion.
type Options struct {
	// MaxTokens caps the generated length. Zero means the backend default.
	MaxTokens int

	// Temperature is passed through when positive.
	Temperature float64

	// JSON asks the backend to constrain output to a JSON object when it
	// supports that.
	JSON bool
}

// LLM is a text completion backend.
type LLM interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// New builds the completion backend selected by cfg, wrapped with the
// configured rate limit and per-call timeout.
func New(cfg model.AIConfig) (LLM, error) {
	var backend LLM
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		c, err := NewOllama(cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		backend = c
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("ai provider anthropic requires ai.api_key")
		}
		backend = NewAnthropic(cfg.APIKey, cfg.Model, cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	return WithLimits(backend, cfg.RequestsPerSecond, timeout), nil
}
