package ai

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-triage/internal/model"
)

// Embedder turns text into a vector. Implementations never fail: a
// disabled or broken backend yields an empty vector.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// embedBackend is the capability LazyEmbedder needs from a client.
type embedBackend interface {
	Embed(ctx context.Context, embedModel, text string) ([]float32, error)
}

// LazyEmbedder builds its backend on first use.
type LazyEmbedder struct {
	enabled bool
	model   string
	open    func() (embedBackend, error)
	gate    gate
	log     logrus.FieldLogger

	once    sync.Once
	backend embedBackend
}

// NewEmbedder returns an Embedder that connects to Ollama on first use.
// Calls share the rate limit and per-call timeout of the completion backend.
// When cfg.EmbeddingsEnabled is false every call returns nil.
func NewEmbedder(cfg model.AIConfig, log logrus.FieldLogger) *LazyEmbedder {
	return &LazyEmbedder{
		enabled: cfg.EmbeddingsEnabled,
		model:   cfg.EmbedModel,
		gate:    newGate(cfg.RequestsPerSecond, time.Duration(cfg.TimeoutSec)*time.Second),
		log:     log,
		open: func() (embedBackend, error) {
			c, err := NewOllama(cfg.BaseURL, cfg.Model)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

// Embed returns the vector for text, or nil when embeddings are disabled,
// text is blank, or the backend fails.
func (e *LazyEmbedder) Embed(ctx context.Context, text string) []float32 {
	if !e.enabled || strings.TrimSpace(text) == "" {
		return nil
	}

	e.once.Do(func() {
		backend, err := e.open()
		if err != nil {
			e.log.WithError(err).Warn("embedding backend unavailable, embeddings disabled")
			return
		}
		e.backend = backend
	})
	if e.backend == nil {
		return nil
	}

	ctx, cancel, err := e.gate.enter(ctx)
	if err != nil {
		e.log.WithError(err).WithField("stage", "embed").Debug("embedding skipped")
		return nil
	}
	defer cancel()

	vec, err := e.backend.Embed(ctx, e.model, strings.ReplaceAll(text, "\n", " "))
	if err != nil {
		e.log.WithError(err).WithField("stage", "embed").Debug("embedding failed")
		return nil
	}
	return vec
}
