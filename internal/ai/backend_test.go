package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-triage/internal/logging"
	"github.com/nhle/mail-triage/internal/model"
)

// requestLog records decoded request bodies from the handler goroutine.
type requestLog struct {
	mu   sync.Mutex
	reqs []map[string]any
}

func (l *requestLog) add(req map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reqs = append(l.reqs, req)
}

func (l *requestLog) all() []map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]map[string]any(nil), l.reqs...)
}

func newOllamaServer(t *testing.T) (*httptest.Server, *requestLog) {
	t.Helper()
	requests := &requestLog{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		requests.add(req)

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/generate":
			_, _ = io.WriteString(w, `{"model":"llama3.1","response":"NO","done":true}`+"\n")
		case "/api/embed":
			_, _ = io.WriteString(w, `{"model":"nomic-embed-text","embeddings":[[0.5,0.25]]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, requests
}

func TestOllamaComplete(t *testing.T) {
	srv, requests := newOllamaServer(t)

	c, err := NewOllama(srv.URL, "llama3.1")
	require.NoError(t, err)

	got, err := c.Complete(context.Background(), "classify this", Options{MaxTokens: 8, JSON: true})
	require.NoError(t, err)
	assert.Equal(t, "NO", got)

	reqs := requests.all()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, "llama3.1", req["model"])
	assert.Equal(t, "classify this", req["prompt"])
	assert.Equal(t, false, req["stream"])
	assert.Equal(t, "json", req["format"])
}

func TestNewOllamaRejectsBadURL(t *testing.T) {
	_, err := NewOllama("http://", "m")
	assert.Error(t, err)

	c, err := NewOllama("localhost:11434", "m")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestLazyEmbedder(t *testing.T) {
	srv, requests := newOllamaServer(t)
	cfg := model.AIConfig{BaseURL: srv.URL, EmbedModel: "nomic-embed-text", EmbeddingsEnabled: true}

	e := NewEmbedder(cfg, logging.Discard())
	assert.Nil(t, e.Embed(context.Background(), "   "))
	assert.Empty(t, requests.all())

	vec := e.Embed(context.Background(), "line one\nline two")
	assert.Equal(t, []float32{0.5, 0.25}, vec)
	reqs := requests.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "line one line two", reqs[0]["input"])

	cfg.EmbeddingsEnabled = false
	assert.Nil(t, NewEmbedder(cfg, logging.Discard()).Embed(context.Background(), "text"))
}

func TestLazyEmbedderBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	e := NewEmbedder(model.AIConfig{BaseURL: srv.URL, EmbeddingsEnabled: true}, logging.Discard())
	assert.Nil(t, e.Embed(context.Background(), "text"))
}

func TestLazyEmbedderHungBackendTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	e := NewEmbedder(model.AIConfig{BaseURL: srv.URL, TimeoutSec: 1, EmbeddingsEnabled: true}, logging.Discard())

	done := make(chan []float32, 1)
	go func() { done <- e.Embed(context.Background(), "hello") }()

	select {
	case vec := <-done:
		assert.Nil(t, vec)
	case <-time.After(4 * time.Second):
		t.Fatal("embed ignored ai.timeout_sec")
	}
}

func TestAnthropicComplete(t *testing.T) {
	received := make(chan apiRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		var req apiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received <- req
		_, _ = io.WriteString(w, `{"content":[{"type":"text","text":"YES"},{"type":"text","text":"."}],"stop_reason":"end_turn"}`)
	}))
	t.Cleanup(srv.Close)

	c := NewAnthropic("secret", "", 0)
	c.endpoint = srv.URL

	out, err := c.Complete(context.Background(), "classify", Options{MaxTokens: 8})
	require.NoError(t, err)
	assert.Equal(t, "YES.", out)
	got := <-received
	assert.Equal(t, defaultAnthropicModel, got.Model)
	assert.Equal(t, 8, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "classify", got.Messages[0].Content)
}

func TestAnthropicError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	t.Cleanup(srv.Close)

	c := NewAnthropic("k", "m", 10)
	c.endpoint = srv.URL

	_, err := c.Complete(context.Background(), "p", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow down")
}

func TestNewSelectsProvider(t *testing.T) {
	llm, err := New(model.AIConfig{Provider: "ollama", TimeoutSec: 5})
	require.NoError(t, err)
	assert.IsType(t, &limitedLLM{}, llm)

	_, err = New(model.AIConfig{Provider: "anthropic"})
	assert.Error(t, err)

	_, err = New(model.AIConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}
