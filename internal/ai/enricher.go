package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-triage/internal/model"
	"github.com/nhle/mail-triage/internal/tag"
)

// Enricher extracts structured metadata from a message body.
type Enricher struct {
	llm LLM
	log logrus.FieldLogger
}

// NewEnricher returns an Enricher over llm.
func NewEnricher(llm LLM, log logrus.FieldLogger) *Enricher {
	return &Enricher{llm: llm, log: log}
}

// enrichmentPayload mirrors the JSON object the model is asked for. Fields
// are loose because models routinely return strings for numbers and the
// like.
type enrichmentPayload struct {
	Task       *model.ExtractedTask `json:"task"`
	Insight    *string              `json:"insight"`
	Category   *string              `json:"category"`
	Urgency    json.RawMessage      `json:"urgency_score"`
	IsProposal json.RawMessage      `json:"is_proposal"`
	Tags       []string             `json:"tags"`
}

// Enrich returns the metadata for body. Tag slugs outside catalog are
// dropped. On any failure the zero Enrichment (empty category, urgency 0,
// no tags) is returned together with the error, so callers can log and
// carry on.
func (e *Enricher) Enrich(ctx context.Context, body string, catalog []model.Tag) (model.Enrichment, error) {
	raw, err := e.llm.Complete(ctx, enrichPrompt(body, catalog), Options{JSON: true})
	if err != nil {
		return model.Enrichment{}, fmt.Errorf("enrichment call: %w", err)
	}

	result, err := parseEnrichment(raw)
	if err != nil {
		return model.Enrichment{}, err
	}

	kept, dropped := tag.Filter(result.Tags, catalog)
	if len(dropped) > 0 {
		e.log.WithFields(logrus.Fields{"stage": "enrich", "dropped": dropped}).
			Info("dropped tags outside the catalog")
	}
	result.Tags = kept
	return result, nil
}

// parseEnrichment locates the JSON object inside free text (first '{' to
// last '}') and applies defaults for missing keys.
func parseEnrichment(raw string) (model.Enrichment, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return model.Enrichment{}, errors.New("enrichment answer has no JSON object")
	}

	var p enrichmentPayload
	if err := json.Unmarshal([]byte(raw[start:end+1]), &p); err != nil {
		return model.Enrichment{}, fmt.Errorf("decoding enrichment: %w", err)
	}

	var out model.Enrichment
	if p.Category != nil {
		out.Category = strings.TrimSpace(*p.Category)
	}
	if p.Insight != nil {
		out.Insight = strings.TrimSpace(*p.Insight)
	}
	if p.Task != nil && strings.TrimSpace(p.Task.Title) != "" {
		out.Task = &model.ExtractedTask{
			Title: strings.TrimSpace(p.Task.Title),
			Date:  strings.TrimSpace(p.Task.Date),
		}
	}
	out.Urgency = clampUrgency(looseNumber(p.Urgency))
	out.IsProposal = looseBool(p.IsProposal)
	out.Tags = p.Tags
	return out, nil
}

// looseNumber accepts a JSON number or a numeric string. Out-of-range
// strings parse to ±Inf.
func looseNumber(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil || errors.Is(err, strconv.ErrRange) {
			return n
		}
	}
	return 0
}

func looseBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, _ := strconv.ParseBool(strings.TrimSpace(s))
		return v
	}
	return false
}

// clampUrgency bounds v to [0, 100] before truncating, so huge or
// non-finite model output never overflows the int conversion.
func clampUrgency(v float64) int {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 100:
		return 100
	}
	return int(v)
}
