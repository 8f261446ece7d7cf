package contact

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/mail-triage/internal/model"
)

func TestScore(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	tests := []struct {
		name     string
		previous int
		body     string
		last     *time.Time
		want     int
	}{
		{"first contact", 50, "hello", nil, 52},
		{"within two days", 50, "hello", ago(24 * time.Hour), 55},
		{"within a week", 50, "hello", ago(72 * time.Hour), 53},
		{"older", 50, "hello", ago(30 * 24 * time.Hour), 51},
		{"positive once", 50, "Thanks! thank you, approved", ago(30 * 24 * time.Hour), 53},
		{"negative once", 50, "error, failed, iptal", ago(30 * 24 * time.Hour), 49},
		{"both", 50, "thanks for reporting the error", ago(30 * 24 * time.Hour), 51},
		{"turkish positive", 50, "Teşekkürler, onaylandı", nil, 54},
		{"clamped high", 99, "thanks", ago(time.Hour), 100},
		{"clamped low", 0, "cancel", ago(30 * 24 * time.Hour), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.previous, tt.body, tt.last, now))
		})
	}
}

func TestScoreStaysBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	bodies := []string{"", "thanks", "cancel", "error and thanks", "plain"}
	now := time.Now()

	for run := 0; run < 200; run++ {
		score := rng.Intn(101)
		var last *time.Time
		for step := 0; step < 50; step++ {
			score = Score(score, bodies[rng.Intn(len(bodies))], last, now)
			assert.GreaterOrEqual(t, score, model.ScoreMin)
			assert.LessOrEqual(t, score, model.ScoreMax)

			at := now.Add(-time.Duration(rng.Intn(400)) * time.Hour)
			last = &at
		}
	}
}
