package contact

import (
	"strings"
	"time"

	"github.com/nhle/mail-triage/internal/model"
)

var (
	positiveKeywords = []string{
		"thanks", "thank you", "teşekkür",
		"approved", "approval", "onay",
		"confirmed", "confirmation",
	}
	negativeKeywords = []string{
		"cancel", "iptal", "error", "hata", "failure", "failed",
	}
)

// Score returns the relationship score after one more mail with the given
// body. Recent contact earns more: under two days +5, under a week +3,
// otherwise +1, and a first contact +2. A positive keyword adds 2 and a
// negative keyword subtracts 2, each at most once. The result is clamped to
// [ScoreMin, ScoreMax].
func Score(previous int, body string, lastContact *time.Time, now time.Time) int {
	score := previous

	if lastContact == nil {
		score += 2
	} else {
		gap := now.Sub(*lastContact)
		switch {
		case gap < 48*time.Hour:
			score += 5
		case gap < 7*24*time.Hour:
			score += 3
		default:
			score++
		}
	}

	lower := strings.ToLower(body)
	if containsAny(lower, positiveKeywords) {
		score += 2
	}
	if containsAny(lower, negativeKeywords) {
		score -= 2
	}

	return clamp(score, model.ScoreMin, model.ScoreMax)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
