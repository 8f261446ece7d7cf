package thread

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/mail-triage/internal/model"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func msg(id string, minute int, inReplyTo string, refs ...string) model.Message {
	return model.Message{
		MessageID:  id,
		InReplyTo:  inReplyTo,
		References: refs,
		Subject:    "Invoice #4",
		CreatedAt:  t0.Add(time.Duration(minute) * time.Minute),
	}
}

func ids(msgs []model.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.MessageID)
	}
	return out
}

func TestReconstructInvoiceScenario(t *testing.T) {
	candidates := []model.Message{
		msg("M1", 0, ""),
		msg("M2", 1, "M1"),
		msg("M3", 2, "", "M1", "M2"),
		msg("M4", 3, ""),
	}

	assert.Equal(t, []string{"M1", "M2", "M3"}, ids(Reconstruct(candidates, "M1")))
	assert.Equal(t, []string{"M1", "M2", "M3"}, ids(Reconstruct(candidates, "M3")))
	assert.Equal(t, []string{"M4"}, ids(Reconstruct(candidates, "M4")))
}

func TestReconstructMissingTarget(t *testing.T) {
	assert.Empty(t, Reconstruct([]model.Message{msg("a", 0, "")}, "zzz"))
	assert.Empty(t, Reconstruct(nil, "a"))
}

func TestReconstructBracketsAndWhitespace(t *testing.T) {
	candidates := []model.Message{
		msg("root@x", 0, ""),
		msg("child@x", 1, " <root@x> "),
	}
	assert.Equal(t, []string{"root@x", "child@x"}, ids(Reconstruct(candidates, "<child@x>")))
}

func TestReconstructLinksThroughMissingAncestorAreIgnored(t *testing.T) {
	candidates := []model.Message{
		msg("a", 0, "gone"),
		msg("b", 1, "gone"),
	}
	assert.Equal(t, []string{"a"}, ids(Reconstruct(candidates, "a")))
}

func TestReconstructTieBreaksBySeq(t *testing.T) {
	first := msg("first", 0, "")
	first.Seq = 1
	second := msg("second", 0, "first")
	second.Seq = 2

	got := Reconstruct([]model.Message{second, first}, "second")
	assert.Equal(t, []string{"first", "second"}, ids(got))
}

func TestReconstructNeverJoinsBySubjectAlone(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		n := 2 + rng.Intn(8)
		var candidates []model.Message
		for i := 0; i < n; i++ {
			candidates = append(candidates, msg(string(rune('a'+i)), rng.Intn(10), ""))
		}
		for _, m := range candidates {
			got := Reconstruct(candidates, m.MessageID)
			assert.Equal(t, []string{m.MessageID}, ids(got))
		}
	}
}

func TestGroup(t *testing.T) {
	candidates := []model.Message{
		msg("A1", 0, ""),
		msg("B1", 1, ""),
		msg("A2", 5, "A1"),
		msg("C1", 3, ""),
		msg("B2", 2, "", "B1"),
	}

	groups := Group(candidates)
	var got [][]string
	for _, g := range groups {
		got = append(got, ids(g))
	}
	assert.Equal(t, [][]string{{"A1", "A2"}, {"C1"}, {"B1", "B2"}}, got)
}
