package ai

import (
	"context"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mail-triage/internal/model"
)

// answerWindow is how many leading words of a model answer are inspected
// for a YES or NO.
const answerWindow = 5

// Classifier decides whether a message needs a human reply.
type Classifier struct {
	llm LLM
	log logrus.FieldLogger
}

// NewClassifier returns a Classifier over llm.
func NewClassifier(llm LLM, log logrus.FieldLogger) *Classifier {
	return &Classifier{llm: llm, log: log}
}

// Classify asks whether mail is automated, advertising, or spam. "NO" means
// a reply is required and "YES" means it is not. Errors, timeouts, and
// answers that are neither fail open: a reply is required and Fallback is
// set.
func (c *Classifier) Classify(ctx context.Context, mail string) model.Classification {
	raw, err := c.llm.Complete(ctx, classifyPrompt(mail), Options{MaxTokens: 8})
	if err != nil {
		c.log.WithError(err).WithField("stage", "classify").Warn("classification failed, assuming reply needed")
		return model.Classification{RequiresReply: true, Fallback: true}
	}

	switch parseYesNo(raw) {
	case "NO":
		return model.Classification{RequiresReply: true, Raw: raw}
	case "YES":
		return model.Classification{RequiresReply: false, Raw: raw}
	default:
		c.log.WithFields(logrus.Fields{"stage": "classify", "answer": raw}).
			Warn("unusable classification answer, assuming reply needed")
		return model.Classification{RequiresReply: true, Raw: raw, Fallback: true}
	}
}

// RequiresReply is Classify reduced to its boolean outcome.
func (c *Classifier) RequiresReply(ctx context.Context, mail string) bool {
	return c.Classify(ctx, mail).RequiresReply
}

// parseYesNo returns "YES", "NO", or "" for the first decisive word among
// the leading words of answer.
func parseYesNo(answer string) string {
	words := strings.FieldsFunc(strings.ToUpper(answer), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for i, w := range words {
		if i >= answerWindow {
			break
		}
		if w == "YES" || w == "NO" {
			return w
		}
	}
	return ""
}
