package ai

import (
	"fmt"
	"strings"

	"github.com/nhle/mail-triage/internal/model"
)

// maxPromptBody bounds how much of a mail body is sent to the model.
const maxPromptBody = 6000

var toneInstructions = map[string]string{
	model.ToneFormal:   "Use a professional, polite, and corporate tone.",
	model.ToneFriendly: "Use a friendly, warm, and casual tone.",
}

func truncate(s string) string {
	if len(s) <= maxPromptBody {
		return s
	}
	cut := maxPromptBody
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func classifyPrompt(mail string) string {
	var sb strings.Builder
	sb.WriteString("Is the following email automated, advertising, or spam?\n")
	sb.WriteString("Answer with exactly one word: YES or NO.\n\n")
	sb.WriteString("EMAIL:\n")
	sb.WriteString(truncate(mail))
	sb.WriteString("\n")
	return sb.String()
}

func enrichPrompt(body string, catalog []model.Tag) string {
	var sb strings.Builder
	sb.WriteString("You are an executive assistant. Analyze the email below and answer ONLY with a JSON object.\n\n")
	sb.WriteString("FIELDS:\n")
	sb.WriteString("1. \"task\": a meeting, deadline, or action item in the email as {\"title\": \"...\", \"date\": \"YYYY-MM-DD\"}, or null.\n")
	sb.WriteString("2. \"insight\": a lasting fact about the sender (habits, preferences), or null.\n")
	sb.WriteString("3. \"category\": one of \"Proposal\", \"Complaint\", \"Payment\", \"Question\", \"Appointment\", \"Other\".\n")
	sb.WriteString("4. \"urgency_score\": integer from 0 (not urgent) to 100 (critical).\n")
	sb.WriteString("5. \"is_proposal\": true when the email is an offer or a question that needs approval.\n")
	sb.WriteString("6. \"tags\": zero or more slugs chosen ONLY from the list below.\n\n")

	sb.WriteString("AVAILABLE TAGS:\n")
	if len(catalog) == 0 {
		sb.WriteString("(none, return an empty list)\n")
	}
	for _, t := range catalog {
		if t.Description != "" {
			fmt.Fprintf(&sb, "- %s: %s\n", t.Slug, t.Description)
		} else {
			fmt.Fprintf(&sb, "- %s: %s\n", t.Slug, t.Name)
		}
	}

	sb.WriteString("\nEMAIL:\n")
	sb.WriteString(truncate(body))
	sb.WriteString("\n\nFORMAT:\n")
	sb.WriteString(`{"task": {"title": "...", "date": "YYYY-MM-DD"}, "insight": "...", "category": "...", "urgency_score": 0, "is_proposal": false, "tags": []}`)
	sb.WriteString("\n")
	return sb.String()
}

func draftPrompt(body, tone string) string {
	instruction, ok := toneInstructions[tone]
	if !ok {
		instruction = toneInstructions[model.ToneFormal]
	}

	var sb strings.Builder
	sb.WriteString("You are an email assistant.\n\n")
	sb.WriteString("TASK:\nWrite a reply to the email below, in the language it was written in.\n\n")
	sb.WriteString("RULES:\n")
	sb.WriteString("1. Write ONLY the body of the email.\n")
	sb.WriteString("2. Do NOT write a subject line.\n")
	sb.WriteString("3. Do NOT include placeholders like [Name], [Date], or [Signature].\n")
	sb.WriteString("4. Do NOT make up addresses or phone numbers.\n")
	sb.WriteString("5. Keep the reply short (at most 3 sentences).\n")
	fmt.Fprintf(&sb, "6. %s\n\n", instruction)
	sb.WriteString("INCOMING EMAIL:\n")
	sb.WriteString(truncate(body))
	sb.WriteString("\n\nYOUR REPLY:\n")
	return sb.String()
}
