package msgid

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// idPattern matches one angle-bracketed message identifier.
var idPattern = regexp.MustCompile(`<([^<>\s]+)>`)

// Normalize strips surrounding whitespace and angle brackets.
func Normalize(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}

// Extract pulls every message identifier out of a header value such as
// References. Bracketed ids are preferred; a header without brackets is
// split on whitespace. Returns a deduplicated list preserving the order of
// first occurrence.
func Extract(header string) []string {
	var ids []string
	if matches := idPattern.FindAllStringSubmatch(header, -1); len(matches) > 0 {
		for _, m := range matches {
			ids = append(ids, m[1])
		}
	} else {
		for _, field := range strings.Fields(header) {
			ids = append(ids, Normalize(field))
		}
	}
	return dedup(ids)
}

// Merge appends extra ids to base, dropping blanks and duplicates while
// keeping first-occurrence order. It never mutates base.
func Merge(base []string, extra ...string) []string {
	all := make([]string, 0, len(base)+len(extra))
	for _, id := range base {
		all = append(all, Normalize(id))
	}
	for _, id := range extra {
		all = append(all, Normalize(id))
	}
	return dedup(all)
}

// Bracket wraps a bare id in angle brackets for a protocol header.
func Bracket(id string) string {
	return "<" + Normalize(id) + ">"
}

// New returns a fresh identifier for an outbound message sent from domain.
func New(domain string) string {
	if domain == "" {
		domain = "localhost"
	}
	return uuid.New().String() + "@" + domain
}

// Synthesize returns a placeholder identifier for a message that arrived
// without one.
func Synthesize() string {
	return "gen-" + uuid.New().String()
}

func dedup(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(ids))
	var result []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result
}
