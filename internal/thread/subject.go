package thread

import (
	"regexp"
	"strings"
)

// replyPrefix matches one leading reply/forward marker.
var replyPrefix = regexp.MustCompile(`(?i)^\s*(re|fwd|fw)\s*:\s*`)

// NormalizeSubject strips every leading "re:", "fw:" and "fwd:" marker
// (case-insensitive, optional whitespace around the colon), then lowercases
// and trims. NormalizeSubject(NormalizeSubject(s)) == NormalizeSubject(s).
func NormalizeSubject(subject string) string {
	s := subject
	for {
		loc := replyPrefix.FindStringIndex(s)
		if loc == nil {
			break
		}
		s = s[loc[1]:]
	}
	return strings.ToLower(strings.TrimSpace(s))
}
