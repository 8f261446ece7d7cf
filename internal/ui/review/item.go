package review

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mail-triage/internal/model"
)

// messageItem wraps a queued message for bubbles/list.
type messageItem struct {
	msg model.Message
}

func (i messageItem) FilterValue() string { return i.msg.Subject }

// sender prefers the display name over the address.
func (i messageItem) sender() string {
	if i.msg.FromName != "" {
		return i.msg.FromName
	}
	return i.msg.From
}

// itemDelegate renders one line per queued message.
type itemDelegate struct {
	now func() time.Time
}

func (d itemDelegate) Height() int                             { return 1 }
func (d itemDelegate) Spacing() int                            { return 0 }
func (d itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(messageItem)
	if !ok {
		return
	}

	urgency := urgencyStyle(it.msg.Urgency).Render(fmt.Sprintf("%3d", it.msg.Urgency))
	subject := it.msg.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	line := fmt.Sprintf("%-24s  %s", clip(it.sender(), 24), subject)
	age := metaStyle.Render(relativeTime(d.now(), it.msg.CreatedAt))

	if index == m.Index() {
		fmt.Fprintf(w, "%s %s %s  %s", selectedStyle.Render("▸"), urgency, selectedStyle.Render(line), age)
		return
	}
	fmt.Fprintf(w, "  %s %s  %s", urgency, valueStyle.Render(line), age)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// relativeTime renders how long ago t was, coarsely.
func relativeTime(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// renderMessage builds the detail text for a queued message.
func renderMessage(m model.Message, width int) string {
	var sections []string

	sections = append(sections, sectionHead.Render(m.Subject))
	field := func(name, value string) {
		if value != "" {
			sections = append(sections, fmt.Sprintf("%s %s", metaStyle.Render(fmt.Sprintf("%-10s", name+":")), valueStyle.Render(value)))
		}
	}
	from := m.From
	if m.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.FromName, m.From)
	}
	field("From", from)
	field("To", m.To)
	field("Received", m.CreatedAt.Local().Format("2006-01-02 15:04"))
	if m.Category != "" {
		field("Category", fmt.Sprintf("%s (urgency %d)", m.Category, m.Urgency))
	}
	field("Tags", strings.Join(m.Tags, ", "))
	if m.Classifier.Fallback {
		field("Classifier", "unavailable, reply assumed")
	}
	if m.Forced {
		field("Forced", "yes")
	}

	sep := metaStyle.Render(strings.Repeat("─", max(min(width-4, 80), 10)))
	sections = append(sections, "", sep, "", strings.TrimSpace(m.Body))
	for _, a := range m.Attachments {
		sections = append(sections, metaStyle.Render(fmt.Sprintf("[attachment] %s (%d bytes)", a.Filename, a.Size)))
	}
	sections = append(sections, "", sep, "", sectionHead.Render("Draft reply"), "", strings.TrimSpace(m.ReplyDraft))

	return strings.Join(sections, "\n")
}
