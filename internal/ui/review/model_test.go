package review

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mail-triage/internal/model"
)

type fakeQueue struct {
	pending []model.Message

	approved  []string
	cancelled []string
	rejected  []string
	drafts    map[string]string

	approveErr error
}

func (f *fakeQueue) Pending(_ context.Context, _ string, _ int) ([]model.Message, error) {
	return append([]model.Message(nil), f.pending...), nil
}

func (f *fakeQueue) remove(id string) {
	for i, m := range f.pending {
		if m.MessageID == id {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return
		}
	}
}

func (f *fakeQueue) Approve(_ context.Context, id, _ string) (*model.Message, error) {
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	f.approved = append(f.approved, id)
	f.remove(id)
	return &model.Message{MessageID: "reply-" + id, To: "client@x.example"}, nil
}

func (f *fakeQueue) UpdateDraft(_ context.Context, id, body string) error {
	if f.drafts == nil {
		f.drafts = make(map[string]string)
	}
	f.drafts[id] = body
	return nil
}

func (f *fakeQueue) Cancel(_ context.Context, id string) error {
	f.cancelled = append(f.cancelled, id)
	f.remove(id)
	return nil
}

func (f *fakeQueue) Reject(_ context.Context, id string) error {
	f.rejected = append(f.rejected, id)
	f.remove(id)
	return nil
}

func newQueue() *fakeQueue {
	at := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	return &fakeQueue{pending: []model.Message{
		{MessageID: "q1@x.example", Subject: "Login broken", From: "ana@x.example",
			Body: "I cannot log in.", ReplyDraft: "We are on it.", Enrichment: model.Enrichment{Urgency: 80}, CreatedAt: at},
		{MessageID: "q2@x.example", Subject: "Invoice", From: "bob@x.example",
			Body: "Please pay.", ReplyDraft: "Paid.", Enrichment: model.Enrichment{Urgency: 20}, CreatedAt: at.Add(time.Hour)},
	}}
}

func press(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// settle runs cmd and feeds its message back into m.
func settle(t *testing.T, m Model, cmd tea.Cmd) (Model, tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	return update(m, cmd())
}

func started(t *testing.T, q *fakeQueue) Model {
	t.Helper()
	m := New(q, "", 100, 30)
	m, _ = settle(t, m, m.Init())
	require.Len(t, m.list.Items(), len(q.pending))
	return m
}

func TestReviewApproveFromList(t *testing.T) {
	q := newQueue()
	m := started(t, q)

	m, cmd := update(m, press("a"))
	m, reload := settle(t, m, cmd)
	assert.Equal(t, []string{"q1@x.example"}, q.approved)
	assert.Equal(t, "Reply sent to client@x.example.", m.status)
	assert.False(t, m.statusErr)

	m, _ = settle(t, m, reload)
	require.Len(t, m.list.Items(), 1)
	sel, ok := m.selected()
	require.True(t, ok)
	assert.Equal(t, "q2@x.example", sel.MessageID)
}

func TestReviewEditDraftThenApprove(t *testing.T) {
	q := newQueue()
	m := started(t, q)

	m, _ = update(m, press("enter"))
	require.Equal(t, modeDetail, m.mode)
	assert.Contains(t, m.viewport.View(), "Login broken")

	m, _ = update(m, press("e"))
	require.Equal(t, modeEdit, m.mode)
	assert.Equal(t, "We are on it.", m.editor.Value())

	m.editor.SetValue("Fixed, please retry.")
	m, cmd := update(m, press("ctrl+s"))
	m, _ = settle(t, m, cmd)
	assert.Equal(t, "Fixed, please retry.", q.drafts["q1@x.example"])
	assert.Equal(t, modeDetail, m.mode)
	assert.Equal(t, "Fixed, please retry.", m.current.ReplyDraft)

	m, cmd = update(m, press("a"))
	m, _ = settle(t, m, cmd)
	assert.Equal(t, []string{"q1@x.example"}, q.approved)
	assert.Equal(t, modeList, m.mode)
	assert.Nil(t, m.current)
}

func TestReviewBlankDraftIsNotSaved(t *testing.T) {
	q := newQueue()
	m := started(t, q)

	m, _ = update(m, press("e"))
	m.editor.SetValue("   ")
	m, cmd := update(m, press("ctrl+s"))
	assert.Nil(t, cmd)
	assert.True(t, m.statusErr)
	assert.Equal(t, modeEdit, m.mode)
	assert.Empty(t, q.drafts)

	m, _ = update(m, press("esc"))
	assert.Equal(t, modeDetail, m.mode)
	assert.Empty(t, q.drafts)
}

func TestReviewCancelAndReject(t *testing.T) {
	q := newQueue()
	m := started(t, q)

	m, _ = update(m, press("enter"))
	m, cmd := update(m, press("c"))
	m, reload := settle(t, m, cmd)
	assert.Equal(t, []string{"q1@x.example"}, q.cancelled)
	assert.Equal(t, modeList, m.mode)
	m, _ = settle(t, m, reload)

	m, cmd = update(m, press("r"))
	_, _ = settle(t, m, cmd)
	assert.Equal(t, []string{"q2@x.example"}, q.rejected)
	assert.Empty(t, q.pending)
}

func TestReviewFailedActionKeepsDetail(t *testing.T) {
	q := newQueue()
	q.approveErr = errors.New("smtp: connection refused")
	m := started(t, q)

	m, _ = update(m, press("enter"))
	m, cmd := update(m, press("a"))
	assert.True(t, m.busy)

	// A second key while the first action runs is ignored.
	_, second := update(m, press("a"))
	assert.Nil(t, second)

	m, _ = settle(t, m, cmd)
	assert.Equal(t, modeDetail, m.mode)
	assert.True(t, m.statusErr)
	assert.Contains(t, m.status, "connection refused")
	assert.False(t, m.busy)
	assert.Len(t, q.pending, 2)
}

func TestReviewEmptyQueueAndQuit(t *testing.T) {
	m := started(t, &fakeQueue{})
	assert.Contains(t, m.View(), "Nothing is waiting for approval.")

	_, cmd := update(m, press("q"))
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want string
	}{
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-50 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, relativeTime(now, tt.at))
	}
}
