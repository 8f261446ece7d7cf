// Package review is the interactive approval queue: a list of messages
// waiting for approval, a detail pane with the drafted reply, and an editor
// for the draft.
package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mail-triage/internal/model"
)

// Queue is the approval workflow the screen drives. *approval.Workflow
// satisfies it.
type Queue interface {
	Pending(ctx context.Context, accountID string, limit int) ([]model.Message, error)
	Approve(ctx context.Context, messageID, editedBody string) (*model.Message, error)
	UpdateDraft(ctx context.Context, messageID, body string) error
	Cancel(ctx context.Context, messageID string) error
	Reject(ctx context.Context, messageID string) error
}

type mode int

const (
	modeList mode = iota
	modeDetail
	modeEdit
)

// chrome is the number of lines taken by the status line and help footer.
const chrome = 3

// queueLoadedMsg carries a fresh snapshot of the queue.
type queueLoadedMsg struct {
	msgs []model.Message
	err  error
}

// actionDoneMsg reports a finished approve, cancel, or reject.
type actionDoneMsg struct {
	messageID string
	result    string
	err       error
}

// draftSavedMsg reports a finished draft edit.
type draftSavedMsg struct {
	messageID string
	body      string
	err       error
}

// Model is the root review screen.
type Model struct {
	queue     Queue
	accountID string
	keys      KeyMap

	list     list.Model
	viewport viewport.Model
	editor   textarea.Model
	help     help.Model

	mode      mode
	current   *model.Message
	status    string
	statusErr bool
	busy      bool

	width  int
	height int
}

// New builds the review screen over q. An empty accountID reviews every
// account.
func New(q Queue, accountID string, width, height int) Model {
	l := list.New([]list.Item{}, itemDelegate{now: time.Now}, width, height-chrome)
	l.Title = "Approval queue"
	l.Styles.Title = headerStyle
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.KeyMap.Quit.SetEnabled(false)

	vp := viewport.New(width, height-chrome)
	vp.Style = lipgloss.NewStyle().Padding(0, 1)

	ta := textarea.New()
	ta.Placeholder = "Reply..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetWidth(width - 2)
	ta.SetHeight(max(height-chrome-2, 3))

	h := help.New()
	h.Width = width

	return Model{
		queue:     q,
		accountID: accountID,
		keys:      DefaultKeyMap(),
		list:      l,
		viewport:  vp,
		editor:    ta,
		help:      h,
		width:     width,
		height:    height,
	}
}

// Run shows the review screen full-screen until the operator quits or ctx
// is cancelled.
func Run(ctx context.Context, q Queue, accountID string) error {
	p := tea.NewProgram(New(q, accountID, 80, 24), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init loads the queue.
func (m Model) Init() tea.Cmd {
	return m.load()
}

// Update handles messages for the review screen.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case queueLoadedMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
			return m, nil
		}
		items := make([]list.Item, len(msg.msgs))
		for i, qm := range msg.msgs {
			items[i] = messageItem{msg: qm}
		}
		m.list.Title = fmt.Sprintf("Approval queue (%d)", len(items))
		return m, m.list.SetItems(items)

	case actionDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
			return m, nil
		}
		m.mode = modeList
		m.current = nil
		m.setStatus(msg.result, false)
		return m, m.load()

	case draftSavedMsg:
		m.busy = false
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
			return m, nil
		}
		if m.current != nil && m.current.MessageID == msg.messageID {
			m.current.ReplyDraft = msg.body
			m.viewport.SetContent(renderMessage(*m.current, m.width))
		}
		m.editor.Blur()
		m.mode = modeDetail
		m.setStatus("Draft saved.", false)
		return m, m.load()

	case tea.KeyMsg:
		switch m.mode {
		case modeEdit:
			return m.updateEdit(msg)
		case modeDetail:
			return m.updateDetail(msg)
		default:
			return m.updateList(msg)
		}
	}

	var cmd tea.Cmd
	switch m.mode {
	case modeEdit:
		m.editor, cmd = m.editor.Update(msg)
	case modeDetail:
		m.viewport, cmd = m.viewport.Update(msg)
	default:
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Reload):
		return m, m.load()
	case key.Matches(msg, m.keys.Open):
		if sel, ok := m.selected(); ok {
			m.open(sel)
		}
		return m, nil
	}

	if sel, ok := m.selected(); ok {
		if next, cmd, handled := m.act(msg, sel); handled {
			return next, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.mode = modeList
		m.current = nil
		return m, nil
	}

	if m.current != nil {
		if next, cmd, handled := m.act(msg, *m.current); handled {
			return next, cmd
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Discard):
		m.editor.Blur()
		m.mode = modeDetail
		return m, nil
	case key.Matches(msg, m.keys.Save):
		body := strings.TrimSpace(m.editor.Value())
		if body == "" {
			m.setStatus("The reply must not be empty.", true)
			return m, nil
		}
		if m.busy || m.current == nil {
			return m, nil
		}
		m.busy = true
		m.setStatus("Saving draft...", false)
		q, id := m.queue, m.current.MessageID
		return m, func() tea.Msg {
			err := q.UpdateDraft(context.Background(), id, body)
			return draftSavedMsg{messageID: id, body: body, err: err}
		}
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

// act maps a queue action key onto target. handled is false when msg is not
// an action key.
func (m Model) act(msg tea.KeyMsg, target model.Message) (next Model, cmd tea.Cmd, handled bool) {
	id := target.MessageID
	q := m.queue

	var run func(context.Context) (string, error)
	switch {
	case key.Matches(msg, m.keys.Edit):
		m.current = &target
		m.mode = modeEdit
		m.editor.SetValue(target.ReplyDraft)
		return m, m.editor.Focus(), true

	case key.Matches(msg, m.keys.Approve):
		run = func(ctx context.Context) (string, error) {
			reply, err := q.Approve(ctx, id, "")
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Reply sent to %s.", reply.To), nil
		}

	case key.Matches(msg, m.keys.Cancel):
		run = func(ctx context.Context) (string, error) {
			return fmt.Sprintf("Cancelled %s.", id), q.Cancel(ctx, id)
		}

	case key.Matches(msg, m.keys.Reject):
		run = func(ctx context.Context) (string, error) {
			return fmt.Sprintf("Rejected %s.", id), q.Reject(ctx, id)
		}

	default:
		return m, nil, false
	}

	if m.busy {
		return m, nil, true
	}
	m.busy = true
	m.setStatus("Working...", false)
	return m, func() tea.Msg {
		result, err := run(context.Background())
		return actionDoneMsg{messageID: id, result: result, err: err}
	}, true
}

func (m *Model) open(target model.Message) {
	m.current = &target
	m.mode = modeDetail
	m.viewport.SetContent(renderMessage(target, m.width))
	m.viewport.GotoTop()
}

func (m Model) selected() (model.Message, bool) {
	it, ok := m.list.SelectedItem().(messageItem)
	return it.msg, ok
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

// load returns a tea.Cmd that reads the whole queue.
func (m Model) load() tea.Cmd {
	q, accountID := m.queue, m.accountID
	return func() tea.Msg {
		msgs, err := q.Pending(context.Background(), accountID, 0)
		return queueLoadedMsg{msgs: msgs, err: err}
	}
}

func (m *Model) setSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-chrome)
	m.viewport.Width = width
	m.viewport.Height = height - chrome
	m.editor.SetWidth(width - 2)
	m.editor.SetHeight(max(height-chrome-2, 3))
	m.help.Width = width
	if m.current != nil {
		m.viewport.SetContent(renderMessage(*m.current, width))
	}
}

// View renders the active pane, a status line, and key help.
func (m Model) View() string {
	var body string
	var keys help.KeyMap

	switch m.mode {
	case modeEdit:
		title := "Edit reply"
		if m.current != nil {
			title = "Edit reply to " + m.current.Subject
		}
		body = lipgloss.JoinVertical(lipgloss.Left, headerStyle.Render(title), "", m.editor.View())
		keys = editKeys{m.keys}
	case modeDetail:
		body = m.viewport.View()
		keys = detailKeys{m.keys}
	default:
		if len(m.list.Items()) == 0 {
			body = lipgloss.NewStyle().
				Width(m.width).
				Height(m.height-chrome).
				Align(lipgloss.Center, lipgloss.Center).
				Foreground(colorGray).
				Render("Nothing is waiting for approval.")
		} else {
			body = m.list.View()
		}
		keys = listKeys{m.keys}
	}

	status := ""
	if m.status != "" {
		style := okStyle
		if m.statusErr {
			style = errStyle
		}
		status = style.Render(m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, status, m.help.View(keys))
}
