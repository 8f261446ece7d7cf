package review

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the review screen bindings.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Open   key.Binding
	Back   key.Binding
	Quit   key.Binding
	Reload key.Binding

	// Queue actions
	Approve key.Binding
	Edit    key.Binding
	Cancel  key.Binding
	Reject  key.Binding

	// Editor
	Save    key.Binding
	Discard key.Binding
}

// DefaultKeyMap returns the default review bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Reload: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "reload"),
		),
		Approve: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "approve & send"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit draft"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cancel"),
		),
		Reject: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reject"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save draft"),
		),
		Discard: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "discard"),
		),
	}
}

// listKeys adapts the bindings for the queue list to help.KeyMap.
type listKeys struct{ KeyMap }

func (k listKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Approve, k.Edit, k.Cancel, k.Reject, k.Reload, k.Quit}
}

func (k listKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Open}, {k.Approve, k.Edit, k.Cancel, k.Reject}, {k.Reload, k.Quit}}
}

type detailKeys struct{ KeyMap }

func (k detailKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Approve, k.Edit, k.Cancel, k.Reject, k.Back}
}

func (k detailKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

type editKeys struct{ KeyMap }

func (k editKeys) ShortHelp() []key.Binding { return []key.Binding{k.Save, k.Discard} }

func (k editKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }
