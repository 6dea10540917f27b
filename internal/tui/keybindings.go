package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings for the TUI.
type KeyMap struct {
	// Navigation
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Escape key.Binding

	// Actions
	Filter    key.Binding
	Engine    key.Binding
	Delete    key.Binding
	Spawn     key.Binding
	Processes key.Binding
	Attach    key.Binding
	Kill      key.Binding
	Quit      key.Binding
}

// DefaultKeyMap provides the default key bindings for the TUI.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open"),
	),
	Escape: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Filter: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	Engine: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "engine filter"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete log"),
	),
	Spawn: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new agent"),
	),
	Processes: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "processes"),
	),
	Attach: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "attach"),
	),
	Kill: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "kill"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+q", "ctrl+c", "q"),
		key.WithHelp("ctrl+q", "quit"),
	),
}
