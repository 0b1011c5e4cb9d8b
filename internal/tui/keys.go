package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	quit   key.Binding
	back   key.Binding
	save   key.Binding
	retry  key.Binding
	start  key.Binding
	exit   key.Binding
	up     key.Binding
	down   key.Binding
	reload key.Binding
}

var defaultKeymap = keyMap{
	quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	save: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "save results"),
	),
	retry: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "retry"),
	),
	start: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "start test"),
	),
	exit: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
	up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	reload: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "reload"),
	),
}
