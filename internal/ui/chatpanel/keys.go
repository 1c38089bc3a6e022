package chatpanel

import "github.com/charmbracelet/bubbles/key"

// KeyMap binds the chat panel actions.
type KeyMap struct {
	Send    key.Binding
	Newline key.Binding
	Record  key.Binding
	Up      key.Binding
	Down    key.Binding
}

// DefaultKeyMap returns the default chat bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "보내기"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter"),
			key.WithHelp("alt+enter", "줄바꿈"),
		),
		Record: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "음성 입력"),
		),
		Up: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "위로"),
		),
		Down: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "아래로"),
		),
	}
}
