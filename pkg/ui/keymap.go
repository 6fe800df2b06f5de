package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	SubmitMessage    key.Binding
	CancelCompletion key.Binding
	DismissError     key.Binding

	NewConversation  key.Binding
	PrevConversation key.Binding
	NextConversation key.Binding
	Regenerate       key.Binding

	ScrollUp   key.Binding
	ScrollDown key.Binding

	Help key.Binding
	Quit key.Binding
}

var DefaultKeyMap = KeyMap{
	SubmitMessage: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	CancelCompletion: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "stop"),
	),
	DismissError: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "dismiss"),
	),
	NewConversation: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("ctrl+n", "new conversation"),
	),
	PrevConversation: key.NewBinding(
		key.WithKeys("ctrl+up"),
		key.WithHelp("ctrl+↑", "previous conversation"),
	),
	NextConversation: key.NewBinding(
		key.WithKeys("ctrl+down"),
		key.WithHelp("ctrl+↓", "next conversation"),
	),
	Regenerate: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "regenerate"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdown", "scroll down"),
	),
	Help: key.NewBinding(
		key.WithKeys("f1"),
		key.WithHelp("f1", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SubmitMessage, k.CancelCompletion, k.DismissError, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.SubmitMessage, k.CancelCompletion, k.DismissError, k.Regenerate},
		{k.NewConversation, k.PrevConversation, k.NextConversation},
		{k.ScrollUp, k.ScrollDown, k.Help, k.Quit},
	}
}
