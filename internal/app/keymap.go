package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all application keybindings.
type KeyMap struct {
	Quit key.Binding
	Back key.Binding

	// Probes
	Edit    key.Binding
	Start   key.Binding
	Cancel  key.Binding
	Discard key.Binding
	Copy    key.Binding
	Filter  key.Binding

	// Navigation
	TaskUp      key.Binding
	TaskDown    key.Binding
	BackendPrev key.Binding
	BackendNext key.Binding
	PageUp      key.Binding
	PageDown    key.Binding
	CycleView   key.Binding
}

// DefaultKeyMap returns the default keybinding configuration.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back/quit"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit host"),
		),
		Start: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "start probe"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cancel"),
		),
		Discard: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "discard"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filter"),
		),
		TaskUp: key.NewBinding(
			key.WithKeys("up"),
			key.WithHelp("↑", "prev task"),
		),
		TaskDown: key.NewBinding(
			key.WithKeys("down"),
			key.WithHelp("↓", "next task"),
		),
		BackendPrev: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "prev backend"),
		),
		BackendNext: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "next backend"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "page down"),
		),
		CycleView: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "switch view"),
		),
	}
}

// ShortHelp lists the bindings shown in the help line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.BackendPrev, k.BackendNext, k.TaskUp, k.TaskDown, k.PageUp, k.PageDown,
		k.Edit, k.CycleView, k.Cancel, k.Discard, k.Filter, k.Copy, k.Back,
	}
}
