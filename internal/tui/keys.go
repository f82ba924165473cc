package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	New       key.Binding
	Up        key.Binding
	Down      key.Binding
	Delete    key.Binding
	Sources   key.Binding
	Cache     key.Binding
	AlphaUp   key.Binding
	AlphaDown key.Binding
	Refresh   key.Binding
	Submit    key.Binding
	Cancel    key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		New:       key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new session")),
		Up:        key.NewBinding(key.WithKeys("ctrl+up"), key.WithHelp("ctrl+↑", "prev session")),
		Down:      key.NewBinding(key.WithKeys("ctrl+down"), key.WithHelp("ctrl+↓", "next session")),
		Delete:    key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "delete session")),
		Sources:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "sources")),
		Cache:     key.NewBinding(key.WithKeys("ctrl+k"), key.WithHelp("ctrl+k", "cache")),
		AlphaUp:   key.NewBinding(key.WithKeys("alt+up"), key.WithHelp("alt+↑", "alpha+")),
		AlphaDown: key.NewBinding(key.WithKeys("alt+down"), key.WithHelp("alt+↓", "alpha-")),
		Refresh:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "refresh")),
		Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send/select")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Quit:      key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) help() []key.Binding {
	return []key.Binding{k.Submit, k.New, k.Up, k.Down, k.Delete, k.Sources, k.Cache, k.AlphaUp, k.AlphaDown, k.Refresh, k.Quit}
}
