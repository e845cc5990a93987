package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	enter    key.Binding
	back     key.Binding
	tab      key.Binding
	filter   key.Binding
	next     key.Binding
	prev     key.Binding
	end      key.Binding
	shuffle  key.Binding
	repeat   key.Binding
	shuffleQ key.Binding
	add      key.Binding
	create   key.Binding
	rename   key.Binding
	remove   key.Binding
	yes      key.Binding
	no       key.Binding
	help     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play/open")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		tab:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "library/playlists")),
		filter:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
		next:     key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n/→", "next")),
		prev:     key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p/←", "previous")),
		end:      key.NewBinding(key.WithKeys("."), key.WithHelp(".", "end track")),
		shuffle:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "shuffle")),
		repeat:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "repeat")),
		shuffleQ: key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "shuffle play")),
		add:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add to playlist")),
		create:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "new playlist")),
		rename:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "rename")),
		remove:   key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("d", "delete/remove")),
		yes:      key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:       key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.enter, k.tab, k.next, k.shuffle, k.repeat, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back, k.tab},
		{k.next, k.prev, k.end, k.shuffle, k.repeat, k.shuffleQ},
		{k.filter, k.add, k.create, k.rename, k.remove},
		{k.help, k.quit},
	}
}
