package menu

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the selection menu.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding

	Filter      key.Binding // enter filter mode
	FilterClear key.Binding // leave filter mode and drop the filter

	Favorite      key.Binding // toggle favorite on the highlighted profile
	FavoritesOnly key.Binding
	Sort          key.Binding // cycle sort order
	Group         key.Binding // cycle group filter

	Quit key.Binding
}

var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "connect"),
	),
	Filter: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	FilterClear: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear filter"),
	),
	Favorite: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "favorite"),
	),
	FavoritesOnly: key.NewBinding(
		key.WithKeys("*"),
		key.WithHelp("*", "favorites only"),
	),
	Sort: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "sort"),
	),
	Group: key.NewBinding(
		key.WithKeys("g"),
		key.WithHelp("g", "group"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Filter, k.Favorite, k.FavoritesOnly, k.Sort, k.Group, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Filter, k.FilterClear},
		{k.Favorite, k.FavoritesOnly, k.Sort, k.Group},
		{k.Quit},
	}
}
