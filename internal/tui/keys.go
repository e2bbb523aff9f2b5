package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up, Down, Prev, Next key.Binding
	Toggle, Add, Edit    key.Binding
	Delete, Search       key.Binding
	Status, Open, Back   key.Binding
	Refresh, Help, Quit  key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Prev:    key.NewBinding(key.WithKeys("left", "h", "pgup"), key.WithHelp("←/h", "prev page")),
		Next:    key.NewBinding(key.WithKeys("right", "l", "pgdown"), key.WithHelp("→/l", "next page")),
		Toggle:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Search:  key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Status:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "status")),
		Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Back:    key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Add, k.Edit, k.Delete, k.Search, k.Status, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Prev, k.Next},
		{k.Toggle, k.Add, k.Edit, k.Delete},
		{k.Search, k.Status, k.Open, k.Back},
		{k.Refresh, k.Help, k.Quit},
	}
}

// detailKeys is the reduced map shown on the detail screen.
type detailKeys struct{ keyMap }

func (k detailKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Edit, k.Delete, k.Back, k.Quit}
}

func (k detailKeys) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }
