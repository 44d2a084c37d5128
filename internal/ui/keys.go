package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the keyboard bindings shown in help.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Escape     key.Binding

	// View switching
	ViewEntities      key.Binding
	ViewFacets        key.Binding
	ViewSummaries     key.Binding
	ViewSources       key.Binding
	ViewNotifications key.Binding
	ViewUsage         key.Binding

	// Listing actions
	Primary     key.Binding
	Open        key.Binding
	Delete      key.Binding
	MarkAllRead key.Binding
	Favorites   key.Binding
	Search      key.Binding
	Refresh     key.Binding
	NextPage    key.Binding
	PrevPage    key.Binding

	// Navigation
	Up     key.Binding
	Down   key.Binding
	Top    key.Binding
	Bottom key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next view"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous view"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Back to entities"),
		),

		ViewEntities: key.NewBinding(
			key.WithKeys("1", "e"),
			key.WithHelp("1/e", "Entities"),
		),
		ViewFacets: key.NewBinding(
			key.WithKeys("2", "v"),
			key.WithHelp("2/v", "Facet values"),
		),
		ViewSummaries: key.NewBinding(
			key.WithKeys("3", "s"),
			key.WithHelp("3/s", "Summaries"),
		),
		ViewSources: key.NewBinding(
			key.WithKeys("4", "c"),
			key.WithHelp("4/c", "Crawl sources"),
		),
		ViewNotifications: key.NewBinding(
			key.WithKeys("5", "n"),
			key.WithHelp("5/n", "Notifications"),
		),
		ViewUsage: key.NewBinding(
			key.WithKeys("6", "u"),
			key.WithHelp("6/u", "Usage"),
		),

		Primary: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "Act on row"),
		),
		Open: key.NewBinding(
			key.WithKeys("o", "O"),
			key.WithHelp("o/O", "Open detail / refetch"),
		),
		Delete: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Delete facet value"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("M"),
			key.WithHelp("M", "Mark all read"),
		),
		Favorites: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Favorites only"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "Search listing"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Refresh listing"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "Next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "Previous page"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Go to top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Go to bottom"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ViewEntities, k.ViewFacets, k.ViewSummaries},
		{k.ViewSources, k.ViewNotifications, k.ViewUsage},
		{k.Up, k.Down, k.Top, k.Bottom},
		{k.Primary, k.Open, k.Delete, k.MarkAllRead, k.Favorites},
		{k.Search, k.Refresh, k.NextPage, k.PrevPage},
		{k.CycleTheme, k.Help, k.Quit},
	}
}
