package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()

	sections := []helpSection{
		{
			title: "Views",
			items: []helpItem{
				{"tab", "Cycle views"},
				{"1-6", "Jump to a view"},
				{"e/v/s/c/n/u", "Entities/Facets/Summaries/Sources/Inbox/Usage"},
				{"esc", "Back to entities"},
			},
		},
		{
			title: "Listing",
			items: []helpItem{
				{"j/k", "Move up/down"},
				{"g/G", "Go to top/bottom"},
				{"/", "Search listing"},
				{"r", "Refresh listing"},
				{"[ ]", "Previous/next page"},
			},
		},
		{
			title: "Actions",
			items: []helpItem{
				{"enter", "Act on the selected row"},
				{"o / O", "Open detail / refetch"},
				{"f", "Favorites only (entities)"},
				{"x", "Delete facet value"},
				{"M", "Mark all notifications read"},
			},
		},
		{
			title: "General",
			items: []helpItem{
				{"T", "Cycle theme"},
				{"?", "Toggle help"},
				{"q/ctrl+c", "Quit"},
			},
		},
	}

	var b strings.Builder

	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 34)))
	b.WriteString("\n\n")

	for i, section := range sections {
		b.WriteString(styles.AccentText.Bold(true).Render(section.title))
		b.WriteString("\n")

		for _, item := range section.items {
			keyStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color(m.theme.Warning)).
				Width(13)
			b.WriteString(keyStyle.Render(item.key))
			b.WriteString(styles.Text.Render(item.desc))
			b.WriteString("\n")
		}

		if i < len(sections)-1 {
			b.WriteString("\n")
		}
	}

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(58)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}

type helpSection struct {
	title string
	items []helpItem
}

type helpItem struct {
	key  string
	desc string
}
