package ui

import (
	"fmt"
	"strings"
)

// renderMain renders the full UI: header, command bar, listing, footer.
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")

	if m.searching {
		b.WriteString(m.searchInput.View())
		b.WriteString("\n")
	}

	if t, ok := m.tables[m.currentView]; ok {
		b.WriteString(t.View())
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

// renderHeader renders the logo, view tabs, and unread badge.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()

	parts := []string{styles.Logo.Render(" canopy ")}

	for _, v := range viewOrder {
		label := viewTitle(v)
		if v == ViewNotifications {
			if unread := m.stores.Notify.Unread(); unread > 0 {
				label = fmt.Sprintf("%s (%d)", label, unread)
			}
		}
		if v == m.currentView {
			parts = append(parts, styles.TabActive.Render(label))
		} else {
			parts = append(parts, styles.TabInactive.Render(label))
		}
	}

	if m.viewLoading(m.currentView) {
		parts = append(parts, m.spinner.View())
	}

	return styles.Header.Width(m.width).Render(strings.Join(parts, " "))
}

// renderCommandBar renders the per-view key hints.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles()

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.currentView {
	case ViewEntities:
		fav := "Favorites"
		if m.favoritesOnly {
			fav = "All"
		}
		commands = []cmd{
			{"enter", "Toggle favorite"},
			{"o", "Detail"},
			{"f", fav},
			{"/", "Search"},
			{"r", "Refresh"},
			{"[/]", "Page"},
		}
	case ViewFacets:
		commands = []cmd{
			{"enter", "Confirm/unconfirm"},
			{"x", "Delete"},
			{"/", "Search"},
			{"r", "Refresh"},
			{"[/]", "Page"},
		}
	case ViewSummaries:
		commands = []cmd{
			{"enter", "Run summary"},
			{"o", "Detail"},
			{"/", "Search"},
			{"r", "Refresh"},
			{"[/]", "Page"},
		}
	case ViewSources:
		commands = []cmd{
			{"enter", "Check now"},
			{"/", "Search"},
			{"r", "Refresh"},
		}
	case ViewNotifications:
		commands = []cmd{
			{"enter", "Mark read"},
			{"M", "Mark all read"},
			{"r", "Refresh"},
		}
	case ViewUsage:
		commands = []cmd{
			{"r", "Refresh"},
			{"[/]", "Page"},
		}
	}

	commands = append(commands, cmd{"tab", "Next view"}, cmd{"?", "Help"}, cmd{"q", "Quit"})

	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments,
			styles.AccentText.Render(c.key)+styles.FaintText.Render(":")+styles.MutedText.Render(c.desc))
	}

	if q := m.params[m.currentView].Search; q != "" {
		segments = append(segments, styles.AccentText.Render("/"+truncate(q, 18)))
	}

	segments = append(segments,
		styles.AccentText.Render("T")+styles.FaintText.Render(":")+styles.FaintText.Render(m.theme.Name))

	return styles.Header.Width(m.width).Render(strings.Join(segments, "  "))
}

// renderFooter shows pagination and the current view's error or the last
// operation's outcome.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()

	p := m.params[m.currentView]
	total := m.viewTotal(m.currentView)
	pages := 1
	if p.PerPage > 0 && total > 0 {
		pages = (total + p.PerPage - 1) / p.PerPage
	}

	parts := []string{
		styles.MutedText.Render(fmt.Sprintf("page %d/%d", p.Page, pages)),
		styles.FaintText.Render(fmt.Sprintf("%d total", total)),
	}

	if err := m.viewErr(m.currentView); err != nil {
		parts = append(parts,
			styles.DangerText.Render("ERROR")+" "+styles.DangerText.Render(truncate(err.Error(), 80)))
	}
	if m.flash != "" {
		parts = append(parts, styles.WarningText.Render(truncate(m.flash, 80)))
	}

	return styles.Header.Width(m.width).Render(strings.Join(parts, "  "))
}

// truncate truncates a string to max length with ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// truncateMiddle truncates a string in the middle, preserving start and end.
func truncateMiddle(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	if max <= 5 {
		return s[:max]
	}
	// Keep more of the end than the start
	endLen := (max - 3) * 2 / 3
	startLen := max - 3 - endLen
	return s[:startLen] + "..." + s[len(s)-endLen:]
}
