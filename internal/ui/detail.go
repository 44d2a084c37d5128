package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/seliga/canopy/internal/store"
)

// detailLoadedMsg carries a single-record read back to the event loop.
type detailLoadedMsg struct {
	title string
	body  string
	err   error
}

// openDetail fetches the selected record through the store's cached read.
// skipCache forces a fresh copy from the server.
func (m Model) openDetail(skipCache bool) tea.Cmd {
	id := m.selectedID()
	if id == "" {
		return nil
	}
	opts := store.GetOptions{SkipCache: skipCache}
	ctx := m.ctx

	switch m.currentView {
	case ViewEntities:
		st := m.stores.Entities
		return func() tea.Msg {
			e, err := st.FetchOne(ctx, id, opts)
			if err != nil {
				return detailLoadedMsg{err: err}
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Kind      %s\n", e.Kind)
			fmt.Fprintf(&b, "Status    %s\n", e.Status)
			fmt.Fprintf(&b, "Tags      %s\n", joinTags(e.Tags, 8))
			fmt.Fprintf(&b, "Created   %s\n", formatStamp(e.ParsedCreatedAt()))
			fmt.Fprintf(&b, "Updated   %s\n", formatStamp(e.ParsedUpdatedAt()))
			if e.Description != "" {
				b.WriteString("\n")
				b.WriteString(e.Description)
			}
			return detailLoadedMsg{title: e.Name, body: b.String()}
		}

	case ViewSummaries:
		st := m.stores.Summaries
		return func() tea.Msg {
			s, err := st.FetchOne(ctx, id, opts)
			if err != nil {
				return detailLoadedMsg{err: err}
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Status    %s\n", s.Status)
			fmt.Fprintf(&b, "Model     %s\n", s.Model)
			fmt.Fprintf(&b, "Tokens    %d\n", s.TokensUsed)
			if s.Prompt != "" {
				b.WriteString("\nPrompt\n")
				b.WriteString(s.Prompt)
				b.WriteString("\n")
			}
			if s.Result != "" {
				b.WriteString("\nResult\n")
				b.WriteString(s.Result)
			}
			return detailLoadedMsg{title: s.Title, body: b.String()}
		}
	}

	return nil
}

// renderDetail renders the record detail overlay.
func (m Model) renderDetail() string {
	styles := m.theme.Styles()

	width := m.width * 2 / 3
	if width < 40 {
		width = 40
	}
	if width > 100 {
		width = 100
	}

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(m.detailTitle))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", width-6)))
	b.WriteString("\n")
	b.WriteString(styles.Text.Render(m.detailBody))
	b.WriteString("\n\n")
	b.WriteString(styles.MutedText.Render("esc close  ·  O refetch"))

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus)).
		Padding(1, 2).
		Width(width)

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

// handleDetailKey processes input while the detail overlay is open.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "O":
		return m, m.openDetail(true)
	default:
		m.showDetail = false
		return m, nil
	}
}
