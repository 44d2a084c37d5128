package ui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// viewTitle returns the tab label for a view.
func viewTitle(v View) string {
	switch v {
	case ViewEntities:
		return "Entities"
	case ViewFacets:
		return "Facets"
	case ViewSummaries:
		return "Summaries"
	case ViewSources:
		return "Sources"
	case ViewNotifications:
		return "Inbox"
	case ViewUsage:
		return "Usage"
	default:
		return "?"
	}
}

// viewLoading reports whether a view's store has a list fetch in flight.
func (m Model) viewLoading(v View) bool {
	switch v {
	case ViewEntities:
		return m.stores.Entities.Loading()
	case ViewFacets:
		return m.stores.FacetValues.Loading()
	case ViewSummaries:
		return m.stores.Summaries.Loading()
	case ViewSources:
		return m.stores.Sources.Loading()
	case ViewNotifications:
		return m.stores.Notify.Store().Loading()
	case ViewUsage:
		return m.stores.Usage.Loading()
	}
	return false
}

// viewErr returns a view's sticky store error, if any.
func (m Model) viewErr(v View) error {
	switch v {
	case ViewEntities:
		return m.stores.Entities.Err()
	case ViewFacets:
		return m.stores.FacetValues.Err()
	case ViewSummaries:
		return m.stores.Summaries.Err()
	case ViewSources:
		return m.stores.Sources.Err()
	case ViewNotifications:
		return m.stores.Notify.Store().Err()
	case ViewUsage:
		return m.stores.Usage.Err()
	}
	return nil
}

// viewTotal returns the server-side collection size for a view.
func (m Model) viewTotal(v View) int {
	switch v {
	case ViewEntities:
		return m.stores.Entities.Snapshot().Total
	case ViewFacets:
		return m.stores.FacetValues.Snapshot().Total
	case ViewSummaries:
		return m.stores.Summaries.Snapshot().Total
	case ViewSources:
		return m.stores.Sources.Snapshot().Total
	case ViewNotifications:
		return m.stores.Notify.Store().Snapshot().Total
	case ViewUsage:
		return m.stores.Usage.Snapshot().Total
	}
	return 0
}

// rebuildTables refreshes every listing table from the store snapshots,
// preserving each view's cursor position.
func (m *Model) rebuildTables() {
	if !m.ready || m.stores == nil {
		return
	}
	for _, v := range viewOrder {
		cols, rows, ids := m.buildRows(v)

		t, ok := m.tables[v]
		if !ok {
			t = table.New(table.WithFocused(true))
		}
		t.SetColumns(cols)
		t.SetRows(rows)
		t.SetWidth(m.width)
		t.SetHeight(m.tableHeight())
		t.SetStyles(m.tableStyles())
		if t.Cursor() >= len(rows) && len(rows) > 0 {
			t.SetCursor(len(rows) - 1)
		}
		m.tables[v] = t
		m.rowIDs[v] = ids
	}
}

// tableHeight leaves room for the header, command bar, and footer lines.
func (m Model) tableHeight() int {
	h := m.height - 4
	if m.searching {
		h--
	}
	if h < 3 {
		h = 3
	}
	return h
}

func (m Model) tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		Foreground(lipgloss.Color(m.theme.Muted)).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(m.theme.Border)).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color(m.theme.SelectionText)).
		Background(lipgloss.Color(m.theme.SelectionBg)).
		Bold(false)
	return s
}

// buildRows produces the columns, rows, and row-aligned record ids for a
// view from its store snapshot.
func (m Model) buildRows(v View) ([]table.Column, []table.Row, []string) {
	now := time.Now()

	switch v {
	case ViewEntities:
		cols := []table.Column{
			{Title: "★", Width: 2},
			{Title: "Name", Width: m.flexWidth(34, 80)},
			{Title: "Kind", Width: 12},
			{Title: "Status", Width: 10},
			{Title: "Tags", Width: 18},
			{Title: "Updated", Width: 10},
		}
		snap := m.stores.Entities.Snapshot()
		rows := make([]table.Row, 0, len(snap.Items))
		ids := make([]string, 0, len(snap.Items))
		for _, e := range snap.Items {
			if m.favoritesOnly && !e.Favorite {
				continue
			}
			star := ""
			if e.Favorite {
				star = "★"
			}
			rows = append(rows, table.Row{
				star,
				e.Name,
				e.Kind,
				e.Status,
				joinTags(e.Tags, 3),
				relativeTime(e.ParsedUpdatedAt(), now),
			})
			ids = append(ids, e.ID)
		}
		return cols, rows, ids

	case ViewFacets:
		cols := []table.Column{
			{Title: "Entity", Width: 14},
			{Title: "Facet", Width: 16},
			{Title: "Value", Width: m.flexWidth(30, 72)},
			{Title: "Confirmed", Width: 10},
			{Title: "Updated", Width: 10},
		}
		snap := m.stores.FacetValues.Snapshot()
		rows := make([]table.Row, 0, len(snap.Items))
		ids := make([]string, 0, len(snap.Items))
		for _, fv := range snap.Items {
			confirmed := "no"
			if fv.Confirmed {
				confirmed = "yes"
			}
			rows = append(rows, table.Row{
				fv.EntityID,
				fv.FacetKey,
				fv.Value,
				confirmed,
				relativeTime(fv.ParsedUpdatedAt(), now),
			})
			ids = append(ids, fv.ID)
		}
		return cols, rows, ids

	case ViewSummaries:
		cols := []table.Column{
			{Title: "Title", Width: m.flexWidth(32, 70)},
			{Title: "Status", Width: 10},
			{Title: "Model", Width: 22},
			{Title: "Tokens", Width: 8},
			{Title: "Updated", Width: 10},
		}
		snap := m.stores.Summaries.Snapshot()
		rows := make([]table.Row, 0, len(snap.Items))
		ids := make([]string, 0, len(snap.Items))
		for _, s := range snap.Items {
			rows = append(rows, table.Row{
				s.Title,
				s.Status,
				s.Model,
				strconv.Itoa(s.TokensUsed),
				relativeTime(s.ParsedUpdatedAt(), now),
			})
			ids = append(ids, s.ID)
		}
		return cols, rows, ids

	case ViewSources:
		cols := []table.Column{
			{Title: "Name", Width: 22},
			{Title: "URL", Width: m.flexWidth(34, 70)},
			{Title: "Enabled", Width: 8},
			{Title: "Last crawl", Width: 11},
			{Title: "Status", Width: 10},
		}
		snap := m.stores.Sources.Snapshot()
		rows := make([]table.Row, 0, len(snap.Items))
		ids := make([]string, 0, len(snap.Items))
		for _, s := range snap.Items {
			enabled := "off"
			if s.Enabled {
				enabled = "on"
			}
			rows = append(rows, table.Row{
				s.Name,
				truncateMiddle(s.URL, m.flexWidth(34, 70)),
				enabled,
				relativeTime(s.ParsedLastCrawlAt(), now),
				s.LastStatus,
			})
			ids = append(ids, s.ID)
		}
		return cols, rows, ids

	case ViewNotifications:
		cols := []table.Column{
			{Title: " ", Width: 2},
			{Title: "Kind", Width: 12},
			{Title: "Title", Width: m.flexWidth(40, 90)},
			{Title: "When", Width: 10},
		}
		snap := m.stores.Notify.Store().Snapshot()
		rows := make([]table.Row, 0, len(snap.Items))
		ids := make([]string, 0, len(snap.Items))
		for _, n := range snap.Items {
			marker := "●"
			if n.Read {
				marker = ""
			}
			rows = append(rows, table.Row{
				marker,
				n.Kind,
				n.Title,
				relativeTime(n.ParsedCreatedAt(), now),
			})
			ids = append(ids, n.ID)
		}
		return cols, rows, ids

	case ViewUsage:
		cols := []table.Column{
			{Title: "Day", Width: 12},
			{Title: "Model", Width: m.flexWidth(26, 50)},
			{Title: "Requests", Width: 10},
			{Title: "Tokens in", Width: 11},
			{Title: "Tokens out", Width: 11},
		}
		snap := m.stores.Usage.Snapshot()
		rows := make([]table.Row, 0, len(snap.Items))
		ids := make([]string, 0, len(snap.Items))
		for _, u := range snap.Items {
			rows = append(rows, table.Row{
				u.Day,
				u.Model,
				strconv.Itoa(u.Requests),
				formatCount(u.InputTokens),
				formatCount(u.OutputTokens),
			})
			ids = append(ids, u.RecordID())
		}
		return cols, rows, ids
	}

	return nil, nil, nil
}

// flexWidth sizes a column relative to the terminal, within bounds.
func (m Model) flexWidth(min, max int) int {
	w := m.width / 3
	if w < min {
		return min
	}
	if w > max {
		return max
	}
	return w
}

// joinTags renders up to max tags, with a count for the rest.
func joinTags(tags []string, max int) string {
	if len(tags) == 0 {
		return ""
	}
	if len(tags) <= max {
		out := tags[0]
		for _, t := range tags[1:] {
			out += ", " + t
		}
		return out
	}
	out := tags[0]
	for _, t := range tags[1:max] {
		out += ", " + t
	}
	return fmt.Sprintf("%s +%d", out, len(tags)-max)
}

// relativeTime renders a timestamp compactly relative to now.
func relativeTime(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 14*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// formatStamp renders an absolute timestamp, or "-" when unknown.
func formatStamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

// formatCount renders large token counts with a k/M suffix.
func formatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 10_000:
		return fmt.Sprintf("%.0fk", float64(n)/1_000)
	default:
		return strconv.Itoa(n)
	}
}
