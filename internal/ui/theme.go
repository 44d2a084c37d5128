package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines colors and styles for the UI.
type Theme struct {
	Name string

	// Base colors
	Background string
	Surface    string

	// Table colors
	SelectionBg   string
	SelectionText string

	// Border colors
	Border      string
	BorderFocus string

	// Text colors
	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// Record status colors
	StatusColors map[string]string
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Text: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Text)),

		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)),

		FaintText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Faint)),

		AccentText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)),

		SuccessText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Success)).
			Bold(true),

		WarningText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Warning)),

		DangerText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Danger)).
			Bold(true),

		InfoText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Info)),

		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),

		Logo: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)).
			Bold(true),

		TabActive: lipgloss.NewStyle().
			Background(lipgloss.Color(t.SelectionBg)).
			Foreground(lipgloss.Color(t.SelectionText)).
			Padding(0, 1),

		TabInactive: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Muted)).
			Padding(0, 1),

		statusColors: t.StatusColors,
		muted:        t.Muted,
	}
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style

	Header      lipgloss.Style
	Logo        lipgloss.Style
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style

	statusColors map[string]string
	muted        string
}

// StatusStyle returns a foreground style for the given record status.
func (s Styles) StatusStyle(status string) lipgloss.Style {
	color := s.statusColors[status]
	if color == "" {
		color = s.muted
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

// Theme definitions

var themes = map[string]Theme{
	"Moss":     mossTheme(),
	"Kanagawa": kanagawaTheme(),
	"Slate":    slateTheme(),
}

var themeOrder = []string{"Moss", "Kanagawa", "Slate"}

// GetTheme returns a theme by name.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return mossTheme()
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}

func mossTheme() Theme {
	// Everforest palette: https://github.com/sainnhe/everforest
	return Theme{
		Name: "Moss",

		Background: "#1e2326", // bg0
		Surface:    "#272e33", // bg1

		SelectionBg:   "#3d484d", // bg4
		SelectionText: "#d3c6aa", // fg

		Border:      "#4f585e", // bg5
		BorderFocus: "#a7c080", // green

		Text:    "#d3c6aa", // fg
		Muted:   "#859289", // grey1
		Faint:   "#7a8478", // grey0
		Accent:  "#a7c080", // green
		Success: "#83c092", // aqua
		Warning: "#dbbc7f", // yellow
		Danger:  "#e67e80", // red
		Info:    "#7fbbb3", // blue

		StatusColors: map[string]string{
			"active":   "#a7c080", // green
			"draft":    "#859289", // grey1
			"archived": "#7a8478", // grey0
			"idle":     "#859289", // grey1
			"queued":   "#7fbbb3", // blue
			"running":  "#d699b6", // purple
			"complete": "#83c092", // aqua
			"failed":   "#e67e80", // red
			"ok":       "#a7c080", // green
			"checking": "#7fbbb3", // blue
			"error":    "#e67e80", // red
			"stale":    "#dbbc7f", // yellow
		},
	}
}

func kanagawaTheme() Theme {
	// Kanagawa palette: https://github.com/rebelot/kanagawa.nvim
	return Theme{
		Name: "Kanagawa",

		Background: "#16161D", // sumiInk0
		Surface:    "#1F1F28", // sumiInk3

		SelectionBg:   "#2D4F67", // waveBlue1
		SelectionText: "#DCD7BA", // fujiWhite

		Border:      "#54546D", // sumiInk6
		BorderFocus: "#7E9CD8", // crystalBlue

		Text:    "#DCD7BA", // fujiWhite
		Muted:   "#C8C093", // oldWhite
		Faint:   "#727169", // fujiGray
		Accent:  "#7E9CD8", // crystalBlue
		Success: "#98BB6C", // springGreen
		Warning: "#E6C384", // carpYellow
		Danger:  "#E46876", // waveRed
		Info:    "#7FB4CA", // springBlue

		StatusColors: map[string]string{
			"active":   "#98BB6C", // springGreen
			"draft":    "#727169", // fujiGray
			"archived": "#727169", // fujiGray
			"idle":     "#727169", // fujiGray
			"queued":   "#7FB4CA", // springBlue
			"running":  "#957FB8", // oniViolet
			"complete": "#98BB6C", // springGreen
			"failed":   "#E46876", // waveRed
			"ok":       "#98BB6C", // springGreen
			"checking": "#7FB4CA", // springBlue
			"error":    "#E46876", // waveRed
			"stale":    "#E6C384", // carpYellow
		},
	}
}

func slateTheme() Theme {
	// Tailwind CSS Slate/Sky palette: https://tailwindcss.com/docs/colors
	return Theme{
		Name: "Slate",

		Background: "#020617", // slate-950
		Surface:    "#0f172a", // slate-900

		SelectionBg:   "#0284c7", // sky-600
		SelectionText: "#f8fafc", // slate-50

		Border:      "#334155", // slate-700
		BorderFocus: "#38bdf8", // sky-400

		Text:    "#f1f5f9", // slate-100
		Muted:   "#94a3b8", // slate-400
		Faint:   "#64748b", // slate-500
		Accent:  "#38bdf8", // sky-400
		Success: "#22c55e", // green-500
		Warning: "#f59e0b", // amber-500
		Danger:  "#ef4444", // red-500
		Info:    "#06b6d4", // cyan-500

		StatusColors: map[string]string{
			"active":   "#22c55e", // green-500
			"draft":    "#64748b", // slate-500
			"archived": "#475569", // slate-600
			"idle":     "#64748b", // slate-500
			"queued":   "#38bdf8", // sky-400
			"running":  "#06b6d4", // cyan-500
			"complete": "#16a34a", // green-600
			"failed":   "#dc2626", // red-600
			"ok":       "#22c55e", // green-500
			"checking": "#38bdf8", // sky-400
			"error":    "#dc2626", // red-600
			"stale":    "#f59e0b", // amber-500
		},
	}
}
