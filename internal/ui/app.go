// Package ui provides the Bubble Tea console for Canopy.
package ui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/seliga/canopy/internal/arbor"
	"github.com/seliga/canopy/internal/prefs"
	"github.com/seliga/canopy/internal/state"
	"github.com/seliga/canopy/internal/store"
)

// View represents the current active view.
type View int

const (
	ViewEntities View = iota
	ViewFacets
	ViewSummaries
	ViewSources
	ViewNotifications
	ViewUsage
)

var viewOrder = []View{ViewEntities, ViewFacets, ViewSummaries, ViewSources, ViewNotifications, ViewUsage}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Stores    *state.Stores
	ThemeName string
	PageSize  int
	PrefsPath string
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	stores    *state.Stores
	prefsPath string
	pageSize  int

	// UI state
	theme       Theme
	keys        keyMap
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool

	// Detail overlay
	showDetail  bool
	detailTitle string
	detailBody  string

	// Store change signal, coalesced across every store
	changes chan struct{}

	// Listing state, kept per view so switching preserves the cursor
	tables  map[View]table.Model
	rowIDs  map[View][]string
	params  map[View]arbor.ListParams
	spinner spinner.Model

	// Search
	searching   bool
	searchInput textinput.Model

	// Entities view: show only favorited entities
	favoritesOnly bool

	// Transient operation feedback
	flash string
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Moss"
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}

	m := Model{
		ctx:         ctx,
		stores:      opts.Stores,
		prefsPath:   prefsPath,
		pageSize:    pageSize,
		theme:       GetTheme(themeName),
		keys:        DefaultKeyMap(),
		currentView: ViewEntities,
		changes:     make(chan struct{}, 1),
		tables:      make(map[View]table.Model),
		rowIDs:      make(map[View][]string),
		params:      make(map[View]arbor.ListParams),
	}

	for _, v := range viewOrder {
		m.params[v] = arbor.ListParams{Page: 1, PerPage: pageSize}
	}

	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.Dot

	m.searchInput = textinput.New()
	m.searchInput.Prompt = "/"
	m.searchInput.CharLimit = 80

	if m.stores != nil {
		m.subscribeAll()
	}

	return m
}

// subscribeAll forwards every store change into the coalescing channel. A
// full channel means a redraw is already queued.
func (m *Model) subscribeAll() {
	signal := func() {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	}
	m.stores.Entities.Subscribe(signal)
	m.stores.FacetValues.Subscribe(signal)
	m.stores.Summaries.Subscribe(signal)
	m.stores.Sources.Subscribe(signal)
	m.stores.Usage.Subscribe(signal)
	m.stores.Notify.Subscribe(signal)
	m.stores.Notify.Store().Subscribe(signal)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		m.spinner.Tick,
		waitForChange(m.changes),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.rebuildTables()
		return m, nil

	case storeChangedMsg:
		m.rebuildTables()
		return m, waitForChange(m.changes)

	case opDoneMsg:
		m.flash = flashFor(msg.err)
		return m, nil

	case detailLoadedMsg:
		if msg.err != nil {
			m.flash = flashFor(msg.err)
			return m, nil
		}
		m.showDetail = true
		m.detailTitle = msg.title
		m.detailBody = msg.body
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.showDetail {
		return m.renderDetail()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	if m.showDetail {
		return m.handleDetailKey(msg)
	}

	if m.searching {
		return m.handleSearchKey(msg)
	}

	m.flash = ""

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "?":
		m.showHelp = true
		return m, nil

	case "T":
		m.theme = GetTheme(NextTheme(m.theme.Name))
		if m.prefsPath != "" {
			_ = prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, PageSize: m.pageSize})
		}
		m.rebuildTables()
		return m, nil

	case "tab":
		m.currentView = nextView(m.currentView, 1)
		return m, m.ensureLoaded(m.currentView)

	case "shift+tab":
		m.currentView = nextView(m.currentView, -1)
		return m, m.ensureLoaded(m.currentView)

	case "1", "e":
		m.currentView = ViewEntities
		return m, m.ensureLoaded(m.currentView)
	case "2", "v":
		m.currentView = ViewFacets
		return m, m.ensureLoaded(m.currentView)
	case "3", "s":
		m.currentView = ViewSummaries
		return m, m.ensureLoaded(m.currentView)
	case "4", "c":
		m.currentView = ViewSources
		return m, m.ensureLoaded(m.currentView)
	case "5", "n":
		m.currentView = ViewNotifications
		return m, m.ensureLoaded(m.currentView)
	case "6", "u":
		m.currentView = ViewUsage
		return m, m.ensureLoaded(m.currentView)

	case "/":
		if m.currentView != ViewUsage {
			m.searching = true
			m.searchInput.SetValue(m.params[m.currentView].Search)
			m.searchInput.Focus()
			return m, textinput.Blink
		}
		return m, nil

	case "r":
		return m, m.refresh(m.currentView)

	case "]":
		return m, m.turnPage(1)
	case "[":
		return m, m.turnPage(-1)

	case "f":
		if m.currentView == ViewEntities {
			m.favoritesOnly = !m.favoritesOnly
			m.rebuildTables()
		}
		return m, nil

	case "enter", " ":
		return m, m.primaryAction()

	case "o":
		return m, m.openDetail(false)
	case "O":
		return m, m.openDetail(true)

	case "x":
		if m.currentView == ViewFacets {
			if id := m.selectedID(); id != "" {
				return m, m.doOp(func(ctx context.Context) error {
					return m.stores.FacetValues.Remove(ctx, id)
				})
			}
		}
		return m, nil

	case "M":
		if m.currentView == ViewNotifications {
			return m, m.doOp(func(ctx context.Context) error {
				res := m.stores.Notify.MarkAllRead(ctx)
				if len(res.Failed) > 0 {
					return errors.New("some notifications could not be marked read")
				}
				return nil
			})
		}
		return m, nil

	case "esc":
		m.currentView = ViewEntities
		return m, nil
	}

	// Remaining keys drive the focused table (j/k/g/G, paging).
	t, ok := m.tables[m.currentView]
	if !ok {
		return m, nil
	}
	var cmd tea.Cmd
	t, cmd = t.Update(msg)
	m.tables[m.currentView] = t
	return m, cmd
}

// handleSearchKey processes keys while the search input is focused.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.searching = false
		m.searchInput.Blur()
		return m, nil
	case "enter":
		m.searching = false
		m.searchInput.Blur()
		p := m.params[m.currentView]
		p.Search = strings.TrimSpace(m.searchInput.Value())
		p.Page = 1
		m.params[m.currentView] = p
		return m, m.refresh(m.currentView)
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// primaryAction runs the view's main operation on the selected row.
func (m Model) primaryAction() tea.Cmd {
	id := m.selectedID()
	if id == "" {
		return nil
	}

	switch m.currentView {
	case ViewEntities:
		return m.doOp(func(ctx context.Context) error {
			return m.stores.ToggleFavorite(ctx, id)
		})
	case ViewFacets:
		confirmed := false
		for _, fv := range m.stores.FacetValues.Snapshot().Items {
			if fv.ID == id {
				confirmed = fv.Confirmed
				break
			}
		}
		return m.doOp(func(ctx context.Context) error {
			_, err := m.stores.FacetValues.Mutate(ctx, id, map[string]any{"confirmed": !confirmed})
			return err
		})
	case ViewSummaries:
		return m.doOp(func(ctx context.Context) error {
			return m.stores.ExecuteSummary(ctx, id)
		})
	case ViewSources:
		return m.doOp(func(ctx context.Context) error {
			return m.stores.CheckSource(ctx, id)
		})
	case ViewNotifications:
		return m.doOp(func(ctx context.Context) error {
			return m.stores.Notify.MarkRead(ctx, id)
		})
	}
	return nil
}

// selectedID returns the record id of the highlighted row.
func (m Model) selectedID() string {
	t, ok := m.tables[m.currentView]
	if !ok {
		return ""
	}
	ids := m.rowIDs[m.currentView]
	cursor := t.Cursor()
	if cursor < 0 || cursor >= len(ids) {
		return ""
	}
	return ids[cursor]
}

// ensureLoaded fetches a view's listing the first time it is shown. An
// empty mirror with nothing in flight means the view was never loaded.
func (m Model) ensureLoaded(v View) tea.Cmd {
	if m.viewLoading(v) || len(m.rowIDs[v]) > 0 {
		return nil
	}
	return m.refresh(v)
}

// refresh re-runs the current listing fetch. Supersession of an older
// fetch is routine here, not a failure.
func (m Model) refresh(v View) tea.Cmd {
	params := m.params[v]
	return m.doOp(func(ctx context.Context) error {
		var err error
		switch v {
		case ViewEntities:
			err = m.stores.Entities.FetchList(ctx, params)
		case ViewFacets:
			err = m.stores.FacetValues.FetchList(ctx, params)
		case ViewSummaries:
			err = m.stores.Summaries.FetchList(ctx, params)
		case ViewSources:
			err = m.stores.Sources.FetchList(ctx, params)
		case ViewNotifications:
			err = m.stores.Notify.Store().FetchList(ctx, params)
		case ViewUsage:
			err = m.stores.Usage.FetchList(ctx, params)
		}
		if errors.Is(err, store.ErrSuperseded) {
			return nil
		}
		return err
	})
}

// turnPage moves the current view one page forward or back.
func (m Model) turnPage(delta int) tea.Cmd {
	p := m.params[m.currentView]
	next := p.Page + delta
	if next < 1 {
		return nil
	}
	total := m.viewTotal(m.currentView)
	if delta > 0 && p.PerPage > 0 && (p.Page)*p.PerPage >= total {
		return nil
	}
	p.Page = next
	m.params[m.currentView] = p
	return m.refresh(m.currentView)
}

// doOp runs a store operation off the update loop.
func (m Model) doOp(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{err: fn(ctx)}
	}
}

func nextView(v View, delta int) View {
	for i, candidate := range viewOrder {
		if candidate == v {
			n := (i + delta + len(viewOrder)) % len(viewOrder)
			return viewOrder[n]
		}
	}
	return ViewEntities
}

// flashFor maps an operation outcome to a one-line status message.
func flashFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrAlreadyRunning):
		return "already in flight"
	case errors.Is(err, store.ErrNotFound):
		return "record is no longer listed"
	default:
		return err.Error()
	}
}

// Messages

type storeChangedMsg struct{}

type opDoneMsg struct {
	err error
}

// Commands

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return storeChangedMsg{}
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
