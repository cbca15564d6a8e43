// Package ui is the interactive terminal viewer for a mind map: an outline
// of the visible subgraph driven by a mindmap.Controller.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/conceptmap/pkg/debug"
	"github.com/vanderheijden86/conceptmap/pkg/generate"
	"github.com/vanderheijden86/conceptmap/pkg/mindmap"
	"github.com/vanderheijden86/conceptmap/pkg/model"
	"github.com/vanderheijden86/conceptmap/pkg/watcher"
)

// GraphGeneratedMsg carries the result of an asynchronous regeneration.
type GraphGeneratedMsg struct {
	Ticket mindmap.Ticket
	Graph  model.ConceptGraph
	Err    error
}

// GraphChangedMsg is sent when the watched graph file changes on disk.
type GraphChangedMsg struct {
	Event watcher.GraphEvent
}

// Options configures the viewer.
type Options struct {
	Generator generate.Generator // used by "r"; nil disables regeneration
	Text      string             // input text handed to Generator
	Watcher   *watcher.GraphWatcher
	Styles    *Styles

	// GraphReplaced runs after a regeneration or reload installed a new
	// graph in the controller.
	GraphReplaced func()
}

// Model is the bubbletea model for the viewer.
type Model struct {
	ctx    context.Context
	ctrl   *mindmap.Controller
	opts   Options
	styles Styles

	rows     []Row
	cursor   int
	viewport viewport.Model
	width    int
	height   int
	ready    bool

	generating bool
	ticket     mindmap.Ticket
	status     string
}

const (
	headerLines = 2
	footerLines = 2
)

// NewModel returns a viewer over ctrl. ctrl must already hold a graph (or an
// error) to show anything; the viewer never owns the controller's lifetime.
func NewModel(ctx context.Context, ctrl *mindmap.Controller, opts Options) Model {
	styles := DefaultStyles()
	if opts.Styles != nil {
		styles = *opts.Styles
	}
	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		opts:     opts,
		styles:   styles,
		viewport: viewport.New(80, 20),
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.opts.Watcher != nil {
		return WatchGraphCmd(m.ctx, m.opts.Watcher)
	}
	return nil
}

// GenerateCmd runs gen off the UI goroutine and reports back with ticket.
func GenerateCmd(ctx context.Context, gen generate.Generator, text string, ticket mindmap.Ticket) tea.Cmd {
	return func() tea.Msg {
		g, err := gen.Generate(ctx, text)
		return GraphGeneratedMsg{Ticket: ticket, Graph: g, Err: err}
	}
}

// WatchGraphCmd waits for the next watcher event.
func WatchGraphCmd(ctx context.Context, gw *watcher.GraphWatcher) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-gw.Events():
			return GraphChangedMsg{Event: ev}
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) graphReplaced() {
	if m.opts.GraphReplaced != nil {
		m.opts.GraphReplaced()
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ctrl.Resize(float64(msg.Width), float64(msg.Height))
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerLines-footerLines, 1)
		m.ready = true
		m.refresh()
		return m, nil

	case GraphGeneratedMsg:
		if !m.ctrl.CompleteGeneration(msg.Ticket, msg.Graph, msg.Err) {
			debug.Log("ui: dropped stale generation result %d", msg.Ticket)
			return m, nil
		}
		m.generating = false
		if msg.Err != nil {
			m.status = "generation failed"
		} else {
			m.status = fmt.Sprintf("generated %d concept(s)", len(msg.Graph.Nodes))
		}
		if m.ctrl.Phase() == mindmap.PhaseReady {
			m.graphReplaced()
		}
		m.cursor = 0
		m.refresh()
		return m, nil

	case GraphChangedMsg:
		var cmd tea.Cmd
		if m.opts.Watcher != nil {
			cmd = WatchGraphCmd(m.ctx, m.opts.Watcher)
		}
		if msg.Event.Err != nil {
			m.status = "reload failed: " + msg.Event.Err.Error()
			return m, cmd
		}
		m.ctrl.LoadGraph(msg.Event.Graph)
		m.graphReplaced()
		m.status = "reloaded: " + msg.Event.Diff.Summary()
		m.cursor = 0
		m.refresh()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "g", "home":
		m.cursor = 0
		m.syncViewport()
	case "G", "end":
		m.cursor = max(len(m.rows)-1, 0)
		m.syncViewport()
	case "pgdown", "ctrl+d":
		m.moveCursor(m.viewport.Height)
	case "pgup", "ctrl+u":
		m.moveCursor(-m.viewport.Height)
	case "enter", " ":
		if row, ok := m.selected(); ok {
			id := row.Node.ID
			if row.Node.Toggle.Invoke() {
				m.refresh()
				m.selectID(id)
			}
		}
	case "a":
		m.ctrl.ToggleAll()
		m.refresh()
	case "E":
		m.ctrl.ExpandAll()
		m.refresh()
	case "C":
		m.ctrl.CollapseAll()
		m.cursor = 0
		m.refresh()
	case "c":
		m.ctrl.ClearPositions()
		m.status = "manual positions cleared"
		m.refresh()
	case "r":
		return m.regenerate()
	}
	return m, nil
}

// regenerate starts a generation; any result from an earlier one is
// discarded when it arrives.
func (m Model) regenerate() (tea.Model, tea.Cmd) {
	if m.opts.Generator == nil {
		m.status = "regeneration unavailable: no generator configured"
		return m, nil
	}
	m.ticket = m.ctrl.BeginGeneration()
	m.generating = true
	m.status = "generating…"
	return m, GenerateCmd(m.ctx, m.opts.Generator, m.opts.Text, m.ticket)
}

func (m *Model) moveCursor(delta int) {
	if len(m.rows) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.rows)-1)
	m.syncViewport()
}

func (m *Model) selectID(id string) {
	for i, r := range m.rows {
		if r.Node.ID == id {
			m.cursor = i
			break
		}
	}
	m.syncViewport()
}

func (m Model) selected() (Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return Row{}, false
	}
	return m.rows[m.cursor], true
}

// SelectedID returns the node under the cursor, or "".
func (m Model) SelectedID() string {
	if r, ok := m.selected(); ok {
		return r.Node.ID
	}
	return ""
}

// Rows returns the current outline.
func (m Model) Rows() []Row { return m.rows }

// Status returns the last status message.
func (m Model) Status() string { return m.status }

// Generating reports whether a regeneration is in flight.
func (m Model) Generating() bool { return m.generating }

// refresh rebuilds the outline from the controller and re-renders the
// viewport content.
func (m *Model) refresh() {
	m.rows = BuildOutline(m.ctrl.Visible(), m.ctrl.View())
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
	m.syncViewport()
}

// syncViewport re-renders the rows and scrolls so the cursor stays visible.
func (m *Model) syncViewport() {
	m.viewport.SetContent(m.renderRows())
	if m.cursor < m.viewport.YOffset {
		m.viewport.SetYOffset(m.cursor)
	} else if h := m.viewport.Height; h > 0 && m.cursor >= m.viewport.YOffset+h {
		m.viewport.SetYOffset(m.cursor - h + 1)
	}
}

func (m Model) contentWidth() int {
	if m.width <= 0 {
		return 80
	}
	// One column short of the edge to avoid terminal wrapping.
	return m.width - 1
}

func (m Model) renderRows() string {
	switch m.ctrl.Phase() {
	case mindmap.PhaseError:
		return m.renderError()
	case mindmap.PhaseEmpty:
		return m.styles.Muted.Render("No concepts to display.")
	}

	width := m.contentWidth()
	lines := make([]string, len(m.rows))
	for i, r := range m.rows {
		lines[i] = m.renderRow(r, i == m.cursor, width)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRow(r Row, selected bool, width int) string {
	prefix := r.prefix()
	mark := r.indicator() + " "
	pin := ""
	if r.Node.Overridden {
		pin = " ◆"
	}
	avail := width - lipgloss.Width(prefix) - lipgloss.Width(mark) - lipgloss.Width(pin)
	label := truncate(singleLine(r.Node.Label), avail)

	if selected {
		return m.styles.Selected.Render(prefix + mark + label + pin)
	}
	var sb strings.Builder
	sb.WriteString(m.styles.Tree.Render(prefix))
	sb.WriteString(m.styles.Muted.Render(mark))
	sb.WriteString(m.styles.ForDepth(r.Node.Depth).Render(label))
	if pin != "" {
		sb.WriteString(m.styles.Pinned.Render(pin))
	}
	return sb.String()
}

func (m Model) renderError() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Error.Render("Could not build the mind map."))
	sb.WriteString("\n\n")
	if err := m.ctrl.Err(); err != nil {
		sb.WriteString(m.styles.Muted.Render(truncate(err.Error(), m.contentWidth())))
		sb.WriteString("\n\n")
	}
	if m.opts.Generator != nil {
		sb.WriteString(m.styles.Muted.Render("Press r to try again."))
	}
	return sb.String()
}

func (m Model) renderHeader() string {
	title := m.ctrl.View().Title
	if title == "" {
		title = "Mind map"
	}
	var info string
	switch m.ctrl.Phase() {
	case mindmap.PhaseReady:
		info = fmt.Sprintf("%d of %d concepts visible", len(m.rows), m.ctrl.Index().Len())
	case mindmap.PhaseError:
		info = "error"
	default:
		info = "empty"
	}
	if m.generating {
		info += " · generating…"
	}
	line := m.styles.Title.Render(truncate(title, m.contentWidth()/2)) + "  " + m.styles.Muted.Render(info)
	return line + "\n"
}

func (m Model) renderFooter() string {
	help := "↑/↓ move · enter toggle · a toggle all · E/C expand/collapse all · c clear positions · r regenerate · q quit"
	status := ""
	if m.status != "" {
		status = m.styles.Status.Render(truncate(m.status, m.contentWidth())) + "\n"
	} else {
		status = "\n"
	}
	return status + m.styles.Muted.Render(truncate(help, m.contentWidth()))
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing…"
	}
	return m.renderHeader() + "\n" + m.viewport.View() + "\n" + m.renderFooter()
}

// Run starts the viewer full-screen and blocks until the user quits.
func Run(ctx context.Context, ctrl *mindmap.Controller, opts Options) error {
	p := tea.NewProgram(NewModel(ctx, ctrl, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
