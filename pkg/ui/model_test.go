package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/conceptmap/internal/datasource"
	"github.com/vanderheijden86/conceptmap/pkg/generate"
	"github.com/vanderheijden86/conceptmap/pkg/mindmap"
	"github.com/vanderheijden86/conceptmap/pkg/model"
	"github.com/vanderheijden86/conceptmap/pkg/testutil"
	"github.com/vanderheijden86/conceptmap/pkg/watcher"
)

func newTestModel(t *testing.T, opts Options) (Model, *mindmap.Controller) {
	t.Helper()
	c := mindmap.NewController(nil)
	c.LoadGraph(testutil.Sample())
	m := NewModel(context.Background(), c, opts)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model), c
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(key(k))
		m = next.(Model)
	}
	return m, cmd
}

func TestModel_InitialOutline(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	if got := rowIDs(m.Rows()); strings.Join(got, ",") != "A,B,C" {
		t.Fatalf("rows = %v, want A,B,C", got)
	}
	if m.SelectedID() != "A" {
		t.Errorf("cursor on %q, want A", m.SelectedID())
	}
	view := m.View()
	for _, want := range []string{"Sample", "3 of 4 concepts visible", "Alpha", "Beta", "Gamma"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_NotReadyBeforeSize(t *testing.T) {
	c := mindmap.NewController(nil)
	c.LoadGraph(testutil.Sample())
	m := NewModel(context.Background(), c, Options{})
	if m.View() != "Initializing…" {
		t.Errorf("View() before WindowSizeMsg = %q", m.View())
	}
}

func TestModel_ToggleUnderCursor(t *testing.T) {
	m, c := newTestModel(t, Options{})

	var events [][]string
	c.OnExpansionChange(func(ids []string) { events = append(events, ids) })

	m, _ = press(t, m, "j", "enter")
	if m.SelectedID() != "B" {
		t.Errorf("cursor on %q after toggle, want B", m.SelectedID())
	}
	if got := strings.Join(rowIDs(m.Rows()), ","); got != "A,B,D,C" {
		t.Errorf("rows after expanding B = %s", got)
	}

	m, _ = press(t, m, "space")
	if got := strings.Join(rowIDs(m.Rows()), ","); got != "A,B,C" {
		t.Errorf("rows after collapsing B = %s", got)
	}
	if len(events) != 2 {
		t.Errorf("expansion events = %v, want 2", events)
	}
}

func TestModel_ToggleLeafIsNoOpForVisibility(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m, _ = press(t, m, "G", "enter")
	if m.SelectedID() != "C" {
		t.Fatalf("cursor on %q, want C", m.SelectedID())
	}
	if len(m.Rows()) != 3 {
		t.Errorf("rows = %d, want 3", len(m.Rows()))
	}
}

func TestModel_CursorBounds(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m, _ = press(t, m, "k", "k")
	if m.SelectedID() != "A" {
		t.Errorf("cursor moved above the top: %q", m.SelectedID())
	}
	m, _ = press(t, m, "down", "down", "down", "down")
	if m.SelectedID() != "C" {
		t.Errorf("cursor moved past the end: %q", m.SelectedID())
	}
}

func TestModel_ToggleAllAndBulk(t *testing.T) {
	m, c := newTestModel(t, Options{})

	m, _ = press(t, m, "a")
	if len(m.Rows()) != 4 {
		t.Fatalf("toggle all should expand everything, rows = %d", len(m.Rows()))
	}
	m, _ = press(t, m, "a")
	if len(m.Rows()) != 1 {
		t.Fatalf("second toggle all should collapse, rows = %d", len(m.Rows()))
	}
	m, _ = press(t, m, "E")
	if len(m.Rows()) != 4 || !c.IsExpanded("B") {
		t.Errorf("expand all: rows = %d", len(m.Rows()))
	}
	m, _ = press(t, m, "C")
	if len(m.Rows()) != 1 || m.SelectedID() != "A" {
		t.Errorf("collapse all: rows = %d, cursor %q", len(m.Rows()), m.SelectedID())
	}
}

func TestModel_ClearPositions(t *testing.T) {
	m, c := newTestModel(t, Options{})
	c.MoveNode("B", model.Position{X: 1, Y: 2})
	m, _ = press(t, m, "c")
	if len(c.Positions()) != 0 {
		t.Errorf("positions not cleared: %v", c.Positions())
	}
	if !strings.Contains(m.Status(), "cleared") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestModel_WindowResizeReachesController(t *testing.T) {
	m, c := newTestModel(t, Options{})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 40, Height: 12})
	m = next.(Model)
	fit := c.View().Fit
	if fit.Width != 40 || fit.Height != 12 {
		t.Errorf("controller fit = %+v, want 40x12 surface", fit)
	}
	for _, line := range strings.Split(m.View(), "\n") {
		if w := len([]rune(stripANSI(line))); w > 40 {
			t.Errorf("line wider than terminal (%d): %q", w, line)
		}
	}
}

func TestModel_Regenerate(t *testing.T) {
	next := model.ConceptGraph{
		Title: "Fresh",
		Nodes: []model.ConceptNode{{ID: "x", Label: "X"}, {ID: "y", Label: "Y"}},
		Edges: []model.ConceptEdge{{ID: "e", Source: "x", Target: "y"}},
	}
	gen := generate.Func(func(ctx context.Context, text string) (model.ConceptGraph, error) {
		if text != "source text" {
			t.Errorf("generator got %q", text)
		}
		return next, nil
	})
	m, c := newTestModel(t, Options{Generator: gen, Text: "source text"})

	m, cmd := press(t, m, "r")
	if cmd == nil || !m.Generating() {
		t.Fatal("r should start a generation")
	}
	if !strings.Contains(m.View(), "generating") {
		t.Error("header should show generation in progress")
	}

	msg := cmd()
	updated, _ := m.Update(msg)
	m = updated.(Model)
	if m.Generating() {
		t.Error("generation should be finished")
	}
	if c.Graph().Title != "Fresh" {
		t.Errorf("controller graph = %q, want Fresh", c.Graph().Title)
	}
	if got := strings.Join(rowIDs(m.Rows()), ","); got != "x,y" {
		t.Errorf("rows = %s, want x,y", got)
	}
}

func TestModel_StaleGenerationDiscarded(t *testing.T) {
	calls := 0
	gen := generate.Func(func(ctx context.Context, text string) (model.ConceptGraph, error) {
		calls++
		if calls == 1 {
			return testutil.Single(), nil
		}
		return testutil.QuickChain(3), nil
	})
	m, c := newTestModel(t, Options{Generator: gen})

	m, first := press(t, m, "r")
	m, second := press(t, m, "r")

	staleMsg := first()
	freshMsg := second()

	updated, _ := m.Update(freshMsg)
	m = updated.(Model)
	updated, _ = m.Update(staleMsg)
	m = updated.(Model)

	if len(c.Graph().Nodes) != 3 {
		t.Errorf("stale result replaced the newer graph: %d nodes", len(c.Graph().Nodes))
	}
}

func TestModel_GenerationFailure(t *testing.T) {
	gen := generate.Func(func(ctx context.Context, text string) (model.ConceptGraph, error) {
		return model.ConceptGraph{}, errors.New("model unavailable")
	})
	m, c := newTestModel(t, Options{Generator: gen})

	m, cmd := press(t, m, "r")
	updated, _ := m.Update(cmd())
	m = updated.(Model)

	if c.Phase() != mindmap.PhaseError {
		t.Fatalf("phase = %s, want error", c.Phase())
	}
	view := m.View()
	if !strings.Contains(view, "model unavailable") || !strings.Contains(view, "Press r to try again") {
		t.Errorf("error view missing details:\n%s", view)
	}
	if len(m.Rows()) != 0 {
		t.Errorf("error state should have no rows, got %d", len(m.Rows()))
	}

	// Toggling in the error state changes nothing.
	m, _ = press(t, m, "enter", "a")
	if c.Phase() != mindmap.PhaseError {
		t.Error("keys should not leave the error state")
	}
}

func TestModel_RegenerateWithoutGenerator(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	m, cmd := press(t, m, "r")
	if cmd != nil {
		t.Error("no command expected without a generator")
	}
	if !strings.Contains(m.Status(), "unavailable") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestModel_GraphChangedMsg(t *testing.T) {
	m, c := newTestModel(t, Options{})
	c.Toggle("B")

	g := testutil.Sample()
	g.Nodes = append(g.Nodes, model.ConceptNode{ID: "E", Label: "Epsilon"})
	ev := watcher.GraphEvent{Graph: g, Diff: datasource.DiffGraphs(testutil.Sample(), g)}

	updated, _ := m.Update(GraphChangedMsg{Event: ev})
	m = updated.(Model)
	if c.Index().Len() != 5 {
		t.Errorf("graph not reloaded: %d nodes", c.Index().Len())
	}
	if c.IsExpanded("B") {
		t.Error("reload should reset expansion to the root")
	}
	if !strings.Contains(m.Status(), "+1 node(s)") {
		t.Errorf("status = %q", m.Status())
	}

	updated, _ = m.Update(GraphChangedMsg{Event: watcher.GraphEvent{Err: errors.New("bad json")}})
	m = updated.(Model)
	if c.Index().Len() != 5 || !strings.Contains(m.Status(), "bad json") {
		t.Errorf("failed reload should keep the graph; status %q", m.Status())
	}
}

func TestModel_GraphReplacedCallback(t *testing.T) {
	calls := 0
	fail := false
	gen := generate.Func(func(ctx context.Context, text string) (model.ConceptGraph, error) {
		if fail {
			return model.ConceptGraph{}, errors.New("model unavailable")
		}
		return testutil.QuickChain(3), nil
	})
	m, _ := newTestModel(t, Options{Generator: gen, GraphReplaced: func() { calls++ }})

	m, cmd := press(t, m, "r")
	updated, _ := m.Update(cmd())
	m = updated.(Model)
	if calls != 1 {
		t.Fatalf("calls after regeneration = %d, want 1", calls)
	}

	ev := watcher.GraphEvent{Graph: testutil.Sample(), Diff: datasource.DiffGraphs(testutil.QuickChain(3), testutil.Sample())}
	updated, _ = m.Update(GraphChangedMsg{Event: ev})
	m = updated.(Model)
	if calls != 2 {
		t.Fatalf("calls after reload = %d, want 2", calls)
	}

	fail = true
	m, cmd = press(t, m, "r")
	updated, _ = m.Update(cmd())
	m = updated.(Model)
	updated, _ = m.Update(GraphChangedMsg{Event: watcher.GraphEvent{Err: errors.New("bad json")}})
	_ = updated.(Model)
	if calls != 2 {
		t.Errorf("failed generation or reload should not report a new graph: %d", calls)
	}
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t, Options{})
	_, cmd := press(t, m, "q")
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

// stripANSI removes SGR escape sequences.
func stripANSI(s string) string {
	var sb strings.Builder
	inEsc := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEsc = true
		case inEsc && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'):
			inEsc = false
		case !inEsc:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
