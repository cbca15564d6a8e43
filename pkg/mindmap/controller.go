package mindmap

import (
	"time"

	"github.com/vanderheijden86/conceptmap/pkg/debug"
	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// Ticket identifies one generation request. Only the most recently issued
// ticket may complete; older results are discarded.
type Ticket uint64

// Controller owns the expansion state and manual positions of a single
// mind-map view and recomputes visibility, layout and the rendered view
// synchronously after every event.
//
// A Controller is not safe for concurrent use: the host delivers events one at
// a time (for example from a UI event loop).
type Controller struct {
	engine *Engine

	graph     model.ConceptGraph
	index     *Index
	expanded  ExpansionSet
	overrides model.NodePositions

	visible Subgraph
	layout  Result
	view    View
	phase   Phase
	err     error

	surfaceW, surfaceH float64
	fitPadding         float64
	latest             Ticket

	onExpansion []func([]string)
	onPositions []func(model.NodePositions)
	onRender    []func(View)
}

// Option configures a Controller.
type Option func(*Controller)

// WithSurfaceSize sets the initial drawing surface size used to fit the view.
func WithSurfaceSize(width, height float64) Option {
	return func(c *Controller) {
		c.surfaceW, c.surfaceH = width, height
	}
}

// WithFitPadding sets the padding kept around the fitted view.
func WithFitPadding(p float64) Option {
	return func(c *Controller) {
		c.fitPadding = p
	}
}

// NewController returns an empty controller. A nil engine uses the default
// layout configuration.
func NewController(engine *Engine, opts ...Option) *Controller {
	if engine == nil {
		engine = NewEngine(DefaultLayoutConfig())
	}
	c := &Controller{
		engine:     engine,
		expanded:   NewExpansionSet(),
		overrides:  model.NodePositions{},
		phase:      PhaseEmpty,
		fitPadding: 24,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.index = BuildIndex(model.ConceptGraph{})
	c.recompute()
	return c
}

// OnExpansionChange registers fn to receive the sorted expanded IDs after
// every toggle.
func (c *Controller) OnExpansionChange(fn func(expandedIDs []string)) {
	c.onExpansion = append(c.onExpansion, fn)
}

// OnPositionsChange registers fn to receive the manual positions after every
// drag commit or position reset, and after an expansion change drops the
// positions of nodes it hid.
func (c *Controller) OnPositionsChange(fn func(model.NodePositions)) {
	c.onPositions = append(c.onPositions, fn)
}

// OnRender registers fn to receive the view after every recomputation.
func (c *Controller) OnRender(fn func(View)) {
	c.onRender = append(c.onRender, fn)
}

// LoadGraph replaces the concept graph wholesale: expansion resets to the
// root only and manual positions are cleared.
func (c *Controller) LoadGraph(g model.ConceptGraph) {
	c.graph = g
	c.index = BuildIndex(g)
	c.err = nil
	c.phase = PhaseReady
	c.overrides = model.NodePositions{}
	c.Reset(c.index.RootID())
}

// Reset makes rootID the only expanded node. An empty rootID collapses
// everything.
func (c *Controller) Reset(rootID string) {
	c.expanded = NewExpansionSet()
	if rootID != "" {
		c.expanded.Add(rootID)
	}
	c.recompute()
}

// Restore applies previously persisted state. Unknown node IDs and unusable
// positions are ignored. A nil state leaves the current state untouched.
func (c *Controller) Restore(state *model.MindMapState) {
	if state == nil {
		return
	}
	c.expanded = NewExpansionSet()
	for _, id := range state.ExpandedNodeIDs {
		if c.index.Has(id) {
			c.expanded.Add(id)
		}
	}
	c.overrides = model.NodePositions{}
	for id, pos := range state.NodePositions {
		if c.index.Has(id) && pos.IsFinite() {
			c.overrides[id] = pos
		}
	}
	debug.Log("controller: restored %d expanded node(s), %d position(s) for %q",
		len(c.expanded), len(c.overrides), state.MapID)
	debug.Dump("controller: restored expansion", c.expanded.Sorted())
	c.recompute()
}

// Toggle flips the expansion of id and recomputes. It implements Toggler.
// Unknown IDs are ignored and report false.
func (c *Controller) Toggle(id string) bool {
	if c.phase == PhaseError || !c.index.Has(id) {
		debug.Log("controller: toggle of unknown node %q ignored", id)
		return false
	}
	c.expanded.Toggle(id)
	pruned := c.recompute()
	c.emitExpansion()
	if pruned {
		c.emitPositions()
	}
	return true
}

// ExpandAll expands every node in the graph.
func (c *Controller) ExpandAll() {
	if c.phase == PhaseError {
		return
	}
	for _, n := range c.index.Nodes() {
		c.expanded.Add(n.ID)
	}
	pruned := c.recompute()
	c.emitExpansion()
	if pruned {
		c.emitPositions()
	}
}

// CollapseAll clears the expansion set, leaving only the root visible.
func (c *Controller) CollapseAll() {
	if c.phase == PhaseError {
		return
	}
	c.expanded = NewExpansionSet()
	pruned := c.recompute()
	c.emitExpansion()
	if pruned {
		c.emitPositions()
	}
}

// ToggleAll expands everything if any visible node with children is
// collapsed, otherwise collapses everything.
func (c *Controller) ToggleAll() {
	if c.hasCollapsedVisible() {
		c.ExpandAll()
		return
	}
	c.CollapseAll()
}

func (c *Controller) hasCollapsedVisible() bool {
	for _, vn := range c.visible.Nodes {
		if c.index.HasChildren(vn.Node.ID) && !c.expanded.Has(vn.Node.ID) {
			return true
		}
	}
	return false
}

// MoveNode records a drag commit for a visible node. The position sticks
// across toggles while the node stays visible.
func (c *Controller) MoveNode(id string, pos model.Position) bool {
	if !c.visible.Contains(id) || !pos.IsFinite() {
		return false
	}
	c.overrides[id] = pos
	c.recompute()
	c.emitPositions()
	return true
}

// ClearPositions drops every manual position.
func (c *Controller) ClearPositions() {
	if len(c.overrides) == 0 {
		return
	}
	c.overrides = model.NodePositions{}
	c.recompute()
	c.emitPositions()
}

// Resize refits the view to a new surface size without re-running layout.
func (c *Controller) Resize(width, height float64) {
	c.surfaceW, c.surfaceH = width, height
	c.view.Fit = FitViewport(c.view.Bounds, width, height, c.fitPadding)
	c.emitRender()
}

// BeginGeneration issues a ticket for a new generation request, superseding
// any request still in flight.
func (c *Controller) BeginGeneration() Ticket {
	c.latest++
	return c.latest
}

// CompleteGeneration applies the outcome of the request identified by t.
// Stale tickets are discarded and report false. A failure, or a graph
// without nodes, enters the error state and retains no graph.
func (c *Controller) CompleteGeneration(t Ticket, g model.ConceptGraph, err error) bool {
	if t != c.latest {
		debug.Log("controller: discarding stale generation %d (latest %d)", t, c.latest)
		return false
	}
	if err == nil && g.IsEmpty() {
		err = model.ErrEmptyGraph
	}
	if err != nil {
		c.Fail(err)
		return true
	}
	c.LoadGraph(g)
	return true
}

// Fail enters the error display state. A nil err is reported as
// model.ErrGenerationFailed.
func (c *Controller) Fail(err error) {
	if err == nil {
		err = model.ErrGenerationFailed
	}
	c.graph = model.ConceptGraph{}
	c.index = BuildIndex(c.graph)
	c.expanded = NewExpansionSet()
	c.overrides = model.NodePositions{}
	c.err = err
	c.phase = PhaseError
	c.recompute()
}

// Phase returns the display state.
func (c *Controller) Phase() Phase { return c.phase }

// Err returns the generation error while in the error state.
func (c *Controller) Err() error { return c.err }

// Graph returns the current concept graph.
func (c *Controller) Graph() model.ConceptGraph { return c.graph }

// Index returns the current graph index.
func (c *Controller) Index() *Index { return c.index }

// Expanded returns the expanded node IDs in sorted order.
func (c *Controller) Expanded() []string { return c.expanded.Sorted() }

// IsExpanded reports whether id is expanded.
func (c *Controller) IsExpanded(id string) bool { return c.expanded.Has(id) }

// Positions returns a copy of the manual positions.
func (c *Controller) Positions() model.NodePositions { return c.overrides.Clone() }

// Visible returns the current visible subgraph.
func (c *Controller) Visible() Subgraph { return c.visible }

// Layout returns the current layout.
func (c *Controller) Layout() Result { return c.layout }

// View returns the current rendered view.
func (c *Controller) View() View { return c.view }

// State returns the persistable state for mapID.
func (c *Controller) State(mapID string) model.MindMapState {
	return model.MindMapState{
		Version:         model.MindMapStateVersion,
		MapID:           mapID,
		ExpandedNodeIDs: c.expanded.Sorted(),
		NodePositions:   c.overrides.Clone(),
		UpdatedAt:       time.Now().UTC(),
	}
}

// recompute re-resolves visibility, drops positions of nodes that are no
// longer visible, re-runs layout and re-renders. It reports whether any
// position was dropped.
func (c *Controller) recompute() (pruned bool) {
	defer debug.LogEnterExit("recompute")()
	if c.phase == PhaseError {
		c.visible = Subgraph{}
		c.layout = Result{Direction: c.engine.Config().Direction}
		c.view = View{Phase: PhaseError, Direction: c.layout.Direction, Err: c.err.Error()}
		c.emitRender()
		return false
	}

	c.visible = Resolve(c.index, c.expanded)
	for id := range c.overrides {
		if !c.visible.Contains(id) {
			delete(c.overrides, id)
			pruned = true
		}
	}
	c.layout = c.engine.Layout(c.visible, c.overrides)
	c.view = Render(c.index, c.visible, c.layout, c.expanded, c)
	if c.surfaceW > 0 && c.surfaceH > 0 {
		c.view.Fit = FitViewport(c.view.Bounds, c.surfaceW, c.surfaceH, c.fitPadding)
	}
	if c.view.Phase == PhaseEmpty {
		c.phase = PhaseEmpty
	}
	c.emitRender()
	return pruned
}

func (c *Controller) emitExpansion() {
	ids := c.expanded.Sorted()
	for _, fn := range c.onExpansion {
		fn(ids)
	}
}

func (c *Controller) emitPositions() {
	for _, fn := range c.onPositions {
		fn(c.overrides.Clone())
	}
}

func (c *Controller) emitRender() {
	for _, fn := range c.onRender {
		fn(c.view)
	}
}
