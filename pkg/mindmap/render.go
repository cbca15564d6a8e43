package mindmap

import (
	"fmt"
	"math"

	"github.com/vanderheijden86/conceptmap/pkg/metrics"
	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// DepthBands is the number of depth-derived style classes; deeper nodes share
// the last band.
const DepthBands = 5

// Toggler is the capability a rendered node holds to flip its expansion.
type Toggler interface {
	Toggle(id string) bool
}

// ToggleHandle binds a node ID to a Toggler so the drawing surface can
// trigger expansion without holding closures inside node data.
type ToggleHandle struct {
	id string
	t  Toggler
}

// NodeID returns the node the handle toggles.
func (h ToggleHandle) NodeID() string { return h.id }

// Valid reports whether the handle is bound.
func (h ToggleHandle) Valid() bool { return h.t != nil && h.id != "" }

// Invoke toggles the bound node and reports whether anything changed.
func (h ToggleHandle) Invoke() bool {
	if !h.Valid() {
		return false
	}
	return h.t.Toggle(h.id)
}

// RenderNode is a positioned, drawable node.
type RenderNode struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Position    model.Position `json:"position"`
	Width       float64        `json:"width"`
	Height      float64        `json:"height"`
	Depth       int            `json:"depth"`
	StyleClass  string         `json:"class"`
	HasChildren bool           `json:"has_children"`
	Expanded    bool           `json:"expanded"`
	Overridden  bool           `json:"overridden,omitempty"`
	Toggle      ToggleHandle   `json:"-"`
}

// RenderEdge is a drawable edge.
type RenderEdge struct {
	ID     string           `json:"id"`
	Source string           `json:"source"`
	Target string           `json:"target"`
	Style  EdgeStyle        `json:"style"`
	Points []model.Position `json:"points,omitempty"`
}

// Phase is the display state of a mind map.
type Phase string

const (
	PhaseEmpty Phase = "empty" // nothing loaded, or a graph without nodes
	PhaseReady Phase = "ready"
	PhaseError Phase = "error" // generation failed; no graph retained
)

// Viewport is the transform that fits the layout into a drawing surface.
type Viewport struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// View is the complete output handed to a drawing surface on every
// recomputation.
type View struct {
	Phase     Phase        `json:"phase"`
	Title     string       `json:"title,omitempty"`
	Err       string       `json:"error,omitempty"`
	Direction Direction    `json:"direction"`
	Nodes     []RenderNode `json:"nodes"`
	Edges     []RenderEdge `json:"edges"`
	Bounds    Bounds       `json:"bounds"`
	Fit       Viewport     `json:"fit"`
}

// StyleClass maps a depth to its presentation band ("root", "depth-1", ...).
func StyleClass(depth int) string {
	if depth <= 0 {
		return "root"
	}
	if depth >= DepthBands {
		depth = DepthBands - 1
	}
	return fmt.Sprintf("depth-%d", depth)
}

// Render maps a laid-out visible subgraph onto drawable records. It keeps no
// state; t may be nil for static output.
func Render(idx *Index, sg Subgraph, lr Result, expanded ExpansionSet, t Toggler) View {
	defer metrics.Timer(metrics.ViewRender)()

	view := View{
		Phase:     PhaseEmpty,
		Direction: lr.Direction,
		Nodes:     make([]RenderNode, 0, len(sg.Nodes)),
		Edges:     make([]RenderEdge, 0, len(lr.Edges)),
		Bounds:    lr.Bounds,
	}
	if idx != nil {
		view.Title = idx.Title()
	}
	if sg.IsEmpty() {
		return view
	}
	view.Phase = PhaseReady

	for _, vn := range sg.Nodes {
		nl, ok := lr.Node(vn.Node.ID)
		if !ok {
			continue
		}
		rn := RenderNode{
			ID:         vn.Node.ID,
			Label:      vn.Node.DisplayLabel(),
			Position:   nl.Position,
			Width:      nl.Width,
			Height:     nl.Height,
			Depth:      vn.Depth,
			StyleClass: StyleClass(vn.Depth),
			Expanded:   expanded.Has(vn.Node.ID),
			Overridden: nl.Overridden,
		}
		if idx != nil {
			rn.HasChildren = idx.HasChildren(vn.Node.ID)
		}
		if t != nil {
			rn.Toggle = ToggleHandle{id: vn.Node.ID, t: t}
		}
		view.Nodes = append(view.Nodes, rn)
	}
	for _, el := range lr.Edges {
		view.Edges = append(view.Edges, RenderEdge{
			ID:     el.ID,
			Source: el.Source,
			Target: el.Target,
			Style:  el.Style,
			Points: el.Points,
		})
	}
	return view
}

// FitViewport scales and centers bounds inside a width x height surface with
// padding on every side. The scale never exceeds 1.
func FitViewport(b Bounds, width, height, padding float64) Viewport {
	vp := Viewport{Width: width, Height: height, Scale: 1}
	if width <= 0 || height <= 0 {
		return vp
	}
	availW := math.Max(width-2*padding, 1)
	availH := math.Max(height-2*padding, 1)
	if bw, bh := b.Width(), b.Height(); bw > 0 && bh > 0 {
		vp.Scale = math.Min(1, math.Min(availW/bw, availH/bh))
	}
	vp.OffsetX = (width-b.Width()*vp.Scale)/2 - b.MinX*vp.Scale
	vp.OffsetY = (height-b.Height()*vp.Scale)/2 - b.MinY*vp.Scale
	return vp
}
