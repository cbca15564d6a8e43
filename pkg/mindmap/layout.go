package mindmap

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/conceptmap/pkg/debug"
	"github.com/vanderheijden86/conceptmap/pkg/metrics"
	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// Direction is the axis along which ranks advance.
type Direction string

const (
	DirectionLR Direction = "LR" // ranks left to right (default)
	DirectionTB Direction = "TB" // ranks top to bottom
)

// ParseDirection accepts LR/TB (case-insensitive) and a few spelled-out aliases.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lr", "left-to-right", "horizontal":
		return DirectionLR, nil
	case "tb", "td", "top-to-bottom", "vertical":
		return DirectionTB, nil
	default:
		return "", fmt.Errorf("unknown layout direction %q (want LR or TB)", s)
	}
}

// LayoutConfig holds the layout design constants, in layout units.
type LayoutConfig struct {
	Direction    Direction
	NodeWidth    float64 // fixed node width
	BaseHeight   float64 // height of a single-line label
	LineHeight   float64 // extra height per additional label line
	CharsPerLine int     // label cells per line used for height estimation
	NodeSep      float64 // gap between neighbours in a rank
	RankSep      float64 // gap between ranks
}

// DefaultLayoutConfig returns the standard mind-map spacing.
func DefaultLayoutConfig() LayoutConfig {
	return LayoutConfig{
		Direction:    DirectionLR,
		NodeWidth:    172,
		BaseHeight:   36,
		LineHeight:   20,
		CharsPerLine: 25,
		NodeSep:      30,
		RankSep:      100,
	}
}

// normalized fills unset or unusable fields with defaults.
func (c LayoutConfig) normalized() LayoutConfig {
	def := DefaultLayoutConfig()
	if c.Direction != DirectionLR && c.Direction != DirectionTB {
		c.Direction = def.Direction
	}
	if !positive(c.NodeWidth) {
		c.NodeWidth = def.NodeWidth
	}
	if !positive(c.BaseHeight) {
		c.BaseHeight = def.BaseHeight
	}
	if !positive(c.LineHeight) {
		c.LineHeight = def.LineHeight
	}
	if c.CharsPerLine <= 0 {
		c.CharsPerLine = def.CharsPerLine
	}
	if !positive(c.NodeSep) {
		c.NodeSep = def.NodeSep
	}
	if !positive(c.RankSep) {
		c.RankSep = def.RankSep
	}
	return c
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Size is a node's width and height.
type Size struct {
	Width, Height float64
}

// NodeSize estimates the box for a label: fixed width, and one extra line of
// height per CharsPerLine display cells. Blank labels get the base size.
func (c LayoutConfig) NodeSize(label string) Size {
	c = c.normalized()
	cells := runewidth.StringWidth(strings.TrimSpace(label))
	if cells <= 0 {
		return Size{Width: c.NodeWidth, Height: c.BaseHeight}
	}
	lines := (cells + c.CharsPerLine - 1) / c.CharsPerLine
	return Size{Width: c.NodeWidth, Height: c.BaseHeight + float64(lines-1)*c.LineHeight}
}

// NodeLayout is the placement of one visible node.
type NodeLayout struct {
	ID         string
	Position   model.Position // top-left corner
	Width      float64
	Height     float64
	Rank       int
	Order      int  // index within the rank
	Overridden bool // position came from a manual override
}

// Center returns the center point of the node box.
func (n NodeLayout) Center() model.Position {
	return model.Position{X: n.Position.X + n.Width/2, Y: n.Position.Y + n.Height/2}
}

// EdgeStyle classifies an edge route.
type EdgeStyle string

const (
	EdgeSmoothStep EdgeStyle = "smoothstep" // adjacent ranks, forward
	EdgeLong       EdgeStyle = "long"       // skips one or more ranks
	EdgeBack       EdgeStyle = "back"       // points to the same or an earlier rank
	EdgeSelf       EdgeStyle = "self"       // self loop
)

// EdgeLayout is the route of one visible edge.
type EdgeLayout struct {
	ID     string
	Source string
	Target string
	Style  EdgeStyle
	Points []model.Position // polyline from source anchor to target anchor
}

// Bounds is the axis-aligned box enclosing all nodes.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns the horizontal extent.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Result is the layout of a visible subgraph.
type Result struct {
	Direction Direction
	Nodes     []NodeLayout // same order as Subgraph.Nodes
	Edges     []EdgeLayout // same order as Subgraph.Edges
	Bounds    Bounds

	pos map[string]int
}

// IsEmpty reports whether the layout has no nodes.
func (r Result) IsEmpty() bool { return len(r.Nodes) == 0 }

// Node returns the placement of id.
func (r Result) Node(id string) (NodeLayout, bool) {
	i, ok := r.pos[id]
	if !ok {
		return NodeLayout{}, false
	}
	return r.Nodes[i], true
}

func (r Result) has(id string) bool {
	_, ok := r.pos[id]
	return ok
}

// Engine computes rank layouts. It holds configuration only; every call
// builds its own working state, so an Engine can be shared.
type Engine struct {
	cfg LayoutConfig
}

// NewEngine returns an engine with cfg (unset fields take defaults).
func NewEngine(cfg LayoutConfig) *Engine {
	return &Engine{cfg: cfg.normalized()}
}

// Config returns the effective configuration.
func (e *Engine) Config() LayoutConfig { return e.cfg }

// Layout places the visible nodes in ranks by hop distance from the root,
// centers each sibling group on its parent, then applies manual overrides
// for visible nodes and routes edges between the final positions.
// The result depends only on sg, overrides and the engine config.
func (e *Engine) Layout(sg Subgraph, overrides model.NodePositions) (res Result) {
	defer metrics.Timer(metrics.LayoutCompute)()

	if sg.IsEmpty() {
		return Result{Direction: e.cfg.Direction, pos: map[string]int{}}
	}

	defer func() {
		if r := recover(); r != nil {
			debug.Log("layout: recovered from %v; using fallback placement", r)
			res = e.fallback(sg, overrides)
		}
	}()

	lc := newLayoutContext(e.cfg, sg)
	if testHookLayout != nil {
		testHookLayout(lc)
	}
	lc.assignRanks()
	lc.orderRanks()
	lc.placeAlong()
	lc.placeCross()
	return lc.result(sg, overrides)
}

// testHookLayout, when set, runs between setup and the layout passes.
var testHookLayout func(*layoutContext)

// fallback stacks nodes in a single column with default sizes. Manual
// overrides still apply.
func (e *Engine) fallback(sg Subgraph, overrides model.NodePositions) Result {
	res := Result{Direction: e.cfg.Direction, pos: make(map[string]int, len(sg.Nodes))}
	y := 0.0
	for i, vn := range sg.Nodes {
		res.pos[vn.Node.ID] = i
		nl := NodeLayout{
			ID:       vn.Node.ID,
			Position: model.Position{X: 0, Y: y},
			Width:    e.cfg.NodeWidth,
			Height:   e.cfg.BaseHeight,
			Order:    i,
		}
		if ov, ok := overrides[vn.Node.ID]; ok && ov.IsFinite() {
			nl.Position = ov
			nl.Overridden = true
		}
		res.Nodes = append(res.Nodes, nl)
		y += e.cfg.BaseHeight + e.cfg.NodeSep
	}
	for _, edge := range sg.Edges {
		if !res.has(edge.Source) || !res.has(edge.Target) {
			continue
		}
		res.Edges = append(res.Edges, routeEdge(edge, res, nil))
	}
	res.Bounds = boundsOf(res.Nodes)
	return res
}

// layoutContext is the per-call working state of a layout.
type layoutContext struct {
	cfg   LayoutConfig
	nodes []VisibleNode
	at    map[string]int
	size  []Size
	out   [][]int // successors over visible edges, edge order, deduplicated
	in    [][]int // predecessors over visible edges

	rank   []int
	parent []int   // BFS predecessor used for sibling grouping, -1 for none
	ranks  [][]int // node indexes per rank, in order
	order  []int   // index within rank
	along  []float64
	cross  []float64
}

func newLayoutContext(cfg LayoutConfig, sg Subgraph) *layoutContext {
	n := len(sg.Nodes)
	lc := &layoutContext{
		cfg:    cfg,
		nodes:  sg.Nodes,
		at:     make(map[string]int, n),
		size:   make([]Size, n),
		out:    make([][]int, n),
		in:     make([][]int, n),
		rank:   make([]int, n),
		parent: make([]int, n),
		order:  make([]int, n),
		along:  make([]float64, n),
		cross:  make([]float64, n),
	}
	for i, vn := range sg.Nodes {
		lc.at[vn.Node.ID] = i
		lc.size[i] = cfg.NodeSize(vn.Node.DisplayLabel())
	}
	seen := make(map[[2]int]bool, len(sg.Edges))
	for _, e := range sg.Edges {
		s, okS := lc.at[e.Source]
		t, okT := lc.at[e.Target]
		if !okS || !okT || s == t || seen[[2]int{s, t}] {
			continue
		}
		seen[[2]int{s, t}] = true
		lc.out[s] = append(lc.out[s], t)
		lc.in[t] = append(lc.in[t], s)
	}
	return lc
}

// assignRanks runs a BFS from the root (index 0) over visible edges.
// Nodes the walk cannot reach keep their visibility depth.
func (lc *layoutContext) assignRanks() {
	for i := range lc.rank {
		lc.rank[i] = -1
		lc.parent[i] = -1
	}
	lc.rank[0] = 0
	queue := []int{0}
	var visitOrder []int
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		visitOrder = append(visitOrder, cur)
		for _, next := range lc.out[cur] {
			if lc.rank[next] >= 0 {
				continue
			}
			lc.rank[next] = lc.rank[cur] + 1
			lc.parent[next] = cur
			queue = append(queue, next)
		}
	}
	for i, vn := range lc.nodes {
		if lc.rank[i] >= 0 {
			continue
		}
		lc.rank[i] = vn.Depth
		if p, ok := lc.at[vn.Parent]; ok {
			lc.parent[i] = p
		}
		visitOrder = append(visitOrder, i)
	}

	for _, i := range visitOrder {
		r := lc.rank[i]
		for len(lc.ranks) <= r {
			lc.ranks = append(lc.ranks, nil)
		}
		lc.ranks[r] = append(lc.ranks[r], i)
	}
	lc.reindex()
}

func (lc *layoutContext) reindex() {
	for _, members := range lc.ranks {
		for o, i := range members {
			lc.order[i] = o
		}
	}
}

// orderRanks sorts each rank by the barycenter of its predecessors in the
// previous rank. Nodes without such predecessors keep their slot. The sort
// is stable, so siblings of a single parent keep their edge order.
func (lc *layoutContext) orderRanks() {
	for r := 1; r < len(lc.ranks); r++ {
		members := lc.ranks[r]
		bary := make(map[int]float64, len(members))
		for o, i := range members {
			sum, n := 0.0, 0
			for _, p := range lc.in[i] {
				if lc.rank[p] == r-1 {
					sum += float64(lc.order[p])
					n++
				}
			}
			if n == 0 {
				bary[i] = float64(o)
				continue
			}
			bary[i] = sum / float64(n)
		}
		sort.SliceStable(members, func(a, b int) bool {
			return bary[members[a]] < bary[members[b]]
		})
		for o, i := range members {
			lc.order[i] = o
		}
	}
}

func (lc *layoutContext) alongSize(i int) float64 {
	if lc.cfg.Direction == DirectionTB {
		return lc.size[i].Height
	}
	return lc.size[i].Width
}

func (lc *layoutContext) crossSize(i int) float64 {
	if lc.cfg.Direction == DirectionTB {
		return lc.size[i].Width
	}
	return lc.size[i].Height
}

// placeAlong aligns every node of a rank at the rank's start offset.
func (lc *layoutContext) placeAlong() {
	offset := 0.0
	for _, members := range lc.ranks {
		extent := 0.0
		for _, i := range members {
			lc.along[i] = offset
			extent = math.Max(extent, lc.alongSize(i))
		}
		offset += extent + lc.cfg.RankSep
	}
}

// placeCross packs the first rank, then for each later rank centers every run
// of consecutive siblings on their parent's cross-axis center, pushing runs
// forward where they would overlap the previous node. Order never changes.
func (lc *layoutContext) placeCross() {
	sep := lc.cfg.NodeSep
	for r, members := range lc.ranks {
		prevEnd := math.Inf(-1)
		for start := 0; start < len(members); {
			p := lc.parent[members[start]]
			end := start + 1
			for end < len(members) && lc.parent[members[end]] == p {
				end++
			}

			extent := 0.0
			for k := start; k < end; k++ {
				extent += lc.crossSize(members[k])
			}
			extent += sep * float64(end-start-1)

			var pos float64
			switch {
			case r > 0 && p >= 0 && lc.rank[p] == r-1:
				pos = lc.cross[p] + lc.crossSize(p)/2 - extent/2
			case math.IsInf(prevEnd, -1):
				pos = 0
			default:
				pos = prevEnd + sep
			}
			if !math.IsInf(prevEnd, -1) && pos < prevEnd+sep {
				pos = prevEnd + sep
			}

			for k := start; k < end; k++ {
				i := members[k]
				lc.cross[i] = pos
				pos += lc.crossSize(i) + sep
			}
			prevEnd = pos - sep
			start = end
		}
	}

	minCross := math.Inf(1)
	for _, c := range lc.cross {
		minCross = math.Min(minCross, c)
	}
	for i := range lc.cross {
		lc.cross[i] -= minCross
	}
}

func (lc *layoutContext) result(sg Subgraph, overrides model.NodePositions) Result {
	res := Result{
		Direction: lc.cfg.Direction,
		Nodes:     make([]NodeLayout, len(lc.nodes)),
		pos:       make(map[string]int, len(lc.nodes)),
	}
	for i, vn := range lc.nodes {
		pos := model.Position{X: lc.along[i], Y: lc.cross[i]}
		if lc.cfg.Direction == DirectionTB {
			pos = model.Position{X: lc.cross[i], Y: lc.along[i]}
		}
		nl := NodeLayout{
			ID:       vn.Node.ID,
			Position: pos,
			Width:    lc.size[i].Width,
			Height:   lc.size[i].Height,
			Rank:     lc.rank[i],
			Order:    lc.order[i],
		}
		if ov, ok := overrides[vn.Node.ID]; ok && ov.IsFinite() {
			nl.Position = ov
			nl.Overridden = true
		}
		res.Nodes[i] = nl
		res.pos[vn.Node.ID] = i
	}
	for _, e := range sg.Edges {
		if !res.has(e.Source) || !res.has(e.Target) {
			continue
		}
		res.Edges = append(res.Edges, routeEdge(e, res, lc.rank))
	}
	res.Bounds = boundsOf(res.Nodes)
	return res
}

// routeEdge connects the source's outgoing side to the target's incoming side.
// Forward edges between adjacent ranks get an orthogonal step at the midpoint.
func routeEdge(e model.ConceptEdge, res Result, rank []int) EdgeLayout {
	src, _ := res.Node(e.Source)
	dst, _ := res.Node(e.Target)
	el := EdgeLayout{ID: e.ID, Source: e.Source, Target: e.Target, Style: EdgeSmoothStep}

	if e.Source == e.Target {
		el.Style = EdgeSelf
		c := src.Center()
		if res.Direction == DirectionTB {
			x := src.Position.X + src.Width
			el.Points = []model.Position{{X: x, Y: c.Y - src.Height/4}, {X: x + 20, Y: c.Y}, {X: x, Y: c.Y + src.Height/4}}
		} else {
			y := src.Position.Y + src.Height
			el.Points = []model.Position{{X: c.X - src.Width/4, Y: y}, {X: c.X, Y: y + 20}, {X: c.X + src.Width/4, Y: y}}
		}
		return el
	}

	if rank != nil {
		si, di := res.pos[e.Source], res.pos[e.Target]
		switch diff := rank[di] - rank[si]; {
		case diff <= 0:
			el.Style = EdgeBack
		case diff > 1:
			el.Style = EdgeLong
		}
	}

	var start, end model.Position
	if res.Direction == DirectionTB {
		start = model.Position{X: src.Position.X + src.Width/2, Y: src.Position.Y + src.Height}
		end = model.Position{X: dst.Position.X + dst.Width/2, Y: dst.Position.Y}
	} else {
		start = model.Position{X: src.Position.X + src.Width, Y: src.Position.Y + src.Height/2}
		end = model.Position{X: dst.Position.X, Y: dst.Position.Y + dst.Height/2}
	}
	if el.Style != EdgeSmoothStep {
		el.Points = []model.Position{start, end}
		return el
	}
	if res.Direction == DirectionTB {
		mid := (start.Y + end.Y) / 2
		el.Points = []model.Position{start, {X: start.X, Y: mid}, {X: end.X, Y: mid}, end}
	} else {
		mid := (start.X + end.X) / 2
		el.Points = []model.Position{start, {X: mid, Y: start.Y}, {X: mid, Y: end.Y}, end}
	}
	return el
}

func boundsOf(nodes []NodeLayout) Bounds {
	if len(nodes) == 0 {
		return Bounds{}
	}
	b := Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, n := range nodes {
		b.MinX = math.Min(b.MinX, n.Position.X)
		b.MinY = math.Min(b.MinY, n.Position.Y)
		b.MaxX = math.Max(b.MaxX, n.Position.X+n.Width)
		b.MaxY = math.Max(b.MaxY, n.Position.Y+n.Height)
	}
	return b
}
