package mindmap

import (
	"math"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/vanderheijden86/conceptmap/pkg/model"
	"github.com/vanderheijden86/conceptmap/pkg/testutil"
)

const eps = 1e-9

func sampleLayout(t *testing.T, cfg LayoutConfig, expanded ...string) (Subgraph, Result) {
	t.Helper()
	idx := BuildIndex(testutil.Sample())
	sg := Resolve(idx, NewExpansionSet(expanded...))
	return sg, NewEngine(cfg).Layout(sg, nil)
}

func mustNode(t *testing.T, r Result, id string) NodeLayout {
	t.Helper()
	n, ok := r.Node(id)
	if !ok {
		t.Fatalf("node %s missing from layout", id)
	}
	return n
}

func TestLayout_SampleLR(t *testing.T) {
	_, res := sampleLayout(t, DefaultLayoutConfig(), "A", "B")

	a, b, c, d := mustNode(t, res, "A"), mustNode(t, res, "B"), mustNode(t, res, "C"), mustNode(t, res, "D")

	if a.Rank != 0 || b.Rank != 1 || c.Rank != 1 || d.Rank != 2 {
		t.Errorf("ranks A=%d B=%d C=%d D=%d, want 0 1 1 2", a.Rank, b.Rank, c.Rank, d.Rank)
	}
	// Ranks advance along X by node width plus rank gap.
	if a.Position.X != 0 || b.Position.X != 272 || c.Position.X != 272 || d.Position.X != 544 {
		t.Errorf("X positions A=%v B=%v C=%v D=%v", a.Position.X, b.Position.X, c.Position.X, d.Position.X)
	}
	// Siblings keep edge order and are separated by the node gap.
	if b.Order != 0 || c.Order != 1 {
		t.Errorf("order B=%d C=%d, want 0 1", b.Order, c.Order)
	}
	if got := c.Position.Y - (b.Position.Y + b.Height); math.Abs(got-30) > eps {
		t.Errorf("sibling gap = %v, want 30", got)
	}
	// The sibling run is centered on its parent.
	runCenter := (b.Position.Y + c.Position.Y + c.Height) / 2
	if math.Abs(runCenter-a.Center().Y) > eps {
		t.Errorf("sibling run center %v, parent center %v", runCenter, a.Center().Y)
	}
	if math.Abs(d.Center().Y-b.Center().Y) > eps {
		t.Errorf("only child D center %v, parent B center %v", d.Center().Y, b.Center().Y)
	}
	if res.Bounds.MinY != 0 || res.Bounds.MinX != 0 {
		t.Errorf("bounds not normalized: %+v", res.Bounds)
	}
}

func TestLayout_TopToBottom(t *testing.T) {
	cfg := DefaultLayoutConfig()
	cfg.Direction = DirectionTB
	_, res := sampleLayout(t, cfg, "A")

	a, b, c := mustNode(t, res, "A"), mustNode(t, res, "B"), mustNode(t, res, "C")
	if res.Direction != DirectionTB {
		t.Errorf("direction = %s", res.Direction)
	}
	if b.Position.Y != a.Height+cfg.RankSep || c.Position.Y != b.Position.Y {
		t.Errorf("rank Y positions A=%v B=%v C=%v", a.Position.Y, b.Position.Y, c.Position.Y)
	}
	if got := c.Position.X - (b.Position.X + b.Width); math.Abs(got-cfg.NodeSep) > eps {
		t.Errorf("sibling gap = %v, want %v", got, cfg.NodeSep)
	}
	for _, e := range res.Edges {
		src := mustNode(t, res, e.Source)
		if e.Points[0].Y != src.Position.Y+src.Height {
			t.Errorf("edge %s does not leave from the bottom of %s", e.ID, e.Source)
		}
	}
}

func TestLayout_Idempotent(t *testing.T) {
	g := testutil.QuickTree(3, 3)
	idx := BuildIndex(g)
	sg := Resolve(idx, NewExpansionSet(testutil.NodeIDs(g)...))
	engine := NewEngine(DefaultLayoutConfig())
	overrides := model.NodePositions{"n2": {X: 10, Y: -40}}

	first := engine.Layout(sg, overrides)
	second := engine.Layout(sg, overrides)
	if !reflect.DeepEqual(first.Nodes, second.Nodes) || !reflect.DeepEqual(first.Edges, second.Edges) {
		t.Error("layout differs between identical calls")
	}
}

func TestLayout_NoOverlapWithinRank(t *testing.T) {
	gen := testutil.New(testutil.GeneratorConfig{Seed: 11, LongLabels: true})
	g := gen.ToConceptGraph(gen.RandomDAG(25, 0.15))
	idx := BuildIndex(g)
	sg := Resolve(idx, NewExpansionSet(testutil.NodeIDs(g)...))
	res := NewEngine(DefaultLayoutConfig()).Layout(sg, nil)

	assertNoRankOverlap(t, res, DefaultLayoutConfig().NodeSep)
}

func assertNoRankOverlap(t *testing.T, res Result, sep float64) {
	t.Helper()
	byRank := map[int][]NodeLayout{}
	for _, n := range res.Nodes {
		byRank[n.Rank] = append(byRank[n.Rank], n)
	}
	for rank, nodes := range byRank {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Order < nodes[j].Order })
		for i := 1; i < len(nodes); i++ {
			prev, cur := nodes[i-1], nodes[i]
			prevEnd, start := prev.Position.Y+prev.Height, cur.Position.Y
			if res.Direction == DirectionTB {
				prevEnd, start = prev.Position.X+prev.Width, cur.Position.X
			}
			if start < prevEnd+sep-1e-6 {
				t.Errorf("rank %d: %s (ends %v) overlaps %s (starts %v)", rank, prev.ID, prevEnd, cur.ID, start)
			}
		}
	}
}

func TestLayout_Overrides(t *testing.T) {
	idx := BuildIndex(testutil.Sample())
	sg := Resolve(idx, NewExpansionSet("A"))
	engine := NewEngine(DefaultLayoutConfig())

	base := engine.Layout(sg, nil)
	moved := engine.Layout(sg, model.NodePositions{
		"C":     {X: 900, Y: 900},
		"D":     {X: 1, Y: 1},
		"B":     {X: math.NaN(), Y: 0},
		"ghost": {X: 5, Y: 5},
	})

	c := mustNode(t, moved, "C")
	if c.Position != (model.Position{X: 900, Y: 900}) || !c.Overridden {
		t.Errorf("C = %+v, want overridden at 900,900", c)
	}
	if b := mustNode(t, moved, "B"); b.Overridden || b.Position != mustNode(t, base, "B").Position {
		t.Errorf("NaN override applied to B: %+v", b)
	}
	if _, ok := moved.Node("D"); ok {
		t.Error("override made invisible node D appear")
	}
	// Edges follow the overridden position.
	for _, e := range moved.Edges {
		if e.Target == "C" {
			last := e.Points[len(e.Points)-1]
			if last.X != 900 {
				t.Errorf("edge into C ends at x=%v, want 900", last.X)
			}
		}
	}
	if moved.Bounds.MaxY != 900+c.Height {
		t.Errorf("bounds MaxY = %v, want %v", moved.Bounds.MaxY, 900+c.Height)
	}
}

func TestLayout_EdgeStyles(t *testing.T) {
	g := model.ConceptGraph{
		Nodes: []model.ConceptNode{{ID: "r"}, {ID: "a"}, {ID: "b"}},
		Edges: []model.ConceptEdge{
			{ID: "ra", Source: "r", Target: "a"},
			{ID: "ab", Source: "a", Target: "b"},
			{ID: "rb", Source: "r", Target: "b"},
			{ID: "ba", Source: "b", Target: "a"},
			{ID: "aa", Source: "a", Target: "a"},
		},
	}
	idx := BuildIndex(g)
	sg := Resolve(idx, NewExpansionSet("r", "a", "b"))
	res := NewEngine(DefaultLayoutConfig()).Layout(sg, nil)

	want := map[string]EdgeStyle{"ra": EdgeSmoothStep, "ab": EdgeBack, "rb": EdgeSmoothStep, "ba": EdgeBack, "aa": EdgeSelf}
	for _, e := range res.Edges {
		if e.Style != want[e.ID] {
			t.Errorf("edge %s style = %s, want %s", e.ID, e.Style, want[e.ID])
		}
	}

	chain := BuildIndex(model.ConceptGraph{
		Nodes: []model.ConceptNode{{ID: "x"}, {ID: "y"}, {ID: "z"}},
		Edges: []model.ConceptEdge{
			{ID: "xy", Source: "x", Target: "y"},
			{ID: "yz", Source: "y", Target: "z"},
			{ID: "xz", Source: "x", Target: "z"},
		},
	})
	res = NewEngine(DefaultLayoutConfig()).Layout(Resolve(chain, NewExpansionSet("x", "y")), nil)
	for _, e := range res.Edges {
		if e.ID == "xz" && e.Style != EdgeSmoothStep {
			t.Errorf("xz style = %s; z is one hop from x", e.Style)
		}
	}
	if z := mustNode(t, res, "z"); z.Rank != 1 {
		t.Errorf("z rank = %d, want 1 (shortest hop distance)", z.Rank)
	}
}

func TestLayout_Empty(t *testing.T) {
	res := NewEngine(LayoutConfig{}).Layout(Subgraph{}, model.NodePositions{"a": {}})
	if !res.IsEmpty() || len(res.Edges) != 0 {
		t.Errorf("empty subgraph produced %+v", res)
	}
	if res.Direction != DirectionLR {
		t.Errorf("zero config direction = %q, want LR", res.Direction)
	}
}

func TestNodeSize(t *testing.T) {
	cfg := DefaultLayoutConfig()

	tests := []struct {
		label string
		want  float64
	}{
		{"", 36},
		{"short", 36},
		{strings.Repeat("x", 25), 36},
		{strings.Repeat("x", 26), 56},
		{strings.Repeat("x", 75), 76},
		{strings.Repeat("概", 13), 56}, // wide runes take two cells
	}
	for _, tt := range tests {
		got := cfg.NodeSize(tt.label)
		if got.Height != tt.want || got.Width != 172 {
			t.Errorf("NodeSize(%q) = %+v, want height %v", tt.label, got, tt.want)
		}
	}
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"": DirectionLR, "lr": DirectionLR, "TB": DirectionTB, "td": DirectionTB, "vertical": DirectionTB} {
		got, err := ParseDirection(in)
		if err != nil || got != want {
			t.Errorf("ParseDirection(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDirection("diagonal"); err == nil {
		t.Error("expected error for unknown direction")
	}
}

func TestLayoutConfig_NormalizesUnusableValues(t *testing.T) {
	e := NewEngine(LayoutConfig{Direction: "sideways", NodeWidth: -1, RankSep: math.Inf(1), CharsPerLine: -3})
	cfg := e.Config()
	def := DefaultLayoutConfig()
	if cfg != def {
		t.Errorf("normalized config = %+v, want defaults %+v", cfg, def)
	}
}

func TestLayout_FailureFallsBackToColumn(t *testing.T) {
	testHookLayout = func(*layoutContext) { panic("broken pass") }
	t.Cleanup(func() { testHookLayout = nil })

	cfg := DefaultLayoutConfig()
	idx := BuildIndex(testutil.Sample())
	sg := Resolve(idx, NewExpansionSet("A", "B"))
	pinned := model.Position{X: 400, Y: -20}
	res := NewEngine(cfg).Layout(sg, model.NodePositions{"C": pinned})

	if len(res.Nodes) != sg.Len() || len(res.Edges) != len(sg.Edges) {
		t.Fatalf("fallback has %d nodes / %d edges, want %d / %d", len(res.Nodes), len(res.Edges), sg.Len(), len(sg.Edges))
	}
	prevY := math.Inf(-1)
	for _, n := range res.Nodes {
		if !n.Position.IsFinite() || n.Width != cfg.NodeWidth || n.Height != cfg.BaseHeight {
			t.Errorf("node %s = %+v, want default size at a finite position", n.ID, n)
		}
		if n.ID == "C" {
			continue
		}
		if n.Position.X != 0 || n.Position.Y <= prevY {
			t.Errorf("node %s at %v is not stacked in one column", n.ID, n.Position)
		}
		prevY = n.Position.Y
	}
	if c := mustNode(t, res, "C"); c.Position != pinned || !c.Overridden {
		t.Errorf("override lost in fallback: %+v", c)
	}
	if res.Bounds.Width() <= 0 || res.Bounds.Height() <= 0 {
		t.Errorf("bounds = %+v", res.Bounds)
	}
}

func TestController_SurvivesLayoutFailure(t *testing.T) {
	c := NewController(nil)
	c.LoadGraph(testutil.Sample())

	testHookLayout = func(*layoutContext) { panic("broken pass") }
	t.Cleanup(func() { testHookLayout = nil })

	if !c.Toggle("B") {
		t.Fatal("Toggle B")
	}
	if c.Phase() != PhaseReady || len(c.View().Nodes) != 4 {
		t.Errorf("phase %s with %d rendered nodes, want ready with 4", c.Phase(), len(c.View().Nodes))
	}
}
