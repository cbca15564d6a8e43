package mindmap

import (
	"testing"

	"github.com/vanderheijden86/conceptmap/pkg/model"
	"github.com/vanderheijden86/conceptmap/pkg/testutil"
)

func edgePairs(edges []model.ConceptEdge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.Source + "->" + e.Target
	}
	return out
}

func TestResolve_Sample(t *testing.T) {
	idx := BuildIndex(testutil.Sample())

	tests := []struct {
		name      string
		expanded  ExpansionSet
		wantNodes []string
		wantEdges []string
	}{
		{"root expanded", NewExpansionSet("A"), []string{"A", "B", "C"}, []string{"A->B", "A->C"}},
		{"root and B expanded", NewExpansionSet("A", "B"), []string{"A", "B", "C", "D"}, []string{"A->B", "A->C", "B->D"}},
		{"root collapsed, B expanded", NewExpansionSet("B"), []string{"A"}, nil},
		{"nothing expanded", NewExpansionSet(), []string{"A"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sg := Resolve(idx, tt.expanded)
			testutil.AssertSameIDs(t, sg.IDs(), tt.wantNodes)
			testutil.AssertSameIDs(t, edgePairs(sg.Edges), tt.wantEdges)
		})
	}
}

func TestResolve_ToggleSequence(t *testing.T) {
	idx := BuildIndex(testutil.Sample())
	exp := NewExpansionSet("A")

	exp.Toggle("B")
	sg := Resolve(idx, exp)
	testutil.AssertSameIDs(t, sg.IDs(), []string{"A", "B", "C", "D"})

	exp.Toggle("A")
	sg = Resolve(idx, exp)
	testutil.AssertSameIDs(t, sg.IDs(), []string{"A"})
	if len(sg.Edges) != 0 {
		t.Errorf("edges = %v, want none", edgePairs(sg.Edges))
	}
}

func TestResolve_DepthAndParent(t *testing.T) {
	idx := BuildIndex(testutil.Sample())
	sg := Resolve(idx, NewExpansionSet("A", "B"))

	if sg.Nodes[0].Node.ID != "A" || sg.Nodes[0].Depth != 0 || sg.Nodes[0].Parent != "" {
		t.Errorf("first visible node = %+v, want root A", sg.Nodes[0])
	}
	d, ok := sg.Lookup("D")
	if !ok {
		t.Fatal("D not visible")
	}
	if d.Depth != 2 || d.Parent != "B" {
		t.Errorf("D depth=%d parent=%q, want 2 and B", d.Depth, d.Parent)
	}
}

func TestResolve_MalformedEdgeNeverVisible(t *testing.T) {
	g := testutil.Sample()
	g.Edges = append(g.Edges, model.ConceptEdge{ID: "e-X-Y", Source: "X", Target: "Y"})
	g.Edges = append(g.Edges, model.ConceptEdge{ID: "e-A-Y", Source: "A", Target: "Y"})
	idx := BuildIndex(g)

	sg := Resolve(idx, NewExpansionSet("A", "B", "C", "D", "X", "Y"))
	if sg.Contains("Y") || sg.Contains("X") {
		t.Error("unknown node became visible")
	}
	for _, e := range sg.Edges {
		if e.Target == "Y" || e.Source == "X" {
			t.Errorf("malformed edge %s visible", e.ID)
		}
	}
}

func TestResolve_Empty(t *testing.T) {
	if sg := Resolve(BuildIndex(testutil.Empty()), NewExpansionSet("x")); !sg.IsEmpty() {
		t.Errorf("empty graph resolved %d nodes", sg.Len())
	}
	if sg := Resolve(nil, nil); !sg.IsEmpty() {
		t.Error("nil index resolved nodes")
	}
}

func TestResolve_CycleTerminates(t *testing.T) {
	g := testutil.QuickCycle(5)
	idx := BuildIndex(g)
	all := NewExpansionSet(testutil.NodeIDs(g)...)

	sg := Resolve(idx, all)
	if sg.Len() != 5 {
		t.Errorf("visible = %d, want 5", sg.Len())
	}
	// The back edge n4 -> n0 joins two visible nodes, so it is visible too.
	if len(sg.Edges) != 5 {
		t.Errorf("edges = %d, want 5", len(sg.Edges))
	}
}

func TestResolve_DiamondVisitsSharedChildOnce(t *testing.T) {
	g := testutil.QuickDiamond(3)
	idx := BuildIndex(g)
	sg := Resolve(idx, NewExpansionSet(testutil.NodeIDs(g)...))

	if sg.Len() != 5 {
		t.Fatalf("visible = %d, want 5", sg.Len())
	}
	bottom, _ := sg.Lookup("bottom")
	if bottom.Parent != "mid1" {
		t.Errorf("bottom revealed by %q, want mid1", bottom.Parent)
	}
}

func TestExpansionSet(t *testing.T) {
	s := NewExpansionSet("b", "a")
	if !s.Toggle("c") || !s.Has("c") {
		t.Error("Toggle should add c")
	}
	if s.Toggle("a") || s.Has("a") {
		t.Error("Toggle should remove a")
	}
	if got := s.Sorted(); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("Sorted = %v, want [b c]", got)
	}
	c := s.Clone()
	c.Add("z")
	if s.Has("z") {
		t.Error("Clone shares storage")
	}
}
