package ui

import (
	"reflect"
	"testing"

	"github.com/vanderheijden86/conceptmap/pkg/mindmap"
	"github.com/vanderheijden86/conceptmap/pkg/model"
	"github.com/vanderheijden86/conceptmap/pkg/testutil"
)

func outlineFor(t *testing.T, g model.ConceptGraph, expand ...string) []Row {
	t.Helper()
	c := mindmap.NewController(nil)
	c.LoadGraph(g)
	for _, id := range expand {
		if !c.Toggle(id) {
			t.Fatalf("Toggle(%q) failed", id)
		}
	}
	return BuildOutline(c.Visible(), c.View())
}

func rowIDs(rows []Row) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.Node.ID
	}
	return ids
}

func TestBuildOutline_DepthFirst(t *testing.T) {
	rows := outlineFor(t, testutil.Sample(), "B")
	if got, want := rowIDs(rows), []string{"A", "B", "D", "C"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("outline = %v, want %v", got, want)
	}

	prefixes := make([]string, len(rows))
	for i, r := range rows {
		prefixes[i] = r.prefix()
	}
	want := []string{"", "├── ", "│   └── ", "└── "}
	if !reflect.DeepEqual(prefixes, want) {
		t.Errorf("prefixes = %q, want %q", prefixes, want)
	}
}

func TestBuildOutline_Indicators(t *testing.T) {
	rows := outlineFor(t, testutil.Sample())
	got := map[string]string{}
	for _, r := range rows {
		got[r.Node.ID] = r.indicator()
	}
	want := map[string]string{"A": "▾", "B": "▸", "C": "•"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("indicators = %v, want %v", got, want)
	}
}

func TestBuildOutline_LastChildGuides(t *testing.T) {
	// A -> B, A -> C, C -> D: D sits under the last child, so no guide.
	g := model.ConceptGraph{
		Nodes: []model.ConceptNode{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}},
		Edges: []model.ConceptEdge{
			{ID: "1", Source: "A", Target: "B"},
			{ID: "2", Source: "A", Target: "C"},
			{ID: "3", Source: "C", Target: "D"},
		},
	}
	rows := outlineFor(t, g, "C")
	if got := rowIDs(rows); !reflect.DeepEqual(got, []string{"A", "B", "C", "D"}) {
		t.Fatalf("outline = %v", got)
	}
	if p := rows[3].prefix(); p != "    └── " {
		t.Errorf("prefix under last child = %q", p)
	}
}

func TestBuildOutline_Empty(t *testing.T) {
	if rows := BuildOutline(mindmap.Subgraph{}, mindmap.View{}); rows != nil {
		t.Errorf("rows = %v, want nil", rows)
	}
}

func TestBuildOutline_SharedChildAppearsOnce(t *testing.T) {
	rows := outlineFor(t, testutil.QuickDiamond(2), "mid1", "mid2")
	seen := map[string]int{}
	for _, r := range rows {
		seen[r.Node.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("%s appears %d times", id, n)
		}
	}
}

func TestTruncate_Outline(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a longer label", 6, "a lon…"},
		{"日本語のラベル", 5, "日本…"},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
	if got := singleLine("two\nlines\tand  tabs"); got != "two lines and tabs" {
		t.Errorf("singleLine = %q", got)
	}
}
