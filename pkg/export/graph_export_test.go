package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/conceptmap/pkg/mindmap"
	"github.com/vanderheijden86/conceptmap/pkg/model"
	"github.com/vanderheijden86/conceptmap/pkg/testutil"
)

// sampleView returns the Sample graph with A and B expanded, so all four
// nodes are visible.
func sampleView(t *testing.T, dir mindmap.Direction) mindmap.View {
	t.Helper()
	engine := mindmap.NewEngine(mindmap.LayoutConfig{Direction: dir})
	c := mindmap.NewController(engine)
	c.LoadGraph(testutil.Sample())
	c.Toggle("B")
	v := c.View()
	if len(v.Nodes) != 4 {
		t.Fatalf("sample view has %d nodes, want 4", len(v.Nodes))
	}
	return v
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{".JSON", FormatJSON, false},
		{"gv", FormatDOT, false},
		{"dot", FormatDOT, false},
		{"mmd", FormatMermaid, false},
		{"mermaid", FormatMermaid, false},
		{"svg", FormatSVG, false},
		{"png", FormatPNG, false},
		{"pdf", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) err = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if _, err := FormatForPath("noext"); err == nil {
		t.Error("FormatForPath without extension should fail")
	}
}

func TestExportView_JSON(t *testing.T) {
	v := sampleView(t, mindmap.DirectionLR)
	data, err := ExportView(v, FormatJSON)
	if err != nil {
		t.Fatalf("ExportView: %v", err)
	}

	var decoded struct {
		Phase string `json:"phase"`
		Title string `json:"title"`
		Nodes []struct {
			ID          string         `json:"id"`
			Class       string         `json:"class"`
			HasChildren bool           `json:"has_children"`
			Position    model.Position `json:"position"`
		} `json:"nodes"`
		Edges []struct {
			Source string `json:"source"`
			Target string `json:"target"`
		} `json:"edges"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Phase != "ready" || decoded.Title != "Sample" {
		t.Errorf("phase/title = %q/%q", decoded.Phase, decoded.Title)
	}
	if len(decoded.Nodes) != 4 || len(decoded.Edges) != 3 {
		t.Fatalf("nodes/edges = %d/%d", len(decoded.Nodes), len(decoded.Edges))
	}
	if decoded.Nodes[0].ID != "A" || decoded.Nodes[0].Class != "root" || !decoded.Nodes[0].HasChildren {
		t.Errorf("first node = %+v", decoded.Nodes[0])
	}
	if bytes.Contains(data, []byte("Toggle")) {
		t.Error("toggle handles must not be serialized")
	}
}

func TestExportView_DOT(t *testing.T) {
	lr, err := ExportView(sampleView(t, mindmap.DirectionLR), FormatDOT)
	if err != nil {
		t.Fatal(err)
	}
	dot := string(lr)
	for _, want := range []string{
		"digraph G {",
		"rankdir=LR;",
		`"A" -> "B";`,
		`"B" -> "D";`,
		`class="depth-2"`,
		`label="Alpha [-]"`,
		`label="Delta"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}

	tb, _ := ExportView(sampleView(t, mindmap.DirectionTB), FormatDOT)
	if !strings.Contains(string(tb), "rankdir=TB;") {
		t.Error("TB view should export rankdir=TB")
	}
}

func TestExportView_DOTEscapes(t *testing.T) {
	v := mindmap.View{
		Phase: mindmap.PhaseReady,
		Nodes: []mindmap.RenderNode{{ID: `a"b`, Label: "line\nbreak \\ slash", StyleClass: "root"}},
	}
	data, err := ExportView(v, FormatDOT)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"a\"b"`) || !strings.Contains(string(data), `line break \\ slash`) {
		t.Errorf("DOT not escaped:\n%s", data)
	}
}

func TestExportView_Mermaid(t *testing.T) {
	out, err := ExportView(sampleView(t, mindmap.DirectionLR), FormatMermaid)
	if err != nil {
		t.Fatal(err)
	}
	m := string(out)
	for _, want := range []string{
		"title: Sample",
		"graph LR",
		"classDef root",
		"classDef depth_1",
		`A["Alpha -"]`,
		`C["Gamma"]`,
		"class D depth_2",
		"A --> B",
		"B --> D",
	} {
		if !strings.Contains(m, want) {
			t.Errorf("Mermaid missing %q:\n%s", want, m)
		}
	}

	tb, _ := ExportView(sampleView(t, mindmap.DirectionTB), FormatMermaid)
	if !strings.Contains(string(tb), "graph TD") {
		t.Error("TB view should export graph TD")
	}
}

func TestMermaidIDs_Collisions(t *testing.T) {
	v := mindmap.View{Nodes: []mindmap.RenderNode{{ID: "a b"}, {ID: "ab"}, {ID: "end"}, {ID: "!!"}}}
	ids := mermaidIDs(v)
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate mermaid id %q in %v", id, ids)
		}
		seen[id] = true
	}
	if ids["end"] == "end" {
		t.Error("reserved word not rewritten")
	}
	if ids["!!"] != "node" {
		t.Errorf("empty sanitized id = %q, want node", ids["!!"])
	}
}

func TestExportView_Deterministic(t *testing.T) {
	v := sampleView(t, mindmap.DirectionLR)
	for _, f := range []Format{FormatJSON, FormatDOT, FormatMermaid, FormatSVG} {
		a, err := ExportView(v, f)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		b, _ := ExportView(v, f)
		if !bytes.Equal(a, b) {
			t.Errorf("%s export is not deterministic", f)
		}
	}
	if _, err := ExportView(v, FormatPNG); err == nil {
		t.Error("PNG is not a text format")
	}
}

func TestSave(t *testing.T) {
	v := sampleView(t, mindmap.DirectionLR)
	dir := t.TempDir()

	for _, name := range []string{"map.json", "map.dot", "map.mmd", "map.svg", "nested/map.png"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := Save(v, path, ""); err != nil {
				t.Fatalf("Save: %v", err)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("output not created: %v", err)
			}
			if info.Size() == 0 {
				t.Fatal("output file is empty")
			}
		})
	}

	t.Run("explicit format overrides extension", func(t *testing.T) {
		path := filepath.Join(dir, "out.txt")
		if err := Save(v, path, FormatMermaid); err != nil {
			t.Fatal(err)
		}
		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), "graph LR") {
			t.Errorf("expected mermaid output, got %q", data)
		}
	})

	t.Run("unknown extension", func(t *testing.T) {
		if err := Save(v, filepath.Join(dir, "out.txt"), ""); err == nil {
			t.Error("expected error for .txt")
		}
	})
}
