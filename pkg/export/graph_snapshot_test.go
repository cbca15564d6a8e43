package export

import (
	"bytes"
	"encoding/xml"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/conceptmap/pkg/mindmap"
	"github.com/vanderheijden86/conceptmap/pkg/model"
)

func TestWriteSVG_ValidXML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, sampleView(t, mindmap.DirectionLR)); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	dec := xml.NewDecoder(&buf)
	for {
		_, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("invalid SVG XML: %v", err)
		}
	}
}

func TestWriteSVG_Content(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, sampleView(t, mindmap.DirectionLR)); err != nil {
		t.Fatal(err)
	}
	svg := buf.String()
	for _, want := range []string{
		"Sample",
		"nodes: 4  edges: 3",
		`id="A"`,
		`class="root"`,
		`class="depth-2"`,
		">Delta<",
		"<polyline",
	} {
		if !strings.Contains(svg, want) {
			t.Errorf("SVG missing %q", want)
		}
	}
	// A and B are expanded parents; C and D are leaves.
	if got := strings.Count(svg, ">-<"); got != 2 {
		t.Errorf("expanded glyphs = %d, want 2", got)
	}
	if strings.Contains(svg, ">+<") {
		t.Error("no collapsed parents expected")
	}
}

func TestWriteSVG_ErrorView(t *testing.T) {
	var buf bytes.Buffer
	v := mindmap.View{Phase: mindmap.PhaseError, Err: "model unavailable"}
	if err := WriteSVG(&buf, v); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "error: model unavailable") {
		t.Errorf("error message not rendered:\n%s", buf.String())
	}
}

func TestSavePNG(t *testing.T) {
	v := sampleView(t, mindmap.DirectionTB)
	path := filepath.Join(t.TempDir(), "map.png")
	if err := SavePNG(v, path); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("not a PNG: %v", err)
	}
	cv := canvasFor(v)
	if b := img.Bounds(); b.Dx() != cv.width || b.Dy() != cv.height {
		t.Errorf("image = %dx%d, want %dx%d", b.Dx(), b.Dy(), cv.width, cv.height)
	}
}

func TestCanvasFor_ShiftsBounds(t *testing.T) {
	v := mindmap.View{Bounds: mindmap.Bounds{MinX: -100, MinY: 50, MaxX: 500, MaxY: 450}}
	cv := canvasFor(v)
	x, y := cv.pt(model.Position{X: -100, Y: 50})
	if x != snapshotPadding || y != snapshotPadding+headerHeight {
		t.Errorf("top-left maps to (%v, %v)", x, y)
	}
	if cv.width != 600+2*int(snapshotPadding) {
		t.Errorf("width = %d", cv.width)
	}

	empty := canvasFor(mindmap.View{})
	if empty.width < 320 || empty.height <= int(headerHeight) {
		t.Errorf("empty canvas too small: %+v", empty)
	}
}

func TestArrowHead(t *testing.T) {
	xs, ys := arrowHead(model.Position{X: 0, Y: 0}, model.Position{X: 10, Y: 0})
	for i := 0; i < 2; i++ {
		if math.Abs(xs[i]-2) > 1e-9 {
			t.Errorf("base x[%d] = %v, want 2", i, xs[i])
		}
	}
	if math.Abs(ys[0]+ys[1]) > 1e-9 || math.Abs(ys[0]) != 4 {
		t.Errorf("base ys = %v", ys)
	}
}

func TestGlyph(t *testing.T) {
	tests := []struct {
		n    mindmap.RenderNode
		want string
	}{
		{mindmap.RenderNode{}, ""},
		{mindmap.RenderNode{HasChildren: true}, "+"},
		{mindmap.RenderNode{HasChildren: true, Expanded: true}, "-"},
		{mindmap.RenderNode{Expanded: true}, ""},
	}
	for _, tt := range tests {
		if got := glyph(tt.n); got != tt.want {
			t.Errorf("glyph(%+v) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo wörld", 8); got != "héllo..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("abcdef", 2); got != "ab" {
		t.Errorf("truncate tiny = %q", got)
	}
}
