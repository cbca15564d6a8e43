package export

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/conceptmap/pkg/mindmap"
	"github.com/vanderheijden86/conceptmap/pkg/model"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"
)

// Snapshot geometry, in layout units.
const (
	snapshotPadding = 32.0
	headerHeight    = 64.0
	nodeRadius      = 8.0
	glyphSize       = 12.0
	labelMaxRunes   = 40
)

var (
	colorStroke    = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorEdge      = color.RGBA{0x6b, 0x80, 0xbf, 0xff}
	colorEdgeBack  = color.RGBA{0xc6, 0x6b, 0x6b, 0xff}
	colorText      = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle    = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop  = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG  = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
	colorGlyphFill = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorError     = color.RGBA{0xb7, 0x1c, 0x1c, 0xff}

	// bandColors is indexed by depth band (root, depth-1, ...).
	bandColors = [mindmap.DepthBands]color.RGBA{
		{0xbb, 0xde, 0xfb, 0xff},
		{0xc8, 0xe6, 0xc9, 0xff},
		{0xff, 0xf3, 0xe0, 0xff},
		{0xf8, 0xbb, 0xd0, 0xff},
		{0xcf, 0xd8, 0xdc, 0xff},
	}
)

func bandColor(depth int) color.RGBA {
	switch {
	case depth < 0:
		depth = 0
	case depth >= mindmap.DepthBands:
		depth = mindmap.DepthBands - 1
	}
	return bandColors[depth]
}

// canvas maps layout coordinates onto the snapshot image: the layout bounds
// shifted below the header and inset by padding.
type canvas struct {
	width, height int
	dx, dy        float64
}

func canvasFor(v mindmap.View) canvas {
	w := v.Bounds.Width() + 2*snapshotPadding
	h := v.Bounds.Height() + 2*snapshotPadding + headerHeight
	return canvas{
		width:  int(math.Ceil(math.Max(w, 320))),
		height: int(math.Ceil(math.Max(h, headerHeight+2*snapshotPadding))),
		dx:     snapshotPadding - v.Bounds.MinX,
		dy:     snapshotPadding + headerHeight - v.Bounds.MinY,
	}
}

func (c canvas) pt(p model.Position) (float64, float64) {
	return p.X + c.dx, p.Y + c.dy
}

func summaryLine(v mindmap.View) string {
	if v.Phase == mindmap.PhaseError {
		return "error: " + v.Err
	}
	return fmt.Sprintf("nodes: %d  edges: %d  direction: %s", len(v.Nodes), len(v.Edges), v.Direction)
}

func titleOf(v mindmap.View) string {
	if v.Title != "" {
		return v.Title
	}
	return "Mind map"
}

// glyph returns "+" for a collapsed node with children, "-" for an expanded
// one, and "" for leaves.
func glyph(n mindmap.RenderNode) string {
	if !n.HasChildren {
		return ""
	}
	if n.Expanded {
		return "-"
	}
	return "+"
}

// WriteSVG renders v as an SVG document.
func WriteSVG(w io.Writer, v mindmap.View) error {
	cv := canvasFor(v)
	s := svg.New(w)
	s.Start(cv.width, cv.height)
	s.Rect(0, 0, cv.width, cv.height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	s.Roundrect(8, 8, cv.width-16, int(headerHeight)-8, 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))
	s.Text(24, 32, titleOf(v), fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	summaryColor := colorSubtle
	if v.Phase == mindmap.PhaseError {
		summaryColor = colorError
	}
	s.Text(24, 52, summaryLine(v), fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(summaryColor)))

	for _, e := range v.Edges {
		if len(e.Points) < 2 {
			continue
		}
		xs := make([]int, len(e.Points))
		ys := make([]int, len(e.Points))
		for i, p := range e.Points {
			x, y := cv.pt(p)
			xs[i], ys[i] = int(math.Round(x)), int(math.Round(y))
		}
		stroke := colorEdge
		dash := ""
		if e.Style == mindmap.EdgeBack {
			stroke = colorEdgeBack
			dash = ";stroke-dasharray:6,4"
		}
		s.Polyline(xs, ys, fmt.Sprintf("fill:none;stroke:%s;stroke-width:2%s", css(stroke), dash))
		last := len(xs) - 1
		ax, ay := arrowHead(e.Points[last-1], e.Points[last])
		hx := make([]int, 3)
		hy := make([]int, 3)
		hx[0], hy[0] = xs[last], ys[last]
		for i := 0; i < 2; i++ {
			x, y := cv.pt(model.Position{X: ax[i], Y: ay[i]})
			hx[i+1], hy[i+1] = int(math.Round(x)), int(math.Round(y))
		}
		s.Polygon(hx, hy, fmt.Sprintf("fill:%s", css(stroke)))
	}

	for _, n := range v.Nodes {
		fx, fy := cv.pt(n.Position)
		x, y := int(math.Round(fx)), int(math.Round(fy))
		w, h := int(math.Round(n.Width)), int(math.Round(n.Height))
		s.Gid(n.ID)
		s.Roundrect(x, y, w, h, int(nodeRadius), int(nodeRadius),
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.2", css(bandColor(n.Depth)), css(colorStroke)),
			fmt.Sprintf(`class="%s"`, n.StyleClass))
		s.Text(x+10, y+h/2+4, truncate(n.Label, labelMaxRunes),
			fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorText)))
		if g := glyph(n); g != "" {
			gx := x + w - int(glyphSize) - 6
			gy := y + (h-int(glyphSize))/2
			s.Rect(gx, gy, int(glyphSize), int(glyphSize),
				fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(colorGlyphFill), css(colorStroke)))
			s.Text(gx+int(glyphSize)/2, gy+int(glyphSize)-2, g,
				fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace;text-anchor:middle", css(colorText)))
		}
		s.Gend()
	}

	s.End()
	return nil
}

// SaveSVG writes v as an SVG file at path.
func SaveSVG(v mindmap.View, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSVG(file, v); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// drawPNG rasterizes v into a gg context.
func drawPNG(v mindmap.View) *gg.Context {
	cv := canvasFor(v)
	dc := gg.NewContext(cv.width, cv.height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(8, 8, float64(cv.width)-16, headerHeight-8, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(titleOf(v), 24, 28, 0, 0.5)
	if v.Phase == mindmap.PhaseError {
		dc.SetColor(colorError)
	} else {
		dc.SetColor(colorSubtle)
	}
	dc.DrawStringAnchored(summaryLine(v), 24, 48, 0, 0.5)

	dc.SetLineWidth(2)
	for _, e := range v.Edges {
		if len(e.Points) < 2 {
			continue
		}
		stroke := colorEdge
		if e.Style == mindmap.EdgeBack {
			stroke = colorEdgeBack
			dc.SetDash(6, 4)
		}
		dc.SetColor(stroke)
		for i, p := range e.Points {
			x, y := cv.pt(p)
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.Stroke()
		dc.SetDash()

		last := len(e.Points) - 1
		ax, ay := arrowHead(e.Points[last-1], e.Points[last])
		tx, ty := cv.pt(e.Points[last])
		dc.NewSubPath()
		dc.MoveTo(tx, ty)
		for i := 0; i < 2; i++ {
			x, y := cv.pt(model.Position{X: ax[i], Y: ay[i]})
			dc.LineTo(x, y)
		}
		dc.ClosePath()
		dc.Fill()
	}

	for _, n := range v.Nodes {
		x, y := cv.pt(n.Position)
		dc.SetColor(bandColor(n.Depth))
		dc.DrawRoundedRectangle(x, y, n.Width, n.Height, nodeRadius)
		dc.Fill()
		dc.SetColor(colorStroke)
		dc.SetLineWidth(1.2)
		dc.DrawRoundedRectangle(x, y, n.Width, n.Height, nodeRadius)
		dc.Stroke()

		dc.SetColor(colorText)
		dc.DrawStringAnchored(truncate(n.Label, labelMaxRunes), x+10, y+n.Height/2, 0, 0.5)

		if g := glyph(n); g != "" {
			gx := x + n.Width - glyphSize - 6
			gy := y + (n.Height-glyphSize)/2
			dc.SetColor(colorGlyphFill)
			dc.DrawRectangle(gx, gy, glyphSize, glyphSize)
			dc.Fill()
			dc.SetColor(colorStroke)
			dc.SetLineWidth(1)
			dc.DrawRectangle(gx, gy, glyphSize, glyphSize)
			dc.Stroke()
			dc.DrawStringAnchored(g, gx+glyphSize/2, gy+glyphSize/2, 0.5, 0.5)
		}
	}
	return dc
}

// SavePNG rasterizes v to a PNG file at path.
func SavePNG(v mindmap.View, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	return drawPNG(v).SavePNG(path)
}

// arrowHead returns the two base corners of an arrow pointing from "from"
// to "to", in layout coordinates.
func arrowHead(from, to model.Position) (xs, ys [2]float64) {
	const length, half = 8.0, 4.0
	dx, dy := to.X-from.X, to.Y-from.Y
	d := math.Hypot(dx, dy)
	if d == 0 {
		dx, dy, d = 1, 0, 1
	}
	ux, uy := dx/d, dy/d
	bx, by := to.X-ux*length, to.Y-uy*length
	xs[0], ys[0] = bx-uy*half, by+ux*half
	xs[1], ys[1] = bx+uy*half, by-ux*half
	return xs, ys
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
