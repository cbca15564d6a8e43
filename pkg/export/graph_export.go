package export

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/conceptmap/pkg/metrics"
	"github.com/vanderheijden86/conceptmap/pkg/mindmap"
)

// Format names an export format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatDOT     Format = "dot"
	FormatMermaid Format = "mermaid"
	FormatSVG     Format = "svg"
	FormatPNG     Format = "png"
)

// ParseFormat accepts a format name or a file extension ("mmd", ".gv").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "json":
		return FormatJSON, nil
	case "dot", "gv":
		return FormatDOT, nil
	case "mermaid", "mmd":
		return FormatMermaid, nil
	case "svg":
		return FormatSVG, nil
	case "png":
		return FormatPNG, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want json, dot, mermaid, svg or png)", s)
	}
}

// FormatForPath infers the format from path's extension.
func FormatForPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", fmt.Errorf("cannot infer export format from %q: no extension", path)
	}
	return ParseFormat(ext)
}

// ExportView encodes v in one of the text formats (json, dot, mermaid).
// Output is deterministic for a given view.
func ExportView(v mindmap.View, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(v, "", "  ")
	case FormatDOT:
		return []byte(generateDOT(v)), nil
	case FormatMermaid:
		return []byte(generateMermaid(v)), nil
	case FormatSVG:
		var sb strings.Builder
		if err := WriteSVG(&sb, v); err != nil {
			return nil, err
		}
		return []byte(sb.String()), nil
	default:
		return nil, fmt.Errorf("format %q is not a text format", format)
	}
}

// Save writes v to path. An empty format is inferred from the extension.
func Save(v mindmap.View, path string, format Format) error {
	defer metrics.Timer(metrics.Export)()

	if path == "" {
		return fmt.Errorf("output path is required")
	}
	if format == "" {
		f, err := FormatForPath(path)
		if err != nil {
			return err
		}
		format = f
	}
	switch format {
	case FormatPNG:
		return SavePNG(v, path)
	case FormatSVG:
		return SaveSVG(v, path)
	}
	data, err := ExportView(v, format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// dotFill mirrors the snapshot band colors.
func dotFill(depth int) string {
	return strings.ToUpper(css(bandColor(depth)))
}

func generateDOT(v mindmap.View) string {
	var sb strings.Builder

	rankdir := "LR"
	if v.Direction == mindmap.DirectionTB {
		rankdir = "TB"
	}
	sb.WriteString("digraph G {\n")
	if v.Title != "" {
		fmt.Fprintf(&sb, "    label=\"%s\";\n    labelloc=t;\n", escapeDOTString(v.Title))
	}
	fmt.Fprintf(&sb, "    rankdir=%s;\n", rankdir)
	sb.WriteString("    node [shape=box, style=\"rounded,filled\", fontname=\"Helvetica\", fontsize=10];\n")
	sb.WriteString("    edge [fontname=\"Helvetica\", fontsize=8];\n")
	sb.WriteString("\n")

	// Positions are pinned in points; DOT's y axis points up.
	for _, n := range v.Nodes {
		c := n.Position
		x := c.X + n.Width/2
		y := -(c.Y + n.Height/2)
		label := escapeDOTString(truncate(n.Label, labelMaxRunes))
		if g := glyph(n); g != "" {
			label += " [" + g + "]"
		}
		fmt.Fprintf(&sb, "    \"%s\" [label=\"%s\", fillcolor=\"%s\", class=\"%s\", pos=\"%.1f,%.1f!\"];\n",
			escapeDOTString(n.ID), label, dotFill(n.Depth), n.StyleClass, x, y)
	}

	sb.WriteString("\n")

	for _, e := range v.Edges {
		attrs := ""
		switch e.Style {
		case mindmap.EdgeBack:
			attrs = " [style=dashed, color=\"#C66B6B\", constraint=false]"
		case mindmap.EdgeLong:
			attrs = " [color=\"#6B80BF\"]"
		}
		fmt.Fprintf(&sb, "    \"%s\" -> \"%s\"%s;\n", escapeDOTString(e.Source), escapeDOTString(e.Target), attrs)
	}

	sb.WriteString("}\n")
	return sb.String()
}

func escapeDOTString(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", " ",
		"\r", " ",
	)
	return replacer.Replace(s)
}

func generateMermaid(v mindmap.View) string {
	var sb strings.Builder

	dir := "LR"
	if v.Direction == mindmap.DirectionTB {
		dir = "TD"
	}
	if v.Title != "" {
		fmt.Fprintf(&sb, "---\ntitle: %s\n---\n", sanitizeMermaidText(v.Title))
	}
	fmt.Fprintf(&sb, "graph %s\n", dir)
	for depth := 0; depth < mindmap.DepthBands; depth++ {
		fmt.Fprintf(&sb, "    classDef %s fill:%s,stroke:#222,color:#111\n",
			strings.ReplaceAll(mindmap.StyleClass(depth), "-", "_"), css(bandColor(depth)))
	}
	sb.WriteString("\n")

	ids := mermaidIDs(v)
	for _, n := range v.Nodes {
		label := sanitizeMermaidText(n.Label)
		if g := glyph(n); g != "" {
			label += " " + g
		}
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", ids[n.ID], label)
		fmt.Fprintf(&sb, "    class %s %s\n", ids[n.ID], strings.ReplaceAll(n.StyleClass, "-", "_"))
	}

	sb.WriteString("\n")

	for _, e := range v.Edges {
		link := "-->"
		if e.Style == mindmap.EdgeBack {
			link = "-.->"
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", ids[e.Source], link, ids[e.Target])
	}
	return sb.String()
}

// mermaidIDs assigns collision-free Mermaid identifiers in view order.
func mermaidIDs(v mindmap.View) map[string]string {
	ids := make(map[string]string, len(v.Nodes))
	used := make(map[string]bool, len(v.Nodes))
	for _, n := range v.Nodes {
		base := sanitizeMermaidID(n.ID)
		safe := base
		if used[safe] {
			h := fnv.New32a()
			_, _ = h.Write([]byte(n.ID))
			safe = fmt.Sprintf("%s_%x", base, h.Sum32())
		}
		used[safe] = true
		ids[n.ID] = safe
	}
	return ids
}

// sanitizeMermaidID keeps letters, digits, '-' and '_'.
func sanitizeMermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "node"
	}
	// Mermaid reserves "end" as a keyword.
	if strings.EqualFold(sb.String(), "end") {
		return "node_" + sb.String()
	}
	return sb.String()
}

// sanitizeMermaidText replaces characters that break Mermaid labels.
func sanitizeMermaidText(text string) string {
	replacer := strings.NewReplacer(
		"\"", "'",
		"[", "(",
		"]", ")",
		"{", "(",
		"}", ")",
		"<", "&lt;",
		">", "&gt;",
		"|", "/",
		"`", "'",
		"\n", " ",
		"\r", "",
	)
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, replacer.Replace(text))
}
