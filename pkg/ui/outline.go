package ui

import (
	"github.com/vanderheijden86/conceptmap/pkg/mindmap"
)

// Row is one line of the outline: a visible node plus the tree-drawing
// context needed to render its prefix.
type Row struct {
	Node mindmap.RenderNode
	// Guides has one entry per ancestor level below the root: true when that
	// ancestor has siblings further down, so a vertical guide is drawn.
	Guides []bool
	Last   bool // last child of its parent
}

// BuildOutline orders the visible nodes depth-first along the parent links
// the visibility walk recorded, so each node appears under the node that
// revealed it. Nodes not found in view are skipped.
func BuildOutline(sg mindmap.Subgraph, view mindmap.View) []Row {
	if sg.IsEmpty() {
		return nil
	}
	byID := make(map[string]mindmap.RenderNode, len(view.Nodes))
	for _, n := range view.Nodes {
		byID[n.ID] = n
	}
	children := make(map[string][]string, len(sg.Nodes))
	for _, vn := range sg.Nodes[1:] {
		children[vn.Parent] = append(children[vn.Parent], vn.Node.ID)
	}

	rows := make([]Row, 0, len(sg.Nodes))
	var walk func(id string, guides []bool, last bool)
	walk = func(id string, guides []bool, last bool) {
		rn, ok := byID[id]
		if !ok {
			return
		}
		rows = append(rows, Row{Node: rn, Guides: guides, Last: last})

		kids := children[id]
		for i, kid := range kids {
			next := guides
			if rn.Depth > 0 {
				next = append(append([]bool(nil), guides...), !last)
			}
			walk(kid, next, i == len(kids)-1)
		}
	}
	walk(sg.Nodes[0].Node.ID, nil, true)
	return rows
}

// prefix draws the branch characters for r.
func (r Row) prefix() string {
	if r.Node.Depth == 0 {
		return ""
	}
	var b []byte
	for _, g := range r.Guides {
		if g {
			b = append(b, "│   "...)
		} else {
			b = append(b, "    "...)
		}
	}
	if r.Last {
		b = append(b, "└── "...)
	} else {
		b = append(b, "├── "...)
	}
	return string(b)
}

// indicator is ▾ for an expanded parent, ▸ for a collapsed one and • for a leaf.
func (r Row) indicator() string {
	switch {
	case !r.Node.HasChildren:
		return "•"
	case r.Node.Expanded:
		return "▾"
	default:
		return "▸"
	}
}
