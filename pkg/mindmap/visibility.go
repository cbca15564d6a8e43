package mindmap

import (
	"github.com/vanderheijden86/conceptmap/pkg/metrics"
	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// VisibleNode is a node in the visible subgraph.
type VisibleNode struct {
	Node   model.ConceptNode
	Depth  int    // BFS distance from the root; presentation only
	Parent string // node that revealed this one ("" for the root)
}

// Subgraph is the currently visible part of the concept graph.
type Subgraph struct {
	Nodes []VisibleNode       // BFS order, root first
	Edges []model.ConceptEdge // graph edges between visible nodes, input order

	pos map[string]int
}

// Len returns the number of visible nodes.
func (s Subgraph) Len() int { return len(s.Nodes) }

// IsEmpty reports whether nothing is visible.
func (s Subgraph) IsEmpty() bool { return len(s.Nodes) == 0 }

// Contains reports whether id is visible.
func (s Subgraph) Contains(id string) bool {
	_, ok := s.pos[id]
	return ok
}

// Lookup returns the visible node for id.
func (s Subgraph) Lookup(id string) (VisibleNode, bool) {
	i, ok := s.pos[id]
	if !ok {
		return VisibleNode{}, false
	}
	return s.Nodes[i], true
}

// IDs returns the visible node IDs in BFS order.
func (s Subgraph) IDs() []string {
	ids := make([]string, len(s.Nodes))
	for i, n := range s.Nodes {
		ids[i] = n.Node.ID
	}
	return ids
}

// Resolve computes the visible subgraph: a breadth-first walk from the root
// that only descends into expanded nodes. The root is always visible; nodes
// below a collapsed node are never reached, so collapsing hides the whole
// subtree.
func Resolve(idx *Index, expanded ExpansionSet) Subgraph {
	defer metrics.Timer(metrics.VisibilityResolve)()

	sg := Subgraph{pos: make(map[string]int)}
	if idx == nil {
		return sg
	}
	root, ok := idx.Root()
	if !ok {
		return sg
	}

	type item struct {
		id     string
		depth  int
		parent string
	}
	queue := []item{{id: root.ID}}
	sg.pos[root.ID] = -1 // visited marker, fixed up on dequeue

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		node, _ := idx.Node(cur.id)
		sg.pos[cur.id] = len(sg.Nodes)
		sg.Nodes = append(sg.Nodes, VisibleNode{Node: node, Depth: cur.depth, Parent: cur.parent})

		if !expanded.Has(cur.id) {
			continue
		}
		for _, child := range idx.Children(cur.id) {
			if _, seen := sg.pos[child]; seen {
				continue
			}
			sg.pos[child] = -1
			queue = append(queue, item{id: child, depth: cur.depth + 1, parent: cur.id})
		}
	}

	for _, e := range idx.Edges() {
		if sg.Contains(e.Source) && sg.Contains(e.Target) {
			sg.Edges = append(sg.Edges, e)
		}
	}
	return sg
}
