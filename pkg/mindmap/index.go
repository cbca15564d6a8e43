// Package mindmap implements the incremental mind-map engine: it indexes a
// generated concept graph, resolves which nodes are visible under the current
// expansion state, lays the visible subgraph out in ranks and maps the result
// onto renderable records.
//
// Pipeline:
//
//	ConceptGraph -> BuildIndex -> Resolve(expanded) -> Engine.Layout -> Render
//
// The Controller owns the expansion state and position overrides and re-runs
// the pipeline synchronously on every event.
package mindmap

import (
	"github.com/vanderheijden86/conceptmap/pkg/debug"
	"github.com/vanderheijden86/conceptmap/pkg/metrics"
	"github.com/vanderheijden86/conceptmap/pkg/model"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
)

// Index is the derived adjacency structure of a ConceptGraph.
// It is immutable after BuildIndex returns.
type Index struct {
	title      string
	nodes      []model.ConceptNode
	byID       map[string]int
	childrenOf map[string][]string
	edges      []model.ConceptEdge // valid edges in input order
	dropped    []model.ConceptEdge // edges referencing unknown node IDs
	rootID     string

	cyclic      bool
	unreachable []string
}

// BuildIndex groups edges by source (preserving edge order) and selects the
// root: the first node without an incoming edge, else the first node.
// Edges that reference unknown nodes are dropped. An empty graph yields an
// index without a root.
func BuildIndex(g model.ConceptGraph) *Index {
	defer metrics.Timer(metrics.IndexBuild)()

	idx := &Index{
		title:      g.Title,
		nodes:      make([]model.ConceptNode, 0, len(g.Nodes)),
		byID:       make(map[string]int, len(g.Nodes)),
		childrenOf: make(map[string][]string),
	}

	for _, n := range g.Nodes {
		if n.ID == "" {
			debug.Log("index: skipping node without id (label %q)", n.Label)
			continue
		}
		if _, dup := idx.byID[n.ID]; dup {
			debug.Log("index: duplicate node id %q ignored", n.ID)
			continue
		}
		idx.byID[n.ID] = len(idx.nodes)
		idx.nodes = append(idx.nodes, n)
	}

	hasIncoming := make(map[string]bool, len(idx.nodes))
	for _, e := range g.Edges {
		if !idx.Has(e.Source) || !idx.Has(e.Target) {
			idx.dropped = append(idx.dropped, e)
			continue
		}
		idx.edges = append(idx.edges, e)
		idx.childrenOf[e.Source] = append(idx.childrenOf[e.Source], e.Target)
		hasIncoming[e.Target] = true
	}
	debug.LogIf(len(idx.dropped) > 0, "index: dropped %d edge(s) referencing unknown nodes", len(idx.dropped))

	if len(idx.nodes) == 0 {
		return idx
	}
	idx.rootID = idx.nodes[0].ID
	for _, n := range idx.nodes {
		if !hasIncoming[n.ID] {
			idx.rootID = n.ID
			break
		}
	}

	idx.diagnose()
	return idx
}

// diagnose records cycle and reachability facts. They are informational only:
// visibility and layout tolerate both.
func (idx *Index) diagnose() {
	g := simple.NewDirectedGraph()
	for i := range idx.nodes {
		g.AddNode(simple.Node(int64(i)))
	}
	for _, e := range idx.edges {
		from, to := idx.byID[e.Source], idx.byID[e.Target]
		if from == to {
			idx.cyclic = true // simple graphs reject self edges
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(int64(from)), simple.Node(int64(to))))
	}

	for _, scc := range topo.TarjanSCC(g) {
		if len(scc) > 1 {
			idx.cyclic = true
			break
		}
	}

	reached := make(map[int64]bool, len(idx.nodes))
	bf := traverse.BreadthFirst{
		Visit: func(n graph.Node) { reached[n.ID()] = true },
	}
	bf.Walk(g, simple.Node(int64(idx.byID[idx.rootID])), nil)
	for i, n := range idx.nodes {
		if !reached[int64(i)] {
			idx.unreachable = append(idx.unreachable, n.ID)
		}
	}

	debug.LogIf(idx.cyclic, "index: graph %q contains cycles", idx.title)
	debug.LogIf(len(idx.unreachable) > 0, "index: %d node(s) unreachable from root %q", len(idx.unreachable), idx.rootID)
}

// Title returns the graph title.
func (idx *Index) Title() string { return idx.title }

// Len returns the number of indexed nodes.
func (idx *Index) Len() int { return len(idx.nodes) }

// Root returns the root node, or false for an empty graph.
func (idx *Index) Root() (model.ConceptNode, bool) {
	if idx.rootID == "" {
		return model.ConceptNode{}, false
	}
	return idx.nodes[idx.byID[idx.rootID]], true
}

// RootID returns the root node ID ("" for an empty graph).
func (idx *Index) RootID() string { return idx.rootID }

// Has reports whether id names an indexed node.
func (idx *Index) Has(id string) bool {
	_, ok := idx.byID[id]
	return ok
}

// Node looks a node up by ID.
func (idx *Index) Node(id string) (model.ConceptNode, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return model.ConceptNode{}, false
	}
	return idx.nodes[i], true
}

// Children returns the ordered child IDs of id. The slice must not be modified.
func (idx *Index) Children(id string) []string { return idx.childrenOf[id] }

// HasChildren reports whether id has at least one outgoing edge.
func (idx *Index) HasChildren(id string) bool { return len(idx.childrenOf[id]) > 0 }

// Nodes returns the indexed nodes in input order. The slice must not be modified.
func (idx *Index) Nodes() []model.ConceptNode { return idx.nodes }

// Edges returns the valid edges in input order. The slice must not be modified.
func (idx *Index) Edges() []model.ConceptEdge { return idx.edges }

// Dropped returns the edges excluded because an endpoint was unknown.
func (idx *Index) Dropped() []model.ConceptEdge { return idx.dropped }

// Cyclic reports whether the valid edge set contains a cycle or self loop.
func (idx *Index) Cyclic() bool { return idx.cyclic }

// Unreachable returns node IDs that no path from the root reaches.
func (idx *Index) Unreachable() []string { return idx.unreachable }
