// Package testutil provides test fixture generators for various concept graph
// topologies. All generators produce deterministic output for reproducible tests.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// GraphFixture represents an abstract graph for testing graph algorithms.
// This is the format used by testdata/graphs/*.json files.
type GraphFixture struct {
	Description string     `json:"description"`
	Nodes       []string   `json:"nodes"`
	Edges       [][2]int   `json:"edges"` // [from_idx, to_idx], parent -> child
	Properties  Properties `json:"properties,omitempty"`
}

// Properties holds optional metadata about the fixture.
type Properties struct {
	HasCycles     bool `json:"has_cycles,omitempty"`
	IsConnected   bool `json:"is_connected,omitempty"`
	ExpectedDepth int  `json:"expected_depth,omitempty"`
}

// GeneratorConfig controls concept graph generation.
type GeneratorConfig struct {
	Seed        int64  // Random seed for determinism (0 = fixed default)
	LabelPrefix string // Prefix for generated labels (default: "Concept")
	LongLabels  bool   // Generate labels long enough to wrap
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:        42, // Deterministic
		LabelPrefix: "Concept",
	}
}

// Generator creates test fixtures with various topologies.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.LabelPrefix == "" {
		cfg.LabelPrefix = "Concept"
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// ============================================================================
// Graph Topology Generators
// ============================================================================

// Chain creates a linear chain: n0 -> n1 -> ... -> n{size-1}.
// Properties: tree, depth = size-1
func (g *Generator) Chain(size int) GraphFixture {
	nodes := make([]string, size)
	edges := make([][2]int, 0, size)
	for i := 0; i < size; i++ {
		nodes[i] = fmt.Sprintf("n%d", i)
		if i > 0 {
			edges = append(edges, [2]int{i - 1, i})
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Linear chain of %d nodes: n0 -> n1 -> ... -> n%d", size, size-1),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true, ExpectedDepth: size - 1},
	}
}

// Star creates a hub with `spokes` children.
// Properties: tree, depth = 1
func (g *Generator) Star(spokes int) GraphFixture {
	nodes := make([]string, spokes+1)
	edges := make([][2]int, spokes)
	nodes[0] = "hub"
	for i := 1; i <= spokes; i++ {
		nodes[i] = fmt.Sprintf("spoke%d", i)
		edges[i-1] = [2]int{0, i}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Star with hub and %d spokes", spokes),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true, ExpectedDepth: 1},
	}
}

// Diamond creates top -> mid1..midN -> bottom. The bottom node has several
// parents, so it is a DAG rather than a tree.
func (g *Generator) Diamond(width int) GraphFixture {
	if width < 1 {
		width = 1
	}
	size := width + 2
	nodes := make([]string, size)
	edges := make([][2]int, 0, width*2)
	nodes[0] = "top"
	nodes[size-1] = "bottom"
	for i := 1; i <= width; i++ {
		nodes[i] = fmt.Sprintf("mid%d", i)
		edges = append(edges, [2]int{0, i}, [2]int{i, size - 1})
	}
	return GraphFixture{
		Description: fmt.Sprintf("Diamond with %d middle nodes: top -> mid1..mid%d -> bottom", width, width),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true, ExpectedDepth: 2},
	}
}

// Cycle creates n0 -> n1 -> ... -> n{size-1} -> n0. No node lacks an incoming
// edge, so root selection falls back to the first node.
func (g *Generator) Cycle(size int) GraphFixture {
	nodes := make([]string, size)
	edges := make([][2]int, size)
	for i := 0; i < size; i++ {
		nodes[i] = fmt.Sprintf("n%d", i)
		edges[i] = [2]int{i, (i + 1) % size}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Cycle of %d nodes: n0 -> n1 -> ... -> n%d -> n0", size, size-1),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{HasCycles: true, IsConnected: true},
	}
}

// SelfLoop creates a single node with a self-referential edge.
func (g *Generator) SelfLoop() GraphFixture {
	return GraphFixture{
		Description: "Single node with self-loop",
		Nodes:       []string{"n0"},
		Edges:       [][2]int{{0, 0}},
		Properties:  Properties{HasCycles: true, IsConnected: true},
	}
}

// Tree creates a tree with given depth and branching factor.
// Each non-leaf node has `breadth` children; nodes are listed level by level.
func (g *Generator) Tree(depth, breadth int) GraphFixture {
	if depth < 1 {
		depth = 1
	}
	if breadth < 1 {
		breadth = 1
	}

	nodes := []string{"n0"}
	var edges [][2]int
	currentLevel := []int{0}
	for d := 0; d < depth; d++ {
		var nextLevel []int
		for _, parent := range currentLevel {
			for b := 0; b < breadth; b++ {
				child := len(nodes)
				nodes = append(nodes, fmt.Sprintf("n%d", child))
				edges = append(edges, [2]int{parent, child})
				nextLevel = append(nextLevel, child)
			}
		}
		currentLevel = nextLevel
	}

	return GraphFixture{
		Description: fmt.Sprintf("Tree with depth=%d, breadth=%d (%d nodes)", depth, breadth, len(nodes)),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: true, ExpectedDepth: depth},
	}
}

// Disconnected creates multiple isolated chains. Only the first component is
// reachable from the selected root.
func (g *Generator) Disconnected(components, componentSize int) GraphFixture {
	var nodes []string
	var edges [][2]int
	for c := 0; c < components; c++ {
		for i := 0; i < componentSize; i++ {
			nodes = append(nodes, fmt.Sprintf("c%d_n%d", c, i))
			if i > 0 {
				edges = append(edges, [2]int{len(nodes) - 2, len(nodes) - 1})
			}
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("%d disconnected components, each a chain of %d nodes", components, componentSize),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{ExpectedDepth: componentSize - 1},
	}
}

// RandomTree creates a random tree: every node after the first picks an
// earlier node as its parent.
func (g *Generator) RandomTree(size int) GraphFixture {
	nodes := make([]string, size)
	var edges [][2]int
	for i := 0; i < size; i++ {
		nodes[i] = fmt.Sprintf("n%d", i)
		if i > 0 {
			edges = append(edges, [2]int{g.rng.Intn(i), i})
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Random tree with %d nodes", size),
		Nodes:       nodes,
		Edges:       edges,
		Properties:  Properties{IsConnected: size > 0},
	}
}

// RandomDAG creates a random directed acyclic graph.
// density is the probability of an edge existing (0.0 to 1.0).
func (g *Generator) RandomDAG(size int, density float64) GraphFixture {
	if density < 0 {
		density = 0
	}
	if density > 1 {
		density = 1
	}
	nodes := make([]string, size)
	var edges [][2]int
	for i := 0; i < size; i++ {
		nodes[i] = fmt.Sprintf("n%d", i)
	}
	// Only lower -> higher index edges, so the result is acyclic
	for i := 0; i < size; i++ {
		for j := i + 1; j < size; j++ {
			if g.rng.Float64() < density {
				edges = append(edges, [2]int{i, j})
			}
		}
	}
	return GraphFixture{
		Description: fmt.Sprintf("Random DAG with %d nodes, density=%.2f (%d edges)", size, density, len(edges)),
		Nodes:       nodes,
		Edges:       edges,
	}
}

// ============================================================================
// Conversion
// ============================================================================

// ToConceptGraph converts an abstract fixture into a concept graph. Edge IDs
// follow the "e-<source>-<target>" convention.
func (g *Generator) ToConceptGraph(gf GraphFixture) model.ConceptGraph {
	cg := model.ConceptGraph{
		Title: gf.Description,
		Nodes: make([]model.ConceptNode, len(gf.Nodes)),
		Edges: make([]model.ConceptEdge, 0, len(gf.Edges)),
	}
	for i, id := range gf.Nodes {
		cg.Nodes[i] = model.ConceptNode{ID: id, Label: g.label(i)}
	}
	for _, e := range gf.Edges {
		src, dst := gf.Nodes[e[0]], gf.Nodes[e[1]]
		cg.Edges = append(cg.Edges, model.ConceptEdge{
			ID:     fmt.Sprintf("e-%s-%s", src, dst),
			Source: src,
			Target: dst,
		})
	}
	return cg
}

func (g *Generator) label(i int) string {
	if !g.cfg.LongLabels {
		return fmt.Sprintf("%s %d", g.cfg.LabelPrefix, i)
	}
	words := []string{"memory", "retrieval", "context", "network", "signal", "model", "theory", "practice"}
	n := 3 + g.rng.Intn(8)
	parts := make([]string, n)
	for k := range parts {
		parts[k] = words[g.rng.Intn(len(words))]
	}
	return fmt.Sprintf("%s %d: %s", g.cfg.LabelPrefix, i, strings.Join(parts, " "))
}

// WithMalformedEdges appends `count` edges whose target does not exist.
func WithMalformedEdges(cg model.ConceptGraph, count int) model.ConceptGraph {
	out := cg
	out.Edges = append([]model.ConceptEdge(nil), cg.Edges...)
	for i := 0; i < count; i++ {
		src := "missing-src"
		if len(cg.Nodes) > 0 {
			src = cg.Nodes[i%len(cg.Nodes)].ID
		}
		dst := fmt.Sprintf("missing%d", i)
		out.Edges = append(out.Edges, model.ConceptEdge{
			ID:     fmt.Sprintf("e-%s-%s", src, dst),
			Source: src,
			Target: dst,
		})
	}
	return out
}

// ============================================================================
// Quick Helpers (use default generator)
// ============================================================================

// QuickChain returns a chain concept graph.
func QuickChain(size int) model.ConceptGraph {
	g := NewDefault()
	return g.ToConceptGraph(g.Chain(size))
}

// QuickStar returns a star concept graph.
func QuickStar(spokes int) model.ConceptGraph {
	g := NewDefault()
	return g.ToConceptGraph(g.Star(spokes))
}

// QuickDiamond returns a diamond concept graph.
func QuickDiamond(width int) model.ConceptGraph {
	g := NewDefault()
	return g.ToConceptGraph(g.Diamond(width))
}

// QuickCycle returns a cyclic concept graph.
func QuickCycle(size int) model.ConceptGraph {
	g := NewDefault()
	return g.ToConceptGraph(g.Cycle(size))
}

// QuickTree returns a tree concept graph.
func QuickTree(depth, breadth int) model.ConceptGraph {
	g := NewDefault()
	return g.ToConceptGraph(g.Tree(depth, breadth))
}

// QuickRandomTree returns a random tree concept graph for seed.
func QuickRandomTree(size int, seed int64) model.ConceptGraph {
	g := New(GeneratorConfig{Seed: seed})
	return g.ToConceptGraph(g.RandomTree(size))
}

// Sample returns the four-node graph A -> {B, C}, B -> D.
func Sample() model.ConceptGraph {
	return model.ConceptGraph{
		Title: "Sample",
		Nodes: []model.ConceptNode{
			{ID: "A", Label: "Alpha"},
			{ID: "B", Label: "Beta"},
			{ID: "C", Label: "Gamma"},
			{ID: "D", Label: "Delta"},
		},
		Edges: []model.ConceptEdge{
			{ID: "e-A-B", Source: "A", Target: "B"},
			{ID: "e-A-C", Source: "A", Target: "C"},
			{ID: "e-B-D", Source: "B", Target: "D"},
		},
	}
}

// Empty returns a graph without nodes.
func Empty() model.ConceptGraph {
	return model.ConceptGraph{}
}

// Single returns a graph with one node.
func Single() model.ConceptGraph {
	return model.ConceptGraph{Nodes: []model.ConceptNode{{ID: "only", Label: "Only"}}}
}
