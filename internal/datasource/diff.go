package datasource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// GraphDiff represents differences between two revisions of a concept graph
type GraphDiff struct {
	// AddedNodes contains node IDs present in the new graph only
	AddedNodes []string
	// RemovedNodes contains node IDs present in the old graph only
	RemovedNodes []string
	// Relabeled contains nodes whose label changed
	Relabeled []LabelDifference
	// AddedEdges and RemovedEdges hold "source->target" pairs
	AddedEdges   []string
	RemovedEdges []string
	// TitleChanged is set when the graph title differs
	TitleChanged bool
}

// LabelDifference represents a label change for a single node
type LabelDifference struct {
	ID     string `json:"id"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// HasChanges returns true if the graphs differ in any way that affects display
func (d GraphDiff) HasChanges() bool {
	return len(d.AddedNodes) > 0 || len(d.RemovedNodes) > 0 || len(d.Relabeled) > 0 ||
		len(d.AddedEdges) > 0 || len(d.RemovedEdges) > 0 || d.TitleChanged
}

// Summary returns a one-line human-readable summary
func (d GraphDiff) Summary() string {
	if !d.HasChanges() {
		return "graph unchanged"
	}
	var parts []string
	if n := len(d.AddedNodes); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d node(s)", n))
	}
	if n := len(d.RemovedNodes); n > 0 {
		parts = append(parts, fmt.Sprintf("-%d node(s)", n))
	}
	if n := len(d.Relabeled); n > 0 {
		parts = append(parts, fmt.Sprintf("%d relabeled", n))
	}
	if n := len(d.AddedEdges); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d edge(s)", n))
	}
	if n := len(d.RemovedEdges); n > 0 {
		parts = append(parts, fmt.Sprintf("-%d edge(s)", n))
	}
	if d.TitleChanged {
		parts = append(parts, "title changed")
	}
	return strings.Join(parts, ", ")
}

// DiffGraphs compares two graphs. Result slices are sorted.
func DiffGraphs(before, after model.ConceptGraph) GraphDiff {
	diff := GraphDiff{TitleChanged: before.Title != after.Title}

	labelsA := make(map[string]string, len(before.Nodes))
	for _, n := range before.Nodes {
		labelsA[n.ID] = n.Label
	}
	labelsB := make(map[string]string, len(after.Nodes))
	for _, n := range after.Nodes {
		labelsB[n.ID] = n.Label
	}

	for id := range labelsA {
		if _, ok := labelsB[id]; !ok {
			diff.RemovedNodes = append(diff.RemovedNodes, id)
		}
	}
	for id, lb := range labelsB {
		la, ok := labelsA[id]
		if !ok {
			diff.AddedNodes = append(diff.AddedNodes, id)
			continue
		}
		if la != lb {
			diff.Relabeled = append(diff.Relabeled, LabelDifference{ID: id, Before: la, After: lb})
		}
	}

	edgesA := edgeKeys(before.Edges)
	edgesB := edgeKeys(after.Edges)
	for k := range edgesA {
		if !edgesB[k] {
			diff.RemovedEdges = append(diff.RemovedEdges, k)
		}
	}
	for k := range edgesB {
		if !edgesA[k] {
			diff.AddedEdges = append(diff.AddedEdges, k)
		}
	}

	sort.Strings(diff.AddedNodes)
	sort.Strings(diff.RemovedNodes)
	sort.Strings(diff.AddedEdges)
	sort.Strings(diff.RemovedEdges)
	sort.Slice(diff.Relabeled, func(i, j int) bool { return diff.Relabeled[i].ID < diff.Relabeled[j].ID })
	return diff
}

func edgeKeys(edges []model.ConceptEdge) map[string]bool {
	out := make(map[string]bool, len(edges))
	for _, e := range edges {
		out[e.Source+"->"+e.Target] = true
	}
	return out
}
