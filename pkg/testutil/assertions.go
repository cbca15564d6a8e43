package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// AssertNodeCount verifies the expected number of nodes.
func AssertNodeCount(t *testing.T, g model.ConceptGraph, expected int) {
	t.Helper()
	if len(g.Nodes) != expected {
		t.Errorf("expected %d nodes, got %d", expected, len(g.Nodes))
	}
}

// AssertNoDuplicateIDs verifies all node IDs are unique.
func AssertNoDuplicateIDs(t *testing.T, g model.ConceptGraph) {
	t.Helper()
	seen := make(map[string]bool)
	for _, n := range g.Nodes {
		if seen[n.ID] {
			t.Errorf("duplicate node ID: %s", n.ID)
		}
		seen[n.ID] = true
	}
}

// AssertEdgeExists verifies that a source -> target edge exists.
func AssertEdgeExists(t *testing.T, g model.ConceptGraph, source, target string) {
	t.Helper()
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target {
			return
		}
	}
	t.Errorf("expected edge %s -> %s not found", source, target)
}

// AssertSameIDs verifies two ID lists hold the same elements, ignoring order.
func AssertSameIDs(t *testing.T, got, want []string) {
	t.Helper()
	g := append([]string(nil), got...)
	w := append([]string(nil), want...)
	sort.Strings(g)
	sort.Strings(w)
	if strings.Join(g, ",") != strings.Join(w, ",") {
		t.Errorf("ids = %v, want %v", g, w)
	}
}

// WriteGraphFile writes g as JSON to dir/name and returns the path.
func WriteGraphFile(t *testing.T, dir, name string, g model.ConceptGraph) string {
	t.Helper()

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal graph: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write graph file: %v", err)
	}
	return path
}

// NodeIDSet returns the node IDs of g as a set.
func NodeIDSet(g model.ConceptGraph) map[string]bool {
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	return ids
}

// NodeIDs returns the node IDs of g in input order.
func NodeIDs(g model.ConceptGraph) []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}
