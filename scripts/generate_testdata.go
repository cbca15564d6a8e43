//go:build ignore

// generate_testdata.go creates concept graphs for benchmarking the layout
// pipeline and the viewer.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//
//	tests/testdata/benchmark/small.json   (100 concepts)
//	tests/testdata/benchmark/medium.json  (1000 concepts)
//	tests/testdata/benchmark/large.json   (5000 concepts)
//	tests/testdata/benchmark/wide.json    (tree, depth 3, breadth 12)
package main

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/conceptmap/pkg/model"
	"github.com/vanderheijden86/conceptmap/pkg/testutil"
)

type datasetSpec struct {
	name  string
	build func(g *testutil.Generator) testutil.GraphFixture
	desc  string
}

var datasets = []datasetSpec{
	{"small", func(g *testutil.Generator) testutil.GraphFixture { return g.RandomDAG(100, densityFor(100)) }, "100 concepts, sparse DAG"},
	{"medium", func(g *testutil.Generator) testutil.GraphFixture { return g.RandomDAG(1000, densityFor(1000)) }, "1000 concepts, sparse DAG"},
	{"large", func(g *testutil.Generator) testutil.GraphFixture { return g.RandomDAG(5000, densityFor(5000)) }, "5000 concepts, sparse DAG"},
	{"wide", func(g *testutil.Generator) testutil.GraphFixture { return g.Tree(3, 12) }, "balanced tree, 12 children per concept"},
}

func main() {
	outputDir := "tests/testdata/benchmark"
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for i, ds := range datasets {
		fmt.Printf("Generating %s dataset (%s)...\n", ds.name, ds.desc)

		gen := testutil.New(testutil.GeneratorConfig{
			Seed:       int64(100 + i),
			LongLabels: ds.name == "wide",
		})
		gf := ds.build(gen)
		graph := gen.ToConceptGraph(gf)
		graph.Title = ds.desc

		data, err := json.MarshalIndent(graph, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode %s: %v\n", ds.name, err)
			os.Exit(1)
		}

		outputPath := filepath.Join(outputDir, ds.name+".json")
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outputPath, err)
			os.Exit(1)
		}

		fmt.Printf("  Written %s (%d bytes, %d nodes, %d edges)\n", outputPath, len(data), len(graph.Nodes), edgeCount(graph))
	}

	fmt.Println("\nDone! Test datasets created in", outputDir)
}

// densityFor scales edge density inversely with size to keep edge counts
// reasonable.
func densityFor(size int) float64 {
	switch {
	case size <= 100:
		return 0.1
	case size <= 1000:
		return 0.01
	default:
		return 0.002
	}
}

func edgeCount(g model.ConceptGraph) int { return len(g.Edges) }
