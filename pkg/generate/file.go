package generate

import (
	"context"

	"github.com/vanderheijden86/conceptmap/internal/datasource"
	"github.com/vanderheijden86/conceptmap/pkg/metrics"
	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// FileGenerator "generates" by loading a graph file or directory; the input
// text is ignored. It backs offline use and file watching.
type FileGenerator struct {
	Path string
}

// Generate implements Generator.
func (f FileGenerator) Generate(ctx context.Context, _ string) (model.ConceptGraph, error) {
	defer metrics.Timer(metrics.Generation)()

	if err := ctx.Err(); err != nil {
		return model.ConceptGraph{}, err
	}
	g, err := datasource.LoadGraph(f.Path)
	if err != nil {
		return model.ConceptGraph{}, err
	}
	if g.IsEmpty() {
		return model.ConceptGraph{}, ErrEmptyGraph
	}
	return g, nil
}
