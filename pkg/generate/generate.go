// Package generate turns free text into concept graphs. Generation is the one
// asynchronous, fallible input of the mind map: callers run it off the UI
// loop and hand the outcome to mindmap.Controller.CompleteGeneration.
package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/vanderheijden86/conceptmap/internal/datasource"
	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// ErrEmptyGraph is returned when a generator produces no nodes.
var ErrEmptyGraph = model.ErrEmptyGraph

// ErrGenerationFailed wraps failures of the generation backend itself.
var ErrGenerationFailed = model.ErrGenerationFailed

// Generator produces a concept graph for a piece of text.
type Generator interface {
	Generate(ctx context.Context, text string) (model.ConceptGraph, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, text string) (model.ConceptGraph, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, text string) (model.ConceptGraph, error) {
	return f(ctx, text)
}

// ParseGraph decodes a model response into a concept graph. It tolerates
// markdown code fences and prose around the JSON object, and fails with
// ErrEmptyGraph when no node survives normalization.
func ParseGraph(data []byte) (model.ConceptGraph, error) {
	body := extractJSON(string(data))
	if body == "" {
		return model.ConceptGraph{}, fmt.Errorf("parse concept graph: no JSON object in response")
	}
	g, err := datasource.DecodeGraph([]byte(body), datasource.SourceTypeJSON)
	if err != nil {
		return model.ConceptGraph{}, fmt.Errorf("parse concept graph: %w", err)
	}
	if g.IsEmpty() {
		return model.ConceptGraph{}, ErrEmptyGraph
	}
	return g, nil
}

// extractJSON strips code fences and returns the outermost {...} span.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
