package datasource

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/conceptmap/pkg/debug"
	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// LoadGraph loads a concept graph from a file, or from the freshest valid
// graph file when path is a directory.
func LoadGraph(path string) (model.ConceptGraph, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.ConceptGraph{}, fmt.Errorf("graph source: %w", err)
	}
	if !info.IsDir() {
		typ, err := DetectType(path)
		if err != nil {
			return model.ConceptGraph{}, err
		}
		return LoadFromSource(DataSource{Type: typ, Path: path, ModTime: info.ModTime(), Size: info.Size()})
	}

	sources, err := DiscoverSources(DiscoveryOptions{
		Dir:                    path,
		ValidateAfterDiscovery: true,
		Logger:                 func(msg string) { debug.Log("datasource: %s", msg) },
	})
	if err != nil {
		return model.ConceptGraph{}, err
	}
	best, err := SelectBestSource(sources)
	if err != nil {
		return model.ConceptGraph{}, err
	}
	return LoadFromSource(best)
}

// LoadFromSource reads and decodes a specific DataSource.
func LoadFromSource(source DataSource) (model.ConceptGraph, error) {
	data, err := os.ReadFile(source.Path)
	if err != nil {
		return model.ConceptGraph{}, fmt.Errorf("failed to read %s: %w", source.Path, err)
	}
	g, err := DecodeGraph(data, source.Type)
	if err != nil {
		return model.ConceptGraph{}, fmt.Errorf("failed to decode %s: %w", source.Path, err)
	}
	return g, nil
}

// rawGraph is the lenient wire shape: edges may use source/target or
// from/to, and labels may arrive as "label", "name" or "title".
type rawGraph struct {
	Title string    `json:"title" yaml:"title"`
	Nodes []rawNode `json:"nodes" yaml:"nodes"`
	Edges []rawEdge `json:"edges" yaml:"edges"`
}

type rawNode struct {
	ID    string         `json:"id" yaml:"id"`
	Label string         `json:"label" yaml:"label"`
	Name  string         `json:"name" yaml:"name"`
	Title string         `json:"title" yaml:"title"`
	Data  map[string]any `json:"data" yaml:"data"`
}

type rawEdge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	From   string `json:"from" yaml:"from"`
	To     string `json:"to" yaml:"to"`
}

// DecodeGraph decodes a graph document. Nodes without an id are dropped,
// blank labels fall back to name/title, and missing edge ids are synthesized
// as "e-<source>-<target>". Dangling edges are kept; the index drops them.
func DecodeGraph(data []byte, typ SourceType) (model.ConceptGraph, error) {
	var raw rawGraph
	switch typ {
	case SourceTypeJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&raw); err != nil {
			return model.ConceptGraph{}, err
		}
	case SourceTypeYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return model.ConceptGraph{}, err
		}
	default:
		return model.ConceptGraph{}, fmt.Errorf("unknown source type: %s", typ)
	}
	return raw.normalize(), nil
}

func (r rawGraph) normalize() model.ConceptGraph {
	g := model.ConceptGraph{
		Title: strings.TrimSpace(r.Title),
		Nodes: make([]model.ConceptNode, 0, len(r.Nodes)),
		Edges: make([]model.ConceptEdge, 0, len(r.Edges)),
	}
	for _, n := range r.Nodes {
		id := strings.TrimSpace(n.ID)
		if id == "" {
			continue
		}
		label := firstNonBlank(n.Label, n.Name, n.Title)
		g.Nodes = append(g.Nodes, model.ConceptNode{ID: id, Label: label, Data: n.Data})
	}
	for _, e := range r.Edges {
		src := firstNonBlank(e.Source, e.From)
		dst := firstNonBlank(e.Target, e.To)
		if src == "" || dst == "" {
			continue
		}
		id := strings.TrimSpace(e.ID)
		if id == "" {
			id = fmt.Sprintf("e-%s-%s", src, dst)
		}
		g.Edges = append(g.Edges, model.ConceptEdge{ID: id, Source: src, Target: dst})
	}
	return g
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
