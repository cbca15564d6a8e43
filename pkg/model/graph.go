// Package model defines the concept graph and mind-map state types shared by
// the index, layout, persistence and export layers.
package model

import (
	"errors"
	"math"
	"time"
)

// ConceptNode is a single concept produced by a generation request.
type ConceptNode struct {
	ID    string         `json:"id" yaml:"id"`
	Label string         `json:"label" yaml:"label"`
	Data  map[string]any `json:"data,omitempty" yaml:"data,omitempty"` // Opaque auxiliary payload
}

// DisplayLabel returns the label, falling back to the ID when the label is blank.
func (n ConceptNode) DisplayLabel() string {
	if n.Label == "" {
		return n.ID
	}
	return n.Label
}

// ConceptEdge is a directed parent -> child relation between two concepts.
type ConceptEdge struct {
	ID     string `json:"id" yaml:"id"`
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// ConceptGraph is the raw node/edge set returned by one generation.
// It is treated as immutable once received; regeneration replaces it.
type ConceptGraph struct {
	Title string        `json:"title,omitempty" yaml:"title,omitempty"`
	Nodes []ConceptNode `json:"nodes" yaml:"nodes"`
	Edges []ConceptEdge `json:"edges" yaml:"edges"`
}

// IsEmpty reports whether the graph has no nodes.
func (g ConceptGraph) IsEmpty() bool {
	return len(g.Nodes) == 0
}

// Position is a point in layout units. Node positions are top-left corners.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// IsFinite reports whether both coordinates are usable numbers.
func (p Position) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) && !math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}

// NodePositions maps node IDs to manually placed positions.
type NodePositions map[string]Position

// Clone returns an independent copy (nil stays nil-safe: returns an empty map).
func (p NodePositions) Clone() NodePositions {
	out := make(NodePositions, len(p))
	for id, pos := range p {
		out[id] = pos
	}
	return out
}

// MindMapStateVersion is the current schema version for persisted state.
const MindMapStateVersion = 1

// MindMapState is the persisted, user-controlled part of a mind map.
type MindMapState struct {
	Version         int           `json:"version"`
	MapID           string        `json:"map_id"`
	ExpandedNodeIDs []string      `json:"expanded_node_ids"`
	NodePositions   NodePositions `json:"node_positions,omitempty"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ErrEmptyGraph reports a generation result without any nodes.
var ErrEmptyGraph = errors.New("concept graph has no nodes")

// ErrGenerationFailed reports a failed generation request.
var ErrGenerationFailed = errors.New("concept map generation failed")
