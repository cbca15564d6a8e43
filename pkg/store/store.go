// Package store persists mind-map state (expanded nodes and manual positions)
// and, optionally, the concept graph itself so a map can be reopened without
// regenerating it.
//
// Two backends are provided:
//   - SQLiteStore: a single database file, one row per map
//   - FileStore: one JSON document per map under a directory
package store

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// Store loads and saves mind-map state keyed by map ID.
type Store interface {
	// Load returns the stored state, or nil (and no error) when the map has
	// never been saved.
	Load(ctx context.Context, mapID string) (*model.MindMapState, error)
	// Save replaces the stored state for state.MapID.
	Save(ctx context.Context, state model.MindMapState) error
	// LoadGraph returns the stored graph, or nil when none was saved.
	LoadGraph(ctx context.Context, mapID string) (*model.ConceptGraph, error)
	// SaveGraph replaces the stored graph for mapID.
	SaveGraph(ctx context.Context, mapID string, g model.ConceptGraph) error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverJSON   = "json"
)

// ErrUnsupportedVersion is returned for state written by a newer schema.
var ErrUnsupportedVersion = errors.New("unsupported mind map state version")

// ErrEmptyMapID is returned when a map ID is blank.
var ErrEmptyMapID = errors.New("map id is empty")

// Open creates a store for driver at path. For DriverSQLite path is the
// database file; for DriverJSON it is a directory.
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(driver) {
	case "", DriverSQLite:
		return OpenSQLite(path)
	case DriverJSON, "file":
		return NewFileStore(path)
	default:
		return nil, fmt.Errorf("unknown store driver %q (want sqlite or json)", driver)
	}
}

// MapID derives a stable ID from a graph's node IDs and edge endpoints, for
// maps that were not given an explicit ID. Input order does not matter.
func MapID(g model.ConceptGraph) string {
	nodes := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, n.ID)
	}
	edges := make([]string, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, e.Source+"\x00"+e.Target)
	}
	sort.Strings(nodes)
	sort.Strings(edges)

	h := fnv.New64a()
	for _, s := range nodes {
		h.Write([]byte(s))
		h.Write([]byte{0xff})
	}
	h.Write([]byte{0xfe})
	for _, s := range edges {
		h.Write([]byte(s))
		h.Write([]byte{0xff})
	}
	return fmt.Sprintf("map-%016x", h.Sum64())
}

// checkState validates a state before it is written and normalizes nil
// collections so they persist as empty values.
func checkState(state *model.MindMapState) error {
	if strings.TrimSpace(state.MapID) == "" {
		return ErrEmptyMapID
	}
	if state.Version == 0 {
		state.Version = model.MindMapStateVersion
	}
	if state.ExpandedNodeIDs == nil {
		state.ExpandedNodeIDs = []string{}
	}
	if state.NodePositions == nil {
		state.NodePositions = model.NodePositions{}
	}
	return nil
}

// checkLoaded rejects state from a newer schema and drops unusable positions.
func checkLoaded(state *model.MindMapState) error {
	if state.Version > model.MindMapStateVersion {
		return fmt.Errorf("%w: %d (supported: %d)", ErrUnsupportedVersion, state.Version, model.MindMapStateVersion)
	}
	for id, pos := range state.NodePositions {
		if !pos.IsFinite() {
			delete(state.NodePositions, id)
		}
	}
	return nil
}
