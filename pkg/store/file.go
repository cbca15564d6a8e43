package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/conceptmap/pkg/metrics"
	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// FileStore keeps each map in <dir>/<map-id>.state.json, with the graph in
// <dir>/<map-id>.graph.json.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create state directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the state directory.
func (f *FileStore) Dir() string { return f.dir }

// StatePath returns the file holding mapID's state.
func (f *FileStore) StatePath(mapID string) string {
	return filepath.Join(f.dir, safeFileName(mapID)+".state.json")
}

func (f *FileStore) graphPath(mapID string) string {
	return filepath.Join(f.dir, safeFileName(mapID)+".graph.json")
}

// safeFileName keeps letters, digits, '-', '_' and '.'; anything else
// becomes '_'.
func safeFileName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, strings.TrimLeft(id, "."))
}

// Load implements Store.
func (f *FileStore) Load(ctx context.Context, mapID string) (*model.MindMapState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.StatePath(mapID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", mapID, err)
	}
	var state model.MindMapState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("invalid state file for %s: %w", mapID, err)
	}
	if state.MapID == "" {
		state.MapID = mapID
	}
	if err := checkLoaded(&state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Save implements Store.
func (f *FileStore) Save(ctx context.Context, state model.MindMapState) error {
	defer metrics.Timer(metrics.StateSave)()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkState(&state); err != nil {
		return err
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return writeFileAtomic(f.StatePath(state.MapID), data)
}

// LoadGraph implements Store.
func (f *FileStore) LoadGraph(ctx context.Context, mapID string) (*model.ConceptGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.graphPath(mapID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read graph %s: %w", mapID, err)
	}
	var g model.ConceptGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("invalid graph file for %s: %w", mapID, err)
	}
	return &g, nil
}

// SaveGraph implements Store.
func (f *FileStore) SaveGraph(ctx context.Context, mapID string, g model.ConceptGraph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if mapID == "" {
		return ErrEmptyMapID
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	return writeFileAtomic(f.graphPath(mapID), data)
}

// Close implements Store.
func (f *FileStore) Close() error { return nil }

// writeFileAtomic writes to a temp file in the same directory and renames it
// into place so readers never see a partial document.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
