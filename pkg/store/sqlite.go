package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/conceptmap/pkg/metrics"
	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// SQLiteStore keeps every map in one SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The pure-Go driver serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := CreateSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, mapID string) (*model.MindMapState, error) {
	var (
		version           int
		expanded, posJSON string
		updated           string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, expanded_node_ids, node_positions, updated_at FROM mind_maps WHERE map_id = ?`,
		mapID,
	).Scan(&version, &expanded, &posJSON, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", mapID, err)
	}

	state := &model.MindMapState{Version: version, MapID: mapID}
	if err := json.Unmarshal([]byte(expanded), &state.ExpandedNodeIDs); err != nil {
		return nil, fmt.Errorf("decode expanded ids for %s: %w", mapID, err)
	}
	if err := json.Unmarshal([]byte(posJSON), &state.NodePositions); err != nil {
		return nil, fmt.Errorf("decode positions for %s: %w", mapID, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		state.UpdatedAt = t
	}
	if err := checkLoaded(state); err != nil {
		return nil, err
	}
	return state, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, state model.MindMapState) error {
	defer metrics.Timer(metrics.StateSave)()

	if err := checkState(&state); err != nil {
		return err
	}
	expanded, err := json.Marshal(state.ExpandedNodeIDs)
	if err != nil {
		return fmt.Errorf("encode expanded ids: %w", err)
	}
	positions, err := json.Marshal(state.NodePositions)
	if err != nil {
		return fmt.Errorf("encode positions: %w", err)
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mind_maps (map_id, version, expanded_node_ids, node_positions, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(map_id) DO UPDATE SET
			version = excluded.version,
			expanded_node_ids = excluded.expanded_node_ids,
			node_positions = excluded.node_positions,
			updated_at = excluded.updated_at
	`, state.MapID, state.Version, string(expanded), string(positions), state.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save state %s: %w", state.MapID, err)
	}
	return nil
}

// LoadGraph implements Store.
func (s *SQLiteStore) LoadGraph(ctx context.Context, mapID string) (*model.ConceptGraph, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT graph FROM map_graphs WHERE map_id = ?`, mapID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", mapID, err)
	}
	var g model.ConceptGraph
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return nil, fmt.Errorf("decode graph %s: %w", mapID, err)
	}
	return &g, nil
}

// SaveGraph implements Store.
func (s *SQLiteStore) SaveGraph(ctx context.Context, mapID string, g model.ConceptGraph) error {
	if mapID == "" {
		return ErrEmptyMapID
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO map_graphs (map_id, title, graph, node_count, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(map_id) DO UPDATE SET
			title = excluded.title,
			graph = excluded.graph,
			node_count = excluded.node_count,
			updated_at = excluded.updated_at
	`, mapID, g.Title, string(data), len(g.Nodes), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save graph %s: %w", mapID, err)
	}
	return nil
}

// MapSummary describes one stored map.
type MapSummary struct {
	MapID     string
	Title     string
	NodeCount int
	UpdatedAt time.Time
}

// ListMaps returns stored graphs, most recently updated first.
func (s *SQLiteStore) ListMaps(ctx context.Context) ([]MapSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT map_id, COALESCE(title, ''), node_count, updated_at FROM map_graphs ORDER BY updated_at DESC, map_id`)
	if err != nil {
		return nil, fmt.Errorf("list maps: %w", err)
	}
	defer rows.Close()

	var out []MapSummary
	for rows.Next() {
		var m MapSummary
		var updated string
		if err := rows.Scan(&m.MapID, &m.Title, &m.NodeCount, &updated); err != nil {
			return nil, fmt.Errorf("scan map row: %w", err)
		}
		m.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
