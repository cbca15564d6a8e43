package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion tracks migrations of the SQLite layout.
const SchemaVersion = 1

// CreateSchema creates the tables used by SQLiteStore.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"mind_maps", `
			CREATE TABLE IF NOT EXISTS mind_maps (
				map_id TEXT PRIMARY KEY,
				version INTEGER NOT NULL,
				expanded_node_ids TEXT NOT NULL,
				node_positions TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)
		`},
		{"map_graphs", `
			CREATE TABLE IF NOT EXISTS map_graphs (
				map_id TEXT PRIMARY KEY,
				title TEXT,
				graph TEXT NOT NULL,
				node_count INTEGER NOT NULL,
				updated_at TEXT NOT NULL
			)
		`},
		{"meta", `
			CREATE TABLE IF NOT EXISTS meta (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)
		`},
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s.sql); err != nil {
			return fmt.Errorf("create %s table: %w", s.name, err)
		}
	}

	var current int
	err := db.QueryRowContext(ctx, `SELECT CAST(value AS INTEGER) FROM meta WHERE key = 'schema_version'`).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		_, err = db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, fmt.Sprintf("%d", SchemaVersion))
		if err != nil {
			return fmt.Errorf("insert schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case current > SchemaVersion:
		return fmt.Errorf("database schema version %d is newer than supported %d", current, SchemaVersion)
	}
	return nil
}
