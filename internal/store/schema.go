// Package store records simulation outcome trajectories in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the SQLite store.
const schemaV1 = `
-- One row per simulation run
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    seed INTEGER NOT NULL,
    params TEXT NOT NULL,      -- JSON of the disease parameters
    agents INTEGER DEFAULT 0,  -- initial population
    ticks INTEGER DEFAULT 0,   -- ticks executed, set on finish
    started_at TEXT NOT NULL,
    finished_at TEXT
);

-- Aggregated counts per condition at the end of each tick
CREATE TABLE IF NOT EXISTS counts (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    tick INTEGER NOT NULL,
    sustainable INTEGER NOT NULL,
    latent INTEGER NOT NULL,
    primary_infectious INTEGER NOT NULL,
    post_primary_infectious INTEGER NOT NULL,
    recovered INTEGER NOT NULL,
    dead INTEGER NOT NULL,
    PRIMARY KEY (run_id, tick)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InitSchema creates the tables if they do not exist.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}
