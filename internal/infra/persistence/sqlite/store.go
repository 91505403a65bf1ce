// Package sqlite provides a file-backed record store on the pure Go sqlite
// driver.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"genelab/internal/infra/persistence/sqlstore"
)

// Store is a sqlstore.Store bound to a sqlite database file.
type Store struct {
	*sqlstore.Store
	path string
}

// NewStore opens (creating if needed) the sqlite database at path and applies
// the schema.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "genelab.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{Store: sqlstore.New(db, sqlstore.DialectSQLite), path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

const schema = `
CREATE TABLE IF NOT EXISTS datasets (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	storage_path TEXT NOT NULL DEFAULT '',
	original_filename TEXT NOT NULL DEFAULT '',
	mime_type TEXT NOT NULL DEFAULT '',
	file_size_bytes INTEGER NOT NULL DEFAULT 0,
	n_rows INTEGER NOT NULL DEFAULT 0,
	n_cols INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS analysis_runs (
	id TEXT PRIMARY KEY,
	dataset_id TEXT NOT NULL,
	owner_id TEXT NOT NULL DEFAULT '',
	recipe_key TEXT NOT NULL,
	params TEXT,
	status TEXT NOT NULL,
	cache_key TEXT NOT NULL DEFAULT '',
	cache_hit INTEGER NOT NULL DEFAULT 0,
	artifacts TEXT,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	started_at TEXT,
	finished_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_runs_dataset ON analysis_runs(dataset_id);
CREATE INDEX IF NOT EXISTS idx_runs_cache_key ON analysis_runs(cache_key);
`
