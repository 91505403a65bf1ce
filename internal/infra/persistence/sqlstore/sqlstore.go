// Package sqlstore implements the dataset and run record stores over
// database/sql. The sqlite and postgres packages supply an open database and
// a dialect; the SQL itself is shared, written with ? placeholders and
// rebound for drivers that number theirs.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"genelab/pkg/domain"
)

// Dialect selects placeholder style.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Compile-time contract assertions.
var (
	_ domain.DatasetStore = (*Store)(nil)
	_ domain.RunStore     = (*Store)(nil)
)

// Store implements both record store interfaces on a SQL database.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an already opened and migrated database.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB exposes the underlying handle for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// rebind rewrites ? placeholders to $1..$n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const datasetColumns = `id, owner_id, title, description, storage_path, original_filename,
	mime_type, file_size_bytes, n_rows, n_cols, created_at, updated_at`

func (s *Store) GetDataset(ctx context.Context, id string) (domain.Dataset, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+datasetColumns+` FROM datasets WHERE id = ?`), id)
	ds, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Dataset{}, fmt.Errorf("dataset %s: %w", id, domain.ErrNotFound)
	}
	return ds, err
}

func (s *Store) ListDatasets(ctx context.Context, ownerID string) ([]domain.Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []domain.Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func (s *Store) PutDataset(ctx context.Context, ds domain.Dataset) error {
	if ds.ID == "" {
		return fmt.Errorf("dataset id required")
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO datasets (`+datasetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			title = excluded.title,
			description = excluded.description,
			storage_path = excluded.storage_path,
			original_filename = excluded.original_filename,
			mime_type = excluded.mime_type,
			file_size_bytes = excluded.file_size_bytes,
			n_rows = excluded.n_rows,
			n_cols = excluded.n_cols,
			updated_at = excluded.updated_at`),
		ds.ID, ds.OwnerID, ds.Title, ds.Description, ds.StoragePath, ds.OriginalFilename,
		ds.MimeType, ds.FileSizeBytes, ds.NRows, ds.NCols,
		encodeTime(ds.CreatedAt), encodeTime(ds.UpdatedAt))
	return err
}

func (s *Store) UpdateDatasetMatrix(ctx context.Context, id, storagePath string, nRows, nCols int) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE datasets SET storage_path = ?, n_rows = ?, n_cols = ?, updated_at = ? WHERE id = ?`),
		storagePath, nRows, nCols, encodeTime(time.Now()), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("dataset %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

const runColumns = `id, dataset_id, owner_id, recipe_key, params, status, cache_key,
	cache_hit, artifacts, error_message, created_at, started_at, finished_at`

func (s *Store) GetRun(ctx context.Context, id string) (domain.AnalysisRun, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT `+runColumns+` FROM analysis_runs WHERE id = ?`), id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AnalysisRun{}, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	return run, err
}

func (s *Store) ListRuns(ctx context.Context, datasetID string) ([]domain.AnalysisRun, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs`
	var args []any
	if datasetID != "" {
		query += ` WHERE dataset_id = ?`
		args = append(args, datasetID)
	}
	query += ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []domain.AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *Store) PutRun(ctx context.Context, run domain.AnalysisRun) error {
	if run.ID == "" {
		return fmt.Errorf("run id required")
	}
	params, err := encodeJSON(run.Params)
	if err != nil {
		return err
	}
	artifacts, err := encodeJSON(run.Artifacts)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO analysis_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			cache_hit = excluded.cache_hit,
			artifacts = excluded.artifacts,
			error_message = excluded.error_message,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`),
		run.ID, run.DatasetID, run.OwnerID, run.RecipeKey, params, string(run.Status),
		run.CacheKey, run.CacheHit, artifacts, run.ErrorMessage,
		encodeTime(run.CreatedAt), encodeTimePtr(run.StartedAt), encodeTimePtr(run.FinishedAt))
	return err
}

func (s *Store) UpdateRun(ctx context.Context, id string, mutate func(*domain.AnalysisRun) error) (domain.AnalysisRun, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.AnalysisRun{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, s.rebind(
		`SELECT `+runColumns+` FROM analysis_runs WHERE id = ?`), id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AnalysisRun{}, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.AnalysisRun{}, err
	}
	if err := mutate(&run); err != nil {
		return domain.AnalysisRun{}, err
	}
	run.ID = id

	artifacts, err := encodeJSON(run.Artifacts)
	if err != nil {
		return domain.AnalysisRun{}, err
	}
	if _, err := tx.ExecContext(ctx, s.rebind(`
		UPDATE analysis_runs SET
			status = ?, cache_hit = ?, artifacts = ?, error_message = ?,
			started_at = ?, finished_at = ?
		WHERE id = ?`),
		string(run.Status), run.CacheHit, artifacts, run.ErrorMessage,
		encodeTimePtr(run.StartedAt), encodeTimePtr(run.FinishedAt), id); err != nil {
		return domain.AnalysisRun{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.AnalysisRun{}, err
	}
	committed = true
	return run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(r rowScanner) (domain.Dataset, error) {
	var ds domain.Dataset
	var created, updated string
	if err := r.Scan(&ds.ID, &ds.OwnerID, &ds.Title, &ds.Description, &ds.StoragePath,
		&ds.OriginalFilename, &ds.MimeType, &ds.FileSizeBytes, &ds.NRows, &ds.NCols,
		&created, &updated); err != nil {
		return domain.Dataset{}, err
	}
	var err error
	if ds.CreatedAt, err = decodeTime(created); err != nil {
		return domain.Dataset{}, err
	}
	if ds.UpdatedAt, err = decodeTime(updated); err != nil {
		return domain.Dataset{}, err
	}
	return ds, nil
}

func scanRun(r rowScanner) (domain.AnalysisRun, error) {
	var run domain.AnalysisRun
	var status, created string
	var params, artifacts, started, finished sql.NullString
	if err := r.Scan(&run.ID, &run.DatasetID, &run.OwnerID, &run.RecipeKey, &params,
		&status, &run.CacheKey, &run.CacheHit, &artifacts, &run.ErrorMessage,
		&created, &started, &finished); err != nil {
		return domain.AnalysisRun{}, err
	}
	run.Status = domain.RunStatus(status)
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &run.Params); err != nil {
			return domain.AnalysisRun{}, fmt.Errorf("decode params: %w", err)
		}
	}
	if artifacts.Valid && artifacts.String != "" {
		if err := json.Unmarshal([]byte(artifacts.String), &run.Artifacts); err != nil {
			return domain.AnalysisRun{}, fmt.Errorf("decode artifacts: %w", err)
		}
	}
	var err error
	if run.CreatedAt, err = decodeTime(created); err != nil {
		return domain.AnalysisRun{}, err
	}
	if run.StartedAt, err = decodeTimePtr(started); err != nil {
		return domain.AnalysisRun{}, err
	}
	if run.FinishedAt, err = decodeTimePtr(finished); err != nil {
		return domain.AnalysisRun{}, err
	}
	return run, nil
}

func encodeJSON(v any) (sql.NullString, error) {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return sql.NullString{}, nil
		}
	case map[string]string:
		if t == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func encodeTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func encodeTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: encodeTime(*t), Valid: true}
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode timestamp %q: %w", s, err)
	}
	return t, nil
}

func decodeTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
