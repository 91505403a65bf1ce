package analytics

import (
	"context"

	"genelab/internal/tabular"
	"genelab/pkg/domain"
)

// Preview row bounds.
const (
	defaultPreviewRows = 50
	maxPreviewRows     = 200
	schemaSampleRows   = 20000
)

// PreviewResult is the raw head of a dataset for table display.
type PreviewResult struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Preview returns the first rows of the canonical matrix. Unlike charts,
// preview and schema key their cache entries on a file stat signature, so a
// rewritten matrix invalidates them immediately.
func (e *Engine) Preview(ctx context.Context, ds domain.Dataset, rows int) (PreviewResult, error) {
	if rows <= 0 {
		rows = defaultPreviewRows
	}
	if rows > maxPreviewRows {
		rows = maxPreviewRows
	}
	sig, err := FileSignature(ds.StoragePath)
	if err != nil {
		return PreviewResult{}, err
	}
	key := CacheKey(ds.ID, "preview", sig, rows)
	var cached PreviewResult
	if e.cache != nil && e.cache.GetJSON(key, &cached) {
		e.metrics.CacheHit("preview")
		return cached, nil
	}
	e.metrics.CacheMiss("preview")

	frame, err := tabular.ReadTablePreview(ds.StoragePath, rows)
	if err != nil {
		return PreviewResult{}, err
	}
	out := PreviewResult{Columns: frame.Columns, Rows: frame.Rows}
	if out.Rows == nil {
		out.Rows = [][]string{}
	}
	if e.cache != nil {
		e.cache.SetJSON(key, out)
	}
	return out, nil
}

// Schema infers per-column dtype, missingness, cardinality, and role from a
// sample of the canonical matrix, cached against the file stat signature.
func (e *Engine) Schema(ctx context.Context, ds domain.Dataset) (tabular.Schema, error) {
	sig, err := FileSignature(ds.StoragePath)
	if err != nil {
		return tabular.Schema{}, err
	}
	key := CacheKey(ds.ID, "schema", sig, nil)
	var cached tabular.Schema
	if e.cache != nil && e.cache.GetJSON(key, &cached) {
		e.metrics.CacheHit("schema")
		return cached, nil
	}
	e.metrics.CacheMiss("schema")

	frame, err := tabular.ReadTablePreview(ds.StoragePath, schemaSampleRows)
	if err != nil {
		return tabular.Schema{}, err
	}
	out := tabular.InferSchema(frame)
	if e.cache != nil {
		e.cache.SetJSON(key, out)
	}
	return out, nil
}
