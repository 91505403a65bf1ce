// Package domain defines the shared record types and value objects used by
// the genelab analytics core: datasets, analysis runs, filters, and chart
// requests.
package domain

import (
	"time"
)

// RunStatus represents the lifecycle state of an analysis run.
type RunStatus string

// Canonical run lifecycle states. A run is created queued, claimed into
// running by the engine, and ends in exactly one of succeeded or failed.
// Canceled is terminal but only ever set by an external actor; the engine
// itself never transitions into it.
const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// Terminal reports whether the status admits no further engine transition.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusCanceled
}

// Dataset is the record describing one uploaded, canonicalized dataset. The
// analytics core reads these from a RecordStore; after canonicalization it
// updates only StoragePath, NRows, and NCols.
type Dataset struct {
	ID               string     `json:"id"`
	OwnerID          string     `json:"owner_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	StoragePath      string     `json:"storage_path"`
	OriginalFilename string     `json:"original_filename,omitempty"`
	MimeType         string     `json:"mime_type,omitempty"`
	FileSizeBytes    int64      `json:"file_size_bytes,omitempty"`
	NRows            int        `json:"n_rows"`
	NCols            int        `json:"n_cols"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// AnalysisRun tracks one execution attempt of a recipe against a dataset.
type AnalysisRun struct {
	ID           string            `json:"id"`
	DatasetID    string            `json:"dataset_id"`
	OwnerID      string            `json:"owner_id"`
	RecipeKey    string            `json:"recipe_key"`
	Params       map[string]any    `json:"params,omitempty"`
	Status       RunStatus         `json:"status"`
	CacheKey     string            `json:"cache_key,omitempty"`
	CacheHit     bool              `json:"cache_hit"`
	Artifacts    map[string]string `json:"artifacts,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty"`
}

// FilterOp enumerates the closed set of filter operators. Operator strings
// arrive from the wire and are dispatched against this enumeration only;
// they are never evaluated as expressions.
type FilterOp string

const (
	OpEq       FilterOp = "=="
	OpNe       FilterOp = "!="
	OpLt       FilterOp = "<"
	OpLe       FilterOp = "<="
	OpGt       FilterOp = ">"
	OpGe       FilterOp = ">="
	OpContains FilterOp = "contains"
	OpIn       FilterOp = "in"
	OpBetween  FilterOp = "between"
)

// Filter is one column/operator/value triple from the filter DSL. Filters in
// a list are combined with logical AND; a filter naming an unknown column is
// skipped rather than rejected.
type Filter struct {
	Column string   `json:"column"`
	Op     FilterOp `json:"op"`
	Value  any      `json:"value"`
}

// ChartKind enumerates the supported interactive chart types.
type ChartKind string

const (
	ChartHist    ChartKind = "hist"
	ChartBar     ChartKind = "bar"
	ChartLine    ChartKind = "line"
	ChartScatter ChartKind = "scatter"
)

// AggKind enumerates bar-chart aggregations.
type AggKind string

const (
	AggSum   AggKind = "sum"
	AggMean  AggKind = "mean"
	AggCount AggKind = "count"
)

// ChartRequest is the wire shape of an interactive chart query.
type ChartRequest struct {
	Kind    ChartKind `json:"kind"`
	X       string    `json:"x,omitempty"`
	Y       string    `json:"y,omitempty"`
	Bins    int       `json:"bins,omitempty"`
	Agg     AggKind   `json:"agg,omitempty"`
	Filters []Filter  `json:"filters,omitempty"`
	Sample  int       `json:"sample,omitempty"`
}
