package domain

import "context"

// DatasetStore is the record store for dataset rows. The analytics core
// never creates or deletes dataset records; after canonicalization it
// updates the storage path and the recorded row/column counts.
type DatasetStore interface {
	GetDataset(ctx context.Context, id string) (Dataset, error)
	ListDatasets(ctx context.Context, ownerID string) ([]Dataset, error)
	PutDataset(ctx context.Context, ds Dataset) error
	UpdateDatasetMatrix(ctx context.Context, id, storagePath string, nRows, nCols int) error
}

// RunStore is the record store for analysis runs. The run engine is the sole
// writer of status, timestamps, artifacts, and error message.
type RunStore interface {
	GetRun(ctx context.Context, id string) (AnalysisRun, error)
	ListRuns(ctx context.Context, datasetID string) ([]AnalysisRun, error)
	PutRun(ctx context.Context, run AnalysisRun) error
	UpdateRun(ctx context.Context, id string, mutate func(*AnalysisRun) error) (AnalysisRun, error)
}
