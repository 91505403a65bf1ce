// Package memory provides in-memory record stores for datasets and analysis
// runs. Used by tests and as the fallback when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"genelab/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.DatasetStore = (*Store)(nil)
	_ domain.RunStore     = (*Store)(nil)
)

// Store keeps all records in process memory behind a single lock.
type Store struct {
	mu       sync.RWMutex
	datasets map[string]domain.Dataset
	runs     map[string]domain.AnalysisRun
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		datasets: make(map[string]domain.Dataset),
		runs:     make(map[string]domain.AnalysisRun),
	}
}

func (s *Store) GetDataset(_ context.Context, id string) (domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.datasets[id]
	if !ok {
		return domain.Dataset{}, fmt.Errorf("dataset %s: %w", id, domain.ErrNotFound)
	}
	return ds, nil
}

func (s *Store) ListDatasets(_ context.Context, ownerID string) ([]domain.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Dataset
	for _, ds := range s.datasets {
		if ownerID == "" || ds.OwnerID == ownerID {
			out = append(out, ds)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) PutDataset(_ context.Context, ds domain.Dataset) error {
	if ds.ID == "" {
		return fmt.Errorf("dataset id required")
	}
	s.mu.Lock()
	s.datasets[ds.ID] = ds
	s.mu.Unlock()
	return nil
}

func (s *Store) UpdateDatasetMatrix(_ context.Context, id, storagePath string, nRows, nCols int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[id]
	if !ok {
		return fmt.Errorf("dataset %s: %w", id, domain.ErrNotFound)
	}
	ds.StoragePath = storagePath
	ds.NRows = nRows
	ds.NCols = nCols
	ds.UpdatedAt = time.Now().UTC()
	s.datasets[id] = ds
	return nil
}

func (s *Store) GetRun(_ context.Context, id string) (domain.AnalysisRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.AnalysisRun{}, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	return cloneRun(run), nil
}

func (s *Store) ListRuns(_ context.Context, datasetID string) ([]domain.AnalysisRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AnalysisRun
	for _, run := range s.runs {
		if datasetID == "" || run.DatasetID == datasetID {
			out = append(out, cloneRun(run))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) PutRun(_ context.Context, run domain.AnalysisRun) error {
	if run.ID == "" {
		return fmt.Errorf("run id required")
	}
	s.mu.Lock()
	s.runs[run.ID] = cloneRun(run)
	s.mu.Unlock()
	return nil
}

func (s *Store) UpdateRun(_ context.Context, id string, mutate func(*domain.AnalysisRun) error) (domain.AnalysisRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return domain.AnalysisRun{}, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	updated := cloneRun(run)
	if err := mutate(&updated); err != nil {
		return domain.AnalysisRun{}, err
	}
	updated.ID = id
	s.runs[id] = cloneRun(updated)
	return updated, nil
}

func cloneRun(run domain.AnalysisRun) domain.AnalysisRun {
	out := run
	if run.Params != nil {
		out.Params = make(map[string]any, len(run.Params))
		for k, v := range run.Params {
			out.Params[k] = v
		}
	}
	if run.Artifacts != nil {
		out.Artifacts = make(map[string]string, len(run.Artifacts))
		for k, v := range run.Artifacts {
			out.Artifacts[k] = v
		}
	}
	if run.StartedAt != nil {
		t := *run.StartedAt
		out.StartedAt = &t
	}
	if run.FinishedAt != nil {
		t := *run.FinishedAt
		out.FinishedAt = &t
	}
	return out
}
