// Package recipe executes canned analyses (correlation, pca, de) against a
// dataset, tracking each attempt as an AnalysisRun record and writing result
// files through the blob store.
package recipe

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"genelab/internal/analytics"
	"genelab/internal/blob"
	"genelab/internal/observability"
	"genelab/internal/tabular"
	"genelab/pkg/domain"
)

// Template describes one runnable recipe for listing endpoints.
type Template struct {
	Key         string         `json:"key"`
	DisplayName string         `json:"display_name"`
	Description string         `json:"description"`
	Defaults    map[string]any `json:"defaults,omitempty"`
}

type executor func(ctx context.Context, ex *execution) (map[string]string, error)

type recipeDef struct {
	Template
	run executor
}

var registry = []recipeDef{
	{
		Template: Template{
			Key:         "correlation",
			DisplayName: "Correlation Matrix",
			Description: "Pearson/Spearman correlation with heatmap",
			Defaults:    map[string]any{"method": "spearman", "max_features": 300},
		},
		run: runCorrelation,
	},
	{
		Template: Template{
			Key:         "pca",
			DisplayName: "PCA",
			Description: "Standardize, project, scree + scatter",
			Defaults:    map[string]any{"n_components": 10},
		},
		run: runPCA,
	},
	{
		Template: Template{
			Key:         "de",
			DisplayName: "Differential Expression",
			Description: "Two-group Welch t-test with BH-FDR",
			Defaults:    map[string]any{"group_col": "group"},
		},
		run: runDE,
	},
}

func lookup(key string) (recipeDef, bool) {
	for _, def := range registry {
		if def.Key == key {
			return def, true
		}
	}
	return recipeDef{}, false
}

// Templates lists the available recipes in registration order.
func Templates() []Template {
	out := make([]Template, len(registry))
	for i, def := range registry {
		out[i] = def.Template
	}
	return out
}

// Engine runs recipes inline. Failures during execution are captured on the
// run record; Submit only returns an error when the run could not be created
// or persisted at all.
type Engine struct {
	runs    domain.RunStore
	blobs   blob.Store
	log     observability.Logger
	metrics *observability.Metrics
	baseURL string
	now     func() time.Time
}

// NewEngine wires a run engine. baseURL, when set, prefixes artifact URLs
// (e.g. a public gateway origin); log and metrics may be nil.
func NewEngine(runs domain.RunStore, blobs blob.Store, log observability.Logger, metrics *observability.Metrics, baseURL string) *Engine {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Engine{
		runs:    runs,
		blobs:   blobs,
		log:     log,
		metrics: metrics,
		baseURL: baseURL,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates the recipe, creates a run record, and executes it inline.
// An identical (recipe, params, dataset fingerprint) combination that already
// succeeded is short-circuited: the new run re-serves the prior manifest and
// is flagged cache_hit without touching the dataset file.
func (e *Engine) Submit(ctx context.Context, ds domain.Dataset, ownerID, recipeKey string, params map[string]any) (domain.AnalysisRun, error) {
	def, ok := lookup(recipeKey)
	if !ok {
		return domain.AnalysisRun{}, fmt.Errorf("recipe %q: %w", recipeKey, domain.ErrUnknownRecipe)
	}

	fp := analytics.Fingerprint(ds)
	cacheKey := analytics.CacheKey(ds.ID, "run:"+recipeKey, fp, params)

	run := domain.AnalysisRun{
		ID:        uuid.NewString(),
		DatasetID: ds.ID,
		OwnerID:   ownerID,
		RecipeKey: recipeKey,
		Params:    params,
		Status:    domain.RunStatusQueued,
		CacheKey:  cacheKey,
		CreatedAt: e.now(),
	}

	if prior, ok := e.priorSuccess(ctx, ds.ID, cacheKey); ok {
		now := e.now()
		run.Status = domain.RunStatusSucceeded
		run.CacheHit = true
		run.Artifacts = prior.Artifacts
		run.StartedAt = &now
		run.FinishedAt = &now
		if err := e.runs.PutRun(ctx, run); err != nil {
			return domain.AnalysisRun{}, err
		}
		e.metrics.CacheHit("run")
		e.log.Info("run served from cache", "run_id", run.ID, "recipe", recipeKey, "prior_run_id", prior.ID)
		return run, nil
	}
	e.metrics.CacheMiss("run")

	if err := e.runs.PutRun(ctx, run); err != nil {
		return domain.AnalysisRun{}, err
	}
	return e.execute(ctx, ds, run, def)
}

// priorSuccess finds the most recent non-cache-hit succeeded run with the
// same cache key.
func (e *Engine) priorSuccess(ctx context.Context, datasetID, cacheKey string) (domain.AnalysisRun, bool) {
	runs, err := e.runs.ListRuns(ctx, datasetID)
	if err != nil {
		e.log.Warn("run cache lookup failed", "dataset_id", datasetID, "error", err)
		return domain.AnalysisRun{}, false
	}
	var best domain.AnalysisRun
	found := false
	for _, r := range runs {
		if r.Status != domain.RunStatusSucceeded || r.CacheKey != cacheKey || r.CacheHit {
			continue
		}
		if !found || r.CreatedAt.After(best.CreatedAt) {
			best = r
			found = true
		}
	}
	return best, found
}

func (e *Engine) execute(ctx context.Context, ds domain.Dataset, run domain.AnalysisRun, def recipeDef) (domain.AnalysisRun, error) {
	started := e.now()
	claimed, err := e.runs.UpdateRun(ctx, run.ID, func(r *domain.AnalysisRun) error {
		r.Status = domain.RunStatusRunning
		r.StartedAt = &started
		return nil
	})
	if err != nil {
		return domain.AnalysisRun{}, err
	}
	e.log.Info("run started", "run_id", run.ID, "recipe", run.RecipeKey, "dataset_id", ds.ID)

	artifacts, execErr := e.tryExecute(ctx, ds, claimed, def)

	finished := e.now()
	status := domain.RunStatusSucceeded
	final, err := e.runs.UpdateRun(ctx, run.ID, func(r *domain.AnalysisRun) error {
		r.FinishedAt = &finished
		if execErr != nil {
			r.Status = domain.RunStatusFailed
			r.ErrorMessage = execErr.Error()
			return nil
		}
		r.Status = domain.RunStatusSucceeded
		r.Artifacts = artifacts
		return nil
	})
	if err != nil {
		return domain.AnalysisRun{}, err
	}
	if execErr != nil {
		status = domain.RunStatusFailed
		e.log.Warn("run failed", "run_id", run.ID, "recipe", run.RecipeKey, "error", execErr)
	} else {
		e.log.Info("run succeeded", "run_id", run.ID, "recipe", run.RecipeKey, "artifacts", len(artifacts))
	}
	e.metrics.ObserveRun(run.RecipeKey, string(status), finished.Sub(started))
	return final, nil
}

// tryExecute loads the dataset and runs the recipe body, converting panics
// from deep numeric code into a failed-run error.
func (e *Engine) tryExecute(ctx context.Context, ds domain.Dataset, run domain.AnalysisRun, def recipeDef) (arts map[string]string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			arts, err = nil, fmt.Errorf("recipe %s panicked: %v", run.RecipeKey, rec)
		}
	}()
	frame, err := tabular.ReadTable(ds.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	ex := &execution{engine: e, runID: run.ID, frame: frame, params: run.Params}
	return def.run(ctx, ex)
}

// Cancel marks a queued or running run canceled. Terminal runs cannot be
// canceled.
func (e *Engine) Cancel(ctx context.Context, runID string) (domain.AnalysisRun, error) {
	now := e.now()
	return e.runs.UpdateRun(ctx, runID, func(r *domain.AnalysisRun) error {
		if r.Status.Terminal() {
			return fmt.Errorf("run %s already %s", runID, r.Status)
		}
		r.Status = domain.RunStatusCanceled
		r.FinishedAt = &now
		return nil
	})
}

// execution carries per-run state into recipe bodies.
type execution struct {
	engine *Engine
	runID  string
	frame  *tabular.Frame
	params map[string]any
}

// putArtifact stores one result file under the run's key prefix and returns
// the URL recorded in the manifest.
func (ex *execution) putArtifact(ctx context.Context, name string, data []byte) (string, error) {
	key := fmt.Sprintf("runs/%s/%s", ex.runID, name)
	if _, err := ex.engine.blobs.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{}); err != nil {
		return "", fmt.Errorf("store artifact %s: %w", name, err)
	}
	return ex.engine.baseURL + "/files/" + key, nil
}
