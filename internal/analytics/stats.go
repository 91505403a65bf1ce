package analytics

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"genelab/internal/numeric"
	"genelab/internal/tabular"
	"genelab/pkg/domain"
)

// Candidate column cap when a PCA request names no columns.
const maxAutoColumns = 20

// StatsRequest is the wire shape shared by the correlation-matrix and
// PCA-scores endpoints.
type StatsRequest struct {
	Columns     []string        `json:"columns,omitempty"`
	Filters     []domain.Filter `json:"filters,omitempty"`
	NComponents int             `json:"n_components,omitempty"`
}

// CorrResult is the correlation-matrix payload.
type CorrResult struct {
	Cols   []string    `json:"cols"`
	Matrix [][]float64 `json:"matrix"`
}

// PCAPoint is a per-sample position in the first two components.
type PCAPoint struct {
	PC1 float64 `json:"pc1"`
	PC2 float64 `json:"pc2"`
}

// PCAScoresResult is the PCA-scores payload. Degenerate inputs produce the
// explicit empty result rather than an error, keeping charting responsive.
type PCAScoresResult struct {
	Scores    []PCAPoint `json:"scores"`
	Explained []float64  `json:"explained"`
	Columns   []string   `json:"columns,omitempty"`
}

// Correlation computes a Pearson correlation matrix over the filtered,
// null-complete numeric selection, cached by dataset id and payload.
func (e *Engine) Correlation(ctx context.Context, ds domain.Dataset, req StatsRequest) (CorrResult, error) {
	key := CacheKey(ds.ID, "corr", nil, req)
	var cached CorrResult
	if e.cache != nil && e.cache.GetJSON(key, &cached) {
		e.metrics.CacheHit("corr")
		return cached, nil
	}
	e.metrics.CacheMiss("corr")

	start := time.Now()
	frame, err := tabular.Scan(ds.StoragePath).Filter(req.Filters...).Collect()
	if err != nil {
		return CorrResult{}, err
	}

	cols, series := numericSelection(frame, req.Columns, 0)
	if len(cols) == 0 || len(series) == 0 || len(series[0]) == 0 {
		out := CorrResult{Cols: []string{}, Matrix: [][]float64{}}
		if e.cache != nil {
			e.cache.SetJSON(key, out)
		}
		return out, nil
	}

	out := CorrResult{Cols: cols, Matrix: numeric.CorrelationMatrix(series, numeric.CorrPearson)}
	e.metrics.ObserveQuery("corr", time.Since(start))
	if e.cache != nil {
		e.cache.SetJSON(key, out)
	}
	return out, nil
}

// PCAScores standardizes the filtered numeric selection and returns
// per-sample scores in the first two components. Fewer than 3 complete rows
// or 2 candidate columns yields the explicit empty result.
func (e *Engine) PCAScores(ctx context.Context, ds domain.Dataset, req StatsRequest) (PCAScoresResult, error) {
	key := CacheKey(ds.ID, "pca", nil, req)
	var cached PCAScoresResult
	if e.cache != nil && e.cache.GetJSON(key, &cached) {
		e.metrics.CacheHit("pca")
		return cached, nil
	}
	e.metrics.CacheMiss("pca")

	start := time.Now()
	frame, err := tabular.Scan(ds.StoragePath).Filter(req.Filters...).Collect()
	if err != nil {
		return PCAScoresResult{}, err
	}

	limit := 0
	if len(req.Columns) == 0 {
		limit = maxAutoColumns
	}
	cols, series := numericSelection(frame, req.Columns, limit)
	empty := PCAScoresResult{Scores: []PCAPoint{}, Explained: []float64{}}
	if len(cols) < 2 || len(series[0]) < 3 {
		if e.cache != nil {
			e.cache.SetJSON(key, empty)
		}
		return empty, nil
	}

	n := len(series[0])
	X := mat.NewDense(n, len(cols), nil)
	for j, s := range series {
		for i, v := range s {
			X.Set(i, j, v)
		}
	}
	numeric.Standardize(X)

	k := numeric.ClampComponents(req.NComponents, n, len(cols))
	fit, err := numeric.PCA(X, k)
	if err != nil {
		return PCAScoresResult{}, err
	}

	out := PCAScoresResult{Columns: cols, Scores: make([]PCAPoint, n)}
	for i := 0; i < n; i++ {
		out.Scores[i] = PCAPoint{PC1: fit.Scores.At(i, 0), PC2: fit.Scores.At(i, 1)}
	}
	out.Explained = fit.Explained
	if len(out.Explained) > 2 {
		out.Explained = out.Explained[:2]
	}
	e.metrics.ObserveQuery("pca", time.Since(start))
	if e.cache != nil {
		e.cache.SetJSON(key, out)
	}
	return out, nil
}

// numericSelection picks the requested columns (or all numeric candidates up
// to limit when none are named) and returns their values for rows where
// every selected cell parses. Column order follows the frame.
func numericSelection(f *tabular.Frame, requested []string, limit int) ([]string, [][]float64) {
	var cols []string
	if len(requested) > 0 {
		for _, name := range requested {
			if f.Index(name) >= 0 {
				cols = append(cols, name)
			}
		}
	} else {
		for _, name := range f.Columns {
			if numericCandidate(f, name) {
				cols = append(cols, name)
				if limit > 0 && len(cols) >= limit {
					break
				}
			}
		}
	}
	if len(cols) == 0 {
		return nil, nil
	}

	idx := make([]int, len(cols))
	for i, name := range cols {
		idx[i] = f.Index(name)
	}
	series := make([][]float64, len(cols))
	for _, row := range f.Rows {
		vals := make([]float64, len(cols))
		complete := true
		for i, ci := range idx {
			v, ok := tabular.ParseFloat(row[ci])
			if !ok {
				complete = false
				break
			}
			vals[i] = v
		}
		if !complete {
			continue
		}
		for i := range cols {
			series[i] = append(series[i], vals[i])
		}
	}
	if series[0] == nil {
		for i := range series {
			series[i] = []float64{}
		}
	}
	return cols, series
}

// numericCandidate reports whether a column holds at least one parseable
// number and nothing that fails to parse besides missing cells.
func numericCandidate(f *tabular.Frame, name string) bool {
	i := f.Index(name)
	seen := false
	for _, row := range f.Rows {
		cell := row[i]
		if cell == "" {
			continue
		}
		if _, ok := tabular.ParseFloat(cell); !ok {
			return false
		}
		seen = true
	}
	return seen
}
