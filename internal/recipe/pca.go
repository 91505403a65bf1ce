package recipe

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"genelab/internal/numeric"
)

// runPCA standardizes the numeric part of the dataset and projects it onto
// principal components. Optional params: log2 (log2(x+1) before scaling),
// top_features (keep the K highest-variance columns), transpose (treat each
// numeric column as an observation, for wide gene-by-sample matrices).
func runPCA(ctx context.Context, ex *execution) (map[string]string, error) {
	requested := paramInt(ex.params, "n_components", 10)

	features := numericColumns(ex.frame, nil, 0)
	if len(features) < 2 {
		return nil, fmt.Errorf("pca requires at least 2 numeric columns, found %d", len(features))
	}
	series := completeSeries(ex.frame, features)
	if len(series[0]) == 0 {
		return nil, fmt.Errorf("pca found no rows complete across all numeric columns")
	}

	if paramBool(ex.params, "log2", false) {
		for _, col := range series {
			for i, v := range col {
				col[i] = math.Log2(v + 1)
			}
		}
	}
	if topK := paramInt(ex.params, "top_features", 0); topK > 0 && topK < len(features) {
		features, series = topVariance(features, series, topK)
	}

	var X *mat.Dense
	var obsLabels []string
	if paramBool(ex.params, "transpose", false) {
		// observations = columns (samples), variables = rows
		n := len(series)
		p := len(series[0])
		X = mat.NewDense(n, p, nil)
		for i, col := range series {
			X.SetRow(i, col)
		}
		obsLabels = features
	} else {
		n := len(series[0])
		p := len(series)
		X = mat.NewDense(n, p, nil)
		for j, col := range series {
			for i, v := range col {
				X.Set(i, j, v)
			}
		}
	}

	rows, cols := X.Dims()
	if rows < 3 {
		return nil, fmt.Errorf("pca requires at least 3 observations, found %d", rows)
	}
	k := numeric.ClampComponents(requested, rows, cols)

	numeric.Standardize(X)
	res, err := numeric.PCA(X, k)
	if err != nil {
		return nil, err
	}
	_, k = res.Scores.Dims()

	arts := map[string]string{}
	scoresCSV, err := pcaScoresCSV(res.Scores, obsLabels, k)
	if err != nil {
		return nil, err
	}
	if arts["scores_csv"], err = ex.putArtifact(ctx, "pca_scores.csv", scoresCSV); err != nil {
		return nil, err
	}
	loadingsCSV, err := pcaLoadingsCSV(res.Loadings, loadingLabels(ex, paramBool(ex.params, "transpose", false), features), k)
	if err != nil {
		return nil, err
	}
	if arts["loadings_csv"], err = ex.putArtifact(ctx, "pca_loadings.csv", loadingsCSV); err != nil {
		return nil, err
	}
	explainedCSV, err := pcaExplainedCSV(res.Explained)
	if err != nil {
		return nil, err
	}
	if arts["explained_csv"], err = ex.putArtifact(ctx, "pca_explained.csv", explainedCSV); err != nil {
		return nil, err
	}

	screeBytes, err := screePNG(res.Explained)
	if err != nil {
		return nil, fmt.Errorf("render scree: %w", err)
	}
	if arts["scree_png"], err = ex.putArtifact(ctx, "pca_scree.png", screeBytes); err != nil {
		return nil, err
	}
	nObs, _ := res.Scores.Dims()
	xs := make([]float64, nObs)
	ys := make([]float64, nObs)
	for i := 0; i < nObs; i++ {
		xs[i] = res.Scores.At(i, 0)
		ys[i] = res.Scores.At(i, 1)
	}
	scatterBytes, err := scatterPNG(xs, ys, "PC1", "PC2")
	if err != nil {
		return nil, fmt.Errorf("render scatter: %w", err)
	}
	if arts["scatter_png"], err = ex.putArtifact(ctx, "pca_scatter.png", scatterBytes); err != nil {
		return nil, err
	}
	return arts, nil
}

// topVariance keeps the k columns with the largest sample variance,
// preserving original column order among the kept.
func topVariance(names []string, series [][]float64, k int) ([]string, [][]float64) {
	type scored struct {
		idx int
		v   float64
	}
	scores := make([]scored, len(series))
	for i, col := range series {
		scores[i] = scored{idx: i, v: stat.Variance(col, nil)}
	}
	sort.SliceStable(scores, func(a, b int) bool { return scores[a].v > scores[b].v })
	keep := make([]bool, len(series))
	for _, s := range scores[:k] {
		keep[s.idx] = true
	}
	var outNames []string
	var outSeries [][]float64
	for i := range series {
		if keep[i] {
			outNames = append(outNames, names[i])
			outSeries = append(outSeries, series[i])
		}
	}
	return outNames, outSeries
}

// loadingLabels names the loading rows: the feature columns normally, or the
// dataset's row identifiers when transposed.
func loadingLabels(ex *execution, transposed bool, features []string) []string {
	if !transposed {
		return features
	}
	// variables are the complete rows; label by leading identifier column
	labelCol := ""
	if len(ex.frame.Columns) > 0 && !isNumericColumn(ex.frame, ex.frame.Columns[0]) {
		labelCol = ex.frame.Columns[0]
	}
	labels, _ := rowSeries(ex.frame, features, labelCol, 0)
	return labels
}

func pcaScoresCSV(scores *mat.Dense, labels []string, k int) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := make([]string, 0, k+1)
	if labels != nil {
		header = append(header, "observation")
	}
	for j := 1; j <= k; j++ {
		header = append(header, "PC"+strconv.Itoa(j))
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	n, _ := scores.Dims()
	for i := 0; i < n; i++ {
		rec := make([]string, 0, k+1)
		if labels != nil {
			rec = append(rec, labels[i])
		}
		for j := 0; j < k; j++ {
			rec = append(rec, formatFloat(scores.At(i, j)))
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func pcaLoadingsCSV(loadings *mat.Dense, labels []string, k int) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"feature"}
	for j := 1; j <= k; j++ {
		header = append(header, "PC"+strconv.Itoa(j))
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	p, _ := loadings.Dims()
	for i := 0; i < p; i++ {
		rec := make([]string, 0, k+1)
		label := "f" + strconv.Itoa(i)
		if i < len(labels) {
			label = labels[i]
		}
		rec = append(rec, label)
		for j := 0; j < k; j++ {
			rec = append(rec, formatFloat(loadings.At(i, j)))
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func pcaExplainedCSV(explained []float64) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"component", "explained_variance_ratio", "cumulative"}); err != nil {
		return nil, err
	}
	cum := 0.0
	for j, v := range explained {
		cum += v
		if err := w.Write([]string{"PC" + strconv.Itoa(j+1), formatFloat(v), formatFloat(cum)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
