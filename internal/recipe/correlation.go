package recipe

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"genelab/internal/numeric"
)

// runCorrelation computes a pairwise correlation matrix over the dataset's
// numeric columns (or, with transpose, over its fully numeric rows), writes
// it as CSV, and renders a heatmap. With cluster set, rows and columns are
// reordered by average-linkage so correlated blocks sit together.
func runCorrelation(ctx context.Context, ex *execution) (map[string]string, error) {
	method, err := numeric.ParseCorrMethod(paramString(ex.params, "method", ""))
	if err != nil {
		return nil, err
	}
	maxf := paramInt(ex.params, "max_features", 300)
	if maxf < 2 {
		return nil, fmt.Errorf("max_features must be at least 2, got %d", maxf)
	}

	var labels []string
	var series [][]float64
	if paramBool(ex.params, "transpose", false) {
		cols := numericColumns(ex.frame, nil, 0)
		if len(cols) < 2 {
			return nil, fmt.Errorf("correlation requires at least 2 numeric columns, found %d", len(cols))
		}
		labelCol := ""
		if len(ex.frame.Columns) > 0 && !isNumericColumn(ex.frame, ex.frame.Columns[0]) {
			labelCol = ex.frame.Columns[0]
		}
		labels, series = rowSeries(ex.frame, cols, labelCol, maxf)
		if len(series) < 2 {
			return nil, fmt.Errorf("correlation requires at least 2 fully numeric rows, found %d", len(series))
		}
	} else {
		labels = numericColumns(ex.frame, nil, maxf)
		if len(labels) < 2 {
			return nil, fmt.Errorf("correlation requires at least 2 numeric columns, found %d", len(labels))
		}
		series = completeSeries(ex.frame, labels)
		if len(series[0]) < 2 {
			return nil, fmt.Errorf("correlation requires at least 2 complete rows, found %d", len(series[0]))
		}
	}

	corr := numeric.CorrelationMatrix(series, method)
	if paramBool(ex.params, "cluster", false) {
		order := numeric.AverageLinkageOrder(corr)
		labels, corr = reorderMatrix(labels, corr, order)
	}

	csvBytes, err := correlationCSV(labels, corr)
	if err != nil {
		return nil, err
	}
	csvURL, err := ex.putArtifact(ctx, "correlation.csv", csvBytes)
	if err != nil {
		return nil, err
	}
	pngBytes, err := heatmapPNG(corr)
	if err != nil {
		return nil, fmt.Errorf("render heatmap: %w", err)
	}
	pngURL, err := ex.putArtifact(ctx, "correlation.png", pngBytes)
	if err != nil {
		return nil, err
	}
	return map[string]string{"csv_url": csvURL, "heatmap_png": pngURL}, nil
}

func reorderMatrix(labels []string, m [][]float64, order []int) ([]string, [][]float64) {
	outLabels := make([]string, len(order))
	out := make([][]float64, len(order))
	for i, oi := range order {
		outLabels[i] = labels[oi]
		out[i] = make([]float64, len(order))
		for j, oj := range order {
			out[i][j] = m[oi][oj]
		}
	}
	return outLabels, out
}

func correlationCSV(labels []string, corr [][]float64) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append([]string{""}, labels...)); err != nil {
		return nil, err
	}
	for i, label := range labels {
		rec := make([]string, 0, len(labels)+1)
		rec = append(rec, label)
		for _, v := range corr[i] {
			rec = append(rec, formatFloat(v))
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
