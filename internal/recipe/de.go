package recipe

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"genelab/internal/numeric"
	"genelab/internal/tabular"
)

// runDE compares every numeric column between the two groups named by the
// group column: Welch's t-test per feature, results sorted by p-value, and a
// Benjamini-Hochberg adjusted value per row.
func runDE(ctx context.Context, ex *execution) (map[string]string, error) {
	groupCol := paramString(ex.params, "group_col", "group")
	groupIdx := ex.frame.Index(groupCol)
	if groupIdx < 0 {
		return nil, fmt.Errorf("column %q not in dataset", groupCol)
	}

	groups := groupValues(ex.frame, groupIdx)
	if len(groups) != 2 {
		return nil, fmt.Errorf("differential expression requires exactly 2 groups, found %d", len(groups))
	}

	features := numericColumns(ex.frame, map[string]bool{groupCol: true}, 0)
	if len(features) == 0 {
		return nil, fmt.Errorf("no numeric feature columns")
	}

	type result struct {
		feature string
		t       float64
		p       float64
	}
	results := make([]result, 0, len(features))
	for _, feat := range features {
		idx := ex.frame.Index(feat)
		var a, b []float64
		for _, row := range ex.frame.Rows {
			v, ok := tabular.ParseFloat(row[idx])
			if !ok {
				continue
			}
			switch row[groupIdx] {
			case groups[0]:
				a = append(a, v)
			case groups[1]:
				b = append(b, v)
			}
		}
		t, p := numeric.WelchT(a, b)
		results = append(results, result{feature: feat, t: t, p: p})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].p != results[j].p {
			return results[i].p < results[j].p
		}
		return results[i].feature < results[j].feature
	})
	pvals := make([]float64, len(results))
	for i, r := range results {
		pvals[i] = r.p
	}
	fdr := numeric.BHAdjust(pvals)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"feature", "tstat", "pval", "fdr"}); err != nil {
		return nil, err
	}
	for i, r := range results {
		rec := []string{r.feature, formatFloat(r.t), formatFloat(r.p), formatFloat(fdr[i])}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	csvURL, err := ex.putArtifact(ctx, "de.csv", buf.Bytes())
	if err != nil {
		return nil, err
	}
	return map[string]string{"csv_url": csvURL}, nil
}

// groupValues returns the distinct non-missing group labels in first-seen
// order.
func groupValues(f *tabular.Frame, idx int) []string {
	seen := map[string]bool{}
	var out []string
	for _, row := range f.Rows {
		v := row[idx]
		if strings.TrimSpace(v) == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
