package recipe

import (
	"strconv"
	"strings"

	"genelab/internal/tabular"
)

// numericColumns returns the names of columns whose non-missing cells all
// parse as floats, skipping any excluded names, up to limit (0 = no limit).
func numericColumns(f *tabular.Frame, exclude map[string]bool, limit int) []string {
	var out []string
	for _, name := range f.Columns {
		if exclude[name] {
			continue
		}
		if isNumericColumn(f, name) {
			out = append(out, name)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

func isNumericColumn(f *tabular.Frame, name string) bool {
	cells, ok := f.Column(name)
	if !ok {
		return false
	}
	seen := false
	for _, c := range cells {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if _, ok := tabular.ParseFloat(c); !ok {
			return false
		}
		seen = true
	}
	return seen
}

// completeSeries extracts the named columns as float series, keeping only
// rows where every selected cell parses. Series come back column-major.
func completeSeries(f *tabular.Frame, names []string) [][]float64 {
	idx := make([]int, len(names))
	for i, n := range names {
		idx[i] = f.Index(n)
	}
	series := make([][]float64, len(names))
	for _, row := range f.Rows {
		vals := make([]float64, len(names))
		ok := true
		for i, j := range idx {
			v, parsed := tabular.ParseFloat(row[j])
			if !parsed {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		for i, v := range vals {
			series[i] = append(series[i], v)
		}
	}
	return series
}

// rowSeries extracts each row's values over the named columns, keeping only
// rows that are fully numeric, up to limit rows. Row labels come from
// labelCol when it exists, falling back to the row index.
func rowSeries(f *tabular.Frame, names []string, labelCol string, limit int) (labels []string, series [][]float64) {
	idx := make([]int, len(names))
	for i, n := range names {
		idx[i] = f.Index(n)
	}
	labelIdx := f.Index(labelCol)
	for rowNum, row := range f.Rows {
		vals := make([]float64, len(names))
		ok := true
		for i, j := range idx {
			v, parsed := tabular.ParseFloat(row[j])
			if !parsed {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		label := "row" + strconv.Itoa(rowNum)
		if labelIdx >= 0 && strings.TrimSpace(row[labelIdx]) != "" {
			label = row[labelIdx]
		}
		labels = append(labels, label)
		series = append(series, vals)
		if limit > 0 && len(series) == limit {
			break
		}
	}
	return labels, series
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
