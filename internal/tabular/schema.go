package tabular

import (
	"strconv"
	"strings"
)

// ColumnSchema describes one inferred column.
type ColumnSchema struct {
	Name        string  `json:"name"`
	Dtype       string  `json:"dtype"`
	Missing     int     `json:"missing"`
	MissingPct  float64 `json:"missing_pct"`
	UniqueCount int     `json:"unique_count"`
	Role        string  `json:"role"`
}

// Schema summarizes an inferred table layout.
type Schema struct {
	Rows    int            `json:"rows"`
	Columns []ColumnSchema `json:"columns"`
}

// InferSchema derives per-column dtype, missingness, cardinality, and a
// role guess from a (possibly sampled) frame.
func InferSchema(f *Frame) Schema {
	n := f.Height()
	out := Schema{Rows: n, Columns: make([]ColumnSchema, 0, f.Width())}
	for i, name := range f.Columns {
		cells := make([]string, n)
		for r, row := range f.Rows {
			cells[r] = row[i]
		}
		cs := inferColumn(name, cells)
		if n > 0 {
			cs.MissingPct = roundPct(float64(cs.Missing) / float64(n) * 100.0)
		}
		out.Columns = append(out.Columns, cs)
	}
	return out
}

func inferColumn(name string, cells []string) ColumnSchema {
	missing := 0
	uniq := make(map[string]struct{})
	allInt, allFloat, allBool, allTime := true, true, true, true
	seen := 0
	for _, cell := range cells {
		if strings.TrimSpace(cell) == "" {
			missing++
			continue
		}
		seen++
		uniq[cell] = struct{}{}
		if allInt {
			if _, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, ok := ParseFloat(cell); !ok {
				allFloat = false
			}
		}
		if allBool {
			switch strings.ToLower(strings.TrimSpace(cell)) {
			case "true", "false":
			default:
				allBool = false
			}
		}
		if allTime {
			if _, ok := ParseTime(cell); !ok {
				allTime = false
			}
		}
	}

	dtype := "string"
	switch {
	case seen == 0:
		dtype = "string"
	case allBool:
		dtype = "boolean"
	case allInt:
		dtype = "integer"
	case allFloat:
		dtype = "number"
	case allTime:
		dtype = "datetime"
	}

	return ColumnSchema{
		Name:        name,
		Dtype:       dtype,
		Missing:     missing,
		UniqueCount: len(uniq),
		Role:        guessRole(name, dtype, len(uniq), len(cells)),
	}
}

// guessRole classifies a column as identifier, label, or feature using the
// same heuristics interactive panels key off of: id-ish names or near-unique
// strings are identifiers, low-cardinality strings are labels.
func guessRole(name, dtype string, uniq, n int) string {
	stringy := dtype == "string"
	if strings.Contains(strings.ToLower(name), "id") {
		return "id"
	}
	if stringy && n > 0 && float64(uniq) > 0.9*float64(n) {
		return "id"
	}
	if stringy && uniq <= 20 {
		return "label"
	}
	return "feature"
}

func roundPct(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
