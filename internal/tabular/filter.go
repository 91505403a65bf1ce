package tabular

import (
	"encoding/json"
	"fmt"
	"strings"

	"genelab/pkg/domain"
)

// ApplyFilters evaluates the filter DSL against a frame. All predicates are
// ANDed; filters naming unknown columns are skipped; an empty effective
// filter list returns the frame unchanged. Missing cells never satisfy a
// predicate. Operators are dispatched against the closed domain.FilterOp
// enumeration and are never evaluated as expressions.
func ApplyFilters(f *Frame, filters []domain.Filter) *Frame {
	type bound struct {
		col  int
		pred func(cell string) bool
	}
	var preds []bound
	for _, flt := range filters {
		i := f.Index(flt.Column)
		if i < 0 {
			continue
		}
		if p := predicate(flt); p != nil {
			preds = append(preds, bound{col: i, pred: p})
		}
	}
	if len(preds) == 0 {
		return f
	}

	var rows [][]string
	for _, row := range f.Rows {
		keep := true
		for _, b := range preds {
			if !b.pred(row[b.col]) {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, row)
		}
	}
	return &Frame{Columns: f.Columns, Rows: rows}
}

func predicate(flt domain.Filter) func(string) bool {
	switch flt.Op {
	case domain.OpEq:
		return func(cell string) bool { return cell != "" && cellEqual(cell, flt.Value) }
	case domain.OpNe:
		return func(cell string) bool { return cell != "" && !cellEqual(cell, flt.Value) }
	case domain.OpLt:
		return orderPred(flt.Value, func(c int) bool { return c < 0 })
	case domain.OpLe:
		return orderPred(flt.Value, func(c int) bool { return c <= 0 })
	case domain.OpGt:
		return orderPred(flt.Value, func(c int) bool { return c > 0 })
	case domain.OpGe:
		return orderPred(flt.Value, func(c int) bool { return c >= 0 })
	case domain.OpContains:
		needle := stringify(flt.Value)
		return func(cell string) bool { return cell != "" && strings.Contains(cell, needle) }
	case domain.OpIn:
		members := toList(flt.Value)
		return func(cell string) bool {
			if cell == "" {
				return false
			}
			for _, m := range members {
				if cellEqual(cell, m) {
					return true
				}
			}
			return false
		}
	case domain.OpBetween:
		bounds := toList(flt.Value)
		if len(bounds) != 2 {
			return nil
		}
		lo, hi := bounds[0], bounds[1]
		return func(cell string) bool {
			if cell == "" {
				return false
			}
			cl, okLo := cellCompare(cell, lo)
			ch, okHi := cellCompare(cell, hi)
			return okLo && okHi && cl >= 0 && ch <= 0
		}
	default:
		// Unknown operator: treat like an unknown column and skip.
		return nil
	}
}

func orderPred(v any, accept func(int) bool) func(string) bool {
	return func(cell string) bool {
		if cell == "" {
			return false
		}
		c, ok := cellCompare(cell, v)
		return ok && accept(c)
	}
}

// cellCompare orders a cell against a filter value, numerically when both
// sides parse as numbers and lexically otherwise.
func cellCompare(cell string, v any) (int, bool) {
	if cv, ok := ParseFloat(cell); ok {
		if fv, ok := toFloat(v); ok {
			switch {
			case cv < fv:
				return -1, true
			case cv > fv:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	return strings.Compare(cell, stringify(v)), true
}

func cellEqual(cell string, v any) bool {
	if cv, ok := ParseFloat(cell); ok {
		if fv, ok := toFloat(v); ok {
			return cv == fv
		}
	}
	return cell == stringify(v)
}

// toList widens a filter value to a list: native lists pass through, strings
// holding a JSON array are decoded, anything else becomes a one-element list.
func toList(v any) []any {
	switch vv := v.(type) {
	case []any:
		return vv
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out
	case string:
		var decoded []any
		if err := json.Unmarshal([]byte(vv), &decoded); err == nil {
			return decoded
		}
	}
	return []any{v}
}

func toFloat(v any) (float64, bool) {
	switch vv := v.(type) {
	case float64:
		return vv, true
	case float32:
		return float64(vv), true
	case int:
		return float64(vv), true
	case int64:
		return float64(vv), true
	case json.Number:
		f, err := vv.Float64()
		return f, err == nil
	case string:
		return ParseFloat(vv)
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch vv := v.(type) {
	case string:
		return vv
	case float64:
		// Avoid 3 -> "3e+00" style surprises in string comparisons.
		if vv == float64(int64(vv)) {
			return fmt.Sprintf("%d", int64(vv))
		}
		return fmt.Sprintf("%g", vv)
	default:
		return fmt.Sprintf("%v", v)
	}
}
