package tabular

import (
	"math/rand"
	"sort"

	"genelab/pkg/domain"
)

// LazyFrame is an unevaluated plan over a table: a scan source plus pending
// filter and sample steps. Steps accumulate without touching the file until
// Collect materializes the result.
type LazyFrame struct {
	path    string
	frame   *Frame
	filters []domain.Filter
	sampleN int
	seed    int64
}

// Scan plans a read of the file at path.
func Scan(path string) *LazyFrame {
	return &LazyFrame{path: path}
}

// Lazy wraps an already materialized frame in a plan.
func (f *Frame) Lazy() *LazyFrame {
	return &LazyFrame{frame: f}
}

// Filter appends DSL filters to the plan. The receiver is unchanged.
func (lf *LazyFrame) Filter(filters ...domain.Filter) *LazyFrame {
	next := *lf
	next.filters = append(append([]domain.Filter(nil), lf.filters...), filters...)
	return &next
}

// Sample plans a deterministic random subsample of at most n rows using the
// given seed. n <= 0 disables sampling.
func (lf *LazyFrame) Sample(n int, seed int64) *LazyFrame {
	next := *lf
	next.sampleN = n
	next.seed = seed
	return &next
}

// Collect executes the plan: scan, filters, then sampling.
func (lf *LazyFrame) Collect() (*Frame, error) {
	frame := lf.frame
	if frame == nil {
		read, err := ReadTable(lf.path)
		if err != nil {
			return nil, err
		}
		frame = read
	}
	frame = ApplyFilters(frame, lf.filters)
	if lf.sampleN > 0 && frame.Height() > lf.sampleN {
		frame = sampleRows(frame, lf.sampleN, lf.seed)
	}
	return frame, nil
}

// sampleRows picks n rows without replacement, preserving source order so
// repeated requests with the same seed render identically.
func sampleRows(f *Frame, n int, seed int64) *Frame {
	rng := rand.New(rand.NewSource(seed))
	picked := rng.Perm(f.Height())[:n]
	sort.Ints(picked)
	rows := make([][]string, n)
	for i, r := range picked {
		rows[i] = f.Rows[r]
	}
	return &Frame{Columns: f.Columns, Rows: rows}
}
