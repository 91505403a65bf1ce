// Package tabular implements the table reader and filter engine: parsing raw
// uploads into an in-memory Frame, lazy scan plans over files on disk, and
// the closed filter DSL applied ahead of every analytics computation.
package tabular

import (
	"strconv"
	"strings"
	"time"
)

// Frame is a fully materialized table. Cells are held in string form; the
// empty string encodes a missing value. Numeric and temporal interpretation
// happens at the point of use.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// NewFrame constructs a frame, padding or truncating every row to the
// header width.
func NewFrame(columns []string, rows [][]string) *Frame {
	width := len(columns)
	for i, row := range rows {
		switch {
		case len(row) < width:
			padded := make([]string, width)
			copy(padded, row)
			rows[i] = padded
		case len(row) > width:
			rows[i] = row[:width]
		}
	}
	return &Frame{Columns: columns, Rows: rows}
}

// Width returns the number of columns.
func (f *Frame) Width() int { return len(f.Columns) }

// Height returns the number of rows.
func (f *Frame) Height() int { return len(f.Rows) }

// Index returns the position of the named column, or -1.
func (f *Frame) Index(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the named column's cells, or false when absent.
func (f *Frame) Column(name string) ([]string, bool) {
	i := f.Index(name)
	if i < 0 {
		return nil, false
	}
	out := make([]string, len(f.Rows))
	for r, row := range f.Rows {
		out[r] = row[i]
	}
	return out, true
}

// Floats parses the named column as float64. The mask reports which cells
// held a parseable, non-missing value.
func (f *Frame) Floats(name string) ([]float64, []bool, bool) {
	i := f.Index(name)
	if i < 0 {
		return nil, nil, false
	}
	vals := make([]float64, len(f.Rows))
	ok := make([]bool, len(f.Rows))
	for r, row := range f.Rows {
		vals[r], ok[r] = ParseFloat(row[i])
	}
	return vals, ok, true
}

// Select returns a new frame restricted to the named columns, skipping names
// that do not exist. Cell slices are copied.
func (f *Frame) Select(names []string) *Frame {
	var idx []int
	var cols []string
	for _, name := range names {
		if i := f.Index(name); i >= 0 {
			idx = append(idx, i)
			cols = append(cols, name)
		}
	}
	rows := make([][]string, len(f.Rows))
	for r, row := range f.Rows {
		rec := make([]string, len(idx))
		for j, i := range idx {
			rec[j] = row[i]
		}
		rows[r] = rec
	}
	return &Frame{Columns: cols, Rows: rows}
}

// ParseFloat interprets a cell as a floating point number. Missing cells and
// NA markers do not parse.
func ParseFloat(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, false
	}
	switch strings.ToLower(s) {
	case "na", "nan", "null", "none":
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// ParseTime interprets a cell as a timestamp using a small set of common
// layouts.
func ParseTime(cell string) (time.Time, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AxisValue interprets a cell as an orderable axis position: a timestamp if
// one parses (as epoch seconds), otherwise a float.
func AxisValue(cell string) (float64, bool) {
	if v, ok := ParseFloat(cell); ok {
		return v, true
	}
	if t, ok := ParseTime(cell); ok {
		return float64(t.Unix()), true
	}
	return 0, false
}
