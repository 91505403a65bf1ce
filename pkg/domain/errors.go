package domain

import "errors"

// Sentinel errors forming the boundary taxonomy. Input problems and missing
// resources are surfaced distinctly so callers can map them to different
// responses without string matching.
var (
	// ErrUnsupportedInput marks an upload that could not be parsed as any
	// supported tabular format, or a malformed/corrupt file.
	ErrUnsupportedInput = errors.New("unsupported or corrupt input")
	// ErrNotFound marks a dataset or run record, or its backing file,
	// missing at read time.
	ErrNotFound = errors.New("not found")
	// ErrUnknownRecipe marks a recipe key outside the closed recipe set.
	ErrUnknownRecipe = errors.New("unknown recipe")
	// ErrUnknownChartKind marks a chart kind outside the closed chart set.
	ErrUnknownChartKind = errors.New("unknown chart kind")
)
