// Package canonical implements the one-shot upload-time transform that turns
// a heterogeneous raw table into the canonical wide numeric matrix every
// downstream analytics component consumes.
package canonical

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"genelab/internal/tabular"
	"genelab/pkg/domain"
)

// IdentifierColumn is the single row-key column of every canonical matrix.
const IdentifierColumn = "gene_id"

// Result reports where the canonical matrix landed and its recorded shape.
// NCols excludes the identifier column.
type Result struct {
	Path  string
	NRows int
	NCols int
}

// Canonicalize reads the raw upload at rawPath, normalizes it into a wide
// numeric matrix, and persists it under destDir as matrix.parquet with a
// matrix.csv fallback. Writes go through a temp file and rename so no
// partially written matrix is ever visible at the final location.
func Canonicalize(rawPath, destDir string) (Result, error) {
	frame, err := tabular.ReadTable(rawPath)
	if err != nil {
		return Result{}, err
	}
	if frame.Width() == 0 {
		return Result{}, fmt.Errorf("%w: no columns", domain.ErrUnsupportedInput)
	}

	if keys, ok := longLayout(frame); ok {
		frame = pivotWide(frame, keys)
	}
	frame = coerceNumeric(frame)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Result{}, err
	}
	path, err := persist(frame, destDir)
	if err != nil {
		return Result{}, err
	}
	nCols := frame.Width() - 1
	if nCols < 0 {
		nCols = 0
	}
	return Result{Path: path, NRows: frame.Height(), NCols: nCols}, nil
}

// longKeys names the identifier, sample, and value columns of a long (tidy)
// layout.
type longKeys struct {
	id, sample, value string
}

// longLayout classifies the frame as long when its column set contains one
// of the recognized {identifier, sample, value} triples, case-insensitively.
func longLayout(f *tabular.Frame) (longKeys, bool) {
	byLower := make(map[string]string, f.Width())
	for _, c := range f.Columns {
		byLower[strings.ToLower(c)] = c
	}
	sample, ok := byLower["sample_id"]
	if !ok {
		return longKeys{}, false
	}
	if id, ok := byLower["gene_id"]; ok {
		if value, ok := byLower["value"]; ok {
			return longKeys{id: id, sample: sample, value: value}, true
		}
	}
	if id, ok := byLower["id_ref"]; ok {
		if value, ok := byLower["expression_value"]; ok {
			return longKeys{id: id, sample: sample, value: value}, true
		}
	}
	return longKeys{}, false
}

// pivotWide reshapes a long frame so each distinct identifier becomes one
// row and each distinct sample one column. Duplicate (identifier, sample)
// pairs collapse to their mean; the collapse is silent and lossy by design.
func pivotWide(f *tabular.Frame, keys longKeys) *tabular.Frame {
	idIdx := f.Index(keys.id)
	sampleIdx := f.Index(keys.sample)
	valueIdx := f.Index(keys.value)

	type acc struct {
		sum float64
		n   int
	}
	cells := make(map[string]map[string]*acc)
	var genes []string
	sampleSet := make(map[string]struct{})
	for _, row := range f.Rows {
		gene, sample := row[idIdx], row[sampleIdx]
		if gene == "" || sample == "" {
			continue
		}
		sampleSet[sample] = struct{}{}
		bySample, ok := cells[gene]
		if !ok {
			bySample = make(map[string]*acc)
			cells[gene] = bySample
			genes = append(genes, gene)
		}
		if v, ok := tabular.ParseFloat(row[valueIdx]); ok {
			a := bySample[sample]
			if a == nil {
				a = &acc{}
				bySample[sample] = a
			}
			a.sum += v
			a.n++
		} else if bySample[sample] == nil {
			bySample[sample] = &acc{}
		}
	}

	samples := make([]string, 0, len(sampleSet))
	for s := range sampleSet {
		samples = append(samples, s)
	}
	sort.Strings(samples)
	sort.Strings(genes)

	columns := append([]string{IdentifierColumn}, samples...)
	rows := make([][]string, 0, len(genes))
	for _, gene := range genes {
		rec := make([]string, len(columns))
		rec[0] = gene
		for i, sample := range samples {
			if a := cells[gene][sample]; a != nil && a.n > 0 {
				rec[i+1] = formatFloat(a.sum / float64(a.n))
			}
		}
		rows = append(rows, rec)
	}
	return tabular.NewFrame(columns, rows)
}

// coerceNumeric renames the first column to the identifier, parses every
// other column as float, drops columns that end up entirely missing, then
// drops rows with no value in any surviving data column.
func coerceNumeric(f *tabular.Frame) *tabular.Frame {
	columns := append([]string(nil), f.Columns...)
	if len(columns) > 0 {
		columns[0] = IdentifierColumn
	}

	height := f.Height()
	keepCol := make([]bool, len(columns))
	keepCol[0] = true
	parsed := make([][]string, height)
	for r := range parsed {
		parsed[r] = make([]string, len(columns))
		parsed[r][0] = f.Rows[r][0]
	}
	dataCols := 0
	for c := 1; c < len(columns); c++ {
		any := false
		for r := 0; r < height; r++ {
			if v, ok := tabular.ParseFloat(f.Rows[r][c]); ok {
				parsed[r][c] = formatFloat(v)
				any = true
			}
		}
		keepCol[c] = any
		if any {
			dataCols++
		}
	}

	outCols := make([]string, 0, dataCols+1)
	for c, keep := range keepCol {
		if keep {
			outCols = append(outCols, columns[c])
		}
	}
	var rows [][]string
	for r := 0; r < height; r++ {
		rec := make([]string, 0, len(outCols))
		nonMissing := false
		for c, keep := range keepCol {
			if !keep {
				continue
			}
			rec = append(rec, parsed[r][c])
			if c > 0 && parsed[r][c] != "" {
				nonMissing = true
			}
		}
		// Rows go only when at least one data column exists to judge them by.
		if dataCols == 0 || nonMissing {
			rows = append(rows, rec)
		}
	}
	return tabular.NewFrame(outCols, rows)
}

// persist writes the matrix as parquet, falling back to CSV when the
// columnar write fails. Both paths stage through a temp file in the
// destination directory and rename into place.
func persist(f *tabular.Frame, destDir string) (string, error) {
	parquetPath := filepath.Join(destDir, "matrix.parquet")
	if err := writeParquet(f, parquetPath); err == nil {
		return parquetPath, nil
	}
	csvPath := filepath.Join(destDir, "matrix.csv")
	if err := writeCSV(f, csvPath); err != nil {
		return "", err
	}
	return csvPath, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
