package canonical

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"genelab/internal/tabular"
)

// writeParquet persists the matrix with the identifier as a UTF8 column and
// every data column as an optional double.
func writeParquet(f *tabular.Frame, path string) (err error) {
	group := parquet.Group{IdentifierColumn: parquet.String()}
	for _, c := range f.Columns[1:] {
		group[c] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
	}
	schema := parquet.NewSchema("canonical_matrix", group)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".matrix-*.parquet")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := parquet.NewGenericWriter[map[string]any](tmp, schema)
	rows := make([]map[string]any, 0, f.Height())
	for _, row := range f.Rows {
		rec := make(map[string]any, len(f.Columns))
		rec[IdentifierColumn] = row[0]
		for i, c := range f.Columns[1:] {
			if v, ok := tabular.ParseFloat(row[i+1]); ok {
				rec[c] = v
			} else {
				rec[c] = nil
			}
		}
		rows = append(rows, rec)
	}
	if _, err = w.Write(rows); err != nil {
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// writeCSV is the delimited fallback when the columnar write fails.
func writeCSV(f *tabular.Frame, path string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".matrix-*.csv")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err = w.Write(f.Columns); err != nil {
		return err
	}
	for _, row := range f.Rows {
		if err = w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
