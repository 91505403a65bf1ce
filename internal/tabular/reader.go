package tabular

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"

	"genelab/pkg/domain"
)

// geoComment prefixes metadata lines in GEO series matrix files and similar
// line-oriented scientific formats.
const geoComment = '!'

// ReadTable materializes the file at path into a Frame, dispatching on the
// file extension and compression suffix. Unreadable content surfaces as
// domain.ErrUnsupportedInput; a missing file as domain.ErrNotFound.
func ReadTable(path string) (*Frame, error) {
	return ReadTablePreview(path, 0)
}

// ReadTablePreview reads at most nrows data rows (0 means all). Previews
// share the full dispatch logic so interactive endpoints stay cheap on large
// uploads.
func ReadTablePreview(path string, nrows int) (*Frame, error) {
	ext, compressed := splitExt(path)
	switch ext {
	case ".txt", ".tsv":
		// Tab-separated with '!'-prefixed metadata skipped; some .txt
		// uploads are really comma-separated, so fall back once.
		frame, err := readDelimited(path, compressed, '\t', geoComment, nrows)
		if err == nil && frame.Width() > 1 {
			return frame, nil
		}
		if frame, err2 := readDelimited(path, compressed, ',', 0, nrows); err2 == nil {
			return frame, nil
		}
		if err != nil {
			return nil, err
		}
		return frame, nil
	case ".csv":
		return readDelimited(path, compressed, ',', 0, nrows)
	case ".parquet", ".pq":
		return readParquet(path, nrows)
	case ".xlsx", ".xls":
		return readExcel(path, nrows)
	default:
		frame, err := readDelimited(path, compressed, ',', 0, nrows)
		if err != nil {
			return nil, fmt.Errorf("%w: unrecognized extension %q", domain.ErrUnsupportedInput, ext)
		}
		return frame, nil
	}
}

// splitExt normalizes the extension, unwrapping a .gz suffix.
func splitExt(path string) (ext string, compressed bool) {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".gz") {
		return filepath.Ext(strings.TrimSuffix(name, ".gz")), true
	}
	return filepath.Ext(name), false
}

func openMaybeGzip(path string, compressed bool) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	if !compressed {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: bad gzip stream: %v", domain.ErrUnsupportedInput, err)
	}
	return struct {
		io.Reader
		io.Closer
	}{zr, f}, nil
}

func readDelimited(path string, compressed bool, sep rune, comment rune, nrows int) (*Frame, error) {
	rc, err := openMaybeGzip(path, compressed)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	r := csv.NewReader(rc)
	r.Comma = sep
	r.Comment = comment
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedInput, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for nrows <= 0 || len(rows) < nrows {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedInput, err)
		}
		rows = append(rows, rec)
	}
	return NewFrame(header, rows), nil
}

func readExcel(path string, nrows int) (*Frame, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedInput, err)
	}
	defer func() { _ = wb.Close() }()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", domain.ErrUnsupportedInput)
	}
	raw, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedInput, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: workbook sheet is empty", domain.ErrUnsupportedInput)
	}
	header := raw[0]
	rows := raw[1:]
	if nrows > 0 && len(rows) > nrows {
		rows = rows[:nrows]
	}
	return NewFrame(header, rows), nil
}

func readParquet(path string, nrows int) (*Frame, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedInput, err)
	}
	fields := pf.Schema().Fields()
	columns := make([]string, len(fields))
	for i, field := range fields {
		columns[i] = field.Name()
	}

	var out [][]string
	buf := make([]parquet.Row, 256)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				rec := make([]string, len(columns))
				for _, v := range row {
					ci := v.Column()
					if ci < 0 || ci >= len(rec) || v.IsNull() {
						continue
					}
					rec[ci] = parquetCell(v)
				}
				out = append(out, rec)
				if nrows > 0 && len(out) >= nrows {
					break
				}
			}
			if nrows > 0 && len(out) >= nrows {
				break
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedInput, err)
			}
		}
		_ = rows.Close()
		if nrows > 0 && len(out) >= nrows {
			break
		}
	}
	return NewFrame(columns, out), nil
}

func parquetCell(v parquet.Value) string {
	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'g', -1, 64)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
