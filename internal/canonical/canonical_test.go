package canonical

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"genelab/internal/tabular"
)

func writeCSVFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func canonicalize(t *testing.T, content string) (*tabular.Frame, Result) {
	t.Helper()
	raw := writeCSVFile(t, content)
	dest := t.TempDir()
	res, err := Canonicalize(raw, dest)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	frame, err := tabular.ReadTable(res.Path)
	if err != nil {
		t.Fatalf("read back %s: %v", res.Path, err)
	}
	return frame, res
}

func TestCanonicalizeWideMatrix(t *testing.T) {
	frame, res := canonicalize(t, "probe,s1,s2\ng1,1.5,2\ng2,3,4\n")
	if frame.Columns[0] != IdentifierColumn {
		t.Fatalf("first column %q, want %q", frame.Columns[0], IdentifierColumn)
	}
	if res.NRows != 2 || res.NCols != 2 {
		t.Fatalf("unexpected shape %+v", res)
	}
	v, ok := tabular.ParseFloat(frame.Rows[0][1])
	if !ok || v != 1.5 {
		t.Fatalf("cell not numeric: %q", frame.Rows[0][1])
	}
}

func TestCanonicalizeLongPivotMeanCollapse(t *testing.T) {
	// duplicate (g1, s1) pair collapses to mean(1, 3) = 2
	frame, res := canonicalize(t, strings.Join([]string{
		"gene_id,sample_id,value",
		"g1,s1,1",
		"g1,s1,3",
		"g1,s2,5",
		"g2,s1,7",
		"",
	}, "\n"))
	if res.NRows != 2 || res.NCols != 2 {
		t.Fatalf("unexpected shape %+v", res)
	}
	idx := frame.Index("s1")
	if idx < 0 {
		t.Fatalf("missing sample column in %v", frame.Columns)
	}
	if v, _ := tabular.ParseFloat(frame.Rows[0][idx]); v != 2 {
		t.Fatalf("duplicate pair not mean-collapsed: %q", frame.Rows[0][idx])
	}
}

func TestCanonicalizeLongAliasColumns(t *testing.T) {
	// GEO-style ID_REF/EXPRESSION_VALUE aliases, mixed case
	frame, _ := canonicalize(t, "ID_REF,Sample_ID,Expression_Value\np1,sA,1\np2,sA,2\n")
	if frame.Columns[0] != IdentifierColumn {
		t.Fatalf("identifier not normalized: %v", frame.Columns)
	}
	if frame.Index("sA") < 0 {
		t.Fatalf("sample column missing: %v", frame.Columns)
	}
}

func TestCanonicalizeDropsAllMissingColumns(t *testing.T) {
	frame, res := canonicalize(t, "probe,s1,notes\ng1,1,hello\ng2,2,world\n")
	if frame.Index("notes") >= 0 {
		t.Fatalf("non-numeric column survived: %v", frame.Columns)
	}
	if res.NCols != 1 {
		t.Fatalf("unexpected n_cols %d", res.NCols)
	}
}

func TestCanonicalizeDropsValuelessRows(t *testing.T) {
	frame, _ := canonicalize(t, "probe,s1,s2\ng1,1,2\ng2,na,\ng3,3,4\n")
	if frame.Height() != 2 {
		t.Fatalf("valueless row survived: %d rows", frame.Height())
	}
	for _, row := range frame.Rows {
		if row[0] == "g2" {
			t.Fatalf("g2 should have been dropped")
		}
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	frame1, res1 := canonicalize(t, "probe,s1,s2\ng1,1.5,2\ng2,3,na\n")

	dest := t.TempDir()
	res2, err := Canonicalize(res1.Path, dest)
	if err != nil {
		t.Fatalf("second canonicalize: %v", err)
	}
	frame2, err := tabular.ReadTable(res2.Path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if res2.NRows != res1.NRows || res2.NCols != res1.NCols {
		t.Fatalf("shape drifted: %+v vs %+v", res2, res1)
	}
	if frame2.Width() != frame1.Width() || frame2.Height() != frame1.Height() {
		t.Fatalf("frame drifted: %dx%d vs %dx%d", frame2.Height(), frame2.Width(), frame1.Height(), frame1.Width())
	}
	for r := range frame1.Rows {
		for c := range frame1.Rows[r] {
			a, aok := tabular.ParseFloat(frame1.Rows[r][c])
			b, bok := tabular.ParseFloat(frame2.Rows[r][c])
			if aok != bok || (aok && a != b) {
				t.Fatalf("cell (%d,%d) drifted: %q vs %q", r, c, frame1.Rows[r][c], frame2.Rows[r][c])
			}
		}
	}
}

func TestCanonicalizeEmptyTableRejected(t *testing.T) {
	raw := writeCSVFile(t, "")
	if _, err := Canonicalize(raw, t.TempDir()); err == nil {
		t.Fatalf("expected error for empty input")
	}
}
