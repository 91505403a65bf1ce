package analytics

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"genelab/pkg/domain"
)

func TestFingerprintTracksVersionMetadata(t *testing.T) {
	base := domain.Dataset{ID: "ds-1", UpdatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), NRows: 100}

	fp := Fingerprint(base)
	if fp != Fingerprint(base) {
		t.Fatal("fingerprint not stable")
	}

	bumped := base
	bumped.UpdatedAt = bumped.UpdatedAt.Add(time.Second)
	if Fingerprint(bumped) == fp {
		t.Fatal("fingerprint unchanged after updated_at bump")
	}

	grown := base
	grown.NRows = 101
	if Fingerprint(grown) == fp {
		t.Fatal("fingerprint unchanged after row count change")
	}

	other := base
	other.ID = "ds-2"
	if Fingerprint(other) == fp {
		t.Fatal("fingerprint collides across datasets")
	}
}

func TestFileSignatureMissingFile(t *testing.T) {
	_, err := FileSignature("/nonexistent/matrix.csv")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCacheKeyStability(t *testing.T) {
	a := CacheKey("ds-1", "chart", nil, map[string]any{"x": "expr", "bins": 10})
	b := CacheKey("ds-1", "chart", nil, map[string]any{"bins": 10, "x": "expr"})
	if a != b {
		t.Fatal("equal params must produce equal keys")
	}
	if CacheKey("ds-1", "chart", nil, map[string]any{"bins": 11}) == a {
		t.Fatal("different params must produce different keys")
	}
	if CacheKey("ds-1", "corr", nil, map[string]any{"x": "expr", "bins": 10}) == a {
		t.Fatal("kind must partition the key space")
	}
}

func TestPreviewRowClamp(t *testing.T) {
	csv := "v\n"
	for i := 0; i < 300; i++ {
		csv += "1\n"
	}
	ds := writeDataset(t, csv)
	eng := newTestEngine(t)

	res, err := eng.Preview(context.Background(), ds, 0)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(res.Rows) != defaultPreviewRows {
		t.Fatalf("rows = %d, want default %d", len(res.Rows), defaultPreviewRows)
	}

	res, err = eng.Preview(context.Background(), ds, 1000)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(res.Rows) != maxPreviewRows {
		t.Fatalf("rows = %d, want cap %d", len(res.Rows), maxPreviewRows)
	}
}

func TestPreviewCacheInvalidatedByRewrite(t *testing.T) {
	ds := writeDataset(t, "v\n1\n2\n")
	eng := newTestEngine(t)

	res, err := eng.Preview(context.Background(), ds, 10)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d", len(res.Rows))
	}

	// Rewrite the matrix with a different size; the stat signature changes
	// so the stale entry must not be served.
	if err := os.WriteFile(ds.StoragePath, []byte("v\n1\n2\n3\n4\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	res, err = eng.Preview(context.Background(), ds, 10)
	if err != nil {
		t.Fatalf("preview after rewrite: %v", err)
	}
	if len(res.Rows) != 4 {
		t.Fatalf("rows = %d, want rewritten content", len(res.Rows))
	}
}

func TestSchemaCachedByFileSignature(t *testing.T) {
	ds := writeDataset(t, "gene_id,group,expr\ng1,a,1.5\ng2,b,2.5\n")
	eng := newTestEngine(t)

	schema, err := eng.Schema(context.Background(), ds)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if len(schema.Columns) != 3 {
		t.Fatalf("columns = %d", len(schema.Columns))
	}
	again, err := eng.Schema(context.Background(), ds)
	if err != nil {
		t.Fatalf("schema (cached): %v", err)
	}
	if len(again.Columns) != len(schema.Columns) {
		t.Fatalf("cached schema differs")
	}
}

func TestCacheEviction(t *testing.T) {
	c := NewCache(2, time.Minute)
	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("c", []byte("3"))
	if c.Len() != 2 {
		t.Fatalf("len = %d, want capacity bound 2", c.Len())
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("newest entry evicted")
	}
}

func TestCacheJSONRoundTrip(t *testing.T) {
	c := NewCache(0, 0)
	type payload struct {
		N int `json:"n"`
	}
	c.SetJSON("k", payload{N: 7})
	var out payload
	if !c.GetJSON("k", &out) || out.N != 7 {
		t.Fatalf("got %+v", out)
	}
	if c.GetJSON("missing", &out) {
		t.Fatal("hit on missing key")
	}
}
