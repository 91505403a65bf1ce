package analytics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"genelab/pkg/domain"
)

func writeDataset(t *testing.T, csv string) domain.Dataset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "matrix.csv")
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return domain.Dataset{ID: "ds-1", StoragePath: path}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(NewCache(0, 0), nil, nil)
}

func TestChartHistogram(t *testing.T) {
	ds := writeDataset(t, "gene,expr\ng1,1\ng2,2\ng3,3\ng4,4\ng5,na\n")
	eng := newTestEngine(t)

	res, err := eng.Chart(context.Background(), ds, domain.ChartRequest{Kind: domain.ChartHist, X: "expr", Bins: 5})
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if res.Kind != domain.ChartHist {
		t.Fatalf("kind = %q", res.Kind)
	}
	if len(res.Edges) != 6 || len(res.Counts) != 5 {
		t.Fatalf("edges/counts = %d/%d", len(res.Edges), len(res.Counts))
	}
	total := 0
	for _, c := range res.Counts {
		total += c
	}
	if total != 4 {
		t.Fatalf("counts sum to %d, want 4 (missing cell dropped)", total)
	}
	if res.Edges[0] != 1 || res.Edges[len(res.Edges)-1] != 4 {
		t.Fatalf("edge range [%v, %v]", res.Edges[0], res.Edges[len(res.Edges)-1])
	}
}

func TestChartHistogramBinsClamped(t *testing.T) {
	ds := writeDataset(t, "v\n1\n2\n3\n4\n5\n6\n")
	eng := newTestEngine(t)

	res, err := eng.Chart(context.Background(), ds, domain.ChartRequest{Kind: domain.ChartHist, X: "v", Bins: 1000})
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if got := len(res.Counts); got != maxBins {
		t.Fatalf("bins = %d, want clamp to %d", got, maxBins)
	}

	res, err = eng.Chart(context.Background(), ds, domain.ChartRequest{Kind: domain.ChartHist, X: "v", Bins: 1})
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if got := len(res.Counts); got != minBins {
		t.Fatalf("bins = %d, want clamp to %d", got, minBins)
	}
}

func TestChartHistogramDegenerate(t *testing.T) {
	ds := writeDataset(t, "v\n7\n7\n7\n")
	eng := newTestEngine(t)

	res, err := eng.Chart(context.Background(), ds, domain.ChartRequest{Kind: domain.ChartHist, X: "v"})
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if len(res.Edges) != 2 || res.Edges[0] != 7 || res.Edges[1] != 7 {
		t.Fatalf("edges = %v", res.Edges)
	}
	if len(res.Counts) != 1 || res.Counts[0] != 0 {
		t.Fatalf("counts = %v", res.Counts)
	}
	if res.N != 3 {
		t.Fatalf("n = %d", res.N)
	}
}

func TestChartBarAggregations(t *testing.T) {
	ds := writeDataset(t, "group,expr\na,1\na,3\nb,10\nb,na\n,5\n")
	eng := newTestEngine(t)

	res, err := eng.Chart(context.Background(), ds, domain.ChartRequest{Kind: domain.ChartBar, X: "group", Y: "expr", Agg: domain.AggSum})
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	// b=10 sorts before a=4; the empty category is skipped.
	if len(res.Labels) != 2 || res.Labels[0] != "b" || res.Labels[1] != "a" {
		t.Fatalf("labels = %v", res.Labels)
	}
	if res.Values[0] != 10 || res.Values[1] != 4 {
		t.Fatalf("values = %v", res.Values)
	}

	res, err = eng.Chart(context.Background(), ds, domain.ChartRequest{Kind: domain.ChartBar, X: "group", Y: "expr", Agg: domain.AggMean})
	if err != nil {
		t.Fatalf("mean: %v", err)
	}
	if res.Values[0] != 10 || res.Values[1] != 2 {
		t.Fatalf("mean values = %v", res.Values)
	}

	res, err = eng.Chart(context.Background(), ds, domain.ChartRequest{Kind: domain.ChartBar, X: "group"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	// Count ignores the value column entirely, so b keeps its missing row.
	want := map[string]float64{"a": 2, "b": 2}
	for i, label := range res.Labels {
		if res.Values[i] != want[label] {
			t.Fatalf("count[%s] = %v, want %v", label, res.Values[i], want[label])
		}
	}
}

func TestChartLineMeanPerAxisValue(t *testing.T) {
	ds := writeDataset(t, "t,v\n2,10\n1,1\n1,3\n2,20\nx,99\n")
	eng := newTestEngine(t)

	res, err := eng.Chart(context.Background(), ds, domain.ChartRequest{Kind: domain.ChartLine, X: "t", Y: "v"})
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if len(res.X) != 2 || res.X[0] != 1 || res.X[1] != 2 {
		t.Fatalf("x = %v", res.X)
	}
	if res.Y[0] != 2 || res.Y[1] != 15 {
		t.Fatalf("y = %v", res.Y)
	}
}

func TestChartScatterDropsUnparseable(t *testing.T) {
	ds := writeDataset(t, "a,b\n1,2\n3,na\nfoo,4\n5,6\n")
	eng := newTestEngine(t)

	res, err := eng.Chart(context.Background(), ds, domain.ChartRequest{Kind: domain.ChartScatter, X: "a", Y: "b"})
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if len(res.Points) != 2 {
		t.Fatalf("points = %v", res.Points)
	}
	if res.Points[0] != [2]float64{1, 2} || res.Points[1] != [2]float64{5, 6} {
		t.Fatalf("points = %v", res.Points)
	}
}

func TestChartUnknownKind(t *testing.T) {
	ds := writeDataset(t, "a\n1\n")
	eng := newTestEngine(t)

	_, err := eng.Chart(context.Background(), ds, domain.ChartRequest{Kind: "pie", X: "a"})
	if !errors.Is(err, domain.ErrUnknownChartKind) {
		t.Fatalf("err = %v, want ErrUnknownChartKind", err)
	}
}

func TestChartMissingColumn(t *testing.T) {
	ds := writeDataset(t, "a\n1\n")
	eng := newTestEngine(t)

	if _, err := eng.Chart(context.Background(), ds, domain.ChartRequest{Kind: domain.ChartHist, X: "nope"}); err == nil {
		t.Fatal("expected error for unknown column")
	}
}

func TestChartFilterApplied(t *testing.T) {
	ds := writeDataset(t, "group,v\na,1\na,2\nb,100\n")
	eng := newTestEngine(t)

	req := domain.ChartRequest{
		Kind:    domain.ChartHist,
		X:       "v",
		Filters: []domain.Filter{{Column: "group", Op: domain.OpEq, Value: "a"}},
	}
	res, err := eng.Chart(context.Background(), ds, req)
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if res.N != 2 {
		t.Fatalf("n = %d, want 2 filtered rows", res.N)
	}
	if res.Edges[len(res.Edges)-1] != 2 {
		t.Fatalf("max edge = %v, want 2", res.Edges[len(res.Edges)-1])
	}
}

func TestChartServedFromCache(t *testing.T) {
	ds := writeDataset(t, "v\n1\n2\n3\n")
	eng := newTestEngine(t)
	req := domain.ChartRequest{Kind: domain.ChartHist, X: "v"}

	first, err := eng.Chart(context.Background(), ds, req)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	// Remove the file; a cache hit must not touch the matrix again.
	if err := os.Remove(ds.StoragePath); err != nil {
		t.Fatalf("remove: %v", err)
	}
	second, err := eng.Chart(context.Background(), ds, req)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.N != first.N || len(second.Counts) != len(first.Counts) {
		t.Fatalf("cached result differs: %+v vs %+v", second, first)
	}
}

func TestChartNilCache(t *testing.T) {
	ds := writeDataset(t, "v\n1\n2\n")
	eng := NewEngine(nil, nil, nil)

	if _, err := eng.Chart(context.Background(), ds, domain.ChartRequest{Kind: domain.ChartHist, X: "v"}); err != nil {
		t.Fatalf("chart without cache: %v", err)
	}
}
