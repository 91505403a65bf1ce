package tabular

import (
	"strconv"
	"testing"

	"genelab/pkg/domain"
)

func bigFrame(n int) *Frame {
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = []string{strconv.Itoa(i), strconv.Itoa(i * 2)}
	}
	return NewFrame([]string{"id", "v"}, rows)
}

func TestLazySampleDeterministic(t *testing.T) {
	f := bigFrame(1000)
	a, err := f.Lazy().Sample(100, 42).Collect()
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	b, err := f.Lazy().Sample(100, 42).Collect()
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if a.Height() != 100 || b.Height() != 100 {
		t.Fatalf("unexpected sample sizes %d %d", a.Height(), b.Height())
	}
	for i := range a.Rows {
		if a.Rows[i][0] != b.Rows[i][0] {
			t.Fatalf("sample not deterministic at row %d: %s vs %s", i, a.Rows[i][0], b.Rows[i][0])
		}
	}
	c, err := f.Lazy().Sample(100, 7).Collect()
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	same := true
	for i := range a.Rows {
		if a.Rows[i][0] != c.Rows[i][0] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("different seeds produced identical samples")
	}
}

func TestLazySamplePreservesOrder(t *testing.T) {
	f := bigFrame(500)
	got, err := f.Lazy().Sample(50, 1).Collect()
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	prev := -1
	for _, row := range got.Rows {
		id, _ := strconv.Atoi(row[0])
		if id <= prev {
			t.Fatalf("sampled rows out of source order: %d after %d", id, prev)
		}
		prev = id
	}
}

func TestLazySampleNoopWhenSmall(t *testing.T) {
	f := bigFrame(10)
	got, err := f.Lazy().Sample(100, 42).Collect()
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if got.Height() != 10 {
		t.Fatalf("sample should not grow the frame: %d", got.Height())
	}
}

func TestLazyFilterDoesNotMutateReceiver(t *testing.T) {
	f := bigFrame(10)
	base := f.Lazy()
	filtered := base.Filter(domain.Filter{Column: "v", Op: domain.OpGt, Value: 10})

	all, err := base.Collect()
	if err != nil {
		t.Fatalf("collect base: %v", err)
	}
	some, err := filtered.Collect()
	if err != nil {
		t.Fatalf("collect filtered: %v", err)
	}
	if all.Height() != 10 {
		t.Fatalf("base plan mutated: %d rows", all.Height())
	}
	if some.Height() >= all.Height() {
		t.Fatalf("filter had no effect: %d rows", some.Height())
	}
}
