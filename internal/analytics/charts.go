package analytics

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"genelab/internal/observability"
	"genelab/internal/tabular"
	"genelab/pkg/domain"
)

// Chart binning bounds and series caps.
const (
	minBins         = 5
	maxBins         = 50
	defaultBins     = 20
	maxBarGroups    = 50
	maxLinePoints   = 2000
	maxScatterPts   = 5000
	scatterSeed     = 42
	chartSampleSeed = 7
)

// Engine answers interactive chart and statistics requests against canonical
// matrices, with result caching. Construct once per process and share.
type Engine struct {
	cache   *Cache
	log     observability.Logger
	metrics *observability.Metrics
}

// NewEngine constructs a query engine. A nil logger defaults to a nop.
func NewEngine(cache *Cache, log observability.Logger, metrics *observability.Metrics) *Engine {
	if log == nil {
		log = observability.NopLogger{}
	}
	return &Engine{cache: cache, log: log, metrics: metrics}
}

// ChartResult is the wire payload for all four chart kinds; only the fields
// for the requested kind are populated.
type ChartResult struct {
	Kind   domain.ChartKind `json:"kind"`
	Edges  []float64        `json:"edges,omitempty"`
	Counts []int            `json:"counts,omitempty"`
	Labels []string         `json:"labels,omitempty"`
	Values []float64        `json:"values,omitempty"`
	X      []float64        `json:"x,omitempty"`
	Y      []float64        `json:"y,omitempty"`
	Points [][2]float64     `json:"points,omitempty"`
	N      int              `json:"n"`
}

// Chart computes one interactive chart. Results are cached by dataset id and
// the full request payload. The file fingerprint is not part of the key, so
// a rewritten matrix can serve stale charts for up to the cache TTL.
func (e *Engine) Chart(ctx context.Context, ds domain.Dataset, req domain.ChartRequest) (ChartResult, error) {
	key := CacheKey(ds.ID, "chart", nil, req)
	var cached ChartResult
	if e.cache != nil && e.cache.GetJSON(key, &cached) {
		e.metrics.CacheHit(string(req.Kind))
		return cached, nil
	}
	e.metrics.CacheMiss(string(req.Kind))

	start := time.Now()
	plan := tabular.Scan(ds.StoragePath).Filter(req.Filters...)
	if req.Sample > 0 {
		plan = plan.Sample(req.Sample, chartSampleSeed)
	}
	frame, err := plan.Collect()
	if err != nil {
		return ChartResult{}, err
	}

	var result ChartResult
	switch req.Kind {
	case domain.ChartHist:
		result, err = histogram(frame, req.X, req.Bins)
	case domain.ChartBar:
		result, err = barChart(frame, req.X, req.Y, req.Agg)
	case domain.ChartLine:
		result, err = lineChart(frame, req.X, req.Y)
	case domain.ChartScatter:
		result, err = scatterChart(frame, req.X, req.Y)
	default:
		return ChartResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownChartKind, req.Kind)
	}
	if err != nil {
		return ChartResult{}, err
	}
	result.Kind = req.Kind
	e.metrics.ObserveQuery(string(req.Kind), time.Since(start))
	if e.cache != nil {
		e.cache.SetJSON(key, result)
	}
	e.log.Debug("chart computed", "dataset", ds.ID, "kind", req.Kind, "rows", frame.Height())
	return result, nil
}

func histogram(f *tabular.Frame, col string, bins int) (ChartResult, error) {
	vals, ok, found := f.Floats(col)
	if !found {
		return ChartResult{}, fmt.Errorf("histogram requires a numeric column: %q not in dataset", col)
	}
	var xs []float64
	for i, v := range vals {
		if ok[i] {
			xs = append(xs, v)
		}
	}

	if bins <= 0 {
		bins = defaultBins
	}
	if bins < minBins {
		bins = minBins
	}
	if bins > maxBins {
		bins = maxBins
	}

	var lo, hi float64
	if len(xs) > 0 {
		lo, hi = xs[0], xs[0]
		for _, v := range xs[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if lo == hi {
		// Degenerate or empty range: one zero-count bin spanning [min,max].
		return ChartResult{Edges: []float64{lo, hi}, Counts: []int{0}, N: len(xs)}, nil
	}

	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + (hi-lo)*float64(i)/float64(bins)
	}
	counts := make([]int, bins)
	for _, v := range xs {
		idx := int(math.Floor((v - lo) / (hi - lo) * float64(bins)))
		if idx < 0 {
			idx = 0
		}
		if idx > bins-1 {
			idx = bins - 1
		}
		counts[idx]++
	}
	return ChartResult{Edges: edges, Counts: counts, N: len(xs)}, nil
}

func barChart(f *tabular.Frame, catCol, valCol string, agg domain.AggKind) (ChartResult, error) {
	cats, found := f.Column(catCol)
	if !found {
		return ChartResult{}, fmt.Errorf("bar chart requires a categorical column: %q not in dataset", catCol)
	}
	if agg == "" {
		agg = domain.AggCount
	}
	var vals []float64
	var valOK []bool
	if valCol != "" {
		var found bool
		vals, valOK, found = f.Floats(valCol)
		if !found {
			return ChartResult{}, fmt.Errorf("bar chart value column %q not in dataset", valCol)
		}
	} else {
		agg = domain.AggCount
	}

	type group struct {
		sum float64
		n   int
	}
	groups := make(map[string]*group)
	var order []string
	for i, cat := range cats {
		if cat == "" {
			continue
		}
		g, ok := groups[cat]
		if !ok {
			g = &group{}
			groups[cat] = g
			order = append(order, cat)
		}
		if valCol != "" {
			if valOK[i] {
				g.sum += vals[i]
				g.n++
			}
		} else {
			g.n++
		}
	}

	type entry struct {
		label string
		value float64
	}
	entries := make([]entry, 0, len(order))
	for _, label := range order {
		g := groups[label]
		var v float64
		switch agg {
		case domain.AggSum:
			v = g.sum
		case domain.AggMean:
			if g.n > 0 {
				v = g.sum / float64(g.n)
			}
		case domain.AggCount:
			v = float64(g.n)
		default:
			return ChartResult{}, fmt.Errorf("unsupported aggregation %q", agg)
		}
		entries = append(entries, entry{label: label, value: v})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].value > entries[j].value })
	if len(entries) > maxBarGroups {
		entries = entries[:maxBarGroups]
	}

	out := ChartResult{N: len(entries)}
	for _, e := range entries {
		out.Labels = append(out.Labels, e.label)
		out.Values = append(out.Values, e.value)
	}
	return out, nil
}

func lineChart(f *tabular.Frame, axisCol, valCol string) (ChartResult, error) {
	axisCells, found := f.Column(axisCol)
	if !found {
		return ChartResult{}, fmt.Errorf("line chart axis column %q not in dataset", axisCol)
	}
	vals, valOK, found := f.Floats(valCol)
	if !found {
		return ChartResult{}, fmt.Errorf("line chart value column %q not in dataset", valCol)
	}

	type group struct {
		sum float64
		n   int
	}
	groups := make(map[float64]*group)
	for i, cell := range axisCells {
		axis, ok := tabular.AxisValue(cell)
		if !ok || !valOK[i] {
			continue
		}
		g := groups[axis]
		if g == nil {
			g = &group{}
			groups[axis] = g
		}
		g.sum += vals[i]
		g.n++
	}

	xs := make([]float64, 0, len(groups))
	for x := range groups {
		xs = append(xs, x)
	}
	sort.Float64s(xs)
	if len(xs) > maxLinePoints {
		xs = xs[:maxLinePoints]
	}

	out := ChartResult{N: len(xs)}
	for _, x := range xs {
		g := groups[x]
		out.X = append(out.X, x)
		out.Y = append(out.Y, g.sum/float64(g.n))
	}
	return out, nil
}

func scatterChart(f *tabular.Frame, xCol, yCol string) (ChartResult, error) {
	xCells, found := f.Column(xCol)
	if !found {
		return ChartResult{}, fmt.Errorf("scatter x column %q not in dataset", xCol)
	}
	yCells, found := f.Column(yCol)
	if !found {
		return ChartResult{}, fmt.Errorf("scatter y column %q not in dataset", yCol)
	}

	var points [][2]float64
	for i := range xCells {
		x, okX := tabular.AxisValue(xCells[i])
		y, okY := tabular.AxisValue(yCells[i])
		if !okX || !okY {
			continue
		}
		points = append(points, [2]float64{x, y})
	}
	if len(points) > maxScatterPts {
		rng := rand.New(rand.NewSource(scatterSeed))
		picked := rng.Perm(len(points))[:maxScatterPts]
		sort.Ints(picked)
		sampled := make([][2]float64, maxScatterPts)
		for i, p := range picked {
			sampled[i] = points[p]
		}
		points = sampled
	}
	return ChartResult{Points: points, N: len(points)}, nil
}
