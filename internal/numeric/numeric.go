// Package numeric holds the statistical kernels shared by the interactive
// query engine and the recipe run engine: correlation, PCA, Welch's t-test,
// Benjamini-Hochberg adjustment, and average-linkage leaf ordering.
package numeric

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CorrMethod selects the correlation flavor.
type CorrMethod string

const (
	CorrPearson  CorrMethod = "pearson"
	CorrSpearman CorrMethod = "spearman"
)

// ParseCorrMethod validates a method string, defaulting empty to spearman.
func ParseCorrMethod(s string) (CorrMethod, error) {
	switch CorrMethod(s) {
	case CorrPearson, CorrSpearman:
		return CorrMethod(s), nil
	case "":
		return CorrSpearman, nil
	default:
		return "", fmt.Errorf("unsupported correlation method %q", s)
	}
}

// CorrelationMatrix computes the pairwise correlation of the given series
// under the selected method. Series must share a length. Degenerate series
// (zero variance) correlate as NaN-free zeros except on the diagonal.
func CorrelationMatrix(series [][]float64, method CorrMethod) [][]float64 {
	cols := series
	if method == CorrSpearman {
		cols = make([][]float64, len(series))
		for i, s := range series {
			cols[i] = Ranks(s)
		}
	}
	n := len(cols)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		out[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := stat.Correlation(cols[i], cols[j], nil)
			if math.IsNaN(r) {
				r = 0
			}
			out[i][j] = r
			out[j][i] = r
		}
	}
	return out
}

// Ranks returns 1-based ranks with ties assigned their average rank.
func Ranks(x []float64) []float64 {
	n := len(x)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && x[idx[j+1]] == x[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// Standardize scales each column of X to zero mean and unit variance in
// place. Zero-variance columns are centered only.
func Standardize(X *mat.Dense) {
	r, c := X.Dims()
	if r == 0 {
		return
	}
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean := stat.Mean(col, nil)
		variance := 0.0
		for _, v := range col {
			d := v - mean
			variance += d * d
		}
		variance /= float64(r)
		sd := math.Sqrt(variance)
		for i := 0; i < r; i++ {
			v := col[i] - mean
			if sd > 0 {
				v /= sd
			}
			X.Set(i, j, v)
		}
	}
}

// PCAResult holds principal component scores, loadings, and the explained
// variance ratio per component.
type PCAResult struct {
	Scores    *mat.Dense // n_samples x k
	Loadings  *mat.Dense // n_features x k
	Explained []float64  // length k, sums to <= 1
}

// PCA fits principal components on the (already standardized) matrix X and
// keeps k components. k must satisfy 1 <= k <= min(rows, cols).
func PCA(X *mat.Dense, k int) (PCAResult, error) {
	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDThin); !ok {
		return PCAResult{}, fmt.Errorf("svd failed to converge")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	total := 0.0
	for _, sv := range s {
		total += sv * sv
	}
	if k > len(s) {
		k = len(s)
	}

	n, _ := X.Dims()
	scores := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			scores.Set(i, j, u.At(i, j)*s[j])
		}
	}
	p, _ := v.Dims()
	loadings := mat.NewDense(p, k, nil)
	for i := 0; i < p; i++ {
		for j := 0; j < k; j++ {
			loadings.Set(i, j, v.At(i, j))
		}
	}
	explained := make([]float64, k)
	for j := 0; j < k; j++ {
		if total > 0 {
			explained[j] = s[j] * s[j] / total
		}
	}
	return PCAResult{Scores: scores, Loadings: loadings, Explained: explained}, nil
}

// ClampComponents applies the component-count rule: at least 2, at most
// min(nSamples, nFeatures).
func ClampComponents(requested, nSamples, nFeatures int) int {
	limit := nSamples
	if nFeatures < limit {
		limit = nFeatures
	}
	n := requested
	if n < 2 {
		n = 2
	}
	if n > limit {
		n = limit
	}
	return n
}

// WelchT runs a two-sample unequal-variance t-test and returns the statistic
// and two-sided p-value. Groups with fewer than two values, or a zero
// combined standard error, yield p = 1.
func WelchT(a, b []float64) (t, p float64) {
	na, nb := float64(len(a)), float64(len(b))
	if na < 2 || nb < 2 {
		return 0, 1
	}
	ma := stat.Mean(a, nil)
	mb := stat.Mean(b, nil)
	va := stat.Variance(a, nil)
	vb := stat.Variance(b, nil)
	se2 := va/na + vb/nb
	if se2 <= 0 {
		return 0, 1
	}
	t = (ma - mb) / math.Sqrt(se2)
	df := se2 * se2 / (va*va/(na*na*(na-1)) + vb*vb/(nb*nb*(nb-1)))
	if df <= 0 || math.IsNaN(df) {
		return t, 1
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * dist.CDF(-math.Abs(t))
	if p > 1 {
		p = 1
	}
	return t, p
}

// BHAdjust computes Benjamini-Hochberg adjusted values for p-values already
// sorted ascending: p * m / rank, clipped at 1.
func BHAdjust(sorted []float64) []float64 {
	m := float64(len(sorted))
	out := make([]float64, len(sorted))
	for i, p := range sorted {
		v := p * m / float64(i+1)
		if v > 1 {
			v = 1
		}
		out[i] = v
	}
	return out
}

// AverageLinkageOrder returns a leaf ordering of the items from average
// linkage agglomerative clustering over distance 1 - corr. Items that end up
// adjacent are highly correlated, giving heatmaps visible block structure.
func AverageLinkageOrder(corr [][]float64) []int {
	n := len(corr)
	if n < 3 {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		return order
	}

	type cluster struct{ members []int }
	clusters := make([]*cluster, n)
	for i := range clusters {
		clusters[i] = &cluster{members: []int{i}}
	}
	dist := func(a, b *cluster) float64 {
		total := 0.0
		for _, i := range a.members {
			for _, j := range b.members {
				total += 1 - corr[i][j]
			}
		}
		return total / float64(len(a.members)*len(b.members))
	}

	for len(clusters) > 1 {
		bi, bj := 0, 1
		best := math.Inf(1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if d := dist(clusters[i], clusters[j]); d < best {
					best, bi, bj = d, i, j
				}
			}
		}
		merged := &cluster{members: append(append([]int(nil), clusters[bi].members...), clusters[bj].members...)}
		next := make([]*cluster, 0, len(clusters)-1)
		for k, c := range clusters {
			if k != bi && k != bj {
				next = append(next, c)
			}
		}
		clusters = append(next, merged)
	}
	return clusters[0].members
}
