package analyzer

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ttestResult holds a Welch's t-test outcome.
type ttestResult struct {
	T  float64
	DF float64
	P  float64
}

// welchTTest compares the means of two independent samples without assuming
// equal variances. Returns ok=false when either sample is too small or has
// zero variance in both groups (the statistic is undefined).
func welchTTest(x, y []float64) (ttestResult, bool) {
	if len(x) < 2 || len(y) < 2 {
		return ttestResult{}, false
	}

	mx, my := stat.Mean(x, nil), stat.Mean(y, nil)
	vx, vy := stat.Variance(x, nil), stat.Variance(y, nil)
	nx, ny := float64(len(x)), float64(len(y))

	sex, sey := vx/nx, vy/ny
	se := math.Sqrt(sex + sey)
	if se == 0 {
		if mx == my {
			// Identical constant samples: no evidence of a difference.
			return ttestResult{T: 0, DF: nx + ny - 2, P: 1}, true
		}
		return ttestResult{}, false
	}

	t := (mx - my) / se

	// Welch-Satterthwaite degrees of freedom.
	df := (sex + sey) * (sex + sey) /
		(sex*sex/(nx-1) + sey*sey/(ny-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.CDF(-math.Abs(t))
	return ttestResult{T: t, DF: df, P: p}, true
}

// mannWhitneyResult holds a Mann-Whitney U test outcome (normal
// approximation with tie and continuity corrections).
type mannWhitneyResult struct {
	U float64
	Z float64
	P float64
}

// mannWhitneyU is the non-parametric companion to welchTTest: it compares
// the two samples' rank distributions, which is robust to the heavy right
// skew typical of kudos counts.
func mannWhitneyU(x, y []float64) (mannWhitneyResult, bool) {
	nx, ny := float64(len(x)), float64(len(y))
	if nx < 1 || ny < 1 {
		return mannWhitneyResult{}, false
	}

	type obs struct {
		v     float64
		fromX bool
	}
	all := make([]obs, 0, len(x)+len(y))
	for _, v := range x {
		all = append(all, obs{v, true})
	}
	for _, v := range y {
		all = append(all, obs{v, false})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].v < all[j].v })

	// Midranks for ties, and the tie correction term Σ(t³ − t).
	n := len(all)
	ranks := make([]float64, n)
	var tieTerm float64
	for i := 0; i < n; {
		j := i
		for j < n && all[j].v == all[i].v {
			j++
		}
		mid := float64(i+j+1) / 2 // average of 1-based ranks i+1..j
		for k := i; k < j; k++ {
			ranks[k] = mid
		}
		if t := float64(j - i); t > 1 {
			tieTerm += t*t*t - t
		}
		i = j
	}

	var rx float64
	for i, o := range all {
		if o.fromX {
			rx += ranks[i]
		}
	}

	ux := rx - nx*(nx+1)/2
	uy := nx*ny - ux
	u := math.Min(ux, uy)

	nTot := nx + ny
	variance := nx * ny / 12 * ((nTot + 1) - tieTerm/(nTot*(nTot-1)))
	if variance <= 0 {
		// Every observation tied: the samples are indistinguishable.
		return mannWhitneyResult{U: u, Z: 0, P: 1}, true
	}

	mu := nx * ny / 2
	z := (u - mu + 0.5) / math.Sqrt(variance) // continuity correction
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	p := 2 * norm.CDF(-math.Abs(z))
	if p > 1 {
		p = 1
	}
	return mannWhitneyResult{U: u, Z: z, P: p}, true
}

// pearson wraps gonum's correlation with a defined answer for degenerate
// input: fewer than 3 pairs or a zero-variance column yields ok=false.
func pearson(x, y []float64) (float64, bool) {
	if len(x) != len(y) || len(x) < 3 {
		return 0, false
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return 0, false
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, false
	}
	return r, true
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

func median(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
