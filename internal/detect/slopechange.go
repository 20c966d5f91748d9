package detect

import (
	"math"
	"math/rand"
	"sort"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"ramplab/domain/analysis"
	"ramplab/internal/config"
)

// minImprovement is the fractional residual reduction a two-segment fit must
// achieve over a single line before a breakpoint counts as a detection.
// Below this the signal has no usable slope change.
const minImprovement = 0.05

// SlopeChange finds the breakpoint minimizing the combined residual of a
// two-segment piecewise linear fit, evaluated at every candidate index.
type SlopeChange struct{}

func NewSlopeChange() *SlopeChange { return &SlopeChange{} }

func (s *SlopeChange) Name() analysis.MethodName { return analysis.MethodSlopeChange }

func (s *SlopeChange) Detect(pair SignalPair, cfg config.Analysis) []Candidate {
	var out []Candidate

	first, ok := s.detectIn(pair.X, pair.Y, 0, len(pair.X), cfg)
	if !ok {
		return out
	}
	out = append(out, first.candidate)

	if len(pair.Thresholds) > 1 {
		// Second break lives above the first; rescan the upper sub-domain.
		if second, ok := s.detectIn(pair.X, pair.Y, first.index, len(pair.X), cfg); ok {
			out = append(out, second.candidate)
		}
	}
	return out
}

type breakResult struct {
	index     int
	candidate Candidate
}

// detectIn scans [lo, hi) for the residual-minimizing breakpoint and derives
// a range by bootstrap over the same scan.
func (s *SlopeChange) detectIn(x, y []float64, lo, hi int, cfg config.Analysis) (breakResult, bool) {
	xs, ys := x[lo:hi], y[lo:hi]
	n := len(xs)
	minSep := int(cfg.MinSeparationFrac * float64(n))
	if minSep < 3 {
		minSep = 3
	}
	if n < 4*minSep {
		return breakResult{}, false
	}

	idx, ok := bestBreakpoint(xs, ys, minSep, cfg.TieEpsilon)
	if !ok {
		return breakResult{}, false
	}

	point := xs[idx]
	lower, upper := s.bootstrapRange(xs, ys, minSep, point, cfg)

	return breakResult{
		index:     lo + idx,
		candidate: newCandidate(analysis.MethodSlopeChange, point, lower, upper),
	}, true
}

// bestBreakpoint runs the exhaustive piecewise-linear scan. Ties within
// epsilon of the best residual break toward the domain median.
func bestBreakpoint(xs, ys []float64, minSep int, tieEpsilon float64) (int, bool) {
	n := len(xs)
	sums := newPrefixSums(xs, ys)

	single := sums.ssr(0, n)
	// Residual below numerical noise relative to the signal's variance means
	// the data is already one line; partitioning it would fit FP residue.
	if single <= 1e-9*sums.variance(0, n) {
		return 0, false
	}

	best := math.Inf(1)
	ssrs := make([]float64, n)
	for i := minSep; i <= n-minSep; i++ {
		ssrs[i] = sums.ssr(0, i) + sums.ssr(i, n)
		if ssrs[i] < best {
			best = ssrs[i]
		}
	}
	if (single-best)/single < minImprovement {
		return 0, false
	}

	// Collect near-ties and prefer the one closest to the domain median.
	median, _ := mstats.Median(xs)
	bestIdx := -1
	bestDist := math.Inf(1)
	for i := minSep; i <= n-minSep; i++ {
		if ssrs[i] > best*(1+tieEpsilon) {
			continue
		}
		if d := math.Abs(xs[i] - median); d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return 0, false
	}
	return bestIdx, true
}

// bootstrapRange resamples the signal with replacement and repeats the
// breakpoint scan, taking the 2.5/97.5 percentiles of the resampled break
// locations. Seeded from configuration so repeated analyses are
// bit-identical.
func (s *SlopeChange) bootstrapRange(xs, ys []float64, minSep int, point float64, cfg config.Analysis) (float64, float64) {
	n := len(xs)
	rng := rand.New(rand.NewSource(cfg.Seed))
	points := make([]float64, 0, cfg.BootstrapIters)

	type sample struct{ x, y float64 }
	resampled := make([]sample, n)

	for iter := 0; iter < cfg.BootstrapIters; iter++ {
		for i := range resampled {
			j := rng.Intn(n)
			resampled[i] = sample{xs[j], ys[j]}
		}
		sort.Slice(resampled, func(a, b int) bool { return resampled[a].x < resampled[b].x })

		bx := make([]float64, n)
		by := make([]float64, n)
		for i, p := range resampled {
			bx[i] = p.x
			by[i] = p.y
		}
		if idx, ok := bestBreakpoint(bx, by, minSep, cfg.TieEpsilon); ok {
			points = append(points, bx[idx])
		}
	}

	if len(points) < 10 {
		return point, point // degenerate; flagged by the candidate constructor
	}
	lower, _ := mstats.Percentile(points, 2.5)
	upper, _ := mstats.Percentile(points, 97.5)
	return lower, upper
}

// SegmentSlopes fits both segments around a breakpoint and returns their
// slopes, for diagnostics and the v-slope consistency checks.
func SegmentSlopes(xs, ys []float64, idx int) (below, above float64) {
	_, below = stat.LinearRegression(xs[:idx], ys[:idx], nil, false)
	_, above = stat.LinearRegression(xs[idx:], ys[idx:], nil, false)
	return below, above
}

// prefixSums supports O(1) residual computation for any segment of a simple
// linear regression.
type prefixSums struct {
	sx, sy, sxx, syy, sxy []float64
}

func newPrefixSums(xs, ys []float64) prefixSums {
	n := len(xs)
	p := prefixSums{
		sx:  make([]float64, n+1),
		sy:  make([]float64, n+1),
		sxx: make([]float64, n+1),
		syy: make([]float64, n+1),
		sxy: make([]float64, n+1),
	}
	for i := 0; i < n; i++ {
		p.sx[i+1] = p.sx[i] + xs[i]
		p.sy[i+1] = p.sy[i] + ys[i]
		p.sxx[i+1] = p.sxx[i] + xs[i]*xs[i]
		p.syy[i+1] = p.syy[i] + ys[i]*ys[i]
		p.sxy[i+1] = p.sxy[i] + xs[i]*ys[i]
	}
	return p
}

// ssr returns the residual sum of squares of the least-squares line over
// [a, b). Degenerate segments (constant x) contribute their y variance.
func (p prefixSums) ssr(a, b int) float64 {
	n := float64(b - a)
	if n < 2 {
		return 0
	}
	sx := p.sx[b] - p.sx[a]
	sy := p.sy[b] - p.sy[a]
	sxx := (p.sxx[b] - p.sxx[a]) - sx*sx/n
	syy := (p.syy[b] - p.syy[a]) - sy*sy/n
	sxy := (p.sxy[b] - p.sxy[a]) - sx*sy/n
	if sxx <= 1e-12 {
		return math.Max(syy, 0)
	}
	ssr := syy - sxy*sxy/sxx
	return math.Max(ssr, 0)
}

// variance is the centered sum of squares of y over [a, b).
func (p prefixSums) variance(a, b int) float64 {
	n := float64(b - a)
	if n < 2 {
		return 0
	}
	sy := p.sy[b] - p.sy[a]
	return math.Max((p.syy[b]-p.syy[a])-sy*sy/n, 0)
}
