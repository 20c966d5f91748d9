package detect

import (
	"math"

	"ramplab/domain/analysis"
	"ramplab/internal/config"
)

// Curvature detects thresholds as extrema of the local second derivative
// along the smoothed curve. Both axes are normalized to [0,1] first so the
// configured curvature floor is scale-free.
type Curvature struct{}

func NewCurvature() *Curvature { return &Curvature{} }

func (c *Curvature) Name() analysis.MethodName { return analysis.MethodCurvature }

func (c *Curvature) Detect(pair SignalPair, cfg config.Analysis) []Candidate {
	n := len(pair.Y)
	if n < 10 || len(pair.X) != n {
		return nil
	}

	ynorm, ok := normalize(pair.Y)
	if !ok {
		return nil // flat signal, nothing to detect
	}

	minSep := int(cfg.MinSeparationFrac * float64(n))
	if minSep < 3 {
		minSep = 3
	}
	w := minSep / 2
	if w < cfg.SmoothingSpanS {
		w = cfg.SmoothingSpanS
	}
	if 2*w >= n {
		return nil
	}

	curv := slopeDifference(ynorm, w)

	peaks := qualifyingPeaks(curv, cfg.MinCurvature, minSep)
	if len(peaks) == 0 {
		return nil
	}

	var out []Candidate
	// First (lowest-domain-value) qualifying extremum past the guard.
	first := peaks[0]
	lo, hi := curvaturePlateau(pair.X, curv, first)
	out = append(out, newCandidate(analysis.MethodCurvature, pair.X[first], lo, hi))

	if len(pair.Thresholds) > 1 {
		for _, p := range peaks[1:] {
			if p-first >= minSep {
				lo2, hi2 := curvaturePlateau(pair.X, curv, p)
				out = append(out, newCandidate(analysis.MethodCurvature, pair.X[p], lo2, hi2))
				break
			}
		}
	}
	return out
}

// slopeDifference estimates curvature at each index as the difference
// between the mean slope of the right and left windows, in normalized units.
// Wider than a point stencil so measurement noise doesn't dominate.
func slopeDifference(y []float64, w int) []float64 {
	n := len(y)
	out := make([]float64, n)
	h := float64(w) / float64(n-1)
	for i := w; i < n-w; i++ {
		left := (y[i] - y[i-w]) / h
		right := (y[i+w] - y[i]) / h
		out[i] = right - left
	}
	return out
}

// qualifyingPeaks returns indices of local |curvature| maxima above the
// floor, in domain order, skipping the guard region at the start.
func qualifyingPeaks(curv []float64, floor float64, guard int) []int {
	var peaks []int
	for i := guard; i < len(curv)-1; i++ {
		m := math.Abs(curv[i])
		if m < floor {
			continue
		}
		if m >= math.Abs(curv[i-1]) && m > math.Abs(curv[i+1]) {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// curvaturePlateau is the contiguous region around a peak where curvature
// magnitude stays above half the peak value; its width is the method's
// uncertainty range.
func curvaturePlateau(x, curv []float64, peak int) (float64, float64) {
	half := math.Abs(curv[peak]) / 2
	lo := peak
	for lo > 0 && math.Abs(curv[lo-1]) >= half {
		lo--
	}
	hi := peak
	for hi < len(curv)-1 && math.Abs(curv[hi+1]) >= half {
		hi++
	}
	return x[lo], x[hi]
}

// normalize rescales values to [0,1]; reports false for constant input.
func normalize(values []float64) ([]float64, bool) {
	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max-min < 1e-12 {
		return nil, false
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - min) / (max - min)
	}
	return out, true
}
