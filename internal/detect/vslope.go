package detect

import (
	"math"

	mstats "github.com/montanaflynn/stats"

	"ramplab/domain/analysis"
	"ramplab/internal/config"
	"ramplab/internal/signal"
)

// VSlope detects thresholds from the ratio of the dependent channel over its
// reference channel, in the manner of classical ventilatory-threshold
// analysis: the first threshold is where the ratio's derivative changes sign
// (ventilatory equivalent stops falling and starts rising), the second is
// where the derivative accelerates past a threshold slope.
type VSlope struct{}

func NewVSlope() *VSlope { return &VSlope{} }

func (v *VSlope) Name() analysis.MethodName { return analysis.MethodVSlope }

func (v *VSlope) Detect(pair SignalPair, cfg config.Analysis) []Candidate {
	ref := pair.Reference
	if len(ref) == 0 {
		ref = pair.X
	}
	n := len(pair.Y)
	if n == 0 || len(ref) != n || len(pair.X) != n {
		return nil
	}

	ratio := computeRatio(pair.Y, ref)
	if ratio == nil {
		return nil
	}

	span := cfg.SmoothingSpanS * 2 // the ratio compounds noise from both channels
	smooth := signal.MovingAverage(ratio, span)
	deriv := signal.Gradient(smooth, 1)

	minSep := int(cfg.MinSeparationFrac * float64(n))
	if minSep < 3 {
		minSep = 3
	}
	persist := minSep / 2
	if persist < 2 {
		persist = 2
	}

	var out []Candidate

	first, ok := firstSignChange(deriv, minSep, n-minSep, persist)
	if !ok {
		return nil
	}
	lower, upper := derivativePlateau(pair.X, deriv, first)
	out = append(out, newCandidate(analysis.MethodVSlope, pair.X[first], lower, upper))

	if len(pair.Thresholds) > 1 {
		if second, ok := slopeCrossing(deriv, first+minSep, n-persist, persist); ok {
			lo2, hi2 := derivativePlateau(pair.X, deriv, second)
			out = append(out, newCandidate(analysis.MethodVSlope, pair.X[second], lo2, hi2))
		}
	}
	return out
}

// computeRatio guards against near-zero denominators by carrying the last
// valid ratio forward. Returns nil when the denominator never becomes usable.
func computeRatio(y, ref []float64) []float64 {
	maxRef := 0.0
	for _, r := range ref {
		if math.Abs(r) > maxRef {
			maxRef = math.Abs(r)
		}
	}
	if maxRef == 0 {
		return nil
	}
	floor := maxRef * 1e-3

	out := make([]float64, len(y))
	valid := false
	last := 0.0
	for i := range y {
		if math.Abs(ref[i]) > floor {
			last = y[i] / ref[i]
			valid = true
		}
		out[i] = last
	}
	if !valid {
		return nil
	}
	return out
}

// firstSignChange finds the first derivative zero-crossing inside [lo, hi)
// whose new sign persists for the given number of samples.
func firstSignChange(deriv []float64, lo, hi, persist int) (int, bool) {
	for i := lo; i < hi && i+persist < len(deriv); i++ {
		if deriv[i-1] == 0 || deriv[i] == 0 {
			continue
		}
		if math.Signbit(deriv[i-1]) == math.Signbit(deriv[i]) {
			continue
		}
		sustained := true
		for j := i; j < i+persist; j++ {
			if math.Signbit(deriv[j]) != math.Signbit(deriv[i]) {
				sustained = false
				break
			}
		}
		if sustained {
			return i, true
		}
	}
	return 0, false
}

// slopeCrossing finds where the derivative magnitude first exceeds twice its
// median over the search window, the acceleration consistent with the second
// threshold. Requires the excess to persist.
func slopeCrossing(deriv []float64, lo, hi, persist int) (int, bool) {
	if lo >= hi || lo < 0 {
		return 0, false
	}
	abs := make([]float64, 0, hi-lo)
	for i := lo; i < hi; i++ {
		abs = append(abs, math.Abs(deriv[i]))
	}
	median, err := mstats.Median(abs)
	if err != nil || median == 0 {
		return 0, false
	}
	threshold := 2 * median

	for i := lo; i < hi && i+persist <= len(deriv); i++ {
		if math.Abs(deriv[i]) <= threshold {
			continue
		}
		sustained := true
		for j := i; j < i+persist; j++ {
			if math.Abs(deriv[j]) <= threshold {
				sustained = false
				break
			}
		}
		if sustained {
			return i, true
		}
	}
	return 0, false
}

// derivativePlateau expands around a detection index while the derivative
// stays within the noise band, yielding the uncertainty range: a sharp
// crossing gives a tight range, a gradual one a wide range.
func derivativePlateau(x, deriv []float64, idx int) (float64, float64) {
	abs := make([]float64, len(deriv))
	for i, d := range deriv {
		abs[i] = math.Abs(d)
	}
	tol, err := mstats.Percentile(abs, 25)
	if err != nil {
		return x[idx], x[idx]
	}

	lo := idx
	for lo > 0 && math.Abs(deriv[lo-1]) <= tol {
		lo--
	}
	hi := idx
	for hi < len(deriv)-1 && math.Abs(deriv[hi+1]) <= tol {
		hi++
	}
	return x[lo], x[hi]
}
