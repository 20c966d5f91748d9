package detect

import (
	"ramplab/domain/analysis"
	"ramplab/internal/config"
)

// SignalPair couples the independent variable (power or time) with one
// dependent physiological channel, both already conditioned onto the common
// grid. Raw values ride along because SNR estimation must see unsmoothed
// noise. Reference is the denominator channel for ratio-based methods and
// defaults to X when the family has no better proxy.
type SignalPair struct {
	Family     string                   // e.g. "ventilatory", "smo2"
	Thresholds []analysis.ThresholdName // ordered: first break, second break
	Unit       string                   // unit of X, reported on estimates
	X          []float64                // independent variable, smoothed
	Y          []float64                // dependent, smoothed
	YRaw       []float64                // dependent, unsmoothed
	Reference  []float64                // ratio denominator for v-slope
}

// Domain returns the span of the independent variable.
func (p SignalPair) Domain() (lo, hi float64) {
	if len(p.X) == 0 {
		return 0, 0
	}
	lo, hi = p.X[0], p.X[0]
	for _, x := range p.X {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return lo, hi
}

// Candidate is one method's ranged estimate for one threshold. Bounds equal
// to the point mark a degenerate range and are flagged, never silently kept.
type Candidate struct {
	Method     analysis.MethodName `json:"method"`
	Point      float64             `json:"point"`
	Lower      float64             `json:"lower"`
	Upper      float64             `json:"upper"`
	Degenerate bool                `json:"degenerate"`
}

// Method is one detection strategy. Detect returns up to one candidate per
// threshold in pair.Thresholds, in order; a missing candidate means "no
// detection", which is a normal outcome, not an error.
type Method interface {
	Name() analysis.MethodName
	Detect(pair SignalPair, cfg config.Analysis) []Candidate
}

// Methods returns the full closed method set. The set is domain-fixed;
// adding a strategy means adding a type here, not registering a plugin.
func Methods() []Method {
	return []Method{
		NewSlopeChange(),
		NewVSlope(),
		NewCurvature(),
	}
}

// Detect runs every requested method over the pair and groups candidates by
// threshold name. Methods that fail to produce a candidate simply contribute
// nothing; their absence is visible to the confidence scorer.
func Detect(pair SignalPair, methods []Method, cfg config.Analysis) map[analysis.ThresholdName][]Candidate {
	out := make(map[analysis.ThresholdName][]Candidate, len(pair.Thresholds))
	for _, m := range methods {
		candidates := m.Detect(pair, cfg)
		for i, c := range candidates {
			if i >= len(pair.Thresholds) {
				break
			}
			out[pair.Thresholds[i]] = append(out[pair.Thresholds[i]], c)
		}
	}
	return out
}

// newCandidate clamps the range to contain the point and flags zero-width
// ranges as degenerate.
func newCandidate(method analysis.MethodName, point, lower, upper float64) Candidate {
	if lower > point {
		lower = point
	}
	if upper < point {
		upper = point
	}
	return Candidate{
		Method:     method,
		Point:      point,
		Lower:      lower,
		Upper:      upper,
		Degenerate: lower == upper,
	}
}
