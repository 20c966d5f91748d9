package cpmodel

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"ramplab/domain/analysis"
	"ramplab/domain/core"
	"ramplab/internal/config"
	"ramplab/internal/signal"
)

// Fit estimates critical power and W' from maximal efforts by linear
// regression on the linearized hyperbolic model: total work against
// duration, CP the slope and W' the intercept.
//
// A fit with CP <= 0 or W' < 0 is physically invalid; it is returned with
// the Degenerate flag set and the raw regression numbers intact, together
// with core.ErrDegenerateFit, never silently corrected.
func Fit(efforts []analysis.Effort, cfg config.Analysis) (analysis.CPModelResult, error) {
	minEfforts := cfg.CPMinEfforts
	if minEfforts < 2 {
		minEfforts = 2
	}

	inputs := dedupeByDuration(efforts)
	if len(inputs) < minEfforts {
		return analysis.CPModelResult{}, core.NewInsufficientEffortsError(len(inputs), minEfforts)
	}

	n := len(inputs)
	durations := make([]float64, n)
	work := make([]float64, n)
	for i, e := range inputs {
		durations[i] = e.DurationS
		work[i] = e.PowerW * e.DurationS
	}

	wPrime, cp := stat.LinearRegression(durations, work, nil, false)

	predicted := make([]float64, n)
	residuals := make([]analysis.EffortResidual, n)
	var sumAbs, sumSq, maxAbs float64
	for i := range inputs {
		predicted[i] = wPrime + cp*durations[i]
		r := work[i] - predicted[i]
		residuals[i] = analysis.EffortResidual{Effort: inputs[i], Residual: r}
		sumAbs += math.Abs(r)
		sumSq += r * r
		if math.Abs(r) > maxAbs {
			maxAbs = math.Abs(r)
		}
	}

	result := analysis.CPModelResult{
		CP:       cp,
		WPrime:   wPrime,
		CPLower:  cp,
		CPUpper:  cp,
		RSquared: stat.RSquaredFrom(predicted, work, nil),
		Residuals: residuals,
		ResidualStats: analysis.ResidualStats{
			MeanAbs: sumAbs / float64(n),
			Max:     maxAbs,
			RMSE:    math.Sqrt(sumSq / float64(n)),
		},
		Inputs: inputs,
	}

	if lo, hi, ok := slopeCI95(durations, sumSq, cp, n); ok {
		result.CPLower, result.CPUpper = lo, hi
	}

	if cp <= 0 || wPrime < 0 {
		result.Degenerate = true
		return result, core.NewDegenerateFitError(cp, wPrime)
	}
	return result, nil
}

// slopeCI95 derives a 95% confidence interval for the regression slope from
// the residual variance. Needs at least one degree of freedom.
func slopeCI95(durations []float64, ssr, slope float64, n int) (float64, float64, bool) {
	df := float64(n - 2)
	if df < 1 {
		return 0, 0, false
	}
	mean := stat.Mean(durations, nil)
	sxx := 0.0
	for _, d := range durations {
		sxx += (d - mean) * (d - mean)
	}
	if sxx <= 0 {
		return 0, 0, false
	}
	se := math.Sqrt(ssr / df / sxx)
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(0.975)
	return slope - t*se, slope + t*se, true
}

// EffortsFromPowerCurve derives maximal efforts from a conditioned power
// stream: for each configured duration, the best rolling-window average
// power held for that long. The conditioned grid carries real time, so
// window sizes are correct at any recording rate, and windows never span a
// break. Durations no contiguous segment can cover are skipped.
func EffortsFromPowerCurve(cond signal.Conditioned, cfg config.Analysis) []analysis.Effort {
	if cond.Len() == 0 || cfg.TargetRateHz <= 0 {
		return nil
	}

	prefix := make([]float64, cond.Len()+1)
	for i, p := range cond.Raw {
		prefix[i+1] = prefix[i] + p
	}
	segments := cond.Segments()

	var efforts []analysis.Effort
	for _, d := range cfg.MMPDurationsS {
		window := int(d * cfg.TargetRateHz)
		if window < 1 {
			continue
		}
		best := math.Inf(-1)
		for _, seg := range segments {
			for i := seg[0]; i+window <= seg[1]; i++ {
				if avg := (prefix[i+window] - prefix[i]) / float64(window); avg > best {
					best = avg
				}
			}
		}
		if math.IsInf(best, -1) {
			continue
		}
		efforts = append(efforts, analysis.Effort{DurationS: d, PowerW: best})
	}
	return efforts
}

// dedupeByDuration keeps the best power per distinct duration and returns
// the inputs sorted by duration, the order recorded on the result.
func dedupeByDuration(efforts []analysis.Effort) []analysis.Effort {
	best := make(map[float64]float64, len(efforts))
	for _, e := range efforts {
		if e.DurationS <= 0 {
			continue
		}
		if p, ok := best[e.DurationS]; !ok || e.PowerW > p {
			best[e.DurationS] = e.PowerW
		}
	}
	out := make([]analysis.Effort, 0, len(best))
	for d, p := range best {
		out = append(out, analysis.Effort{DurationS: d, PowerW: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DurationS < out[j].DurationS })
	return out
}
