package confidence

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"ramplab/domain/analysis"
	"ramplab/internal/config"
	"ramplab/internal/detect"
)

// Component weights for the combined confidence score. Method count has a
// positive weight so the score is monotone non-decreasing in the number of
// agreeing methods at fixed noise.
const (
	weightAgreement = 0.45
	weightCount     = 0.30
	weightSNR       = 0.25
)

// snrSaturation is the SNR at which the noise component maxes out.
const snrSaturation = 10.0

// Score adjudicates all method candidates for one threshold into a final
// estimate. Returns false when fewer methods detected than the configured
// minimum; the threshold is then reported UNDETECTED rather than fabricated.
func Score(name analysis.ThresholdName, candidates []detect.Candidate, pair detect.SignalPair,
	cfg config.Analysis) (analysis.ThresholdEstimate, bool) {

	min := cfg.MinMethodsForDetection
	if min < 1 {
		min = 1
	}
	if len(candidates) < min {
		return analysis.ThresholdEstimate{}, false
	}

	domainLo, domainHi := pair.Domain()
	domain := domainHi - domainLo
	if domain <= 0 {
		return analysis.ThresholdEstimate{}, false
	}

	point := weightedPoint(candidates, domain)
	lower, upper := envelope(candidates, point)

	agreement := agreementScore(candidates, domain)
	count := countScore(len(candidates))
	snr := snrScore(pair, lower, upper)

	score := 100 * (weightAgreement*agreement + weightCount*count + weightSNR*snr)

	methods := make([]analysis.MethodName, 0, len(candidates))
	for _, c := range candidates {
		methods = append(methods, c.Method)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i] < methods[j] })

	return mustEstimate(name, point, lower, upper, pair.Unit, methods, score, cfg)
}

// weightedPoint combines candidate points, weighting each inversely to its
// range width relative to the domain: tighter methods pull harder.
func weightedPoint(candidates []detect.Candidate, domain float64) float64 {
	sum, wsum := 0.0, 0.0
	for _, c := range candidates {
		w := 1.0 / (1.0 + (c.Upper-c.Lower)/domain)
		sum += w * c.Point
		wsum += w
	}
	return sum / wsum
}

// envelope is the union of all method ranges. Never narrower than the
// tightest single method's range, and always contains the combined point.
func envelope(candidates []detect.Candidate, point float64) (float64, float64) {
	lower, upper := candidates[0].Lower, candidates[0].Upper
	for _, c := range candidates[1:] {
		lower = math.Min(lower, c.Lower)
		upper = math.Max(upper, c.Upper)
	}
	return math.Min(lower, point), math.Max(upper, point)
}

// agreementScore maps the spread of point estimates, relative to the domain
// range, onto [0,1]. A single candidate has zero spread and full agreement.
func agreementScore(candidates []detect.Candidate, domain float64) float64 {
	lo, hi := candidates[0].Point, candidates[0].Point
	for _, c := range candidates[1:] {
		lo = math.Min(lo, c.Point)
		hi = math.Max(hi, c.Point)
	}
	// A spread of a quarter of the domain or more counts as no agreement.
	spread := (hi - lo) / (0.25 * domain)
	if spread > 1 {
		spread = 1
	}
	return 1 - spread
}

func countScore(n int) float64 {
	max := len(detect.Methods())
	if max <= 1 {
		return 1
	}
	if n > max {
		n = max
	}
	return float64(n-1) / float64(max-1)
}

// snrScore estimates local signal-to-noise at the detected region: smoothed
// signal swing over the residual noise left by smoothing, saturating at
// snrSaturation.
func snrScore(pair detect.SignalPair, lower, upper float64) float64 {
	idx := regionIndices(pair.X, lower, upper, 5, 10)
	if len(idx) < 4 {
		return 0
	}

	residuals := make([]float64, 0, len(idx))
	sigLo, sigHi := pair.Y[idx[0]], pair.Y[idx[0]]
	for _, i := range idx {
		if i < len(pair.YRaw) {
			residuals = append(residuals, pair.YRaw[i]-pair.Y[i])
		}
		sigLo = math.Min(sigLo, pair.Y[i])
		sigHi = math.Max(sigHi, pair.Y[i])
	}

	noise, err := stats.StandardDeviation(residuals)
	if err != nil {
		return 0
	}
	if noise < 1e-12 {
		return 1 // effectively noiseless
	}
	snr := (sigHi - sigLo) / noise
	if snr > snrSaturation {
		snr = snrSaturation
	}
	return snr / snrSaturation
}

// regionIndices selects indices whose X lands inside [lower, upper], padded
// on both sides and widened to a minimum count.
func regionIndices(x []float64, lower, upper float64, pad, minCount int) []int {
	first, last := -1, -1
	for i, v := range x {
		if v >= lower && v <= upper {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return nil
	}
	first -= pad
	last += pad
	for last-first+1 < minCount {
		first--
		last++
	}
	if first < 0 {
		first = 0
	}
	if last >= len(x) {
		last = len(x) - 1
	}
	idx := make([]int, 0, last-first+1)
	for i := first; i <= last; i++ {
		idx = append(idx, i)
	}
	return idx
}

func mustEstimate(name analysis.ThresholdName, point, lower, upper float64, unit string,
	methods []analysis.MethodName, score float64, cfg config.Analysis) (analysis.ThresholdEstimate, bool) {

	est, err := analysis.NewThresholdEstimate(name, point, lower, upper, unit, methods,
		score, cfg.ConfidenceHigh, cfg.ConfidenceMedium)
	if err != nil {
		// Candidate construction clamps bounds, so this only trips on NaN
		// inputs; treat as no detection rather than fabricating a value.
		return analysis.ThresholdEstimate{}, false
	}
	return est, true
}
