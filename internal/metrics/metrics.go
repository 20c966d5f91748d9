package metrics

import (
	"math"

	"github.com/montanaflynn/stats"

	"ramplab/domain/analysis"
	"ramplab/domain/session"
	"ramplab/internal/config"
	"ramplab/internal/signal"
)

// TDI classification bands, in percent discordance between the ventilatory
// and SmO2-derived first thresholds.
const (
	tdiConcordantMax = 5.0
	tdiHeterogMax    = 10.0
)

// Compute derives whole-session summary metrics: normalized power, total
// work, a VO2max estimate with uncertainty when rider weight is configured,
// and the threshold discordance index when both VT1 and LT1 were detected.
// Power is conditioned onto the uniform grid first, so the rolling windows
// hold at any recording rate. Pure and side-effect free; returns nil when
// the session has no usable power data.
func Compute(sess *session.Session, thresholds []analysis.ThresholdEstimate, cfg config.Analysis) *analysis.SessionMetrics {
	power, ok := sess.Channel(session.KindPower)
	if !ok || len(power.Samples) == 0 {
		return nil
	}
	cond, err := signal.Condition(power, cfg)
	if err != nil {
		return nil
	}

	duration := sess.Duration()
	mean, _ := stats.Mean(cond.Raw)

	m := &analysis.SessionMetrics{
		DurationS:   duration,
		AvgPowerW:   mean,
		NormalizedW: normalizedPower(cond, cfg.TargetRateHz),
		WorkKJ:      mean * duration / 1000,
	}

	if cfg.RiderWeightKG > 0 {
		vo2, ci, weight := vo2maxEstimate(sess, cond, cfg)
		m.VO2MaxEst = vo2
		m.VO2MaxCI95 = ci
		m.VO2MaxWeightPct = weight
	}

	if tdi, class, ok := discordanceIndex(thresholds); ok {
		m.TDI = tdi
		m.TDIClass = class
	}
	return m
}

// normalizedPower is the classic 30 s rolling-average, fourth-power mean,
// fourth root, computed per contiguous segment so windows never span a
// break. Streams too short for a single window fall back to the plain mean.
func normalizedPower(cond signal.Conditioned, rateHz float64) float64 {
	window := int(30 * rateHz)
	if window < 1 {
		mean, _ := stats.Mean(cond.Raw)
		return mean
	}

	prefix := make([]float64, cond.Len()+1)
	for i, p := range cond.Raw {
		prefix[i+1] = prefix[i] + p
	}

	sum := 0.0
	count := 0
	for _, seg := range cond.Segments() {
		for i := seg[0]; i+window <= seg[1]; i++ {
			avg := (prefix[i+window] - prefix[i]) / float64(window)
			sum += avg * avg * avg * avg
			count++
		}
	}
	if count == 0 {
		mean, _ := stats.Mean(cond.Raw)
		return mean
	}
	return math.Pow(sum/float64(count), 0.25)
}

// vo2maxEstimate applies the Sitko et al. 2021 formula to the best 5-minute
// power, with a CI95 from the standard error of power over that window and a
// 20% CI penalty when heart rate was unstable. The confidence weight shrinks
// as the interval widens relative to the estimate.
func vo2maxEstimate(sess *session.Session, cond signal.Conditioned, cfg config.Analysis) (vo2, ci95, weightPct float64) {
	window := int(300 * cfg.TargetRateHz)
	if window < 2 {
		return 0, 0, 0
	}

	prefix := make([]float64, cond.Len()+1)
	for i, p := range cond.Raw {
		prefix[i+1] = prefix[i] + p
	}
	bestStart, bestAvg := -1, math.Inf(-1)
	for _, seg := range cond.Segments() {
		for i := seg[0]; i+window <= seg[1]; i++ {
			if avg := (prefix[i+window] - prefix[i]) / float64(window); avg > bestAvg {
				bestAvg = avg
				bestStart = i
			}
		}
	}
	if bestStart < 0 {
		return 0, 0, 0
	}

	best := cond.Raw[bestStart : bestStart+window]
	sd, _ := stats.StandardDeviation(best)
	se := sd / math.Sqrt(float64(window))

	vo2 = 16.61 + 8.87*(bestAvg/cfg.RiderWeightKG)
	ci95 = 1.96 * 8.87 * se / cfg.RiderWeightKG

	if hrCV := heartRateCV(sess, cond.Times[bestStart], 300); hrCV > 0.05 {
		ci95 *= 1.20
	}

	if vo2 > 0 {
		weightPct = 100 / (1 + ci95/vo2)
	}
	return vo2, ci95, weightPct
}

// heartRateCV measures HR stability over [startS, startS+durS). Zero when no
// heart rate channel is present.
func heartRateCV(sess *session.Session, startS, durS float64) float64 {
	hr, ok := sess.Channel(session.KindHeartRate)
	if !ok {
		return 0
	}
	var windowed []float64
	for _, s := range hr.Samples {
		if s.T >= startS && s.T < startS+durS {
			windowed = append(windowed, s.Value)
		}
	}
	if len(windowed) < 2 {
		return 0
	}
	mean, _ := stats.Mean(windowed)
	if mean <= 0 {
		return 0
	}
	sd, _ := stats.StandardDeviation(windowed)
	return sd / mean
}

// discordanceIndex compares the central (VT1) and peripheral (LT1) first
// thresholds: TDI = |VT1-LT1| / VT1 * 100.
func discordanceIndex(thresholds []analysis.ThresholdEstimate) (float64, string, bool) {
	var vt1, lt1 float64
	for _, t := range thresholds {
		switch t.Name {
		case analysis.VT1:
			vt1 = t.Point
		case analysis.LT1:
			lt1 = t.Point
		}
	}
	if vt1 <= 0 || lt1 <= 0 {
		return 0, "", false
	}
	tdi := math.Abs(vt1-lt1) / vt1 * 100
	class := "discordant"
	switch {
	case tdi < tdiConcordantMax:
		class = "concordant"
	case tdi <= tdiHeterogMax:
		class = "heterogeneous"
	}
	return tdi, class, true
}
