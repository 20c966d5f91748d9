package signal

import (
	"math"

	"github.com/montanaflynn/stats"

	"ramplab/domain/core"
	"ramplab/domain/session"
	"ramplab/internal/config"
)

// Gap is a stretch of missing data between two recorded samples.
type Gap struct {
	StartS  float64 `json:"start_s"`
	EndS    float64 `json:"end_s"`
	LengthS float64 `json:"length_s"`
}

// Conditioned is a channel resampled onto a common grid with raw values
// retained alongside the smoothed series. Detectors that need unsmoothed
// data (SNR estimation, v-slope ratios) read Raw; breakpoint search reads
// Smooth. Breaks mark gaps too long to interpolate across; grid points
// inside a break are dropped, so Times is contiguous only within segments.
type Conditioned struct {
	Kind   session.Kind
	Times  []float64
	Raw    []float64
	Smooth []float64
	Breaks []Gap
}

// Len returns the number of conditioned samples.
func (c Conditioned) Len() int { return len(c.Times) }

// Segments returns index ranges [start, end) of contiguous runs between
// breaks.
func (c Conditioned) Segments() [][2]int {
	if len(c.Times) == 0 {
		return nil
	}
	var segs [][2]int
	start := 0
	for i := 1; i < len(c.Times); i++ {
		if c.inBreak(c.Times[i-1], c.Times[i]) {
			segs = append(segs, [2]int{start, i})
			start = i
		}
	}
	return append(segs, [2]int{start, len(c.Times)})
}

func (c Conditioned) inBreak(t0, t1 float64) bool {
	for _, b := range c.Breaks {
		if t0 < b.EndS && t1 > b.StartS {
			return true
		}
	}
	return false
}

// Condition resamples a channel to the common rate, interpolates short gaps,
// marks long ones as breaks and smooths with a centered moving average. The
// input channel is never mutated; all output slices are freshly allocated.
func Condition(ch session.Channel, cfg config.Analysis) (Conditioned, error) {
	if err := ch.Validate(); err != nil {
		return Conditioned{}, err
	}
	if len(ch.Samples) < cfg.MinSamples {
		return Conditioned{}, core.NewInsufficientDataError(string(ch.Kind), len(ch.Samples), cfg.MinSamples)
	}

	dt := 1.0 / cfg.TargetRateHz
	breaks := DetectGaps(ch.Times(), cfg.GapToleranceS)

	out := Conditioned{Kind: ch.Kind, Breaks: breaks}
	samples := ch.Samples
	j := 0
	for t := samples[0].T; t <= samples[len(samples)-1].T+dt/2; t += dt {
		for j+1 < len(samples) && samples[j+1].T <= t {
			j++
		}
		if insideGap(t, breaks) {
			continue
		}
		out.Times = append(out.Times, t)
		out.Raw = append(out.Raw, interpolate(samples, j, t))
	}

	if len(out.Raw) < cfg.MinSamples {
		return Conditioned{}, core.NewInsufficientDataError(string(ch.Kind), len(out.Raw), cfg.MinSamples)
	}

	span := int(math.Round(float64(cfg.SmoothingSpanS) * cfg.TargetRateHz))
	out.Smooth = make([]float64, 0, len(out.Raw))
	for _, seg := range out.Segments() {
		out.Smooth = append(out.Smooth, MovingAverage(out.Raw[seg[0]:seg[1]], span)...)
	}
	return out, nil
}

// DetectGaps returns every inter-sample interval longer than tolerance.
func DetectGaps(times []float64, toleranceS float64) []Gap {
	var gaps []Gap
	for i := 1; i < len(times); i++ {
		if d := times[i] - times[i-1]; d > toleranceS {
			gaps = append(gaps, Gap{StartS: times[i-1], EndS: times[i], LengthS: d})
		}
	}
	return gaps
}

// MovingAverage applies a centered moving average of the given span. Windows
// truncate at the edges rather than padding, so output length equals input
// length.
func MovingAverage(values []float64, span int) []float64 {
	if span < 2 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	half := span / 2
	out := make([]float64, len(values))
	for i := range values {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(values) {
			hi = len(values)
		}
		m, _ := stats.Mean(values[lo:hi])
		out[i] = m
	}
	return out
}

// Gradient computes the first derivative by central differences, matching
// the numeric convention of the step segmentation this feeds.
func Gradient(values []float64, dt float64) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	out[0] = (values[1] - values[0]) / dt
	out[n-1] = (values[n-1] - values[n-2]) / dt
	for i := 1; i < n-1; i++ {
		out[i] = (values[i+1] - values[i-1]) / (2 * dt)
	}
	return out
}

func insideGap(t float64, gaps []Gap) bool {
	for _, g := range gaps {
		if t > g.StartS && t < g.EndS {
			return true
		}
	}
	return false
}

// interpolate linearly between samples[j] and samples[j+1] at time t.
// Clamps to the nearest endpoint outside the covered range.
func interpolate(samples []session.Sample, j int, t float64) float64 {
	if t <= samples[j].T || j+1 >= len(samples) {
		return samples[j].Value
	}
	a, b := samples[j], samples[j+1]
	frac := (t - a.T) / (b.T - a.T)
	return a.Value + frac*(b.Value-a.Value)
}
