package validation

import (
	"math"

	"github.com/montanaflynn/stats"

	"ramplab/internal/signal"
)

// Step is one detected power plateau. Start and End index into the
// conditioned series the segmentation ran over; StartS and EndS are the
// corresponding timestamps.
type Step struct {
	Start     int     `json:"start"` // sample index
	End       int     `json:"end"`   // exclusive
	StartS    float64 `json:"start_s"`
	EndS      float64 `json:"end_s"`
	DurationS float64 `json:"duration_s"`
	MeanW     float64 `json:"mean_w"`
	MedianW   float64 `json:"median_w"`
	CV        float64 `json:"cv"` // within-step power variability
}

// stepGradientThreshold separates plateau from transition, in W/s on the
// smoothed trace.
const stepGradientThreshold = 0.5

// minStepDurationS is the shortest run accepted as a distinct step.
const minStepDurationS = 30

// SegmentSteps partitions a power trace into plateaus. The trace must already
// be resampled onto the uniform grid at rateHz with times carrying the sample
// timestamps. A transition is any run where the smoothed gradient magnitude
// exceeds the threshold; a new step opens when the gradient settles again,
// provided the previous step lasted long enough.
func SegmentSteps(times, values []float64, rateHz float64) []Step {
	if rateHz <= 0 || len(times) != len(values) {
		return nil
	}
	minLen := int(minStepDurationS * rateHz)
	if len(values) < minLen || minLen == 0 {
		return nil
	}

	window := len(values) / 10
	if window > int(30*rateHz) {
		window = int(30 * rateHz)
	}
	if window < 5 {
		window = 5
	}

	smoothed := signal.MovingAverage(values, window)
	gradient := signal.Gradient(smoothed, 1.0/rateHz)

	starts := []int{0}
	inTransition := false
	for i := 1; i < len(gradient); i++ {
		switch {
		case math.Abs(gradient[i]) > stepGradientThreshold && !inTransition:
			inTransition = true
		case math.Abs(gradient[i]) <= stepGradientThreshold && inTransition:
			inTransition = false
			if i-starts[len(starts)-1] >= minLen {
				starts = append(starts, i)
			}
		}
	}

	var steps []Step
	for i, start := range starts {
		end := len(values)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if end-start < minLen {
			continue
		}

		seg := values[start:end]
		mean, _ := stats.Mean(seg)
		median, _ := stats.Median(seg)
		cv := 0.0
		if mean > 0 {
			sd, _ := stats.StandardDeviation(seg)
			cv = sd / mean
		}
		steps = append(steps, Step{
			Start:     start,
			End:       end,
			StartS:    times[start],
			EndS:      times[end-1] + 1/rateHz,
			DurationS: float64(end-start) / rateHz,
			MeanW:     mean,
			MedianW:   median,
			CV:        cv,
		})
	}
	return steps
}
