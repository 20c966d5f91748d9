package testkit

import (
	"math"
	"math/rand"

	"ramplab/domain/analysis"
	"ramplab/domain/core"
	"ramplab/domain/session"
)

// StepSpec declares one synthetic power step.
type StepSpec struct {
	PowerW    float64
	DurationS float64
}

// SessionSpec drives the synthetic session generator. Zero noise values give
// perfectly clean signals so algorithm tests can assert exact behavior.
type SessionSpec struct {
	Steps       []StepSpec
	VEBreakW    float64 // ventilation slope break; 0 disables the VE channel
	SmO2BreakW  float64 // SmO2 slope break; 0 disables the SmO2 channel
	PowerNoise  float64 // stddev of additive noise, watts
	SignalNoise float64 // stddev of additive noise on physiological channels
	RateHz      float64 // sampling rate; 0 means 1 Hz
	Seed        int64
	WithCadence bool
	WithHR      bool
}

// StepSession builds a deterministic synthetic step-protocol session.
// Physiological channels follow piecewise-linear responses to power with the
// configured slope breaks, the shape the detectors are built to find.
func StepSession(spec SessionSpec) *session.Session {
	rng := rand.New(rand.NewSource(spec.Seed))
	rate := spec.RateHz
	if rate <= 0 {
		rate = 1
	}
	dt := 1 / rate

	var power []float64
	var boundaries []session.StepBoundary
	t := 0.0
	for _, step := range spec.Steps {
		boundaries = append(boundaries, session.StepBoundary{
			StartS:  t,
			EndS:    t + step.DurationS,
			TargetW: step.PowerW,
		})
		for i := 0; i < int(step.DurationS*rate); i++ {
			power = append(power, step.PowerW+spec.PowerNoise*rng.NormFloat64())
		}
		t += step.DurationS
	}

	channels := []session.Channel{channelFrom(session.KindPower, power, dt)}

	if spec.WithCadence {
		cadence := make([]float64, len(power))
		for i := range cadence {
			cadence[i] = 90 + 3*rng.NormFloat64()
		}
		channels = append(channels, channelFrom(session.KindCadence, cadence, dt))
	}

	if spec.WithHR {
		hr := make([]float64, len(power))
		for i := range hr {
			hr[i] = 100 + 0.35*power[i] + 2*rng.NormFloat64()
		}
		channels = append(channels, channelFrom(session.KindHeartRate, hr, dt))
	}

	if spec.VEBreakW > 0 {
		ve := make([]float64, len(power))
		for i, p := range power {
			ve[i] = ventilationResponse(p, spec.VEBreakW) + spec.SignalNoise*rng.NormFloat64()
		}
		channels = append(channels, channelFrom(session.KindVentilation, ve, dt))
	}

	if spec.SmO2BreakW > 0 {
		smo2 := make([]float64, len(power))
		for i, p := range power {
			smo2[i] = smo2Response(p, spec.SmO2BreakW) + spec.SignalNoise*rng.NormFloat64()
		}
		channels = append(channels, channelFrom(session.KindSmO2, smo2, dt))
	}

	return &session.Session{
		ID:         core.SessionID(core.NewID()),
		Protocol:   session.ProtocolStep,
		Steps:      boundaries,
		Channels:   channels,
		RecordedAt: core.Now(),
	}
}

// ventilationResponse rises gently with power below the break and three
// times as steeply above it.
func ventilationResponse(powerW, breakW float64) float64 {
	const base, below, above = 20.0, 0.10, 0.30
	if powerW <= breakW {
		return base + below*powerW
	}
	return base + below*breakW + above*(powerW-breakW)
}

// smo2Response declines slowly below the break and sharply above it.
func smo2Response(powerW, breakW float64) float64 {
	const base, below, above = 72.0, 0.02, 0.10
	if powerW <= breakW {
		return base - below*powerW
	}
	return base - below*breakW - above*(powerW-breakW)
}

// BreakpointSeries builds an (x, y) pair with a known slope break at the
// given x fraction, for exercising a single detection method in isolation.
func BreakpointSeries(n int, breakFrac, slope1, slope2, noise float64, seed int64) (xs, ys []float64) {
	rng := rand.New(rand.NewSource(seed))
	breakIdx := int(breakFrac * float64(n))
	xs = make([]float64, n)
	ys = make([]float64, n)
	y := 10.0
	for i := 0; i < n; i++ {
		xs[i] = float64(i)
		slope := slope1
		if i >= breakIdx {
			slope = slope2
		}
		y += slope
		ys[i] = y + noise*rng.NormFloat64()
	}
	return xs, ys
}

// HyperbolicEfforts produces maximal efforts lying exactly on the
// power-duration hyperbola P = CP + W'/t.
func HyperbolicEfforts(cp, wPrime float64, durations []float64) []analysis.Effort {
	out := make([]analysis.Effort, 0, len(durations))
	for _, d := range durations {
		out = append(out, analysis.Effort{DurationS: d, PowerW: cp + wPrime/d})
	}
	return out
}

// ShortSession builds a session below any plausible minimum duration.
func ShortSession() *session.Session {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 150
	}
	return &session.Session{
		ID:         core.SessionID(core.NewID()),
		Protocol:   session.ProtocolStep,
		Channels:   []session.Channel{channelFrom(session.KindPower, values, 1)},
		RecordedAt: core.Now(),
	}
}

// WithGap returns a copy of the session whose channels drop all samples in
// [startS, endS), simulating a recording dropout.
func WithGap(sess *session.Session, startS, endS float64) *session.Session {
	out := sess.Clone()
	for ci := range out.Channels {
		kept := out.Channels[ci].Samples[:0]
		for _, s := range out.Channels[ci].Samples {
			if s.T < startS || s.T >= endS {
				kept = append(kept, s)
			}
		}
		out.Channels[ci].Samples = kept
	}
	return out
}

func channelFrom(kind session.Kind, values []float64, dtS float64) session.Channel {
	samples := make([]session.Sample, len(values))
	for i, v := range values {
		samples[i] = session.Sample{T: float64(i) * dtS, Value: v}
	}
	return session.Channel{Kind: kind, Samples: samples}
}

// Sawtooth is a convenience for gap/noise tests: a power trace oscillating
// around a mean with the given amplitude and period.
func Sawtooth(n int, mean, amplitude float64, periodS int) []float64 {
	out := make([]float64, n)
	for i := range out {
		phase := float64(i%periodS) / float64(periodS)
		out[i] = mean + amplitude*(2*math.Abs(2*phase-1)-1)
	}
	return out
}
