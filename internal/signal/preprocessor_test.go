package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ramplab/domain/core"
	"ramplab/domain/session"
	"ramplab/internal/config"
)

func channelAt(kind session.Kind, times, values []float64) session.Channel {
	samples := make([]session.Sample, len(times))
	for i := range times {
		samples[i] = session.Sample{T: times[i], Value: values[i]}
	}
	return session.Channel{Kind: kind, Samples: samples}
}

func rampChannel(n int, dt float64) session.Channel {
	times := make([]float64, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		times[i] = float64(i) * dt
		values[i] = 100 + float64(i)
	}
	return channelAt(session.KindPower, times, values)
}

func TestConditionResamplesToCommonRate(t *testing.T) {
	cfg := config.DefaultAnalysis()

	// 2 Hz input resampled onto the 1 Hz grid.
	cond, err := Condition(rampChannel(200, 0.5), cfg)
	require.NoError(t, err)

	require.Greater(t, cond.Len(), cfg.MinSamples)
	for i := 1; i < cond.Len(); i++ {
		assert.InDelta(t, 1.0, cond.Times[i]-cond.Times[i-1], 1e-9)
	}
	assert.Len(t, cond.Raw, cond.Len())
	assert.Len(t, cond.Smooth, cond.Len())
	assert.Empty(t, cond.Breaks)
}

func TestConditionInterpolatesShortGaps(t *testing.T) {
	cfg := config.DefaultAnalysis()

	// Linear signal with a 4 s hole, well under the gap tolerance.
	var times, values []float64
	for i := 0; i < 60; i++ {
		if i > 20 && i < 25 {
			continue
		}
		times = append(times, float64(i))
		values = append(values, float64(i)*2)
	}

	cond, err := Condition(channelAt(session.KindPower, times, values), cfg)
	require.NoError(t, err)
	assert.Empty(t, cond.Breaks)

	// The hole is filled by interpolation of the surrounding line.
	for i, tm := range cond.Times {
		assert.InDelta(t, tm*2, cond.Raw[i], 1e-9)
	}
}

func TestConditionMarksLongGapsAsBreaks(t *testing.T) {
	cfg := config.DefaultAnalysis()

	var times, values []float64
	for i := 0; i < 120; i++ {
		if i >= 50 && i < 80 { // 30 s dropout, above the 10 s tolerance
			continue
		}
		times = append(times, float64(i))
		values = append(values, 200)
	}

	cond, err := Condition(channelAt(session.KindPower, times, values), cfg)
	require.NoError(t, err)
	require.Len(t, cond.Breaks, 1)
	assert.InDelta(t, 49, cond.Breaks[0].StartS, 1e-9)
	assert.InDelta(t, 80, cond.Breaks[0].EndS, 1e-9)

	// No grid point may land inside the break.
	for _, tm := range cond.Times {
		assert.False(t, tm > cond.Breaks[0].StartS && tm < cond.Breaks[0].EndS,
			"grid point %.1f inside break", tm)
	}
	assert.Len(t, cond.Segments(), 2)
}

func TestConditionRejectsShortChannels(t *testing.T) {
	cfg := config.DefaultAnalysis()

	_, err := Condition(rampChannel(10, 1.0), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestConditionRejectsNonMonotonicTimes(t *testing.T) {
	cfg := config.DefaultAnalysis()
	ch := channelAt(session.KindPower,
		[]float64{0, 1, 2, 2, 3},
		[]float64{1, 2, 3, 4, 5})

	_, err := Condition(ch, cfg)
	assert.ErrorIs(t, err, core.ErrNonMonotonicTime)
}

func TestDetectGaps(t *testing.T) {
	times := []float64{0, 1, 2, 10, 11, 30}

	gaps := DetectGaps(times, 5)
	require.Len(t, gaps, 2)
	assert.Equal(t, Gap{StartS: 2, EndS: 10, LengthS: 8}, gaps[0])
	assert.Equal(t, Gap{StartS: 11, EndS: 30, LengthS: 19}, gaps[1])

	assert.Empty(t, DetectGaps(times, 20))
}

func TestMovingAveragePreservesConstants(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5, 5, 5, 5}

	out := MovingAverage(values, 5)
	require.Len(t, out, len(values))
	for _, v := range out {
		assert.InDelta(t, 5, v, 1e-12)
	}
}

func TestMovingAverageSmallSpanIsIdentity(t *testing.T) {
	values := []float64{1, 2, 3}
	assert.Equal(t, values, MovingAverage(values, 1))
}

func TestGradientOfLine(t *testing.T) {
	values := []float64{0, 2, 4, 6, 8}

	grad := Gradient(values, 1.0)
	require.Len(t, grad, 5)
	for _, g := range grad {
		assert.InDelta(t, 2, g, 1e-12)
	}
}
