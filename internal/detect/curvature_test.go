package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ramplab/domain/analysis"
	"ramplab/internal/config"
	"ramplab/internal/testkit"
)

func TestCurvatureFindsSlopeKnee(t *testing.T) {
	cfg := config.DefaultAnalysis()
	xs, ys := testkit.BreakpointSeries(300, 0.5, 0.1, 1.0, 0, 7)

	candidates := NewCurvature().Detect(pairFrom(xs, ys, analysis.VT1), cfg)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, analysis.MethodCurvature, c.Method)
	assert.InDelta(t, 150, c.Point, 20)
	// The plateau must cover the true knee, not just bracket the estimate.
	assert.LessOrEqual(t, c.Lower, 150.0)
	assert.GreaterOrEqual(t, c.Upper, 150.0)
	assert.Greater(t, c.Upper, c.Lower, "a slope-difference knee has nonzero plateau width")
}

func TestCurvaturePlateauCoversKneeUnderNoise(t *testing.T) {
	cfg := config.DefaultAnalysis()
	// A higher floor keeps measurement noise from promoting flank wiggles
	// into peaks of their own.
	cfg.MinCurvature = 0.8
	xs, ys := testkit.BreakpointSeries(300, 0.5, 0.1, 1.0, 0.3, 7)

	candidates := NewCurvature().Detect(pairFrom(xs, ys, analysis.VT1), cfg)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.InDelta(t, 150, c.Point, 20)
	assert.LessOrEqual(t, c.Lower, 150.0)
	assert.GreaterOrEqual(t, c.Upper, 150.0)
}

func TestCurvatureIgnoresGentleBends(t *testing.T) {
	cfg := config.DefaultAnalysis()
	// Slope barely changes; the normalized curvature stays under the floor.
	xs, ys := testkit.BreakpointSeries(300, 0.5, 0.48, 0.52, 0, 7)

	assert.Empty(t, NewCurvature().Detect(pairFrom(xs, ys, analysis.VT1), cfg))
}

func TestCurvatureFlatSignal(t *testing.T) {
	cfg := config.DefaultAnalysis()
	n := 200
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
		ys[i] = 42
	}

	assert.Empty(t, NewCurvature().Detect(pairFrom(xs, ys, analysis.VT1), cfg))
}

func TestCurvatureTooFewSamples(t *testing.T) {
	cfg := config.DefaultAnalysis()
	xs, ys := testkit.BreakpointSeries(8, 0.5, 0.1, 1.0, 0, 7)
	assert.Empty(t, NewCurvature().Detect(pairFrom(xs, ys, analysis.VT1), cfg))
}

func TestNormalize(t *testing.T) {
	out, ok := normalize([]float64{10, 20, 30})
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0.5, 1}, out)

	_, ok = normalize([]float64{5, 5, 5})
	assert.False(t, ok)
}

func TestMethodsAreClosedSet(t *testing.T) {
	methods := Methods()
	require.Len(t, methods, 3)

	names := map[analysis.MethodName]bool{}
	for _, m := range methods {
		names[m.Name()] = true
	}
	assert.True(t, names[analysis.MethodSlopeChange])
	assert.True(t, names[analysis.MethodVSlope])
	assert.True(t, names[analysis.MethodCurvature])
}
