package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ramplab/domain/analysis"
	"ramplab/internal/config"
	"ramplab/internal/signal"
	"ramplab/internal/testkit"
)

func cleanStepSession() testkit.SessionSpec {
	return testkit.SessionSpec{
		Steps: []testkit.StepSpec{
			{PowerW: 100, DurationS: 80},
			{PowerW: 150, DurationS: 80},
			{PowerW: 200, DurationS: 80},
			{PowerW: 250, DurationS: 80},
			{PowerW: 300, DurationS: 80},
		},
		WithCadence: true,
		Seed:        1,
	}
}

func TestValidateCleanSession(t *testing.T) {
	cfg := config.DefaultAnalysis()
	sess := testkit.StepSession(cleanStepSession())

	report := Validate(sess, cfg)

	assert.True(t, report.Passed)
	assert.False(t, report.Fatal())
	assert.Equal(t, analysis.StatusValid, report.Status)
	assert.Equal(t, 100.0, report.QualityScore)
	assert.Empty(t, report.Findings)
}

func TestValidateShortSessionIsFatal(t *testing.T) {
	cfg := config.DefaultAnalysis()
	sess := testkit.ShortSession()

	report := Validate(sess, cfg)

	assert.False(t, report.Passed)
	assert.True(t, report.Fatal())

	var durationFinding *analysis.ValidationFinding
	for i, f := range report.Findings {
		if f.Rule == analysis.RuleDuration {
			durationFinding = &report.Findings[i]
		}
	}
	require.NotNil(t, durationFinding)
	assert.Equal(t, analysis.SeverityFatal, durationFinding.Severity)
}

func TestValidateMissingPowerIsFatal(t *testing.T) {
	cfg := config.DefaultAnalysis()
	sess := testkit.StepSession(cleanStepSession())
	sess.Channels = sess.Channels[1:] // drop the power channel

	report := Validate(sess, cfg)
	assert.False(t, report.Passed)
	assert.True(t, report.Fatal())
}

func TestValidatePowerDropIsFatal(t *testing.T) {
	cfg := config.DefaultAnalysis()
	spec := cleanStepSession()
	// A mid-test drop of 50 W between steps breaks monotonicity well beyond
	// the tolerance.
	spec.Steps[2].PowerW = 100

	report := Validate(testkit.StepSession(spec), cfg)

	assert.True(t, report.Fatal())
	found := false
	for _, f := range report.Findings {
		if f.Rule == analysis.RuleMonotonicity && f.Severity == analysis.SeverityFatal {
			found = true
		}
	}
	assert.True(t, found, "expected a fatal monotonicity finding")
}

func TestValidateGapWarning(t *testing.T) {
	cfg := config.DefaultAnalysis()
	sess := testkit.WithGap(testkit.StepSession(cleanStepSession()), 100, 108)

	report := Validate(sess, cfg)

	// An 8 s dropout warns but does not invalidate the session.
	assert.True(t, report.Passed)
	assert.False(t, report.Fatal())
	assert.NotEqual(t, analysis.StatusValid, report.Status)

	found := false
	for _, f := range report.Findings {
		if f.Rule == analysis.RuleDataGaps {
			found = true
			assert.Equal(t, analysis.SeverityWarning, f.Severity)
		}
	}
	assert.True(t, found)
}

func TestValidateExcessiveGapsAreFatal(t *testing.T) {
	cfg := config.DefaultAnalysis()
	sess := testkit.StepSession(cleanStepSession())
	// Punch out enough of the recording to exceed the cumulative gap fraction.
	for _, start := range []float64{60, 140, 220, 300} {
		sess = testkit.WithGap(sess, start, start+15)
	}

	report := Validate(sess, cfg)
	assert.True(t, report.Fatal())
}

func TestValidateUnstableCadenceWarns(t *testing.T) {
	cfg := config.DefaultAnalysis()
	sess := testkit.StepSession(cleanStepSession())

	// Replace cadence with an out-of-range trace.
	for ci := range sess.Channels {
		if sess.Channels[ci].Kind == "cadence" {
			for i := range sess.Channels[ci].Samples {
				sess.Channels[ci].Samples[i].Value = 40
			}
		}
	}

	report := Validate(sess, cfg)
	assert.True(t, report.Passed) // cadence findings are never fatal

	found := false
	for _, f := range report.Findings {
		if f.Rule == analysis.RuleCadence {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSegmentStepsCleanStaircase(t *testing.T) {
	sess := testkit.StepSession(cleanStepSession())
	power, ok := sess.Channel("power")
	require.True(t, ok)

	steps := SegmentSteps(power.Times(), power.Values(), 1.0)
	require.Len(t, steps, 5)

	for i := 1; i < len(steps); i++ {
		assert.Greater(t, steps[i].MedianW, steps[i-1].MedianW)
		assert.GreaterOrEqual(t, steps[i].DurationS, 30.0)
	}
	assert.InDelta(t, 100, steps[0].MedianW, 1)
	assert.InDelta(t, 300, steps[4].MedianW, 1)
}

func TestSegmentStepsUsesSampleRate(t *testing.T) {
	cfg := config.DefaultAnalysis()
	cfg.TargetRateHz = 2
	spec := testkit.SessionSpec{
		Steps: []testkit.StepSpec{
			{PowerW: 120, DurationS: 162.5},
			{PowerW: 170, DurationS: 162.5},
			{PowerW: 220, DurationS: 162.5},
			{PowerW: 270, DurationS: 162.5},
		},
		RateHz: 2,
		Seed:   4,
	}
	sess := testkit.StepSession(spec)
	power, ok := sess.Channel("power")
	require.True(t, ok)

	cond, err := signal.Condition(power, cfg)
	require.NoError(t, err)

	// 1300 samples at 2 Hz span 650 s; durations must come from the clock,
	// not the sample count.
	steps := SegmentSteps(cond.Times, cond.Raw, cfg.TargetRateHz)
	require.Len(t, steps, 4)
	for _, s := range steps {
		// Boundary placement lags the true edge by up to half the smoothing
		// window; the interior steps are exact.
		assert.InDelta(t, 162.5, s.DurationS, 20)
	}
	assert.InDelta(t, 162.5, steps[1].DurationS, 5)
	assert.InDelta(t, 162.5, steps[2].DurationS, 5)
	assert.InDelta(t, 650, steps[3].EndS, 2)

	report := Validate(sess, cfg)
	assert.True(t, report.Passed)
}

func TestSegmentStepsTooShort(t *testing.T) {
	assert.Nil(t, SegmentSteps([]float64{0, 1, 2}, []float64{100, 100, 100}, 1.0))
}

func TestQualityScoreWeights(t *testing.T) {
	all := map[analysis.Rule]bool{
		analysis.RuleDuration:     true,
		analysis.RuleStepCount:    true,
		analysis.RuleMonotonicity: true,
		analysis.RuleDataGaps:     true,
		analysis.RuleCadence:      true,
		analysis.RulePowerCV:      true,
	}
	assert.Equal(t, 100.0, qualityScore(all))

	all[analysis.RuleMonotonicity] = false
	assert.Equal(t, 75.0, qualityScore(all))

	all[analysis.RuleCadence] = false
	assert.Equal(t, 65.0, qualityScore(all))
}
