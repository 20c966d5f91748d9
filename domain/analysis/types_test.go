package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewThresholdEstimateValidatesBounds(t *testing.T) {
	methods := []MethodName{MethodSlopeChange}

	est, err := NewThresholdEstimate(VT1, 200, 190, 210, "W", methods, 85, 80, 60)
	require.NoError(t, err)
	assert.Equal(t, ConfidenceHigh, est.Level)
	assert.False(t, est.Degenerate)

	_, err = NewThresholdEstimate(VT1, 200, 205, 210, "W", methods, 85, 80, 60)
	assert.Error(t, err, "lower above point")

	_, err = NewThresholdEstimate(VT1, 215, 190, 210, "W", methods, 85, 80, 60)
	assert.Error(t, err, "point above upper")

	_, err = NewThresholdEstimate(VT1, 200, 190, 210, "W", methods, 101, 80, 60)
	assert.Error(t, err, "score above 100")

	_, err = NewThresholdEstimate(VT1, 200, 190, 210, "W", nil, 85, 80, 60)
	assert.Error(t, err, "no methods")
}

func TestNewThresholdEstimateFlagsDegenerateRange(t *testing.T) {
	est, err := NewThresholdEstimate(LT2, 200, 200, 200, "W", []MethodName{MethodCurvature}, 50, 80, 60)
	require.NoError(t, err)
	assert.True(t, est.Degenerate)
	assert.Equal(t, ConfidenceLow, est.Level)
}

func TestValidationReportFatalAndWarnings(t *testing.T) {
	report := ValidationReport{
		Findings: []ValidationFinding{
			{Rule: RuleDuration, Severity: SeverityFatal},
			{Rule: RuleDataGaps, Severity: SeverityWarning},
			{Rule: RuleCadence, Severity: SeverityWarning},
		},
	}
	assert.True(t, report.Fatal())
	assert.Len(t, report.Warnings(), 2)

	clean := ValidationReport{}
	assert.False(t, clean.Fatal())
	assert.Empty(t, clean.Warnings())
}
