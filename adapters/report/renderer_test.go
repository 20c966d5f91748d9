package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ramplab/domain/analysis"
	"ramplab/domain/core"
	"ramplab/domain/session"
)

func sampleResult() (*session.Session, *analysis.AnalysisResult) {
	sess := &session.Session{
		ID:       core.SessionID("sess-1"),
		Protocol: session.ProtocolStep,
	}
	result := &analysis.AnalysisResult{
		ID: core.AnalysisID("analysis-1"),
		Provenance: analysis.Provenance{
			SessionID:        sess.ID,
			AlgorithmVersion: analysis.AlgorithmVersion,
		},
		Validation: analysis.ValidationReport{
			Passed:       true,
			Status:       analysis.StatusValid,
			QualityScore: 100,
		},
		Thresholds: []analysis.ThresholdEstimate{{
			Name: analysis.VT1, Point: 245, Lower: 230, Upper: 260, Unit: "W",
			Methods: []analysis.MethodName{analysis.MethodSlopeChange, analysis.MethodVSlope},
			Score:   82, Level: analysis.ConfidenceHigh,
		}},
		Undetected: []analysis.UndetectedNote{{
			Name: analysis.VT2, Reason: "0 of 3 methods detected a candidate",
		}},
		CP: &analysis.CPModelResult{
			CP: 260, WPrime: 21000, CPLower: 250, CPUpper: 270, RSquared: 0.997,
			Inputs: []analysis.Effort{{DurationS: 300, PowerW: 330}, {DurationS: 1200, PowerW: 277.5}},
		},
		Metrics: &analysis.SessionMetrics{
			DurationS: 1500, AvgPowerW: 230, NormalizedW: 238, WorkKJ: 345,
		},
	}
	return sess, result
}

func TestRenderMarkdown(t *testing.T) {
	sess, result := sampleResult()

	md, err := NewRenderer().RenderMarkdown(sess, result)
	require.NoError(t, err)
	text := string(md)

	assert.Contains(t, text, "# Session Analysis Report")
	assert.Contains(t, text, "sess-1")
	assert.Contains(t, text, "## Thresholds")
	assert.Contains(t, text, "VT1")
	assert.Contains(t, text, "VT2 not detected")
	assert.Contains(t, text, "## Critical Power")
	assert.Contains(t, text, "260 W")
	assert.Contains(t, text, "## Session Metrics")
}

func TestRenderMarkdownFatalValidation(t *testing.T) {
	sess, result := sampleResult()
	result.Validation = analysis.ValidationReport{
		Passed: false,
		Status: analysis.StatusInvalid,
		Findings: []analysis.ValidationFinding{{
			Rule: analysis.RuleDuration, Severity: analysis.SeverityFatal,
			Message: "test too short", Measured: 90,
		}},
	}
	result.Thresholds = nil
	result.CP = nil
	result.Metrics = nil

	md, err := NewRenderer().RenderMarkdown(sess, result)
	require.NoError(t, err)
	text := string(md)

	assert.Contains(t, text, "test too short")
	assert.Contains(t, text, "failed data-quality validation")
	assert.NotContains(t, text, "## Thresholds")
}

func TestRenderHTML(t *testing.T) {
	sess, result := sampleResult()

	page, err := NewRenderer().RenderHTML(sess, result)
	require.NoError(t, err)
	html := string(page)

	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "Session Analysis Report")
	assert.Contains(t, html, "<table")
}
