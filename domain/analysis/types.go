package analysis

import (
	"fmt"

	"ramplab/domain/core"
)

// AlgorithmVersion identifies the detection/fitting algorithm revision
// recorded in every result for provenance.
const AlgorithmVersion = "1.3.0"

// ============================================================================
// VALIDATION
// ============================================================================

// Severity classifies a validation finding.
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityWarning Severity = "warning"
)

// Rule identifies which data-quality rule produced a finding.
type Rule string

const (
	RuleDuration     Rule = "duration"
	RuleStepCount    Rule = "steps_count"
	RuleMonotonicity Rule = "monotonicity"
	RuleDataGaps     Rule = "data_gaps"
	RuleCadence      Rule = "cadence"
	RulePowerCV      Rule = "power_stability"
)

// ValidationFinding is one rule outcome with the measured value that
// triggered it.
type ValidationFinding struct {
	Rule     Rule     `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Measured float64  `json:"measured_value"`
}

// ValidationStatus buckets overall session quality.
type ValidationStatus string

const (
	StatusValid       ValidationStatus = "valid"
	StatusConditional ValidationStatus = "conditional"
	StatusInvalid     ValidationStatus = "invalid"
)

// ValidationReport is the session-level acceptability gate result. A session
// with any fatal finding must not proceed to detection; warnings attach as
// caveats to later results.
type ValidationReport struct {
	Passed       bool                `json:"passed"`
	Status       ValidationStatus    `json:"status"`
	QualityScore float64             `json:"quality_score"` // 0-100, criteria-weighted
	Findings     []ValidationFinding `json:"findings"`
}

// Fatal reports whether any finding is fatal.
func (r ValidationReport) Fatal() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

// Warnings returns the non-fatal findings.
func (r ValidationReport) Warnings() []ValidationFinding {
	out := make([]ValidationFinding, 0, len(r.Findings))
	for _, f := range r.Findings {
		if f.Severity == SeverityWarning {
			out = append(out, f)
		}
	}
	return out
}

// ============================================================================
// THRESHOLDS
// ============================================================================

// ThresholdName identifies a physiological threshold.
type ThresholdName string

const (
	VT1 ThresholdName = "VT1" // first ventilatory threshold
	VT2 ThresholdName = "VT2" // second ventilatory threshold
	LT1 ThresholdName = "LT1" // first SmO2-derived threshold
	LT2 ThresholdName = "LT2" // second SmO2-derived threshold
)

// MethodName tags one detection strategy. The set is closed: the method list
// is domain-fixed, not a plugin registry.
type MethodName string

const (
	MethodSlopeChange MethodName = "slope_change"
	MethodVSlope      MethodName = "v_slope"
	MethodCurvature   MethodName = "curvature"
)

// ConfidenceLevel is the categorical bucket for a confidence score.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// LevelForScore maps a 0-100 score onto a level given the high/medium cutoffs.
func LevelForScore(score, high, medium float64) ConfidenceLevel {
	switch {
	case score >= high:
		return ConfidenceHigh
	case score >= medium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ThresholdEstimate is an adjudicated threshold with an uncertainty range.
// INVARIANTS:
// - Lower <= Point <= Upper
// - Score in [0, 100]
// - Lower == Upper == Point only when Degenerate is set
type ThresholdEstimate struct {
	Name       ThresholdName   `json:"name"`
	Point      float64         `json:"point_value"`
	Lower      float64         `json:"lower_bound"`
	Upper      float64         `json:"upper_bound"`
	Unit       string          `json:"unit"`
	Methods    []MethodName    `json:"detection_methods"` // methods that agreed
	Score      float64         `json:"confidence_score"`  // 0-100
	Level      ConfidenceLevel `json:"confidence_level"`
	Degenerate bool            `json:"degenerate,omitempty"` // zero-width range
}

// NewThresholdEstimate validates estimate invariants.
func NewThresholdEstimate(name ThresholdName, point, lower, upper float64, unit string,
	methods []MethodName, score float64, high, medium float64) (ThresholdEstimate, error) {

	if lower > point || point > upper {
		return ThresholdEstimate{}, fmt.Errorf("threshold %s bounds out of order: %.2f <= %.2f <= %.2f",
			name, lower, point, upper)
	}
	if score < 0 || score > 100 {
		return ThresholdEstimate{}, fmt.Errorf("threshold %s confidence %.2f outside [0,100]", name, score)
	}
	if len(methods) == 0 {
		return ThresholdEstimate{}, fmt.Errorf("threshold %s has no detection methods", name)
	}
	return ThresholdEstimate{
		Name:       name,
		Point:      point,
		Lower:      lower,
		Upper:      upper,
		Unit:       unit,
		Methods:    methods,
		Score:      score,
		Level:      LevelForScore(score, high, medium),
		Degenerate: lower == upper,
	}, nil
}

// UndetectedNote records a threshold no method could find. Distinct from a
// low-confidence detection: nothing is fabricated.
type UndetectedNote struct {
	Name   ThresholdName `json:"name"`
	Reason string        `json:"reason"`
}

// ============================================================================
// CRITICAL POWER
// ============================================================================

// Effort is one maximal effort: best average power held for a duration.
type Effort struct {
	DurationS float64 `json:"duration_s"`
	PowerW    float64 `json:"power_w"`
}

// EffortResidual is the fit residual for one input effort, in joules.
type EffortResidual struct {
	Effort   Effort  `json:"effort"`
	Residual float64 `json:"residual_j"`
}

// ResidualStats summarizes fit residuals.
type ResidualStats struct {
	MeanAbs float64 `json:"mean_abs"`
	Max     float64 `json:"max"`
	RMSE    float64 `json:"rmse"`
}

// CPModelResult holds CP/W' from the linearized hyperbolic power-duration fit.
// INVARIANT: CP > 0 and W' >= 0 unless Degenerate is set; a degenerate fit
// keeps the raw regression numbers for diagnostics instead of discarding them.
type CPModelResult struct {
	CP            float64          `json:"cp_w"`
	WPrime        float64          `json:"w_prime_j"`
	CPLower       float64          `json:"cp_lower_w"` // 95% CI
	CPUpper       float64          `json:"cp_upper_w"`
	RSquared      float64          `json:"r_squared"`
	Residuals     []EffortResidual `json:"residuals"`
	ResidualStats ResidualStats    `json:"residual_stats"`
	Inputs        []Effort         `json:"inputs_used"`
	Degenerate    bool             `json:"degenerate_fit"`
}

// ============================================================================
// AGGREGATE RESULT
// ============================================================================

// SessionMetrics carries supplemental whole-session metrics. All optional;
// a zero field means the source channel was absent.
type SessionMetrics struct {
	DurationS       float64 `json:"duration_s"`
	AvgPowerW       float64 `json:"avg_power_w"`
	NormalizedW     float64 `json:"normalized_power_w"`
	WorkKJ          float64 `json:"work_kj"`
	VO2MaxEst       float64 `json:"vo2max_est,omitempty"`       // ml/kg/min
	VO2MaxCI95      float64 `json:"vo2max_ci95,omitempty"`      // +/- ml/kg/min
	VO2MaxWeightPct float64 `json:"vo2max_weight_pct,omitempty"` // confidence weight 0-100
	TDI             float64 `json:"tdi_pct,omitempty"`
	TDIClass        string  `json:"tdi_class,omitempty"`
}

// Provenance identifies exactly which inputs and algorithms produced a result.
type Provenance struct {
	SessionID          core.SessionID          `json:"session_id"`
	SessionFingerprint core.SessionFingerprint `json:"session_fingerprint"`
	ConfigHash         core.ConfigHash         `json:"config_hash"`
	AlgorithmVersion   string                  `json:"algorithm_version"`
}

// AnalysisResult aggregates everything one analysis invocation produced.
// Created once per invocation and never mutated afterwards; downstream
// consumers treat it as a value. Carries no wall-clock state, so repeated
// runs over the same inputs serialize byte-identically.
type AnalysisResult struct {
	ID         core.AnalysisID     `json:"id"`
	Provenance Provenance          `json:"provenance"`
	Validation ValidationReport    `json:"validation"`
	Thresholds []ThresholdEstimate `json:"thresholds"`
	Undetected []UndetectedNote    `json:"undetected,omitempty"`
	CP         *CPModelResult      `json:"cp_model,omitempty"`
	Metrics    *SessionMetrics     `json:"metrics,omitempty"`
}
