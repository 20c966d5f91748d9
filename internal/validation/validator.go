package validation

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"ramplab/domain/analysis"
	"ramplab/domain/session"
	"ramplab/internal/config"
	"ramplab/internal/signal"
)

// criterionWeight drives the weighted quality score. Weights sum to 1 and
// come from the established criteria table for ramp test acceptance.
var criterionWeight = map[analysis.Rule]float64{
	analysis.RuleDuration:     0.15,
	analysis.RuleStepCount:    0.20,
	analysis.RuleMonotonicity: 0.25,
	analysis.RuleDataGaps:     0.15,
	analysis.RuleCadence:      0.10,
	analysis.RulePowerCV:      0.15,
}

// Validate runs every data-quality rule against the session and produces the
// acceptability gate report. Pure function of session and configuration:
// identical inputs always yield identical findings.
func Validate(sess *session.Session, cfg config.Analysis) analysis.ValidationReport {
	var findings []analysis.ValidationFinding
	passed := map[analysis.Rule]bool{
		analysis.RuleDuration:     true,
		analysis.RuleStepCount:    true,
		analysis.RuleMonotonicity: true,
		analysis.RuleDataGaps:     true,
		analysis.RuleCadence:      true,
		analysis.RulePowerCV:      true,
	}
	fail := func(rule analysis.Rule, sev analysis.Severity, measured float64, format string, args ...interface{}) {
		passed[rule] = false
		findings = append(findings, analysis.ValidationFinding{
			Rule:     rule,
			Severity: sev,
			Message:  fmt.Sprintf(format, args...),
			Measured: measured,
		})
	}

	duration := sess.Duration()
	if duration < cfg.MinDurationS {
		fail(analysis.RuleDuration, analysis.SeverityFatal, duration,
			"test too short (%.1f min), minimum %.0f minutes", duration/60, cfg.MinDurationS/60)
	} else if duration > cfg.MaxDurationS {
		fail(analysis.RuleDuration, analysis.SeverityWarning, duration,
			"test unusually long (%.1f min), check protocol", duration/60)
	}

	power, hasPower := sess.Channel(session.KindPower)
	var steps []Step
	if hasPower && len(power.Samples) > 0 {
		// Segmentation and the windowed rules need the uniform grid; raw
		// channels record at their own rates.
		cond, err := signal.Condition(power, cfg)
		if err != nil {
			fail(analysis.RuleStepCount, analysis.SeverityFatal, float64(len(power.Samples)),
				"power channel unusable: %v", err)
		} else {
			steps = SegmentSteps(cond.Times, cond.Raw, cfg.TargetRateHz)
			validateSteps(sess, steps, cfg, fail)
			validateMonotonicity(steps, cfg, fail)
			validatePowerStability(steps, cfg, fail)
		}
		validateGaps(power.Times(), duration, cfg, fail)
	} else {
		fail(analysis.RuleStepCount, analysis.SeverityFatal, 0, "no power data, analysis not possible")
	}

	if cad, ok := sess.Channel(session.KindCadence); ok && len(cad.Samples) > 1 {
		validateCadence(cad, steps, cfg, fail)
	}

	score := qualityScore(passed)
	status := analysis.StatusInvalid
	allPassed := true
	for _, ok := range passed {
		allPassed = allPassed && ok
	}
	switch {
	case score >= 80 && allPassed:
		status = analysis.StatusValid
	case score >= 50:
		status = analysis.StatusConditional
	}

	fatal := false
	for _, f := range findings {
		if f.Severity == analysis.SeverityFatal {
			fatal = true
		}
	}

	return analysis.ValidationReport{
		Passed:       !fatal,
		Status:       status,
		QualityScore: score,
		Findings:     findings,
	}
}

type failFunc func(rule analysis.Rule, sev analysis.Severity, measured float64, format string, args ...interface{})

func validateSteps(sess *session.Session, steps []Step, cfg config.Analysis, fail failFunc) {
	if sess.Protocol != session.ProtocolStep {
		return
	}
	n := len(steps)
	if n < cfg.MinSteps {
		fail(analysis.RuleStepCount, analysis.SeverityFatal, float64(n),
			"only %d distinct steps detected, minimum %d for a reliable analysis", n, cfg.MinSteps)
	} else if n > cfg.MaxSteps {
		fail(analysis.RuleStepCount, analysis.SeverityWarning, float64(n),
			"%d steps detected, above the expected maximum %d", n, cfg.MaxSteps)
	}
}

func validateMonotonicity(steps []Step, cfg config.Analysis, fail failFunc) {
	worst := 0.0 // most negative step-to-step median change
	for i := 1; i < len(steps); i++ {
		if d := steps[i].MedianW - steps[i-1].MedianW; d < worst {
			worst = d
		}
	}
	switch {
	case worst < -cfg.MonotonicityTolW:
		fail(analysis.RuleMonotonicity, analysis.SeverityFatal, -worst,
			"power drops %.0f W across step boundary, beyond %.0f W tolerance", -worst, cfg.MonotonicityTolW)
	case worst < 0:
		fail(analysis.RuleMonotonicity, analysis.SeverityWarning, -worst,
			"power dips %.0f W across a step boundary", -worst)
	}
}

func validatePowerStability(steps []Step, cfg config.Analysis, fail failFunc) {
	if len(steps) == 0 {
		return
	}
	cvs := make([]float64, 0, len(steps))
	for _, s := range steps {
		cvs = append(cvs, s.CV)
	}
	meanCV, _ := stats.Mean(cvs)
	if meanCV > cfg.StepPowerCVMax {
		fail(analysis.RulePowerCV, analysis.SeverityWarning, meanCV,
			"high within-step power variability (%.1f%% CV), may reduce accuracy", meanCV*100)
	}
}

func validateGaps(times []float64, duration float64, cfg config.Analysis, fail failFunc) {
	gaps := signal.DetectGaps(times, cfg.MaxGapS)
	total := 0.0
	for _, g := range gaps {
		total += g.LengthS
		fail(analysis.RuleDataGaps, analysis.SeverityWarning, g.LengthS,
			"data gap of %.0f s at %.0f s", g.LengthS, g.StartS)
	}
	if duration > 0 && total/duration > cfg.MaxGapFraction {
		fail(analysis.RuleDataGaps, analysis.SeverityFatal, total/duration,
			"gaps cover %.0f%% of the session, above the %.0f%% limit",
			100*total/duration, 100*cfg.MaxGapFraction)
	}
}

func validateCadence(cad session.Channel, steps []Step, cfg config.Analysis, fail failFunc) {
	values := cad.Values()

	inRange := 0
	for _, v := range values {
		if v >= cfg.CadenceMinRPM && v <= cfg.CadenceMaxRPM {
			inRange++
		}
	}
	frac := float64(inRange) / float64(len(values))
	if frac < 0.8 {
		fail(analysis.RuleCadence, analysis.SeverityWarning, frac,
			"cadence outside %.0f-%.0f rpm for %.0f%% of the test",
			cfg.CadenceMinRPM, cfg.CadenceMaxRPM, 100*(1-frac))
	}

	// CV only over steady-state segments so transitions don't inflate it.
	cv := steadyStateCV(cad, steps)
	if cv > cfg.CadenceCVMax {
		fail(analysis.RuleCadence, analysis.SeverityWarning, cv,
			"unstable cadence during steps (%.1f%% CV)", cv*100)
	}
}

// steadyStateCV computes cadence CV restricted to detected power plateaus,
// matched by timestamp so the cadence channel may record at any rate.
// Falls back to the whole channel when no steps were found.
func steadyStateCV(cad session.Channel, steps []Step) float64 {
	values := cad.Values()
	times := cad.Times()
	var steady []float64
	for _, s := range steps {
		for i, t := range times {
			if t >= s.StartS && t < s.EndS {
				steady = append(steady, values[i])
			}
		}
	}
	if len(steady) < 2 {
		steady = values
	}
	mean, _ := stats.Mean(steady)
	if mean <= 0 || math.IsNaN(mean) {
		return 0
	}
	sd, _ := stats.StandardDeviation(steady)
	return sd / mean
}

func qualityScore(passed map[analysis.Rule]bool) float64 {
	totalWeight, score := 0.0, 0.0
	for rule, ok := range passed {
		w := criterionWeight[rule]
		totalWeight += w
		if ok {
			score += w
		}
	}
	if totalWeight == 0 {
		return 0
	}
	return math.Round(score/totalWeight*1000) / 10
}
