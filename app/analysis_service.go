package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"ramplab/domain/analysis"
	"ramplab/domain/core"
	"ramplab/domain/session"
	"ramplab/internal"
	"ramplab/internal/confidence"
	"ramplab/internal/config"
	"ramplab/internal/cpmodel"
	"ramplab/internal/detect"
	"ramplab/internal/metrics"
	"ramplab/internal/signal"
	"ramplab/internal/validation"
)

// AnalysisService is the orchestrating surface of the engine. It owns no
// detection logic itself; it sequences preprocessing, the validation gate,
// detection, confidence scoring and model fitting over immutable inputs.
// Safe for concurrent use: every call works on its own copies.
type AnalysisService struct {
	log     *internal.Logger
	methods []detect.Method
}

// NewAnalysisService creates the service with the full closed method set.
func NewAnalysisService(logger *internal.Logger) *AnalysisService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &AnalysisService{
		log:     logger,
		methods: detect.Methods(),
	}
}

// family maps one dependent channel onto its named thresholds.
type family struct {
	name       string
	kind       session.Kind
	thresholds []analysis.ThresholdName
}

// detectionFamilies is the fixed channel-to-threshold mapping: ventilation
// carries the ventilatory thresholds, muscle oxygenation the SmO2-derived
// ones.
var detectionFamilies = []family{
	{name: "ventilatory", kind: session.KindVentilation, thresholds: []analysis.ThresholdName{analysis.VT1, analysis.VT2}},
	{name: "smo2", kind: session.KindSmO2, thresholds: []analysis.ThresholdName{analysis.LT1, analysis.LT2}},
}

// Validate runs the data-quality gate only.
func (s *AnalysisService) Validate(sess *session.Session, cfg config.Analysis) analysis.ValidationReport {
	return validation.Validate(sess, cfg)
}

// AnalyzeThresholds detects and scores thresholds for the selected channels.
// Channels that cannot be conditioned are skipped with a note, not an error:
// one starved channel must not sink the rest of the analysis.
func (s *AnalysisService) AnalyzeThresholds(ctx context.Context, sess *session.Session,
	channels []session.Kind, cfg config.Analysis) ([]analysis.ThresholdEstimate, []analysis.UndetectedNote, error) {

	work := sess.Clone() // copy-on-write; the caller's session stays untouched

	power, ok := work.Channel(session.KindPower)
	if !ok {
		return nil, nil, fmt.Errorf("%w: power", core.ErrMissingChannel)
	}
	powerCond, err := signal.Condition(power, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("conditioning power channel: %w", err)
	}

	selected := selectFamilies(channels)

	var (
		mu        sync.Mutex
		estimates []analysis.ThresholdEstimate
		notes     []analysis.UndetectedNote
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, fam := range selected {
		fam := fam
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ests, ns := s.analyzeFamily(work, fam, powerCond, cfg)
			mu.Lock()
			estimates = append(estimates, ests...)
			notes = append(notes, ns...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	// Families run concurrently; fix the output order so identical inputs
	// yield identical results.
	sortByThresholdName(estimates)
	sort.Slice(notes, func(i, j int) bool { return notes[i].Name < notes[j].Name })
	return estimates, notes, nil
}

// analyzeFamily conditions one dependent channel, runs every detection
// method over it and adjudicates candidates per threshold.
func (s *AnalysisService) analyzeFamily(sess *session.Session, fam family,
	powerCond signal.Conditioned, cfg config.Analysis) ([]analysis.ThresholdEstimate, []analysis.UndetectedNote) {

	ch, ok := sess.Channel(fam.kind)
	if !ok || len(ch.Samples) == 0 {
		return nil, nil // channel absent; its thresholds are simply not offered
	}

	cond, err := signal.Condition(ch, cfg)
	if err != nil {
		if errors.Is(err, core.ErrInsufficientData) {
			s.log.Warn("skipping %s family: %v", fam.name, err)
			notes := make([]analysis.UndetectedNote, 0, len(fam.thresholds))
			for _, name := range fam.thresholds {
				notes = append(notes, analysis.UndetectedNote{Name: name, Reason: err.Error()})
			}
			return nil, notes
		}
		s.log.Error("conditioning %s channel: %v", fam.name, err)
		return nil, nil
	}

	pair := buildPair(fam, cond, powerCond)
	candidates := detect.Detect(pair, s.methods, cfg)

	var estimates []analysis.ThresholdEstimate
	var notes []analysis.UndetectedNote
	for _, name := range fam.thresholds {
		est, ok := confidence.Score(name, candidates[name], pair, cfg)
		if !ok {
			notes = append(notes, analysis.UndetectedNote{
				Name:   name,
				Reason: fmt.Sprintf("%d of %d methods detected a candidate", len(candidates[name]), len(s.methods)),
			})
			continue
		}
		estimates = append(estimates, est)
	}
	return estimates, notes
}

// buildPair aligns the dependent channel with power on the dependent grid.
// X is smoothed power (the detection domain), Reference raw power for the
// ratio-based method.
func buildPair(fam family, dep, power signal.Conditioned) detect.SignalPair {
	x := make([]float64, dep.Len())
	ref := make([]float64, dep.Len())
	for i, t := range dep.Times {
		x[i] = sampleAt(power.Times, power.Smooth, t)
		ref[i] = sampleAt(power.Times, power.Raw, t)
	}
	return detect.SignalPair{
		Family:     fam.name,
		Thresholds: fam.thresholds,
		Unit:       session.KindPower.Unit(),
		X:          x,
		Y:          dep.Smooth,
		YRaw:       dep.Raw,
		Reference:  ref,
	}
}

// sampleAt linearly interpolates a conditioned series at time t.
func sampleAt(times, values []float64, t float64) float64 {
	n := len(times)
	if n == 0 {
		return 0
	}
	i := sort.SearchFloat64s(times, t)
	switch {
	case i == 0:
		return values[0]
	case i >= n:
		return values[n-1]
	case times[i] == t:
		return values[i]
	}
	frac := (t - times[i-1]) / (times[i] - times[i-1])
	return values[i-1] + frac*(values[i]-values[i-1])
}

// FitCriticalPower fits CP/W' from maximal efforts.
func (s *AnalysisService) FitCriticalPower(efforts []analysis.Effort, cfg config.Analysis) (analysis.CPModelResult, error) {
	return cpmodel.Fit(efforts, cfg)
}

// RunFullAnalysis executes the complete pipeline: validation gate, threshold
// detection per signal family, confidence scoring, critical power fitting
// and supplemental metrics, aggregated into one immutable result.
//
// A fatal validation finding aborts before detection; the structured report
// still comes back in the result, with no threshold estimates and a nil
// error. Identical session and configuration yield an identical result,
// ID included; storage stamps its own receipt time.
func (s *AnalysisService) RunFullAnalysis(ctx context.Context, sess *session.Session,
	cfg config.Analysis) (*analysis.AnalysisResult, error) {

	prov := analysis.Provenance{
		SessionID:          sess.ID,
		SessionFingerprint: sess.Fingerprint(),
		ConfigHash:         cfg.Hash(),
		AlgorithmVersion:   analysis.AlgorithmVersion,
	}
	result := &analysis.AnalysisResult{
		ID:         deterministicID(prov),
		Provenance: prov,
	}

	result.Validation = validation.Validate(sess, cfg)
	if result.Validation.Fatal() {
		s.log.Warn("session %s failed validation, skipping detection", sess.ID)
		return result, nil
	}

	estimates, notes, err := s.AnalyzeThresholds(ctx, sess, nil, cfg)
	if err != nil {
		return nil, err
	}
	result.Thresholds = estimates
	result.Undetected = notes

	if power, ok := sess.Channel(session.KindPower); ok {
		cond, err := signal.Condition(power, cfg)
		if err != nil {
			// Validation already passed, so this only trips on starved
			// channels; the analysis stands without a CP model.
			s.log.Warn("critical power omitted for session %s: %v", sess.ID, err)
		} else {
			efforts := cpmodel.EffortsFromPowerCurve(cond, cfg)
			cp, err := cpmodel.Fit(efforts, cfg)
			switch {
			case err == nil, errors.Is(err, core.ErrDegenerateFit):
				// A degenerate fit is still surfaced, flagged, with its raw
				// regression numbers; only insufficient efforts omit the model.
				result.CP = &cp
			case errors.Is(err, core.ErrInsufficientEfforts):
				s.log.Info("critical power omitted for session %s: %v", sess.ID, err)
			default:
				return nil, err
			}
		}
	}

	result.Metrics = metrics.Compute(sess, result.Thresholds, cfg)
	return result, nil
}

// selectFamilies narrows the fixed family set to the requested channels; an
// empty selection means all.
func selectFamilies(channels []session.Kind) []family {
	if len(channels) == 0 {
		return detectionFamilies
	}
	var out []family
	for _, fam := range detectionFamilies {
		for _, k := range channels {
			if fam.kind == k {
				out = append(out, fam)
				break
			}
		}
	}
	return out
}

var thresholdOrder = map[analysis.ThresholdName]int{
	analysis.VT1: 0,
	analysis.VT2: 1,
	analysis.LT1: 2,
	analysis.LT2: 3,
}

func sortByThresholdName(estimates []analysis.ThresholdEstimate) {
	sort.Slice(estimates, func(i, j int) bool {
		return thresholdOrder[estimates[i].Name] < thresholdOrder[estimates[j].Name]
	})
}

// deterministicID derives the analysis ID from its provenance so repeated
// runs over the same inputs are identified identically.
func deterministicID(p analysis.Provenance) core.AnalysisID {
	h := core.NewHash([]byte(p.SessionID.String() + "|" + p.SessionFingerprint.String() + "|" +
		p.ConfigHash.String() + "|" + p.AlgorithmVersion))
	return core.AnalysisID(h.String())
}
