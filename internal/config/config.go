package config

import (
	"os"
	"strconv"

	"ramplab/domain/core"
	"ramplab/internal/errors"
)

// Analysis carries every tunable the detection and fitting pipeline accepts.
// It is passed explicitly into each call rather than held as process-wide state.
type Analysis struct {
	// Preprocessing
	TargetRateHz  float64 `json:"target_rate_hz"`  // common resampling rate
	GapToleranceS float64 `json:"gap_tolerance_s"` // interpolate gaps up to this length
	SmoothingSpanS int    `json:"smoothing_span_s"` // centered moving-average span
	MinSamples     int    `json:"min_samples"`      // per channel, after gap removal

	// Validation
	MinDurationS     float64 `json:"min_duration_s"`
	MaxDurationS     float64 `json:"max_duration_s"`
	MinSteps         int     `json:"min_steps"`
	MaxSteps         int     `json:"max_steps"`
	MonotonicityTolW float64 `json:"monotonicity_tol_w"`
	MaxGapS          float64 `json:"max_gap_s"`
	MaxGapFraction   float64 `json:"max_gap_fraction"` // cumulative gaps vs duration
	CadenceCVMax     float64 `json:"cadence_cv_max"`
	CadenceMinRPM    float64 `json:"cadence_min_rpm"`
	CadenceMaxRPM    float64 `json:"cadence_max_rpm"`
	StepPowerCVMax   float64 `json:"step_power_cv_max"`

	// Detection
	MinMethodsForDetection int     `json:"min_methods_for_detection"`
	TieEpsilon             float64 `json:"tie_epsilon"`   // residual tie-break window
	MinCurvature           float64 `json:"min_curvature"` // curvature floor, normalized units
	MinSeparationFrac      float64 `json:"min_separation_frac"` // guard from domain start
	BootstrapIters         int     `json:"bootstrap_iters"`
	Seed                   int64   `json:"seed"` // bootstrap RNG seed; fixed for idempotence

	// Confidence
	ConfidenceHigh   float64 `json:"confidence_high"`
	ConfidenceMedium float64 `json:"confidence_medium"`

	// Critical power
	CPMinEfforts  int       `json:"cp_min_efforts"`
	MMPDurationsS []float64 `json:"mmp_durations_s"` // rolling-max windows for effort extraction

	// Supplemental metrics
	RiderWeightKG float64 `json:"rider_weight_kg"` // 0 disables VO2max estimation
}

// DefaultAnalysis returns the default pipeline configuration.
func DefaultAnalysis() Analysis {
	return Analysis{
		TargetRateHz:   1.0,
		GapToleranceS:  10,
		SmoothingSpanS: 5,
		MinSamples:     30,

		MinDurationS:     300,
		MaxDurationS:     3600,
		MinSteps:         3,
		MaxSteps:         20,
		MonotonicityTolW: 10,
		MaxGapS:          5,
		MaxGapFraction:   0.10,
		CadenceCVMax:     0.15,
		CadenceMinRPM:    60,
		CadenceMaxRPM:    120,
		StepPowerCVMax:   0.15,

		MinMethodsForDetection: 1,
		TieEpsilon:             0.02,
		MinCurvature:           0.2,
		MinSeparationFrac:      0.10,
		BootstrapIters:         200,
		Seed:                   42,

		ConfidenceHigh:   80,
		ConfidenceMedium: 60,

		CPMinEfforts:  2,
		MMPDurationsS: []float64{180, 300, 600, 900, 1200},

		RiderWeightKG: 0,
	}
}

// Hash computes a deterministic fingerprint of the configuration for
// result provenance and per-call cache keys.
func (a Analysis) Hash() core.ConfigHash {
	return core.ComputeConfigHash(map[string]interface{}{
		"target_rate_hz":            a.TargetRateHz,
		"gap_tolerance_s":           a.GapToleranceS,
		"smoothing_span_s":          a.SmoothingSpanS,
		"min_samples":               a.MinSamples,
		"min_duration_s":            a.MinDurationS,
		"max_duration_s":            a.MaxDurationS,
		"min_steps":                 a.MinSteps,
		"max_steps":                 a.MaxSteps,
		"monotonicity_tol_w":        a.MonotonicityTolW,
		"max_gap_s":                 a.MaxGapS,
		"max_gap_fraction":          a.MaxGapFraction,
		"cadence_cv_max":            a.CadenceCVMax,
		"cadence_min_rpm":           a.CadenceMinRPM,
		"cadence_max_rpm":           a.CadenceMaxRPM,
		"step_power_cv_max":         a.StepPowerCVMax,
		"min_methods_for_detection": a.MinMethodsForDetection,
		"tie_epsilon":               a.TieEpsilon,
		"min_curvature":             a.MinCurvature,
		"min_separation_frac":       a.MinSeparationFrac,
		"bootstrap_iters":           a.BootstrapIters,
		"seed":                      a.Seed,
		"confidence_high":           a.ConfidenceHigh,
		"confidence_medium":         a.ConfidenceMedium,
		"cp_min_efforts":            a.CPMinEfforts,
		"mmp_durations_s":           a.MMPDurationsS,
		"rider_weight_kg":           a.RiderWeightKG,
	})
}

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Analysis Analysis
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Database: DatabaseConfig{
			URL:     os.Getenv("DATABASE_URL"), // optional; empty disables persistence
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		Analysis: DefaultAnalysis(),
	}

	// Analysis overrides from env, mirroring the documented option names.
	config.Analysis.GapToleranceS = getEnvFloatOrDefault("GAP_TOLERANCE_S", config.Analysis.GapToleranceS)
	config.Analysis.SmoothingSpanS = getEnvIntOrDefault("SMOOTHING_SPAN", config.Analysis.SmoothingSpanS)
	config.Analysis.MinMethodsForDetection = getEnvIntOrDefault("MIN_METHODS_FOR_DETECTION", config.Analysis.MinMethodsForDetection)
	config.Analysis.ConfidenceHigh = getEnvFloatOrDefault("CONFIDENCE_HIGH", config.Analysis.ConfidenceHigh)
	config.Analysis.ConfidenceMedium = getEnvFloatOrDefault("CONFIDENCE_MEDIUM", config.Analysis.ConfidenceMedium)
	config.Analysis.CPMinEfforts = getEnvIntOrDefault("CP_MIN_EFFORTS", config.Analysis.CPMinEfforts)
	config.Analysis.RiderWeightKG = getEnvFloatOrDefault("RIDER_WEIGHT_KG", config.Analysis.RiderWeightKG)

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.Analysis.ConfidenceMedium >= config.Analysis.ConfidenceHigh {
		return errors.ConfigInvalid("CONFIDENCE_MEDIUM must be below CONFIDENCE_HIGH")
	}
	if config.Analysis.CPMinEfforts < 2 {
		return errors.ConfigInvalid("CP_MIN_EFFORTS must be at least 2")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
