package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Server.Port)
	assert.Equal(t, DefaultAnalysis().Seed, cfg.Analysis.Seed)
	assert.Equal(t, DefaultAnalysis().MMPDurationsS, cfg.Analysis.MMPDurationsS)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GAP_TOLERANCE_S", "20")
	t.Setenv("MIN_METHODS_FOR_DETECTION", "2")
	t.Setenv("RIDER_WEIGHT_KG", "72.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20.0, cfg.Analysis.GapToleranceS)
	assert.Equal(t, 2, cfg.Analysis.MinMethodsForDetection)
	assert.Equal(t, 72.5, cfg.Analysis.RiderWeightKG)
}

func TestLoadRejectsInvalidCutoffs(t *testing.T) {
	t.Setenv("CONFIDENCE_MEDIUM", "90")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsLowEffortMinimum(t *testing.T) {
	t.Setenv("CP_MIN_EFFORTS", "1")

	_, err := Load()
	assert.Error(t, err)
}

func TestHashIsDeterministicAndSensitive(t *testing.T) {
	a := DefaultAnalysis()
	b := DefaultAnalysis()
	assert.Equal(t, a.Hash(), b.Hash())

	b.SmoothingSpanS = 9
	assert.NotEqual(t, a.Hash(), b.Hash())
}
