package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 75, cfg.Status.Managed)
	assert.Equal(t, 50, cfg.Status.InProgress)
	assert.Equal(t, 25, cfg.Status.NeedsWork)

	assert.Equal(t, 500, cfg.EstimateCeiling)
	assert.Equal(t, 100, cfg.AISuspectCeiling)
	assert.Equal(t, 42, cfg.LactationOffsetDays)
	assert.Equal(t, 60, cfg.PregnancyTermDays)
	assert.Equal(t, 60, cfg.PregnancyStaleDays)

	assert.Positive(t, cfg.DefaultEpsilonM)
	assert.Positive(t, cfg.DefaultMinPoints)
	assert.Positive(t, cfg.EstimateWorkers)
}

func TestLoadWithoutConfigFile(t *testing.T) {
	// No beacon.yaml in the test working directory; Load must fall back to
	// defaults instead of failing.
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.Status.Managed)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("BEACON_ESTIMATE_CEILING", "750")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 750, cfg.EstimateCeiling)
}
