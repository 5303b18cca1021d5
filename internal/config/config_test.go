package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 1.3, cfg.Optimizer.RoadFactor)
	assert.Equal(t, 2.5, cfg.Optimizer.MinPerMile)
	assert.Equal(t, 15.0, cfg.Optimizer.FallbackTravelMin)
	assert.Equal(t, 6, cfg.Webhooks.MaxAttempts)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
port: "9090"
log_level: debug
optimizer:
  road_factor: 1.5
  two_opt_iterations: 5
rate_limit:
  rps: 10
  burst: 20
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 1.5, cfg.Optimizer.RoadFactor)
	assert.Equal(t, 5, cfg.Optimizer.TwoOptIterations)
	assert.Equal(t, 10.0, cfg.RateLimit.RPS)
	// Untouched fields keep defaults.
	assert.Equal(t, 2.5, cfg.Optimizer.MinPerMile)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9090\"\n"), 0o600))
	t.Setenv("PORT", "7070")
	t.Setenv("OPT_ROAD_FACTOR", "1.1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, 1.1, cfg.Optimizer.RoadFactor)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unclosed"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}
