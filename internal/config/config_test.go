package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7171, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Engine)
	assert.Equal(t, 384, cfg.Retrieval.Dimension)
	assert.Equal(t, 0.7, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, 5, cfg.Retrieval.MaxMetricsPerType)
	assert.Equal(t, 10, cfg.Retrieval.MaxInsights)
	assert.Equal(t, 10_000, cfg.Retrieval.MemoryMaxChars)
	assert.Equal(t, 24, cfg.Retrieval.CacheTTLHours)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("PULSE_PORT", "9999")
	t.Setenv("PULSE_STORAGE_ENGINE", "postgres")
	t.Setenv("PULSE_POSTGRES_DSN", "postgres://localhost/pulse")
	t.Setenv("PULSE_SIMILARITY_THRESHOLD", "0.85")
	t.Setenv("PULSE_DIMENSION", "768")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Engine)
	assert.Equal(t, 0.85, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, 768, cfg.Retrieval.Dimension)
}

func TestLoadConfigUnparsableEnvFallsBack(t *testing.T) {
	t.Setenv("PULSE_PORT", "not-a-number")
	t.Setenv("PULSE_SIMILARITY_THRESHOLD", "high")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7171, cfg.Server.Port)
	assert.Equal(t, 0.7, cfg.Retrieval.SimilarityThreshold)
}

func TestLoadConfigYAMLFileWithEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8080
retrieval:
  dimension: 512
  max_insights: 3
`), 0o644))

	t.Setenv("PULSE_CONFIG", path)
	t.Setenv("PULSE_DIMENSION", "768") // env wins over the file

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 768, cfg.Retrieval.Dimension)
	assert.Equal(t, 3, cfg.Retrieval.MaxInsights)
	// Untouched settings keep their defaults.
	assert.Equal(t, 5, cfg.Retrieval.MaxMetricsPerType)
}

func TestLoadConfigPostgresRequiresDSN(t *testing.T) {
	t.Setenv("PULSE_STORAGE_ENGINE", "postgres")

	_, err := LoadConfig()
	assert.Error(t, err)
}
