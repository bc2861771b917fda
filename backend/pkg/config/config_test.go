package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "meeting-graph/backend/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", "")
	t.Setenv("TOKEN_BUDGET", "")
	t.Setenv("TOKENIZER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 512, cfg.TokenBudget)
	assert.Equal(t, "approx", cfg.Tokenizer)
	assert.InDelta(t, 0.95, cfg.SimilarityThreshold, 1e-9)
	assert.Equal(t, 10*time.Minute, cfg.ConsistencyCheckInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/archive")
	t.Setenv("TOKEN_BUDGET", "128")
	t.Setenv("TOKENIZER", "cl100k_base")
	t.Setenv("CONSISTENCY_CHECK_INTERVAL", "30s")
	t.Setenv("NEO4J_URI", "bolt://localhost:7687")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/archive", cfg.DataDir)
	assert.Equal(t, 128, cfg.TokenBudget)
	assert.Equal(t, "cl100k_base", cfg.Tokenizer)
	assert.Equal(t, 30*time.Second, cfg.ConsistencyCheckInterval)
	assert.True(t, cfg.Neo4jEnabled())
}

func TestValidate_Rejects(t *testing.T) {
	base := Config{
		DataDir:             "data",
		SimilarityThreshold: 0.95,
		AmbiguityEpsilon:    0.01,
		TokenBudget:         512,
		Tokenizer:           "approx",
		IngestWorkers:       1,
	}

	tests := []struct {
		name  string
		mod   func(c *Config)
		field string
	}{
		{"threshold", func(c *Config) { c.SimilarityThreshold = 1.5 }, "SIMILARITY_THRESHOLD"},
		{"epsilon", func(c *Config) { c.AmbiguityEpsilon = 0.99 }, "AMBIGUITY_EPSILON"},
		{"budget", func(c *Config) { c.TokenBudget = 2 }, "TOKEN_BUDGET"},
		{"tokenizer", func(c *Config) { c.Tokenizer = "bpe" }, "TOKENIZER"},
		{"workers", func(c *Config) { c.IngestWorkers = 0 }, "INGEST_WORKERS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mod(&c)
			err := c.Validate()
			require.Error(t, err)
			var cfgErr *apperrors.ErrConfigValidationFailed
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	assert.NoError(t, base.Validate())
}
