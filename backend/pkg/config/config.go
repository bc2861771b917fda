package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	apperrors "meeting-graph/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Entity store
	DataDir                  string
	ConsistencyCheckInterval time.Duration

	// Normalization
	SimilarityThreshold float64
	AmbiguityEpsilon    float64
	NormalizerRulesFile string // Optional YAML file replacing the built-in pattern rules

	// Chunking
	TokenBudget int
	Tokenizer   string // approx | cl100k_base

	// Ingestion
	IngestWorkers int

	// Neo4j export (optional)
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:                     getEnv("PORT", "8080"),
		Env:                      getEnv("ENV", "development"),
		DataDir:                  getEnv("DATA_DIR", "data"),
		ConsistencyCheckInterval: getEnvDuration("CONSISTENCY_CHECK_INTERVAL", 10*time.Minute),
		SimilarityThreshold:      getEnvFloat("SIMILARITY_THRESHOLD", 0.95),
		AmbiguityEpsilon:         getEnvFloat("AMBIGUITY_EPSILON", 0.01),
		NormalizerRulesFile:      getEnv("NORMALIZER_RULES_FILE", ""),
		TokenBudget:              getEnvInt("TOKEN_BUDGET", 512),
		Tokenizer:                getEnv("TOKENIZER", "approx"),
		IngestWorkers:            getEnvInt("INGEST_WORKERS", 4),
		Neo4jURI:                 getEnv("NEO4J_URI", ""),
		Neo4jUser:                getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:            getEnv("NEO4J_PASSWORD", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return apperrors.NewConfigValidationFailed("DATA_DIR", "is required")
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return apperrors.NewConfigValidationFailed("SIMILARITY_THRESHOLD", "must be in (0, 1]")
	}
	if c.AmbiguityEpsilon < 0 || c.AmbiguityEpsilon >= c.SimilarityThreshold {
		return apperrors.NewConfigValidationFailed("AMBIGUITY_EPSILON", "must be in [0, SIMILARITY_THRESHOLD)")
	}
	if c.TokenBudget < 16 {
		return apperrors.NewConfigValidationFailed("TOKEN_BUDGET", "must be at least 16")
	}
	switch c.Tokenizer {
	case "approx", "cl100k_base":
	default:
		return apperrors.NewConfigValidationFailed("TOKENIZER", fmt.Sprintf("unknown tokenizer %q", c.Tokenizer))
	}
	if c.IngestWorkers < 1 {
		return apperrors.NewConfigValidationFailed("INGEST_WORKERS", "must be at least 1")
	}
	// Neo4j settings are only checked when export is used
	return nil
}

// Neo4jEnabled reports whether graph export has a target
func (c *Config) Neo4jEnabled() bool {
	return c.Neo4jURI != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
