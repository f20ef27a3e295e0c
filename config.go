package askql

import (
	"time"
)

// Config consolidates settings for the planning pipeline and its collaborators.
type Config struct {
	Database DatabaseConfig `json:"database"`
	Cache    CacheConfig    `json:"cache"`
	Query    QueryConfig    `json:"query"`
	Retry    RetryConfig    `json:"retry"`
	Logging  LoggingConfig  `json:"logging"`
}

// DatabaseConfig contains cache-store connection settings.
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Database        string        `json:"database"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"sslMode"`
	MaxConnections  int           `json:"maxConnections"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
	Timeout         time.Duration `json:"timeout"`
	CacheTable      string        `json:"cacheTable"`
}

// CacheConfig contains semantic cache behavior settings.
type CacheConfig struct {
	Enabled             bool    `json:"enabled"`
	EmbeddingDimension  int     `json:"embeddingDimension"`
	SimilarityThreshold float64 `json:"similarityThreshold"`
	MaxSampleRows       int     `json:"maxSampleRows"`
	MaxCandidates       int     `json:"maxCandidates"`
}

// QueryConfig contains query generation and execution settings.
type QueryConfig struct {
	DefaultLimit   int           `json:"defaultLimit"`
	MaxLimit       int           `json:"maxLimit"`
	DefaultTimeout time.Duration `json:"defaultTimeout"`
}

// RetryConfig bounds retries of transient infrastructure failures.
// Planning and validation are never retried through this mechanism.
type RetryConfig struct {
	Attempts int           `json:"attempts"`
	Delay    time.Duration `json:"delay"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `json:"level"`
	Production bool   `json:"production"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "askql",
			Username:        "postgres",
			SSLMode:         "disable",
			MaxConnections:  10,
			ConnMaxLifetime: time.Hour,
			Timeout:         30 * time.Second,
			CacheTable:      "semantic_cache",
		},
		Cache: CacheConfig{
			Enabled:             true,
			EmbeddingDimension:  768,
			SimilarityThreshold: 0.72,
			MaxSampleRows:       50,
			MaxCandidates:       20,
		},
		Query: QueryConfig{
			DefaultLimit:   100,
			MaxLimit:       1000,
			DefaultTimeout: 30 * time.Second,
		},
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Production: true,
		},
	}
}

// Validate performs basic sanity checks on the configuration.
func (c *Config) Validate() error {
	if c.Cache.Enabled {
		if c.Cache.EmbeddingDimension <= 0 {
			return NewInternalError("cache embedding dimension must be positive")
		}
		if c.Cache.SimilarityThreshold <= 0 || c.Cache.SimilarityThreshold > 1 {
			return NewInternalError("cache similarity threshold must be in (0, 1]")
		}
		if c.Cache.MaxSampleRows < 0 {
			return NewInternalError("cache max sample rows must be >= 0")
		}
	}
	if c.Query.DefaultLimit < 1 {
		return NewInternalError("query default limit must be >= 1")
	}
	if c.Retry.Attempts < 1 {
		return NewInternalError("retry attempts must be >= 1")
	}
	return nil
}
