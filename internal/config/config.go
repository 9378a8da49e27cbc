// Package config provides configuration management for refmatch.
// It loads settings from environment variables with the REFMATCH_ prefix
// and provides sensible defaults for all configuration options.
//
// The scoring policy may additionally be read from a YAML file named by
// REFMATCH_SCORING_FILE; values in the file override the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all configuration settings for the refmatch service.
type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	LLM         LLMConfig
	Search      SearchConfig
	Scoring     ScoringConfig
	Personality PersonalityConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port             int           // Server port (default: 8000)
	Host             string        // Server host (default: 127.0.0.1)
	RateLimit        float64       // Requests per second across all clients, 0 disables (default: 20)
	RateBurst        int           // Burst size for the rate limiter (default: 40)
	SearchTimeout    time.Duration // Budget for search and history requests (default: 10s)
	SynthesisTimeout time.Duration // Budget for generation endpoints (default: 60s)
	ShutdownTimeout  time.Duration // Graceful shutdown budget (default: 15s)
	EnableMetrics    bool          // Serve /metrics (default: true)
	RefreshOnStartup bool          // Run one personality refresh when serve starts (default: false)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: sqlite or postgres (default: sqlite)
	DSN           string // Database DSN; for sqlite defaults to <DataPath>/refmatch.db
	DataPath      string // Path to data directory (default: ./data)
}

// LLMConfig contains generative and embedding service configuration.
type LLMConfig struct {
	LLMProvider    string        // openai or none (default: openai when a key is set, else none)
	APIKey         string        // REFMATCH_OPENAI_API_KEY, falling back to OPENAI_API_KEY
	BaseURL        string        // OpenAI-compatible base URL including /v1 (default: api.openai.com)
	ChatModel      string        // Chat model (default: gpt-4o-mini)
	EmbeddingModel string        // Embedding model (default: text-embedding-3-small)
	Timeout        time.Duration // Per-call timeout (default: 60s)
}

// SearchConfig tunes the search pipeline.
type SearchConfig struct {
	VectorLimit            int           // Vector candidates per search (default: 90)
	FillerTarget           int           // Diversity candidates per search (default: 50)
	DefaultPageSize        int           // Page size when the request omits it (default: 20)
	MaxPageSize            int           // Largest page size honored (default: 50)
	MaxRefIDs              int           // Most ref IDs accepted per search (default: 12)
	DedupWindow            time.Duration // History dedup window (default: 1h)
	PersonalityConcurrency int           // Parallel personality reads per page (default: 8)
	HistoryLimit           int           // Default history list length (default: 20)
}

// PersonalityConfig tunes personality synthesis and the refresher.
type PersonalityConfig struct {
	CompositeLimit   int           // Default tag count for composites (default: 12)
	RefreshInterval  time.Duration // Scheduled refresh interval, 0 disables (default: 0)
	RefreshPerSecond float64       // People regenerated per second by the refresher (default: 1)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults, applies the scoring file when configured and validates the result.
// All environment variables use the REFMATCH_ prefix.
func LoadConfig() (*Config, error) {
	cfg := buildBaseConfig()

	if cfg.Scoring.File != "" {
		if err := cfg.Scoring.LoadFile(cfg.Scoring.File); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildBaseConfig constructs a Config with values from environment variables
// and defaults.
func buildBaseConfig() *Config {
	apiKey := getEnv("REFMATCH_OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY"))
	defaultProvider := "none"
	if apiKey != "" {
		defaultProvider = "openai"
	}

	dataPath := getEnv("REFMATCH_DATA_PATH", "./data")
	engine := getEnv("REFMATCH_STORAGE_ENGINE", "sqlite")
	dsn := getEnv("REFMATCH_DATABASE_URL", "")
	if dsn == "" && engine == "sqlite" {
		dsn = filepath.Join(dataPath, "refmatch.db")
	}

	return &Config{
		Server: ServerConfig{
			Port:             getEnvInt("REFMATCH_PORT", 8000),
			Host:             getEnv("REFMATCH_HOST", "127.0.0.1"),
			RateLimit:        getEnvFloat("REFMATCH_RATE_LIMIT", 20),
			RateBurst:        getEnvInt("REFMATCH_RATE_BURST", 40),
			SearchTimeout:    getEnvDuration("REFMATCH_REQUEST_TIMEOUT", 10*time.Second),
			SynthesisTimeout: getEnvDuration("REFMATCH_SYNTHESIS_TIMEOUT", 60*time.Second),
			ShutdownTimeout:  getEnvDuration("REFMATCH_SHUTDOWN_TIMEOUT", 15*time.Second),
			EnableMetrics:    getEnvBool("REFMATCH_ENABLE_METRICS", true),
			RefreshOnStartup: getEnvBool("REFMATCH_REFRESH_ON_STARTUP", false),
		},
		Storage: StorageConfig{
			StorageEngine: engine,
			DSN:           dsn,
			DataPath:      dataPath,
		},
		LLM: LLMConfig{
			LLMProvider:    getEnv("REFMATCH_LLM_PROVIDER", defaultProvider),
			APIKey:         apiKey,
			BaseURL:        getEnv("REFMATCH_OPENAI_BASE_URL", ""),
			ChatModel:      getEnv("REFMATCH_CHAT_MODEL", "gpt-4o-mini"),
			EmbeddingModel: getEnv("REFMATCH_EMBEDDING_MODEL", "text-embedding-3-small"),
			Timeout:        getEnvDuration("REFMATCH_LLM_TIMEOUT", 60*time.Second),
		},
		Search: SearchConfig{
			VectorLimit:            getEnvInt("REFMATCH_VECTOR_LIMIT", 90),
			FillerTarget:           getEnvInt("REFMATCH_FILLER_TARGET", 50),
			DefaultPageSize:        getEnvInt("REFMATCH_DEFAULT_PAGE_SIZE", 20),
			MaxPageSize:            getEnvInt("REFMATCH_MAX_PAGE_SIZE", 50),
			MaxRefIDs:              getEnvInt("REFMATCH_MAX_REF_IDS", 12),
			DedupWindow:            getEnvDuration("REFMATCH_HISTORY_DEDUP_WINDOW", time.Hour),
			PersonalityConcurrency: getEnvInt("REFMATCH_PERSONALITY_CONCURRENCY", 8),
			HistoryLimit:           getEnvInt("REFMATCH_HISTORY_LIMIT", 20),
		},
		Scoring: ScoringConfig{
			ExactMatchWeight:   getEnvFloat("REFMATCH_EXACT_MATCH_WEIGHT", 3),
			BaselineSimilarity: getEnvFloat("REFMATCH_BASELINE_SIMILARITY", 0.1),
			File:               getEnv("REFMATCH_SCORING_FILE", ""),
		},
		Personality: PersonalityConfig{
			CompositeLimit:   getEnvInt("REFMATCH_COMPOSITE_LIMIT", 12),
			RefreshInterval:  getEnvDuration("REFMATCH_REFRESH_INTERVAL", 0),
			RefreshPerSecond: getEnvFloat("REFMATCH_REFRESH_PER_SECOND", 1),
		},
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, errors.New("rate burst must be at least 1 when rate limiting"))
	}

	switch c.Storage.StorageEngine {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported storage engine: %q", c.Storage.StorageEngine))
	}
	if c.Storage.DSN == "" {
		errs = append(errs, errors.New("database DSN is required (REFMATCH_DATABASE_URL)"))
	}

	switch c.LLM.LLMProvider {
	case "openai":
		if c.LLM.APIKey == "" {
			errs = append(errs, errors.New("openai provider requires REFMATCH_OPENAI_API_KEY or OPENAI_API_KEY"))
		}
	case "none":
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM provider: %q", c.LLM.LLMProvider))
	}

	if c.Search.MaxPageSize < 1 {
		errs = append(errs, errors.New("max page size must be at least 1"))
	}
	if c.Search.DefaultPageSize < 1 || c.Search.DefaultPageSize > c.Search.MaxPageSize {
		errs = append(errs, fmt.Errorf("default page size must be between 1 and %d", c.Search.MaxPageSize))
	}
	if c.Search.MaxRefIDs < 1 {
		errs = append(errs, errors.New("max ref IDs must be at least 1"))
	}
	if c.Search.VectorLimit < 1 || c.Search.FillerTarget < 0 {
		errs = append(errs, errors.New("vector limit must be positive and filler target not negative"))
	}
	if c.Search.DedupWindow <= 0 {
		errs = append(errs, errors.New("history dedup window must be positive"))
	}

	if err := c.Scoring.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Personality.CompositeLimit < 1 || c.Personality.CompositeLimit > 50 {
		errs = append(errs, errors.New("composite limit must be between 1 and 50"))
	}
	if c.Personality.RefreshInterval < 0 {
		errs = append(errs, errors.New("refresh interval must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90s", "1h") or plain seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
