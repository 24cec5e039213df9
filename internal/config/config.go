// Package config provides configuration loading for the agrisync core.
// Values come from built-in defaults, overridden by an optional YAML file,
// overridden by AGRISYNC_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheRule maps a URL path pattern to a cache strategy.
type CacheRule struct {
	// Pattern is matched against the request path with path.Match semantics,
	// e.g. "/api/dashboard/*". A trailing "*" also matches nested paths.
	Pattern  string        `yaml:"pattern"`
	Strategy string        `yaml:"strategy"` // network-first, cache-first, network-only
	Critical bool          `yaml:"critical"` // degrade to an offline payload instead of erroring
	Image    bool          `yaml:"image"`    // synthesize a placeholder on total failure
	TTL      time.Duration `yaml:"ttl"`      // 0 means the default TTL
}

// Config holds all tunables of the sync engine.
type Config struct {
	DataDir       string `yaml:"data_dir"`
	LogLevel      string `yaml:"log_level"`
	LogConsole    bool   `yaml:"log_console"`
	RemoteBaseURL string `yaml:"remote_base_url"`

	// Queue
	QueueCap   int           `yaml:"queue_cap"`
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`

	// Orchestrator
	Concurrency           int           `yaml:"concurrency"`
	AttemptTimeout        time.Duration `yaml:"attempt_timeout"`
	StaleAttemptThreshold time.Duration `yaml:"stale_attempt_threshold"`
	SyncedRetention       time.Duration `yaml:"synced_retention"`

	// Trigger
	SyncInterval time.Duration `yaml:"sync_interval"`

	// Cache
	CacheTTL   time.Duration `yaml:"cache_ttl"`
	CacheRules []CacheRule   `yaml:"cache_rules"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:               "./data",
		LogLevel:              "info",
		LogConsole:            false,
		QueueCap:              10000,
		MaxRetries:            5,
		BaseDelay:             2 * time.Second,
		MaxDelay:              5 * time.Minute,
		Concurrency:           4,
		AttemptTimeout:        30 * time.Second,
		StaleAttemptThreshold: 5 * time.Minute,
		SyncedRetention:       24 * time.Hour,
		SyncInterval:          15 * time.Minute,
		CacheTTL:              7 * 24 * time.Hour,
	}
}

// Load reads configuration from the given YAML file path, applying defaults
// and environment overrides. An empty path skips the file step.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks config invariants.
func (c *Config) Validate() error {
	if c.QueueCap <= 0 {
		return fmt.Errorf("queue_cap must be positive, got %d", c.QueueCap)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.BaseDelay <= 0 || c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("invalid backoff window: base %v, max %v", c.BaseDelay, c.MaxDelay)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	for _, r := range c.CacheRules {
		switch r.Strategy {
		case "network-first", "cache-first", "network-only":
		default:
			return fmt.Errorf("unknown cache strategy %q for pattern %q", r.Strategy, r.Pattern)
		}
	}
	return nil
}

// applyEnv overrides config fields from AGRISYNC_* environment variables.
func (c *Config) applyEnv() {
	c.DataDir = getEnv("AGRISYNC_DATA_DIR", c.DataDir)
	c.LogLevel = getEnv("AGRISYNC_LOG_LEVEL", c.LogLevel)
	c.RemoteBaseURL = getEnv("AGRISYNC_REMOTE_URL", c.RemoteBaseURL)
	c.QueueCap = getEnvInt("AGRISYNC_QUEUE_CAP", c.QueueCap)
	c.MaxRetries = getEnvInt("AGRISYNC_MAX_RETRIES", c.MaxRetries)
	c.Concurrency = getEnvInt("AGRISYNC_CONCURRENCY", c.Concurrency)
	c.BaseDelay = getEnvDuration("AGRISYNC_BASE_DELAY", c.BaseDelay)
	c.MaxDelay = getEnvDuration("AGRISYNC_MAX_DELAY", c.MaxDelay)
	c.AttemptTimeout = getEnvDuration("AGRISYNC_ATTEMPT_TIMEOUT", c.AttemptTimeout)
	c.SyncInterval = getEnvDuration("AGRISYNC_SYNC_INTERVAL", c.SyncInterval)
	c.CacheTTL = getEnvDuration("AGRISYNC_CACHE_TTL", c.CacheTTL)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
