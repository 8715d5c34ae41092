// Package config holds the service configuration in one place. Values
// start from defaults and can be overridden through the environment; a
// .env file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the full set of service tunables.
type Config struct {
	// ListenAddr is the HTTP bind address.
	ListenAddr string
	// DatabasePath is the SQLite file location.
	DatabasePath string
	// LogLevel is the logrus level name.
	LogLevel string

	// MonitorWindowDays is the trailing accuracy window.
	MonitorWindowDays int
	// MonitorAccuracyThreshold is the percent floor below which a retrain
	// suggestion is emitted.
	MonitorAccuracyThreshold float64
	// MonitorMinimumSample is the evaluated predictions required before the
	// monitor acts.
	MonitorMinimumSample int

	// ComparisonSignificance is the p-value level for model comparisons.
	ComparisonSignificance float64
	// DiscoveryMinSupport is the minimum scoreline frequency for pattern
	// discovery to suggest a definition.
	DiscoveryMinSupport float64
}

// Default returns the standard configuration.
func Default() *Config {
	return &Config{
		ListenAddr:               ":8085",
		DatabasePath:             "analytics.db",
		LogLevel:                 "info",
		MonitorWindowDays:        7,
		MonitorAccuracyThreshold: 70.0,
		MonitorMinimumSample:     10,
		ComparisonSignificance:   0.05,
		DiscoveryMinSupport:      0.15,
	}
}

// Load builds the configuration from defaults, a .env file when present,
// and the process environment.
func Load() (*Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	cfg := Default()
	cfg.ListenAddr = envString("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.MonitorWindowDays = envInt("MONITOR_WINDOW_DAYS", cfg.MonitorWindowDays)
	cfg.MonitorAccuracyThreshold = envFloat("MONITOR_ACCURACY_THRESHOLD", cfg.MonitorAccuracyThreshold)
	cfg.MonitorMinimumSample = envInt("MONITOR_MINIMUM_SAMPLE", cfg.MonitorMinimumSample)
	cfg.ComparisonSignificance = envFloat("COMPARISON_SIGNIFICANCE", cfg.ComparisonSignificance)
	cfg.DiscoveryMinSupport = envFloat("DISCOVERY_MIN_SUPPORT", cfg.DiscoveryMinSupport)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that would misbehave at
// runtime rather than fail fast.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if c.MonitorWindowDays <= 0 {
		return fmt.Errorf("monitor window days must be positive, got %d", c.MonitorWindowDays)
	}
	if c.MonitorAccuracyThreshold <= 0 || c.MonitorAccuracyThreshold > 100 {
		return fmt.Errorf("monitor accuracy threshold must be in (0,100], got %v", c.MonitorAccuracyThreshold)
	}
	if c.MonitorMinimumSample <= 0 {
		return fmt.Errorf("monitor minimum sample must be positive, got %d", c.MonitorMinimumSample)
	}
	if c.ComparisonSignificance <= 0 || c.ComparisonSignificance >= 1 {
		return fmt.Errorf("comparison significance must be in (0,1), got %v", c.ComparisonSignificance)
	}
	if c.DiscoveryMinSupport <= 0 || c.DiscoveryMinSupport > 1 {
		return fmt.Errorf("discovery min support must be in (0,1], got %v", c.DiscoveryMinSupport)
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
