package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all nero configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Evaluation engine
	Engine EngineConfig `yaml:"engine"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Prometheus metrics
	Metrics MetricsConfig `yaml:"metrics"`

	// File watcher used by `nero watch`
	Watch WatchConfig `yaml:"watch"`
}

// EngineConfig configures the evaluation engine.
type EngineConfig struct {
	// Debug enables step tracing for every pipeline.
	Debug bool `yaml:"debug"`
	// StandardEquivalences registers str2keyword, str2int and int2float.
	StandardEquivalences bool `yaml:"standard_equivalences"`
	// FactLimit aborts an evaluation whose known set grows past it. 0 disables.
	FactLimit int `yaml:"fact_limit"`
	// Concurrency bounds how many scripts the CLI evaluates at once.
	Concurrency int `yaml:"concurrency"`
}

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// WatchConfig configures the script watcher.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "nero",
		Version: "0.3.0",

		Engine: EngineConfig{
			StandardEquivalences: true,
			Concurrency:          4,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},

		Metrics: MetricsConfig{
			Addr:      ":9464",
			Namespace: "nero",
		},

		Watch: WatchConfig{
			Debounce: "200ms",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("NERO_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if v := os.Getenv("NERO_DEBUG"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Engine.Debug = on
			c.Logging.DebugMode = on
		}
	}
	if addr := os.Getenv("NERO_METRICS_ADDR"); addr != "" {
		c.Metrics.Addr = addr
		c.Metrics.Enabled = true
	}
}

// GetWatchDebounce returns the watcher debounce interval as a duration.
func (c *Config) GetWatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 200 * time.Millisecond
	}
	return d
}

// ValidLevels lists the accepted log levels.
var ValidLevels = []string{"debug", "info", "warn", "error"}

// ValidFormats lists the accepted log encodings.
var ValidFormats = []string{"console", "json"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !contains(ValidLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLevels)
	}
	if c.Logging.Format != "" && !contains(ValidFormats, c.Logging.Format) {
		return fmt.Errorf("invalid log format: %s (valid: %v)", c.Logging.Format, ValidFormats)
	}
	if c.Engine.FactLimit < 0 {
		return fmt.Errorf("fact_limit must not be negative: %d", c.Engine.FactLimit)
	}
	if c.Engine.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1: %d", c.Engine.Concurrency)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics enabled without an address")
	}
	if _, err := time.ParseDuration(c.Watch.Debounce); c.Watch.Debounce != "" && err != nil {
		return fmt.Errorf("invalid watch debounce %q: %w", c.Watch.Debounce, err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// LoggingConfig selects the root log level and encoding, and which category
// loggers write anything.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
	// DebugMode gates every category logger; with it off they are no-ops.
	DebugMode bool `yaml:"debug_mode"`
	// Categories switches single categories off, or back on, in debug mode.
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// IsCategoryEnabled reports whether the category logger should write.
func (c LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	on, listed := c.Categories[category]
	return !listed || on
}
