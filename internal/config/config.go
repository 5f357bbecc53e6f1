// Package config provides configuration management for the spike monitor.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/gopinathshiva/spikewatch/internal/models"
)

const (
	// defaultStrikeCount is used when monitor.strike_count is unset
	defaultStrikeCount = 10
	// defaultLookbackMinutes is used when monitor.lookback_minutes is unset
	defaultLookbackMinutes = 5
	// defaultStaleAfter is the liveness window when feed.stale_after is unset
	defaultStaleAfter = 30 * time.Second
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig    `yaml:"environment"`
	Provider    ProviderConfig       `yaml:"provider"`
	Feed        FeedConfig           `yaml:"feed"`
	Monitor     models.MonitorConfig `yaml:"monitor"`
	Dashboard   DashboardConfig      `yaml:"dashboard"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	Mode     string `yaml:"mode"`      // live | sandbox
	LogLevel string `yaml:"log_level"` // debug | info | warn | error
}

// ProviderConfig defines market-data provider API settings.
type ProviderConfig struct {
	APIKey      string `yaml:"api_key"`
	APIEndpoint string `yaml:"api_endpoint"`
	// Timeout is the per-request HTTP timeout, e.g. "10s".
	Timeout string `yaml:"timeout"`
}

// FeedConfig defines the streaming quote feed settings.
type FeedConfig struct {
	URL string `yaml:"url"`
	// StaleAfter is the liveness window: a contract with no tick inside
	// this window fails the history predicate, e.g. "30s".
	StaleAfter string `yaml:"stale_after"`
}

// DashboardConfig defines the JSON API server settings.
type DashboardConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.Environment.Mode != "live" && c.Environment.Mode != "sandbox" {
		return fmt.Errorf("environment.mode must be 'live' or 'sandbox'")
	}

	if c.Provider.APIEndpoint == "" {
		return fmt.Errorf("provider.api_endpoint is required")
	}
	if c.Provider.Timeout != "" {
		if _, err := time.ParseDuration(c.Provider.Timeout); err != nil {
			return fmt.Errorf("provider.timeout invalid: %w", err)
		}
	}

	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if c.Feed.StaleAfter != "" {
		d, err := time.ParseDuration(c.Feed.StaleAfter)
		if err != nil {
			return fmt.Errorf("feed.stale_after invalid: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("feed.stale_after must be > 0")
		}
	}

	c.normalizeMonitorConfig()

	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	if c.Monitor.DistanceThreshold < 0 {
		return fmt.Errorf("monitor.distance_threshold must be >= 0")
	}
	if c.Monitor.PremiumThreshold < 0 {
		return fmt.Errorf("monitor.premium_threshold must be >= 0")
	}
	if c.Monitor.IVThreshold < 0 || c.Monitor.IVThreshold > 100 {
		return fmt.Errorf("monitor.iv_threshold must be between 0 and 100")
	}

	if c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port must be a valid TCP port")
	}

	return nil
}

// IsSandbox returns true if the monitor is configured against sandbox endpoints.
func (c *Config) IsSandbox() bool {
	return c.Environment.Mode == "sandbox"
}

// ProviderTimeout returns the configured provider HTTP timeout.
func (c *Config) ProviderTimeout() time.Duration {
	d, err := time.ParseDuration(c.Provider.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second // default
	}
	return d
}

// StaleAfter returns the configured liveness window.
func (c *Config) StaleAfter() time.Duration {
	d, err := time.ParseDuration(c.Feed.StaleAfter)
	if err != nil || d <= 0 {
		return defaultStaleAfter
	}
	return d
}

// normalizeMonitorConfig sets default values for monitor configuration
func (c *Config) normalizeMonitorConfig() {
	if c.Monitor.StrikeCount == 0 {
		c.Monitor.StrikeCount = defaultStrikeCount
	}
	if c.Monitor.LookbackMinutes == 0 {
		c.Monitor.LookbackMinutes = defaultLookbackMinutes
	}
	if c.Monitor.ReferenceBasis == "" {
		c.Monitor.ReferenceBasis = models.BasisOpen
	}
}
