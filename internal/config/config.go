package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure
type Config struct {
	Generator GeneratorConfig `yaml:"generator"`
	Platforms PlatformsConfig `yaml:"platforms"`
	Campaign  CampaignConfig  `yaml:"campaign"`
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// GeneratorConfig contains generative backend settings
type GeneratorConfig struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// PlatformsConfig contains social platform endpoint settings
type PlatformsConfig struct {
	GraphBaseURL    string        `yaml:"graph_base_url"`
	LinkedInBaseURL string        `yaml:"linkedin_base_url"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	PublishTimeout  time.Duration `yaml:"publish_timeout"`
}

// CampaignConfig contains ads platform settings
type CampaignConfig struct {
	GraphBaseURL   string        `yaml:"graph_base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AutoBoost      bool          `yaml:"auto_boost"`
}

// APIConfig contains HTTP API settings
type APIConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	APIKey         string        `yaml:"api_key"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// StorageConfig contains storage settings
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	Path       string `yaml:"path"`
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Generator.Model == "" {
		c.Generator.Model = "gemini-2.0-flash"
	}
	if c.Generator.BaseDelay == 0 {
		c.Generator.BaseDelay = 3 * time.Second
	}
	if c.Generator.MaxAttempts == 0 {
		c.Generator.MaxAttempts = 5
	}

	if c.Platforms.GraphBaseURL == "" {
		c.Platforms.GraphBaseURL = "https://graph.facebook.com/v19.0"
	}
	if c.Platforms.LinkedInBaseURL == "" {
		c.Platforms.LinkedInBaseURL = "https://api.linkedin.com"
	}
	if c.Platforms.RequestTimeout == 0 {
		c.Platforms.RequestTimeout = 30 * time.Second
	}
	if c.Platforms.PublishTimeout == 0 {
		c.Platforms.PublishTimeout = 60 * time.Second
	}

	if c.Campaign.GraphBaseURL == "" {
		c.Campaign.GraphBaseURL = c.Platforms.GraphBaseURL
	}
	if c.Campaign.RequestTimeout == 0 {
		c.Campaign.RequestTimeout = 30 * time.Second
	}

	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = 30 * time.Second
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = 120 * time.Second
	}
	if c.API.IdleTimeout == 0 {
		c.API.IdleTimeout = 60 * time.Second
	}
	if c.API.MaxHeaderBytes == 0 {
		c.API.MaxHeaderBytes = 1 << 20 // 1 MB
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "/var/lib/promoforge/promoforge.db"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Generator.APIKey == "" {
		return fmt.Errorf("generator.api_key is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid logging.format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Generator.MaxAttempts < 1 {
		return fmt.Errorf("generator.max_attempts must be at least 1")
	}

	return nil
}
