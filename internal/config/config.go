// Package config provides configuration management for the zoom-recordings CLI
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ZoomConfig holds Zoom OAuth app credentials and endpoint settings
type ZoomConfig struct {
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri" json:"redirect_uri"`
	BaseURL      string `yaml:"base_url" json:"base_url"`
	OAuthURL     string `yaml:"oauth_url" json:"oauth_url"`
}

// DownloadConfig holds download-related settings
type DownloadConfig struct {
	OutputDir      string `yaml:"output_dir" json:"output_dir"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	ChunkSize      int    `yaml:"chunk_size" json:"chunk_size"`
	PageSize       int    `yaml:"page_size" json:"page_size"`
}

// TimeoutDuration returns the timeout as a time.Duration. It bounds the wait for
// response headers, not the transfer of the body.
func (d DownloadConfig) TimeoutDuration() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	Console    bool   `yaml:"console" json:"console"`
	JSONFormat bool   `yaml:"json_format" json:"json_format"`
}

// TokensConfig controls where the CLI keeps the OAuth token pair between runs
type TokensConfig struct {
	File  string `yaml:"file" json:"file"`
	Watch bool   `yaml:"watch" json:"watch"`
}

// MetricsConfig controls Prometheus textfile export
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"`
}

// Config represents the complete application configuration
type Config struct {
	Zoom     ZoomConfig     `yaml:"zoom" json:"zoom"`
	Download DownloadConfig `yaml:"download" json:"download"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Tokens   TokensConfig   `yaml:"tokens" json:"tokens"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// LoadConfig loads configuration from a YAML file with defaults and environment variable overrides
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	if err := config.loadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config from file: %w", err)
	}

	config.setDefaults()
	config.loadFromEnvironment()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// LoadFromEnvironment builds a configuration purely from defaults and environment variables.
// It is used when no config file exists.
func LoadFromEnvironment() (*Config, error) {
	config := &Config{}
	config.setDefaults()
	config.loadFromEnvironment()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func (c *Config) loadFromFile(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// setDefaults applies default values for missing configuration
func (c *Config) setDefaults() {
	if c.Zoom.BaseURL == "" {
		c.Zoom.BaseURL = "https://api.zoom.us/v2"
	}
	if c.Zoom.OAuthURL == "" {
		c.Zoom.OAuthURL = "https://zoom.us/oauth"
	}

	if c.Download.OutputDir == "" {
		c.Download.OutputDir = "./downloads"
	}
	if c.Download.TimeoutSeconds == 0 {
		c.Download.TimeoutSeconds = 300
	}
	if c.Download.ChunkSize == 0 {
		c.Download.ChunkSize = 8192
	}
	if c.Download.PageSize == 0 {
		c.Download.PageSize = 300
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Tokens.File == "" {
		c.Tokens.File = "./zoom-tokens.yaml"
	}
}

// loadFromEnvironment overrides configuration with environment variables
func (c *Config) loadFromEnvironment() {
	if val := os.Getenv("ZOOM_CLIENT_ID"); val != "" {
		c.Zoom.ClientID = val
	}
	if val := os.Getenv("ZOOM_CLIENT_SECRET"); val != "" {
		c.Zoom.ClientSecret = val
	}
	if val := os.Getenv("ZOOM_REDIRECT_URI"); val != "" {
		c.Zoom.RedirectURI = val
	}
	if val := os.Getenv("ZOOM_BASE_URL"); val != "" {
		c.Zoom.BaseURL = val
	}
	if val := os.Getenv("ZOOM_OAUTH_URL"); val != "" {
		c.Zoom.OAuthURL = val
	}

	if val := os.Getenv("DOWNLOAD_OUTPUT_DIR"); val != "" {
		c.Download.OutputDir = val
	}

	if val := os.Getenv("ZOOM_TOKEN_FILE"); val != "" {
		c.Tokens.File = val
	}
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	if c.Zoom.ClientID == "" {
		return fmt.Errorf("zoom.client_id is required")
	}
	if c.Zoom.ClientSecret == "" {
		return fmt.Errorf("zoom.client_secret is required")
	}
	if c.Zoom.RedirectURI == "" {
		return fmt.Errorf("zoom.redirect_uri is required")
	}
	if _, err := url.ParseRequestURI(c.Zoom.RedirectURI); err != nil {
		return fmt.Errorf("zoom.redirect_uri must be an absolute URL: %w", err)
	}

	if c.Download.TimeoutSeconds <= 0 {
		return fmt.Errorf("download.timeout_seconds must be greater than 0")
	}
	if c.Download.ChunkSize <= 0 {
		return fmt.Errorf("download.chunk_size must be greater than 0")
	}
	if c.Download.PageSize <= 0 || c.Download.PageSize > 300 {
		return fmt.Errorf("download.page_size must be between 1 and 300")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	return nil
}
