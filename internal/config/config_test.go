package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}
	return configPath
}

func validConfig() *Config {
	return &Config{
		Zoom: ZoomConfig{
			ClientID:     "test_client",
			ClientSecret: "test_secret",
			RedirectURI:  "http://localhost:8080/zoom_login",
		},
		Download: DownloadConfig{
			TimeoutSeconds: 300,
			ChunkSize:      8192,
			PageSize:       300,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name         string
		configYAML   string
		expectedZoom ZoomConfig
		shouldError  bool
	}{
		{
			name: "complete configuration",
			configYAML: `
zoom:
  client_id: "test_client_id"
  client_secret: "test_client_secret"
  redirect_uri: "http://localhost:8080/zoom_login"
  base_url: "https://api.zoom.us/v2"
  oauth_url: "https://zoom.us/oauth"

download:
  output_dir: "./recordings"
  timeout_seconds: 120
  chunk_size: 4096
  page_size: 100

logging:
  level: "debug"
  file: "./zoom-recordings.log"
  console: true
  json_format: true

tokens:
  file: "./tokens.yaml"
  watch: true
`,
			expectedZoom: ZoomConfig{
				ClientID:     "test_client_id",
				ClientSecret: "test_client_secret",
				RedirectURI:  "http://localhost:8080/zoom_login",
				BaseURL:      "https://api.zoom.us/v2",
				OAuthURL:     "https://zoom.us/oauth",
			},
		},
		{
			name: "minimal configuration with defaults",
			configYAML: `
zoom:
  client_id: "test_client"
  client_secret: "test_secret"
  redirect_uri: "http://localhost:8080/cb"
`,
			expectedZoom: ZoomConfig{
				ClientID:     "test_client",
				ClientSecret: "test_secret",
				RedirectURI:  "http://localhost:8080/cb",
				BaseURL:      "https://api.zoom.us/v2",
				OAuthURL:     "https://zoom.us/oauth",
			},
		},
		{
			name: "missing redirect uri",
			configYAML: `
zoom:
  client_id: "test_client"
  client_secret: "test_secret"
`,
			shouldError: true,
		},
		{
			name:        "invalid YAML",
			configYAML:  "invalid: yaml: content: [unclosed",
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfig(writeConfig(t, tt.configYAML))

			if tt.shouldError {
				if err == nil {
					t.Errorf("Expected error, but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if config.Zoom != tt.expectedZoom {
				t.Errorf("Expected Zoom config %+v, got %+v", tt.expectedZoom, config.Zoom)
			}
		})
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:     "missing client_id",
			mutate:   func(c *Config) { c.Zoom.ClientID = "" },
			errorMsg: "zoom.client_id is required",
		},
		{
			name:     "missing client_secret",
			mutate:   func(c *Config) { c.Zoom.ClientSecret = "" },
			errorMsg: "zoom.client_secret is required",
		},
		{
			name:     "zero timeout",
			mutate:   func(c *Config) { c.Download.TimeoutSeconds = 0 },
			errorMsg: "download.timeout_seconds must be greater than 0",
		},
		{
			name:     "zero chunk size",
			mutate:   func(c *Config) { c.Download.ChunkSize = 0 },
			errorMsg: "download.chunk_size must be greater than 0",
		},
		{
			name:     "page size above zoom maximum",
			mutate:   func(c *Config) { c.Download.PageSize = 301 },
			errorMsg: "download.page_size must be between 1 and 300",
		},
		{
			name:     "invalid log level",
			mutate:   func(c *Config) { c.Logging.Level = "verbose" },
			errorMsg: "logging.level must be one of: debug, info, warn, error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)
			err := config.Validate()

			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error %q, but got none", tt.errorMsg)
			}
			if err.Error() != tt.errorMsg {
				t.Errorf("Expected error message %q, got %q", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestRelativeRedirectURIRejected(t *testing.T) {
	config := validConfig()
	config.Zoom.RedirectURI = "zoom_login"
	if err := config.Validate(); err == nil {
		t.Error("Expected error for relative redirect uri")
	}
}

func TestConfigDefaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, `
zoom:
  client_id: "test_client"
  client_secret: "test_secret"
  redirect_uri: "http://localhost:8080/zoom_login"
`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if config.Download.OutputDir != "./downloads" {
		t.Errorf("Expected default OutputDir ./downloads, got %s", config.Download.OutputDir)
	}
	if config.Download.ChunkSize != 8192 {
		t.Errorf("Expected default ChunkSize 8192, got %d", config.Download.ChunkSize)
	}
	if config.Download.PageSize != 300 {
		t.Errorf("Expected default PageSize 300, got %d", config.Download.PageSize)
	}
	if config.Logging.Level != "info" {
		t.Errorf("Expected default Logging Level info, got %s", config.Logging.Level)
	}
	if config.Tokens.File != "./zoom-tokens.yaml" {
		t.Errorf("Expected default token file ./zoom-tokens.yaml, got %s", config.Tokens.File)
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := LoadConfig("nonexistent_config.yaml")
	if err == nil {
		t.Error("Expected error for nonexistent config file, but got none")
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("ZOOM_CLIENT_ID", "env_client")
	t.Setenv("ZOOM_CLIENT_SECRET", "env_secret")
	t.Setenv("ZOOM_REDIRECT_URI", "http://localhost:9000/cb")
	t.Setenv("ZOOM_TOKEN_FILE", "/tmp/env-tokens.yaml")
	t.Setenv("DOWNLOAD_OUTPUT_DIR", "/tmp/env-downloads")

	config, err := LoadFromEnvironment()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if config.Zoom.ClientID != "env_client" {
		t.Errorf("Expected ClientID from env, got %s", config.Zoom.ClientID)
	}
	if config.Zoom.ClientSecret != "env_secret" {
		t.Errorf("Expected ClientSecret from env, got %s", config.Zoom.ClientSecret)
	}
	if config.Zoom.RedirectURI != "http://localhost:9000/cb" {
		t.Errorf("Expected RedirectURI from env, got %s", config.Zoom.RedirectURI)
	}
	if config.Tokens.File != "/tmp/env-tokens.yaml" {
		t.Errorf("Expected token file from env, got %s", config.Tokens.File)
	}
	if config.Download.OutputDir != "/tmp/env-downloads" {
		t.Errorf("Expected output dir from env, got %s", config.Download.OutputDir)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("ZOOM_CLIENT_SECRET", "from_env")

	config, err := LoadConfig(writeConfig(t, `
zoom:
  client_id: "file_client"
  client_secret: "from_file"
  redirect_uri: "http://localhost:8080/zoom_login"
`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if config.Zoom.ClientSecret != "from_env" {
		t.Errorf("Expected env to override file secret, got %s", config.Zoom.ClientSecret)
	}
	if config.Zoom.ClientID != "file_client" {
		t.Errorf("Expected ClientID from file, got %s", config.Zoom.ClientID)
	}
}

func TestTimeoutDuration(t *testing.T) {
	config := &Config{
		Download: DownloadConfig{
			TimeoutSeconds: 300,
		},
	}

	expectedDuration := 300 * time.Second
	if config.Download.TimeoutDuration() != expectedDuration {
		t.Errorf("Expected timeout duration %v, got %v", expectedDuration, config.Download.TimeoutDuration())
	}
}
