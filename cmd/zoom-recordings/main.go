package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Version information - set during build
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// cliOptions holds the global flags
type cliOptions struct {
	configFile string
	verbose    bool
}

// buildRootCommand creates and configures the root command
func buildRootCommand() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:   "zoom-recordings",
		Short: "Authorize with Zoom and download your cloud recordings",
		Long: `zoom-recordings authorizes against Zoom with the OAuth authorization code
flow, lists the cloud recordings of the authorized user and downloads
their files.

Typical workflow:
  zoom-recordings auth login          # authorize once, tokens are saved
  zoom-recordings list --from 2024-01-01
  zoom-recordings download --from 2024-01-01 --output-dir ./recordings`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(opts.configFile); err != nil {
				showConfigurationIssue(cmd, err)
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "configuration file path (default: config.yaml when present)")
	rootCmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "debug logging and per-file download messages")

	rootCmd.AddCommand(createAuthCommand(opts))
	rootCmd.AddCommand(createListCommand(opts))
	rootCmd.AddCommand(createDownloadCommand(opts))
	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())

	return rootCmd
}

// showConfigurationIssue explains how to fix a missing or invalid configuration
func showConfigurationIssue(cmd *cobra.Command, err error) {
	cmd.Printf("Configuration Issue Detected\n\n")
	cmd.Printf("Configuration error: %v\n\n", err)

	if errors.Is(err, os.ErrNotExist) || strings.Contains(err.Error(), "failed to read config file") {
		cmd.Printf("To get started:\n")
		cmd.Printf("1. Run 'zoom-recordings config' to see the configuration structure\n")
		cmd.Printf("2. Create config.yaml with your Zoom OAuth app credentials\n")
		cmd.Printf("3. Run 'zoom-recordings auth login'\n\n")
	} else {
		cmd.Printf("To fix this:\n")
		cmd.Printf("1. Run 'zoom-recordings config' to see the correct configuration structure\n")
		cmd.Printf("2. Check your config file for syntax errors or missing required fields\n\n")
	}

	cmd.Printf("Credentials can also come from the environment:\n")
	cmd.Printf("   export ZOOM_CLIENT_ID='your-client-id'\n")
	cmd.Printf("   export ZOOM_CLIENT_SECRET='your-client-secret'\n")
	cmd.Printf("   export ZOOM_REDIRECT_URI='https://example.com/callback'\n")
}

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("zoom-recordings version %s\n", version)
			cmd.Printf("Commit: %s\n", commit)
			cmd.Printf("Build date: %s\n", buildDate)
		},
	}
}

// createConfigCommand creates the config help subcommand
func createConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration file structure",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(configHelp)
		},
	}
}

const configHelp = `Configuration File Structure (config.yaml):

ZOOM OAUTH APP (Required):
=========================
zoom:
  client_id: "your_client_id"                  # OAuth app client ID
  client_secret: "your_client_secret"          # OAuth app client secret
  redirect_uri: "https://example.com/callback" # Redirect URL registered with the app
  base_url: "https://api.zoom.us/v2"           # API base URL (default)
  oauth_url: "https://zoom.us/oauth"           # OAuth base URL (default)

# REQUIRED SCOPES: cloud_recording:read:list_user_recordings

DOWNLOAD CONFIGURATION:
======================
download:
  output_dir: "./downloads"  # Base download directory (default: ./downloads)
  timeout_seconds: 300       # Wait for a download to start responding (default: 300)
  chunk_size: 8192           # Bytes per read while streaming (default: 8192)
  page_size: 300             # Recordings per listing page, 1-300 (default: 300)

LOGGING CONFIGURATION:
=====================
logging:
  level: "info"              # debug, info, warn, error (default: info)
  file: ""                   # Optional log file
  console: true              # Log to stderr
  json_format: false         # JSON log lines

TOKEN STORAGE:
=============
tokens:
  file: "./zoom-tokens.yaml" # Where auth login saves tokens (mode 0600)
  watch: false               # Reload tokens rewritten by another process

METRICS (Optional):
==================
metrics:
  textfile_path: ""          # Write Prometheus metrics here after each run

ENVIRONMENT VARIABLES:
=====================
  ZOOM_CLIENT_ID, ZOOM_CLIENT_SECRET, ZOOM_REDIRECT_URI
  ZOOM_BASE_URL, ZOOM_OAUTH_URL
  DOWNLOAD_OUTPUT_DIR
  ZOOM_TOKEN_FILE

DIRECTORY STRUCTURE:
===================
downloads/
└── YYYY/
    └── MM/
        └── DD/
            ├── meeting-topic-HHMM.mp4
            ├── meeting-topic-HHMM.m4a
            └── meeting-topic-HHMM.txt
`

func main() {
	rootCmd := buildRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
