package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/herobot/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View herobot configuration",
	Long: `View herobot configuration.

Without arguments, displays the effective configuration.
Use subcommands to create a config file or show where it is read from.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/herobot/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return configErr
	}
	cfg, err := config.Decode(viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "# Config file: (none - using defaults and environment)\n")
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

const defaultConfigContent = `# Herobot Configuration
# Environment variables override this file: TELEGRAM_BOT_TOKEN (or BOT_TOKEN),
# RID, WATCH_DIR, and HEROBOT_* for every other key.

bot:
  # Bot API token. Prefer the TELEGRAM_BOT_TOKEN environment variable.
  token: ""
  # Chat id of the only recipient
  recipient_id: ""

watch:
  # Directory whose files are reported
  dir: ~/.herobot
  # Quiet period collapsing bursts of writes to one file
  debounce: 2s
  # Glob patterns (base names) whose changes are ignored
  ignore:
    - "*.swp"
    - ".#*"

heartbeat:
  # How often the liveness message is refreshed
  interval: 10s
  online_text: "Herobot is back!"
  prefix: "Herobot pinged at"

chat:
  # Long-poll timeout for /status and /stop
  poll_timeout: 30s
  # Send without a notification sound
  silent: true
  # Outbound calls per second and burst
  rate_limit: 1
  burst: 5

logging:
  # debug, info, warn, error
  level: info
  # Empty logs to stderr
  file: ""
  max_size_mb: 10
  max_backups: 3
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. $HOME/.config/herobot/config.yaml\n")
	fmt.Fprintf(out, "  3. ./config.yaml (current directory)\n")
	fmt.Fprintf(out, "\nEnvironment variables: TELEGRAM_BOT_TOKEN, RID, WATCH_DIR, %s_* (e.g., %s_HEARTBEAT_INTERVAL)\n", config.EnvPrefix, config.EnvPrefix)

	return nil
}
