package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/herobot/internal/config"
	"github.com/Iron-Ham/herobot/internal/errors"
)

var rootCmd = &cobra.Command{
	Use:   "herobot",
	Short: "Report status files to a Telegram chat",
	Long: `Herobot watches a directory of status files and reports the first line of
every changed file to a single Telegram chat. It keeps a heartbeat message
fresh and answers /status and /stop.

Without a subcommand, herobot runs the bot.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBot,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/herobot/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

// configErr is the failure to read the config file, reported by every
// command that reads the configuration.
var configErr error

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults(viper.GetViper())
	configErr = readConfig(viper.GetViper(), viper.GetString("config"))
}

// readConfig reads the config file into v. Without an explicit file, finding
// nothing in the search paths is not an error; a file that exists must parse.
func readConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(config.ConfigDir())
		v.AddConfigPath("$HOME/.config/herobot")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}
