package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/herobot/internal/config"
	"github.com/Iron-Ham/herobot/internal/logging"
	"github.com/Iron-Ham/herobot/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status [dir]",
	Short: "Show the status of the watched files",
	Long: `Display the first line of every file in the watched directory, the way
/status reports it, without contacting Telegram.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if configErr != nil {
		return configErr
	}
	cfg, err := config.Decode(viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to read configuration: %w", err)
	}

	dir := cfg.Watch.Dir
	if len(args) == 1 {
		dir = config.ResolveDir(args[0])
	}

	store := status.NewStore(afero.NewOsFs(), logging.NopLogger())
	if _, err := store.Scan(dir); err != nil {
		return err
	}
	entries, err := store.Listed(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(out, "%s %s\n\n", cyan("Watching:"), dir)
	if len(entries) == 0 {
		fmt.Fprintln(out, "No status files")
		return nil
	}

	for _, e := range entries {
		at := "unknown date"
		if !e.LastObservedAt.IsZero() {
			at = e.LastObservedAt.Format(status.TimeLayout)
		}
		fmt.Fprintf(out, "%s %s %s\n", cyan(e.DisplayName+":"), e.Text, gray("("+at+")"))
	}
	return nil
}
