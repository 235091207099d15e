package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/chronograph/cmd/chrono/commands"
	"github.com/teranos/chronograph/config"
	"github.com/teranos/chronograph/logger"
)

var rootCmd = &cobra.Command{
	Use:   "chrono",
	Short: "chronograph - periodic jobs with an execution log",
	Long: `chronograph - periodic jobs with an execution log.

Jobs are stored in SQLite together with a log of every run. An external
scheduler (cron, a systemd timer) invokes "chrono cron" every minute or so;
each invocation runs the jobs that are due and exits.

Available commands:
  cron    - Run one scheduling cycle
  job     - Define and administer jobs
  log     - Inspect and prune execution logs
  config  - Show and validate configuration

Examples:
  chrono job add --name backup --shell "tar czf /tmp/b.tgz /srv" --frequency daily
  chrono cron                  # run everything that is due
  chrono log ls --failed       # recent failures`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			config.SetConfigFile(path)
		}

		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")

		cfg, err := config.Load()
		if err != nil {
			// still bring up logging so the failure is reported consistently
			_ = logger.Initialize(jsonLogs, verbosity)
			return err
		}
		if cfg.Log.Theme != "" {
			logger.SetTheme(cfg.Log.Theme)
		}
		if err := logger.Initialize(jsonLogs || cfg.Log.JSON, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase diagnostic output (-v, -vv)")
	rootCmd.PersistentFlags().String("config", "", "Read configuration from this file only")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write diagnostics as JSON")

	rootCmd.AddCommand(commands.CronCmd)
	rootCmd.AddCommand(commands.JobCmd)
	rootCmd.AddCommand(commands.LogCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
