package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/chronograph/errors"
	"github.com/teranos/chronograph/internal/util"
	"github.com/teranos/chronograph/schedule"
	"github.com/teranos/chronograph/sym"
)

// LogCmd groups execution log inspection
var LogCmd = &cobra.Command{
	Use:   "log",
	Short: sym.Log + " Inspect and prune execution logs",
	Long: sym.Log + ` log - inspect and prune job execution logs.

Every run leaves one log with its captured stdout and stderr. A log with
no end date belongs to a run that is in progress, or whose runner died.

Examples:
  chrono log ls --job 3
  chrono log ls --failed
  chrono log latest 3
  chrono log prune --days 30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var logLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent logs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runLogLs,
}

var logShowCmd = &cobra.Command{
	Use:   "show <log-id>",
	Short: "Show a log with its full output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showLog(cmd, func(store *schedule.SQLiteStore) (*schedule.Log, error) {
			return store.GetLog(cmd.Context(), args[0])
		})
	},
}

var logLatestCmd = &cobra.Command{
	Use:   "latest <job-id>",
	Short: "Show the latest log of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		return showLog(cmd, func(store *schedule.SQLiteStore) (*schedule.Log, error) {
			return store.LatestLog(cmd.Context(), ids[0])
		})
	},
}

var logPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete logs older than a number of days",
	Args:  cobra.NoArgs,
	RunE:  runLogPrune,
}

func init() {
	logLsCmd.Flags().Int64("job", 0, "Only logs of this job")
	logLsCmd.Flags().Bool("failed", false, "Only failed runs")
	logLsCmd.Flags().IntP("limit", "n", 20, "Show at most this many logs (0 = all)")

	logPruneCmd.Flags().Int("days", 0, "Age in days (default cron.log_retention_days)")

	LogCmd.AddCommand(logLsCmd, logShowCmd, logLatestCmd, logPruneCmd)
}

func runLogLs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	jobID, _ := cmd.Flags().GetInt64("job")
	failed, _ := cmd.Flags().GetBool("failed")
	limit, _ := cmd.Flags().GetInt("limit")
	logs, err := store.ListLogs(cmd.Context(), schedule.LogFilter{JobID: jobID, FailedOnly: failed, Limit: limit})
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s No logs\n", sym.Log)
		return nil
	}

	loc := location(cfg)
	rows := make([][]string, 0, len(logs))
	for _, l := range logs {
		duration := "-"
		if d, ok := l.Duration(); ok {
			duration = d.Round(time.Millisecond).String()
		}
		rows = append(rows, []string{
			l.ID,
			strconv.FormatInt(l.JobID, 10),
			formatWhen(&l.RunDate, loc),
			duration,
			l.Outcome(),
			util.Preview(l.Stdout, 30, "-"),
			util.Preview(l.Stderr, 30, "-"),
		})
	}
	return renderTable(cmd.OutOrStdout(),
		[]string{"ID", "JOB", "STARTED", "DURATION", "OUTCOME", "STDOUT", "STDERR"},
		rows,
	)
}

func showLog(cmd *cobra.Command, get func(*schedule.SQLiteStore) (*schedule.Log, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	l, err := get(store)
	if err != nil {
		return err
	}

	loc := location(cfg)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Log %s of job #%d\n", sym.Log, l.ID, l.JobID)
	fmt.Fprintf(out, "  Started:  %s\n", formatWhen(&l.RunDate, loc))
	fmt.Fprintf(out, "  Ended:    %s\n", formatWhen(l.EndDate, loc))
	if d, ok := l.Duration(); ok {
		fmt.Fprintf(out, "  Duration: %s\n", d.Round(time.Millisecond))
	}
	fmt.Fprintf(out, "  Outcome:  %s\n", l.Outcome())

	fmt.Fprintln(out, "\n--- stdout ---")
	fmt.Fprintln(out, orPlaceholder(l.Stdout, "(No output)"))
	fmt.Fprintln(out, "--- stderr ---")
	fmt.Fprintln(out, orPlaceholder(l.Stderr, "(No errors)"))
	return nil
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}

func runLogPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	days := cfg.Cron.LogRetentionDays
	if cmd.Flags().Changed("days") {
		days, _ = cmd.Flags().GetInt("days")
	}
	if days <= 0 {
		return errors.WithHint(
			errors.New("no retention period given"),
			"pass --days N or set cron.log_retention_days",
		)
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := store.DeleteLogsBefore(cmd.Context(), cutoff)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %d log(s) older than %d day(s)\n", sym.Log, n, days)
	return nil
}
