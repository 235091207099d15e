package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/teranos/chronograph/logger"
	"github.com/teranos/chronograph/schedule"
	"github.com/teranos/chronograph/sym"
)

// CronCmd runs one scheduling cycle
var CronCmd = &cobra.Command{
	Use:   "cron",
	Short: sym.Cron + " Run all jobs that are due",
	Long: sym.Cron + ` cron - run one scheduling cycle.

Resets jobs left running by a previous cycle that never finished, takes a
snapshot of the jobs that are due, and runs each one that is still due when
its turn comes. Progress goes to stdout and, when cron.log_file is set, is
appended to that file.

Failed jobs do not make the command fail; their outcome is in the log.
The exit status is non-zero only when configuration or the database is
unusable.

Invoke it from the system scheduler, for example:
  * * * * * chrono cron >/dev/null`,
	Args: cobra.NoArgs,
	RunE: runCron,
}

func runCron(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	progress, err := logger.NewProgressLogger(cmd.OutOrStdout(), cfg.Cron.LogFile)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Failed to open log file: %s\n", cfg.Cron.LogFile)
		logger.Logger.Debugw("Log file unavailable", logger.FieldPath, cfg.Cron.LogFile, logger.FieldError, err)
	}
	defer progress.Close()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	executor, err := newExecutor(cfg, store)
	if err != nil {
		return err
	}
	resolver := schedule.NewResolver(store, cfg.Cron.StuckAfter(), nil, logger.ComponentLogger("schedule.resolver"))

	runnerCfg := schedule.RunnerConfig{MetricsTextfile: cfg.Cron.MetricsTextfile}
	if cfg.Cron.LaunchesPerSecond > 0 {
		runnerCfg.Limiter = rate.NewLimiter(rate.Limit(cfg.Cron.LaunchesPerSecond), cfg.Cron.LaunchBurst)
	}
	if cfg.Cron.MetricsTextfile != "" {
		runnerCfg.Metrics = schedule.NewMetrics()
	}

	runner := schedule.NewRunner(resolver, executor, progress, runnerCfg, logger.ComponentLogger("schedule.runner"))

	// a signal stops new launches; the running job finishes and is recorded
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := runner.RunCycle(ctx)
	if err != nil {
		return err
	}

	logger.Logger.Infow("Cycle complete",
		logger.FieldCycleID, report.CycleID,
		"due", report.Due,
		"ran", len(report.Runs),
		"failed", report.Failed(),
		"skipped", report.Skipped,
		"errors", report.Errors,
	)
	return nil
}
