package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/chronograph/config"
	"github.com/teranos/chronograph/errors"
	"github.com/teranos/chronograph/internal/util"
	"github.com/teranos/chronograph/jobfile"
	"github.com/teranos/chronograph/schedule"
	"github.com/teranos/chronograph/sym"
)

// JobCmd groups job administration
var JobCmd = &cobra.Command{
	Use:   "job",
	Short: sym.Job + " Define and administer jobs",
	Long: sym.Job + ` job - define and administer periodic jobs.

A job runs either a management command (built in: cleanup_logs, vacuum) or
a shell command, on a frequency of once, minutes, hourly, daily, weekly,
monthly, quarterly, yearly or cron. Frequency params are key=value tokens:

  interval=N          units between runs (default 1)
  day_of_week=D       weekly: 0 (Monday) to 6 (Sunday), or mon..sun
  day_of_month=N      monthly, quarterly, yearly: 1-31, clamped
  expr="m h dom mon dow"   cron: five-field expression or @hourly etc.

Examples:
  chrono job add --name backup --shell "tar czf /tmp/b.tgz /srv" --frequency daily --next-run "2024-01-02 02:00"
  chrono job add --name prune --command cleanup_logs --args days=30 --frequency weekly --params day_of_week=6
  chrono job ls
  chrono job run 3          # queue for the next cycle
  chrono job next 3 --count 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var jobLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List jobs, running and queued first",
	Args:  cobra.NoArgs,
	RunE:  runJobLs,
}

var jobShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a job with its upcoming runs and latest result",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobShow,
}

var jobAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a job",
	Long: `Create a job. Without --next-run a recurring job is scheduled for the
first slot after now; a one-time job stays unscheduled until queued with
"chrono job run".`,
	Args: cobra.NoArgs,
	RunE: runJobAdd,
}

var jobEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a job's definition or schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobEdit,
}

var jobRmCmd = &cobra.Command{
	Use:   "rm <id>...",
	Short: "Delete jobs and their logs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runJobRm,
}

var jobEnableCmd = &cobra.Command{
	Use:   "enable <id>...",
	Short: "Enable jobs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setDisabled(cmd, args, false)
	},
}

var jobDisableCmd = &cobra.Command{
	Use:   "disable <id>...",
	Short: "Disable jobs; they are never due while disabled",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setDisabled(cmd, args, true)
	},
}

var jobResetCmd = &cobra.Command{
	Use:   "reset <id>...",
	Short: "Clear the running state of jobs whose runner died",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runJobReset,
}

var jobRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Queue a job to run at the next cycle regardless of its schedule",
	Long: `Queue a job to run at the next cycle regardless of its schedule.
Its next scheduled run is not affected. With --now the job runs
immediately in this process instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobRun,
}

var jobNextCmd = &cobra.Command{
	Use:   "next <id>",
	Short: "Preview a job's upcoming runs",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobNext,
}

var jobImportCmd = &cobra.Command{
	Use:   "import <file.toml>",
	Short: "Create jobs from a TOML file of [[job]] entries",
	Long: `Create jobs from a TOML file of [[job]] entries:

  [[job]]
  name = "nightly backup"
  shell_command = "tar czf /var/backups/srv.tgz /srv"
  frequency = "daily"
  next_run = "2024-01-02 02:00"

Either every entry is valid and all are created, or none is.
--legacy-args reads args written before shell-style quoting, where
backslashes and double quotes were literal.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobImport,
}

func init() {
	jobLsCmd.Flags().BoolP("all", "a", false, "Include disabled jobs")
	jobLsCmd.Flags().Int("limit", 0, "Show at most this many jobs")

	for _, c := range []*cobra.Command{jobAddCmd, jobEditCmd} {
		c.Flags().String("name", "", "Job name")
		c.Flags().String("command", "", "Management command to run")
		c.Flags().String("shell", "", "Shell command to run")
		c.Flags().String("args", "", "Arguments, shell-quoted")
		c.Flags().Bool("no-shell", false, "Exec the shell command directly instead of through cron.shell")
		c.Flags().String("frequency", "", "once, minutes, hourly, daily, weekly, monthly, quarterly, yearly or cron")
		c.Flags().String("params", "", "Frequency params, e.g. interval=2 day_of_week=0")
		c.Flags().String("next-run", "", "Next run time, in cron.timezone unless an offset is given")
		c.Flags().Bool("disabled", false, "Create or leave the job disabled")
		c.Flags().Bool("non-atomic", false, "Mark the job as not rolling back on failure")
	}
	jobAddCmd.Flags().Bool("legacy-args", false, "Treat backslashes and double quotes in --args literally")

	jobRunCmd.Flags().Bool("now", false, "Run the job now in this process")
	jobNextCmd.Flags().IntP("count", "n", 5, "Number of runs to show")
	jobImportCmd.Flags().Bool("legacy-args", false, "Treat backslashes and double quotes in args literally")
	jobImportCmd.Flags().Bool("dry-run", false, "Validate the file without creating jobs")

	JobCmd.AddCommand(jobLsCmd, jobShowCmd, jobAddCmd, jobEditCmd, jobRmCmd,
		jobEnableCmd, jobDisableCmd, jobResetCmd, jobRunCmd, jobNextCmd, jobImportCmd)
}

func location(cfg *config.Config) *time.Location {
	loc, err := cfg.Cron.Location()
	if err != nil {
		return time.Local
	}
	return loc
}

func runJobLs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	all, _ := cmd.Flags().GetBool("all")
	limit, _ := cmd.Flags().GetInt("limit")
	jobs, err := store.ListJobs(cmd.Context(), schedule.JobFilter{IncludeDisabled: all, Limit: limit})
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s No jobs defined\n", sym.Job)
		return nil
	}

	loc := location(cfg)
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			util.Truncate(job.Name, 30),
			util.Truncate(job.CommandLine(), 40),
			string(job.Frequency),
			formatWhen(job.NextRun, loc),
			formatWhen(job.LastRun, loc),
			formatResult(job.LastRunSuccessful),
			job.Status(),
		})
	}
	if err := renderTable(cmd.OutOrStdout(),
		[]string{"ID", "NAME", "COMMAND", "FREQUENCY", "NEXT RUN", "LAST RUN", "RESULT", "STATUS"},
		rows,
	); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d job(s)\n", len(jobs))
	return nil
}

func runJobShow(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	job, err := store.GetJob(cmd.Context(), ids[0])
	if err != nil {
		return err
	}

	loc := location(cfg)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Job #%d: %s\n", sym.Job, job.ID, job.Name)
	fmt.Fprintf(out, "  Kind:        %s\n", job.Kind())
	fmt.Fprintf(out, "  Command:     %s\n", job.CommandLine())
	if job.Kind() == schedule.KindShell {
		fmt.Fprintf(out, "  In shell:    %t\n", job.RunInShell)
	}
	fmt.Fprintf(out, "  Atomic:      %t\n", job.Atomic)
	fmt.Fprintf(out, "  Frequency:   %s %s\n", job.Frequency, job.Params)
	fmt.Fprintf(out, "  Status:      %s\n", job.Status())
	fmt.Fprintf(out, "  Next run:    %s\n", formatWhen(job.NextRun, loc))
	fmt.Fprintf(out, "  Last run:    %s (%s)\n", formatWhen(job.LastRun, loc), formatResult(job.LastRunSuccessful))
	if job.IsRunning {
		fmt.Fprintf(out, "  Started on:  %s\n", formatWhen(job.StartedOn, loc))
	}
	fmt.Fprintf(out, "  Created:     %s\n", formatWhen(&job.CreatedAt, loc))

	if err := job.Validate(); err != nil {
		fmt.Fprintf(out, "\n  Invalid definition: %v\n", err)
	}

	latest, err := store.LatestLog(cmd.Context(), job.ID)
	switch {
	case errors.IsNotFoundError(err):
	case err != nil:
		return err
	default:
		d, _ := latest.Duration()
		fmt.Fprintf(out, "\n  Latest log %s: %s in %s\n", latest.ID, latest.Outcome(), d.Round(time.Millisecond))
		fmt.Fprintf(out, "    stdout: %s\n", util.Preview(latest.Stdout, 60, "(No output)"))
		fmt.Fprintf(out, "    stderr: %s\n", util.Preview(latest.Stderr, 60, "(No errors)"))
	}
	return nil
}

// entryFromFlags reads the job definition flags shared by add and edit
func entryFromFlags(cmd *cobra.Command, entry *jobfile.Entry) {
	flags := cmd.Flags()
	if flags.Changed("name") {
		entry.Name, _ = flags.GetString("name")
	}
	if flags.Changed("command") {
		entry.Command, _ = flags.GetString("command")
	}
	if flags.Changed("shell") {
		entry.ShellCommand, _ = flags.GetString("shell")
	}
	if flags.Changed("args") {
		entry.Args, _ = flags.GetString("args")
	}
	if flags.Changed("no-shell") {
		noShell, _ := flags.GetBool("no-shell")
		entry.RunInShell = util.Ptr(!noShell)
	}
	if flags.Changed("frequency") {
		entry.Frequency, _ = flags.GetString("frequency")
	}
	if flags.Changed("params") {
		entry.Params, _ = flags.GetString("params")
	}
	if flags.Changed("next-run") {
		entry.NextRun, _ = flags.GetString("next-run")
	}
	if flags.Changed("disabled") {
		entry.Disabled, _ = flags.GetBool("disabled")
	}
	if flags.Changed("non-atomic") {
		nonAtomic, _ := flags.GetBool("non-atomic")
		entry.Atomic = util.Ptr(!nonAtomic)
	}
}

func runJobAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var entry jobfile.Entry
	entryFromFlags(cmd, &entry)
	legacy, _ := cmd.Flags().GetBool("legacy-args")
	job, err := entry.Job(jobfile.Options{LegacyArgs: legacy, Location: location(cfg)})
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.CreateJob(cmd.Context(), job); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Created job #%d %s, next run %s\n",
		sym.Job, job.ID, job.Name, formatWhen(job.NextRun, location(cfg)))
	return nil
}

// entryFromJob is the inverse of jobfile.Entry.Job, used as the base for edits
func entryFromJob(job *schedule.Job) jobfile.Entry {
	entry := jobfile.Entry{
		Name:         job.Name,
		Command:      job.Command,
		ShellCommand: job.ShellCommand,
		Args:         job.Args,
		RunInShell:   util.Ptr(job.RunInShell),
		Atomic:       util.Ptr(job.Atomic),
		Frequency:    string(job.Frequency),
		Params:       job.Params,
		Disabled:     job.Disabled,
	}
	if job.NextRun != nil {
		entry.NextRun = job.NextRun.UTC().Format(time.RFC3339Nano)
	}
	return entry
}

func runJobEdit(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	job, err := store.GetJob(cmd.Context(), ids[0])
	if err != nil {
		return err
	}

	entry := entryFromJob(job)
	entryFromFlags(cmd, &entry)
	// switching kind clears the other command
	if cmd.Flags().Changed("command") && entry.Command != "" {
		entry.ShellCommand = ""
		entry.RunInShell = util.Ptr(false)
	}
	if cmd.Flags().Changed("shell") && entry.ShellCommand != "" {
		entry.Command = ""
		if !cmd.Flags().Changed("no-shell") && job.Kind() != schedule.KindShell {
			entry.RunInShell = util.Ptr(true)
		}
	}

	edited, err := entry.Job(jobfile.Options{Location: location(cfg)})
	if err != nil {
		return err
	}
	edited.ID = job.ID
	edited.AdhocRun = job.AdhocRun
	edited.IsRunning, edited.StartedOn = job.IsRunning, job.StartedOn

	if err := store.UpdateJob(cmd.Context(), edited); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Updated job #%d %s, next run %s\n",
		sym.Job, edited.ID, edited.Name, formatWhen(edited.NextRun, location(cfg)))
	return nil
}

func runJobRm(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	for _, id := range ids {
		if err := store.DeleteJob(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted job #%d\n", sym.Job, id)
	}
	return nil
}

func setDisabled(cmd *cobra.Command, args []string, disabled bool) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := store.SetDisabled(cmd.Context(), ids, disabled)
	if err != nil {
		return err
	}
	verb := "Enabled"
	if disabled {
		verb = "Disabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d job(s)\n", sym.Job, verb, n)
	return nil
}

func runJobReset(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	n, err := store.ResetJobs(cmd.Context(), ids)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Reset %d job(s)\n", sym.Job, n)
	return nil
}

func runJobRun(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	if err := store.RequestAdhocRun(ctx, ids[0]); err != nil {
		return err
	}

	now, _ := cmd.Flags().GetBool("now")
	if !now {
		fmt.Fprintf(cmd.OutOrStdout(), "%s Job #%d queued for the next cycle\n", sym.Job, ids[0])
		return nil
	}

	executor, err := newExecutor(cfg, store)
	if err != nil {
		return err
	}
	job, err := store.GetJob(ctx, ids[0])
	if err != nil {
		return err
	}
	run, err := executor.Execute(ctx, job)
	if errors.Is(err, errors.ErrNotDue) {
		return errors.WithHint(
			errors.Newf("job #%d cannot start now", job.ID),
			"it is disabled or already running; see chrono job show",
		)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, run.Stdout)
	fmt.Fprint(cmd.ErrOrStderr(), run.Stderr)
	d, _ := run.Duration()
	fmt.Fprintf(out, "%s Job #%d %s in %s (log %s)\n", sym.Job, job.ID, run.Outcome(), d.Round(time.Millisecond), run.ID)
	return nil
}

func runJobNext(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	count, _ := cmd.Flags().GetInt("count")
	if count < 1 {
		return errors.Newf("--count must be at least 1, got %d", count)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	job, err := store.GetJob(cmd.Context(), ids[0])
	if err != nil {
		return err
	}
	rec, err := job.Recurrence()
	if err != nil {
		return err
	}

	loc := location(cfg)
	out := cmd.OutOrStdout()
	if job.NextRun == nil {
		fmt.Fprintf(out, "%s Job #%d is not scheduled\n", sym.Job, job.ID)
		return nil
	}
	runs := append([]time.Time{*job.NextRun}, rec.Upcoming(job.NextRun.In(loc), count-1)...)
	for i, run := range runs {
		fmt.Fprintf(out, "%d. %s\n", i+1, run.In(loc).Format(displayTimeLayout))
	}
	if job.Disabled {
		fmt.Fprintln(out, "(job is disabled)")
	}
	return nil
}

func runJobImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	legacy, _ := cmd.Flags().GetBool("legacy-args")
	jobs, err := jobfile.Load(args[0], jobfile.Options{LegacyArgs: legacy, Location: location(cfg)})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		fmt.Fprintf(out, "%s %d job(s) are valid\n", sym.Job, len(jobs))
		return nil
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	for _, job := range jobs {
		if err := store.CreateJob(cmd.Context(), job); err != nil {
			return errors.Wrapf(err, "failed to import %q", job.Name)
		}
		fmt.Fprintf(out, "%s Created job #%d %s\n", sym.Job, job.ID, job.Name)
	}
	return nil
}
