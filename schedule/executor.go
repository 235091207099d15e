package schedule

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/chronograph/errors"
	"github.com/teranos/chronograph/logger"
)

// DefaultWaitDelay bounds how long a killed job's output pipes may stay
// open after its timeout fires.
const DefaultWaitDelay = 5 * time.Second

// ExecutorConfig tunes how jobs are run
type ExecutorConfig struct {
	Shell     string         // used for run_in_shell jobs (default /bin/sh)
	Timeout   time.Duration  // per-job limit, 0 = none
	Location  *time.Location // zone for calendar arithmetic (default time.Local)
	WaitDelay time.Duration
	Now       func() time.Time
}

// Executor runs a single job end to end: claim, run, record
type Executor struct {
	store    JobStore
	commands *CommandRegistry
	cfg      ExecutorConfig
	logger   *zap.SugaredLogger
}

// NewExecutor creates an executor. commands may be nil when no management
// commands are registered.
func NewExecutor(store JobStore, commands *CommandRegistry, cfg ExecutorConfig, log *zap.SugaredLogger) *Executor {
	if cfg.Shell == "" {
		cfg.Shell = "/bin/sh"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.WaitDelay == 0 {
		cfg.WaitDelay = DefaultWaitDelay
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if commands == nil {
		commands = NewCommandRegistry()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Executor{
		store:    store,
		commands: commands,
		cfg:      cfg,
		logger:   log,
	}
}

// Execute runs the job and records the outcome.
//
// The job is claimed first; errors.ErrNotDue means it was no longer due.
// Failures of the job itself (non-zero exit, invalid definition, a
// command's error or panic) are recorded in the returned log and are not
// errors. A non-nil error otherwise means the store failed.
func (e *Executor) Execute(ctx context.Context, job *Job) (*Log, error) {
	ctx = logger.WithJobID(ctx, job.ID)
	log := logger.FromContext(ctx, e.logger)

	claimed, run, err := e.store.ClaimJob(ctx, job.ID, e.cfg.Now())
	if err != nil {
		return nil, err
	}
	*job = *claimed

	var stdout, stderr bytes.Buffer
	started := time.Now()
	success := e.run(ctx, job, run, &stdout, &stderr)

	next, err := e.nextRun(job, run.RunDate)
	if err != nil {
		fmt.Fprintf(&stderr, "could not compute next run: %v\n", err)
		log.Warnw("Failed to compute next run", logger.FieldError, err)
	}

	end := e.cfg.Now()
	if end.Before(run.RunDate) {
		end = run.RunDate
	}
	runDate := run.RunDate
	run.EndDate = &end
	run.Stdout = stdout.String()
	run.Stderr = stderr.String()
	run.Success = success

	job.LastRun = &runDate
	job.LastRunSuccessful = &success
	job.NextRun = next

	// the outcome is recorded even when the cycle is being cancelled
	if err := e.store.FinishRun(context.WithoutCancel(ctx), job, run); err != nil {
		return run, errors.Wrapf(err, "failed to record run of %s", job)
	}

	log.Debugw("Job finished",
		logger.FieldLogID, run.ID,
		logger.FieldSuccess, success,
		logger.FieldDurationMS, time.Since(started).Milliseconds(),
		logger.FieldNextRun, next,
	)
	return run, nil
}

// nextRun computes the schedule after a run that started at runDate.
// Recurring jobs keep the wall-clock slot of the run they were due for;
// a one-time job is unscheduled unless it was moved into the future.
func (e *Executor) nextRun(job *Job, runDate time.Time) (*time.Time, error) {
	rec, err := job.Recurrence()
	if err != nil {
		return nil, err
	}

	if rec.Frequency.IsOnce() {
		if job.NextRun != nil && job.NextRun.After(runDate) {
			return job.NextRun, nil
		}
		return nil, nil
	}

	anchor := runDate
	if job.NextRun != nil {
		anchor = *job.NextRun
	}
	next := rec.NextAfter(anchor.In(e.cfg.Location), runDate.In(e.cfg.Location))
	if next == nil {
		return nil, nil
	}
	utc := next.UTC()
	return &utc, nil
}

func (e *Executor) run(ctx context.Context, job *Job, run *Log, stdout, stderr io.Writer) bool {
	log := logger.FromContext(ctx, e.logger)

	if err := job.Validate(); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		log.Warnw("Refusing to run invalid job", logger.FieldError, err)
		return false
	}

	args, ambiguous := SplitArgs(job.Args)
	if ambiguous {
		log.Warnw("Ambiguous argument string, running with best-effort split",
			logger.FieldArgs, job.Args,
			"split", args,
		)
		fmt.Fprintf(stderr, "warning: ambiguous argument string %q, ran with %q\n", job.Args, args)
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	var err error
	switch job.Kind() {
	case KindManagement:
		err = e.commands.Run(ctx, job.Command, &Invocation{
			Job:    job,
			Args:   args,
			Stdout: stdout,
			Stderr: stderr,
		})
	default:
		err = e.runShell(ctx, job, run, args, stdout, stderr)
	}

	if err == nil {
		return true
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		fmt.Fprintf(stderr, "job timed out after %s\n", e.cfg.Timeout)
	}
	fmt.Fprintf(stderr, "%v\n", err)
	return false
}

func (e *Executor) runShell(ctx context.Context, job *Job, run *Log, args []string, stdout, stderr io.Writer) error {
	var cmd *exec.Cmd
	if job.RunInShell {
		line := job.ShellCommand
		if len(args) > 0 {
			line += " " + JoinArgs(args)
		}
		cmd = exec.CommandContext(ctx, e.cfg.Shell, "-c", line)
	} else {
		argv, _ := SplitArgs(job.ShellCommand)
		if len(argv) == 0 {
			return errors.NewInvalidJobError("job %q has an empty shell_command", job.Name)
		}
		argv = append(argv, args...)
		cmd = exec.CommandContext(ctx, argv[0], argv[1:]...)
	}

	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = e.cfg.WaitDelay
	cmd.Env = append(os.Environ(),
		"CHRONO_JOB_ID="+strconv.FormatInt(job.ID, 10),
		"CHRONO_JOB_NAME="+job.Name,
		"CHRONO_JOB_ATOMIC="+strconv.FormatBool(job.Atomic),
		"CHRONO_LOG_ID="+run.ID,
	)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.FromContext(ctx, e.logger).Debugw("Job exited non-zero",
				logger.FieldExitCode, exitErr.ExitCode())
			// plain "exit status N", without a stack
			return exitErr
		}
		return errors.Wrapf(err, "failed to run %s", job.ShellCommand)
	}
	return nil
}
