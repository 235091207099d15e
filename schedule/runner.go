package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/chronograph/errors"
	"github.com/teranos/chronograph/logger"
	"github.com/teranos/chronograph/sym"
)

// RunnerConfig tunes a cycle
type RunnerConfig struct {
	// Limiter paces job launches within a cycle; nil = launch back to back
	Limiter *rate.Limiter

	// Metrics, when set, is updated after each cycle and written to
	// MetricsTextfile if that is set too
	Metrics         *Metrics
	MetricsTextfile string

	Now func() time.Time
}

// CycleReport summarizes one cycle
type CycleReport struct {
	CycleID  string
	Started  time.Time
	Finished time.Time

	Stuck   []*Job // jobs reset at startup, as they were before the reset
	Due     int    // size of the startup snapshot
	Runs    []*Log // finished runs, in launch order
	Skipped int    // snapshot jobs no longer due at launch
	Errors  int    // jobs whose launch or bookkeeping hit a store error
}

// Failed counts finished runs that did not succeed
func (r *CycleReport) Failed() int {
	n := 0
	for _, run := range r.Runs {
		if !run.Success {
			n++
		}
	}
	return n
}

// Runner performs a scheduling cycle: reset stuck jobs, snapshot the due
// set, then run each job that is still due, one at a time.
type Runner struct {
	resolver *Resolver
	executor *Executor
	progress *logger.ProgressLogger
	cfg      RunnerConfig
	logger   *zap.SugaredLogger
}

// NewRunner creates a runner. progress receives the operator-facing cycle
// lines; log receives diagnostics.
func NewRunner(resolver *Resolver, executor *Executor, progress *logger.ProgressLogger, cfg RunnerConfig, log *zap.SugaredLogger) *Runner {
	if progress == nil {
		progress = logger.NopProgressLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Runner{
		resolver: resolver,
		executor: executor,
		progress: progress,
		cfg:      cfg,
		logger:   logger.AddCronSymbol(log),
	}
}

// RunCycle runs one cycle. Failures of individual jobs are recorded in
// their logs and never abort the cycle; an error is returned only when the
// store cannot be read at startup or ctx is cancelled.
func (r *Runner) RunCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{
		CycleID: uuid.NewString(),
		Started: r.cfg.Now(),
	}
	ctx = logger.WithCycleID(ctx, report.CycleID)
	log := logger.FromContext(ctx, r.logger)
	defer r.finish(report)

	log.Debugw(sym.Startup + " Cycle starting")
	if r.progress.HasFile() {
		r.progress.Info("Starting up.")
	}

	stuck, err := r.resolver.ResetStuckJobs(ctx)
	if err != nil {
		return report, err
	}
	report.Stuck = stuck
	if len(stuck) > 0 {
		r.progress.Infof("%d stuck job(s) reset:", len(stuck))
		for i, job := range stuck {
			r.progress.Infof("%d. %s", i+1, job)
		}
	}

	due, err := r.resolver.DueJobs(ctx)
	if err != nil {
		return report, err
	}
	report.Due = len(due)
	if len(due) == 0 {
		r.progress.Info("No due jobs at this time.")
		return report, nil
	}

	r.progress.Infof("%d due job(s) at startup:", len(due))
	for i, job := range due {
		r.progress.Infof("%d. %s", i+1, job)
	}

	for _, job := range due {
		if err := ctx.Err(); err != nil {
			return report, errors.Wrap(err, "cycle interrupted")
		}
		r.runOne(ctx, job, report)
	}

	r.progress.Info("Finished running all due jobs.")
	log.Debugw(sym.Done+" Cycle finished",
		logger.FieldCount, len(report.Runs),
		"failed", report.Failed(),
		"skipped", report.Skipped,
	)
	return report, nil
}

func (r *Runner) runOne(ctx context.Context, job *Job, report *CycleReport) {
	name := job.String()
	log := logger.FromContext(logger.WithJobID(ctx, job.ID), r.logger)

	ok, err := r.resolver.IsJobDue(ctx, job.ID)
	if err != nil {
		report.Errors++
		r.progress.Infof("Unhandled exception while running job %s: %v", name, err)
		log.Errorw("Failed to check job", logger.FieldError, err)
		return
	}
	if !ok {
		report.Skipped++
		r.progress.Infof("This job is no longer due and will be skipped: %s.", name)
		return
	}

	if r.cfg.Limiter != nil {
		if err := r.cfg.Limiter.Wait(ctx); err != nil {
			// ctx is done; the loop stops at the next check
			return
		}
	}

	r.progress.Infof("Running job %s.", name)
	run, err := r.executor.Execute(ctx, job)
	switch {
	case errors.Is(err, errors.ErrNotDue):
		// claimed by another runner between the check and the launch
		report.Skipped++
		r.progress.Infof("This job is no longer due and will be skipped: %s.", name)
	case err != nil:
		report.Errors++
		r.progress.Infof("Unhandled exception while running job %s: %v", name, err)
		log.Errorw("Job run failed", logger.FieldError, err, "detail", errors.FlattenDetails(err))
	default:
		report.Runs = append(report.Runs, run)
		r.progress.Infof("Done running job %s.", name)
	}
}

func (r *Runner) finish(report *CycleReport) {
	report.Finished = r.cfg.Now()
	if r.cfg.Metrics == nil {
		return
	}
	r.cfg.Metrics.Observe(report)
	if r.cfg.MetricsTextfile == "" {
		return
	}
	if err := r.cfg.Metrics.WriteTextfile(r.cfg.MetricsTextfile); err != nil {
		r.logger.Warnw("Failed to write metrics", logger.FieldPath, r.cfg.MetricsTextfile, logger.FieldError, err)
	}
}
