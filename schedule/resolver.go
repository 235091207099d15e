package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/chronograph/errors"
	"github.com/teranos/chronograph/logger"
)

// Resolver decides which jobs a cycle should run
type Resolver struct {
	store      JobStore
	stuckAfter time.Duration
	now        func() time.Time
	logger     *zap.SugaredLogger
}

// NewResolver creates a resolver. With stuckAfter zero every job still
// marked running at cycle start counts as stuck; otherwise only jobs
// started more than stuckAfter ago do.
func NewResolver(store JobStore, stuckAfter time.Duration, now func() time.Time, log *zap.SugaredLogger) *Resolver {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{
		store:      store,
		stuckAfter: stuckAfter,
		now:        now,
		logger:     logger.AddCronSymbol(log),
	}
}

// ResetStuckJobs clears the running state of jobs a previous runner left
// behind and returns them as they were. Calling it twice in a row returns
// nothing the second time.
func (r *Resolver) ResetStuckJobs(ctx context.Context) ([]*Job, error) {
	var before *time.Time
	if r.stuckAfter > 0 {
		cutoff := r.now().Add(-r.stuckAfter)
		before = &cutoff
	}

	stuck, err := r.store.ResetStuckJobs(ctx, before)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reset stuck jobs")
	}
	for _, job := range stuck {
		logger.FromContext(ctx, r.logger).Warnw("Reset stuck job",
			logger.FieldJobID, job.ID,
			logger.FieldJobName, job.Name,
			logger.FieldStartedOn, job.StartedOn,
		)
	}
	return stuck, nil
}

// DueJobs snapshots the jobs due now. Jobs that are still running are
// included; IsJobDue filters them out at launch time.
func (r *Resolver) DueJobs(ctx context.Context) ([]*Job, error) {
	jobs, err := r.store.ListDueJobs(ctx, r.now())
	if err != nil {
		return nil, errors.Wrap(err, "failed to list due jobs")
	}
	return jobs, nil
}

// IsJobDue re-reads the job and reports whether it can start now.
// A job deleted since the snapshot is simply not due.
func (r *Resolver) IsJobDue(ctx context.Context, id int64) (bool, error) {
	job, err := r.store.GetJob(ctx, id)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return job.CanStart(r.now()), nil
}
