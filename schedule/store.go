package schedule

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/chronograph/errors"
)

// JobStore persists job definitions and their run state
type JobStore interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id int64) (*Job, error)
	UpdateJob(ctx context.Context, job *Job) error
	DeleteJob(ctx context.Context, id int64) error
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)

	// ResetStuckJobs clears the running flag of jobs started before
	// startedBefore (every running job when nil) and returns them as they
	// were before the reset.
	ResetStuckJobs(ctx context.Context, startedBefore *time.Time) ([]*Job, error)
	// ListDueJobs returns jobs matching the due predicate at now, by id.
	ListDueJobs(ctx context.Context, now time.Time) ([]*Job, error)
	// ClaimJob marks a due, idle job running and creates its log in one
	// transaction. It returns errors.ErrNotDue when the job no longer
	// qualifies, for example because another runner claimed it.
	ClaimJob(ctx context.Context, id int64, now time.Time) (*Job, *Log, error)
	// FinishRun finalizes the log and the job's run state together.
	FinishRun(ctx context.Context, job *Job, log *Log) error

	SetDisabled(ctx context.Context, ids []int64, disabled bool) (int64, error)
	ResetJobs(ctx context.Context, ids []int64) (int64, error)
	RequestAdhocRun(ctx context.Context, id int64) error
}

// LogStore reads and prunes execution logs
type LogStore interface {
	GetLog(ctx context.Context, id string) (*Log, error)
	ListLogs(ctx context.Context, filter LogFilter) ([]*Log, error)
	LatestLog(ctx context.Context, jobID int64) (*Log, error)
	DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store is everything the scheduler persists
type Store interface {
	JobStore
	LogStore
	Vacuum(ctx context.Context) error
}

// JobFilter narrows ListJobs
type JobFilter struct {
	IncludeDisabled bool
	Limit           int // 0 = no limit
}

// LogFilter narrows ListLogs
type LogFilter struct {
	JobID      int64 // 0 = all jobs
	FailedOnly bool
	Limit      int // 0 = no limit
}

// timeLayout is fixed-width UTC so text comparison in SQL is time comparison
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// rows written by hand
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, errors.Wrapf(err, "parse timestamp %q", s)
		}
	}
	return t.UTC(), nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}
