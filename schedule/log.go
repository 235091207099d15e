package schedule

import "time"

// Log records one execution attempt of a job
type Log struct {
	ID      string
	JobID   int64
	RunDate time.Time
	// EndDate stays nil while the run is in progress, and forever if the
	// runner died before finalizing it
	EndDate *time.Time
	Stdout  string
	Stderr  string
	Success bool
}

// Finished reports whether the run was finalized
func (l *Log) Finished() bool {
	return l.EndDate != nil
}

// Duration is the run's wall time; ok is false for unfinished runs
func (l *Log) Duration() (d time.Duration, ok bool) {
	if l.EndDate == nil {
		return 0, false
	}
	return l.EndDate.Sub(l.RunDate), true
}

// Outcome summarizes the run for listings
func (l *Log) Outcome() string {
	switch {
	case !l.Finished():
		return "unfinished"
	case l.Success:
		return "success"
	default:
		return "failed"
	}
}
