// Package errors provides error handling for chronograph.
//
// It re-exports github.com/cockroachdb/errors so every package gets stack
// traces, wrapping and user hints from one import, and defines the sentinel
// errors the scheduler uses to signal expected outcomes.
//
//	if err := store.FinishRun(ctx, job, log); err != nil {
//	    return errors.Wrapf(err, "finish run of job %d", job.ID)
//	}
//
//	if errors.Is(err, errors.ErrNotDue) {
//	    // another runner claimed the job first
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack returns the stack trace recorded when the error was created.
var GetStack = crdb.GetReportableStackTrace

// AssertionFailedf reports a violated internal invariant.
var AssertionFailedf = crdb.AssertionFailedf

// Sentinel errors shared across the scheduler.
// Wrap them with context; callers test with errors.Is.
var (
	// ErrNotFound indicates the requested job or log does not exist
	ErrNotFound = New("not found")

	// ErrInvalidJob indicates a job definition violates its invariants
	ErrInvalidJob = New("invalid job")

	// ErrNotDue indicates a job was no longer due when a runner tried to claim it
	ErrNotDue = New("job not due")

	// ErrUnknownCommand indicates a management command name has no registered handler
	ErrUnknownCommand = New("unknown management command")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidJobError checks if an error is or wraps ErrInvalidJob
func IsInvalidJobError(err error) bool {
	return err != nil && Is(err, ErrInvalidJob)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrapf(ErrNotFound, format, args...)
}

// NewInvalidJobError creates an invalid-job error with a formatted message
func NewInvalidJobError(format string, args ...interface{}) error {
	return Wrapf(ErrInvalidJob, format, args...)
}
