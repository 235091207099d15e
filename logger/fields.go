package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for structured logging.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity
	FieldJobID   = "job_id"
	FieldJobName = "job_name"
	FieldLogID   = "log_id"
	FieldCycleID = "cycle_id"

	// Components
	FieldComponent = "component"

	// Job definition
	FieldCommand   = "command"
	FieldFrequency = "frequency"
	FieldArgs      = "args"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldRunDate    = "run_date"
	FieldNextRun    = "next_run"
	FieldStartedOn  = "started_on"

	// Outcome
	FieldError    = "error"
	FieldSuccess  = "success"
	FieldExitCode = "exit_code"

	// Counts
	FieldCount = "count"

	// Files
	FieldPath = "path"

	FieldSymbol = "symbol"
)

type contextKey string

const (
	jobIDKey     contextKey = "logger_job_id"
	cycleIDKey   contextKey = "logger_cycle_id"
	componentKey contextKey = "logger_component"
)

// WithJobID adds a job ID to the context for logging
func WithJobID(ctx context.Context, jobID int64) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// WithCycleID tags every entry logged during one runner cycle
func WithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, cycleIDKey, cycleID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if cycleID, ok := ctx.Value(cycleIDKey).(string); ok && cycleID != "" {
		fields = append(fields, FieldCycleID, cycleID)
	}
	if jobID, ok := ctx.Value(jobIDKey).(int64); ok {
		fields = append(fields, FieldJobID, jobID)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// FromContext decorates base with the fields carried by ctx.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
//
//	runner := schedule.NewRunner(store, executor, logger.ComponentLogger("schedule.runner"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
