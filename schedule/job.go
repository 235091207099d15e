package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/teranos/chronograph/errors"
)

// Job is a periodic unit of work: either a registered management command
// run in-process or a shell command run as a subprocess.
type Job struct {
	ID   int64
	Name string

	// Exactly one of Command and ShellCommand is set
	Command      string // management command name
	ShellCommand string
	Args         string // shell-token-escaped argument string
	RunInShell   bool   // run ShellCommand through the configured shell
	Atomic       bool   // advisory: the command should roll back its side effects on failure

	Frequency Frequency
	Params    string

	NextRun           *time.Time
	LastRun           *time.Time
	LastRunSuccessful *bool

	// IsRunning is true exactly when StartedOn is set
	IsRunning bool
	StartedOn *time.Time

	Disabled bool
	AdhocRun bool // run at the next cycle regardless of NextRun

	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobKind distinguishes in-process commands from subprocesses
type JobKind string

const (
	KindManagement JobKind = "management"
	KindShell      JobKind = "shell"
)

// Kind reports how the job is executed
func (j *Job) Kind() JobKind {
	if strings.TrimSpace(j.Command) != "" {
		return KindManagement
	}
	return KindShell
}

// String identifies the job in progress lines and errors
func (j *Job) String() string {
	if j.Name != "" {
		return j.Name
	}
	return fmt.Sprintf("job #%d", j.ID)
}

// CommandLine renders the command with its arguments for display
func (j *Job) CommandLine() string {
	cmd := j.Command
	if j.Kind() == KindShell {
		cmd = j.ShellCommand
	}
	if strings.TrimSpace(j.Args) == "" {
		return cmd
	}
	return cmd + " " + j.Args
}

// Validate checks the job definition invariants. Editors call it before
// saving; the executor calls it again before running.
func (j *Job) Validate() error {
	if strings.TrimSpace(j.Name) == "" {
		return errors.NewInvalidJobError("job needs a name")
	}

	hasCommand := strings.TrimSpace(j.Command) != ""
	hasShell := strings.TrimSpace(j.ShellCommand) != ""
	switch {
	case hasCommand && hasShell:
		return errors.WithHint(
			errors.NewInvalidJobError("job %q sets both command and shell_command", j.Name),
			"a job runs either a management command or a shell command",
		)
	case !hasCommand && !hasShell:
		return errors.NewInvalidJobError("job %q sets neither command nor shell_command", j.Name)
	}

	if j.RunInShell && !hasShell {
		return errors.NewInvalidJobError("job %q: run_in_shell needs a shell_command", j.Name)
	}

	if _, err := ParseRecurrence(string(j.Frequency), j.Params); err != nil {
		return errors.Wrapf(err, "job %q", j.Name)
	}

	if j.IsRunning != (j.StartedOn != nil) {
		return errors.NewInvalidJobError("job %q: is_running and started_on disagree", j.Name)
	}

	return nil
}

// Recurrence parses the job's frequency and params
func (j *Job) Recurrence() (Recurrence, error) {
	return ParseRecurrence(string(j.Frequency), j.Params)
}

// IsDue is the due-set predicate: enabled, and either requested ad hoc
// or scheduled at or before now.
func (j *Job) IsDue(now time.Time) bool {
	if j.Disabled {
		return false
	}
	if j.AdhocRun {
		return true
	}
	return j.NextRun != nil && !j.NextRun.After(now)
}

// CanStart adds the not-already-running condition to IsDue
func (j *Job) CanStart(now time.Time) bool {
	return !j.IsRunning && j.IsDue(now)
}

// Status summarizes the job for listings
func (j *Job) Status() string {
	switch {
	case j.IsRunning:
		return "running"
	case j.Disabled:
		return "disabled"
	case j.AdhocRun:
		return "queued"
	case j.NextRun == nil:
		return "unscheduled"
	default:
		return "scheduled"
	}
}
