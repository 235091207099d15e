// Package jobfile reads bulk job definitions from TOML:
//
//	[[job]]
//	name = "nightly backup"
//	shell_command = "tar czf /var/backups/srv.tgz /srv"
//	frequency = "daily"
//	next_run = "2024-01-01 02:00"
//
//	[[job]]
//	name = "prune logs"
//	command = "cleanup_logs"
//	args = "days=30"
//	frequency = "weekly"
//	params = "day_of_week=6"
package jobfile

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/teranos/chronograph/errors"
	"github.com/teranos/chronograph/schedule"
)

// Entry is one job definition as written by an operator
type Entry struct {
	Name         string `toml:"name"`
	Command      string `toml:"command"`
	ShellCommand string `toml:"shell_command"`
	Args         string `toml:"args"`
	RunInShell   *bool  `toml:"run_in_shell"` // default true for shell commands
	Atomic       *bool  `toml:"atomic"`       // default true
	Frequency    string `toml:"frequency"`
	Params       string `toml:"params"`
	NextRun      string `toml:"next_run"` // empty = first slot after now
	Disabled     bool   `toml:"disabled"`
}

// File is the decoded document
type File struct {
	Jobs []Entry `toml:"job"`
}

// Options controls how entries become jobs
type Options struct {
	// LegacyArgs treats backslashes and double quotes in args as literal
	// characters, the way argument strings were written before shell-style
	// parsing.
	LegacyArgs bool
	// Location interprets next_run values without an offset (default time.Local)
	Location *time.Location
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Load reads and converts a job file
func Load(path string, opts Options) ([]*schedule.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read job file %s", path)
	}
	jobs, err := Parse(data, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "job file %s", path)
	}
	return jobs, nil
}

// Parse decodes a job file. Unknown keys, duplicate names and invalid
// definitions are rejected; nothing is returned unless every entry is valid.
func Parse(data []byte, opts Options) ([]*schedule.Job, error) {
	var file File
	md, err := toml.Decode(string(data), &file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse job file")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.WithHint(
			errors.Newf("unknown keys: %s", strings.Join(keys, ", ")),
			"each [[job]] accepts name, command, shell_command, args, run_in_shell, atomic, frequency, params, next_run, disabled",
		)
	}

	opts = opts.withDefaults()
	seen := make(map[string]bool, len(file.Jobs))
	jobs := make([]*schedule.Job, 0, len(file.Jobs))
	for i, entry := range file.Jobs {
		if seen[entry.Name] {
			return nil, errors.Newf("job %d: duplicate name %q", i+1, entry.Name)
		}
		seen[entry.Name] = true

		job, err := entry.Job(opts)
		if err != nil {
			return nil, errors.Wrapf(err, "job %d", i+1)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Job converts the entry into a validated job ready to be stored
func (e Entry) Job(opts Options) (*schedule.Job, error) {
	opts = opts.withDefaults()

	freq, err := schedule.ParseFrequency(e.Frequency)
	if err != nil {
		return nil, err
	}

	job := &schedule.Job{
		Name:         strings.TrimSpace(e.Name),
		Command:      strings.TrimSpace(e.Command),
		ShellCommand: strings.TrimSpace(e.ShellCommand),
		Args:         e.Args,
		RunInShell:   e.ShellCommand != "",
		Atomic:       true,
		Frequency:    freq,
		Params:       e.Params,
		Disabled:     e.Disabled,
	}
	if e.RunInShell != nil {
		job.RunInShell = *e.RunInShell
	}
	if e.Atomic != nil {
		job.Atomic = *e.Atomic
	}
	if opts.LegacyArgs {
		job.Args = schedule.EscapeLegacyArgs(job.Args)
	}

	rec, err := schedule.ParseRecurrence(string(freq), e.Params)
	if err != nil {
		return nil, errors.Wrapf(err, "job %q", job.Name)
	}

	if e.NextRun != "" {
		t, err := ParseTime(e.NextRun, opts.Location)
		if err != nil {
			return nil, errors.Wrapf(err, "job %q", job.Name)
		}
		job.NextRun = &t
	} else if next := rec.Next(opts.Now().In(opts.Location)); next != nil {
		utc := next.UTC()
		job.NextRun = &utc
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}
	return job, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime reads a next-run value. Values without an offset are in loc.
// The result is in UTC.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.WithHint(
		errors.Newf("cannot parse time %q", s),
		"use 2006-01-02 15:04, 2006-01-02T15:04:05 or RFC 3339",
	)
}
