package schedule

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"github.com/teranos/chronograph/errors"
)

// Invocation is what a management command receives for one run
type Invocation struct {
	Job    *Job
	Args   []string
	Stdout io.Writer
	Stderr io.Writer
}

// Options splits the arguments into positional values and key=value options
func (inv *Invocation) Options() (positional []string, options map[string]string) {
	options = make(map[string]string)
	for _, arg := range inv.Args {
		if key, value, ok := strings.Cut(arg, "="); ok && key != "" {
			options[key] = value
			continue
		}
		positional = append(positional, arg)
	}
	return positional, options
}

// ManagementCommand runs in-process as a job.
// Output written to the invocation's Stdout and Stderr lands in the job's log;
// a returned error or a panic marks the run failed.
type ManagementCommand interface {
	Name() string
	Help() string
	Run(ctx context.Context, inv *Invocation) error
}

// CommandFunc adapts a function to ManagementCommand
type CommandFunc struct {
	CommandName string
	Usage       string
	Fn          func(ctx context.Context, inv *Invocation) error
}

func (c CommandFunc) Name() string { return c.CommandName }
func (c CommandFunc) Help() string { return c.Usage }
func (c CommandFunc) Run(ctx context.Context, inv *Invocation) error {
	return c.Fn(ctx, inv)
}

// CommandRegistry manages management commands by name.
// Safe for concurrent registration and lookup.
type CommandRegistry struct {
	commands map[string]ManagementCommand
	mu       sync.RWMutex
}

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{commands: make(map[string]ManagementCommand)}
}

// Register adds a command under its name.
// Panics if the name is taken.
func (r *CommandRegistry) Register(cmd ManagementCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := cmd.Name()
	if _, exists := r.commands[name]; exists {
		panic(fmt.Sprintf("management command already registered: %s", name))
	}
	r.commands[name] = cmd
}

// Get retrieves a command, or nil if none is registered under name
func (r *CommandRegistry) Get(name string) ManagementCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[name]
}

// Names returns all registered command names, sorted
func (r *CommandRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the named command. A panic is converted into an error and
// its stack trace is written to the invocation's Stderr.
func (r *CommandRegistry) Run(ctx context.Context, name string, inv *Invocation) (err error) {
	cmd := r.Get(name)
	if cmd == nil {
		return errors.WithHintf(
			errors.Wrapf(errors.ErrUnknownCommand, "%q", name),
			"registered commands: %s", strings.Join(r.Names(), ", "),
		)
	}

	defer func() {
		if p := recover(); p != nil {
			fmt.Fprintf(inv.Stderr, "%s\n", debug.Stack())
			err = errors.Newf("management command %q panicked: %v", name, p)
		}
	}()

	return cmd.Run(ctx, inv)
}
