// Package sym defines the glyphs chronograph prints next to its CLI
// command groups and attaches to structured log entries.
package sym

// Command group glyphs.
const (
	Cron   = "꩜" // cron: one scheduling cycle
	Job    = "⏲" // job: job definitions and administration
	Log    = "▤" // log: execution logs
	Config = "≡" // config: configuration and system settings
)

// System infrastructure symbols.
const (
	DB      = "⊔" // database/storage layer
	Startup = "✿" // cycle start, stuck-job recovery
	Done    = "❀" // cycle finished
)

// CommandToSymbol maps CLI command groups to their glyphs.
var CommandToSymbol = map[string]string{
	"cron":   Cron,
	"job":    Job,
	"log":    Log,
	"config": Config,
}

// SymbolToCommand maps glyphs back to their CLI command groups.
var SymbolToCommand = map[string]string{
	Cron:   "cron",
	Job:    "job",
	Log:    "log",
	Config: "config",
}

// CommandDescriptions provides one-line explanations for each command group.
var CommandDescriptions = map[string]string{
	"cron":   "Run one scheduling cycle: reset stuck jobs, run due jobs",
	"job":    "Define, inspect and administer periodic jobs",
	"log":    "Inspect and prune job execution logs",
	"config": "Show and validate configuration",
}
