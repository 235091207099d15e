// Package config loads chronograph configuration from layered TOML files
// and CHRONO_* environment variables.
package config

import "time"

// Config represents the chronograph configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database" json:"database" yaml:"database"`
	Cron     CronConfig     `mapstructure:"cron" toml:"cron" json:"cron" yaml:"cron"`
	Log      LogConfig      `mapstructure:"log" toml:"log" json:"log" yaml:"log"`
}

// DatabaseConfig configures the SQLite job store
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" json:"path" yaml:"path"`
}

// CronConfig configures the scheduling cycle run by `chrono cron`
type CronConfig struct {
	// Progress lines are appended here in addition to stdout ("" = console only)
	LogFile string `mapstructure:"log_file" toml:"log_file" json:"log_file" yaml:"log_file"`

	// Shell used for jobs with run_in_shell set
	Shell string `mapstructure:"shell" toml:"shell" json:"shell" yaml:"shell"`

	// 0 = every job still running at cycle start is stuck
	StuckAfterSeconds int `mapstructure:"stuck_after_seconds" toml:"stuck_after_seconds" json:"stuck_after_seconds" yaml:"stuck_after_seconds"`

	// 0 = no limit
	JobTimeoutSeconds int `mapstructure:"job_timeout_seconds" toml:"job_timeout_seconds" json:"job_timeout_seconds" yaml:"job_timeout_seconds"`

	// IANA zone for calendar arithmetic ("Local" = host zone)
	Timezone string `mapstructure:"timezone" toml:"timezone" json:"timezone" yaml:"timezone"`

	// Job launch rate within one cycle (0 = unlimited)
	LaunchesPerSecond float64 `mapstructure:"launches_per_second" toml:"launches_per_second" json:"launches_per_second" yaml:"launches_per_second"`
	LaunchBurst       int     `mapstructure:"launch_burst" toml:"launch_burst" json:"launch_burst" yaml:"launch_burst"`

	// Prometheus textfile-collector output ("" = disabled)
	MetricsTextfile string `mapstructure:"metrics_textfile" toml:"metrics_textfile" json:"metrics_textfile" yaml:"metrics_textfile"`

	// Default age for `chrono log prune` and the cleanup_logs command (0 = keep everything)
	LogRetentionDays int `mapstructure:"log_retention_days" toml:"log_retention_days" json:"log_retention_days" yaml:"log_retention_days"`
}

// LogConfig configures diagnostic logging on stderr
type LogConfig struct {
	JSON  bool   `mapstructure:"json" toml:"json" json:"json" yaml:"json"`
	Theme string `mapstructure:"theme" toml:"theme" json:"theme" yaml:"theme"`
}

// StuckAfter returns the stuck threshold; zero means no threshold.
func (c CronConfig) StuckAfter() time.Duration {
	return time.Duration(c.StuckAfterSeconds) * time.Second
}

// JobTimeout returns the per-job time limit; zero means none.
func (c CronConfig) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutSeconds) * time.Second
}

// Location resolves the configured time zone.
func (c CronConfig) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Timezone)
	}
}
