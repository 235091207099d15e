package config

import (
	"strings"

	"github.com/teranos/chronograph/errors"
)

// Validate checks that the configuration is valid.
// Zero means zero: a zero limit disables the feature, negatives are rejected.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.WithHint(
			errors.New("database.path cannot be empty"),
			"set database.path or CHRONO_DATABASE_PATH",
		)
	}

	if strings.TrimSpace(c.Cron.Shell) == "" {
		return errors.New("cron.shell cannot be empty")
	}

	if c.Cron.StuckAfterSeconds < 0 {
		return errors.Newf("cron.stuck_after_seconds must be >= 0, got %d", c.Cron.StuckAfterSeconds)
	}
	if c.Cron.JobTimeoutSeconds < 0 {
		return errors.Newf("cron.job_timeout_seconds must be >= 0, got %d", c.Cron.JobTimeoutSeconds)
	}
	if c.Cron.LaunchesPerSecond < 0 {
		return errors.Newf("cron.launches_per_second must be >= 0, got %f", c.Cron.LaunchesPerSecond)
	}
	if c.Cron.LaunchesPerSecond > 0 && c.Cron.LaunchBurst < 1 {
		return errors.Newf("cron.launch_burst must be >= 1 when launches are limited, got %d", c.Cron.LaunchBurst)
	}
	if c.Cron.LogRetentionDays < 0 {
		return errors.Newf("cron.log_retention_days must be >= 0, got %d", c.Cron.LogRetentionDays)
	}

	if _, err := c.Cron.Location(); err != nil {
		return errors.Wrapf(err, "cron.timezone %q is not a known time zone", c.Cron.Timezone)
	}

	return nil
}
