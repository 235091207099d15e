package config

import "github.com/spf13/viper"

// File and directory permissions for files written by `chrono config init`
const (
	DefaultDirPermissions  = 0o755
	DefaultFilePermissions = 0o644
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "chronograph.db")

	v.SetDefault("cron.log_file", "")
	v.SetDefault("cron.shell", "/bin/sh")
	v.SetDefault("cron.stuck_after_seconds", 0)
	v.SetDefault("cron.job_timeout_seconds", 0)
	v.SetDefault("cron.timezone", "Local")
	v.SetDefault("cron.launches_per_second", 0.0)
	v.SetDefault("cron.launch_burst", 1)
	v.SetDefault("cron.metrics_textfile", "")
	v.SetDefault("cron.log_retention_days", 0)

	v.SetDefault("log.json", false)
	v.SetDefault("log.theme", "everforest")
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		// defaults always unmarshal
		panic(err)
	}
	return cfg
}
