package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, "chronograph.db", cfg.Database.Path)
	assert.Equal(t, "/bin/sh", cfg.Cron.Shell)
	assert.Equal(t, "Local", cfg.Cron.Timezone)
	assert.Equal(t, 1, cfg.Cron.LaunchBurst)
	assert.Zero(t, cfg.Cron.StuckAfter())
	assert.Zero(t, cfg.Cron.JobTimeout())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chrono.toml")
	content := `
[database]
path = "/var/lib/chrono/jobs.db"

[cron]
log_file = "/var/log/chrono.log"
stuck_after_seconds = 3600
job_timeout_seconds = 90
timezone = "Europe/Amsterdam"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/chrono/jobs.db", cfg.Database.Path)
	assert.Equal(t, "/var/log/chrono.log", cfg.Cron.LogFile)
	assert.Equal(t, time.Hour, cfg.Cron.StuckAfter())
	assert.Equal(t, 90*time.Second, cfg.Cron.JobTimeout())
	assert.Equal(t, "/bin/sh", cfg.Cron.Shell, "unset keys keep their defaults")

	loc, err := cfg.Cron.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Amsterdam", loc.String())
}

func TestLoad_OverrideAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "override.toml")
	require.NoError(t, os.WriteFile(path, []byte("[cron]\nshell = \"/bin/bash\"\n"), 0o644))

	t.Setenv("CHRONO_DATABASE_PATH", "/tmp/from-env.db")
	SetConfigFile(path)
	defer SetConfigFile("")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/bin/bash", cfg.Cron.Shell)
	assert.Equal(t, "/tmp/from-env.db", cfg.Database.Path)

	again, err := Load()
	require.NoError(t, err)
	assert.Same(t, cfg, again, "Load caches its result")
}

func TestLoad_MissingOverrideFails(t *testing.T) {
	SetConfigFile(filepath.Join(t.TempDir(), "nope.toml"))
	defer SetConfigFile("")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config { return *Default() }

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"empty database path", func(c *Config) { c.Database.Path = " " }, true},
		{"empty shell", func(c *Config) { c.Cron.Shell = "" }, true},
		{"zero stuck threshold is valid", func(c *Config) { c.Cron.StuckAfterSeconds = 0 }, false},
		{"negative stuck threshold", func(c *Config) { c.Cron.StuckAfterSeconds = -1 }, true},
		{"negative timeout", func(c *Config) { c.Cron.JobTimeoutSeconds = -5 }, true},
		{"negative launch rate", func(c *Config) { c.Cron.LaunchesPerSecond = -0.5 }, true},
		{"limited launches need burst", func(c *Config) {
			c.Cron.LaunchesPerSecond = 2
			c.Cron.LaunchBurst = 0
		}, true},
		{"negative retention", func(c *Config) { c.Cron.LogRetentionDays = -1 }, true},
		{"unknown zone", func(c *Config) { c.Cron.Timezone = "Mars/Olympus_Mons" }, true},
		{"utc zone", func(c *Config) { c.Cron.Timezone = "UTC" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.toml")

	require.NoError(t, WriteDefault(path, false))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	err = WriteDefault(path, false)
	assert.Error(t, err, "refuses to overwrite")
	assert.NoError(t, WriteDefault(path, true))
}

func TestSources_FindsProjectConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectConfigName), []byte(""), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	defer os.Chdir(wd)

	var project *Source
	for _, s := range Sources() {
		if s.Level == "project" {
			s := s
			project = &s
		}
	}
	require.NotNil(t, project)
	assert.True(t, project.Exists)
	assert.Equal(t, ProjectConfigName, filepath.Base(project.Path))
}
