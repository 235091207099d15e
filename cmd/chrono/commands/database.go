package commands

import (
	"github.com/teranos/chronograph/config"
	"github.com/teranos/chronograph/db"
	"github.com/teranos/chronograph/errors"
	"github.com/teranos/chronograph/logger"
	"github.com/teranos/chronograph/schedule"
)

// openStore opens and migrates the configured database.
// The returned close function must be called when done.
func openStore(cfg *config.Config) (*schedule.SQLiteStore, func(), error) {
	database, err := db.OpenWithMigrations(cfg.Database.Path, logger.Logger)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open database at %s", cfg.Database.Path)
	}

	store := schedule.NewSQLiteStore(database, logger.ComponentLogger("schedule.store"))
	return store, func() { database.Close() }, nil
}

// loadConfig loads and validates configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// newExecutor wires the executor with the built-in management commands
func newExecutor(cfg *config.Config, store schedule.Store) (*schedule.Executor, error) {
	loc, err := cfg.Cron.Location()
	if err != nil {
		return nil, errors.Wrap(err, "invalid cron.timezone")
	}

	registry := schedule.NewCommandRegistry()
	schedule.RegisterBuiltinCommands(registry, store, cfg.Cron.LogRetentionDays, nil)

	return schedule.NewExecutor(store, registry, schedule.ExecutorConfig{
		Shell:    cfg.Cron.Shell,
		Timeout:  cfg.Cron.JobTimeout(),
		Location: loc,
	}, logger.ComponentLogger("schedule.executor")), nil
}
