package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/teranos/chronograph/errors"
)

// ProjectConfigName is searched for from the working directory upward.
const ProjectConfigName = "chrono.toml"

var (
	globalConfig   *Config
	viperInstance  *viper.Viper
	configOverride string
)

// SetConfigFile makes Load read only this file (plus defaults and
// environment) instead of the usual cascade.
func SetConfigFile(path string) {
	configOverride = path
	Reset()
}

// Load reads the configuration, caching the result
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v, err := initViper()
	if err != nil {
		return nil, err
	}

	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}

	globalConfig = cfg
	return globalConfig, nil
}

// GetViper returns the Viper instance for key-level access
func GetViper() (*viper.Viper, error) {
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path over defaults
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	return LoadWithViper(v)
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
}

func initViper() (*viper.Viper, error) {
	if viperInstance != nil {
		return viperInstance, nil
	}

	v := viper.New()

	v.SetEnvPrefix("CHRONO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if configOverride != "" {
		if err := mergeFile(v, configOverride); err != nil {
			return nil, err
		}
	} else {
		for _, src := range Sources() {
			if !src.Exists {
				continue
			}
			if err := mergeFile(v, src.Path); err != nil {
				return nil, err
			}
		}
	}

	viperInstance = v
	return v, nil
}

func mergeFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.MergeInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read config file %s", path)
	}
	return nil
}

// Source is one file in the configuration cascade
type Source struct {
	Level  string
	Path   string
	Exists bool
}

// Sources lists the cascade in precedence order (later overrides earlier).
// Environment variables override every file.
func Sources() []Source {
	var sources []Source
	add := func(level, path string) {
		if path == "" {
			return
		}
		_, err := os.Stat(path)
		sources = append(sources, Source{Level: level, Path: path, Exists: err == nil})
	}

	add("system", "/etc/chronograph/config.toml")
	if home, err := os.UserHomeDir(); err == nil {
		add("user", filepath.Join(home, ".chronograph", "config.toml"))
	}
	add("project", findProjectConfig())

	return sources
}

// findProjectConfig walks up from the working directory looking for chrono.toml
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
