package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/chronograph/errors"
)

// WriteDefault writes the default configuration as TOML to path.
// An existing file is left untouched unless overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.WithHint(
				errors.Newf("config file %s already exists", path),
				"pass --force to overwrite it",
			)
		}
	}

	data, err := toml.Marshal(Default())
	if err != nil {
		return errors.Wrap(err, "marshal default config")
	}

	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}

	header := []byte("# chronograph configuration\n")
	if err := os.WriteFile(path, append(header, data...), DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
