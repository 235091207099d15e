package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/chronograph/config"
	"github.com/teranos/chronograph/errors"
	"github.com/teranos/chronograph/sym"
)

// ConfigCmd groups configuration inspection
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: sym.Config + " Show and validate configuration",
	Long: sym.Config + ` config - show and validate chronograph configuration.

Configuration sources (later overrides earlier):
  1. Built-in defaults
  2. /etc/chronograph/config.toml
  3. ~/.chronograph/config.toml
  4. ./chrono.toml (searched up from the working directory)
  5. CHRONO_* environment variables, e.g. CHRONO_CRON_TIMEZONE

--config replaces steps 2-4 with a single file.

Examples:
  chrono config show --format yaml
  chrono config get cron.timezone
  chrono config init --path ./chrono.toml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get one value by dotted key, e.g. cron.shell",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		force, _ := cmd.Flags().GetBool("force")
		if err := config.WriteDefault(path, force); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", sym.Config, path)
		return nil
	},
}

var configWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Show which configuration files are read",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			fmt.Fprintf(out, "override  %s\n", path)
			return nil
		}
		for _, src := range config.Sources() {
			state := "missing"
			if src.Exists {
				state = "loaded"
			}
			fmt.Fprintf(out, "%-8s  %-7s  %s\n", src.Level, state, src.Path)
		}
		fmt.Fprintln(out, "env       CHRONO_* variables override every file")
		return nil
	},
}

func init() {
	configShowCmd.Flags().String("format", "toml", "Output format: toml, json, yaml")
	configInitCmd.Flags().String("path", config.ProjectConfigName, "File to write")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")

	ConfigCmd.AddCommand(configShowCmd, configGetCmd, configValidateCmd, configInitCmd, configWhereCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	format, _ := cmd.Flags().GetString("format")
	var data []byte
	switch format {
	case "json":
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	case "yaml":
		data, err = yaml.Marshal(cfg)
	case "toml":
		data, err = toml.Marshal(cfg)
	default:
		return errors.WithHint(
			errors.Newf("unsupported format: %s", format),
			"supported: toml, json, yaml",
		)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to marshal config to %s", format)
	}

	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	v, err := config.GetViper()
	if err != nil {
		return err
	}
	key := args[0]
	if !v.IsSet(key) {
		return errors.Newf("configuration key %q not found", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), v.Get(key))
	return nil
}
