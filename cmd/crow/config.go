package main

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vito/crow/pkg/crow"
)

// Options that make no sense in a project file.
var cliOnlyFlags = []string{"code", "config", "debug-addr", "lsp", "lsp-log-file", "print-tree"}

// applyProjectConfig reads the [tool.crow] table of the project's
// pyproject.toml, or of --config, and uses it for every flag not given on
// the command line.
func applyProjectConfig(cmd *cobra.Command, args []string, cfg *Config) error {
	path := cfg.ConfigFile
	if path == "" {
		var err error
		path, err = crow.FindPyprojectToml(args)
		if err != nil {
			return err
		}
		if path == "" {
			return nil
		}
	}

	config, err := crow.ReadPyprojectToml(path)
	if err != nil {
		return errors.Wrapf(err, "Error reading configuration file")
	}
	slog.Debug("using configuration", "path", path)

	for key, value := range config {
		name := strcase.ToKebab(key)
		flag := cmd.Flags().Lookup(name)
		if flag == nil || slices.Contains(cliOnlyFlags, name) {
			slog.Warn("ignoring unknown configuration key", "path", path, "key", key)
			continue
		}
		if flag.Changed {
			continue
		}

		values := []any{value}
		if list, ok := value.([]any); ok {
			values = list
		}
		for _, v := range values {
			if err := flag.Value.Set(fmt.Sprint(v)); err != nil {
				return errors.Wrapf(err, "%s: invalid value for %s", path, key)
			}
		}
	}
	return nil
}
