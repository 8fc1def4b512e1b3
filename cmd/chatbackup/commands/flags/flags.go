// Package flags provides shared flag accessors for CLI commands.
// This package exists to avoid import cycles between the root command
// and noun subpackages (backup).
package flags

import (
	"github.com/spf13/cobra"

	"github.com/thoreinstein/chatbackup/internal/cli"
	"github.com/thoreinstein/chatbackup/internal/config"
	"github.com/thoreinstein/chatbackup/internal/logging"
)

var (
	// loaded is the configuration the root command loaded.
	loaded *config.Config

	// configFile is where configuration changes are saved.
	configFile string
)

// Config returns the loaded configuration, or the defaults before loading.
func Config() *config.Config {
	if loaded == nil {
		return config.Default()
	}
	return loaded
}

// SetConfig sets the configuration for subcommands. The root command calls
// it after parsing flags.
func SetConfig(cfg *config.Config, file string) {
	loaded = cfg
	configFile = file
}

// ConfigFile returns the path configuration changes are saved to.
func ConfigFile() string {
	return configFile
}

// OpenApp opens the backup store with the loaded configuration and the
// command's logger. Callers must Close the result.
func OpenApp(cmd *cobra.Command) (*cli.App, error) {
	ctx := cmd.Context()
	return cli.Open(ctx, Config(), logging.FromContext(ctx), cli.WithConfigPath(configFile))
}
