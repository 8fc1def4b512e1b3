package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/chatbackup/cmd/chatbackup/commands/flags"
	"github.com/thoreinstein/chatbackup/internal/config"
	"github.com/thoreinstein/chatbackup/internal/editor"
	"github.com/thoreinstein/chatbackup/internal/errors"
	"github.com/thoreinstein/chatbackup/internal/logging"
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage chatbackup configuration",
	Long: `Manage chatbackup configuration stored in config.yaml.

Without a subcommand, shows the effective configuration.`,
	Example: `  # Show the effective configuration
  chatbackup config

  # Keep five backups per chat
  chatbackup config set max_backups 5

  # Re-enable automatic backups after storage ran out
  chatbackup config set enabled true

See Also: chatbackup watch`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after defaults, the config file and CHATBACKUP_ environment overrides are applied.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long:  `Get a single configuration value by key. Nested keys use dot notation.`,
	Example: `  chatbackup config get store.backend

See Also: chatbackup config set`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value and save the config file. The value is
validated first; an invalid value leaves the file unchanged.

A running 'chatbackup watch' picks the change up.`,
	Example: `  chatbackup config set max_backups 5
  chatbackup config set debounce 5s
  chatbackup config set store.backend redis

See Also: chatbackup config get, chatbackup config show`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), flags.ConfigFile())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current settings",
	Long:  `Write the effective configuration to the config file. An existing file is left alone.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open configuration in $EDITOR",
	Long: `Open the configuration file in your editor. Uses $CHATBACKUP_EDITOR,
$EDITOR or $VISUAL, falling back to nano or vi. The file is validated after
the editor exits.`,
	Example: `  EDITOR=nano chatbackup config edit

See Also: chatbackup config init`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg := *flags.Config()
	if cfg.Store.Redis.Password != "" {
		cfg.Store.Redis.Password = logging.MaskValue(cfg.Store.Redis.Password)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return errors.Wrap(err, "marshaling config")
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "# %s\n", flags.ConfigFile())
	_, err = w.Write(data)
	return err
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !viper.IsSet(key) {
		return errors.NewUserError(errors.Wrapf(config.ErrUnknownKey, "%q", key), "Run: chatbackup config show")
	}
	value := viper.GetString(key)
	if logging.ShouldMask(key) && value != "" {
		value = logging.MaskValue(value)
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := config.Set(args[0], args[1])
	if err != nil {
		if errors.Is(err, config.ErrUnknownKey) {
			return errors.NewUserError(err, "Run: chatbackup config show")
		}
		return errors.NewConfigError(err)
	}
	if err := config.Save(flags.ConfigFile(), cfg); err != nil {
		return errors.NewSystemError(err, "Check permissions on the config directory")
	}
	flags.SetConfig(cfg, flags.ConfigFile())
	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", args[0], args[1])
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := flags.ConfigFile()
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Config already exists at %s\n", path)
		return nil
	}
	if err := config.Save(path, flags.Config()); err != nil {
		return errors.NewSystemError(err, "Check permissions on the config directory")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigEdit(cmd *cobra.Command, _ []string) error {
	path := flags.ConfigFile()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return errors.NewUserError(errors.Newf("config file not found at %s", path), "Run: chatbackup config init")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Location: %s\n", path)
	if err := editor.Open(cmd.Context(), path, cmd.OutOrStdout()); err != nil {
		return err
	}

	config.Init()
	if _, err := config.Load(path); err != nil {
		return errors.NewConfigError(err)
	}
	return nil
}
