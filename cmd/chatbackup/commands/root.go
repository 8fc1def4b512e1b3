// Package commands implements the CLI commands for chatbackup.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/chatbackup/cmd"
	"github.com/thoreinstein/chatbackup/cmd/chatbackup/commands/backup"
	"github.com/thoreinstein/chatbackup/cmd/chatbackup/commands/flags"
	"github.com/thoreinstein/chatbackup/internal/config"
	"github.com/thoreinstein/chatbackup/internal/errors"
	"github.com/thoreinstein/chatbackup/internal/logging"
)

// verbosity holds the count of -v flags.
var verbosity int

// quiet holds the value of the -q/--quiet flag.
var quiet bool

// logFormat holds the value of the --log-format flag.
var logFormat string

// logFile holds the path to the log file.
var logFile string

// configPath holds the value of the --config flag.
var configPath string

// chatRoot holds the value of the --root flag.
var chatRoot string

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase verbosity level (e.g., -v, -vv)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format: text, json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"also write logs to file in JSON format (overrides log_file)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default: ./config.yaml, then the user config dir)")
	rootCmd.PersistentFlags().StringVar(&chatRoot, "root", "",
		"chat directory (overrides host.root)")

	rootCmd.Version = cmd.Version
	rootCmd.SetVersionTemplate("chatbackup version {{.Version}}\n")

	// Silence errors and usage so we can control error output
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.AddCommand(backup.Cmd)
}

var rootCmd = &cobra.Command{
	Use:   "chatbackup",
	Short: "Automatic backups for character and group chats",
	Long: `chatbackup keeps a small rolling set of point-in-time backups of every
chat, taken automatically after the conversation goes quiet, and restores
any of them into a fresh chat without touching the original.

Backups are kept per chat (or in one global list) with a configurable
retention count, in a local badger database by default or in redis.`,
	Example: `  # Back up the chat directory continuously
  chatbackup watch --root ~/SillyTavern/data/default-user/chats

  # List backups
  chatbackup backup list

  # Pick a backup interactively and restore it
  chatbackup backup restore --interactive

  See Also: chatbackup config, chatbackup backup`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		return setupLogging(cmd)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig() error {
	config.Init()
	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.NewConfigError(err)
	}
	if chatRoot != "" {
		cfg.Host.Root = chatRoot
	}
	if logFile == "" {
		logFile = cfg.LogFile
	}

	file := configPath
	if file == "" {
		file = config.FileUsed()
	}
	flags.SetConfig(cfg, file)
	return nil
}

// setupLogging configures the default logger based on verbosity flags.
func setupLogging(cmd *cobra.Command) error {
	if quiet && verbosity > 0 {
		return errors.NewUserError(errors.New("--quiet and --verbose are mutually exclusive"), "Use only one of -q or -v")
	}

	level := logging.LevelFromVerbosity(verbosity)
	if quiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var primary slog.Handler
	switch logging.Format(logFormat) {
	case logging.FormatJSON:
		primary = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	case logging.FormatText:
		primary = logging.NewHandler(cmd.ErrOrStderr(), opts)
	default:
		return errors.NewUserError(errors.Newf("unknown log format %q", logFormat), "Use --log-format text or --log-format json")
	}

	handler := primary
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return errors.NewUserError(errors.Wrap(err, "opening log file"), "Check log_file or --log-file")
		}
		// File output uses JSON format.
		handler = logging.Tee(primary, slog.NewJSONHandler(f, opts))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.NewContext(ctx, logger))
	return nil
}

// Execute runs the root command.
func Execute() error {
	return errors.Wrap(rootCmd.Execute(), "executing root command")
}

// Main runs the root command and reports any error on stderr. It returns
// the process exit code.
func Main(stderr io.Writer) int {
	err := rootCmd.Execute()
	if err == nil {
		return errors.ExitSuccess
	}

	exitErr := errors.Classify(err)
	fmt.Fprintf(stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("Error:"), err)
	if exitErr.Suggestion != "" {
		fmt.Fprintf(stderr, "%s\n", exitErr.Suggestion)
	}
	return exitErr.Code
}
