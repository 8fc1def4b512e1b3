package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/chatbackup/cmd/chatbackup/commands/flags"
	"github.com/thoreinstein/chatbackup/internal/autobackup"
	"github.com/thoreinstein/chatbackup/internal/cli"
	"github.com/thoreinstein/chatbackup/internal/config"
	"github.com/thoreinstein/chatbackup/internal/engine"
	"github.com/thoreinstein/chatbackup/internal/errors"
	"github.com/thoreinstein/chatbackup/internal/logging"
)

var metricsAddr string

func init() {
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Back up chats automatically as they change",
	Long: `Watch the chat directory and back up the active chat once it has been
quiet for the debounce window. Switching to another chat discards a pending
backup of the previous one. Stopping the watcher (Ctrl+C) takes any pending
backup first.

Edits to the config file are picked up while running: turning 'enabled'
back on after storage ran out resumes backups.`,
	Example: `  chatbackup watch --root ~/SillyTavern/data/default-user/chats

  # Expose metrics
  chatbackup watch --metrics-addr :9464

See Also: chatbackup snapshot, chatbackup config`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, _ []string) error {
	app, err := flags.OpenApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	host, err := app.Host()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := logging.FromContext(ctx)

	eng := app.Engine(host, cli.NewNotifier(cmd.ErrOrStderr()))
	ctrl := autobackup.New(eng,
		autobackup.WithWindow(app.Config.Debounce),
		autobackup.WithLogger(logger),
		autobackup.WithContext(ctx),
	)

	app.Metrics.SetAutoEnabled(app.Settings.AutoBackupEnabled())
	app.Settings.OnChange(func(old, updated config.Config) {
		if old.MaxBackups != updated.MaxBackups {
			if err := app.Store.SetMaxBackups(updated.MaxBackups); err != nil {
				logger.Warn("cannot apply max_backups", "error", err.Error())
			}
		}
		if old.Enabled != updated.Enabled {
			app.Metrics.SetAutoEnabled(updated.Enabled)
			ctrl.SettingsChanged(updated.Enabled)
		}
	})
	if _, err := os.Stat(flags.ConfigFile()); err == nil {
		app.Settings.Watch()
	}

	var printed atomic.Int64
	unsubscribe := eng.Subscribe(func(s engine.Status) {
		at := s.LastBackupAt.UnixMilli()
		if !s.LastBackupAt.IsZero() && printed.Swap(at) != at {
			fmt.Fprintf(cmd.OutOrStdout(), "%s backed up %s (%d kept)\n",
				s.LastBackupAt.Local().Format(time.TimeOnly), s.LastIdentity, s.LastRecordCount)
		}
	})
	defer unsubscribe()

	if metricsAddr != "" {
		srv, err := serveMetrics(ctx, metricsAddr, app.Metrics.Registry)
		if err != nil {
			return err
		}
		defer srv.Close()
	}

	events := make(chan autobackup.Notification, 64)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- host.Watch(ctx, events)
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", host.Root())
	if err := ctrl.Run(ctx, events); err != nil {
		return err
	}
	return <-watchErr
}

// serveMetrics starts an HTTP server exposing reg on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg prometheus.Gatherer) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.NewUserError(errors.Wrapf(err, "listening on %s", addr), "Choose a free --metrics-addr")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	logger := logging.FromContext(ctx)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err.Error())
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return srv, nil
}
