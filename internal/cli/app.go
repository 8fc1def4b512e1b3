// Package cli wires the backup subsystem together for the chatbackup
// command.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/thoreinstein/chatbackup/internal/backup"
	"github.com/thoreinstein/chatbackup/internal/config"
	"github.com/thoreinstein/chatbackup/internal/engine"
	"github.com/thoreinstein/chatbackup/internal/errors"
	"github.com/thoreinstein/chatbackup/internal/host/filehost"
	"github.com/thoreinstein/chatbackup/internal/kv"
	"github.com/thoreinstein/chatbackup/internal/metrics"
	"github.com/thoreinstein/chatbackup/internal/restore"
	"github.com/thoreinstein/chatbackup/internal/worker"
)

// ErrNoChatRoot is returned when a command needs the chat directory and
// host.root is not configured.
var ErrNoChatRoot = errors.New("chat directory not configured")

// App holds the components a command works with. Build it with Open and
// release it with Close.
type App struct {
	Config   *config.Config
	Settings *config.Settings
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Store    *backup.Store

	kv   kv.Store
	pool *worker.Pool
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	backend    kv.Store
	configPath string
}

// WithBackend uses an already open key-value store instead of the one
// configured. Close still closes it.
func WithBackend(s kv.Store) Option {
	return func(o *openOptions) {
		o.backend = s
	}
}

// WithConfigPath sets where runtime configuration changes are saved.
func WithConfigPath(path string) Option {
	return func(o *openOptions) {
		o.configPath = path
	}
}

// Open opens the configured backup store.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := o.backend
	if backend == nil {
		kvc := cfg.Store.KV()
		kvc.Logger = logger
		var err error
		backend, err = kv.Open(ctx, kvc)
		if err != nil {
			return nil, errors.NewSystemError(err, "Check store.backend and store.path in: chatbackup config show")
		}
	}

	store, err := backup.Open(ctx, backend,
		backup.WithMaxBackups(cfg.MaxBackups),
		backup.WithPartitioning(backup.Partitioning(cfg.Partitioning)),
		backup.WithLogger(logger),
	)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return &App{
		Config:   cfg,
		Settings: config.NewSettings(cfg, o.configPath, logger),
		Logger:   logger,
		Metrics:  metrics.New(),
		Store:    store,
		kv:       backend,
	}, nil
}

// Close stops the worker pool, if one was started, and closes the store.
func (a *App) Close() error {
	var poolErr error
	if a.pool != nil {
		poolErr = a.pool.Close()
	}
	return errors.Join(poolErr, a.kv.Close())
}

// Host returns the file host for the configured chat directory.
func (a *App) Host(opts ...filehost.Option) (*filehost.Host, error) {
	root := a.Config.Host.Root
	if root == "" {
		return nil, errors.NewUserError(ErrNoChatRoot, "Run: chatbackup config set host.root <dir>, or pass --root")
	}
	if _, err := os.Stat(root); err != nil {
		return nil, errors.NewUserError(errors.Wrap(err, "opening chat directory"), "Check host.root in: chatbackup config show")
	}
	opts = append([]filehost.Option{filehost.WithLogger(a.Logger)}, opts...)
	return filehost.New(root, opts...), nil
}

// Backend returns the copy and store step: a started worker pool when
// offload is on, the in-process path otherwise. The pool runs until Close.
func (a *App) Backend() engine.Backend {
	if !a.Config.Offload {
		return engine.NewInProcess(a.Store)
	}
	if a.pool == nil {
		a.pool = worker.New(a.Store,
			worker.WithWorkers(a.Config.Workers),
			worker.WithCapacity(a.Settings.MaxBackups),
			worker.WithMetrics(a.Metrics),
			worker.WithLogger(a.Logger),
		)
		a.pool.Start()
	}
	return a.pool
}

// Engine builds a backup engine over host.
func (a *App) Engine(host engine.Host, notifier engine.Notifier) *engine.Engine {
	return engine.New(host, a.Settings, a.Backend(),
		engine.WithNotifier(notifier),
		engine.WithMetrics(a.Metrics),
		engine.WithLogger(a.Logger),
	)
}

// Restorer builds a restorer over host.
func (a *App) Restorer(host restore.Host, opts ...restore.Option) *restore.Restorer {
	opts = append([]restore.Option{
		restore.WithStepTimeout(a.Config.Restore.StepTimeout),
		restore.WithMetrics(a.Metrics),
		restore.WithLogger(a.Logger),
	}, opts...)
	return restore.New(host, opts...)
}
