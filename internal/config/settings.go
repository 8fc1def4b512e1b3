package config

import (
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Settings is the live, concurrency-safe view of the configuration used
// while the engine runs. Changes made through it are saved to its file.
type Settings struct {
	path   string
	logger *slog.Logger

	mu        sync.RWMutex
	cfg       Config
	listeners []func(old, updated Config)
}

// NewSettings wraps cfg. An empty path keeps changes in memory only.
func NewSettings(cfg *Config, path string, logger *slog.Logger) *Settings {
	if logger == nil {
		logger = slog.Default()
	}
	return &Settings{path: path, logger: logger, cfg: *cfg}
}

// Config returns a copy of the current configuration.
func (s *Settings) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// AutoBackupEnabled reports whether automatic backups are on.
func (s *Settings) AutoBackupEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Enabled
}

// MaxBackups returns the retention count.
func (s *Settings) MaxBackups() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.MaxBackups
}

// DisableAutoBackup turns automatic backups off and saves the change.
func (s *Settings) DisableAutoBackup() error {
	return s.Update(func(c *Config) { c.Enabled = false })
}

// SetEnabled turns automatic backups on or off and saves the change.
func (s *Settings) SetEnabled(on bool) error {
	return s.Update(func(c *Config) { c.Enabled = on })
}

// Update applies fn, validates the result and saves it. The in-memory
// configuration changes even if saving fails.
func (s *Settings) Update(fn func(*Config)) error {
	s.mu.Lock()
	old := s.cfg
	next := s.cfg
	fn(&next)
	if errs := Validate(&next); len(errs) > 0 {
		s.mu.Unlock()
		return errors.Wrap(errs[0], "updating config")
	}
	s.cfg = next
	s.mu.Unlock()

	s.notify(old, next)

	if s.path == "" {
		return nil
	}
	return Save(s.path, &next)
}

// OnChange registers fn to run after every change, whether made through
// Update or picked up from the file by Watch.
func (s *Settings) OnChange(fn func(old, updated Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Settings) notify(old, updated Config) {
	if old == updated {
		return
	}
	s.mu.RLock()
	listeners := append(([]func(old, updated Config))(nil), s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(old, updated)
	}
}

// Watch re-reads the config file viper loaded whenever it changes. Invalid
// edits are logged and ignored.
func (s *Settings) Watch() {
	viper.OnConfigChange(func(ev fsnotify.Event) {
		s.reload(ev.Name)
	})
	viper.WatchConfig()
}

func (s *Settings) reload(name string) {
	cfg, err := current()
	if err != nil {
		s.logger.Warn("ignoring unreadable config change", "file", name, "error", err.Error())
		return
	}
	if errs := Validate(cfg); len(errs) > 0 {
		s.logger.Warn("ignoring invalid config change", "file", name, "error", errs[0].Error())
		return
	}

	s.mu.Lock()
	old := s.cfg
	s.cfg = *cfg
	s.mu.Unlock()

	s.logger.Debug("config reloaded", "file", name)
	s.notify(old, *cfg)
}
