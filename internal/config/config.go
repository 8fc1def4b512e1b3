// Package config provides configuration management for chatbackup using Viper.
package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/thoreinstein/chatbackup/internal/backup"
	"github.com/thoreinstein/chatbackup/internal/debounce"
	"github.com/thoreinstein/chatbackup/internal/kv"
	"github.com/thoreinstein/chatbackup/internal/paths"
	"github.com/thoreinstein/chatbackup/internal/restore"
	"github.com/thoreinstein/chatbackup/internal/worker"
	"github.com/thoreinstein/chatbackup/pkg/fileutil"
)

// AppName is the application name used for config file naming.
const AppName = paths.AppName

// EnvPrefix prefixes environment overrides, e.g. CHATBACKUP_MAX_BACKUPS.
const EnvPrefix = "CHATBACKUP"

// Config represents the top-level configuration structure.
type Config struct {
	Version int `mapstructure:"version" yaml:"version"`

	// Enabled turns automatic backups on. It is switched off automatically
	// when storage runs out.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	MaxBackups   int           `mapstructure:"max_backups" yaml:"max_backups"`
	Debounce     time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Partitioning string        `mapstructure:"partitioning" yaml:"partitioning"`

	// Offload runs the copy and store step on a worker pool.
	Offload bool `mapstructure:"offload" yaml:"offload"`
	Workers int  `mapstructure:"workers" yaml:"workers"`

	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Restore RestoreConfig `mapstructure:"restore" yaml:"restore"`
	Host    HostConfig    `mapstructure:"host" yaml:"host"`

	// LogFile, when set, receives a JSON copy of every log line.
	LogFile string `mapstructure:"log_file" yaml:"log_file,omitempty"`
}

// StoreConfig selects the key-value backend.
type StoreConfig struct {
	Backend    string      `mapstructure:"backend" yaml:"backend"`
	Path       string      `mapstructure:"path" yaml:"path,omitempty"`
	QuotaBytes int64       `mapstructure:"quota_bytes" yaml:"quota_bytes,omitempty"`
	Redis      RedisConfig `mapstructure:"redis" yaml:"redis,omitempty"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr,omitempty"`
	Password  string `mapstructure:"password" yaml:"password,omitempty"`
	DB        int    `mapstructure:"db" yaml:"db,omitempty"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
}

// RestoreConfig configures restores.
type RestoreConfig struct {
	StepTimeout time.Duration `mapstructure:"step_timeout" yaml:"step_timeout"`
}

// HostConfig locates the chat directory the CLI works on.
type HostConfig struct {
	Root string `mapstructure:"root" yaml:"root,omitempty"`
}

// KV converts the store section into a kv.Config.
func (s StoreConfig) KV() kv.Config {
	path := s.Path
	if path == "" {
		path = filepath.Join(paths.DataDir(), "store")
	}
	return kv.Config{
		Backend:    s.Backend,
		Path:       path,
		QuotaBytes: s.QuotaBytes,
		Redis: kv.RedisConfig{
			Addr:      s.Redis.Addr,
			Password:  s.Redis.Password,
			DB:        s.Redis.DB,
			KeyPrefix: s.Redis.KeyPrefix,
		},
	}
}

var defaults = map[string]any{
	"version":                1,
	"enabled":                true,
	"max_backups":            backup.DefaultMaxBackups,
	"debounce":               debounce.DefaultWindow,
	"partitioning":           string(backup.PerChat),
	"offload":                false,
	"workers":                worker.DefaultWorkers,
	"store.backend":          kv.BackendBadger,
	"store.path":             "",
	"store.quota_bytes":      0,
	"store.redis.addr":       "",
	"store.redis.password":   "",
	"store.redis.db":         0,
	"store.redis.key_prefix": "",
	"restore.step_timeout":   restore.DefaultStepTimeout,
	"host.root":              "",
	"log_file":               "",
}

// Keys returns every configuration key, sorted.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Init initializes Viper with default configuration.
// Call this once at application startup before accessing config values.
func Init() {
	viper.Reset()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Search paths, in order of precedence.
	viper.AddConfigPath(".")
	viper.AddConfigPath(paths.ConfigDir())

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version:      1,
		Enabled:      true,
		MaxBackups:   backup.DefaultMaxBackups,
		Debounce:     debounce.DefaultWindow,
		Partitioning: string(backup.PerChat),
		Workers:      worker.DefaultWorkers,
		Store:        StoreConfig{Backend: kv.BackendBadger},
		Restore:      RestoreConfig{StepTimeout: restore.DefaultStepTimeout},
	}
}

// Load reads the configuration file.
// If path is provided, it reads from that specific file.
// If path is empty, it searches in the default locations and falls back to
// defaults when no file is found.
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			// Implicit load; defaults apply.
		case path != "" && errors.Is(err, os.ErrNotExist):
			return nil, errors.Wrapf(err, "config file not found at %s", path)
		default:
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	cfg, err := current()
	if err != nil {
		return nil, err
	}
	if errs := Validate(cfg); len(errs) > 0 {
		return nil, errors.Wrap(errs[0], "validating config")
	}
	return cfg, nil
}

// current decodes the active viper state.
func current() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	return &cfg, nil
}

// FileUsed returns the config file viper read, or the default location when
// none was read.
func FileUsed() string {
	if f := viper.ConfigFileUsed(); f != "" {
		return f
	}
	return paths.ConfigFile()
}

// Set changes one key and returns the resulting configuration. The change is
// validated but not saved.
func Set(key, value string) (*Config, error) {
	key = strings.ToLower(key)
	if _, ok := defaults[key]; !ok {
		return nil, errors.Wrapf(ErrUnknownKey, "%q", key)
	}

	prev := viper.Get(key)
	viper.Set(key, value)

	cfg, err := current()
	if err == nil {
		if errs := Validate(cfg); len(errs) > 0 {
			err = errs[0]
		}
	}
	if err != nil {
		viper.Set(key, prev)
		return nil, errors.Wrapf(err, "setting %s", key)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := paths.EnsureDir(filepath.Dir(path), 0); err != nil {
		return err
	}
	if err := fileutil.AtomicWriteYAML(path, cfg); err != nil {
		return errors.Wrapf(err, "saving config to %s", path)
	}
	return nil
}
