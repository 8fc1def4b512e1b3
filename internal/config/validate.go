package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/chatbackup/internal/backup"
	"github.com/thoreinstein/chatbackup/internal/kv"
)

// Validation errors for configuration fields.
var (
	// ErrVersionUnsupported indicates a config version this build cannot read.
	ErrVersionUnsupported = errors.New("unsupported config version")

	// ErrOutOfRange indicates a numeric value outside its allowed range.
	ErrOutOfRange = errors.New("value out of range")

	// ErrInvalidValue indicates a value that is not one of the allowed choices.
	ErrInvalidValue = errors.New("invalid value")

	// ErrInvalidPath indicates a path value is malformed.
	ErrInvalidPath = errors.New("invalid path")

	// ErrUnknownKey indicates a key that is not part of the configuration.
	ErrUnknownKey = errors.New("unknown config key")
)

// Validate checks a Config for validity.
// Returns nil if valid, or a slice of validation errors.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{errors.New("config is nil")}
	}

	var errs []error
	add := func(field string, value any, err error) {
		errs = append(errs, &FieldError{Field: field, Value: value, Err: err})
	}

	if cfg.Version != 1 {
		add("version", cfg.Version, ErrVersionUnsupported)
	}
	if cfg.MaxBackups < 1 || cfg.MaxBackups > backup.MaxBackupsLimit {
		add("max_backups", cfg.MaxBackups, ErrOutOfRange)
	}
	if cfg.Debounce <= 0 {
		add("debounce", cfg.Debounce, ErrOutOfRange)
	}
	if !backup.Partitioning(cfg.Partitioning).Valid() {
		add("partitioning", cfg.Partitioning, ErrInvalidValue)
	}
	if cfg.Workers < 1 {
		add("workers", cfg.Workers, ErrOutOfRange)
	}

	if !kv.ValidBackend(cfg.Store.Backend) {
		add("store.backend", cfg.Store.Backend, ErrInvalidValue)
	}
	if cfg.Store.QuotaBytes < 0 {
		add("store.quota_bytes", cfg.Store.QuotaBytes, ErrOutOfRange)
	}
	if cfg.Store.Backend == kv.BackendRedis && cfg.Store.Redis.Addr == "" {
		add("store.redis.addr", cfg.Store.Redis.Addr, ErrInvalidValue)
	}
	if cfg.Restore.StepTimeout <= 0 {
		add("restore.step_timeout", cfg.Restore.StepTimeout, ErrOutOfRange)
	}

	for _, p := range []struct{ field, path string }{
		{"store.path", cfg.Store.Path},
		{"host.root", cfg.Host.Root},
		{"log_file", cfg.LogFile},
	} {
		if err := validatePath(p.path); err != nil {
			add(p.field, p.path, err)
		}
	}

	return errs
}

// validatePath checks if a path string is well-formed.
// It does not check if the path exists, only that it's syntactically valid.
func validatePath(path string) error {
	// Empty paths mean "use default".
	if path == "" {
		return nil
	}
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}
	cleaned := filepath.Clean(path)
	if cleaned == "" || cleaned == "." {
		return ErrInvalidPath
	}
	return nil
}

// FieldError reports an invalid configuration field.
type FieldError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Field, e.Err, e.Value)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
