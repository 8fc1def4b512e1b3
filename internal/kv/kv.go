package kv

import (
	"context"
	"log/slog"
	"slices"

	"github.com/cockroachdb/errors"
)

// Sentinel errors shared by all backends.
var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrQuotaExceeded indicates the backend refused a write because it is
	// out of space or over its configured quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// Store is an asynchronous key-value persistence backend. Keys are strings,
// values are opaque bytes. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns every key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases the backend's resources.
	Close() error
}

// Backend names.
const (
	BackendBadger = "badger"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Backends lists every supported backend name.
var Backends = []string{BackendBadger, BackendMemory, BackendRedis}

// Config selects and configures a backend for Open.
type Config struct {
	// Backend is one of Backends. Defaults to BackendBadger.
	Backend string

	// Path is the badger database directory.
	Path string

	// QuotaBytes caps the memory backend's size. Zero means unlimited.
	QuotaBytes int64

	// Redis configures the redis backend.
	Redis RedisConfig

	// Logger receives backend diagnostics.
	Logger *slog.Logger
}

// Open constructs the backend named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendBadger:
		bc := DefaultBadgerConfig()
		bc.Path = cfg.Path
		bc.Logger = cfg.Logger
		return OpenBadger(bc)
	case BackendMemory:
		return NewMemory(WithQuota(cfg.QuotaBytes)), nil
	case BackendRedis:
		return OpenRedis(ctx, cfg.Redis)
	default:
		return nil, errors.Newf("unknown store backend %q (valid: %v)", cfg.Backend, Backends)
	}
}

// ValidBackend reports whether name is a supported backend.
func ValidBackend(name string) bool {
	return slices.Contains(Backends, name)
}
