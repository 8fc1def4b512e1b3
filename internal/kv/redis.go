package kv

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the redis backend.
type RedisConfig struct {
	// Addr is host:port of the redis server.
	Addr string

	// Password authenticates to the server, if set.
	Password string

	// DB selects the logical database.
	DB int

	// KeyPrefix namespaces every key this store writes.
	KeyPrefix string

	// DialTimeout bounds connection setup. Zero uses the client default.
	DialTimeout time.Duration
}

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 256

// Redis is a Store backed by a redis server.
type Redis struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to redis and verifies the connection with PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "redis ping %s", cfg.Addr)
	}
	return NewRedis(client, cfg.KeyPrefix), nil
}

// NewRedis wraps an existing client. The store owns the client and closes it
// on Close.
func NewRedis(client *redis.Client, keyPrefix string) *Redis {
	return &Redis{client: client, prefix: keyPrefix}
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.Wrapf(ErrNotFound, "%s", key)
	}
	if err != nil {
		return nil, translateRedis(err, "reading "+key)
	}
	return v, nil
}

// Set implements Store.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return translateRedis(err, "writing "+key)
	}
	return nil
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return translateRedis(err, "deleting "+key)
	}
	return nil
}

// Keys implements Store. It walks the keyspace with SCAN rather than KEYS so
// a large database is not blocked.
func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := globEscape(r.prefix+prefix) + "*"

	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, translateRedis(err, "scanning keys")
	}

	// SCAN may return a key more than once.
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

// Close implements Store.
func (r *Redis) Close() error {
	return errors.Wrap(r.client.Close(), "closing redis client")
}

// translateRedis maps server out-of-memory replies onto ErrQuotaExceeded.
func translateRedis(err error, op string) error {
	if errors.Is(err, redis.ErrClosed) {
		return errors.Wrapf(ErrClosed, "%s", op)
	}
	if strings.HasPrefix(err.Error(), "OOM ") {
		return errors.Wrapf(ErrQuotaExceeded, "%s: %v", op, err)
	}
	return errors.Wrap(err, op)
}

func globEscape(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
