package backup

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/chatbackup/internal/chat"
	cberrors "github.com/thoreinstein/chatbackup/internal/errors"
	"github.com/thoreinstein/chatbackup/internal/kv"
)

// Store applies the retention policy over a key-value backend.
//
// In PerChat mode each identity's records are stored as one list under
// "chatbackup:p:<identity key>". In Global mode every record lives in a
// single list under "chatbackup:global". Within a list, records are unique on
// (identity, last message index), ordered newest first, and capped at
// MaxBackups with the oldest evicted first.
type Store struct {
	backend    kv.Store
	maxBackups int
	mode       Partitioning
	logger     *slog.Logger
	now        func() time.Time

	// mu serializes read-modify-write cycles against the backend.
	mu          sync.Mutex
	modeWritten bool
}

// Option configures a Store.
type Option func(*Store)

// WithMaxBackups sets the retention count. Values outside
// [1, MaxBackupsLimit] are ignored.
func WithMaxBackups(n int) Option {
	return func(s *Store) {
		if n >= 1 && n <= MaxBackupsLimit {
			s.maxBackups = n
		}
	}
}

// WithPartitioning sets the partitioning mode.
func WithPartitioning(p Partitioning) Option {
	return func(s *Store) {
		if p.Valid() {
			s.mode = p
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source used to stamp records that arrive without
// a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open creates a Store over backend. It fails with ErrModeMismatch when the
// backend already holds data written in a different partitioning mode.
func Open(ctx context.Context, backend kv.Store, opts ...Option) (*Store, error) {
	s := &Store{
		backend:    backend,
		maxBackups: DefaultMaxBackups,
		mode:       PerChat,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := backend.Get(ctx, modeKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		return nil, ioError(err, "reading partitioning mode")
	case Partitioning(raw) != s.mode:
		return nil, errors.Wrapf(ErrModeMismatch, "store was written in %q mode, %q requested", string(raw), s.mode)
	default:
		s.modeWritten = true
	}
	return s, nil
}

// MaxBackups returns the retention count.
func (s *Store) MaxBackups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxBackups
}

// Mode returns the partitioning mode.
func (s *Store) Mode() Partitioning {
	return s.mode
}

// SetMaxBackups changes the retention count for later writes. Existing
// partitions shrink on their next Put, or immediately via Prune.
func (s *Store) SetMaxBackups(n int) error {
	if n < 1 || n > MaxBackupsLimit {
		return errors.Newf("max backups must be between 1 and %d, got %d", MaxBackupsLimit, n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxBackups = n
	return nil
}

// partitionKey returns the storage key holding id's records.
func (s *Store) partitionKey(id chat.Identity) string {
	if s.mode == Global {
		return globalKey
	}
	return partitionPrefix + id.Key()
}

// Put inserts rec, replacing any record with the same identity and last
// message index, then evicts the oldest records beyond capacity.
//
// The stored timestamp is rec.Timestamp (or the store clock when zero),
// bumped if needed so it is strictly greater than every timestamp already in
// the partition. rec itself is not modified.
//
// When the backend is out of space the error is an *ExhaustedError carrying
// the attempted record; other backend failures match ErrStorageIO.
func (s *Store) Put(ctx context.Context, rec *chat.Record) (*PutResult, error) {
	if rec == nil {
		return nil, errors.Wrap(cberrors.ErrInvalidRecord, "record is nil")
	}

	stored := *rec
	if stored.Timestamp == 0 {
		stored.Timestamp = s.now().UnixMilli()
	}
	if stored.Version == 0 {
		stored.Version = chat.RecordVersion
	}
	if err := stored.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.partitionKey(stored.Identity)
	records, invalid, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(invalid) > 0 {
		s.logger.Warn("dropping invalid backup entries on rewrite", "key", key, "count", len(invalid))
	}

	for _, r := range records {
		if r.Timestamp >= stored.Timestamp {
			stored.Timestamp = r.Timestamp + 1
		}
	}

	result := &PutResult{Record: &stored}
	records = slices.DeleteFunc(records, func(r *chat.Record) bool {
		if r.Identity == stored.Identity && r.LastMessageIndex == stored.LastMessageIndex {
			result.Replaced = true
			return true
		}
		return false
	})

	records = append(records, &stored)
	sortNewestFirst(records)
	if len(records) > s.maxBackups {
		result.Evicted = slices.Clone(records[s.maxBackups:])
		records = records[:s.maxBackups]
	}
	result.Count = len(records)

	if err := s.writeMode(ctx); err != nil {
		return nil, s.writeError(err, &stored, "writing partitioning mode")
	}
	if err := s.save(ctx, key, records); err != nil {
		return nil, s.writeError(err, &stored, "writing "+key)
	}

	s.logger.Debug("backup stored",
		"identity", stored.Identity.Key(),
		"timestamp", stored.Timestamp,
		"replaced", result.Replaced,
		"evicted", len(result.Evicted),
		"count", result.Count)

	return result, nil
}

// List returns the records of one identity, newest first.
func (s *Store) List(ctx context.Context, id chat.Identity) (*Listing, error) {
	if err := id.Validate(); err != nil {
		return nil, errors.Wrap(err, "listing backups")
	}

	key := s.partitionKey(id)
	records, invalid, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if s.mode == Global {
		records = slices.DeleteFunc(records, func(r *chat.Record) bool {
			return r.Identity != id
		})
	}
	return &Listing{Records: records, Invalid: invalid}, nil
}

// ListAll returns every record across all partitions, newest first.
func (s *Store) ListAll(ctx context.Context) (*Listing, error) {
	keys, err := s.recordKeys(ctx)
	if err != nil {
		return nil, err
	}

	out := &Listing{}
	for _, key := range keys {
		records, invalid, err := s.load(ctx, key)
		if err != nil {
			return nil, err
		}
		out.Records = append(out.Records, records...)
		out.Invalid = append(out.Invalid, invalid...)
	}
	sortNewestFirst(out.Records)
	return out, nil
}

// Keys returns every identity that has at least one backup, sorted by key.
func (s *Store) Keys(ctx context.Context) ([]chat.Identity, error) {
	if s.mode == Global {
		listing, err := s.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		seen := make(map[chat.Identity]bool)
		var ids []chat.Identity
		for _, r := range listing.Records {
			if !seen[r.Identity] {
				seen[r.Identity] = true
				ids = append(ids, r.Identity)
			}
		}
		sortIdentities(ids)
		return ids, nil
	}

	keys, err := s.recordKeys(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]chat.Identity, 0, len(keys))
	for _, key := range keys {
		id, err := chat.ParseKey(strings.TrimPrefix(key, partitionPrefix))
		if err != nil {
			s.logger.Warn("skipping unreadable partition key", "key", key, "error", err.Error())
			continue
		}
		ids = append(ids, id)
	}
	sortIdentities(ids)
	return ids, nil
}

// Get returns the record of id with the given timestamp.
func (s *Store) Get(ctx context.Context, id chat.Identity, timestamp int64) (*chat.Record, error) {
	listing, err := s.List(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, r := range listing.Records {
		if r.Timestamp == timestamp {
			return r, nil
		}
	}
	return nil, errors.Wrapf(cberrors.ErrNotFound, "backup %d of %s", timestamp, id)
}

// Delete removes the record of id with the given timestamp.
func (s *Store) Delete(ctx context.Context, id chat.Identity, timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.partitionKey(id)
	records, _, err := s.load(ctx, key)
	if err != nil {
		return err
	}

	n := len(records)
	records = slices.DeleteFunc(records, func(r *chat.Record) bool {
		return r.Identity == id && r.Timestamp == timestamp
	})
	if len(records) == n {
		return errors.Wrapf(cberrors.ErrNotFound, "backup %d of %s", timestamp, id)
	}

	if err := s.save(ctx, key, records); err != nil {
		return ioError(err, "writing "+key)
	}
	return nil
}

// Prune keeps only the newest keep records of id and returns the removed
// records.
func (s *Store) Prune(ctx context.Context, id chat.Identity, keep int) ([]*chat.Record, error) {
	if keep < 0 {
		return nil, errors.New("keep must be non-negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.partitionKey(id)
	records, _, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	var kept, removed []*chat.Record
	seen := 0
	for _, r := range records {
		if r.Identity != id {
			kept = append(kept, r)
			continue
		}
		if seen < keep {
			kept = append(kept, r)
		} else {
			removed = append(removed, r)
		}
		seen++
	}
	if len(removed) == 0 {
		return nil, nil
	}

	if err := s.save(ctx, key, kept); err != nil {
		return nil, ioError(err, "writing "+key)
	}
	return removed, nil
}

// Clear removes every backup. The partitioning mode is kept. It returns the
// number of records removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.recordKeys(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		records, invalid, err := s.load(ctx, key)
		if err != nil {
			return removed, err
		}
		if err := s.backend.Delete(ctx, key); err != nil {
			return removed, ioError(err, "deleting "+key)
		}
		removed += len(records) + len(invalid)
	}

	s.logger.Info("cleared all backups", "records", removed, "partitions", len(keys))
	return removed, nil
}

// recordKeys returns the storage keys that hold record lists.
func (s *Store) recordKeys(ctx context.Context) ([]string, error) {
	if s.mode == Global {
		if _, err := s.backend.Get(ctx, globalKey); err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				return nil, nil
			}
			return nil, ioError(err, "reading "+globalKey)
		}
		return []string{globalKey}, nil
	}

	keys, err := s.backend.Keys(ctx, partitionPrefix)
	if err != nil {
		return nil, ioError(err, "listing partitions")
	}
	return keys, nil
}

// load reads and decodes the list at key. A missing key is an empty list.
func (s *Store) load(ctx context.Context, key string) ([]*chat.Record, []InvalidEntry, error) {
	raw, err := s.backend.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, ioError(err, "reading "+key)
	}

	records, invalid := decodePartition(key, raw)
	if s.mode == PerChat {
		records, invalid = s.checkPartition(key, records, invalid)
	}
	for _, inv := range invalid {
		s.logger.Warn("skipping invalid backup entry", "key", inv.Key, "index", inv.Index, "error", inv.Err.Error())
	}
	sortNewestFirst(records)
	return records, invalid, nil
}

// checkPartition rejects records whose identity does not match the
// partition they were read from.
func (s *Store) checkPartition(key string, records []*chat.Record, invalid []InvalidEntry) ([]*chat.Record, []InvalidEntry) {
	want := strings.TrimPrefix(key, partitionPrefix)
	kept := records[:0]
	for i, r := range records {
		if r.Identity.Key() != want {
			invalid = append(invalid, InvalidEntry{
				Key:   key,
				Index: i,
				Err:   errors.Wrapf(cberrors.ErrInvalidRecord, "record identity %s does not belong to partition", r.Identity.Key()),
			})
			continue
		}
		kept = append(kept, r)
	}
	return kept, invalid
}

// save writes records to key, deleting the key when the list is empty.
func (s *Store) save(ctx context.Context, key string, records []*chat.Record) error {
	if len(records) == 0 {
		return s.backend.Delete(ctx, key)
	}
	data, err := encodePartition(records)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, key, data)
}

func (s *Store) writeMode(ctx context.Context) error {
	if s.modeWritten {
		return nil
	}
	if err := s.backend.Set(ctx, modeKey, []byte(s.mode)); err != nil {
		return err
	}
	s.modeWritten = true
	return nil
}

// writeError classifies a failed write.
func (s *Store) writeError(err error, rec *chat.Record, op string) error {
	if isExhausted(err) {
		s.logger.Warn("storage exhausted", "identity", rec.Identity.Key(), "error", err.Error())
		return &ExhaustedError{Record: rec, Err: errors.Wrap(err, op)}
	}
	return ioError(err, op)
}

func isExhausted(err error) bool {
	return errors.Is(err, kv.ErrQuotaExceeded) || errors.Is(err, syscall.ENOSPC)
}

// ioError marks a backend failure as ErrStorageIO, keeping its cause.
func ioError(err error, op string) error {
	return errors.Mark(errors.Wrap(err, op), cberrors.ErrStorageIO)
}

func sortNewestFirst(records []*chat.Record) {
	slices.SortStableFunc(records, func(a, b *chat.Record) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		default:
			return 0
		}
	})
}

func sortIdentities(ids []chat.Identity) {
	slices.SortFunc(ids, func(a, b chat.Identity) int {
		return strings.Compare(a.Key(), b.Key())
	})
}
