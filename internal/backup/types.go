package backup

import (
	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/chatbackup/internal/chat"
	cberrors "github.com/thoreinstein/chatbackup/internal/errors"
)

// Default configuration values.
const (
	// DefaultMaxBackups is the default number of backups retained per
	// partition.
	DefaultMaxBackups = 3

	// MaxBackupsLimit is the largest accepted retention count.
	MaxBackupsLimit = 10
)

// Storage keys. Every key this package writes starts with keyPrefix.
const (
	keyPrefix       = "chatbackup:"
	modeKey         = keyPrefix + "mode"
	partitionPrefix = keyPrefix + "p:"
	globalKey       = keyPrefix + "global"
)

// Partitioning selects how records are grouped for retention.
type Partitioning string

const (
	// PerChat keeps up to MaxBackups records for each identity.
	PerChat Partitioning = "chat"

	// Global keeps up to MaxBackups records across all identities.
	Global Partitioning = "global"
)

// Valid reports whether p is a known partitioning mode.
func (p Partitioning) Valid() bool {
	return p == PerChat || p == Global
}

// ErrModeMismatch indicates the backend was written with a different
// partitioning mode than the one requested. Mixing modes would break the
// retention guarantee, so the store refuses to open.
var ErrModeMismatch = errors.New("partitioning mode mismatch")

// ExhaustedError is returned by Put when the backend is out of space. The
// record that could not be written is carried on the error so the caller
// can still surface or retry it. It matches ErrStorageExhausted.
type ExhaustedError struct {
	// Record is the record that was not stored.
	Record *chat.Record

	// Err is the backend failure.
	Err error
}

func (e *ExhaustedError) Error() string {
	return "storage exhausted saving backup of " + e.Record.Identity.String() + ": " + e.Err.Error()
}

// Is reports whether target is ErrStorageExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == cberrors.ErrStorageExhausted
}

// Unwrap returns the backend failure.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// InvalidEntry describes a stored value that failed to decode or validate.
type InvalidEntry struct {
	// Key is the storage key the entry was read from.
	Key string

	// Index is the entry's position within the stored list, or -1 when the
	// whole value was unreadable.
	Index int

	// Err matches ErrInvalidRecord.
	Err error
}

// Listing is the result of a read across one or more partitions.
type Listing struct {
	// Records are the valid records, newest first.
	Records []*chat.Record

	// Invalid lists entries that were skipped.
	Invalid []InvalidEntry
}

// PutResult describes the effect of a Put.
type PutResult struct {
	// Record is the record as stored, with its final timestamp.
	Record *chat.Record

	// Replaced is true when the record replaced one with the same identity
	// and last message index.
	Replaced bool

	// Evicted holds the records removed to stay within capacity.
	Evicted []*chat.Record

	// Count is the number of records in the partition after the write.
	Count int
}
