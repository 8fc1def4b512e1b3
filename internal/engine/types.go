package engine

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/chatbackup/internal/backup"
	"github.com/thoreinstein/chatbackup/internal/chat"
)

// SkipReason explains why PerformBackup did nothing. Skips are not errors.
type SkipReason string

// Skip reasons, in the order the preconditions are checked.
const (
	SkipDisabled   SkipReason = "disabled"
	SkipNoIdentity SkipReason = "no_identity"
	SkipEmpty      SkipReason = "empty_conversation"
	SkipInFlight   SkipReason = "in_flight"
	SkipExhausted  SkipReason = "storage_exhausted"
)

// ErrEmptyConversation is returned by Capture when the conversation has no
// messages at capture time. PerformBackup reports it as SkipEmpty.
var ErrEmptyConversation = errors.New("conversation is empty")

// Host resolves the conversation that is currently open.
type Host interface {
	// CurrentIdentity returns the active conversation, or false when no
	// conversation is open.
	CurrentIdentity(ctx context.Context) (chat.Identity, bool)

	// DisplayName returns the character or group name for id.
	DisplayName(ctx context.Context, id chat.Identity) string

	// Live returns the handle to the active conversation's messages and
	// metadata.
	Live() *chat.Live
}

// Settings is the engine's view of the user configuration.
type Settings interface {
	// AutoBackupEnabled reports whether backups are enabled.
	AutoBackupEnabled() bool

	// DisableAutoBackup turns backups off and persists the change.
	DisableAutoBackup() error
}

// Notifier surfaces user-visible messages.
type Notifier interface {
	Warning(ctx context.Context, msg string)
	Failure(ctx context.Context, msg string, err error)
}

// Snapshot is what a Backend needs to capture and store one record.
type Snapshot struct {
	Identity    chat.Identity
	DisplayName string
	Live        *chat.Live
	Timestamp   int64
}

// Backend performs the copy and store step. It returns the store's result
// or an error matching ErrCopyFailure, ErrStorageExhausted, ErrStorageIO or
// ErrEmptyConversation.
type Backend interface {
	Name() string
	Store(ctx context.Context, snap Snapshot) (*backup.PutResult, error)
}

// Result describes one PerformBackup call.
type Result struct {
	// Skipped is set when a precondition stopped the backup.
	Skipped SkipReason

	// Identity is the conversation that was considered, if resolved.
	Identity chat.Identity

	// Record is the stored record.
	Record *chat.Record

	// Replaced is true when Record replaced a duplicate.
	Replaced bool

	// Evicted is the number of records evicted for capacity.
	Evicted int

	// Count is the number of records in the partition afterwards.
	Count int
}

// Status is the observable state of the engine.
type Status struct {
	// LastBackupAt is the time of the most recent stored record.
	LastBackupAt time.Time

	// LastIdentity is the conversation of the most recent stored record.
	LastIdentity chat.Identity

	// LastRecordCount is the partition size after the most recent store.
	LastRecordCount int

	// LastError describes the most recent failure, if any.
	LastError string

	// Exhausted is true once storage exhaustion disabled backups.
	Exhausted bool
}
