package engine

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/chatbackup/internal/backup"
	"github.com/thoreinstein/chatbackup/internal/chat"
	"github.com/thoreinstein/chatbackup/pkg/clone"
)

// Capture builds a record from the live conversation. Messages and metadata
// are deep-copied under the handle's read lock, so the record shares nothing
// with the live state and never sees a half-applied edit.
func Capture(snap Snapshot, opts ...clone.Option) (*chat.Record, error) {
	if snap.Live == nil {
		return nil, ErrEmptyConversation
	}

	var rec *chat.Record
	err := snap.Live.View(func(messages []chat.Message, metadata chat.Metadata) error {
		if len(messages) == 0 {
			return ErrEmptyConversation
		}
		last := len(messages) - 1

		msgs, err := clone.Copy(messages, opts...)
		if err != nil {
			return errors.Wrap(err, "copying messages")
		}
		meta, err := clone.Copy(metadata, opts...)
		if err != nil {
			return errors.Wrap(err, "copying metadata")
		}
		if meta == nil {
			meta = chat.Metadata{}
		}

		rec = &chat.Record{
			Version:          chat.RecordVersion,
			Timestamp:        snap.Timestamp,
			Identity:         snap.Identity,
			DisplayName:      snap.DisplayName,
			LastMessageIndex: last,
			MessageCount:     len(msgs),
			Preview:          chat.Preview(messages[last]),
			Messages:         msgs,
			Metadata:         meta,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// RecordStore is the subset of *backup.Store the in-process backend uses.
type RecordStore interface {
	Put(ctx context.Context, rec *chat.Record) (*backup.PutResult, error)
}

// InProcess captures and stores snapshots on the calling goroutine.
type InProcess struct {
	store RecordStore
	opts  []clone.Option
}

// NewInProcess returns a Backend that writes to store directly.
func NewInProcess(store RecordStore, opts ...clone.Option) *InProcess {
	return &InProcess{store: store, opts: opts}
}

// Name implements Backend.
func (p *InProcess) Name() string {
	return "inprocess"
}

// Store implements Backend.
func (p *InProcess) Store(ctx context.Context, snap Snapshot) (*backup.PutResult, error) {
	rec, err := Capture(snap, p.opts...)
	if err != nil {
		return nil, err
	}
	return p.store.Put(ctx, rec)
}
