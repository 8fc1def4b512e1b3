package chat

import (
	"slices"
	"time"

	"github.com/cockroachdb/errors"

	cberrors "github.com/thoreinstein/chatbackup/internal/errors"
)

// RecordVersion is the stored record format version for forward compatibility.
const RecordVersion = 1

// Message is one host chat message. Its structure is owned by the host
// application and treated as opaque, apart from the text fields read by
// Preview.
type Message = map[string]any

// Metadata is the key/value mapping attached to a conversation.
type Metadata = map[string]any

// Record is one immutable point-in-time snapshot of a conversation.
type Record struct {
	// Version is the record format version.
	Version int `json:"version"`

	// Timestamp is the creation time in milliseconds since the epoch. It is
	// unique and strictly increasing within a partition.
	Timestamp int64 `json:"timestamp"`

	// Identity names the conversation the snapshot was taken from.
	Identity Identity `json:"identity"`

	// DisplayName is the character or group name at capture time.
	DisplayName string `json:"display_name"`

	// LastMessageIndex is the index of the final message at capture time.
	// Together with Identity it is the de-duplication key.
	LastMessageIndex int `json:"last_message_index"`

	// MessageCount equals len(Messages).
	MessageCount int `json:"message_count"`

	// Preview is a plain-text excerpt of the last message.
	Preview string `json:"preview"`

	// Messages is a deep copy of the conversation's messages.
	Messages []Message `json:"messages"`

	// Metadata is a deep copy of the conversation's metadata.
	Metadata Metadata `json:"metadata"`
}

// CreatedAt returns Timestamp as a time.Time.
func (r *Record) CreatedAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Validate checks the structural validity of a record. Failures match
// ErrInvalidRecord.
func (r *Record) Validate() error {
	if r == nil {
		return errors.Wrap(cberrors.ErrInvalidRecord, "record is nil")
	}
	if err := r.Identity.Validate(); err != nil {
		return errors.Wrapf(cberrors.ErrInvalidRecord, "identity: %v", err)
	}
	if r.Timestamp <= 0 {
		return errors.Wrapf(cberrors.ErrInvalidRecord, "timestamp %d must be positive", r.Timestamp)
	}
	if len(r.Messages) == 0 {
		return errors.Wrap(cberrors.ErrInvalidRecord, "record has no messages")
	}
	if r.LastMessageIndex < 0 || r.LastMessageIndex >= len(r.Messages) {
		return errors.Wrapf(cberrors.ErrInvalidRecord,
			"last message index %d out of range for %d messages", r.LastMessageIndex, len(r.Messages))
	}
	if r.MessageCount != len(r.Messages) {
		return errors.Wrapf(cberrors.ErrInvalidRecord,
			"message count %d does not match %d messages", r.MessageCount, len(r.Messages))
	}
	if r.Version > RecordVersion {
		return errors.Wrapf(cberrors.ErrInvalidRecord,
			"record version %d is newer than supported version %d", r.Version, RecordVersion)
	}
	return nil
}

// Summary is the listing view of a record, without the message payload.
type Summary struct {
	Timestamp        int64    `json:"timestamp" yaml:"timestamp" toml:"timestamp"`
	CreatedAt        string   `json:"created_at" yaml:"created_at" toml:"created_at"`
	Kind             Kind     `json:"kind" yaml:"kind" toml:"kind"`
	SourceID         string   `json:"source_id" yaml:"source_id" toml:"source_id"`
	ChatName         string   `json:"chat_name" yaml:"chat_name" toml:"chat_name"`
	DisplayName      string   `json:"display_name" yaml:"display_name" toml:"display_name"`
	LastMessageIndex int      `json:"last_message_index" yaml:"last_message_index" toml:"last_message_index"`
	MessageCount     int      `json:"message_count" yaml:"message_count" toml:"message_count"`
	Preview          string   `json:"preview" yaml:"preview" toml:"preview"`
	MetadataKeys     []string `json:"metadata_keys,omitempty" yaml:"metadata_keys,omitempty" toml:"metadata_keys,omitempty"`
}

// Summarize returns the listing view of r.
func (r *Record) Summarize() Summary {
	keys := make([]string, 0, len(r.Metadata))
	for k := range r.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return Summary{
		Timestamp:        r.Timestamp,
		CreatedAt:        r.CreatedAt().UTC().Format(time.RFC3339),
		Kind:             r.Identity.Kind,
		SourceID:         r.Identity.SourceID,
		ChatName:         r.Identity.ChatName,
		DisplayName:      r.DisplayName,
		LastMessageIndex: r.LastMessageIndex,
		MessageCount:     r.MessageCount,
		Preview:          r.Preview,
		MetadataKeys:     keys,
	}
}
