package chat

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Live is a handle to a host's mutable conversation: the message list and the
// metadata map that the host edits in place. Every read and write goes
// through the handle's lock, so a snapshot taken inside View never observes a
// half-applied edit.
type Live struct {
	mu       sync.RWMutex
	messages []Message
	metadata Metadata
}

// NewLive wraps messages and metadata. The handle takes ownership of both.
func NewLive(messages []Message, metadata Metadata) *Live {
	if metadata == nil {
		metadata = make(Metadata)
	}
	return &Live{messages: messages, metadata: metadata}
}

// Len returns the number of messages.
func (l *Live) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// View calls fn with the live messages and metadata under the read lock. fn
// must not retain or modify either value after it returns.
func (l *Live) View(fn func(messages []Message, metadata Metadata) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(l.messages, l.metadata)
}

// Messages returns a shallow copy of the message list.
func (l *Live) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Metadata returns a shallow copy of the metadata map.
func (l *Live) Metadata() Metadata {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(Metadata, len(l.metadata))
	for k, v := range l.metadata {
		out[k] = v
	}
	return out
}

// Append adds messages to the end of the conversation.
func (l *Live) Append(msgs ...Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msgs...)
}

// Update replaces the message at index i.
func (l *Live) Update(i int, msg Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.messages) {
		return errors.Newf("message index %d out of range [0,%d)", i, len(l.messages))
	}
	l.messages[i] = msg
	return nil
}

// Delete removes the message at index i.
func (l *Live) Delete(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.messages) {
		return errors.Newf("message index %d out of range [0,%d)", i, len(l.messages))
	}
	l.messages = append(l.messages[:i], l.messages[i+1:]...)
	return nil
}

// SetMetadata sets one metadata key.
func (l *Live) SetMetadata(key string, value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.metadata[key] = value
}

// ReplaceAll clears the conversation and then assigns messages and metadata
// in bulk. The metadata map keeps its identity: existing keys are removed
// rather than the map being swapped, so holders of the map see the
// replacement. Nothing is merged.
func (l *Live) ReplaceAll(messages []Message, metadata Metadata) {
	l.mu.Lock()
	defer l.mu.Unlock()

	clear(l.messages)
	l.messages = append(l.messages[:0], messages...)

	clear(l.metadata)
	for k, v := range metadata {
		l.metadata[k] = v
	}
}
