package chat

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind distinguishes one-on-one character chats from group chats.
type Kind string

const (
	// KindCharacter is a conversation with a single character.
	KindCharacter Kind = "character"

	// KindGroup is a conversation with a group of characters.
	KindGroup Kind = "group"
)

// Key prefixes for each kind.
const (
	characterPrefix = "char"
	groupPrefix     = "group"
)

// ErrInvalidKey indicates a partition key that ParseKey cannot decode.
var ErrInvalidKey = errors.New("invalid partition key")

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindCharacter || k == KindGroup
}

// ParseKind converts a user-supplied kind name. Both the full names and the
// key prefixes ("char", "group") are accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "character", characterPrefix:
		return KindCharacter, nil
	case "group":
		return KindGroup, nil
	default:
		return "", errors.Newf("unknown chat kind %q (want character or group)", s)
	}
}

func (k Kind) prefix() string {
	if k == KindGroup {
		return groupPrefix
	}
	return characterPrefix
}

// Identity names one logical conversation: a chat session belonging to a
// character or group.
//
// SourceID is an opaque identifier that is stable across sessions for the
// same character or group. It is always a string, for both kinds.
type Identity struct {
	Kind     Kind   `json:"kind"`
	SourceID string `json:"source_id"`
	ChatName string `json:"chat_name"`
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// Validate checks that every component of the identity is present.
func (id Identity) Validate() error {
	if !id.Kind.Valid() {
		return errors.Newf("unknown kind %q", id.Kind)
	}
	if id.SourceID == "" {
		return errors.New("source id is required")
	}
	if id.ChatName == "" {
		return errors.New("chat name is required")
	}
	return nil
}

// Key renders the partition key for the identity, for example
// "char_42_Alice%20-%202025-01-02". Components are path-escaped and '_' is
// escaped as well, so the separator never appears inside a component.
func (id Identity) Key() string {
	return id.Kind.prefix() + "_" + escapeComponent(id.SourceID) + "_" + escapeComponent(id.ChatName)
}

// String returns a human-readable form of the identity.
func (id Identity) String() string {
	return string(id.Kind) + " " + id.SourceID + " / " + id.ChatName
}

// ParseKey decodes a key produced by Identity.Key.
func ParseKey(key string) (Identity, error) {
	prefix, rest, ok := strings.Cut(key, "_")
	if !ok {
		return Identity{}, errors.Wrapf(ErrInvalidKey, "%q has no kind prefix", key)
	}

	var id Identity
	switch prefix {
	case characterPrefix:
		id.Kind = KindCharacter
	case groupPrefix:
		id.Kind = KindGroup
	default:
		return Identity{}, errors.Wrapf(ErrInvalidKey, "%q has unknown prefix %q", key, prefix)
	}

	rawSource, rawChat, ok := strings.Cut(rest, "_")
	if !ok || strings.Contains(rawChat, "_") {
		return Identity{}, errors.Wrapf(ErrInvalidKey, "%q must have exactly three components", key)
	}

	var err error
	if id.SourceID, err = url.PathUnescape(rawSource); err != nil {
		return Identity{}, errors.Wrapf(ErrInvalidKey, "%q: source id: %v", key, err)
	}
	if id.ChatName, err = url.PathUnescape(rawChat); err != nil {
		return Identity{}, errors.Wrapf(ErrInvalidKey, "%q: chat name: %v", key, err)
	}

	if err := id.Validate(); err != nil {
		return Identity{}, errors.Wrapf(ErrInvalidKey, "%q: %v", key, err)
	}
	return id, nil
}

func escapeComponent(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), "_", "%5F")
}
