// Package transcript renders backups as Markdown documents for reading
// outside the chat application.
package transcript

import (
	"io"
	"strings"
	"time"

	"github.com/thoreinstein/chatbackup/internal/chat"
	"github.com/thoreinstein/chatbackup/internal/errors"
	"github.com/thoreinstein/chatbackup/pkg/frontmatter"
)

// Header is the YAML header of a transcript.
type Header struct {
	Title    string        `yaml:"title"`
	Key      string        `yaml:"key"`
	Kind     chat.Kind     `yaml:"kind"`
	Chat     string        `yaml:"chat"`
	BackedUp time.Time     `yaml:"backed_up"`
	Messages int           `yaml:"messages"`
	Metadata chat.Metadata `yaml:"metadata,omitempty"`
}

// Render returns rec as Markdown. Messages without a speaker name are
// attributed to userName when sent by the user and to the record's display
// name otherwise.
func Render(rec *chat.Record, userName string) ([]byte, error) {
	title := rec.DisplayName
	if title == "" {
		title = rec.Identity.SourceID
	}

	var body strings.Builder
	for i, msg := range rec.Messages {
		if i > 0 {
			body.WriteString("\n")
		}
		body.WriteString("**" + speaker(msg, title, userName) + "**")
		if sent, ok := msg["send_date"].(string); ok && sent != "" {
			body.WriteString(" · " + sent)
		}
		body.WriteString("\n\n")
		text := strings.TrimSpace(chat.MessageText(msg))
		if text == "" {
			text = "_(empty)_"
		}
		body.WriteString(text + "\n")
	}

	data, err := frontmatter.Format(Header{
		Title:    title,
		Key:      rec.Identity.Key(),
		Kind:     rec.Identity.Kind,
		Chat:     rec.Identity.ChatName,
		BackedUp: rec.CreatedAt().UTC(),
		Messages: rec.MessageCount,
		Metadata: rec.Metadata,
	}, body.String())
	if err != nil {
		return nil, errors.Wrap(err, "rendering transcript header")
	}
	return data, nil
}

// Read parses a transcript written by Render.
func Read(r io.Reader) (Header, string, error) {
	var h Header
	body, err := frontmatter.Parse(r, &h)
	if err != nil {
		return Header{}, "", errors.Wrap(err, "reading transcript")
	}
	return h, string(body), nil
}

func speaker(msg chat.Message, character, user string) string {
	if name, ok := msg["name"].(string); ok && name != "" {
		return name
	}
	if isUser, _ := msg["is_user"].(bool); isUser {
		return user
	}
	return character
}
