package chat

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Preview limits.
const (
	// PreviewLimit is the maximum preview length in characters.
	PreviewLimit = 100

	// EmptyPreview is shown when the last message has no text.
	EmptyPreview = "(empty message)"

	ellipsis = "..."
)

// textFields are the message fields that may carry the displayed text, in
// lookup order.
var textFields = []string{"mes", "content", "text"}

// MessageText returns the raw text of a message.
func MessageText(msg Message) string {
	for _, field := range textFields {
		if s, ok := msg[field].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Preview returns a plain-text excerpt of msg that is safe to display
// directly: markup is stripped, whitespace is collapsed and the result is at
// most PreviewLimit characters.
func Preview(msg Message) string {
	text := collapseSpace(stripAll(MessageText(msg)))
	if text == "" {
		return EmptyPreview
	}
	return truncate(text, PreviewLimit)
}

// StripHTML returns the text content of s with all tags removed and entities
// decoded. Script and style contents are dropped.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "div", "li":
				sb.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li":
				sb.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" {
				sb.WriteByte(' ')
			}
		}
	}
}

// maxStripPasses bounds stripAll. Each pass only shortens its input.
const maxStripPasses = 8

// stripAll strips s until no markup is left. Decoding entities can produce
// new tags, such as "&lt;img&gt;", which the next pass removes.
func stripAll(s string) string {
	for range maxStripPasses {
		out := StripHTML(s)
		if out == s {
			return out
		}
		s = out
	}
	return strings.NewReplacer("<", "", ">", "").Replace(s)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:limit-len(ellipsis)]), " ") + ellipsis
}
