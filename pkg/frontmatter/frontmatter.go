package frontmatter

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontmatter is returned when the document does not open
	// with a "---" line.
	ErrMissingFrontmatter = errors.New("missing frontmatter")

	// ErrUnterminated is returned when the header has no closing "---".
	ErrUnterminated = errors.New("missing closing frontmatter delimiter")
)

const delimiter = "---"

// Parse decodes the header of the document in r into matter and returns
// the body that follows it. A single blank line after the closing
// delimiter is part of the separator, not the body.
func Parse[T any](r io.Reader, matter *T) ([]byte, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	first, rest, ok := cutLine(content)
	if !ok || string(first) != delimiter {
		return nil, ErrMissingFrontmatter
	}

	var header bytes.Buffer
	for {
		var line []byte
		line, rest, ok = cutLine(rest)
		if !ok {
			return nil, ErrUnterminated
		}
		if string(line) == delimiter {
			break
		}
		header.Write(line)
		header.WriteByte('\n')
	}

	if header.Len() > 0 {
		if err := yaml.Unmarshal(header.Bytes(), matter); err != nil {
			return nil, err
		}
	}

	if blank, after, ok := cutLine(rest); ok && len(blank) == 0 {
		rest = after
	}
	return rest, nil
}

// cutLine splits off the first line of b without its line ending. ok is
// false when b is empty.
func cutLine(b []byte) (line, rest []byte, ok bool) {
	if len(b) == 0 {
		return nil, nil, false
	}
	line, rest, found := bytes.Cut(b, []byte("\n"))
	if !found {
		rest = nil
	}
	return bytes.TrimSuffix(line, []byte("\r")), rest, true
}

// Format writes matter as a YAML header followed by a blank line and body.
// The result always ends with a newline.
func Format(matter any, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(matter); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}

	buf.WriteString(delimiter + "\n")
	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}
