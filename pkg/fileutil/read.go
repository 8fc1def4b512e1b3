package fileutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// DefaultMaxFileSize bounds chat files read from disk (64MB). Long
// role-play chats with embedded images reach tens of megabytes.
const DefaultMaxFileSize int64 = 64 << 20

// ErrFileTooLarge indicates that a file exceeded the read limit.
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// ReadFileWithLimit reads a file of at most limit bytes.
// A limit <= 0 means DefaultMaxFileSize.
func ReadFileWithLimit(path string, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	defer f.Close()

	// Fail fast if the size is already known to be too large
	if info, err := f.Stat(); err == nil && info.Size() > limit {
		return nil, errors.Wrapf(ErrFileTooLarge, "%s is %d bytes, limit %d", path, info.Size(), limit)
	}

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}
	if int64(len(data)) > limit {
		return nil, errors.Wrapf(ErrFileTooLarge, "%s exceeds limit %d", path, limit)
	}

	return data, nil
}

// ReadJSONL decodes a JSON-lines file into one generic object per non-empty
// line. Numbers are decoded as json.Number so message ids survive unchanged.
func ReadJSONL(path string, limit int64) ([]map[string]any, error) {
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	data, err := ReadFileWithLimit(path, limit)
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), int(limit)+1)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, errors.Wrapf(err, "%s:%d", path, line)
		}
		out = append(out, obj)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "scanning %s", path)
	}
	return out, nil
}
