package backup

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/chatbackup/internal/chat"
	cberrors "github.com/thoreinstein/chatbackup/internal/errors"
)

// encodePartition serializes a record list.
func encodePartition(records []*chat.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return nil, errors.Wrap(err, "encoding backups")
	}
	return buf.Bytes(), nil
}

// decodePartition parses a stored record list. Entries that fail to decode
// or validate are returned as InvalidEntry values instead of failing the
// whole list. Numbers inside messages and metadata decode as json.Number so
// they round-trip without loss.
func decodePartition(key string, raw []byte) ([]*chat.Record, []InvalidEntry) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, []InvalidEntry{{
			Key:   key,
			Index: -1,
			Err:   errors.Wrapf(cberrors.ErrInvalidRecord, "stored value is not a record list: %v", err),
		}}
	}

	records := make([]*chat.Record, 0, len(entries))
	var invalid []InvalidEntry
	for i, entry := range entries {
		rec, err := decodeRecord(entry)
		if err != nil {
			invalid = append(invalid, InvalidEntry{Key: key, Index: i, Err: err})
			continue
		}
		records = append(records, rec)
	}
	return records, invalid
}

func decodeRecord(data []byte) (*chat.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rec chat.Record
	if err := dec.Decode(&rec); err != nil {
		return nil, errors.Wrapf(cberrors.ErrInvalidRecord, "decoding record: %v", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}
