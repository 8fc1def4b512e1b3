package chat

import (
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cberrors "github.com/thoreinstein/chatbackup/internal/errors"
)

func TestIdentity_KeyRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want string
	}{
		{
			name: "character",
			id:   Identity{Kind: KindCharacter, SourceID: "42", ChatName: "Alice - 2025-01-02"},
			want: "char_42_Alice%20-%202025-01-02",
		},
		{
			name: "group with string id",
			id:   Identity{Kind: KindGroup, SourceID: "1718000000000", ChatName: "party"},
			want: "group_1718000000000_party",
		},
		{
			name: "underscores are escaped",
			id:   Identity{Kind: KindCharacter, SourceID: "a_b", ChatName: "c_d_e"},
			want: "char_a%5Fb_c%5Fd%5Fe",
		},
		{
			name: "slashes and unicode",
			id:   Identity{Kind: KindGroup, SourceID: "x/y", ChatName: "夜の会話"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := tt.id.Key()
			if tt.want != "" {
				assert.Equal(t, tt.want, key)
			}
			got, err := ParseKey(key)
			require.NoError(t, err)
			assert.Equal(t, tt.id, got)
		})
	}
}

func TestParseKey_Invalid(t *testing.T) {
	for _, key := range []string{
		"",
		"char",
		"char_42",
		"chat_42_x",
		"char_42_a_b",
		"char__x",
		"group_1_%zz",
	} {
		t.Run(key, func(t *testing.T) {
			_, err := ParseKey(key)
			assert.True(t, errors.Is(err, ErrInvalidKey), "ParseKey(%q) = %v", key, err)
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("char")
	require.NoError(t, err)
	assert.Equal(t, KindCharacter, k)

	k, err = ParseKind(" Group ")
	require.NoError(t, err)
	assert.Equal(t, KindGroup, k)

	_, err = ParseKind("room")
	assert.Error(t, err)
}

func validRecord() *Record {
	return &Record{
		Version:          RecordVersion,
		Timestamp:        1700000000000,
		Identity:         Identity{Kind: KindCharacter, SourceID: "1", ChatName: "c"},
		DisplayName:      "Alice",
		LastMessageIndex: 1,
		MessageCount:     2,
		Preview:          "hi",
		Messages:         []Message{{"mes": "hello"}, {"mes": "hi"}},
		Metadata:         Metadata{"note": "x"},
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Record)
		ok     bool
	}{
		{"valid", func(*Record) {}, true},
		{"unknown kind", func(r *Record) { r.Identity.Kind = "room" }, false},
		{"missing source", func(r *Record) { r.Identity.SourceID = "" }, false},
		{"missing chat", func(r *Record) { r.Identity.ChatName = "" }, false},
		{"zero timestamp", func(r *Record) { r.Timestamp = 0 }, false},
		{"no messages", func(r *Record) { r.Messages = nil; r.MessageCount = 0; r.LastMessageIndex = 0 }, false},
		{"index too large", func(r *Record) { r.LastMessageIndex = 2 }, false},
		{"negative index", func(r *Record) { r.LastMessageIndex = -1 }, false},
		{"count mismatch", func(r *Record) { r.MessageCount = 5 }, false},
		{"future version", func(r *Record) { r.Version = RecordVersion + 1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord()
			tt.mutate(r)
			err := r.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, cberrors.ErrInvalidRecord), "got %v", err)
		})
	}

	var nilRec *Record
	assert.True(t, errors.Is(nilRec.Validate(), cberrors.ErrInvalidRecord))
}

func TestRecord_Summarize(t *testing.T) {
	r := validRecord()
	r.Metadata = Metadata{"b": 1, "a": 2}

	s := r.Summarize()
	assert.Equal(t, []string{"a", "b"}, s.MetadataKeys)
	assert.Equal(t, "2023-11-14T22:13:20Z", s.CreatedAt)
	assert.Equal(t, 2, s.MessageCount)
	assert.Equal(t, "Alice", s.DisplayName)
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("x", 150)

	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"plain", Message{"mes": "hello there"}, "hello there"},
		{"empty", Message{"mes": ""}, EmptyPreview},
		{"missing", Message{"name": "Bot"}, EmptyPreview},
		{"content fallback", Message{"content": "from content"}, "from content"},
		{"strip tags", Message{"mes": "<b>bold</b> and <i>italic</i>"}, "bold and italic"},
		{"entities", Message{"mes": "a &amp; b &gt; c"}, "a & b > c"},
		{"encoded markup stripped", Message{"mes": "hi &lt;img src=x onerror=alert(1)&gt; there"}, "hi there"},
		{"double encoded markup stripped", Message{"mes": "x &amp;lt;b&amp;gt;y"}, "x y"},
		{"script dropped", Message{"mes": "hi<script>alert(1)</script> there"}, "hi there"},
		{"br separates", Message{"mes": "line1<br>line2"}, "line1 line2"},
		{"whitespace collapsed", Message{"mes": "  a \n\n b\t c "}, "a b c"},
		{"only markup", Message{"mes": "<img src=x>"}, EmptyPreview},
		{"truncated", Message{"mes": long}, strings.Repeat("x", 97) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Preview(tt.msg)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, utf8.RuneCountInString(got), PreviewLimit)
		})
	}
}

func TestPreview_MultibyteTruncation(t *testing.T) {
	got := Preview(Message{"mes": strings.Repeat("会", 120)})
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, PreviewLimit, utf8.RuneCountInString(got))
}

func TestLive_ReplaceAllClearsThenAssigns(t *testing.T) {
	meta := Metadata{"stale": true, "keep": "old"}
	l := NewLive([]Message{{"mes": "a"}, {"mes": "b"}, {"mes": "c"}}, meta)

	l.ReplaceAll([]Message{{"mes": "x"}}, Metadata{"keep": "new", "fresh": 1})

	assert.Equal(t, 1, l.Len())
	assert.Equal(t, []Message{{"mes": "x"}}, l.Messages())
	assert.Equal(t, Metadata{"keep": "new", "fresh": 1}, l.Metadata())

	// The original map is updated in place.
	assert.NotContains(t, meta, "stale")
	assert.Equal(t, "new", meta["keep"])
}

func TestLive_Edits(t *testing.T) {
	l := NewLive(nil, nil)
	l.Append(Message{"mes": "a"}, Message{"mes": "b"})
	require.NoError(t, l.Update(1, Message{"mes": "B"}))
	assert.Error(t, l.Update(5, Message{}))
	require.NoError(t, l.Delete(0))
	assert.Error(t, l.Delete(3))
	l.SetMetadata("k", "v")

	err := l.View(func(msgs []Message, md Metadata) error {
		assert.Equal(t, []Message{{"mes": "B"}}, msgs)
		assert.Equal(t, "v", md["k"])
		return nil
	})
	require.NoError(t, err)
}

func TestLive_ConcurrentAccess(t *testing.T) {
	l := NewLive(nil, nil)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			l.Append(Message{"i": i})
		}()
		go func() {
			defer wg.Done()
			_ = l.View(func(msgs []Message, _ Metadata) error {
				_ = len(msgs)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, l.Len())
}
