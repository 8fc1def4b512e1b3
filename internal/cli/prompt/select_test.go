package prompt

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ktr0731/go-fuzzyfinder"

	"github.com/thoreinstein/chatbackup/internal/chat"
)

func testRecords() []*chat.Record {
	id := chat.Identity{Kind: chat.KindCharacter, SourceID: "7", ChatName: "c"}
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli()
	return []*chat.Record{
		{Timestamp: base + 2000, Identity: id, DisplayName: "Seraphina", MessageCount: 3, Preview: "newest",
			Messages: []chat.Message{{"name": "A", "mes": "1"}, {"name": "B", "mes": "2"}, {"name": "A", "mes": "<b>3</b>"}}},
		{Timestamp: base + 1000, Identity: id, DisplayName: "Seraphina", MessageCount: 2, Preview: "middle"},
		{Timestamp: base, Identity: id, MessageCount: 1, Preview: "oldest"},
	}
}

func TestSelectRecord_EmptyList(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewSelectorWithIO(strings.NewReader(""), &buf)

	_, err := s.SelectRecord(nil)
	if !errors.Is(err, ErrNoBackups) {
		t.Errorf("expected ErrNoBackups, got: %v", err)
	}
}

func TestSelectRecord_SingleItem(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewSelectorWithIO(strings.NewReader(""), &buf)
	records := testRecords()[:1]

	got, err := s.SelectRecord(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != records[0] {
		t.Errorf("expected the only record, got %+v", got)
	}
	if buf.Len() > 0 {
		t.Errorf("expected no output for single item, got: %s", buf.String())
	}
}

func TestSelectRecord_ValidSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		wantPreview string
	}{
		{name: "explicit first", input: "1\n", wantPreview: "newest"},
		{name: "explicit third", input: "3\n", wantPreview: "oldest"},
		{name: "default on empty", input: "\n", wantPreview: "newest"},
		{name: "whitespace trimmed", input: "  2  \n", wantPreview: "middle"},
		{name: "no trailing newline", input: "2", wantPreview: "middle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			s := NewSelectorWithIO(strings.NewReader(tt.input), &buf)

			got, err := s.SelectRecord(testRecords())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Preview != tt.wantPreview {
				t.Errorf("expected %q, got %q", tt.wantPreview, got.Preview)
			}
			if !strings.Contains(buf.String(), "[3]") {
				t.Errorf("expected a numbered list, got: %s", buf.String())
			}
		})
	}
}

func TestSelectRecord_InvalidSelection(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"0\n", "4\n", "abc\n", "-1\n"} {
		s := NewSelectorWithIO(strings.NewReader(input), &bytes.Buffer{})
		_, err := s.SelectRecord(testRecords())
		if !errors.Is(err, ErrInvalidSelection) {
			t.Errorf("input %q: expected ErrInvalidSelection, got %v", input, err)
		}
	}
}

func TestSelectRecord_Cancelled(t *testing.T) {
	t.Parallel()

	s := NewSelectorWithIO(strings.NewReader(""), &bytes.Buffer{})
	_, err := s.SelectRecord(testRecords())
	if !errors.Is(err, ErrSelectionCancelled) {
		t.Errorf("expected ErrSelectionCancelled, got %v", err)
	}
}

func TestSelectRecord_Finder(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewSelectorWithIO(strings.NewReader(""), &buf, WithFinder(func([]*chat.Record) (int, error) {
		return 1, nil
	}))
	got, err := s.SelectRecord(testRecords())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Preview != "middle" {
		t.Errorf("expected middle, got %q", got.Preview)
	}
	if buf.Len() > 0 {
		t.Errorf("finder should not print a list, got: %s", buf.String())
	}

	s = NewSelectorWithIO(strings.NewReader(""), &buf, WithFinder(func([]*chat.Record) (int, error) {
		return 0, fuzzyfinder.ErrAbort
	}))
	if _, err := s.SelectRecord(testRecords()); !errors.Is(err, ErrSelectionCancelled) {
		t.Errorf("expected ErrSelectionCancelled on abort, got %v", err)
	}
}

func TestConfirm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "", want: false},
		{input: "maybe\n", want: false},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		s := NewSelectorWithIO(strings.NewReader(tt.input), &buf)
		got, err := s.Confirm(context.Background(), testRecords()[0])
		if err != nil {
			t.Fatalf("input %q: unexpected error: %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("input %q: got %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(buf.String(), "3 messages of Seraphina") {
			t.Errorf("unexpected prompt: %s", buf.String())
		}
	}
}

func TestConfirm_AssumeYes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewSelectorWithIO(strings.NewReader(""), &buf, WithAssumeYes(true))
	ok, err := s.Confirm(context.Background(), testRecords()[0])
	if err != nil || !ok {
		t.Errorf("Confirm() = %v, %v; want true, nil", ok, err)
	}
	if buf.Len() > 0 {
		t.Errorf("expected no prompt, got: %s", buf.String())
	}
}

func TestSelectThenConfirm_SharesInput(t *testing.T) {
	t.Parallel()

	s := NewSelectorWithIO(strings.NewReader("2\ny\n"), &bytes.Buffer{})
	rec, err := s.SelectRecord(testRecords())
	if err != nil {
		t.Fatal(err)
	}
	ok, err := s.Confirm(context.Background(), rec)
	if err != nil || !ok {
		t.Errorf("Confirm() = %v, %v; want true, nil", ok, err)
	}
}

func TestLabelAndPreview(t *testing.T) {
	t.Parallel()

	recs := testRecords()
	if !strings.Contains(Label(recs[2]), "  7  ") {
		t.Errorf("label should fall back to source id: %q", Label(recs[2]))
	}

	p := Preview(recs[0], 2)
	if strings.Contains(p, "A: 1") {
		t.Errorf("preview should keep only the last 2 messages: %s", p)
	}
	if !strings.Contains(p, "A: 3") || !strings.Contains(p, "B: 2") {
		t.Errorf("preview missing messages: %s", p)
	}
}
