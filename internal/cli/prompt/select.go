// Package prompt provides interactive CLI prompts for choosing and confirming
// backups.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ktr0731/go-fuzzyfinder"

	"github.com/thoreinstein/chatbackup/internal/chat"
	"github.com/thoreinstein/chatbackup/internal/errors"
)

// Sentinel errors for backup selection.
var (
	ErrNoBackups          = errors.New("no backups to select from")
	ErrInvalidSelection   = errors.New("invalid selection")
	ErrSelectionCancelled = errors.New("selection cancelled")
)

// timeLayout is how backup times are shown in prompts.
const timeLayout = "2006-01-02 15:04:05"

// FindFunc picks one of records interactively and returns its index.
type FindFunc func(records []*chat.Record) (int, error)

// Selector handles interactive backup selection and restore confirmation.
type Selector struct {
	reader    *bufio.Reader
	writer    io.Writer
	find      FindFunc
	assumeYes bool
}

// Option configures a Selector.
type Option func(*Selector)

// WithFinder makes SelectRecord use find instead of a numbered list.
func WithFinder(find FindFunc) Option {
	return func(s *Selector) {
		s.find = find
	}
}

// WithAssumeYes makes Confirm accept without asking.
func WithAssumeYes(yes bool) Option {
	return func(s *Selector) {
		s.assumeYes = yes
	}
}

// NewSelector creates a new Selector using stdin and stdout.
func NewSelector(opts ...Option) *Selector {
	return NewSelectorWithIO(os.Stdin, os.Stdout, opts...)
}

// NewSelectorWithIO creates a Selector with custom reader and writer for testing.
func NewSelectorWithIO(r io.Reader, w io.Writer, opts ...Option) *Selector {
	s := &Selector{
		reader: bufio.NewReader(r),
		writer: w,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectRecord prompts the user to choose one of records, newest first.
//
// Returns:
//   - ErrNoBackups if the list is empty
//   - The record if only one exists (auto-selects without prompting)
//   - The selected record based on user input
//   - ErrInvalidSelection if the selection is out of range
//   - ErrSelectionCancelled if input is EOF (e.g., Ctrl+D) or the finder is aborted
func (s *Selector) SelectRecord(records []*chat.Record) (*chat.Record, error) {
	if len(records) == 0 {
		return nil, ErrNoBackups
	}
	if len(records) == 1 {
		return records[0], nil
	}

	if s.find != nil {
		idx, err := s.find(records)
		if err != nil {
			if errors.Is(err, fuzzyfinder.ErrAbort) {
				return nil, ErrSelectionCancelled
			}
			return nil, errors.Wrap(err, "interactive selection failed")
		}
		if idx < 0 || idx >= len(records) {
			return nil, errors.Wrapf(ErrInvalidSelection, "index %d", idx)
		}
		return records[idx], nil
	}

	fmt.Fprintln(s.writer, "Available backups:")
	for i, r := range records {
		fmt.Fprintf(s.writer, "  [%d] %s\n", i+1, Label(r))
	}
	fmt.Fprintf(s.writer, "Select [1]: ")

	input, err := s.readLine()
	if err != nil {
		return nil, err
	}
	if input == "" {
		return records[0], nil
	}

	selection, err := strconv.Atoi(input)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSelection, "%q is not a number", input)
	}
	if selection < 1 || selection > len(records) {
		return nil, errors.Wrapf(ErrInvalidSelection, "%d is out of range [1-%d]", selection, len(records))
	}
	return records[selection-1], nil
}

// Confirm asks whether rec should be restored into a new chat. Anything but
// an explicit yes declines, including EOF.
func (s *Selector) Confirm(_ context.Context, rec *chat.Record) (bool, error) {
	if s.assumeYes {
		return true, nil
	}

	fmt.Fprintf(s.writer, "Restore %d messages of %s from %s into a new chat? [y/N]: ",
		rec.MessageCount, displayName(rec), rec.CreatedAt().Local().Format(timeLayout))

	input, err := s.readLine()
	if err != nil {
		if errors.Is(err, ErrSelectionCancelled) {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(input) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (s *Selector) readLine() (string, error) {
	input, err := s.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if strings.TrimSpace(input) != "" {
				return strings.TrimSpace(input), nil
			}
			return "", ErrSelectionCancelled
		}
		return "", errors.Wrap(err, "reading selection")
	}
	return strings.TrimSpace(input), nil
}

// Label is the one-line description of rec used in lists.
func Label(rec *chat.Record) string {
	return fmt.Sprintf("%s  %s  (%d messages)  %s",
		rec.CreatedAt().Local().Format(timeLayout), displayName(rec), rec.MessageCount, rec.Preview)
}

func displayName(rec *chat.Record) string {
	if rec.DisplayName != "" {
		return rec.DisplayName
	}
	return rec.Identity.SourceID
}

// FuzzyFind is a FindFunc backed by a full-screen fuzzy finder with a
// preview of each backup's latest messages.
func FuzzyFind(records []*chat.Record) (int, error) {
	return fuzzyfinder.Find(
		records,
		func(i int) string {
			return Label(records[i])
		},
		fuzzyfinder.WithPreviewWindow(func(i, _, _ int) string {
			if i == -1 {
				return ""
			}
			return Preview(records[i], 10)
		}),
	)
}

// Preview renders the header and last n messages of rec as plain text.
func Preview(rec *chat.Record, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chat: %s\nName: %s\nCreated: %s\nMessages: %d\n\n",
		rec.Identity, displayName(rec), rec.CreatedAt().Local().Format(timeLayout), rec.MessageCount)

	msgs := rec.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	for _, m := range msgs {
		name, _ := m["name"].(string)
		fmt.Fprintf(&b, "%s: %s\n", name, chat.StripHTML(chat.MessageText(m)))
	}
	return b.String()
}
