// Package backup provides CLI commands for browsing, exporting and restoring
// chat backups.
package backup

import (
	"context"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/chatbackup/internal/backup"
	"github.com/thoreinstein/chatbackup/internal/chat"
	"github.com/thoreinstein/chatbackup/internal/errors"
)

// Colors for terminal output.
var (
	headerColor = color.New(color.FgCyan, color.Bold)
	keyColor    = color.New(color.FgGreen)
	dimColor    = color.New(color.FgHiBlack)
	warnColor   = color.New(color.FgYellow)
)

// timeLayout is how backup times are shown.
const timeLayout = "2006-01-02 15:04:05"

// Cmd is the root backup command.
var Cmd = &cobra.Command{
	Use:   "backup",
	Short: "Browse, export and restore chat backups",
	Long: `Browse, export and restore chat backups.

Backups are taken automatically by 'chatbackup watch' or on demand with
'chatbackup snapshot'. Each chat keeps up to max_backups records, newest
first; a backup of the same chat at the same last message replaces the older
one instead of taking another slot.

Chats are addressed by their key, as printed by 'chatbackup backup list',
and backups by their millisecond timestamp.`,
	Example: `  # List all backups
  chatbackup backup list

  # Show the newest backup of one chat
  chatbackup backup show char_7_Seraphina%20-%202024-05-01

  # Restore a backup into a new chat
  chatbackup backup restore char_7_Seraphina%20-%202024-05-01 1714557600000

  # Keep only the newest backup of every chat
  chatbackup backup prune --keep 1

  See Also:
    chatbackup backup list    - List backups
    chatbackup backup restore - Restore a backup into a new chat
    chatbackup backup export  - Write a backup out as a chat file`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// parseKey decodes a chat key argument.
func parseKey(arg string) (chat.Identity, error) {
	id, err := chat.ParseKey(arg)
	if err != nil {
		return chat.Identity{}, errors.NewUserError(err, "Run: chatbackup backup list")
	}
	return id, nil
}

// parseTimestamp decodes a backup timestamp argument.
func parseTimestamp(arg string) (int64, error) {
	ts, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || ts <= 0 {
		return 0, errors.NewUserError(errors.Newf("invalid backup timestamp %q", arg), "Use the TIMESTAMP column of: chatbackup backup list")
	}
	return ts, nil
}

// resolveRecord finds the record named by args: a chat key and an optional
// timestamp. Without a timestamp the newest backup of the chat is used.
func resolveRecord(ctx context.Context, store *backup.Store, args []string) (*chat.Record, error) {
	id, err := parseKey(args[0])
	if err != nil {
		return nil, err
	}

	if len(args) > 1 {
		ts, err := parseTimestamp(args[1])
		if err != nil {
			return nil, err
		}
		return store.Get(ctx, id, ts)
	}

	listing, err := store.List(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(listing.Records) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "no backups of %s", id)
	}
	return listing.Records[0], nil
}

// group collects records by identity, keeping the order in which each
// identity first appears.
type group struct {
	id      chat.Identity
	records []*chat.Record
}

func groupByIdentity(records []*chat.Record) []group {
	index := make(map[chat.Identity]int)
	var groups []group
	for _, r := range records {
		i, ok := index[r.Identity]
		if !ok {
			i = len(groups)
			index[r.Identity] = i
			groups = append(groups, group{id: r.Identity})
		}
		groups[i].records = append(groups[i].records, r)
	}
	return groups
}
