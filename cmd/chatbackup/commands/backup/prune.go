package backup

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/chatbackup/cmd/chatbackup/commands/flags"
	"github.com/thoreinstein/chatbackup/internal/chat"
	"github.com/thoreinstein/chatbackup/internal/errors"
)

var (
	pruneKeep   int
	pruneDryRun bool
)

func init() {
	pruneCmd.Flags().IntVar(&pruneKeep, "keep", -1, "Number of backups to keep per chat (default: max_backups)")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "Show what would be removed without removing it")
	Cmd.AddCommand(pruneCmd)
}

var pruneCmd = &cobra.Command{
	Use:   "prune [chat-key]",
	Short: "Remove old backups",
	Long: `Remove all but the newest backups of every chat, or of one chat.

Lowering max_backups only shrinks a chat's backups on its next write; prune
applies the new limit right away.`,
	Example: `  # Apply the configured max_backups to every chat
  chatbackup backup prune

  # Keep only the newest backup of one chat
  chatbackup backup prune char_7_Seraphina%20-%202024-05-01 --keep 1

  # Preview
  chatbackup backup prune --keep 1 --dry-run`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrune,
}

func runPrune(cmd *cobra.Command, args []string) error {
	app, err := flags.OpenApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	keep := pruneKeep
	if keep < 0 {
		keep = app.Store.MaxBackups()
	}

	ctx := cmd.Context()
	var ids []chat.Identity
	if len(args) == 1 {
		id, err := parseKey(args[0])
		if err != nil {
			return err
		}
		ids = []chat.Identity{id}
	} else {
		ids, err = app.Store.Keys(ctx)
		if err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	total := 0
	for _, id := range ids {
		if pruneDryRun {
			listing, err := app.Store.List(ctx, id)
			if err != nil {
				return err
			}
			if n := len(listing.Records) - keep; n > 0 {
				for _, r := range listing.Records[keep:] {
					fmt.Fprintf(w, "Would remove %d of %s\n", r.Timestamp, id)
				}
				total += n
			}
			continue
		}

		removed, err := app.Store.Prune(ctx, id, keep)
		if err != nil {
			return errors.Wrapf(err, "pruning %s", id)
		}
		for _, r := range removed {
			fmt.Fprintf(w, "Removed %d of %s\n", r.Timestamp, id)
		}
		total += len(removed)
	}

	switch {
	case total == 0:
		fmt.Fprintln(w, "Nothing to prune")
	case pruneDryRun:
		fmt.Fprintf(w, "Would remove %d backups\n", total)
	default:
		fmt.Fprintf(w, "Removed %d backups\n", total)
	}
	return nil
}
