package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/chatbackup/cmd/chatbackup/commands/flags"
	"github.com/thoreinstein/chatbackup/internal/cli"
	"github.com/thoreinstein/chatbackup/internal/errors"
)

func init() {
	rootCmd.AddCommand(snapshotCmd)
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <chat-file>",
	Short: "Back up one chat file now",
	Long: `Take one backup of a chat file immediately, the same way an automatic
backup would. Disabled auto-backup or an empty chat skip the backup.

When host.root is not set, the chat directory is taken from the file's
location (<root>/characters/<id>/<chat>.jsonl).`,
	Example: `  chatbackup snapshot ~/SillyTavern/data/default-user/chats/characters/Seraphina/Seraphina\ -\ 2024-05-01@10h00m00s.jsonl

See Also: chatbackup watch, chatbackup backup list`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return errors.Wrap(err, "resolving chat file")
	}

	app, err := flags.OpenApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Config.Host.Root == "" {
		app.Config.Host.Root = filepath.Dir(filepath.Dir(filepath.Dir(path)))
	}
	host, err := app.Host()
	if err != nil {
		return err
	}
	id, err := host.IdentityOf(path)
	if err != nil {
		return errors.NewUserError(err, "Pass a .jsonl file under <root>/characters/<id>/ or <root>/groups/<id>/")
	}
	if err := host.Open(id); err != nil {
		return err
	}

	ctx := cmd.Context()
	eng := app.Engine(host, cli.NewNotifier(cmd.ErrOrStderr()))
	res, err := eng.PerformBackup(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	switch {
	case res.Skipped != "":
		fmt.Fprintf(w, "Skipped: %s\n", res.Skipped)
	case res.Replaced:
		fmt.Fprintf(w, "Replaced backup of %s at message %d (%d kept)\n", id, res.Record.LastMessageIndex, res.Count)
	default:
		fmt.Fprintf(w, "Backed up %d messages of %s as %d (%d kept, %d evicted)\n",
			res.Record.MessageCount, id, res.Record.Timestamp, res.Count, res.Evicted)
	}
	return nil
}
