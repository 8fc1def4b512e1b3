package backup

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/chatbackup/cmd/chatbackup/commands/flags"
	"github.com/thoreinstein/chatbackup/internal/chat"
	"github.com/thoreinstein/chatbackup/internal/cli/prompt"
	"github.com/thoreinstein/chatbackup/internal/errors"
	"github.com/thoreinstein/chatbackup/internal/host/filehost"
	"github.com/thoreinstein/chatbackup/internal/logging"
	"github.com/thoreinstein/chatbackup/internal/restore"
)

var (
	restoreInteractive bool
	restoreYes         bool
	restoreCreate      bool
	restoreRender      bool
)

func init() {
	restoreCmd.Flags().BoolVarP(&restoreInteractive, "interactive", "i", false, "Pick the backup with a fuzzy finder")
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "Restore without asking for confirmation")
	restoreCmd.Flags().BoolVar(&restoreCreate, "create-entity", false, "Create the character or group directory if it is missing")
	restoreCmd.Flags().BoolVar(&restoreRender, "print", false, "Print the restored chat")
	Cmd.AddCommand(restoreCmd)
}

var restoreCmd = &cobra.Command{
	Use:   "restore [chat-key] [timestamp]",
	Short: "Restore a backup into a new chat",
	Long: `Restore a backup into a freshly created chat of the same character or
group. The original chat is never modified.

Without arguments the backups of every chat are offered for selection; with
a chat key only that chat's backups are. A timestamp selects one backup
directly. Restores always ask for confirmation unless --yes is given.`,
	Example: `  # Choose from a numbered list
  chatbackup backup restore

  # Fuzzy-find across all backups
  chatbackup backup restore --interactive

  # Restore a specific backup without asking
  chatbackup backup restore char_7_Seraphina%20-%202024-05-01 1714557600000 --yes`,
	Args: cobra.MaximumNArgs(2),
	RunE: runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	app, err := flags.OpenApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	var opts []prompt.Option
	if restoreInteractive && logging.IsTTY(os.Stdout) {
		opts = append(opts, prompt.WithFinder(prompt.FuzzyFind))
	}
	opts = append(opts, prompt.WithAssumeYes(restoreYes))
	sel := prompt.NewSelectorWithIO(cmd.InOrStdin(), w, opts...)

	var rec *chat.Record
	switch len(args) {
	case 2:
		rec, err = resolveRecord(ctx, app.Store, args)
	case 1:
		id, perr := parseKey(args[0])
		if perr != nil {
			return perr
		}
		listing, lerr := app.Store.List(ctx, id)
		if lerr != nil {
			return lerr
		}
		rec, err = sel.SelectRecord(listing.Records)
	default:
		listing, lerr := app.Store.ListAll(ctx)
		if lerr != nil {
			return lerr
		}
		rec, err = sel.SelectRecord(listing.Records)
	}
	if err != nil {
		if errors.Is(err, prompt.ErrSelectionCancelled) {
			fmt.Fprintln(w, "Restore cancelled")
			return nil
		}
		if errors.Is(err, prompt.ErrNoBackups) {
			return errors.NewUserError(err, "Run: chatbackup backup list")
		}
		return err
	}

	hostOpts := []filehost.Option{filehost.WithCreateEntities(restoreCreate)}
	if restoreRender {
		hostOpts = append(hostOpts, filehost.WithOutput(w))
	}
	host, err := app.Host(hostOpts...)
	if err != nil {
		return err
	}

	r := app.Restorer(host, restore.WithConfirmer(sel))
	out, err := r.Restore(ctx, rec)
	if err != nil {
		return errors.NewSystemError(err, "The original chat is unchanged; run with -v for details")
	}
	if out.Declined {
		fmt.Fprintln(w, "Restore cancelled")
		return nil
	}
	if out.RenderErr != nil {
		fmt.Fprintln(w, warnColor.Sprintf("Restored, but the chat could not be displayed: %v", out.RenderErr))
	}
	fmt.Fprintf(w, "Restored %d messages into %s\n", out.Messages, host.Path(out.Session))
	return nil
}
