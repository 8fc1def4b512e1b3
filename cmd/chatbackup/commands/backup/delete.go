package backup

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/chatbackup/cmd/chatbackup/commands/flags"
)

func init() {
	Cmd.AddCommand(deleteCmd)
}

var deleteCmd = &cobra.Command{
	Use:     "delete <chat-key> <timestamp>",
	Aliases: []string{"rm"},
	Short:   "Delete one backup",
	Example: `  chatbackup backup delete char_7_Seraphina%20-%202024-05-01 1714557600000`,
	Args:    cobra.ExactArgs(2),
	RunE:    runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parseKey(args[0])
	if err != nil {
		return err
	}
	ts, err := parseTimestamp(args[1])
	if err != nil {
		return err
	}

	app, err := flags.OpenApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Store.Delete(cmd.Context(), id, ts); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted backup %d of %s\n", ts, id)
	return nil
}
