package backup

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/chatbackup/cmd/chatbackup/commands/flags"
	"github.com/thoreinstein/chatbackup/internal/errors"
)

var clearForce bool

func init() {
	clearCmd.Flags().BoolVar(&clearForce, "force", false, "Confirm removal of every backup")
	Cmd.AddCommand(clearCmd)
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every backup",
	Long: `Remove every backup of every chat. The partitioning mode of the store
is kept. This cannot be undone, so --force is required.`,
	Example: `  chatbackup backup clear --force`,
	Args:    cobra.NoArgs,
	RunE:    runClear,
}

func runClear(cmd *cobra.Command, _ []string) error {
	if !clearForce {
		return errors.NewUserError(errors.New("refusing to remove every backup"), "Run again with --force")
	}

	app, err := flags.OpenApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	n, err := app.Store.Clear(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d backups\n", n)
	return nil
}
