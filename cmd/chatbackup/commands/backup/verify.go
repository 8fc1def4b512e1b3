package backup

import (
	"github.com/spf13/cobra"

	"github.com/thoreinstein/chatbackup/cmd/chatbackup/commands/flags"
	"github.com/thoreinstein/chatbackup/internal/errors"
	"github.com/thoreinstein/chatbackup/internal/validator"
)

// errVerifyFailed is returned when stored backups have errors.
var errVerifyFailed = errors.New("backup store has errors")

var verifyJSON bool

func init() {
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "Output as JSON")
	Cmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every stored backup",
	Long: `Read every backup and report entries that cannot be decoded, chats
holding more backups than max_backups, and chats with two backups of the
same last message.

Warnings are corrected by the next backup. Errors exit with status 2.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func runVerify(cmd *cobra.Command, _ []string) error {
	app, err := flags.OpenApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	listing, err := app.Store.ListAll(cmd.Context())
	if err != nil {
		return err
	}

	result := validator.Backups(listing, app.Store.MaxBackups(), app.Store.Mode())
	format := validator.FormatText
	if verifyJSON {
		format = validator.FormatJSON
	}
	if err := validator.NewReporter(cmd.OutOrStdout(), format).Report(result); err != nil {
		return err
	}

	if result.HasErrors() {
		return errors.NewExitError(errVerifyFailed, errors.ExitSystem)
	}
	return nil
}
