package backup

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/chatbackup/cmd/chatbackup/commands/flags"
	"github.com/thoreinstein/chatbackup/internal/errors"
	"github.com/thoreinstein/chatbackup/internal/host/filehost"
	"github.com/thoreinstein/chatbackup/internal/transcript"
)

var (
	exportOutput   string
	exportUserName string
	exportFormat   string
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "File to write (required)")
	exportCmd.Flags().StringVar(&exportUserName, "user-name", "You", "User name written to the chat header")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", "Output format: jsonl, markdown (default: from the file extension)")
	_ = exportCmd.MarkFlagRequired("output")
	Cmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <chat-key> [timestamp]",
	Short: "Write a backup out as a chat file",
	Long: `Write a backup as a JSONL chat file that the chat application can import,
or as a Markdown transcript for reading. Files ending in .md are written as
Markdown unless --format says otherwise.

Without a timestamp the newest backup is exported.`,
	Example: `  chatbackup backup export char_7_Seraphina%20-%202024-05-01 -o seraphina.jsonl
  chatbackup backup export char_7_Seraphina%20-%202024-05-01 -o seraphina.md`,
	Args:    cobra.RangeArgs(1, 2),
	RunE:    runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	app, err := flags.OpenApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	rec, err := resolveRecord(cmd.Context(), app.Store, args)
	if err != nil {
		return err
	}

	format := exportFormat
	if format == "" {
		format = "jsonl"
		if ext := filepath.Ext(exportOutput); ext == ".md" || ext == ".markdown" {
			format = "markdown"
		}
	}

	switch format {
	case "jsonl":
		name := rec.DisplayName
		if name == "" {
			name = rec.Identity.SourceID
		}
		err = filehost.WriteChat(exportOutput, name, exportUserName, rec.CreatedAt(), rec.Messages, rec.Metadata)
	case "markdown", "md":
		var data []byte
		data, err = transcript.Render(rec, exportUserName)
		if err == nil {
			err = os.WriteFile(exportOutput, data, 0o600)
		}
	default:
		return errors.NewUserError(errors.Newf("unknown format %q", format), "Use --format jsonl or --format markdown")
	}
	if err != nil {
		return errors.Wrapf(err, "exporting to %s", exportOutput)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d messages to %s\n", rec.MessageCount, exportOutput)
	return nil
}
