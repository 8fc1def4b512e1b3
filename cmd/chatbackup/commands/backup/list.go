package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/chatbackup/cmd/chatbackup/commands/flags"
	"github.com/thoreinstein/chatbackup/internal/backup"
	"github.com/thoreinstein/chatbackup/internal/chat"
	"github.com/thoreinstein/chatbackup/internal/errors"
)

var listJSON bool

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	Cmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list [chat-key]",
	Short: "List available backups",
	Long: `List backups grouped by chat, newest first.

With a chat key, lists only that chat's backups. Stored entries that cannot
be read are reported and skipped.`,
	Example: `  # List all backups
  chatbackup backup list

  # List the backups of one chat
  chatbackup backup list char_7_Seraphina%20-%202024-05-01

  # Output as JSON
  chatbackup backup list --json

  See Also:
    chatbackup backup show    - Show one backup
    chatbackup backup restore - Restore from a backup`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

// listOutput represents the JSON output for backup list.
type listOutput struct {
	Key     string         `json:"key"`
	Backups []chat.Summary `json:"backups"`
}

func runList(cmd *cobra.Command, args []string) error {
	app, err := flags.OpenApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	var listing *backup.Listing
	if len(args) == 1 {
		id, err := parseKey(args[0])
		if err != nil {
			return err
		}
		listing, err = app.Store.List(cmd.Context(), id)
		if err != nil {
			return err
		}
	} else {
		listing, err = app.Store.ListAll(cmd.Context())
		if err != nil {
			return err
		}
	}
	app.Metrics.SetStored(len(listing.Records), len(groupByIdentity(listing.Records)))

	w := cmd.OutOrStdout()
	if listJSON {
		return outputListJSON(w, listing)
	}
	return outputListTabular(w, listing)
}

func outputListJSON(w io.Writer, listing *backup.Listing) error {
	groups := groupByIdentity(listing.Records)
	output := make([]listOutput, 0, len(groups))
	for _, g := range groups {
		summaries := make([]chat.Summary, len(g.records))
		for i, r := range g.records {
			summaries[i] = r.Summarize()
		}
		output = append(output, listOutput{Key: g.id.Key(), Backups: summaries})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(output), "encoding output")
}

func outputListTabular(w io.Writer, listing *backup.Listing) error {
	groups := groupByIdentity(listing.Records)

	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		name := g.records[0].DisplayName
		if name == "" {
			name = g.id.SourceID
		}
		fmt.Fprintf(w, "%s  %s\n", headerColor.Sprintf("%s: %s", name, g.id.ChatName), dimColor.Sprint(g.id.Kind))
		fmt.Fprintf(w, "  key: %s\n", keyColor.Sprint(g.id.Key()))

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  TIMESTAMP\tCREATED\tMESSAGES\tPREVIEW")
		for _, r := range g.records {
			fmt.Fprintf(tw, "  %d\t%s\t%d\t%s\n",
				r.Timestamp,
				r.CreatedAt().Local().Format(timeLayout),
				r.MessageCount,
				r.Preview)
		}
		if err := tw.Flush(); err != nil {
			return errors.Wrap(err, "writing table")
		}
	}

	if len(listing.Invalid) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, warnColor.Sprintf("%d unreadable backup entries skipped:", len(listing.Invalid)))
		for _, inv := range listing.Invalid {
			fmt.Fprintf(w, "  %s[%d]: %v\n", inv.Key, inv.Index, inv.Err)
		}
	}

	if len(groups) == 0 {
		fmt.Fprintln(w, "No backups available")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Backups are taken automatically by: chatbackup watch")
		fmt.Fprintln(w, "You can also take one manually with: chatbackup snapshot <chat file>")
	}
	return nil
}
