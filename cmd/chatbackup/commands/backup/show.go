package backup

import (
	"encoding/json"
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thoreinstein/chatbackup/cmd/chatbackup/commands/flags"
	"github.com/thoreinstein/chatbackup/internal/chat"
	"github.com/thoreinstein/chatbackup/internal/errors"
)

// Output formats for show.
const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatTOML = "toml"
)

var (
	showFormat string
	showFull   bool
)

func init() {
	showCmd.Flags().StringVarP(&showFormat, "format", "f", formatYAML, "Output format: json, yaml, toml")
	showCmd.Flags().BoolVar(&showFull, "full", false, "Include messages and metadata")
	Cmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show <chat-key> [timestamp]",
	Short: "Show one backup",
	Long: `Show a backup's summary, or with --full the whole record including its
messages and metadata. Without a timestamp the newest backup is shown.`,
	Example: `  # Summary of the newest backup
  chatbackup backup show char_7_Seraphina%20-%202024-05-01

  # Full record as JSON
  chatbackup backup show char_7_Seraphina%20-%202024-05-01 1714557600000 --full -f json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	app, err := flags.OpenApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	rec, err := resolveRecord(cmd.Context(), app.Store, args)
	if err != nil {
		return err
	}

	var v any = rec.Summarize()
	if showFull {
		v = fullRecord(rec)
	}
	return encode(cmd.OutOrStdout(), showFormat, v)
}

// record is the --full view of a backup.
type record struct {
	chat.Summary `yaml:",inline"`

	Metadata chat.Metadata  `json:"metadata" yaml:"metadata" toml:"metadata"`
	Messages []chat.Message `json:"messages" yaml:"messages" toml:"messages"`
}

func fullRecord(rec *chat.Record) record {
	return record{Summary: rec.Summarize(), Metadata: rec.Metadata, Messages: rec.Messages}
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(v), "encoding JSON")
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "encoding YAML")
		}
		return errors.Wrap(enc.Close(), "encoding YAML")
	case formatTOML:
		enc := toml.NewEncoder(w)
		enc.SetIndentTables(true)
		return errors.Wrap(enc.Encode(v), "encoding TOML")
	default:
		return errors.NewUserError(errors.Newf("unknown format %q", format), "Use --format json, yaml or toml")
	}
}
