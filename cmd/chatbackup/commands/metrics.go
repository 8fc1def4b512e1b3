package commands

import (
	"github.com/spf13/cobra"

	"github.com/thoreinstein/chatbackup/cmd/chatbackup/commands/flags"
)

func init() {
	rootCmd.AddCommand(metricsCmd)
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print store metrics in Prometheus text format",
	Long: `Count the stored backups and print them, together with the auto-backup
setting, in the Prometheus text exposition format. Suitable for a node
exporter textfile collector.

A running 'chatbackup watch --metrics-addr' serves the full set of backup
and restore counters instead.`,
	Example: `  chatbackup metrics > /var/lib/node_exporter/chatbackup.prom`,
	Args:    cobra.NoArgs,
	RunE:    runMetrics,
}

func runMetrics(cmd *cobra.Command, _ []string) error {
	app, err := flags.OpenApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	listing, err := app.Store.ListAll(cmd.Context())
	if err != nil {
		return err
	}
	ids, err := app.Store.Keys(cmd.Context())
	if err != nil {
		return err
	}
	app.Metrics.SetStored(len(listing.Records), len(ids))
	app.Metrics.SetAutoEnabled(app.Settings.AutoBackupEnabled())

	return app.Metrics.WritePrometheus(cmd.OutOrStdout())
}
