package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/chatbackup/cmd"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version, commit, and build date of chatbackup.`,
	// Version output must not depend on a readable config file.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(c *cobra.Command, _ []string) {
		w := c.OutOrStdout()
		fmt.Fprintf(w, "chatbackup version %s\n", cmd.Version)
		fmt.Fprintf(w, "  commit: %s\n", cmd.Commit)
		fmt.Fprintf(w, "  built:  %s\n", cmd.Date)
	},
}
