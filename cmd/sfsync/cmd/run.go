package cmd

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [record...]",
	Short: "Run one reconciliation pass",
	Long: `Runs one pass for each named record type, or for all of them. A pass
deletes target records whose external id is no longer in the source, then
upserts every source row. Per-record failures are reported and do not stop
the pass; exit is non-zero when any pass aborted or any record failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		summaries, runErr := client.Run(cmd.Context(), args...)
		if err := printSummaries(summaries); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
