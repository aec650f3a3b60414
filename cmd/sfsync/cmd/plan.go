package cmd

import (
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan [record...]",
	Short: "Show what a pass would delete and upsert",
	Long: `Extracts the source rows and indexes the target object, then reports the
delete-set and upsert count without issuing any mutation. Plans are not
written to the status file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()

		summaries, runErr := client.Plan(cmd.Context(), args...)
		info("Dry run — nothing changed in the target.")
		if err := printSummaries(summaries); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}
