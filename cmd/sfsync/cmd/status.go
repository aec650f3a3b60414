package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/bianoble/sfsync/internal/status"
)

var statusCmd = &cobra.Command{
	Use:   "status [record...]",
	Short: "Show the last recorded pass of each record type",
	Long: `Reads the status file written after every pass and shows the outcome,
counts and finish time of the last pass of all or named record types.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		f, err := status.Load(cfg.StatusFile)
		if errors.Is(err, fs.ErrNotExist) {
			info("No passes recorded yet (%s).", cfg.StatusFile)
			return nil
		}
		if err != nil {
			return err
		}

		want := make(map[string]bool, len(args))
		for _, a := range args {
			want[a] = true
		}

		fmt.Printf("%-24s %-9s %-20s %8s %8s %8s %8s\n", "RECORD", "STATUS", "FINISHED", "DELETED", "CREATED", "UPDATED", "ERRORED")
		for _, s := range f.Sorted() {
			if len(want) > 0 && !want[s.RecordType] {
				continue
			}
			fmt.Printf("%-24s %-9s %-20s %8d %8d %8d %8d\n",
				s.RecordType, s.Status, s.FinishedAt.Local().Format("2006-01-02 15:04:05"),
				s.Deleted, s.Created, s.Updated, s.Errored)
			if s.Error != "" {
				detail("error: %s", s.Error)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
