package cmd

import (
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file without connecting to anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		info("Config valid: %d record type(s).", len(cfg.Records))
		for _, rec := range cfg.Records {
			detail("%s -> %s by %s (%d field(s))", rec.Name, rec.Object, rec.ExternalIDField, len(rec.Fields))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
