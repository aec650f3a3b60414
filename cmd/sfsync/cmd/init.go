package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bianoble/sfsync/internal/config"
)

var initForce bool

// initTemplate is the default sfsync.yaml scaffold. Secrets are read from
// the environment when the file is loaded.
const initTemplate = `# sfsync configuration
schedule:
  interval: 5m
  run_on_start: true

source:
  driver: mysql            # mysql or sqlite3
  dsn: ${SFSYNC_SOURCE_DSN}
  timeout: 2m

target:
  instance_url: https://your-org.my.salesforce.com
  api_version: v60.0
  request_timeout: 30s
  auth:
    grant_type: client_credentials   # or password
    client_id: ${SFSYNC_CLIENT_ID}
    client_secret: ${SFSYNC_CLIENT_SECRET}
    # username: integration@your-org.com
    # password: ${SFSYNC_PASSWORD}

records:
  - name: payment-terms
    object: CA_CondicaoPagamento__c
    external_id_field: CA_IdExterno__c
    key_column: GroupNum
    query: |
      SELECT GroupNum, PymntGroup, ExtraDays FROM OCTG
    fields:
      - target: Name
        source: PymntGroup
      - target: CA_DiasExtras__c
        source: ExtraDays
        transform: int
      # - target: CA_Descricao__c
      #   template: "{{ .PymntGroup }} ({{ .ExtraDays }} days)"

  # Transforms: string, int, decimal, bool, flag (S/N), date

logging:
  level: info
  format: text             # text or json
  output: stderr           # stderr, file or both
  # file_path: /var/log/sfsync.log

server:
  addr: ":8080"

status_file: sfsync-status.yaml
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter sfsync.yaml configuration",
	Long: `Creates an sfsync.yaml file in the current directory with a commented
template for one record type. Secrets are referenced as environment variables.

Use --force to overwrite an existing configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outPath := configPath
		if outPath == "" {
			outPath = config.FileNames[0]
		}
		if !filepath.IsAbs(outPath) {
			abs, err := filepath.Abs(outPath)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}
			outPath = abs
		}

		if !initForce {
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
			}
		}

		if err := os.WriteFile(outPath, []byte(initTemplate), 0644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		info("Created %s", outPath)
		info("")
		info("Next steps:")
		info("  1. Edit the source query and field mapping")
		info("  2. Export SFSYNC_SOURCE_DSN, SFSYNC_CLIENT_ID and SFSYNC_CLIENT_SECRET")
		info("  3. Run 'sfsync plan' to preview, then 'sfsync run' or 'sfsync serve'")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite existing config file")
	rootCmd.AddCommand(initCmd)
}
