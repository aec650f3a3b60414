package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bianoble/sfsync/pkg/sfsync"
)

var (
	serveAddr       string
	serveRunOnStart bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run passes on the configured interval and serve the admin API",
	Long: `Runs every configured record type on schedule.interval and serves
/healthz, /metrics, GET /runs/last and POST /runs on server.addr until
interrupted. An in-flight pass is cancelled on shutdown.

Use --addr - to disable the admin API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, err := newClient(ctx)
		if err != nil {
			return err
		}
		defer client.Close()

		opts := sfsync.ServeOptions{Addr: serveAddr}
		if cmd.Flags().Changed("run-on-start") {
			opts.RunOnStart = &serveRunOnStart
		}

		info("Serving %d record type(s) from %s", len(client.RecordTypes()), client.ConfigPath())
		err = client.Serve(ctx, opts)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "admin API listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveRunOnStart, "run-on-start", true, "run a pass immediately on start")
	rootCmd.AddCommand(serveCmd)
}
