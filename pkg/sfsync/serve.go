package sfsync

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/bianoble/sfsync/internal/scheduler"
	"github.com/bianoble/sfsync/internal/server"
)

// ServeOptions overrides parts of the schedule and admin server config.
type ServeOptions struct {
	// Addr overrides server.addr. "-" disables the admin server.
	Addr string
	// RunOnStart overrides schedule.run_on_start when non-nil.
	RunOnStart *bool
}

// Serve runs every configured record type on the configured interval and
// exposes the admin API until ctx is cancelled. The in-flight pass sees the
// same cancellation and Serve waits for it to return.
func (c *Client) Serve(ctx context.Context, opts ServeOptions) error {
	runOnStart := c.cfg.Schedule.ShouldRunOnStart()
	if opts.RunOnStart != nil {
		runOnStart = *opts.RunOnStart
	}
	addr := c.cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	sched := scheduler.New(c.cfg.Schedule.Interval, runOnStart, func(ctx context.Context) error {
		_, err := c.Run(ctx)
		return err
	}, c.logger)
	sched.OnStateChange = c.metrics.SetRunning

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Start(ctx)
	})
	if addr != "-" {
		srv := server.New(addr, sched, c.history, c.metrics.Handler(), c.logger)
		g.Go(func() error {
			return srv.ListenAndServe(ctx)
		})
	}
	return g.Wait()
}
