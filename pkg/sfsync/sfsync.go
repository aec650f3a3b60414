// Package sfsync provides the public Go library API for sfsync.
//
// sfsync mirrors ERP tables into Salesforce objects one way: every pass
// reads the authoritative rows from the ERP database, indexes the target
// object by external id, deletes target records whose external id is no
// longer in the source, and upserts every source row.
//
// # Basic Usage
//
//	client, err := sfsync.New(ctx, sfsync.Options{
//	    ConfigPath: "sfsync.yaml",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Preview what a pass would do
//	plans, err := client.Plan(ctx)
//
//	// Run one pass for every configured record type
//	summaries, err := client.Run(ctx)
//
//	// Or run on the configured schedule with the admin API
//	err = client.Serve(ctx, sfsync.ServeOptions{})
package sfsync

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bianoble/sfsync/internal/config"
	"github.com/bianoble/sfsync/internal/engine"
	"github.com/bianoble/sfsync/internal/mapping"
	"github.com/bianoble/sfsync/internal/observability"
	"github.com/bianoble/sfsync/internal/salesforce"
	"github.com/bianoble/sfsync/internal/source"
	"github.com/bianoble/sfsync/internal/status"
)

// Options configures a Client.
type Options struct {
	// ConfigPath is the path to the config file. If empty, the config is
	// discovered (SFSYNC_CONFIG, ./sfsync.yaml, user and system config dirs).
	ConfigPath string

	// Logger overrides the logger built from the config's logging section.
	Logger *slog.Logger

	// Source overrides the database named in the config.
	Source Querier

	// HTTPClient is used for both token and REST calls. Nil means a client
	// owned by this instance.
	HTTPClient *http.Client

	// Sinks receive every pass summary in addition to the built-in ones.
	Sinks []SummarySink

	// DisableStatusFile skips writing the status file.
	DisableStatusFile bool
}

// Client is the main entry point for the sfsync library. Each Client owns
// its own database pool, token cache and HTTP client.
type Client struct {
	cfg        *config.Config
	configPath string
	records    []engine.RecordType
	reconciler *engine.Reconciler
	metrics    *observability.Metrics
	history    *status.Memory
	logger     *slog.Logger
	closers    []func() error
}

// New loads the configuration and wires every collaborator.
func New(ctx context.Context, opts Options) (*Client, error) {
	path := opts.ConfigPath
	if path == "" {
		cand, err := config.Discover(config.DiscoverOptions{})
		if err != nil {
			return nil, err
		}
		path = cand.Path
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, configPath: path}
	if err := c.wire(ctx, opts); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) wire(ctx context.Context, opts Options) error {
	cfg := c.cfg

	c.logger = opts.Logger
	if c.logger == nil {
		l, closeLog, err := observability.NewLogger(observability.LogConfig{
			Level:      cfg.Logging.Level,
			Format:     cfg.Logging.Format,
			Output:     cfg.Logging.Output,
			FilePath:   cfg.Logging.FilePath,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		c.logger = l
		c.closers = append(c.closers, closeLog)
	}

	for _, rec := range cfg.Records {
		tbl, err := mapping.Compile(rec.Fields)
		if err != nil {
			return fmt.Errorf("record '%s': %w", rec.Name, err)
		}
		c.records = append(c.records, engine.RecordType{
			Name:            rec.Name,
			Object:          rec.Object,
			ExternalIDField: rec.ExternalIDField,
			Query:           rec.Query,
			KeyColumn:       rec.KeyColumn,
			Mapping:         tbl,
			MaxPages:        rec.MaxPages,
		})
	}

	src := opts.Source
	if src == nil {
		q, err := source.Open(ctx, cfg.Source.Driver, cfg.Source.DSN, cfg.Source.Timeout)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, q.Close)
		src = q
	}

	auth := cfg.Target.Auth
	tokens, err := salesforce.NewTokenProvider(salesforce.AuthConfig{
		TokenURL:     auth.TokenURL,
		GrantType:    auth.GrantType,
		ClientID:     auth.ClientID,
		ClientSecret: auth.ClientSecret,
		Username:     auth.Username,
		Password:     auth.Password,
		TokenTTL:     auth.TokenTTL,
		HTTPClient:   opts.HTTPClient,
	})
	if err != nil {
		return fmt.Errorf("configuring credentials: %w", err)
	}

	target := salesforce.NewClient(salesforce.Options{
		InstanceURL:    cfg.Target.InstanceURL,
		APIVersion:     cfg.Target.APIVersion,
		RequestTimeout: cfg.Target.RequestTimeout,
		HTTPClient:     opts.HTTPClient,
	})

	c.metrics = observability.NewMetrics()
	c.history = status.NewMemory()

	sinks := []engine.SummarySink{
		observability.LogSink{Logger: c.logger},
		c.metrics,
		c.history,
	}
	if !opts.DisableStatusFile {
		sinks = append(sinks, &status.FileSink{Path: cfg.StatusFile, Logger: c.logger})
	}
	sinks = append(sinks, opts.Sinks...)

	c.reconciler = &engine.Reconciler{
		Credentials: tokens,
		Source:      src,
		Target:      target,
		Sinks:       sinks,
		Logger:      c.logger,
	}
	return nil
}

// Run executes one pass for each named record type, or all of them.
// Fatal errors of individual record types are joined; the returned
// summaries cover every record type that was attempted.
func (c *Client) Run(ctx context.Context, records ...string) ([]*RunSummary, error) {
	return c.run(ctx, records, engine.RunOptions{})
}

// Plan is Run without mutations: it reports the delete-set and the number
// of upserts a pass would issue.
func (c *Client) Plan(ctx context.Context, records ...string) ([]*RunSummary, error) {
	return c.run(ctx, records, engine.RunOptions{DryRun: true})
}

func (c *Client) run(ctx context.Context, names []string, opts engine.RunOptions) ([]*RunSummary, error) {
	types, err := c.selectRecords(names)
	if err != nil {
		return nil, err
	}
	return c.reconciler.RunAll(ctx, types, opts)
}

func (c *Client) selectRecords(names []string) ([]engine.RecordType, error) {
	selected, err := c.cfg.SelectRecords(names)
	if err != nil {
		return nil, fmt.Errorf("%w — configured records: %v", err, c.RecordTypes())
	}
	byName := make(map[string]engine.RecordType, len(c.records))
	for _, rt := range c.records {
		byName[rt.Name] = rt
	}
	out := make([]engine.RecordType, 0, len(selected))
	for _, rec := range selected {
		out = append(out, byName[rec.Name])
	}
	return out, nil
}

// RecordTypes returns the configured record type names in config order.
func (c *Client) RecordTypes() []string {
	out := make([]string, len(c.records))
	for i, rt := range c.records {
		out[i] = rt.Name
	}
	return out
}

// ConfigPath returns the path the configuration was loaded from.
func (c *Client) ConfigPath() string { return c.configPath }

// LastRuns returns the latest summary of each record type run by this Client.
func (c *Client) LastRuns() []*RunSummary { return c.history.Last() }

// MetricsHandler serves this Client's Prometheus metrics.
func (c *Client) MetricsHandler() http.Handler { return c.metrics.Handler() }

// Close releases the database pool and the log file.
func (c *Client) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}
