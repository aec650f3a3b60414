package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bianoble/sfsync/internal/config"
	"github.com/bianoble/sfsync/pkg/sfsync"
)

// resolveConfigPath returns --config, or the discovered config file.
func resolveConfigPath() (string, error) {
	cand, err := config.Discover(config.DiscoverOptions{Explicit: configPath})
	if err != nil {
		return "", err
	}
	detail("using %s config %s", cand.Level, cand.Path)
	return cand.Path, nil
}

// loadConfig reads and validates the config file.
func loadConfig() (*config.Config, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// newClient builds a library client from the resolved config.
func newClient(ctx context.Context) (*sfsync.Client, error) {
	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}
	client, err := sfsync.New(ctx, sfsync.Options{ConfigPath: path})
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return client, nil
}

// printSummaries reports each pass and returns an error when any pass
// aborted or had per-record failures.
func printSummaries(summaries []*sfsync.RunSummary) error {
	var aborted, failed int
	for _, s := range summaries {
		info("%s", summaryLine(s))
		if s.Error != "" {
			errorf("%s: %s", s.RecordType, s.Error)
		}
		for _, d := range s.Diagnostics {
			detail("%s %s: %s", d.Operation, d.ExternalID, d.Message)
		}
		switch {
		case s.Status == sfsync.StatusAborted:
			aborted++
		case s.Errored > 0:
			failed++
		}
	}
	if aborted > 0 || failed > 0 {
		return fmt.Errorf("%d record type(s) aborted, %d with failed records", aborted, failed)
	}
	return nil
}

// summaryLine renders a summary as one line.
func summaryLine(s *sfsync.RunSummary) string {
	if s.DryRun {
		return fmt.Sprintf("%-24s %-9s source=%d remote=%d would delete %d, would upsert %d",
			s.RecordType, s.Status, s.TotalSourceExternalIDs, s.RemoteIndexSize, s.DeleteSet, s.TotalSourceExternalIDs)
	}
	return fmt.Sprintf("%-24s %-9s source=%d remote=%d deleted=%d created=%d updated=%d errored=%d (%s)",
		s.RecordType, s.Status, s.TotalSourceExternalIDs, s.RemoteIndexSize,
		s.Deleted, s.Created, s.Updated, s.Errored, humanDuration(s.Duration))
}

// humanDuration rounds d for display.
func humanDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}

// info prints a line unless quiet mode is active.
func info(format string, args ...any) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// detail prints a line only in verbose mode.
func detail(format string, args ...any) {
	if verbose {
		fmt.Printf("  "+format+"\n", args...)
	}
}

// errorf prints an error message to stderr.
func errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
