package observability

import (
	"context"
	"log/slog"

	"github.com/bianoble/sfsync/internal/engine"
)

// LogSink writes one structured record per finished pass.
type LogSink struct {
	Logger *slog.Logger
}

// Record implements engine.SummarySink.
func (s LogSink) Record(ctx context.Context, sum *engine.RunSummary) {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}

	level := slog.LevelInfo
	switch {
	case sum.Status == engine.StatusAborted:
		level = slog.LevelError
	case sum.Errored > 0:
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("run_id", sum.RunID),
		slog.String("record_type", sum.RecordType),
		slog.String("status", string(sum.Status)),
		slog.Bool("dry_run", sum.DryRun),
		slog.Duration("duration", sum.Duration),
		slog.Int("total_source_external_ids", sum.TotalSourceExternalIDs),
		slog.Int("skipped_rows", sum.SkippedRows),
		slog.Int("remote_index_size", sum.RemoteIndexSize),
		slog.Int("delete_set", sum.DeleteSet),
		slog.Int("deleted", sum.Deleted),
		slog.Int("inserted_or_updated_attempted", sum.InsertedOrUpdatedAttempted),
		slog.Int("created", sum.Created),
		slog.Int("updated", sum.Updated),
		slog.Int("errored", sum.Errored),
	}
	if sum.Error != "" {
		attrs = append(attrs, slog.String("error", sum.Error))
	}
	log.LogAttrs(ctx, level, "pass finished", attrs...)
}
