// Package observability builds the process logger and the summary sinks
// that turn pass results into log records and Prometheus metrics.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // json, text
	Output     string // stdout, stderr, file, both
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	AddSource  bool
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a logger from cfg. The returned close func releases the
// rotating file, if any; it is always non-nil.
func NewLogger(cfg LogConfig) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }

	var (
		out     io.Writer
		closeFn = noop
	)
	switch cfg.Output {
	case "file", "both":
		if cfg.FilePath == "" {
			return nil, noop, fmt.Errorf("log output '%s' requires a file path", cfg.Output)
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return nil, noop, fmt.Errorf("creating log directory: %w", err)
		}
		fw := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		closeFn = fw.Close
		out = fw
		if cfg.Output == "both" {
			out = io.MultiWriter(os.Stderr, fw)
		}
	case "stdout":
		out = os.Stdout
	default:
		out = os.Stderr
	}

	return slog.New(NewHandler(out, cfg)), closeFn, nil
}

// NewHandler returns the json or text handler for cfg writing to w.
func NewHandler(w io.Writer, cfg LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}
	if cfg.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
