package sfsync

import (
	"github.com/bianoble/sfsync/internal/engine"
	"github.com/bianoble/sfsync/internal/source"
)

// Type aliases re-export engine types as the public API.
// Users import "github.com/bianoble/sfsync/pkg/sfsync" and use
// sfsync.RunSummary, sfsync.Diagnostic, etc.

type RunSummary = engine.RunSummary
type Diagnostic = engine.Diagnostic
type Status = engine.Status
type PassError = engine.PassError
type SummarySink = engine.SummarySink
type Querier = source.Querier
type Row = source.Row

const (
	StatusCompleted = engine.StatusCompleted
	StatusAborted   = engine.StatusAborted
)
