package engine

import (
	"context"
	"time"
)

// SummarySink receives the summary of every pass, completed or aborted.
type SummarySink interface {
	Record(ctx context.Context, s *RunSummary)
}

// Reporter accumulates counters for one pass and produces its summary.
// A Reporter belongs to exactly one pass.
type Reporter struct {
	s RunSummary
}

// NewReporter starts a summary for a pass.
func NewReporter(runID, recordType string, startedAt time.Time, dryRun bool) *Reporter {
	return &Reporter{s: RunSummary{
		RunID:      runID,
		RecordType: recordType,
		StartedAt:  startedAt,
		DryRun:     dryRun,
	}}
}

// Extracted records source cardinalities.
func (r *Reporter) Extracted(ext *Extraction) {
	r.s.SourceRows = len(ext.Records) + len(ext.Invalid)
	r.s.SkippedRows = len(ext.Invalid)
	r.s.TotalSourceExternalIDs = ext.IDs.Len()
}

// Indexed records remote index statistics.
func (r *Reporter) Indexed(ix *RemoteIndex) {
	r.s.RemoteIndexSize = ix.Len()
	r.s.IndexPages = ix.Pages()
	r.s.DuplicateRemoteKeys = len(ix.duplicates)
}

// Planned records the size of the delete-set.
func (r *Reporter) Planned(deletes []RemoteRecord) {
	r.s.DeleteSet = len(deletes)
}

// Deleted counts one delete attempt.
func (r *Reporter) Deleted(rec RemoteRecord, err error) {
	if err == nil {
		r.s.Deleted++
		return
	}
	r.s.DeleteErrors++
	r.s.Errored++
	r.s.Diagnostics = append(r.s.Diagnostics, Diagnostic{
		ExternalID: rec.ExternalID.String(),
		Operation:  "delete",
		Message:    err.Error(),
	})
}

// Upserted counts one upsert attempt.
func (r *Reporter) Upserted(rec SourceRecord, out MutationOutcome) {
	r.s.InsertedOrUpdatedAttempted++
	switch out.Kind {
	case OutcomeCreated:
		r.s.Created++
	case OutcomeUpdatedNoContent, OutcomeUpdatedWithBody:
		r.s.Updated++
	default:
		r.s.UpsertErrors++
		r.s.Errored++
		msg := "unknown error"
		if out.Err != nil {
			msg = out.Err.Error()
		}
		r.s.Diagnostics = append(r.s.Diagnostics, Diagnostic{
			ExternalID: rec.ExternalID.String(),
			Operation:  "upsert",
			Message:    msg,
			StatusCode: out.StatusCode,
			Row:        rowJSON(rec),
		})
	}
}

// Finish seals the pass and returns its summary. The returned value shares
// no memory with the Reporter.
func (r *Reporter) Finish(status Status, err error, finishedAt time.Time) *RunSummary {
	s := r.s
	s.Status = status
	s.FinishedAt = finishedAt
	s.Duration = finishedAt.Sub(s.StartedAt)
	if err != nil {
		s.Error = err.Error()
	}
	if len(r.s.Diagnostics) > 0 {
		s.Diagnostics = make([]Diagnostic, len(r.s.Diagnostics))
		copy(s.Diagnostics, r.s.Diagnostics)
	}
	return &s
}
