package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bianoble/sfsync/internal/source"
)

// Sentinel errors for fatal-to-pass conditions.
var (
	ErrPaginationLoop = errors.New("continuation points back to an already fetched page")
	ErrTooManyPages   = errors.New("remote index exceeded the page limit")
)

// ExternalID identifies one logical record in both systems. Comparison is
// case-insensitive; use Key for map lookups.
type ExternalID string

// NormalizeExternalID trims s and reports whether anything is left.
func NormalizeExternalID(s string) (ExternalID, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", false
	}
	return ExternalID(t), true
}

// Key returns the case-folded form used for set and index membership.
func (e ExternalID) Key() string {
	return strings.ToLower(string(e))
}

func (e ExternalID) String() string { return string(e) }

// IDSet is a case-insensitive set of external ids. The first spelling seen
// for a key is kept.
type IDSet struct {
	m map[string]ExternalID
}

// NewIDSet returns a set holding ids.
func NewIDSet(ids ...ExternalID) *IDSet {
	s := &IDSet{m: make(map[string]ExternalID, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id; duplicates collapse silently.
func (s *IDSet) Add(id ExternalID) {
	if _, ok := s.m[id.Key()]; !ok {
		s.m[id.Key()] = id
	}
}

// Contains reports membership ignoring case.
func (s *IDSet) Contains(id ExternalID) bool {
	_, ok := s.m[id.Key()]
	return ok
}

// Len returns the number of distinct ids.
func (s *IDSet) Len() int { return len(s.m) }

// RemoteRecord pairs an external id with the target system's own id.
type RemoteRecord struct {
	ExternalID ExternalID
	RemoteID   string
}

// RemoteIndex maps external id to remote id for one record type.
// It is read-only once BuildRemoteIndex returns.
type RemoteIndex struct {
	entries    map[string]RemoteRecord
	pages      int
	duplicates []ExternalID
}

func newRemoteIndex() *RemoteIndex {
	return &RemoteIndex{entries: make(map[string]RemoteRecord)}
}

// put stores rec; a later page overwrites an earlier one.
func (ix *RemoteIndex) put(rec RemoteRecord) {
	key := rec.ExternalID.Key()
	if _, ok := ix.entries[key]; ok {
		ix.duplicates = append(ix.duplicates, rec.ExternalID)
	}
	ix.entries[key] = rec
}

// Len returns the number of indexed external ids.
func (ix *RemoteIndex) Len() int { return len(ix.entries) }

// Pages returns how many pages were fetched to build the index.
func (ix *RemoteIndex) Pages() int { return ix.pages }

// Duplicates returns external ids that appeared more than once.
func (ix *RemoteIndex) Duplicates() []ExternalID {
	out := make([]ExternalID, len(ix.duplicates))
	copy(out, ix.duplicates)
	return out
}

// Lookup returns the remote record for id.
func (ix *RemoteIndex) Lookup(id ExternalID) (RemoteRecord, bool) {
	rec, ok := ix.entries[id.Key()]
	return rec, ok
}

// Records returns all entries ordered by folded external id.
func (ix *RemoteIndex) Records() []RemoteRecord {
	out := make([]RemoteRecord, 0, len(ix.entries))
	for _, rec := range ix.entries {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExternalID.Key() < out[j].ExternalID.Key()
	})
	return out
}

// SourceRecord is a source row with its validated external id.
type SourceRecord struct {
	ExternalID ExternalID
	Row        source.Row
}

// OutcomeKind classifies one upsert attempt.
type OutcomeKind int

const (
	OutcomeFailed OutcomeKind = iota
	OutcomeCreated
	OutcomeUpdatedNoContent
	OutcomeUpdatedWithBody
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdatedNoContent:
		return "updated"
	case OutcomeUpdatedWithBody:
		return "updated_with_body"
	}
	return "failed"
}

// MutationOutcome is the result of one upsert attempt.
type MutationOutcome struct {
	Kind       OutcomeKind
	ExternalID ExternalID
	RemoteID   string // set for OutcomeCreated when the target returned it
	StatusCode int    // 0 when no response was received
	Body       []byte
	Err        error
}

// Failed reports whether the attempt failed.
func (o MutationOutcome) Failed() bool { return o.Kind == OutcomeFailed }

// State is a reconciliation pass state.
type State string

const (
	StateIdle           State = "idle"
	StateExtracting     State = "extracting"
	StateIndexingRemote State = "indexing_remote"
	StatePlanning       State = "planning"
	StateDeleting       State = "deleting"
	StateUpserting      State = "upserting"
	StateReporting      State = "reporting"
	StateAborted        State = "aborted"
)

// Status is the terminal status of a pass.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
)

// Diagnostic records one per-record failure for operator triage.
type Diagnostic struct {
	ExternalID string `json:"external_id" yaml:"external_id"`
	Operation  string `json:"operation" yaml:"operation"`
	Message    string `json:"message" yaml:"message"`
	StatusCode int    `json:"status_code,omitempty" yaml:"status_code,omitempty"`
	Row        string `json:"row,omitempty" yaml:"row,omitempty"`
}

// RunSummary is the immutable report of one pass.
type RunSummary struct {
	RunID      string        `json:"run_id" yaml:"run_id"`
	RecordType string        `json:"record_type" yaml:"record_type"`
	Status     Status        `json:"status" yaml:"status"`
	DryRun     bool          `json:"dry_run,omitempty" yaml:"dry_run,omitempty"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time     `json:"finished_at" yaml:"finished_at"`
	Duration   time.Duration `json:"duration" yaml:"duration"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`

	SourceRows             int `json:"source_rows" yaml:"source_rows"`
	SkippedRows            int `json:"skipped_rows" yaml:"skipped_rows"`
	TotalSourceExternalIDs int `json:"total_source_external_ids" yaml:"total_source_external_ids"`

	RemoteIndexSize     int `json:"remote_index_size" yaml:"remote_index_size"`
	IndexPages          int `json:"index_pages" yaml:"index_pages"`
	DuplicateRemoteKeys int `json:"duplicate_remote_keys" yaml:"duplicate_remote_keys"`

	DeleteSet    int `json:"delete_set" yaml:"delete_set"`
	Deleted      int `json:"deleted" yaml:"deleted"`
	DeleteErrors int `json:"delete_errors" yaml:"delete_errors"`

	InsertedOrUpdatedAttempted int `json:"upserts_attempted" yaml:"upserts_attempted"`
	Created                    int `json:"created" yaml:"created"`
	Updated                    int `json:"updated" yaml:"updated"`
	UpsertErrors               int `json:"upsert_errors" yaml:"upsert_errors"`

	Errored     int          `json:"errored" yaml:"errored"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// PassError marks a fatal-to-pass failure and the state it happened in.
type PassError struct {
	RecordType string
	State      State
	Err        error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("%s: pass aborted while %s: %s", e.RecordType, e.State, e.Err)
}

func (e *PassError) Unwrap() error {
	return e.Err
}
