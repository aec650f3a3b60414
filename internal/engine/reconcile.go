package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bianoble/sfsync/internal/mapping"
	"github.com/bianoble/sfsync/internal/salesforce"
	"github.com/bianoble/sfsync/internal/source"
)

// RecordType describes one ERP table mirrored into one target object.
type RecordType struct {
	Name            string
	Object          string
	ExternalIDField string
	Query           string
	KeyColumn       string
	Mapping         *mapping.Table
	MaxPages        int
}

func (rt RecordType) validate() error {
	var missing []string
	if rt.Object == "" {
		missing = append(missing, "object")
	}
	if rt.ExternalIDField == "" {
		missing = append(missing, "external id field")
	}
	if rt.Query == "" {
		missing = append(missing, "source query")
	}
	if rt.KeyColumn == "" {
		missing = append(missing, "key column")
	}
	if rt.Mapping == nil {
		missing = append(missing, "mapping")
	}
	if len(missing) > 0 {
		return fmt.Errorf("record type %q is incomplete: missing %v", rt.Name, missing)
	}
	return nil
}

// RunOptions configures a pass.
type RunOptions struct {
	// DryRun stops after planning; no mutation is issued.
	DryRun bool
}

// Reconciler runs reconciliation passes. Collaborators are injected; the
// reconciler keeps no state between passes.
type Reconciler struct {
	Credentials CredentialProvider
	Source      source.Querier
	Target      TargetClient
	Sinks       []SummarySink
	Logger      *slog.Logger

	// OnTransition, when set, observes every state change.
	OnTransition func(recordType string, from, to State)

	now   func() time.Time
	newID func() string
}

// pass carries the per-run state machine.
type pass struct {
	r     *Reconciler
	rt    RecordType
	state State
	log   *slog.Logger
}

func (p *pass) enter(next State) {
	if p.r.OnTransition != nil {
		p.r.OnTransition(p.rt.Name, p.state, next)
	}
	p.log.Debug("state", "from", string(p.state), "to", string(next))
	p.state = next
}

func (p *pass) abort(err error) *PassError {
	pe := &PassError{RecordType: p.rt.Name, State: p.state, Err: err}
	p.enter(StateAborted)
	return pe
}

// Run executes one pass for rt: Extract → Build Index → Plan → Delete →
// Upsert → Report. Only credential, extraction or index failures (and
// cancellation) abort the pass; those are returned as *PassError along
// with the aborted summary.
func (r *Reconciler) Run(ctx context.Context, rt RecordType, opts RunOptions) (*RunSummary, error) {
	now := r.clock()
	runID := r.runID()
	log := r.logger().With("run_id", runID, "record_type", rt.Name)

	p := &pass{r: r, rt: rt, state: StateIdle, log: log}
	rep := NewReporter(runID, rt.Name, now(), opts.DryRun)

	finish := func(status Status, err error) *RunSummary {
		s := rep.Finish(status, err, now())
		for _, sink := range r.Sinks {
			sink.Record(ctx, s)
		}
		if p.state != StateAborted {
			p.enter(StateIdle)
		}
		return s
	}
	fail := func(err error) (*RunSummary, error) {
		pe := p.abort(err)
		log.Error("pass aborted", "state", string(pe.State), "error", err)
		return finish(StatusAborted, err), pe
	}

	if err := rt.validate(); err != nil {
		return fail(err)
	}

	cred, err := r.Credentials.Token(ctx)
	if err != nil {
		return fail(err)
	}

	p.enter(StateExtracting)
	ext, err := Extract(ctx, r.Source, rt.Query, rt.KeyColumn)
	if err != nil {
		return fail(fmt.Errorf("extracting source rows: %w", err))
	}
	for _, row := range ext.Invalid {
		log.Info("source row skipped: empty external id", "key_column", rt.KeyColumn, "row", rowJSON(SourceRecord{Row: row}))
	}
	rep.Extracted(ext)

	p.enter(StateIndexingRemote)
	ix, err := BuildRemoteIndex(ctx, r.Target, cred, IndexQuery{
		Object:          rt.Object,
		ExternalIDField: rt.ExternalIDField,
		MaxPages:        rt.MaxPages,
	})
	if err != nil {
		r.invalidateOnUnauthorized(err)
		return fail(fmt.Errorf("building remote index: %w", err))
	}
	for _, dup := range ix.Duplicates() {
		log.Warn("duplicate external id in remote index, later page wins", "external_id", dup.String())
	}
	rep.Indexed(ix)

	p.enter(StatePlanning)
	deletes := PlanDeletes(ix, ext.IDs)
	rep.Planned(deletes)
	log.Info("plan ready",
		"source_ids", ext.IDs.Len(),
		"remote_ids", ix.Len(),
		"deletes", len(deletes),
		"upserts", len(ext.Records))

	if opts.DryRun {
		p.enter(StateReporting)
		return finish(StatusCompleted, nil), nil
	}

	x := &Executor{
		Client:          r.Target,
		Object:          rt.Object,
		ExternalIDField: rt.ExternalIDField,
		Mapping:         rt.Mapping,
		Logger:          log,
	}

	p.enter(StateDeleting)
	for _, rec := range deletes {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		rep.Deleted(rec, x.Delete(ctx, cred, rec))
	}

	p.enter(StateUpserting)
	for _, rec := range ext.Records {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		rep.Upserted(rec, x.Upsert(ctx, cred, rec))
	}

	p.enter(StateReporting)
	return finish(StatusCompleted, nil), nil
}

// RunAll runs one pass per record type in order. A fatal error in one record
// type does not prevent the others from running; all fatal errors are joined.
func (r *Reconciler) RunAll(ctx context.Context, types []RecordType, opts RunOptions) ([]*RunSummary, error) {
	summaries := make([]*RunSummary, 0, len(types))
	var errs []error
	for _, rt := range types {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		s, err := r.Run(ctx, rt, opts)
		summaries = append(summaries, s)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return summaries, errors.Join(errs...)
}

// invalidateOnUnauthorized drops a cached token the target rejected so the
// next pass fetches a fresh one.
func (r *Reconciler) invalidateOnUnauthorized(err error) {
	var apiErr *salesforce.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return
	}
	if inv, ok := r.Credentials.(interface{ Invalidate() }); ok {
		inv.Invalidate()
	}
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Reconciler) clock() func() time.Time {
	if r.now != nil {
		return r.now
	}
	return time.Now
}

func (r *Reconciler) runID() string {
	if r.newID != nil {
		return r.newID()
	}
	return uuid.NewString()
}
