package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bianoble/sfsync/internal/mapping"
	"github.com/bianoble/sfsync/internal/salesforce"
	"github.com/bianoble/sfsync/internal/source"
)

const testExtField = "Ext__c"

// fakeTarget is an in-memory target org keyed by folded external id.
type fakeTarget struct {
	mu sync.Mutex

	// pages, when set, replaces the index query with a fixed page chain.
	pages   []*salesforce.Page
	pageErr map[int]error

	byExt      map[string]string
	upsertFail map[string]bool
	deleteFail map[string]bool

	queries    int
	queryMores int
	deletes    []string
	upserts    []string
	payloads   map[string]map[string]any
	nextID     int
}

func newFakeTarget(existing map[string]string) *fakeTarget {
	f := &fakeTarget{
		byExt:      make(map[string]string),
		upsertFail: make(map[string]bool),
		deleteFail: make(map[string]bool),
		pageErr:    make(map[int]error),
		payloads:   make(map[string]map[string]any),
	}
	for ext, id := range existing {
		f.byExt[strings.ToLower(ext)] = id
	}
	return f
}

// chain builds a page chain; page i points at "/page/i+1".
func chain(pages ...[]map[string]any) []*salesforce.Page {
	out := make([]*salesforce.Page, len(pages))
	for i, recs := range pages {
		p := &salesforce.Page{Records: recs, Done: i == len(pages)-1}
		if i < len(pages)-1 {
			p.NextRecordsURL = fmt.Sprintf("/page/%d", i+2)
		}
		out[i] = p
	}
	return out
}

func rec(id, ext string) map[string]any {
	return map[string]any{"Id": id, testExtField: ext}
}

func (f *fakeTarget) Query(ctx context.Context, cred *salesforce.Credential, soql string) (*salesforce.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if err := f.pageErr[1]; err != nil {
		return nil, err
	}
	if f.pages != nil {
		return f.pages[0], nil
	}
	p := &salesforce.Page{Done: true}
	for ext, id := range f.byExt {
		p.Records = append(p.Records, rec(id, ext))
	}
	return p, nil
}

func (f *fakeTarget) QueryMore(ctx context.Context, cred *salesforce.Credential, next string) (*salesforce.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryMores++
	var n int
	if _, err := fmt.Sscanf(next, "/page/%d", &n); err != nil || n < 1 || n > len(f.pages) {
		return nil, fmt.Errorf("unknown continuation %q", next)
	}
	if err := f.pageErr[n]; err != nil {
		return nil, err
	}
	return f.pages[n-1], nil
}

func (f *fakeTarget) Delete(ctx context.Context, cred *salesforce.Credential, object, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	if f.deleteFail[id] {
		return &salesforce.APIError{Method: http.MethodDelete, StatusCode: http.StatusNotFound, Body: "ENTITY_IS_DELETED"}
	}
	for ext, rid := range f.byExt {
		if rid == id {
			delete(f.byExt, ext)
		}
	}
	return nil
}

func (f *fakeTarget) Upsert(ctx context.Context, cred *salesforce.Credential, object, field, externalID string, payload map[string]any) (*salesforce.UpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, externalID)
	key := strings.ToLower(externalID)
	f.payloads[key] = payload

	if f.upsertFail[key] {
		body := `[{"errorCode":"REQUIRED_FIELD_MISSING"}]`
		return &salesforce.UpsertResult{StatusCode: http.StatusBadRequest, Body: []byte(body)},
			&salesforce.APIError{Method: http.MethodPatch, StatusCode: http.StatusBadRequest, Body: body}
	}
	if _, ok := f.byExt[key]; ok {
		return &salesforce.UpsertResult{StatusCode: http.StatusNoContent}, nil
	}
	f.nextID++
	id := fmt.Sprintf("new%d", f.nextID)
	f.byExt[key] = id
	return &salesforce.UpsertResult{StatusCode: http.StatusCreated, ID: id, Body: []byte(`{"id":"` + id + `","success":true,"created":true}`)}, nil
}

func (f *fakeTarget) mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deletes) + len(f.upserts)
}

type fakeQuerier struct {
	rows  []source.Row
	err   error
	calls int
}

func (q *fakeQuerier) ExecuteQuery(ctx context.Context, query string) ([]source.Row, error) {
	q.calls++
	return q.rows, q.err
}

func sourceRows(ids ...any) []source.Row {
	rows := make([]source.Row, len(ids))
	for i, id := range ids {
		rows[i] = source.NewRow([]string{"GroupNum", "Name"}, []any{id, fmt.Sprintf("name-%v", id)})
	}
	return rows
}

type fakeCreds struct {
	err error
}

func (c fakeCreds) Token(ctx context.Context) (*salesforce.Credential, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &salesforce.Credential{AccessToken: "tok"}, nil
}

type recordingSink struct {
	summaries []*RunSummary
}

func (s *recordingSink) Record(ctx context.Context, sum *RunSummary) {
	s.summaries = append(s.summaries, sum)
}

func testRecordType(t *testing.T) RecordType {
	t.Helper()
	tbl, err := mapping.Compile([]mapping.Field{
		{Target: "Name", Source: "Name"},
		{Target: "CA_NumeroGrupo__c", Source: "GroupNum"},
	})
	require.NoError(t, err)
	return RecordType{
		Name:            "payment-terms",
		Object:          "CA_CondicaoPagamento__c",
		ExternalIDField: testExtField,
		Query:           `SELECT "GroupNum", "Name" FROM "OCTG"`,
		KeyColumn:       "GroupNum",
		Mapping:         tbl,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errBoom = errors.New("boom")
