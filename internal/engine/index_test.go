package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bianoble/sfsync/internal/salesforce"
)

var testQuery = IndexQuery{Object: "Obj__c", ExternalIDField: testExtField}

func TestIndexQuery_SOQL(t *testing.T) {
	assert.Equal(t,
		"SELECT Id, CA_IdExterno__c FROM CA_CondicaoPagamento__c WHERE CA_IdExterno__c != null",
		IndexQuery{Object: "CA_CondicaoPagamento__c", ExternalIDField: "CA_IdExterno__c"}.SOQL())
}

func TestBuildRemoteIndex_UnionAcrossPagesLastWins(t *testing.T) {
	f := newFakeTarget(nil)
	f.pages = chain(
		[]map[string]any{rec("r1", "A"), rec("r2", "B")},
		[]map[string]any{rec("r3", "C"), rec("r2b", "b")},
		[]map[string]any{rec("r4", "D"), rec("r1b", "A")},
	)

	ix, err := BuildRemoteIndex(context.Background(), f, &salesforce.Credential{}, testQuery)
	require.NoError(t, err)

	assert.Equal(t, 4, ix.Len())
	assert.Equal(t, 3, ix.Pages())

	got, ok := ix.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "r1b", got.RemoteID, "later page wins")

	got, ok = ix.Lookup("B")
	require.True(t, ok)
	assert.Equal(t, "r2b", got.RemoteID, "duplicates compare case-insensitively")

	assert.ElementsMatch(t, []ExternalID{"b", "A"}, ix.Duplicates())
}

func TestBuildRemoteIndex_SkipsInvalidRows(t *testing.T) {
	f := newFakeTarget(nil)
	f.pages = chain([]map[string]any{
		rec("r1", "A"),
		rec("", "B"),
		rec("r3", "   "),
		{"Id": "r4"},
		{"Id": "r5", testExtField: nil},
	})

	ix, err := BuildRemoteIndex(context.Background(), f, &salesforce.Credential{}, testQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len())
}

func TestBuildRemoteIndex_TwoPagesTwoFetches(t *testing.T) {
	f := newFakeTarget(nil)
	f.pages = chain(
		[]map[string]any{rec("r1", "A")},
		[]map[string]any{rec("r2", "B")},
	)

	_, err := BuildRemoteIndex(context.Background(), f, &salesforce.Credential{}, testQuery)
	require.NoError(t, err)
	assert.Equal(t, 1, f.queries)
	assert.Equal(t, 1, f.queryMores)
}

func TestBuildRemoteIndex_PageFailureIsFatal(t *testing.T) {
	f := newFakeTarget(nil)
	f.pages = chain(
		[]map[string]any{rec("r1", "A")},
		[]map[string]any{rec("r2", "B")},
		[]map[string]any{rec("r3", "C")},
	)
	f.pageErr[2] = errBoom

	ix, err := BuildRemoteIndex(context.Background(), f, &salesforce.Credential{}, testQuery)
	require.Error(t, err)
	assert.Nil(t, ix, "a partial index must never be returned")
	assert.True(t, errors.Is(err, errBoom))
	assert.Contains(t, err.Error(), "page 2")
}

func TestBuildRemoteIndex_LoopGuard(t *testing.T) {
	f := newFakeTarget(nil)
	f.pages = chain(
		[]map[string]any{rec("r1", "A")},
		[]map[string]any{rec("r2", "B")},
		[]map[string]any{rec("r3", "C")},
	)
	f.pages[2].NextRecordsURL = "/page/2"

	_, err := BuildRemoteIndex(context.Background(), f, &salesforce.Credential{}, testQuery)
	require.ErrorIs(t, err, ErrPaginationLoop)
	assert.Equal(t, 2, f.queryMores)
}

func TestBuildRemoteIndex_PageCeiling(t *testing.T) {
	f := newFakeTarget(nil)
	f.pages = chain(
		[]map[string]any{rec("r1", "A")},
		[]map[string]any{rec("r2", "B")},
		[]map[string]any{rec("r3", "C")},
	)

	q := testQuery
	q.MaxPages = 2
	_, err := BuildRemoteIndex(context.Background(), f, &salesforce.Credential{}, q)
	require.ErrorIs(t, err, ErrTooManyPages)
	assert.Equal(t, 1, f.queryMores)
}

func TestBuildRemoteIndex_Cancelled(t *testing.T) {
	f := newFakeTarget(nil)
	f.pages = chain(
		[]map[string]any{rec("r1", "A")},
		[]map[string]any{rec("r2", "B")},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildRemoteIndex(ctx, f, &salesforce.Credential{}, testQuery)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.queryMores)
}

func TestRemoteIndex_RecordsSorted(t *testing.T) {
	ix := newRemoteIndex()
	ix.put(RemoteRecord{ExternalID: "c", RemoteID: "3"})
	ix.put(RemoteRecord{ExternalID: "A", RemoteID: "1"})
	ix.put(RemoteRecord{ExternalID: "b", RemoteID: "2"})

	var got []string
	for _, r := range ix.Records() {
		got = append(got, r.RemoteID)
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
}
