package engine

import (
	"context"
	"fmt"

	"github.com/bianoble/sfsync/internal/salesforce"
	"github.com/bianoble/sfsync/internal/source"
)

// DefaultMaxPages bounds pagination when a record type sets no limit.
const DefaultMaxPages = 10000

// IndexQuery describes which target records make up the remote index.
type IndexQuery struct {
	Object          string
	ExternalIDField string
	// MaxPages caps the number of pages followed. Zero uses DefaultMaxPages.
	MaxPages int
}

// SOQL returns the query selecting every record with an external id.
func (q IndexQuery) SOQL() string {
	return fmt.Sprintf("SELECT Id, %s FROM %s WHERE %s != null", q.ExternalIDField, q.Object, q.ExternalIDField)
}

// BuildRemoteIndex pages through the target query and returns the complete
// external id → remote id map. Any page failure fails the whole build; a
// partial index is never returned.
func BuildRemoteIndex(ctx context.Context, client TargetClient, cred *salesforce.Credential, q IndexQuery) (*RemoteIndex, error) {
	maxPages := q.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	ix := newRemoteIndex()

	page, err := client.Query(ctx, cred, q.SOQL())
	if err != nil {
		return nil, fmt.Errorf("querying %s page 1: %w", q.Object, err)
	}
	ix.pages = 1
	ix.merge(page, q.ExternalIDField)

	seen := make(map[string]bool)
	for page.NextRecordsURL != "" {
		next := page.NextRecordsURL
		if seen[next] {
			return nil, fmt.Errorf("querying %s: %w: %s", q.Object, ErrPaginationLoop, next)
		}
		if ix.pages >= maxPages {
			return nil, fmt.Errorf("querying %s: %w (%d)", q.Object, ErrTooManyPages, maxPages)
		}
		seen[next] = true

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err = client.QueryMore(ctx, cred, next)
		if err != nil {
			return nil, fmt.Errorf("querying %s page %d: %w", q.Object, ix.pages+1, err)
		}
		ix.pages++
		ix.merge(page, q.ExternalIDField)
	}

	return ix, nil
}

func (ix *RemoteIndex) merge(page *salesforce.Page, extField string) {
	for _, rec := range page.Records {
		id := fieldText(rec, "Id")
		ext, ok := NormalizeExternalID(fieldText(rec, extField))
		if !ok || id == "" {
			continue
		}
		ix.put(RemoteRecord{ExternalID: ext, RemoteID: id})
	}
}

func fieldText(rec map[string]any, field string) string {
	v, ok := rec[field]
	if !ok || v == nil {
		return ""
	}
	return source.FormatValue(v)
}
