package engine

import (
	"context"
	"fmt"

	"github.com/bianoble/sfsync/internal/source"
)

// Extraction is the authoritative record set for one pass.
type Extraction struct {
	// Records holds every row with a valid external id, in query order.
	Records []SourceRecord
	// Invalid holds rows whose key column was NULL, empty or whitespace.
	Invalid []source.Row
	// IDs is the distinct set of valid external ids.
	IDs *IDSet
}

// Extract runs query once and derives the external id set from keyColumn.
func Extract(ctx context.Context, q source.Querier, query, keyColumn string) (*Extraction, error) {
	rows, err := q.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	ext := &Extraction{
		Records: make([]SourceRecord, 0, len(rows)),
		IDs:     NewIDSet(),
	}
	for i, row := range rows {
		if i == 0 {
			if _, ok := row.Value(keyColumn); !ok {
				return nil, fmt.Errorf("source query has no column %q", keyColumn)
			}
		}
		raw, _ := row.String(keyColumn)
		id, ok := NormalizeExternalID(raw)
		if !ok {
			ext.Invalid = append(ext.Invalid, row)
			continue
		}
		ext.IDs.Add(id)
		ext.Records = append(ext.Records, SourceRecord{ExternalID: id, Row: row})
	}
	return ext, nil
}
