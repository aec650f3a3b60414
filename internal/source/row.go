package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Row is one record read from the source database. Column order follows the
// query's select list. A Row is never modified after it is read.
type Row struct {
	columns []string
	values  []any
}

// NewRow builds a Row from parallel column and value slices.
// Byte slices are converted to strings; the inputs are copied.
func NewRow(columns []string, values []any) Row {
	r := Row{
		columns: make([]string, len(columns)),
		values:  make([]any, len(columns)),
	}
	copy(r.columns, columns)
	for i := range columns {
		if i >= len(values) {
			break
		}
		r.values[i] = normalizeValue(values[i])
	}
	return r
}

// Columns returns the column names in select order.
func (r Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Len returns the number of columns.
func (r Row) Len() int { return len(r.columns) }

// Value returns the raw value of a column. Lookup is exact first, then
// case-insensitive. ok is false when the column is absent.
func (r Row) Value(column string) (v any, ok bool) {
	for i, c := range r.columns {
		if c == column {
			return r.values[i], true
		}
	}
	for i, c := range r.columns {
		if strings.EqualFold(c, column) {
			return r.values[i], true
		}
	}
	return nil, false
}

// String returns the column rendered as text. NULL and absent columns
// yield ok == false.
func (r Row) String(column string) (string, bool) {
	v, ok := r.Value(column)
	if !ok || v == nil {
		return "", false
	}
	return FormatValue(v), true
}

// Map returns the row as a plain map keyed by column name.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.columns))
	for i, c := range r.columns {
		m[c] = r.values[i]
	}
	return m
}

// MarshalJSON renders the row as a JSON object preserving column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FormatValue renders a scalar source value as text.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
