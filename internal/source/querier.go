// Package source reads the authoritative record set from the ERP database.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Querier executes one query against the source and returns every row.
type Querier interface {
	ExecuteQuery(ctx context.Context, query string) ([]Row, error)
}

// SupportedDrivers lists the database/sql drivers compiled into the binary.
var SupportedDrivers = []string{"mysql", "sqlite3"}

// SQLQuerier implements Querier over a database/sql connection pool.
type SQLQuerier struct {
	db      *sql.DB
	timeout time.Duration
}

// Open connects to the source database and verifies the connection.
func Open(ctx context.Context, driver, dsn string, timeout time.Duration) (*SQLQuerier, error) {
	if !isSupported(driver) {
		return nil, fmt.Errorf("unsupported source driver '%s' — supported drivers: %v", driver, SupportedDrivers)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s source: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s source: %w", driver, err)
	}
	return NewSQLQuerier(db, timeout), nil
}

// NewSQLQuerier wraps an existing pool. A zero timeout means the caller's
// context is the only deadline.
func NewSQLQuerier(db *sql.DB, timeout time.Duration) *SQLQuerier {
	return &SQLQuerier{db: db, timeout: timeout}
}

// ExecuteQuery runs query and materializes the full result set.
func (q *SQLQuerier) ExecuteQuery(ctx context.Context, query string) ([]Row, error) {
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("executing source query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading source columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning source row %d: %w", len(out)+1, err)
		}
		out = append(out, NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating source rows: %w", err)
	}
	return out, nil
}

// Close releases the connection pool.
func (q *SQLQuerier) Close() error {
	return q.db.Close()
}

func isSupported(driver string) bool {
	for _, d := range SupportedDrivers {
		if d == driver {
			return true
		}
	}
	return false
}
