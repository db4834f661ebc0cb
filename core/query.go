package core

import (
	"context"
)

// Record is a single result row keyed by column name.
type Record map[string]any

// Result is an ordered set of rows with their column order.
type Result struct {
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

// RowCount returns the number of rows in the result.
func (r *Result) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Filters maps field names to equality values. All entries are ANDed.
type Filters map[string]any

// Order is an ORDER BY on a single field.
type Order struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// QueryClient defines the interface for querying lakehouse tables
type QueryClient interface {
	// Query executes caller-supplied SQL verbatim
	Query(ctx context.Context, sql string) (*Result, error)

	// GetByID fetches one record by primary key; the bool is false when absent
	GetByID(ctx context.Context, table string, id any) (Record, bool, error)

	Search(ctx context.Context, table string, filters Filters, limit int, order *Order) (*Result, error)

	ListRecent(ctx context.Context, table string, limit int) (*Result, error)

	Count(ctx context.Context, table string, filters Filters) (int64, error)

	// ResolveTablePath returns the Parquet glob read for a table
	ResolveTablePath(ctx context.Context, table string) (string, error)

	// Initialize sets up the query client
	Initialize(ctx context.Context) error

	// Close releases resources
	Close() error
}
