// queryClient.go
package querier

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/gigapi/gigapi-lakehouse/config"
	"github.com/gigapi/gigapi-lakehouse/core"
	"github.com/gigapi/gigapi-lakehouse/iceberg"
	"github.com/gigapi/gigapi-lakehouse/schema"
	"github.com/gigapi/gigapi-lakehouse/sqlbuild"
	"github.com/gigapi/gigapi-lakehouse/storage"
)

// Ensure QueryClient implements core.QueryClient interface
var _ core.QueryClient = (*QueryClient)(nil)

// QueryClient turns structured lookups into DuckDB queries over a table's
// Parquet files.
type QueryClient struct {
	Conn     *Connection
	Registry *schema.Registry
	Resolver *iceberg.Resolver
	Settings config.Settings
	// Timeout bounds every operation, including catalog lookups and engine
	// setup; zero means no limit.
	Timeout time.Duration
}

// NewQueryClient creates a new QueryClient. store may be nil, in which case
// table locations are derived from the warehouse layout alone.
func NewQueryClient(cfg *config.Config, store storage.Store) *QueryClient {
	var cat *iceberg.Catalog
	if store != nil {
		cat = iceberg.NewCatalog(store, cfg.WarehouseURI())
	}
	return &QueryClient{
		Conn:     NewConnection(cfg.Settings),
		Registry: schema.Default(),
		Resolver: iceberg.NewResolver(cat, cfg.WarehouseURI(), cfg.Namespace),
		Settings: cfg.Settings,
		Timeout:  cfg.QueryTimeout,
	}
}

// Initialize opens the engine connection eagerly.
func (q *QueryClient) Initialize(ctx context.Context) error {
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	if _, err := q.Conn.Connect(ctx); err != nil {
		return deadline(ctx, "connect", err)
	}
	return nil
}

// Close releases resources
func (q *QueryClient) Close() error {
	return q.Conn.Close()
}

// SetTablePath pins a table to an explicit location.
func (q *QueryClient) SetTablePath(table, loc string) error {
	if _, err := q.Registry.Lookup(table); err != nil {
		return err
	}
	q.Resolver.SetPath(table, loc)
	return nil
}

// ResolveTablePath returns the Parquet glob read for table.
func (q *QueryClient) ResolveTablePath(ctx context.Context, table string) (string, error) {
	if _, err := q.Registry.Lookup(table); err != nil {
		return "", err
	}
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	glob, err := q.Resolver.Glob(ctx, table)
	if err != nil {
		return "", deadline(ctx, "resolve_table_path", err)
	}
	return glob, nil
}

// ListTables lists the registered tables.
func (q *QueryClient) ListTables() []schema.Summary {
	tables := q.Registry.Tables()
	out := make([]schema.Summary, len(tables))
	for i, t := range tables {
		out[i] = t.Summary(q.Settings.Namespace)
	}
	return out
}

// GetSchema returns the descriptor for table.
func (q *QueryClient) GetSchema(table string) (*schema.Table, error) {
	return q.Registry.Lookup(table)
}

// Query executes caller-supplied SQL verbatim.
func (q *QueryClient) Query(ctx context.Context, query string) (*core.Result, error) {
	if query == "" {
		return nil, core.ErrValidation("query must not be empty")
	}
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	return q.run(ctx, "query", query)
}

// GetByID fetches a single record by primary key.
func (q *QueryClient) GetByID(ctx context.Context, table string, id any) (core.Record, bool, error) {
	desc, err := q.Registry.Lookup(table)
	if err != nil {
		return nil, false, err
	}
	if id == nil {
		return nil, false, core.ErrValidation("id is required")
	}
	key, err := desc.CoerceValue(desc.PrimaryKey, id)
	if err != nil {
		return nil, false, err
	}
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	query, err := q.buildSelect(ctx, "get_record", desc, "", core.Filters{desc.PrimaryKey: key}, nil, 1)
	if err != nil {
		return nil, false, err
	}
	res, err := q.run(ctx, "get_record", query)
	if err != nil {
		return nil, false, err
	}
	if res.RowCount() == 0 {
		return nil, false, nil
	}
	return res.Rows[0], true, nil
}

// Search returns rows matching every filter.
func (q *QueryClient) Search(ctx context.Context, table string, filters core.Filters, limit int, order *core.Order) (*core.Result, error) {
	desc, err := q.Registry.Lookup(table)
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, core.ErrValidation("limit must be >= 0, got %d", limit)
	}
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	query, err := q.buildSelect(ctx, "search", desc, "", filters, order, limit)
	if err != nil {
		return nil, err
	}
	return q.run(ctx, "search", query)
}

// ListRecent returns the newest rows by the table's recency field.
func (q *QueryClient) ListRecent(ctx context.Context, table string, limit int) (*core.Result, error) {
	desc, err := q.Registry.Lookup(table)
	if err != nil {
		return nil, err
	}
	return q.Search(ctx, table, nil, limit, &core.Order{Field: desc.RecencyField, Desc: true})
}

// Count returns the number of rows matching every filter.
func (q *QueryClient) Count(ctx context.Context, table string, filters core.Filters) (int64, error) {
	desc, err := q.Registry.Lookup(table)
	if err != nil {
		return 0, err
	}
	ctx, cancel := q.withTimeout(ctx)
	defer cancel()
	query, err := q.buildSelect(ctx, "count", desc, "COUNT(*) AS count", filters, nil, -1)
	if err != nil {
		return 0, err
	}
	res, err := q.run(ctx, "count", query)
	if err != nil {
		return 0, err
	}
	if res.RowCount() == 0 {
		return 0, nil
	}
	return toInt64(res.Rows[0]["count"])
}

// withTimeout derives the context bounding one whole operation.
func (q *QueryClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.Timeout > 0 {
		return context.WithTimeout(ctx, q.Timeout)
	}
	return context.WithCancel(ctx)
}

// buildSelect is the single SELECT path for every structured operation.
func (q *QueryClient) buildSelect(ctx context.Context, op string, desc *schema.Table, projection string,
	filters core.Filters, order *core.Order, limit int) (string, error) {
	coerced := make(map[string]any, len(filters))
	for k, v := range filters {
		cv, err := desc.CoerceValue(k, v)
		if err != nil {
			return "", err
		}
		coerced[k] = cv
	}

	sel := sqlbuild.Select{Projection: projection, Filters: coerced, Limit: limit}
	if order != nil && order.Field != "" {
		if _, ok := desc.Field(order.Field); !ok {
			return "", core.ErrValidation("unknown order field %q for table %s", order.Field, desc.Name)
		}
		sel.OrderBy, sel.OrderDesc = order.Field, order.Desc
	}

	glob, err := q.Resolver.Glob(ctx, desc.Name)
	if err != nil {
		return "", deadline(ctx, op, err)
	}
	sel.Source = sqlbuild.ReadParquet(glob)

	query, err := sel.Build()
	if err != nil {
		return "", core.ErrValidation("%v", err)
	}
	return query, nil
}

func (q *QueryClient) run(ctx context.Context, op, query string) (*core.Result, error) {
	db, err := q.Conn.Connect(ctx)
	if err != nil {
		return nil, deadline(ctx, op, err)
	}

	start := time.Now()
	core.Debugf(ctx, "Executing %s: %s", op, query)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		// A table without data files yet is empty, not broken. Raw SQL
		// still reports the engine error.
		if op != "query" && isNoFilesErr(err) {
			core.Warnf(ctx, "No data files for %s: %v", op, err)
			return &core.Result{Rows: []core.Record{}}, nil
		}
		return nil, classify(ctx, op, query, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, classify(ctx, op, query, err)
	}

	result := &core.Result{Columns: columns, Rows: []core.Record{}}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, classify(ctx, op, query, fmt.Errorf("error scanning row: %w", err))
		}
		row := make(core.Record, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, op, query, err)
	}

	core.Debugf(ctx, "Got %d rows for %s in %v", len(result.Rows), op, time.Since(start))
	return result, nil
}

// classify maps a driver error to the error kinds callers branch on.
func classify(ctx context.Context, op, query string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &core.RemoteTimeoutError{Op: op, Err: err}
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	return &core.QueryExecutionError{SQL: query, Err: err}
}

// deadline turns an expired operation context into a RemoteTimeoutError and
// leaves every other error as is.
func deadline(ctx context.Context, op string, err error) error {
	var terr *core.RemoteTimeoutError
	if errors.As(err, &terr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &core.RemoteTimeoutError{Op: op, Err: err}
	}
	return err
}

func isNoFilesErr(err error) bool {
	return strings.Contains(err.Error(), "No files found that match the pattern")
}

// normalizeValue converts driver-specific values into plain Go types.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = normalizeValue(x[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
