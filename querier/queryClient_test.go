package querier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigapi/gigapi-lakehouse/config"
	"github.com/gigapi/gigapi-lakehouse/core"
	"github.com/gigapi/gigapi-lakehouse/storage"
)

func s3Client() *QueryClient {
	return NewQueryClient(&config.Config{Settings: config.Settings{
		Endpoint:  "http://localhost:9000",
		Region:    "us-east-1",
		Warehouse: "s3a://lake/wh",
		Namespace: "ns",
	}}, nil)
}

func TestBuildSelect(t *testing.T) {
	const src = "read_parquet('s3://lake/wh/ns/records/data/**/*.parquet', union_by_name=true, hive_partitioning=false)"
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		projection string
		filters    core.Filters
		order      *core.Order
		limit      int
		want       string
	}{
		{
			name:  "no filters",
			limit: 10,
			want:  "SELECT * FROM " + src + " LIMIT 10",
		},
		{
			name:    "filters sorted and typed",
			filters: core.Filters{"value": "2.5", "category": "A", "created_at": ts},
			limit:   5,
			want: "SELECT * FROM " + src +
				` WHERE "category" = 'A' AND "created_at" = TIMESTAMP '2024-03-01 12:00:00' AND "value" = CAST(2.5 AS DOUBLE) LIMIT 5`,
		},
		{
			name:    "quotes are escaped",
			filters: core.Filters{"name": "O'Brien"},
			limit:   0,
			want:    "SELECT * FROM " + src + ` WHERE "name" = 'O''Brien' LIMIT 0`,
		},
		{
			name:    "null filter",
			filters: core.Filters{"category": nil},
			order:   &core.Order{Field: "created_at", Desc: true},
			limit:   3,
			want:    "SELECT * FROM " + src + ` WHERE "category" IS NULL ORDER BY "created_at" DESC LIMIT 3`,
		},
		{
			name:       "count",
			projection: "COUNT(*) AS count",
			filters:    core.Filters{"category": "B"},
			limit:      -1,
			want:       "SELECT COUNT(*) AS count FROM " + src + ` WHERE "category" = 'B'`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := s3Client()
			desc, err := q.Registry.Lookup("records")
			require.NoError(t, err)
			got, err := q.buildSelect(context.Background(), "search", desc, tt.projection, tt.filters, tt.order, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	q := s3Client()
	var verr *core.ValidationError
	var unknown *core.UnknownTableError

	_, err := q.Search(ctx, "records", nil, -1, nil)
	assert.ErrorAs(t, err, &verr)

	_, err = q.Search(ctx, "records", core.Filters{"nope": 1}, 10, nil)
	assert.ErrorAs(t, err, &verr)

	_, err = q.Search(ctx, "records", nil, 10, &core.Order{Field: "nope"})
	assert.ErrorAs(t, err, &verr)

	_, err = q.Search(ctx, "records", core.Filters{"tags": "a"}, 10, nil)
	assert.ErrorAs(t, err, &verr)

	_, err = q.Count(ctx, "records", core.Filters{"value": "abc"})
	assert.ErrorAs(t, err, &verr)

	_, _, err = q.GetByID(ctx, "records", nil)
	assert.ErrorAs(t, err, &verr)

	_, err = q.Query(ctx, "")
	assert.ErrorAs(t, err, &verr)

	_, err = q.ListRecent(ctx, "orders", 10)
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"events", "records"}, unknown.Available)

	_, err = q.GetSchema("orders")
	assert.ErrorAs(t, err, &unknown)
	assert.ErrorAs(t, q.SetTablePath("orders", "/x"), &unknown)
}

func TestResolveTablePath(t *testing.T) {
	ctx := context.Background()
	q := s3Client()

	got, err := q.ResolveTablePath(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, "s3://lake/wh/ns/events/data/**/*.parquet", got)

	require.NoError(t, q.SetTablePath("events", "s3a://other/events_1a2b3c/"))
	got, err = q.ResolveTablePath(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, "s3://other/events_1a2b3c/data/**/*.parquet", got)

	require.NoError(t, q.SetTablePath("records", "/tmp/records/*.parquet"))
	got, err = q.ResolveTablePath(ctx, "records")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/records/*.parquet", got)
}

func TestListTables(t *testing.T) {
	tables := s3Client().ListTables()
	require.Len(t, tables, 2)
	assert.Equal(t, "records", tables[0].Name)
	assert.Equal(t, "ns", tables[0].Namespace)
	assert.Equal(t, "1.0.0", tables[0].SchemaVersion)
}

// localClient returns a client over a temporary warehouse holding a few
// records written by DuckDB itself.
func localClient(t *testing.T) *QueryClient {
	t.Helper()
	if testing.Short() {
		t.Skip("DuckDB-backed test")
	}
	wh := t.TempDir()
	q := NewQueryClient(&config.Config{
		Settings:     config.Settings{Warehouse: wh, Namespace: "ns"},
		QueryTimeout: 30 * time.Second,
	}, nil)
	t.Cleanup(func() { q.Close() })

	ctx := context.Background()
	for i, part := range []string{"data", filepath.Join("data", "category=B")} {
		dir := filepath.Join(wh, "ns", "records", part)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		_, err := q.Query(ctx, fmt.Sprintf(`COPY (
			SELECT printf('rec-%%04d', n) AS id,
				CASE WHEN n %% 2 = 0 THEN 'A' ELSE 'B' END AS category,
				TIMESTAMP '2024-01-01 00:00:00' + to_hours(n) AS created_at,
				CAST(n * 1.5 AS DOUBLE) AS value,
				['t' || n] AS tags
			FROM range(%d, %d) r(n)
		) TO '%s' (FORMAT PARQUET)`, i*5, i*5+5, filepath.Join(dir, "part.parquet")))
		require.NoError(t, err)
	}
	return q
}

func TestQueryClientDuckDB(t *testing.T) {
	q := localClient(t)
	ctx := context.Background()

	rec, found, err := q.GetByID(ctx, "records", "rec-0007")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "B", rec["category"])
	assert.Equal(t, 10.5, rec["value"])
	assert.Equal(t, []any{"t7"}, rec["tags"])

	_, found, err = q.GetByID(ctx, "records", "rec-9999")
	require.NoError(t, err)
	assert.False(t, found)

	n, err := q.Count(ctx, "records", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	n, err = q.Count(ctx, "records", core.Filters{"category": "A"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	res, err := q.Search(ctx, "records", core.Filters{"category": "A"}, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, int(n), res.RowCount())
	for _, row := range res.Rows {
		assert.Equal(t, "A", row["category"])
	}

	res, err = q.Search(ctx, "records", core.Filters{"category": "B"}, 2, &core.Order{Field: "id"})
	require.NoError(t, err)
	require.Equal(t, 2, res.RowCount())
	assert.Equal(t, "rec-0001", res.Rows[0]["id"])
	assert.Equal(t, "rec-0003", res.Rows[1]["id"])
	assert.Contains(t, res.Columns, "created_at")

	res, err = q.Search(ctx, "records", nil, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.RowCount())

	res, err = q.ListRecent(ctx, "records", 3)
	require.NoError(t, err)
	require.Equal(t, 3, res.RowCount())
	assert.Equal(t, "rec-0009", res.Rows[0]["id"])
	assert.IsType(t, time.Time{}, res.Rows[0]["created_at"])

	// numbers given for string fields compare as text
	_, found, err = q.GetByID(ctx, "records", float64(5))
	require.NoError(t, err)
	assert.False(t, found)
	n, err = q.Count(ctx, "records", core.Filters{"category": 1.0})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	// a table without data files is empty
	res, err = q.Search(ctx, "events", nil, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.RowCount())
	n, err = q.Count(ctx, "events", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	var qerr *core.QueryExecutionError
	_, err = q.Query(ctx, "SELEC 1")
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, "SELEC 1", qerr.SQL)
}

func TestQueryClientTimeout(t *testing.T) {
	q := localClient(t)
	require.NoError(t, q.Initialize(context.Background()))
	q.Timeout = time.Nanosecond

	_, err := q.Count(context.Background(), "records", nil)
	var terr *core.RemoteTimeoutError
	assert.ErrorAs(t, err, &terr)
}

// stallingStore blocks every listing until the caller's context ends.
type stallingStore struct {
	storage.Store
}

func (stallingStore) ListDirs(ctx context.Context, _ string) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestQueryClientTimeoutCoversCatalog(t *testing.T) {
	q := NewQueryClient(&config.Config{
		Settings:     config.Settings{Warehouse: t.TempDir(), Namespace: "ns"},
		QueryTimeout: 50 * time.Millisecond,
	}, stallingStore{})
	t.Cleanup(func() { q.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	calls := map[string]func() error{
		"count": func() error {
			_, err := q.Count(ctx, "records", nil)
			return err
		},
		"search": func() error {
			_, err := q.Search(ctx, "records", nil, 10, nil)
			return err
		},
		"get_record": func() error {
			_, _, err := q.GetByID(ctx, "events", "evt-1")
			return err
		},
		"resolve_table_path": func() error {
			_, err := q.ResolveTablePath(ctx, "events")
			return err
		},
	}
	for op, call := range calls {
		t.Run(op, func(t *testing.T) {
			start := time.Now()
			err := call()
			assert.Less(t, time.Since(start), 2*time.Second)
			var terr *core.RemoteTimeoutError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, op, terr.Op)
			assert.Equal(t, "timeout", core.ErrorKind(err))
		})
	}
	require.NoError(t, ctx.Err())
}
