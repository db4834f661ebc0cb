package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigapi/gigapi-lakehouse/config"
	"github.com/gigapi/gigapi-lakehouse/core"
	"github.com/gigapi/gigapi-lakehouse/ingest"
	"github.com/gigapi/gigapi-lakehouse/schema"
)

type call struct {
	op      string
	table   string
	filters core.Filters
	limit   int
	order   *core.Order
	id      any
}

type fakeBackend struct {
	reg   *schema.Registry
	rows  int
	calls []call
}

func (f *fakeBackend) result() *core.Result {
	res := &core.Result{Columns: []string{"id"}}
	for i := 0; i < f.rows; i++ {
		res.Rows = append(res.Rows, core.Record{"id": fmt.Sprintf("rec-%04d", i)})
	}
	return res
}

func (f *fakeBackend) Query(_ context.Context, sql string) (*core.Result, error) {
	f.calls = append(f.calls, call{op: "query"})
	if sql == "" {
		return nil, core.ErrValidation("query must not be empty")
	}
	return f.result(), nil
}

func (f *fakeBackend) GetByID(_ context.Context, table string, id any) (core.Record, bool, error) {
	f.calls = append(f.calls, call{op: "get", table: table, id: id})
	if _, err := f.reg.Lookup(table); err != nil {
		return nil, false, err
	}
	if id == "rec-0001" {
		return core.Record{"id": id}, true, nil
	}
	return nil, false, nil
}

func (f *fakeBackend) Search(_ context.Context, table string, filters core.Filters, limit int, order *core.Order) (*core.Result, error) {
	f.calls = append(f.calls, call{op: "search", table: table, filters: filters, limit: limit, order: order})
	return f.result(), nil
}

func (f *fakeBackend) ListRecent(_ context.Context, table string, limit int) (*core.Result, error) {
	f.calls = append(f.calls, call{op: "recent", table: table, limit: limit})
	return f.result(), nil
}

func (f *fakeBackend) Count(_ context.Context, table string, filters core.Filters) (int64, error) {
	f.calls = append(f.calls, call{op: "count", table: table, filters: filters})
	return int64(f.rows), nil
}

func (f *fakeBackend) ListTables() []schema.Summary {
	var out []schema.Summary
	for _, t := range f.reg.Tables() {
		out = append(out, t.Summary("ns"))
	}
	return out
}

func (f *fakeBackend) GetSchema(table string) (*schema.Table, error) {
	return f.reg.Lookup(table)
}

type fakeIngester struct {
	got ingest.Request
}

func (f *fakeIngester) Run(_ context.Context, req ingest.Request) (*ingest.Report, error) {
	f.got = req
	return &ingest.Report{DryRun: req.DryRun, Mode: ingest.Append}, nil
}

func newDispatcher(rows int) (*Dispatcher, *fakeBackend, *fakeIngester) {
	b := &fakeBackend{reg: schema.Default(), rows: rows}
	ing := &fakeIngester{}
	settings := config.Settings{Endpoint: "http://minio:9000", SecretKey: "hunter2", Region: "us-east-1", Namespace: "ns"}
	return NewDispatcher(b, ing, settings), b, ing
}

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
		assert.Equal(t, "object", d.InputSchema["type"], d.Name)
		assert.NotEmpty(t, d.Description, d.Name)
	}
	assert.Equal(t, []string{
		"query", "get_record", "search", "list_recent", "count",
		"list_tables", "get_schema", "get_config", "route_files", "ingest_files",
	}, names)

	// every definition is dispatchable
	d, _, _ := newDispatcher(1)
	for _, name := range names {
		_, err := d.Call(context.Background(), name, json.RawMessage(`{}`))
		assert.NotErrorIs(t, err, ErrUnknownTool, name)
	}
}

func TestCallQueryTruncates(t *testing.T) {
	tests := []struct {
		name      string
		rows      int
		max       int
		wantRows  int
		truncated bool
	}{
		{"under cap", 3, 1000, 3, false},
		{"over cap", 1005, 1000, 1000, true},
		{"empty", 0, 1000, 0, false},
		{"no cap", 1005, 0, 1005, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, _ := newDispatcher(tt.rows)
			d.MaxRows = tt.max
			out, err := d.Call(context.Background(), "query", json.RawMessage(`{"sql":"SELECT 1"}`))
			require.NoError(t, err)
			q := out.(*QueryOutput)
			assert.Len(t, q.Rows, tt.wantRows)
			assert.Equal(t, tt.wantRows, q.RowCount)
			assert.Equal(t, tt.truncated, q.Truncated)
			assert.NotNil(t, q.Rows)
		})
	}
}

func TestCallArguments(t *testing.T) {
	ctx := context.Background()
	d, b, ing := newDispatcher(2)

	_, err := d.Call(ctx, "search", json.RawMessage(`{"table":"records","filters":{"category":"A","score":3},"order_by":"created_at","descending":true}`))
	require.NoError(t, err)
	_, err = d.Call(ctx, "search", json.RawMessage(`{"table":"records","limit":0}`))
	require.NoError(t, err)
	_, err = d.Call(ctx, "list_recent", json.RawMessage(`{"table":"events"}`))
	require.NoError(t, err)
	out, err := d.Call(ctx, "count", json.RawMessage(`{"table":"events","filters":{"event_type":"click"}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.(*CountOutput).Count)

	require.Len(t, b.calls, 4)
	assert.Equal(t, call{op: "search", table: "records", filters: core.Filters{"category": "A", "score": 3.0}, limit: 100,
		order: &core.Order{Field: "created_at", Desc: true}}, b.calls[0])
	assert.Equal(t, 0, b.calls[1].limit)
	assert.Equal(t, call{op: "recent", table: "events", limit: 10}, b.calls[2])
	assert.Equal(t, core.Filters{"event_type": "click"}, b.calls[3].filters)

	out, err = d.Call(ctx, "get_record", json.RawMessage(`{"table":"records","id":"rec-0001"}`))
	require.NoError(t, err)
	assert.True(t, out.(*RecordOutput).Found)
	out, err = d.Call(ctx, "get_record", json.RawMessage(`{"table":"records","id":"nope"}`))
	require.NoError(t, err)
	assert.False(t, out.(*RecordOutput).Found)

	_, err = d.Call(ctx, "route_files", json.RawMessage(`{"path":"/in","mode":"overwrite","dry_run":false}`))
	require.NoError(t, err)
	assert.Equal(t, ingest.Request{Path: "/in", Mode: "overwrite", DryRun: true}, ing.got)
	_, err = d.Call(ctx, "ingest_files", json.RawMessage(`{"path":"/in","table":"events"}`))
	require.NoError(t, err)
	assert.Equal(t, ingest.Request{Path: "/in", Table: "events"}, ing.got)
}

func TestCallErrors(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newDispatcher(1)

	_, err := d.Call(ctx, "drop_table", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)

	var verr *core.ValidationError
	_, err = d.Call(ctx, "search", json.RawMessage(`{"table":"records","bogus":1}`))
	assert.ErrorAs(t, err, &verr)
	_, err = d.Call(ctx, "query", json.RawMessage(`{"sql":`))
	assert.ErrorAs(t, err, &verr)

	var unknown *core.UnknownTableError
	_, err = d.Call(ctx, "get_schema", json.RawMessage(`{"table":"orders"}`))
	assert.ErrorAs(t, err, &unknown)

	d.Ingester = nil
	_, err = d.Call(ctx, "ingest_files", json.RawMessage(`{"path":"/in"}`))
	assert.ErrorAs(t, err, &verr)
}

func TestCallSchemaAndConfig(t *testing.T) {
	ctx := context.Background()
	d, _, _ := newDispatcher(0)

	out, err := d.Call(ctx, "get_schema", json.RawMessage(`{"table":"records"}`))
	require.NoError(t, err)
	s := out.(*SchemaOutput)
	assert.Equal(t, "records", s.Name)
	assert.Equal(t, schema.SchemaVersion, s.SchemaVersion)
	assert.Equal(t, "created_at", s.RecencyField)
	assert.Len(t, s.Fields, s.Columns)

	raw, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name":"records"`)
	assert.Contains(t, string(raw), `"type":"timestamp"`)

	out, err = d.Call(ctx, "get_config", nil)
	require.NoError(t, err)
	raw, err = json.Marshal(out)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")
	assert.Contains(t, string(raw), "minio:9000")

	out, err = d.Call(ctx, "list_tables", nil)
	require.NoError(t, err)
	assert.Len(t, out.(*TablesOutput).Tables, 2)
}
