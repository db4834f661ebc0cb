package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gigapi/gigapi-lakehouse/config"
	"github.com/gigapi/gigapi-lakehouse/core"
	"github.com/gigapi/gigapi-lakehouse/ingest"
	"github.com/gigapi/gigapi-lakehouse/schema"
)

// ErrUnknownTool is returned for a tool name Definitions does not list.
var ErrUnknownTool = errors.New("unknown tool")

// QueryOutput is the query tool's result.
type QueryOutput struct {
	Columns   []string      `json:"columns"`
	Rows      []core.Record `json:"rows"`
	RowCount  int           `json:"row_count"`
	Truncated bool          `json:"truncated"`
}

type RecordOutput struct {
	Table  string      `json:"table"`
	Found  bool        `json:"found"`
	Record core.Record `json:"record,omitempty"`
}

type CountOutput struct {
	Table string `json:"table"`
	Count int64  `json:"count"`
}

type TablesOutput struct {
	Tables []schema.Summary `json:"tables"`
}

// SchemaOutput is a table summary plus its columns.
type SchemaOutput struct {
	schema.Summary
	RecencyField  string         `json:"recency_field"`
	PartitionKeys []string       `json:"partition_keys,omitempty"`
	Fields        []schema.Field `json:"fields"`
}

// Dispatcher runs tool calls against a backend.
type Dispatcher struct {
	Backend  Backend
	Ingester Ingester
	Settings config.Settings
	MaxRows  int
}

// NewDispatcher creates a dispatcher; ing may be nil to disable the ingest tools.
func NewDispatcher(b Backend, ing Ingester, settings config.Settings) *Dispatcher {
	return &Dispatcher{Backend: b, Ingester: ing, Settings: settings, MaxRows: DefaultMaxRows}
}

type queryArgs struct {
	SQL string `json:"sql"`
}

type recordArgs struct {
	Table string `json:"table"`
	ID    any    `json:"id"`
}

type searchArgs struct {
	Table      string       `json:"table"`
	Filters    core.Filters `json:"filters"`
	Limit      *int         `json:"limit"`
	OrderBy    string       `json:"order_by"`
	Descending bool         `json:"descending"`
}

type tableArgs struct {
	Table   string       `json:"table"`
	Filters core.Filters `json:"filters"`
	Limit   *int         `json:"limit"`
}

// Call runs the named tool. args is the tool's JSON input; empty means {}.
func (d *Dispatcher) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	core.Debugf(ctx, "Tool call %s", name)
	switch name {
	case "query":
		var a queryArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		res, err := d.Backend.Query(ctx, a.SQL)
		if err != nil {
			return nil, err
		}
		return d.capped(res), nil

	case "get_record":
		var a recordArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		rec, found, err := d.Backend.GetByID(ctx, a.Table, a.ID)
		if err != nil {
			return nil, err
		}
		return &RecordOutput{Table: a.Table, Found: found, Record: rec}, nil

	case "search":
		var a searchArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		var order *core.Order
		if a.OrderBy != "" {
			order = &core.Order{Field: a.OrderBy, Desc: a.Descending}
		}
		res, err := d.Backend.Search(ctx, a.Table, a.Filters, intOr(a.Limit, 100), order)
		if err != nil {
			return nil, err
		}
		return d.capped(res), nil

	case "list_recent":
		var a tableArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		res, err := d.Backend.ListRecent(ctx, a.Table, intOr(a.Limit, 10))
		if err != nil {
			return nil, err
		}
		return d.capped(res), nil

	case "count":
		var a tableArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		n, err := d.Backend.Count(ctx, a.Table, a.Filters)
		if err != nil {
			return nil, err
		}
		return &CountOutput{Table: a.Table, Count: n}, nil

	case "list_tables":
		return &TablesOutput{Tables: d.Backend.ListTables()}, nil

	case "get_schema":
		var a tableArgs
		if err := decode(args, &a); err != nil {
			return nil, err
		}
		t, err := d.Backend.GetSchema(a.Table)
		if err != nil {
			return nil, err
		}
		return &SchemaOutput{
			Summary:       t.Summary(d.Settings.Namespace),
			RecencyField:  t.RecencyField,
			PartitionKeys: t.PartitionKeys,
			Fields:        t.Fields,
		}, nil

	case "get_config":
		return d.Settings.Describe(), nil

	case "route_files", "ingest_files":
		if d.Ingester == nil {
			return nil, core.ErrValidation("ingestion is not enabled on this server")
		}
		var req ingest.Request
		if err := decode(args, &req); err != nil {
			return nil, err
		}
		req.DryRun = name == "route_files"
		report, err := d.Ingester.Run(ctx, req)
		if err != nil {
			return nil, err
		}
		return report, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

// capped trims a result to MaxRows and flags the truncation.
func (d *Dispatcher) capped(res *core.Result) *QueryOutput {
	out := &QueryOutput{Columns: res.Columns, Rows: res.Rows, RowCount: res.RowCount()}
	if out.Rows == nil {
		out.Rows = []core.Record{}
	}
	if d.MaxRows > 0 && len(out.Rows) > d.MaxRows {
		out.Rows = out.Rows[:d.MaxRows]
		out.RowCount = d.MaxRows
		out.Truncated = true
	}
	return out
}

func decode(args json.RawMessage, v any) error {
	if len(bytes.TrimSpace(args)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.ErrValidation("invalid tool input: %v", err)
	}
	return nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
