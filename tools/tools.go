// Package tools exposes the query and ingest operations as named tools with
// JSON input schemas, for assistants that call functions by name.
package tools

import (
	"context"

	"github.com/gigapi/gigapi-lakehouse/core"
	"github.com/gigapi/gigapi-lakehouse/ingest"
	"github.com/gigapi/gigapi-lakehouse/schema"
)

// DefaultMaxRows caps rows returned by the query tool.
const DefaultMaxRows = 1000

// Backend is the read side the tools call into.
type Backend interface {
	Query(ctx context.Context, sql string) (*core.Result, error)
	GetByID(ctx context.Context, table string, id any) (core.Record, bool, error)
	Search(ctx context.Context, table string, filters core.Filters, limit int, order *core.Order) (*core.Result, error)
	ListRecent(ctx context.Context, table string, limit int) (*core.Result, error)
	Count(ctx context.Context, table string, filters core.Filters) (int64, error)
	ListTables() []schema.Summary
	GetSchema(table string) (*schema.Table, error)
}

// Ingester routes and writes files.
type Ingester interface {
	Run(ctx context.Context, req ingest.Request) (*ingest.Report, error)
}

// Definition describes one tool.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

func object(required []string, props map[string]any) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

var tableProp = prop("string", "Table name (see list_tables)")

// Definitions returns every tool in a stable order.
func Definitions() []Definition {
	filters := map[string]any{
		"type":                 "object",
		"description":          "Field equality filters, combined with AND",
		"additionalProperties": true,
	}
	ingestProps := map[string]any{
		"path":  prop("string", "Parquet file or directory scanned recursively"),
		"table": prop("string", "Route every file to this table"),
		"mode":  map[string]any{"type": "string", "enum": []string{"append", "overwrite"}},
	}
	return []Definition{
		{
			Name:        "query",
			Description: "Execute a SQL query against the lakehouse. Results are capped at 1000 rows.",
			InputSchema: object([]string{"sql"}, map[string]any{
				"sql": prop("string", "SQL query; read tables with read_parquet"),
			}),
		},
		{
			Name:        "get_record",
			Description: "Fetch a single record by primary key.",
			InputSchema: object([]string{"table", "id"}, map[string]any{
				"table": tableProp,
				"id":    map[string]any{"description": "Primary key value"},
			}),
		},
		{
			Name:        "search",
			Description: "Search records with equality filters.",
			InputSchema: object([]string{"table"}, map[string]any{
				"table":      tableProp,
				"filters":    filters,
				"limit":      map[string]any{"type": "integer", "minimum": 0, "default": 100},
				"order_by":   prop("string", "Field to order by"),
				"descending": prop("boolean", "Order descending"),
			}),
		},
		{
			Name:        "list_recent",
			Description: "List the most recent records by the table's timestamp field.",
			InputSchema: object([]string{"table"}, map[string]any{
				"table": tableProp,
				"limit": map[string]any{"type": "integer", "minimum": 0, "default": 10},
			}),
		},
		{
			Name:        "count",
			Description: "Count records matching optional filters.",
			InputSchema: object([]string{"table"}, map[string]any{
				"table":   tableProp,
				"filters": filters,
			}),
		},
		{
			Name:        "list_tables",
			Description: "List available tables with their descriptions.",
			InputSchema: object(nil, map[string]any{}),
		},
		{
			Name:        "get_schema",
			Description: "Get the column definitions of a table.",
			InputSchema: object([]string{"table"}, map[string]any{"table": tableProp}),
		},
		{
			Name:        "get_config",
			Description: "Show the connection configuration without secrets.",
			InputSchema: object(nil, map[string]any{}),
		},
		{
			Name:        "route_files",
			Description: "Classify Parquet files into tables without writing anything.",
			InputSchema: object([]string{"path"}, ingestProps),
		},
		{
			Name:        "ingest_files",
			Description: "Route Parquet files into tables and write them.",
			InputSchema: object([]string{"path"}, ingestProps),
		},
	}
}
