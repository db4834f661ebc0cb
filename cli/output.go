package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"

	"github.com/gigapi/gigapi-lakehouse/core"
)

const nullValue = "NULL"

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeTable renders rows under header. nil cells print as NULL.
func writeTable(w io.Writer, header []string, rows [][]any) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	// Don't uppercase the header values.
	t.Style().Format.Header = text.FormatDefault

	hdr := make(table.Row, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	t.AppendHeader(hdr)
	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			r[i] = cell(v)
		}
		t.AppendRow(r)
	}
	t.Render()
}

func cell(v any) any {
	switch x := v.(type) {
	case nil:
		return nullValue
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case []any, map[string]any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return v
	}
}

// writeResult prints a query result in column order followed by a row count.
func writeResult(w io.Writer, res *core.Result) {
	rows := make([][]any, len(res.Rows))
	for i, rec := range res.Rows {
		row := make([]any, len(res.Columns))
		for j, c := range res.Columns {
			row[j] = rec[c]
		}
		rows[i] = row
	}
	writeTable(w, res.Columns, rows)
	fmt.Fprintf(w, "(%d rows)\n", res.RowCount())
}

// writeRecord prints a single record as field/value pairs.
func writeRecord(w io.Writer, columns []string, rec core.Record) {
	rows := make([][]any, len(columns))
	for i, c := range columns {
		rows[i] = []any{c, rec[c]}
	}
	writeTable(w, []string{"field", "value"}, rows)
}
