package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gigapi/gigapi-lakehouse/core"
)

func newListTablesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list-tables",
		Short: "List available tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := a.queryClient()
			if err != nil {
				return err
			}
			tables := q.ListTables()
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), tables)
			}
			rows := make([][]any, len(tables))
			for i, t := range tables {
				rows[i] = []any{t.Name, t.Description, t.PrimaryKey, t.Columns}
			}
			writeTable(cmd.OutOrStdout(), []string{"table", "description", "primary key", "columns"}, rows)
			return nil
		},
	}
}

func newGetSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get-schema TABLE",
		Short: "Show a table's columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.queryClient()
			if err != nil {
				return err
			}
			t, err := q.GetSchema(args[0])
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), t)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", t.Name, t.Description)
			rows := make([][]any, len(t.Fields))
			for i, f := range t.Fields {
				rows[i] = []any{f.Name, f.TypeName(), f.Nullable, f.Comment}
			}
			writeTable(out, []string{"column", "type", "nullable", "comment"}, rows)
			fmt.Fprintf(out, "primary key: %s, recency: %s\n", t.PrimaryKey, t.RecencyField)
			return nil
		},
	}
}

func newQueryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query SQL",
		Short: "Execute a SQL query",
		Long: `Execute SQL verbatim against DuckDB. Read a table with
read_parquet('<path>/data/**/*.parquet'); see list-tables and config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.queryClient()
			if err != nil {
				return err
			}
			res, err := q.Query(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printResult(cmd, res)
		},
	}
}

func newGetRecordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get-record TABLE ID",
		Short: "Fetch a record by primary key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.queryClient()
			if err != nil {
				return err
			}
			rec, found, err := q.GetByID(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.jsonOut {
				return printJSON(out, map[string]any{"found": found, "record": rec})
			}
			if !found {
				fmt.Fprintf(out, "Record %s not found in %s\n", args[1], args[0])
				return nil
			}
			t, err := q.GetSchema(args[0])
			if err != nil {
				return err
			}
			writeRecord(out, t.FieldNames(), rec)
			return nil
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		filters []string
		limit   int
		orderBy string
		desc    bool
	)
	cmd := &cobra.Command{
		Use:   "search TABLE",
		Short: "Search a table with equality filters",
		Example: `  lakehouse search records -f category=A --limit 10
  lakehouse search events -f event_type=created --order event_time --desc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilters(filters)
			if err != nil {
				return err
			}
			var order *core.Order
			if orderBy != "" {
				order = &core.Order{Field: orderBy, Desc: desc}
			}
			q, err := a.queryClient()
			if err != nil {
				return err
			}
			res, err := q.Search(cmd.Context(), args[0], f, limit, order)
			if err != nil {
				return err
			}
			return a.printResult(cmd, res)
		},
	}
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Filter as field=value (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum rows")
	cmd.Flags().StringVar(&orderBy, "order", "", "Field to order by")
	cmd.Flags().BoolVar(&desc, "desc", false, "Order descending")
	return cmd
}

func newListRecentCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list-recent TABLE",
		Short: "List the newest records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.queryClient()
			if err != nil {
				return err
			}
			res, err := q.ListRecent(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return a.printResult(cmd, res)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum rows")
	return cmd
}

func newCountCmd(a *app) *cobra.Command {
	var filters []string
	cmd := &cobra.Command{
		Use:   "count TABLE",
		Short: "Count records, optionally filtered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilters(filters)
			if err != nil {
				return err
			}
			q, err := a.queryClient()
			if err != nil {
				return err
			}
			n, err := q.Count(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{"table": args[0], "count": n})
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Filter as field=value (repeatable)")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the connection configuration (secrets hidden)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d := a.cfg.Describe()
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), d)
			}
			writeTable(cmd.OutOrStdout(), []string{"setting", "value"}, [][]any{
				{"namespace", d.Namespace},
				{"warehouse", d.Warehouse},
				{"s3_endpoint", d.Endpoint},
				{"s3_region", d.Region},
			})
			return nil
		},
	}
}

func (a *app) printResult(cmd *cobra.Command, res *core.Result) error {
	if a.jsonOut {
		return printJSON(cmd.OutOrStdout(), res)
	}
	writeResult(cmd.OutOrStdout(), res)
	return nil
}

// parseFilters turns field=value pairs into filters. Values stay strings;
// the table schema converts them to the column type.
func parseFilters(pairs []string) (core.Filters, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	f := make(core.Filters, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, core.ErrValidation("invalid filter %q, expected field=value", p)
		}
		f[k] = v
	}
	return f, nil
}
