package cli

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/gigapi/gigapi-lakehouse/ingest"
)

func newIngestCmd(a *app) *cobra.Command {
	var req ingest.Request
	cmd := &cobra.Command{
		Use:   "ingest PATH",
		Short: "Route Parquet files to tables and write them",
		Long: `Classify each Parquet file under PATH by its lakehouse_table (or table_name)
footer metadata, falling back to the table file patterns, then copy routed
files into the table's data directory. Unresolved files are reported and skipped.`,
		Example: `  lakehouse ingest data/ --dry-run
  lakehouse ingest data/events_2024.parquet --mode overwrite`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			req.Path = args[0]
			router := ingest.NewRouter(a.cfg, store, afero.NewOsFs())
			report, err := router.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			var failed error
			if report.Failed > 0 {
				failed = fmt.Errorf("%d of %d files failed", report.Failed, len(report.Tasks))
			}
			if a.jsonOut {
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if failed != nil {
					return &shownError{failed}
				}
				return nil
			}
			writeReport(cmd, report)
			return failed
		},
	}
	cmd.Flags().StringVar(&req.Table, "table", "", "Route every file to this table")
	cmd.Flags().StringVar(&req.Mode, "mode", "append", "Write mode: append or overwrite")
	cmd.Flags().BoolVar(&req.DryRun, "dry-run", false, "Only report the routing decisions")
	return cmd
}

func writeReport(cmd *cobra.Command, r *ingest.Report) {
	out := cmd.OutOrStdout()
	rows := make([][]any, len(r.Tasks))
	for i, t := range r.Tasks {
		detail := t.Destination
		if t.Error != "" {
			detail = t.Error
		}
		rows[i] = []any{t.Source, t.Table, string(t.Method), string(t.State), detail}
	}
	writeTable(out, []string{"source", "table", "method", "state", "destination"}, rows)
	if r.DryRun {
		fmt.Fprintf(out, "dry run (%s): %d routed, %d unresolved\n", r.Mode, r.Routed, r.Unresolved)
		return
	}
	fmt.Fprintf(out, "%s: %d written, %d unresolved, %d failed\n", r.Mode, r.Written, r.Unresolved, r.Failed)
}
