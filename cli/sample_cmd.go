package cli

import (
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/spf13/cobra"

	"github.com/gigapi/gigapi-lakehouse/sample"
)

func newGenerateSampleCmd(a *app) *cobra.Command {
	var (
		output string
		opts   sample.Options
	)
	cmd := &cobra.Command{
		Use:   "generate-sample",
		Short: "Write sample records and events Parquet files",
		Long: `Write records.parquet and events.parquet with data matching the table
schemas. Load them with: lakehouse ingest <output>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := sql.Open("duckdb", "")
			if err != nil {
				return fmt.Errorf("failed to initialize DuckDB: %w", err)
			}
			defer db.Close()

			files, err := sample.Generate(cmd.Context(), db, output, opts)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), files)
			}
			rows := make([][]any, len(files))
			for i, f := range files {
				rows[i] = []any{f.Table, f.Path, f.Rows}
			}
			writeTable(cmd.OutOrStdout(), []string{"table", "path", "rows"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "data", "Output directory")
	cmd.Flags().IntVar(&opts.Records, "records", sample.DefaultRecords, "Number of records")
	cmd.Flags().IntVar(&opts.Events, "events", sample.DefaultEvents, "Number of events")
	return cmd
}
