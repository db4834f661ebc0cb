// Package sample writes example records and events Parquet files that the
// ingest router can classify by their footer metadata or file name.
package sample

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gigapi/gigapi-lakehouse/core"
	"github.com/gigapi/gigapi-lakehouse/sqlbuild"
)

const (
	DefaultRecords = 100
	DefaultEvents  = 200
)

type Options struct {
	Records int
	Events  int
	// Now anchors generated timestamps; zero means time.Now().
	Now time.Time
}

// File is one generated Parquet file.
type File struct {
	Table string `json:"table"`
	Path  string `json:"path"`
	Rows  int    `json:"rows"`
}

// records mirrors the records table: a row per day ending at now.
const recordsQuery = `SELECT
	printf('rec-%%04d', i) AS id,
	['A', 'B', 'C', 'D'][i %% 4 + 1] AS category,
	%[1]s - to_days(CAST(%[2]d - i AS INTEGER)) AS created_at,
	%[1]s - to_days(CAST(%[2]d - i AS INTEGER)) AS updated_at,
	'Sample Record ' || i AS name,
	'This is sample record number ' || i || ' for category ' || ['A', 'B', 'C', 'D'][i %% 4 + 1] AS description,
	CAST(i * 3.14 AS DOUBLE) AS value,
	['tag-' || (i %% 5), 'category-' || lower(['A', 'B', 'C', 'D'][i %% 4 + 1])] AS tags,
	{'key1': 'value-' || i, 'key2': CAST(i * 100 AS BIGINT)} AS attributes,
	'sample_batch_' || (i // 10) || '.csv' AS source_file,
	%[1]s AS ingestion_time
FROM range(0, %[2]d) t(i)`

// events link back to the first 100 records, one per hour ending at now.
const eventsQuery = `SELECT
	printf('evt-%%05d', i) AS id,
	printf('rec-%%04d', i %% 100) AS record_id,
	['A', 'B', 'C', 'D'][i %% 4 + 1] AS category,
	%[1]s - to_hours(CAST(%[2]d - i AS INTEGER)) AS event_time,
	['created', 'updated', 'processed', 'archived'][i %% 4 + 1] AS event_type,
	printf('{"user": "user-%%d", "status": "%%s", "duration_ms": %%d}',
		i %% 10, CASE WHEN i %% 7 = 0 THEN 'failed' ELSE 'success' END, i * 10 + 50) AS event_data
FROM range(0, %[2]d) t(i)`

// Generate writes records.parquet and events.parquet into dir, zstd
// compressed, each tagged with its table in the lakehouse_table footer key.
// A count of zero skips that table.
func Generate(ctx context.Context, db *sql.DB, dir string, opts Options) ([]File, error) {
	if opts.Records < 0 || opts.Events < 0 {
		return nil, core.ErrValidation("row counts must be >= 0")
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	ts, err := sqlbuild.Literal(now)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var files []File
	for _, gen := range []struct {
		table string
		rows  int
		query string
	}{
		{"records", opts.Records, recordsQuery},
		{"events", opts.Events, eventsQuery},
	} {
		if gen.rows == 0 {
			continue
		}
		path := filepath.Join(dir, gen.table+".parquet")
		stmt := fmt.Sprintf("COPY (%s) TO %s (FORMAT PARQUET, COMPRESSION ZSTD, KV_METADATA {lakehouse_table: %s})",
			fmt.Sprintf(gen.query, ts, gen.rows), sqlbuild.QuoteLiteral(path), sqlbuild.QuoteLiteral(gen.table))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		core.Infof(ctx, "Wrote %d rows to %s", gen.rows, path)
		files = append(files, File{Table: gen.table, Path: path, Rows: gen.rows})
	}
	return files, nil
}
