package sample

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigapi/gigapi-lakehouse/core"
	"github.com/gigapi/gigapi-lakehouse/ingest"
	"github.com/gigapi/gigapi-lakehouse/schema"
	"github.com/gigapi/gigapi-lakehouse/sqlbuild"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("DuckDB-backed test")
	}
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGenerate(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "out")
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	files, err := Generate(ctx, db, dir, Options{Records: DefaultRecords, Events: DefaultEvents, Now: now})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, File{Table: "records", Path: filepath.Join(dir, "records.parquet"), Rows: 100}, files[0])
	assert.Equal(t, File{Table: "events", Path: filepath.Join(dir, "events.parquet"), Rows: 200}, files[1])

	reg := schema.Default()
	meta := &ingest.MetadataStrategy{Fs: afero.NewOsFs()}
	for _, f := range files {
		t.Run(f.Table, func(t *testing.T) {
			table, ok, err := meta.Resolve(ctx, f.Path, reg)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, f.Table, table)

			var n int64
			require.NoError(t, db.QueryRowContext(ctx,
				fmt.Sprintf("SELECT COUNT(*) FROM %s", sqlbuild.ReadParquet(f.Path))).Scan(&n))
			assert.Equal(t, int64(f.Rows), n)

			// every registered column is present
			desc, err := reg.Lookup(f.Table)
			require.NoError(t, err)
			rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", sqlbuild.ReadParquet(f.Path)))
			require.NoError(t, err)
			cols, err := rows.Columns()
			require.NoError(t, err)
			rows.Close()
			assert.Equal(t, desc.FieldNames(), cols)
		})
	}

	var id, category string
	var created time.Time
	require.NoError(t, db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT id, category, created_at FROM %s ORDER BY id DESC LIMIT 1",
		sqlbuild.ReadParquet(files[0].Path))).Scan(&id, &category, &created))
	assert.Equal(t, "rec-0099", id)
	assert.Equal(t, "D", category)
	assert.Equal(t, now.Add(-24*time.Hour), created.UTC())
}

func TestGenerateOptions(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	files, err := Generate(ctx, db, t.TempDir(), Options{Records: 5})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "records", files[0].Table)

	_, err = Generate(ctx, db, t.TempDir(), Options{Records: -1})
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}
