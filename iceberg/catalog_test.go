package iceberg

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gigapi/gigapi-lakehouse/storage"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func put(t *testing.T, s storage.Store, loc, body string) {
	t.Helper()
	require.NoError(t, s.Put(context.Background(), loc, strings.NewReader(body)))
}

func TestLocate(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFS(afero.NewMemMapFs())
	cat := NewCatalog(store, "/wh")

	// exact directory without metadata
	put(t, store, "/wh/ns/events/data/a.parquet", "x")
	// catalog-assigned directories with metadata pointing elsewhere
	put(t, store, "/wh/ns/records_0f1e2d3c4b5a69788796a5b4c3d2e1f0/metadata/00001-aaa.metadata.json",
		`{"format-version":2,"table-uuid":"old","location":"s3a://lake/wh/ns/records_old","last-updated-ms":100}`)
	put(t, store, "/wh/ns/records_5a6b1c2d-0000-4000-8000-123456789abc/metadata/00001-bbb.metadata.json",
		`{"format-version":2,"table-uuid":"stale","location":"/wh/ns/records_stale","last-updated-ms":50}`)
	put(t, store, "/wh/ns/records_5a6b1c2d-0000-4000-8000-123456789abc/metadata/00002-ccc.metadata.json",
		`{"format-version":2,"table-uuid":"new","location":"/wh/ns/records_new/","last-updated-ms":200}`)
	// a different table sharing the prefix
	put(t, store, "/wh/ns/records_archive/data/b.parquet", "x")

	loc, err := cat.Locate(ctx, "ns", "records")
	require.NoError(t, err)
	assert.Equal(t, "/wh/ns/records_new", loc.Path)
	assert.Equal(t, "new", loc.TableUUID)
	assert.Equal(t, "metadata", loc.Source)

	loc, err = cat.Locate(ctx, "ns", "events")
	require.NoError(t, err)
	assert.Equal(t, "/wh/ns/events", loc.Path)
	assert.Equal(t, "directory", loc.Source)

	_, err = cat.Locate(ctx, "ns", "orders")
	assert.True(t, errors.Is(err, ErrTableNotFound))

	_, err = cat.Locate(ctx, "ns", "../etc")
	assert.Error(t, err)
}

func TestLocateExactBeatsSuffixed(t *testing.T) {
	ctx := context.Background()
	store := storage.NewFS(afero.NewMemMapFs())
	put(t, store, "/wh/ns/records/data/a.parquet", "x")
	put(t, store, "/wh/ns/records_5a6b1c2d/metadata/v3.metadata.json", `{"location":"/elsewhere","last-updated-ms":999}`)

	loc, err := NewCatalog(store, "/wh").Locate(ctx, "ns", "records")
	require.NoError(t, err)
	assert.Equal(t, "/wh/ns/records", loc.Path)
}

func TestLatestMetadataFile(t *testing.T) {
	got, ok := latestMetadataFile([]string{
		"/t/metadata/v2.metadata.json",
		"/t/metadata/v10.metadata.json",
		"/t/metadata/snap-1.avro",
		"/t/metadata/version-hint.text",
	})
	require.True(t, ok)
	assert.Equal(t, "/t/metadata/v10.metadata.json", got)

	_, ok = latestMetadataFile([]string{"/t/metadata/snap-1.avro"})
	assert.False(t, ok)
}

func TestNormalizeLocation(t *testing.T) {
	assert.Equal(t, "s3://lake/wh/t", normalizeLocation("s3a://lake/wh/t/"))
	assert.Equal(t, "/data/t", normalizeLocation("file:///data/t"))
}
