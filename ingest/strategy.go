package ingest

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/apache/arrow/go/v14/parquet/file"
	"github.com/spf13/afero"

	"github.com/gigapi/gigapi-lakehouse/schema"
)

// Strategy proposes a table for a file. ok is false when the strategy has no
// opinion; an error means the file could not be inspected.
type Strategy interface {
	Method() Method
	Resolve(ctx context.Context, path string, reg *schema.Registry) (table string, ok bool, err error)
}

// MetadataKeys are the footer key/value entries checked, in order.
var MetadataKeys = []string{"lakehouse_table", "table_name"}

// MetadataStrategy reads the table name from Parquet footer key/value metadata.
type MetadataStrategy struct {
	Fs   afero.Fs
	Keys []string
}

func (m *MetadataStrategy) Method() Method { return MethodMetadata }

func (m *MetadataStrategy) Resolve(ctx context.Context, path string, reg *schema.Registry) (string, bool, error) {
	f, err := m.Fs.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	rdr, err := file.NewParquetReader(f)
	if err != nil {
		return "", false, fmt.Errorf("read parquet footer: %w", err)
	}
	defer rdr.Close()

	kv := rdr.MetaData().KeyValueMetadata()
	keys := m.Keys
	if len(keys) == 0 {
		keys = MetadataKeys
	}
	for _, k := range keys {
		v := kv.FindValue(k)
		if v == nil || *v == "" {
			continue
		}
		// A name outside the registry is treated as absent.
		if reg.Has(*v) {
			return *v, true, nil
		}
		return "", false, nil
	}
	return "", false, nil
}

// PatternStrategy matches the file's base name against each table's
// FilePattern in registry order.
type PatternStrategy struct{}

func (PatternStrategy) Method() Method { return MethodPattern }

func (PatternStrategy) Resolve(_ context.Context, path string, reg *schema.Registry) (string, bool, error) {
	base := filepath.Base(path)
	for _, t := range reg.Tables() {
		if t.MatchesFile(base) {
			return t.Name, true, nil
		}
	}
	return "", false, nil
}

// DefaultStrategies returns metadata inspection followed by filename matching.
func DefaultStrategies(fs afero.Fs) []Strategy {
	return []Strategy{
		&MetadataStrategy{Fs: fs, Keys: MetadataKeys},
		PatternStrategy{},
	}
}
