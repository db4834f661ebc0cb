package iceberg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gigapi/gigapi-lakehouse/core"
	"github.com/gigapi/gigapi-lakehouse/storage"
)

// DataGlob is appended to a table root to reach its Parquet files.
const DataGlob = "data/**/*.parquet"

// Resolver maps table names to storage roots: explicit override, then cache,
// then catalog lookup, then <warehouse>/<namespace>/<table>.
type Resolver struct {
	Catalog   *Catalog
	Warehouse string
	Namespace string

	mu        sync.RWMutex
	overrides map[string]string
	cache     map[string]string
}

func NewResolver(catalog *Catalog, warehouse, namespace string) *Resolver {
	return &Resolver{
		Catalog:   catalog,
		Warehouse: warehouse,
		Namespace: namespace,
		overrides: map[string]string{},
		cache:     map[string]string{},
	}
}

// SetPath pins a table to an explicit location. The location may be a table
// root or a ready-made Parquet glob.
func (r *Resolver) SetPath(table, loc string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[table] = strings.TrimRight(normalizeLocation(loc), "/")
}

// Root returns the table's storage root.
func (r *Resolver) Root(ctx context.Context, table string) (string, error) {
	r.mu.RLock()
	if loc, ok := r.overrides[table]; ok {
		r.mu.RUnlock()
		return loc, nil
	}
	if loc, ok := r.cache[table]; ok {
		r.mu.RUnlock()
		return loc, nil
	}
	r.mu.RUnlock()

	if r.Catalog != nil {
		loc, err := r.Catalog.Locate(ctx, r.Namespace, table)
		switch {
		case err == nil:
			core.Debugf(ctx, "Resolved %s.%s to %s (%s)", r.Namespace, table, loc.Path, loc.Source)
			r.mu.Lock()
			r.cache[table] = loc.Path
			r.mu.Unlock()
			return loc.Path, nil
		case errors.Is(err, ErrTableNotFound):
		case ctx.Err() != nil:
			return "", fmt.Errorf("resolve %s.%s: %w", r.Namespace, table, err)
		default:
			core.Warnf(ctx, "Catalog lookup for %s.%s failed: %v", r.Namespace, table, err)
		}
	}

	fallback := storage.Join(r.Warehouse, r.Namespace, table)
	core.Warnf(ctx, "Table %s.%s not found in catalog, using %s", r.Namespace, table, fallback)
	return fallback, nil
}

// Glob returns the Parquet glob DuckDB reads for the table.
func (r *Resolver) Glob(ctx context.Context, table string) (string, error) {
	loc, err := r.Root(ctx, table)
	if err != nil {
		return "", err
	}
	if IsGlob(loc) {
		return loc, nil
	}
	return loc + "/" + DataGlob, nil
}

// IsGlob reports whether a location names files rather than a table root.
func IsGlob(loc string) bool {
	return strings.ContainsAny(loc, "*?[") || strings.HasSuffix(loc, ".parquet")
}
