// Package iceberg locates tables inside an Iceberg-style warehouse by reading
// the directory layout and table metadata files directly from storage.
package iceberg

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gigapi/gigapi-lakehouse/core"
	"github.com/gigapi/gigapi-lakehouse/storage"
)

// ErrTableNotFound is returned when no directory in the namespace belongs to the table.
var ErrTableNotFound = errors.New("table not found in catalog")

// Location is a resolved table root.
type Location struct {
	Table string
	// Path is the table root; data files live under Path/data.
	Path      string
	TableUUID string
	// Source is "metadata" when Path came from a metadata file, "directory" otherwise.
	Source string
}

// Catalog resolves table locations under <warehouse>/<namespace>.
type Catalog struct {
	Store     storage.Store
	Warehouse string
}

// NewCatalog creates a new Catalog instance
func NewCatalog(store storage.Store, warehouse string) *Catalog {
	return &Catalog{Store: store, Warehouse: warehouse}
}

// catalog-assigned suffix, e.g. records_5a6b1c2d-... or records_5a6b1c2d
var uuidSuffixRe = regexp.MustCompile(`^[0-9a-fA-F]{8}(?:-?[0-9a-fA-F]{4}){0,3}(?:-?[0-9a-fA-F]{12})?$`)

// matchesTable reports whether a directory name belongs to table.
func matchesTable(dir, table string) bool {
	if dir == table {
		return true
	}
	suffix, ok := strings.CutPrefix(dir, table+"_")
	return ok && uuidSuffixRe.MatchString(suffix)
}

// Locate finds the table's storage root. An exact directory name wins over
// uuid-suffixed ones; among several suffixed directories the most recently
// updated metadata wins.
func (c *Catalog) Locate(ctx context.Context, namespace, table string) (*Location, error) {
	if !isValidName(namespace) {
		return nil, fmt.Errorf("invalid namespace: %s", namespace)
	}
	if !isValidName(table) {
		return nil, fmt.Errorf("invalid table name: %s", table)
	}

	nsPath := storage.Join(c.Warehouse, namespace)
	dirs, err := c.Store.ListDirs(ctx, nsPath)
	if err != nil {
		return nil, fmt.Errorf("list namespace %s: %w", nsPath, err)
	}

	var best *Location
	var bestUpdated int64 = -1
	for _, dir := range dirs {
		if !matchesTable(dir, table) {
			continue
		}
		root := storage.Join(nsPath, dir)
		loc := &Location{Table: table, Path: root, Source: "directory"}
		var updated int64
		md, err := c.readLatestMetadata(ctx, root)
		if err != nil {
			core.Warnf(ctx, "Ignoring unreadable metadata for %s: %v", root, err)
		} else if md != nil {
			loc.TableUUID = md.TableUUID
			updated = md.LastUpdatedMs
			if md.Location != "" {
				loc.Path = normalizeLocation(md.Location)
				loc.Source = "metadata"
			}
		}
		if dir == table {
			return loc, nil
		}
		if updated > bestUpdated {
			best, bestUpdated = loc, updated
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%s.%s: %w", namespace, table, ErrTableNotFound)
	}
	return best, nil
}

// readLatestMetadata returns nil, nil when the table has no metadata files.
func (c *Catalog) readLatestMetadata(ctx context.Context, root string) (*TableMetadata, error) {
	files, err := c.Store.List(ctx, storage.Join(root, "metadata"))
	if err != nil {
		return nil, err
	}
	latest, ok := latestMetadataFile(files)
	if !ok {
		return nil, nil
	}
	data, err := c.Store.Read(ctx, latest)
	if err != nil {
		return nil, err
	}
	return ParseMetadata(data)
}
