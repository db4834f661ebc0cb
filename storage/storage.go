// Package storage abstracts the warehouse's object storage. Locations are
// either s3://bucket/key URIs or local filesystem paths.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/gigapi/gigapi-lakehouse/config"
	"github.com/spf13/afero"
)

// Store is the narrow storage interface the catalog and the router need.
type Store interface {
	// List returns every object location under prefix, recursively, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
	// ListDirs returns the names of the immediate child directories of prefix.
	ListDirs(ctx context.Context, prefix string) ([]string, error)
	Read(ctx context.Context, loc string) ([]byte, error)
	Put(ctx context.Context, loc string, r io.Reader) error
	Delete(ctx context.Context, locs ...string) error
}

// Open returns the store matching the warehouse location.
func Open(s config.Settings) (Store, error) {
	if s.UsesS3() {
		return NewS3(s)
	}
	return NewFS(afero.NewOsFs()), nil
}

// Join appends path elements to a location, keeping the s3:// scheme intact.
func Join(base string, elems ...string) string {
	if strings.HasPrefix(base, "s3://") {
		return "s3://" + path.Join(append([]string{strings.TrimPrefix(base, "s3://")}, elems...)...)
	}
	return filepath.Join(append([]string{base}, elems...)...)
}

// ParseS3Path extracts bucket and key from an s3://bucket/path URI. The key
// may be empty for a bucket root.
func ParseS3Path(loc string) (bucket, key string, err error) {
	if !strings.HasPrefix(loc, "s3://") {
		return "", "", fmt.Errorf("expected s3:// scheme in %q", loc)
	}
	rest := strings.TrimPrefix(loc, "s3://")
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("empty bucket in S3 path %q", loc)
	}
	return bucket, key, nil
}
