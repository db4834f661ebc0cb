package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// FS stores objects on an afero filesystem.
type FS struct {
	fs afero.Fs
}

var _ Store = (*FS)(nil)

func NewFS(fs afero.Fs) *FS {
	return &FS{fs: fs}
}

// Fs exposes the underlying filesystem.
func (f *FS) Fs() afero.Fs { return f.fs }

func (f *FS) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	err := afero.Walk(f.fs, prefix, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !info.IsDir() {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Strings(out)
	return out, nil
}

func (f *FS) ListDirs(ctx context.Context, prefix string) ([]string, error) {
	entries, err := afero.ReadDir(f.fs, prefix)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list dirs %s: %w", prefix, err)
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (f *FS) Read(ctx context.Context, loc string) ([]byte, error) {
	return afero.ReadFile(f.fs, loc)
}

func (f *FS) Put(ctx context.Context, loc string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.fs.MkdirAll(filepath.Dir(loc), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", loc, err)
	}
	if err := afero.WriteReader(f.fs, loc, r); err != nil {
		return fmt.Errorf("write %s: %w", loc, err)
	}
	return nil
}

func (f *FS) Delete(ctx context.Context, locs ...string) error {
	var errs []error
	for _, loc := range locs {
		if err := f.fs.Remove(loc); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("delete %s: %w", loc, err))
		}
	}
	return errors.Join(errs...)
}
