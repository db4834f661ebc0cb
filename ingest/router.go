package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/gigapi/gigapi-lakehouse/config"
	"github.com/gigapi/gigapi-lakehouse/core"
	"github.com/gigapi/gigapi-lakehouse/iceberg"
	"github.com/gigapi/gigapi-lakehouse/schema"
	"github.com/gigapi/gigapi-lakehouse/storage"
)

// rollbackTimeout bounds cleanup after a cancelled overwrite.
const rollbackTimeout = 30 * time.Second

// Request describes one router invocation.
type Request struct {
	// Path is a single file or a directory scanned recursively for *.parquet.
	Path string `json:"path"`
	// Table forces every file into this table.
	Table  string `json:"table,omitempty"`
	Mode   string `json:"mode,omitempty"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// Router classifies input files and writes routed ones into table storage.
type Router struct {
	Registry   *schema.Registry
	Strategies []Strategy
	Resolver   *iceberg.Resolver
	Store      storage.Store
	// Input is where source files are read from.
	Input   afero.Fs
	Workers int
}

// NewRouter builds a router with its own catalog view of the warehouse.
func NewRouter(cfg *config.Config, store storage.Store, input afero.Fs) *Router {
	return &Router{
		Registry:   schema.Default(),
		Strategies: DefaultStrategies(input),
		Resolver:   iceberg.NewResolver(iceberg.NewCatalog(store, cfg.WarehouseURI()), cfg.WarehouseURI(), cfg.Namespace),
		Store:      store,
		Input:      input,
		Workers:    cfg.IngestWorkers,
	}
}

// Plan classifies every input file without touching table storage.
func (r *Router) Plan(ctx context.Context, req Request) ([]Task, Mode, error) {
	mode, err := ParseMode(req.Mode)
	if err != nil {
		return nil, "", err
	}
	if req.Table != "" {
		if _, err := r.Registry.Lookup(req.Table); err != nil {
			return nil, "", err
		}
	}
	files, err := r.expand(req.Path)
	if err != nil {
		return nil, "", err
	}

	tasks := make([]Task, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		t := r.classify(ctx, f, req.Table)
		t.Mode = mode
		if t.State == StateRouted {
			root, err := r.Resolver.Root(ctx, t.Table)
			if err != nil {
				return nil, "", fmt.Errorf("resolve %s: %w", t.Table, err)
			}
			t.Destination = storage.Join(root, "data")
		}
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Source < tasks[j].Source })
	return tasks, mode, nil
}

func (r *Router) classify(ctx context.Context, path, override string) Task {
	if override != "" {
		return Task{Source: path, Table: override, Method: MethodExplicit, State: StateRouted}
	}
	for _, s := range r.Strategies {
		table, ok, err := s.Resolve(ctx, path, r.Registry)
		if err != nil {
			core.Debugf(ctx, "%s strategy could not inspect %s: %v", s.Method(), path, err)
			continue
		}
		if ok {
			return Task{Source: path, Table: table, Method: s.Method(), State: StateRouted}
		}
	}
	return Task{Source: path, Method: MethodNone, State: StateUnresolved}
}

// expand turns the request path into the batch's file list.
func (r *Router) expand(root string) ([]string, error) {
	if root == "" {
		return nil, core.ErrValidation("input path is required")
	}
	info, err := r.Input.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.ErrValidation("input path %s does not exist", root)
		}
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = afero.Walk(r.Input, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			// Skip tmp directories
			if info.Name() == "tmp" && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".parquet") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return files, nil
}

// Run plans the batch and, unless DryRun is set, writes every routed file.
// Per-file failures land in the report; only batch-level problems return an error.
func (r *Router) Run(ctx context.Context, req Request) (*Report, error) {
	tasks, mode, err := r.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	report := &Report{DryRun: req.DryRun, Mode: mode, Tasks: tasks}
	if !req.DryRun {
		r.execute(ctx, mode, report.Tasks)
	}
	report.tally()
	core.Infof(ctx, "Ingest of %s: %d routed, %d unresolved, %d written, %d failed",
		req.Path, report.Routed, report.Unresolved, report.Written, report.Failed)
	return report, nil
}

// tableBatch tracks one table's share of an overwrite batch.
type tableBatch struct {
	snapshot []string
	tasks    []int
	written  []string
}

func (r *Router) execute(ctx context.Context, mode Mode, tasks []Task) {
	batches := map[string]*tableBatch{}
	var order []string
	for i := range tasks {
		if tasks[i].State != StateRouted {
			continue
		}
		b, ok := batches[tasks[i].Table]
		if !ok {
			b = &tableBatch{}
			batches[tasks[i].Table] = b
			order = append(order, tasks[i].Table)
		}
		b.tasks = append(b.tasks, i)
	}

	if mode == Overwrite {
		for _, table := range order {
			b := batches[table]
			snap, err := r.Store.List(ctx, tasks[b.tasks[0]].Destination)
			if err != nil {
				for _, i := range b.tasks {
					fail(&tasks[i], &core.WriteError{Source: tasks[i].Source, Table: table, Err: fmt.Errorf("snapshot existing files: %w", err)})
				}
				delete(batches, table)
				continue
			}
			b.snapshot = snap
		}
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)
	for _, table := range order {
		b, ok := batches[table]
		if !ok {
			continue
		}
		for _, i := range b.tasks {
			g.Go(func() error {
				dest, err := r.write(ctx, &tasks[i])
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					fail(&tasks[i], err)
					return nil
				}
				tasks[i].State = StateWritten
				tasks[i].Destination = dest
				b.written = append(b.written, dest)
				return nil
			})
		}
	}
	_ = g.Wait()

	if mode == Overwrite {
		for _, table := range order {
			if b, ok := batches[table]; ok {
				r.commitOverwrite(ctx, table, b, tasks)
			}
		}
	}
}

func (r *Router) write(ctx context.Context, t *Task) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &core.WriteError{Source: t.Source, Table: t.Table, Err: err}
	}
	src, err := r.Input.Open(t.Source)
	if err != nil {
		return "", &core.WriteError{Source: t.Source, Table: t.Table, Err: err}
	}
	defer src.Close()

	stem := strings.TrimSuffix(filepath.Base(t.Source), filepath.Ext(t.Source))
	dest := storage.Join(t.Destination, fmt.Sprintf("%s-%s.parquet", stem, uuid.NewString()))
	if err := r.Store.Put(ctx, dest, src); err != nil {
		return "", &core.WriteError{Source: t.Source, Table: t.Table, Err: err}
	}
	core.Debugf(ctx, "Wrote %s to %s", t.Source, dest)
	return dest, nil
}

// commitOverwrite removes the table's previous files once the batch is in
// place. A cancelled batch or a failed removal rolls the new files back and
// fails every file of the table, leaving the previous contents intact.
func (r *Router) commitOverwrite(ctx context.Context, table string, b *tableBatch, tasks []Task) {
	if len(b.written) == 0 {
		return
	}
	var cause error
	if err := ctx.Err(); err != nil {
		cause = fmt.Errorf("overwrite of %s interrupted: %w", table, err)
	} else if len(b.snapshot) > 0 {
		if err := r.Store.Delete(ctx, b.snapshot...); err != nil {
			cause = fmt.Errorf("remove previous files of %s: %w", table, err)
		}
	}
	if cause == nil {
		core.Infof(ctx, "Replaced %d files of %s with %d new files", len(b.snapshot), table, len(b.written))
		return
	}

	core.Errorf(ctx, "Rolling back overwrite of %s: %v", table, cause)
	cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := r.Store.Delete(cleanup, b.written...); err != nil {
		core.Errorf(ctx, "Rollback of %s incomplete: %v", table, err)
		cause = errors.Join(cause, fmt.Errorf("rollback: %w", err))
	}
	for _, i := range b.tasks {
		if tasks[i].State == StateFailed {
			continue
		}
		tasks[i].Destination = ""
		fail(&tasks[i], &core.WriteError{Source: tasks[i].Source, Table: table, Err: cause})
	}
}

func fail(t *Task, err error) {
	t.State = StateFailed
	t.Error = err.Error()
}
