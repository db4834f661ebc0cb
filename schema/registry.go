package schema

import (
	"fmt"
	"sort"

	"github.com/gigapi/gigapi-lakehouse/core"
)

// Registry is a closed, validated set of table descriptors.
type Registry struct {
	tables []*Table
	byName map[string]*Table
}

// NewRegistry validates the descriptors and builds a registry. Table order is
// preserved; it is the order filename patterns are tried in.
func NewRegistry(tables ...*Table) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Table, len(tables))}
	for _, t := range tables {
		if err := validate(t); err != nil {
			return nil, err
		}
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate table %q", t.Name)
		}
		r.byName[t.Name] = t
		r.tables = append(r.tables, t)
	}
	return r, nil
}

func validate(t *Table) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("table name is required")
	}
	seen := map[string]bool{}
	for _, f := range t.Fields {
		if f.Name == "" {
			return fmt.Errorf("table %s: empty field name", t.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("table %s: duplicate field %q", t.Name, f.Name)
		}
		seen[f.Name] = true
	}
	if !seen[t.PrimaryKey] {
		return fmt.Errorf("table %s: primary key %q is not a field", t.Name, t.PrimaryKey)
	}
	if !seen[t.RecencyField] {
		return fmt.Errorf("table %s: recency field %q is not a field", t.Name, t.RecencyField)
	}
	for _, p := range t.PartitionKeys {
		if !seen[p] {
			return fmt.Errorf("table %s: partition key %q is not a field", t.Name, p)
		}
	}
	return nil
}

// Lookup returns the named descriptor or *core.UnknownTableError.
func (r *Registry) Lookup(name string) (*Table, error) {
	if t, ok := r.byName[name]; ok {
		return t, nil
	}
	return nil, &core.UnknownTableError{Table: name, Available: r.Names()}
}

// Has reports whether the table is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Tables returns descriptors in registration order.
func (r *Registry) Tables() []*Table {
	out := make([]*Table, len(r.tables))
	copy(out, r.tables)
	return out
}

// Names returns the sorted table names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
