// Package schema holds the closed set of table descriptors served by the lakehouse.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gigapi/gigapi-lakehouse/core"
)

// SchemaVersion is reported by table listings.
const SchemaVersion = "1.0.0"

// Type is the logical type of a column.
type Type int

const (
	String Type = iota
	Int64
	Float64
	Bool
	Timestamp
	StringList
	Struct
)

var typeNames = map[Type]string{
	String:     "string",
	Int64:      "int64",
	Float64:    "float64",
	Bool:       "bool",
	Timestamp:  "timestamp",
	StringList: "list<string>",
	Struct:     "struct",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Field is one column of a table.
type Field struct {
	Name     string  `json:"name"`
	Type     Type    `json:"-"`
	Nullable bool    `json:"nullable"`
	Comment  string  `json:"comment,omitempty"`
	Children []Field `json:"children,omitempty"`
}

// TypeName is the printable type, including struct members.
func (f Field) TypeName() string {
	if f.Type != Struct {
		return f.Type.String()
	}
	parts := make([]string, len(f.Children))
	for i, c := range f.Children {
		parts[i] = c.Name + ": " + c.TypeName()
	}
	return "struct<" + strings.Join(parts, ", ") + ">"
}

// Table describes a logical table.
type Table struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Fields        []Field  `json:"fields"`
	PrimaryKey    string   `json:"primary_key"`
	RecencyField  string   `json:"recency_field"`
	PartitionKeys []string `json:"partition_keys,omitempty"`
	FilePattern   string   `json:"file_pattern"`
}

// Field returns the named field.
func (t *Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the column names in declaration order.
func (t *Table) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// MatchesFile reports whether a file base name matches the table's pattern.
func (t *Table) MatchesFile(base string) bool {
	if t.FilePattern == "" {
		return false
	}
	ok, err := filepath.Match(t.FilePattern, base)
	return err == nil && ok
}

// Coerce converts a textual filter value (as typed on a command line) into the
// field's Go type.
func (t *Table) Coerce(field, raw string) (any, error) {
	f, ok := t.Field(field)
	if !ok {
		return nil, core.ErrValidation("unknown field %q for table %s", field, t.Name)
	}
	switch f.Type {
	case String:
		return raw, nil
	case Int64:
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, core.ErrValidation("field %s expects an integer, got %q", field, raw)
		}
		return v, nil
	case Float64:
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, core.ErrValidation("field %s expects a number, got %q", field, raw)
		}
		return v, nil
	case Bool:
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, core.ErrValidation("field %s expects a boolean, got %q", field, raw)
		}
		return v, nil
	case Timestamp:
		return parseTime(field, raw)
	default:
		return nil, core.ErrValidation("field %s of type %s cannot be used as a filter", field, f.TypeName())
	}
}

// CoerceValue normalizes a decoded JSON value for the field. Strings are
// parsed for typed fields, integral float64 values become int64 for integer
// fields, and numbers or booleans given for string fields are compared by
// their text. Values the field can never equal are rejected.
func (t *Table) CoerceValue(field string, v any) (any, error) {
	f, ok := t.Field(field)
	if !ok {
		return nil, core.ErrValidation("unknown field %q for table %s", field, t.Name)
	}
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		return t.Coerce(field, s)
	}
	switch f.Type {
	case String:
		switch x := v.(type) {
		case float64:
			if math.IsInf(x, 0) || math.IsNaN(x) {
				break
			}
			if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
				return strconv.FormatInt(int64(x), 10), nil
			}
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case float32:
			return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
			return fmt.Sprint(x), nil
		}
	case Int64:
		switch x := v.(type) {
		case float64:
			if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
				return nil, core.ErrValidation("field %s expects an integer, got %v", field, x)
			}
			return int64(x), nil
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return v, nil
		}
	case Float64:
		switch v.(type) {
		case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return v, nil
		}
	case Bool:
		if _, ok := v.(bool); ok {
			return v, nil
		}
	case Timestamp:
		if _, ok := v.(time.Time); ok {
			return v, nil
		}
	default:
		return nil, core.ErrValidation("field %s of type %s cannot be used as a filter", field, f.TypeName())
	}
	return nil, core.ErrValidation("field %s expects a %s value, got %T", field, f.TypeName(), v)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, core.ErrValidation("field %s expects a timestamp, got %q", field, raw)
}

// MarshalJSON renders the type by name.
func (f Field) MarshalJSON() ([]byte, error) {
	type alias Field
	return json.Marshal(struct {
		alias
		TypeName string `json:"type"`
	}{alias(f), f.TypeName()})
}

// Summary is the listing view of a table.
type Summary struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	Namespace     string `json:"namespace"`
	SchemaVersion string `json:"schema_version"`
	PrimaryKey    string `json:"primary_key"`
	Columns       int    `json:"columns"`
}

// Summary describes the table as served from namespace.
func (t *Table) Summary(namespace string) Summary {
	return Summary{
		Name:          t.Name,
		Description:   t.Description,
		Namespace:     namespace,
		SchemaVersion: SchemaVersion,
		PrimaryKey:    t.PrimaryKey,
		Columns:       len(t.Fields),
	}
}
