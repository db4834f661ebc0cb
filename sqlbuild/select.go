package sqlbuild

import (
	"fmt"
	"sort"
	"strings"
)

// Select describes a single-source SELECT over a Parquet glob.
type Select struct {
	// Projection is rendered verbatim; empty means *.
	Projection string
	// Source is the table expression, usually ReadParquet(glob).
	Source  string
	Filters map[string]any
	// OrderBy is a column name; empty leaves ordering to the engine.
	OrderBy   string
	OrderDesc bool
	// Limit < 0 means no LIMIT clause.
	Limit int
}

// Build renders the statement. Filter keys are emitted in sorted order, so
// equal filter sets always produce identical SQL.
func (s Select) Build() (string, error) {
	if s.Source == "" {
		return "", fmt.Errorf("select source is required")
	}
	projection := s.Projection
	if projection == "" {
		projection = "*"
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(projection)
	b.WriteString(" FROM ")
	b.WriteString(s.Source)

	if len(s.Filters) > 0 {
		keys := make([]string, 0, len(s.Filters))
		for k := range s.Filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		preds := make([]string, 0, len(keys))
		for _, k := range keys {
			v := s.Filters[k]
			if v == nil {
				preds = append(preds, QuoteIdentifier(k)+" IS NULL")
				continue
			}
			lit, err := Literal(v)
			if err != nil {
				return "", fmt.Errorf("filter %s: %w", k, err)
			}
			preds = append(preds, QuoteIdentifier(k)+" = "+lit)
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(preds, " AND "))
	}

	if s.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(QuoteIdentifier(s.OrderBy))
		if s.OrderDesc {
			b.WriteString(" DESC")
		} else {
			b.WriteString(" ASC")
		}
	}

	if s.Limit >= 0 {
		fmt.Fprintf(&b, " LIMIT %d", s.Limit)
	}
	return b.String(), nil
}
