package datasource

import (
	"context"
	"strings"
	"time"

	"github.com/goforj/datasource/dscore"
)

// Navigator builds statements fluently and materializes their results.
type Navigator struct {
	handle
}

func (n *Navigator) Contract() Contract { return ContractNavigator }

// Statement prepares sql for execution. When marker is non-empty, the text
// after its first occurrence is the section Join and Share repeat once per
// value set.
func (n *Navigator) Statement(sql, marker string) *Statement {
	return &Statement{nav: n, sql: sql, marker: marker}
}

// Query runs sql verbatim.
func (n *Navigator) Query(ctx context.Context, sql string) *Results {
	return n.run(ctx, "query", func(func(string) string) string { return sql })
}

func (n *Navigator) run(ctx context.Context, op string, build func(escape func(string) string) string) *Results {
	start := time.Now()
	out := &Results{}
	text := ""
	out.err = n.do(ctx, func(link dscore.Link) error {
		text = build(func(s string) string { return n.sql.Escape(link, s) })
		res, err := n.sql.Query(ctx, link, text)
		if err != nil {
			out.errText = n.sql.Error(link)
			return dscore.AsFail(err, dscore.StatusQueryFailed)
		}
		out.columns, out.rows, err = fetchRows(res)
		out.affected = n.sql.Affected(link)
		return err
	})
	if out.err != nil && out.errText == "" {
		out.errText = out.err.Error()
	}
	observe(ctx, n.observer, op, n.typ, text, start, out.err)
	return out
}

// Statement is a query template bound to a Navigator.
type Statement struct {
	nav    *Navigator
	sql    string
	marker string
}

// List fills positional placeholders {0}, {1}, ... from values.
func (s *Statement) List(ctx context.Context, values ...any) *Results {
	return s.render(ctx, "list", Args(values...))
}

// Map fills named placeholders from vars.
func (s *Statement) Map(ctx context.Context, vars Vars) *Results {
	return s.render(ctx, "map", vars)
}

func (s *Statement) render(ctx context.Context, op string, vars Vars) *Results {
	text := s.sql
	if s.marker != "" {
		text = strings.Replace(text, s.marker, "", 1)
	}
	return s.nav.run(ctx, op, func(escape func(string) string) string {
		return render(text, vars, escape, false)
	})
}

// Join renders the head with sets[0] and the repeated section once per
// remaining set, separated by ", ". Each repetition sees sets[0] overlaid
// with its own values. A single set fills both head and section.
func (s *Statement) Join(ctx context.Context, sets []Vars) *Results {
	return s.join(ctx, "join", sets)
}

// Share is Join with shared as the first set.
func (s *Statement) Share(ctx context.Context, shared Vars, sets ...Vars) *Results {
	return s.join(ctx, "share", append([]Vars{shared}, sets...))
}

func (s *Statement) join(ctx context.Context, op string, sets []Vars) *Results {
	var shared Vars
	if len(sets) > 0 {
		shared, sets = sets[0], sets[1:]
	}
	if len(sets) == 0 {
		sets = []Vars{nil}
	}
	head, section := "", s.sql
	if s.marker != "" {
		if i := strings.Index(s.sql, s.marker); i >= 0 {
			head, section = s.sql[:i], s.sql[i+len(s.marker):]
		}
	}
	return s.nav.run(ctx, op, func(escape func(string) string) string {
		parts := make([]string, len(sets))
		for i, set := range sets {
			merged := make(Vars, len(shared)+len(set))
			for k, v := range shared {
				merged[k] = v
			}
			for k, v := range set {
				merged[k] = v
			}
			parts[i] = render(section, merged, escape, false)
		}
		return render(head, shared, escape, false) + strings.Join(parts, ", ")
	})
}

// Results holds the materialized rows of one statement. Accessors validate
// requested positions and names against the first row and return empty
// values otherwise.
type Results struct {
	columns  []string
	rows     []dscore.Row
	affected int64
	err      error
	errText  string
}

// Err returns the failure of the statement, if any.
func (r *Results) Err() error { return r.err }

// LastError returns the backend error text of a failed statement.
func (r *Results) LastError() string { return r.errText }

func (r *Results) Rows() []dscore.Row {
	if r.rows == nil {
		return []dscore.Row{}
	}
	return r.rows
}

func (r *Results) records() []dscore.Record {
	out := make([]dscore.Record, len(r.rows))
	for i, row := range r.rows {
		out[i] = dscore.Assoc(r.columns, row)
	}
	return out
}

func (r *Results) Assoc() []dscore.Record { return r.records() }

func (r *Results) Combine(val, key int) map[string]any { return shapeCombine(r.rows, val, key) }

func (r *Results) Column(col int) []any { return shapeColumn(r.rows, col) }

func (r *Results) Slice(key int) map[string][]dscore.Row { return shapeSlice(r.rows, key, false) }

func (r *Results) Shift(key int) map[string][]dscore.Row { return shapeSlice(r.rows, key, true) }

func (r *Results) ASlice(name string) map[string][]dscore.Record {
	return shapeASlice(r.records(), name, false)
}

func (r *Results) AShift(name string) map[string][]dscore.Record {
	return shapeASlice(r.records(), name, true)
}

func (r *Results) Columns() map[string][]any { return shapeColumns(r.rows) }

func (r *Results) Combines() map[string]map[string]any { return shapeCombines(r.rows) }

func (r *Results) Table(key int) map[string]dscore.Row { return shapeTable(r.rows, key) }

func (r *Results) View(name string) map[string]dscore.Record { return shapeView(r.records(), name) }

// Row returns the first row with positional and named access.
func (r *Results) Row() dscore.Record {
	if len(r.rows) == 0 {
		return dscore.Record{}
	}
	return dscore.Record{Columns: r.columns, Values: r.rows[0]}
}

// Result returns the first field of the first row, or "".
func (r *Results) Result() any {
	if len(r.rows) == 0 || len(r.rows[0]) == 0 {
		return ""
	}
	return r.rows[0][0]
}

// Run reports whether the statement succeeded.
func (r *Results) Run() error { return r.err }

// Affect returns the affected row count.
func (r *Results) Affect() int64 { return r.affected }
