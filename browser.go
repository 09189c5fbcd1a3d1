package datasource

import (
	"context"
	"strings"
	"time"

	"github.com/goforj/datasource/dscore"
)

// Browser runs templated ad-hoc SQL and shapes the rows. Every accessor
// reconciles the connector state, renders the query, streams the rows and
// frees the cursor before returning.
type Browser struct {
	handle
	expand bool
}

func (b *Browser) Contract() Contract { return ContractBrowser }

// Expand returns a copy that also fills {name#key} placeholders from map values.
func (b *Browser) Expand() *Browser {
	cp := *b
	cp.expand = true
	return &cp
}

// Esc escapes a string literal for the backend.
func (b *Browser) Esc(s string) string {
	if b.err != nil {
		return s
	}
	return b.sql.Escape(nil, s)
}

// In renders ` IN("a", "b") `, or `field` = "v" terms joined by OR when
// orField is given.
func (b *Browser) In(values []any, orField string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = b.Esc(keyOf(v))
	}
	if orField == "" {
		return ` IN("` + strings.Join(parts, `", "`) + `") `
	}
	for i, p := range parts {
		parts[i] = " `" + orField + "` = \"" + p + "\" "
	}
	return strings.Join(parts, "OR")
}

// Keys is In over the sorted keys of m.
func (b *Browser) Keys(m map[string]any, orField string) string {
	keys := sortedKeys(m)
	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = k
	}
	return b.In(values, orField)
}

// LastError returns the backend's last error text without reconciling, so the
// text left by the last statement on the shared link survives.
func (b *Browser) LastError() string {
	if b.err != nil {
		return b.err.Error()
	}
	var text string
	_ = b.conn.Peek(func(link dscore.Link) error {
		text = b.sql.Error(link)
		return nil
	})
	return text
}

// stream runs query unbuffered and hands the cursor to shape.
func (b *Browser) stream(ctx context.Context, op, query string, vars Vars, shape func(dscore.Result) error) error {
	return b.exec(ctx, op, query, vars, true, shape)
}

func (b *Browser) exec(ctx context.Context, op, query string, vars Vars, unbuf bool, shape func(dscore.Result) error) error {
	start := time.Now()
	text := query
	err := b.do(ctx, func(link dscore.Link) error {
		text = render(query, vars, func(s string) string { return b.sql.Escape(link, s) }, b.expand)
		var (
			res dscore.Result
			err error
		)
		if unbuf {
			res, err = b.sql.UnbufQuery(ctx, link, text)
		} else {
			res, err = b.sql.Query(ctx, link, text)
		}
		if err != nil {
			return dscore.AsFail(err, dscore.StatusQueryFailed)
		}
		if shape == nil {
			return res.Free()
		}
		return shape(res)
	})
	observe(ctx, b.observer, op, b.typ, text, start, err)
	return err
}

// Rows returns every row positionally.
func (b *Browser) Rows(ctx context.Context, query string, vars Vars) ([]dscore.Row, error) {
	var out []dscore.Row
	err := b.stream(ctx, "rows", query, vars, func(res dscore.Result) error {
		_, rows, err := fetchRows(res)
		out = rows
		return err
	})
	if out == nil && err == nil {
		out = []dscore.Row{}
	}
	return out, err
}

// Assoc returns every row keyed by column name.
func (b *Browser) Assoc(ctx context.Context, query string, vars Vars) ([]dscore.Record, error) {
	var out []dscore.Record
	err := b.stream(ctx, "assoc", query, vars, func(res dscore.Result) error {
		recs, err := fetchRecords(res)
		out = recs
		return err
	})
	if out == nil && err == nil {
		out = []dscore.Record{}
	}
	return out, err
}

// Combine maps the first field to the second. With firstOnly, or when rows
// have one field, the first field maps to itself.
func (b *Browser) Combine(ctx context.Context, query string, vars Vars, firstOnly bool) (map[string]any, error) {
	var out map[string]any
	err := b.stream(ctx, "combine", query, vars, func(res dscore.Result) error {
		_, rows, err := fetchRows(res)
		if err != nil {
			return err
		}
		if !firstOnly && hasFields(rows, 1) {
			out = shapeCombine(rows, 1, 0)
		} else {
			out = shapeCombine(rows, 0, 0)
		}
		return nil
	})
	return out, err
}

// Column returns the first field of every row.
func (b *Browser) Column(ctx context.Context, query string, vars Vars) ([]any, error) {
	var out []any
	err := b.stream(ctx, "column", query, vars, func(res dscore.Result) error {
		_, rows, err := fetchRows(res)
		out = shapeColumn(rows, 0)
		return err
	})
	return out, err
}

// Join renders the first column as ("a", "b"), or (NULL) without rows.
func (b *Browser) Join(ctx context.Context, query string, vars Vars) (string, error) {
	values, err := b.Column(ctx, query, vars)
	if len(values) == 0 {
		return "(NULL)", err
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = keyOf(v)
	}
	return `("` + strings.Join(parts, `", "`) + `")`, err
}

// Slice groups rows by their first field.
func (b *Browser) Slice(ctx context.Context, query string, vars Vars) (map[string][]dscore.Row, error) {
	return b.slice(ctx, "slice", query, vars, false)
}

// Shift groups rows by their first field and drops it from each row.
func (b *Browser) Shift(ctx context.Context, query string, vars Vars) (map[string][]dscore.Row, error) {
	return b.slice(ctx, "shift", query, vars, true)
}

func (b *Browser) slice(ctx context.Context, op, query string, vars Vars, drop bool) (map[string][]dscore.Row, error) {
	var out map[string][]dscore.Row
	err := b.stream(ctx, op, query, vars, func(res dscore.Result) error {
		_, rows, err := fetchRows(res)
		out = shapeSlice(rows, 0, drop)
		return err
	})
	return out, err
}

// ASlice groups named rows by their first column.
func (b *Browser) ASlice(ctx context.Context, query string, vars Vars) (map[string][]dscore.Record, error) {
	return b.aslice(ctx, "aslice", query, vars, false)
}

// AShift groups named rows by their first column and drops it from each row.
func (b *Browser) AShift(ctx context.Context, query string, vars Vars) (map[string][]dscore.Record, error) {
	return b.aslice(ctx, "ashift", query, vars, true)
}

func (b *Browser) aslice(ctx context.Context, op, query string, vars Vars, drop bool) (map[string][]dscore.Record, error) {
	var out map[string][]dscore.Record
	err := b.stream(ctx, op, query, vars, func(res dscore.Result) error {
		recs, err := fetchRecords(res)
		out = shapeASlice(recs, "", drop)
		return err
	})
	return out, err
}

// Columns maps the first field to the remaining fields of every matching row.
func (b *Browser) Columns(ctx context.Context, query string, vars Vars) (map[string][]any, error) {
	var out map[string][]any
	err := b.stream(ctx, "columns", query, vars, func(res dscore.Result) error {
		_, rows, err := fetchRows(res)
		out = shapeColumns(rows)
		return err
	})
	return out, err
}

// Combines maps the first field to a second→third map.
func (b *Browser) Combines(ctx context.Context, query string, vars Vars) (map[string]map[string]any, error) {
	var out map[string]map[string]any
	err := b.stream(ctx, "combines", query, vars, func(res dscore.Result) error {
		_, rows, err := fetchRows(res)
		out = shapeCombines(rows)
		return err
	})
	return out, err
}

// Table keys rows by their first field; the last row per key wins.
func (b *Browser) Table(ctx context.Context, query string, vars Vars) (map[string]dscore.Row, error) {
	var out map[string]dscore.Row
	err := b.stream(ctx, "table", query, vars, func(res dscore.Result) error {
		_, rows, err := fetchRows(res)
		out = shapeTable(rows, 0)
		return err
	})
	return out, err
}

// View keys named rows by their first column; the last row per key wins.
func (b *Browser) View(ctx context.Context, query string, vars Vars) (map[string]dscore.Record, error) {
	var out map[string]dscore.Record
	err := b.stream(ctx, "view", query, vars, func(res dscore.Result) error {
		recs, err := fetchRecords(res)
		out = shapeView(recs, "")
		return err
	})
	return out, err
}

// Row returns the first row, or an empty record.
func (b *Browser) Row(ctx context.Context, query string, vars Vars) (dscore.Record, error) {
	var out dscore.Record
	err := b.stream(ctx, "row", query, vars, func(res dscore.Result) error {
		rec, err := firstArray(res)
		out = rec
		return err
	})
	return out, err
}

// Result returns the first field of the first row, or "".
func (b *Browser) Result(ctx context.Context, query string, vars Vars) (any, error) {
	var out any = ""
	err := b.exec(ctx, "result", query, vars, false, func(res dscore.Result) error {
		v, err := firstField(res)
		out = v
		return err
	})
	return out, err
}

// Run executes a statement and discards any rows.
func (b *Browser) Run(ctx context.Context, query string, vars Vars) error {
	return b.stream(ctx, "run", query, vars, func(res dscore.Result) error {
		_, _, err := fetchRows(res)
		return err
	})
}

// Affect executes a statement and returns the affected row count.
func (b *Browser) Affect(ctx context.Context, query string, vars Vars) (int64, error) {
	start := time.Now()
	text := query
	var affected int64
	err := b.do(ctx, func(link dscore.Link) error {
		text = render(query, vars, func(s string) string { return b.sql.Escape(link, s) }, b.expand)
		n, err := b.sql.Exec(ctx, link, text)
		affected = n
		return err
	})
	observe(ctx, b.observer, "affect", b.typ, text, start, err)
	if err != nil {
		return 0, dscore.AsFail(err, dscore.StatusQueryFailed)
	}
	return affected, nil
}
