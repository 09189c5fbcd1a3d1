package sqlcore

import (
	"database/sql"

	"github.com/goforj/datasource/dscore"
)

func scanRow(rows *sql.Rows, n int) (dscore.Row, error) {
	values := make([]any, n)
	dest := make([]any, n)
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	for i, v := range values {
		values[i] = dscore.NormalizeValue(v)
	}
	return dscore.Row(values), nil
}

func drain(rows *sql.Rows) ([]string, []dscore.Row, error) {
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out []dscore.Row
	for rows.Next() {
		row, err := scanRow(rows, len(columns))
		if err != nil {
			return nil, nil, err
		}
		out = append(out, row)
	}
	return columns, out, rows.Err()
}

// streamResult reads rows from the server as they are fetched.
type streamResult struct {
	rows    *sql.Rows
	columns []string
	link    *Link
	fetched int
	err     error
	done    bool
}

func (r *streamResult) Columns() []string { return r.columns }

func (r *streamResult) FetchRow() (dscore.Row, bool) {
	if r.done {
		return nil, false
	}
	if !r.rows.Next() {
		r.finish(r.rows.Err())
		return nil, false
	}
	row, err := scanRow(r.rows, len(r.columns))
	if err != nil {
		r.finish(err)
		return nil, false
	}
	r.fetched++
	return row, true
}

func (r *streamResult) FetchArray() (dscore.Record, bool) {
	row, ok := r.FetchRow()
	if !ok {
		return dscore.Record{}, false
	}
	return dscore.Record{Columns: r.columns, Values: row}, true
}

func (r *streamResult) FetchAssoc() (dscore.Record, bool) {
	row, ok := r.FetchRow()
	if !ok {
		return dscore.Record{}, false
	}
	return dscore.Assoc(r.columns, row), true
}

// NumRows counts rows fetched so far; the total is known once the stream ends.
func (r *streamResult) NumRows() int   { return r.fetched }
func (r *streamResult) NumFields() int { return len(r.columns) }
func (r *streamResult) Err() error     { return r.err }

func (r *streamResult) Free() error {
	if r.done {
		return nil
	}
	r.done = true
	return r.rows.Close()
}

func (r *streamResult) finish(err error) {
	r.done = true
	r.err = err
	_ = r.rows.Close()
	if err != nil {
		r.link.record(err, 0, 0)
	} else {
		r.link.record(nil, int64(r.fetched), 0)
	}
}
