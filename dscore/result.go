package dscore

// BufferedResult is a Result over rows already held in memory.
type BufferedResult struct {
	columns []string
	rows    []Row
	pos     int
	freed   bool
}

// NewBufferedResult wraps materialized rows as a cursor.
func NewBufferedResult(columns []string, rows []Row) *BufferedResult {
	return &BufferedResult{columns: columns, rows: rows}
}

func (r *BufferedResult) Columns() []string { return r.columns }

func (r *BufferedResult) FetchRow() (Row, bool) {
	if r.freed || r.pos >= len(r.rows) {
		return nil, false
	}
	row := r.rows[r.pos]
	r.pos++
	return row, true
}

func (r *BufferedResult) FetchArray() (Record, bool) {
	row, ok := r.FetchRow()
	if !ok {
		return Record{}, false
	}
	return Record{Columns: r.columns, Values: row}, true
}

func (r *BufferedResult) FetchAssoc() (Record, bool) {
	row, ok := r.FetchRow()
	if !ok {
		return Record{}, false
	}
	return Assoc(r.columns, row), true
}

func (r *BufferedResult) NumRows() int   { return len(r.rows) }
func (r *BufferedResult) NumFields() int { return len(r.columns) }
func (r *BufferedResult) Err() error     { return nil }

func (r *BufferedResult) Free() error {
	r.freed = true
	r.rows = nil
	return nil
}

// Assoc pairs a row with its columns, collapsing duplicate names onto the
// first position while keeping the last value.
func Assoc(columns []string, row Row) Record {
	rec := Record{
		Columns: make([]string, 0, len(columns)),
		Values:  make([]any, 0, len(row)),
	}
	seen := make(map[string]int, len(columns))
	for i, col := range columns {
		if i >= len(row) {
			break
		}
		if at, ok := seen[col]; ok {
			rec.Values[at] = row[i]
			continue
		}
		seen[col] = len(rec.Columns)
		rec.Columns = append(rec.Columns, col)
		rec.Values = append(rec.Values, row[i])
	}
	return rec
}
