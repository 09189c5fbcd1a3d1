package dscore

// Row is one result row in column order.
type Row []any

// Record is a row paired with its column names.
type Record struct {
	Columns []string
	Values  []any
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.Values) }

// Index returns the position of the first column with the given name, or -1.
func (r Record) Index(name string) int {
	for i, col := range r.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// Get returns the value of a named column.
func (r Record) Get(name string) (any, bool) {
	i := r.Index(name)
	if i < 0 || i >= len(r.Values) {
		return nil, false
	}
	return r.Values[i], true
}

// At returns the value at a position.
func (r Record) At(i int) (any, bool) {
	if i < 0 || i >= len(r.Values) {
		return nil, false
	}
	return r.Values[i], true
}

// Row drops the column names.
func (r Record) Row() Row {
	out := make(Row, len(r.Values))
	copy(out, r.Values)
	return out
}

// Without returns a copy with the field at position i removed.
func (r Record) Without(i int) Record {
	if i < 0 || i >= len(r.Values) {
		return r
	}
	out := Record{
		Columns: make([]string, 0, len(r.Columns)-1),
		Values:  make([]any, 0, len(r.Values)-1),
	}
	for j := range r.Values {
		if j == i {
			continue
		}
		out.Columns = append(out.Columns, r.Columns[j])
		out.Values = append(out.Values, r.Values[j])
	}
	return out
}

// Map renders the record as a name-keyed map.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.Values))
	for i, col := range r.Columns {
		if i < len(r.Values) {
			out[col] = r.Values[i]
		}
	}
	return out
}

// Without returns a copy of the row with position i removed.
func (r Row) Without(i int) Row {
	if i < 0 || i >= len(r) {
		return r
	}
	out := make(Row, 0, len(r)-1)
	out = append(out, r[:i]...)
	return append(out, r[i+1:]...)
}

// NormalizeValue turns driver byte slices into strings so rows compare and key cleanly.
func NormalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
