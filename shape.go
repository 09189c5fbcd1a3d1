package datasource

import "github.com/goforj/datasource/dscore"

// Every reducer reads the whole cursor and frees it, whatever it returns.

func fetchRows(res dscore.Result) ([]string, []dscore.Row, error) {
	defer func() { _ = res.Free() }()
	var rows []dscore.Row
	for {
		row, ok := res.FetchRow()
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	if err := res.Err(); err != nil {
		return nil, nil, dscore.AsFail(err, dscore.StatusQueryFailed)
	}
	return res.Columns(), rows, nil
}

func fetchRecords(res dscore.Result) ([]dscore.Record, error) {
	defer func() { _ = res.Free() }()
	var recs []dscore.Record
	for {
		rec, ok := res.FetchAssoc()
		if !ok {
			break
		}
		recs = append(recs, rec)
	}
	if err := res.Err(); err != nil {
		return nil, dscore.AsFail(err, dscore.StatusQueryFailed)
	}
	return recs, nil
}

// hasFields reports whether the first row holds every requested position.
func hasFields(rows []dscore.Row, idx ...int) bool {
	if len(rows) == 0 {
		return false
	}
	for _, i := range idx {
		if i < 0 || i >= len(rows[0]) {
			return false
		}
	}
	return true
}

// fieldName resolves name against the first record; "" picks the first column.
func fieldName(recs []dscore.Record, name string) (int, bool) {
	if len(recs) == 0 || len(recs[0].Columns) == 0 {
		return 0, false
	}
	if name == "" {
		return 0, true
	}
	i := recs[0].Index(name)
	return i, i >= 0
}

func shapeColumn(rows []dscore.Row, col int) []any {
	out := []any{}
	if !hasFields(rows, col) {
		return out
	}
	for _, row := range rows {
		if col < len(row) {
			out = append(out, row[col])
		}
	}
	return out
}

func shapeCombine(rows []dscore.Row, val, key int) map[string]any {
	out := map[string]any{}
	if !hasFields(rows, val, key) {
		return out
	}
	for _, row := range rows {
		out[keyOf(row[key])] = row[val]
	}
	return out
}

func shapeSlice(rows []dscore.Row, key int, drop bool) map[string][]dscore.Row {
	out := map[string][]dscore.Row{}
	if !hasFields(rows, key) {
		return out
	}
	for _, row := range rows {
		id := keyOf(row[key])
		if drop {
			row = row.Without(key)
		}
		out[id] = append(out[id], row)
	}
	return out
}

func shapeASlice(recs []dscore.Record, name string, drop bool) map[string][]dscore.Record {
	out := map[string][]dscore.Record{}
	i, ok := fieldName(recs, name)
	if !ok {
		return out
	}
	column := recs[0].Columns[i]
	for _, rec := range recs {
		at := rec.Index(column)
		v, _ := rec.At(at)
		id := keyOf(v)
		if drop {
			rec = rec.Without(at)
		}
		out[id] = append(out[id], rec)
	}
	return out
}

// shapeColumns appends every field after the first to the list keyed by the first.
func shapeColumns(rows []dscore.Row) map[string][]any {
	out := map[string][]any{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		id := keyOf(row[0])
		if _, ok := out[id]; !ok {
			out[id] = []any{}
		}
		out[id] = append(out[id], row[1:]...)
	}
	return out
}

// shapeCombines keys the first field to a second→third map, or second→second
// when the rows have two fields.
func shapeCombines(rows []dscore.Row) map[string]map[string]any {
	out := map[string]map[string]any{}
	if !hasFields(rows, 1) {
		return out
	}
	val := 1
	if hasFields(rows, 2) {
		val = 2
	}
	for _, row := range rows {
		if val >= len(row) {
			continue
		}
		id := keyOf(row[0])
		inner, ok := out[id]
		if !ok {
			inner = map[string]any{}
			out[id] = inner
		}
		inner[keyOf(row[1])] = row[val]
	}
	return out
}

// shapeTable keeps the last row per key.
func shapeTable(rows []dscore.Row, key int) map[string]dscore.Row {
	out := map[string]dscore.Row{}
	if !hasFields(rows, key) {
		return out
	}
	for _, row := range rows {
		out[keyOf(row[key])] = row
	}
	return out
}

// shapeView keeps the last record per key.
func shapeView(recs []dscore.Record, name string) map[string]dscore.Record {
	out := map[string]dscore.Record{}
	i, ok := fieldName(recs, name)
	if !ok {
		return out
	}
	column := recs[0].Columns[i]
	for _, rec := range recs {
		v, _ := rec.Get(column)
		out[keyOf(v)] = rec
	}
	return out
}

// firstArray returns the first row with positional and named access.
func firstArray(res dscore.Result) (dscore.Record, error) {
	defer func() { _ = res.Free() }()
	rec, ok := res.FetchArray()
	for {
		if _, more := res.FetchRow(); !more {
			break
		}
	}
	if err := res.Err(); err != nil {
		return dscore.Record{}, dscore.AsFail(err, dscore.StatusQueryFailed)
	}
	if !ok {
		return dscore.Record{}, nil
	}
	return rec, nil
}

// firstField returns the first field of the first row, or "" without rows.
func firstField(res dscore.Result) (any, error) {
	_, rows, err := fetchRows(res)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return "", nil
	}
	return rows[0][0], nil
}
