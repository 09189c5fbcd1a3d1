package sqlcore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/goforj/datasource/dscore"
)

// Driver is the stateless SQL capability adapter for one backend tag.
type Driver struct {
	dialect Dialect
}

// NewDriver builds the adapter for a dialect.
func NewDriver(dialect Dialect) *Driver {
	if dialect.Escape == nil {
		dialect.Escape = EscapeQuotes
	}
	return &Driver{dialect: dialect}
}

func (d *Driver) Type() dscore.Type { return d.dialect.Type }

// Query runs a statement and buffers every row. Statements that yield no rows
// run through Exec so affected rows and insert id are recorded.
func (d *Driver) Query(ctx context.Context, link dscore.Link, query string) (dscore.Result, error) {
	l, err := d.link(link)
	if err != nil {
		return nil, err
	}
	if !ReturnsRows(query) {
		if _, err := d.Exec(ctx, link, query); err != nil {
			return nil, err
		}
		return dscore.NewBufferedResult(nil, nil), nil
	}
	rows, err := d.query(ctx, l, query)
	if err != nil {
		return nil, err
	}
	columns, buffered, err := drain(rows)
	if err != nil {
		l.record(err, 0, 0)
		return nil, dscore.WrapFail(dscore.StatusQueryFailed, err, "fetch failed")
	}
	l.record(nil, int64(len(buffered)), 0)
	return dscore.NewBufferedResult(columns, buffered), nil
}

// UnbufQuery runs a statement and streams its rows.
func (d *Driver) UnbufQuery(ctx context.Context, link dscore.Link, query string) (dscore.Result, error) {
	l, err := d.link(link)
	if err != nil {
		return nil, err
	}
	if !ReturnsRows(query) {
		if _, err := d.Exec(ctx, link, query); err != nil {
			return nil, err
		}
		return dscore.NewBufferedResult(nil, nil), nil
	}
	rows, err := d.query(ctx, l, query)
	if err != nil {
		return nil, err
	}
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		l.record(err, 0, 0)
		return nil, dscore.WrapFail(dscore.StatusQueryFailed, err, "read columns")
	}
	l.record(nil, 0, 0)
	return &streamResult{rows: rows, columns: columns, link: l}, nil
}

// Exec runs a statement that yields no rows and returns the affected row count.
func (d *Driver) Exec(ctx context.Context, link dscore.Link, query string) (int64, error) {
	l, err := d.link(link)
	if err != nil {
		return 0, err
	}
	logger.Tracef("%s exec: %s", d.dialect.Type, query)
	res, err := l.conn.ExecContext(ctx, query)
	if err != nil {
		l.record(err, 0, 0)
		return 0, dscore.WrapFail(dscore.StatusQueryFailed, err, "query failed")
	}
	affected, _ := res.RowsAffected()
	// pgx reports no insert id; the zero value stands.
	insertID, _ := res.LastInsertId()
	l.record(nil, affected, insertID)
	return affected, nil
}

func (d *Driver) Escape(_ dscore.Link, s string) string { return d.dialect.Escape(s) }

func (d *Driver) Error(link dscore.Link) string {
	l, err := d.link(link)
	if err != nil {
		return err.Error()
	}
	if last := l.LastError(); last != nil {
		return last.Error()
	}
	return ""
}

func (d *Driver) Errno(link dscore.Link) int {
	l, err := d.link(link)
	if err != nil {
		return -1
	}
	last := l.LastError()
	if last == nil || d.dialect.Errno == nil {
		return 0
	}
	return d.dialect.Errno(last)
}

func (d *Driver) Affected(link dscore.Link) int64 {
	l, err := d.link(link)
	if err != nil {
		return 0
	}
	affected, _ := l.counters()
	return affected
}

func (d *Driver) InsertID(link dscore.Link) int64 {
	l, err := d.link(link)
	if err != nil {
		return 0
	}
	_, id := l.counters()
	return id
}

func (d *Driver) link(link dscore.Link) (*Link, error) {
	l, ok := link.(*Link)
	if !ok || l == nil || l.conn == nil {
		return nil, dscore.NewFail(dscore.StatusConnectionNotInit, "%s adapter given no sql link", d.dialect.Type)
	}
	return l, nil
}

func (d *Driver) query(ctx context.Context, l *Link, query string) (*sql.Rows, error) {
	logger.Tracef("%s query: %s", d.dialect.Type, query)
	rows, err := l.conn.QueryContext(ctx, query)
	if err != nil {
		l.record(err, 0, 0)
		return nil, dscore.WrapFail(dscore.StatusQueryFailed, err, "query failed")
	}
	return rows, nil
}

var rowKeywords = map[string]bool{
	"select":   true,
	"show":     true,
	"with":     true,
	"pragma":   true,
	"explain":  true,
	"describe": true,
	"desc":     true,
	"values":   true,
	"table":    true,
}

// ReturnsRows guesses from the leading keyword whether a statement yields a result set.
// Leading comments and parentheses are skipped.
func ReturnsRows(query string) bool {
	q := skipPrelude(query)
	end := strings.IndexFunc(q, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end < 0 {
		end = len(q)
	}
	if rowKeywords[strings.ToLower(q[:end])] {
		return true
	}
	return strings.Contains(strings.ToLower(q), " returning ")
}

// skipPrelude drops leading whitespace, opening parentheses and comments.
func skipPrelude(q string) string {
	for {
		q = strings.TrimLeft(q, " \t\r\n(")
		switch {
		case strings.HasPrefix(q, "--"), strings.HasPrefix(q, "#"):
			i := strings.IndexByte(q, '\n')
			if i < 0 {
				return ""
			}
			q = q[i+1:]
		case strings.HasPrefix(q, "/*"):
			i := strings.Index(q[2:], "*/")
			if i < 0 {
				return ""
			}
			q = q[i+4:]
		default:
			return q
		}
	}
}
