package sqlcore

import (
	"context"
	"database/sql"
	"sync"

	"github.com/goforj/datasource/dscore"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("datasource.sqlcore")

// Dialect captures the per-backend facts the shared adapter needs.
type Dialect struct {
	Type dscore.Type
	// DriverName is the database/sql driver the link opens through.
	DriverName string
	Escape     func(string) string
	// Errno extracts the native error number, 0 when unknown.
	Errno func(error) int
}

// StateFunc drives a link into a state vector.
type StateFunc func(ctx context.Context, link *Link, state dscore.State) error

// Link pins one *sql.Conn so session state survives between calls.
type Link struct {
	dialect  Dialect
	db       *sql.DB
	conn     *sql.Conn
	setState StateFunc

	mu       sync.Mutex
	lastErr  error
	affected int64
	insertID int64
}

// Open dials through the traced wrapper of the dialect's driver and pins a connection.
func Open(ctx context.Context, dialect Dialect, dsn string, setState StateFunc) (*Link, error) {
	name, err := TracedDriver(dialect.DriverName)
	if err != nil {
		return nil, errors.Trace(err)
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, errors.Trace(err)
	}
	db.SetMaxOpenConns(1)
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, err
	}
	link := NewLink(conn, dialect, setState)
	link.db = db
	logger.Debugf("opened %s link", dialect.Type)
	return link, nil
}

// NewLink wraps an already pinned connection.
func NewLink(conn *sql.Conn, dialect Dialect, setState StateFunc) *Link {
	return &Link{conn: conn, dialect: dialect, setState: setState}
}

// Conn exposes the pinned connection to state functions.
func (l *Link) Conn() *sql.Conn { return l.conn }

// Dialect returns the link's dialect.
func (l *Link) Dialect() Dialect { return l.dialect }

// SetState implements dscore.Link.
func (l *Link) SetState(ctx context.Context, state dscore.State) error {
	if l.setState == nil {
		return nil
	}
	return l.setState(ctx, l, state)
}

// Close releases the pinned connection and its pool.
func (l *Link) Close() error {
	err := l.conn.Close()
	if l.db != nil {
		if dbErr := l.db.Close(); err == nil {
			err = dbErr
		}
	}
	return err
}

// LastError returns the error of the most recent call, nil on success.
func (l *Link) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *Link) record(err error, affected, insertID int64) {
	l.mu.Lock()
	l.lastErr = err
	l.affected = affected
	l.insertID = insertID
	l.mu.Unlock()
}

func (l *Link) counters() (int64, int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.affected, l.insertID
}
