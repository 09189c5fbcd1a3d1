package sqlcore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync/atomic"
)

// fakeDriver dials fake connections that fail on open or ping on demand.
type fakeDriver struct {
	openErr error
	pingErr error
	closed  atomic.Int32
}

func (d *fakeDriver) Open(string) (driver.Conn, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return &fakeConn{driver: d}, nil
}

type fakeConn struct {
	driver *fakeDriver
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not impl") }
func (c *fakeConn) Begin() (driver.Tx, error)           { return nil, errors.New("not impl") }

func (c *fakeConn) Close() error {
	c.driver.closed.Add(1)
	return nil
}

func (c *fakeConn) Ping(context.Context) error { return c.driver.pingErr }

func (c *fakeConn) ExecContext(context.Context, string, []driver.NamedValue) (driver.Result, error) {
	return driver.RowsAffected(1), nil
}

var (
	refusingDriver = &fakeDriver{openErr: errors.New("connection refused")}
	pingFailDriver = &fakeDriver{pingErr: errors.New("ping boom")}
	healthyDriver  = &fakeDriver{}
)

func init() {
	sql.Register("sqlcore-refuse", refusingDriver)
	sql.Register("sqlcore-pingfail", pingFailDriver)
	sql.Register("sqlcore-healthy", healthyDriver)
}
