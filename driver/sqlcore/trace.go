package sqlcore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/ngrok/sqlmw"
)

// traceInterceptor logs every statement through the package logger at TRACE.
type traceInterceptor struct {
	sqlmw.NullInterceptor
}

func (traceInterceptor) ConnQueryContext(ctx context.Context, conn driver.QueryerContext, query string, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	rows, err := conn.QueryContext(ctx, query, args)
	traceStatement("query", query, start, err)
	return rows, err
}

func (traceInterceptor) ConnExecContext(ctx context.Context, conn driver.ExecerContext, query string, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	res, err := conn.ExecContext(ctx, query, args)
	traceStatement("exec", query, start, err)
	return res, err
}

func traceStatement(op, query string, start time.Time, err error) {
	if !logger.IsTraceEnabled() {
		return
	}
	if err != nil {
		logger.Tracef("%s failed after %s: %s: %v", op, time.Since(start), query, err)
		return
	}
	logger.Tracef("%s took %s: %s", op, time.Since(start), query)
}

var (
	tracedMu    sync.Mutex
	tracedNames = map[string]string{}
)

// TracedDriver registers (once) a tracing wrapper around a database/sql driver
// and returns the wrapper's name.
func TracedDriver(name string) (string, error) {
	tracedMu.Lock()
	defer tracedMu.Unlock()
	if traced, ok := tracedNames[name]; ok {
		return traced, nil
	}
	// sql.Open never dials, so this only resolves the registered driver.
	probe, err := sql.Open(name, "")
	if err != nil {
		return "", errors.Annotatef(err, "resolve sql driver %q", name)
	}
	base := probe.Driver()
	_ = probe.Close()

	traced := name + "+trace"
	sql.Register(traced, sqlmw.Driver(base, traceInterceptor{}))
	tracedNames[name] = traced
	return traced, nil
}
