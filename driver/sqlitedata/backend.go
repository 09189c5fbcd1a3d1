// Package sqlitedata wires file-based sqlite sources through modernc.org/sqlite.
package sqlitedata

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goforj/datasource/driver/sqlcore"
	"github.com/goforj/datasource/dscore"
	"github.com/juju/loggo"
	"modernc.org/sqlite"
)

var logger = loggo.GetLogger("datasource.sqlite")

const memoryName = ":memory:"

var (
	openLink = sqlcore.Open
	mkdirAll = os.MkdirAll
)

// Spec describes the sqlite property bag. sqlite carries no connection state.
func Spec() dscore.ConfigSpec {
	return dscore.ConfigSpec{
		Type: dscore.TypeSQLite,
		Slots: []dscore.Slot{
			{Name: "dbname", Default: "test.db"},
			{Name: "mode", Default: "full"},
			{Name: "key"},
			{Name: "prefix"},
			{Name: "busy_timeout"},
		},
		Aliases: map[string]string{
			"db": "dbname", "database": "dbname", "file": "dbname",
			"access": "mode",
			"pref":   "prefix",
		},
		Provider: []string{"dbname", "mode"},
		Connect:  []string{"dbname", "mode"},
		State:    []string{},
	}
}

// Dialect returns the sqlite SQL facts.
func Dialect() sqlcore.Dialect {
	return sqlcore.Dialect{
		Type:       dscore.TypeSQLite,
		DriverName: "sqlite",
		Escape:     sqlcore.EscapeQuotes,
		Errno:      Errno,
	}
}

// Backend binds the sqlite tag to its spec, opener and adapter.
func Backend() dscore.Backend {
	dialect := Dialect()
	return dscore.Backend{
		Spec:   Spec(),
		Open:   Open,
		Driver: func() dscore.Driver { return sqlcore.NewDriver(dialect) },
	}
}

// Open creates the parent directory in full mode and opens the file.
func Open(ctx context.Context, cfg *dscore.Config) (dscore.Link, error) {
	if cfg.Get("key") != "" {
		return nil, dscore.NewFail(dscore.StatusExtensionNotLoaded, "sqlite encryption is not available")
	}
	path := cfg.Get("dbname")
	if writable(cfg) && path != memoryName {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := mkdirAll(dir, 0o755); err != nil {
				return nil, dscore.WrapFail(dscore.StatusMakeDirFailure, err, "create directory %s", dir)
			}
		}
	}
	dsn, err := FormatDSN(cfg)
	if err != nil {
		return nil, err
	}
	link, err := openLink(ctx, Dialect(), dsn, nil)
	if err != nil {
		return nil, dscore.WrapFail(dscore.StatusConnectionRefused, err, "open %s", path)
	}
	logger.Debugf("opened sqlite %s", path)
	return link, nil
}

// FormatDSN renders the dbname as a sqlite URI filename.
func FormatDSN(cfg *dscore.Config) (string, error) {
	path := cfg.Get("dbname")
	q := url.Values{}
	if writable(cfg) {
		q.Set("mode", "rwc")
	} else {
		q.Set("mode", "ro")
	}
	timeout, err := cfg.Duration("busy_timeout")
	if err != nil {
		return "", dscore.WrapFail(dscore.StatusTimeoutNotChanged, err, "busy_timeout %q", cfg.Get("busy_timeout"))
	}
	if timeout > 0 {
		q.Set("_pragma", "busy_timeout("+strconv.FormatInt(timeout.Milliseconds(), 10)+")")
	}
	if path == memoryName {
		return "file::memory:?" + q.Encode(), nil
	}
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + q.Encode(), nil
}

// Errno returns the sqlite result code carried by err, or 0.
func Errno(err error) int {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()
	}
	return 0
}

func writable(cfg *dscore.Config) bool {
	return strings.EqualFold(cfg.Get("mode"), "full")
}
