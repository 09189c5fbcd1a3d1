// Package mysqldata wires mysql and mariadb sources through go-sql-driver/mysql.
package mysqldata

import (
	"context"
	"errors"
	"net"
	"regexp"

	"github.com/go-sql-driver/mysql"
	"github.com/goforj/datasource/driver/sqlcore"
	"github.com/goforj/datasource/dscore"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("datasource.mysql")

const errUnknownDatabase = 1049

var charsetRE = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// openLink is replaced in tests.
var openLink = sqlcore.Open

// Spec describes the mysql property bag for a tag of the mysql family.
func Spec(typ dscore.Type) dscore.ConfigSpec {
	return dscore.ConfigSpec{
		Type: typ,
		Slots: []dscore.Slot{
			{Name: "host", Default: "localhost"},
			{Name: "port", Default: "3306"},
			{Name: "socket"},
			{Name: "user", Default: "root"},
			{Name: "password"},
			{Name: "database", Default: "test"},
			{Name: "prefix"},
			{Name: "create", Default: "on"},
			{Name: "charset", Default: "utf8mb4"},
			{Name: "lang", Default: "utf8"},
			{Name: "autocommit", Default: "on"},
			{Name: "connect_timeout"},
			{Name: "read_timeout"},
			{Name: "real_connect", Default: "on"},
		},
		Aliases: map[string]string{
			"h": "host", "server": "host",
			"u": "user", "uid": "user",
			"p": "password", "pwd": "password", "pass": "password",
			"db": "database", "dbname": "database",
			"cs":   "charset",
			"l":    "lang", "err": "lang",
			"real": "real_connect",
			"pref": "prefix",
		},
		Provider: []string{"host", "port", "user", "password", "database", "charset"},
		Connect:  []string{"host", "port", "socket", "user", "password"},
		State:    []string{"database", "charset", "create"},
	}
}

// Dialect returns the SQL facts for a mysql-family tag.
func Dialect(typ dscore.Type) sqlcore.Dialect {
	return sqlcore.Dialect{
		Type:       typ,
		DriverName: "mysql",
		Escape:     sqlcore.EscapeBackslash,
		Errno:      Errno,
	}
}

// Backend binds a mysql-family tag to its spec, opener and adapter.
func Backend(typ dscore.Type) dscore.Backend {
	dialect := Dialect(typ)
	return dscore.Backend{
		Spec:   Spec(typ),
		Open:   Open,
		Driver: func() dscore.Driver { return sqlcore.NewDriver(dialect) },
	}
}

// Open dials the server; the database is selected later by state reconciliation.
func Open(ctx context.Context, cfg *dscore.Config) (dscore.Link, error) {
	dsn, err := FormatDSN(cfg)
	if err != nil {
		return nil, err
	}
	link, err := openLink(ctx, Dialect(cfg.Type()), dsn, setState)
	if err != nil {
		return nil, classify(err)
	}
	if !cfg.Bool("autocommit") {
		if _, err := link.Conn().ExecContext(ctx, "SET autocommit = 0"); err != nil {
			_ = link.Close()
			return nil, dscore.WrapFail(dscore.StatusStopAutocommitFailure, err, "disable autocommit")
		}
	}
	return link, nil
}

// FormatDSN renders the connect slots as a go-sql-driver DSN.
func FormatDSN(cfg *dscore.Config) (string, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.Get("user")
	mc.Passwd = cfg.Get("password")
	if socket := cfg.Get("socket"); socket != "" {
		mc.Net = "unix"
		mc.Addr = socket
	} else {
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Get("host"), cfg.Get("port"))
	}
	timeout, err := cfg.Duration("connect_timeout")
	if err != nil {
		return "", dscore.WrapFail(dscore.StatusTimeoutNotChanged, err, "connect_timeout %q", cfg.Get("connect_timeout"))
	}
	readTimeout, err := cfg.Duration("read_timeout")
	if err != nil {
		return "", dscore.WrapFail(dscore.StatusTimeoutNotChanged, err, "read_timeout %q", cfg.Get("read_timeout"))
	}
	mc.Timeout = timeout
	mc.ReadTimeout = readTimeout
	return mc.FormatDSN(), nil
}

// Errno returns the server error number carried by err, or 0.
func Errno(err error) int {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return int(me.Number)
	}
	return 0
}

// classify maps server errors below 2000 to a refusal and everything else to an outage.
func classify(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number < 2000 {
		return dscore.WrapFail(dscore.StatusConnectionRefused, err, "connection refused")
	}
	return dscore.WrapFail(dscore.StatusServerDown, err, "server unreachable")
}

func setState(ctx context.Context, link *sqlcore.Link, state dscore.State) error {
	database, charset, create := state.At(0), state.At(1), dscore.Truthy(state.At(2))
	conn := link.Conn()
	if charset != "" {
		if !charsetRE.MatchString(charset) {
			return dscore.NewFail(dscore.StatusSetCharsetNameFailure, "invalid charset %q", charset)
		}
		if _, err := conn.ExecContext(ctx, "SET NAMES "+charset); err != nil {
			return dscore.WrapFail(dscore.StatusSetCharsetNameFailure, err, "set charset %s", charset)
		}
	}
	if database == "" {
		return nil
	}
	use := "USE " + sqlcore.QuoteIdent(database, '`')
	_, err := conn.ExecContext(ctx, use)
	if err == nil {
		return nil
	}
	if !create || Errno(err) != errUnknownDatabase {
		return dscore.WrapFail(dscore.StatusStateNotEstablished, err, "select database %s", database)
	}
	stmt := "CREATE DATABASE IF NOT EXISTS " + sqlcore.QuoteIdent(database, '`')
	if charset != "" {
		stmt += " CHARACTER SET " + charset
	}
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return dscore.WrapFail(dscore.StatusStateNotEstablished, err, "create database %s", database)
	}
	logger.Infof("created database %s", database)
	if _, err := conn.ExecContext(ctx, use); err != nil {
		return dscore.WrapFail(dscore.StatusStateNotEstablished, err, "select database %s", database)
	}
	return nil
}
