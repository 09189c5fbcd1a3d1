// Package pgsqldata wires postgres sources through the pgx stdlib driver.
package pgsqldata

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"

	"github.com/goforj/datasource/driver/sqlcore"
	"github.com/goforj/datasource/dscore"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("datasource.pgsql")

const publicSchema = "public"

var openLink = sqlcore.Open

// Spec describes the postgres property bag.
func Spec() dscore.ConfigSpec {
	return dscore.ConfigSpec{
		Type: dscore.TypePgSQL,
		Slots: []dscore.Slot{
			{Name: "host", Default: "localhost"},
			{Name: "port", Default: "5432"},
			{Name: "user", Default: "root"},
			{Name: "password"},
			{Name: "dbname", Default: "postgres"},
			{Name: "schema", Default: publicSchema},
			{Name: "create", Default: "off"},
			{Name: "prefix"},
			{Name: "sslmode", Default: "disable"},
			{Name: "connect_timeout"},
		},
		Aliases: map[string]string{
			"h": "host", "server": "host",
			"u": "user", "uid": "user",
			"p": "password", "pwd": "password", "pass": "password",
			"db": "dbname", "database": "dbname",
			"ssl":  "sslmode",
			"pref": "prefix",
		},
		Provider: []string{"host", "port", "dbname", "user", "password", "schema"},
		Connect:  []string{"host", "port", "dbname", "user", "password", "sslmode"},
		State:    []string{"dbname", "schema", "create"},
	}
}

// Dialect returns the postgres SQL facts.
func Dialect() sqlcore.Dialect {
	return sqlcore.Dialect{
		Type:       dscore.TypePgSQL,
		DriverName: "pgx",
		Escape:     sqlcore.EscapeQuotes,
		Errno:      Errno,
	}
}

// Backend binds the pgsql tag to its spec, opener and adapter.
func Backend() dscore.Backend {
	dialect := Dialect()
	return dscore.Backend{
		Spec:   Spec(),
		Open:   Open,
		Driver: func() dscore.Driver { return sqlcore.NewDriver(dialect) },
	}
}

// Open dials the database named by the config; the schema is set by reconciliation.
func Open(ctx context.Context, cfg *dscore.Config) (dscore.Link, error) {
	dsn, err := FormatDSN(cfg)
	if err != nil {
		return nil, err
	}
	link, err := openLink(ctx, Dialect(), dsn, setState)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, dscore.WrapFail(dscore.StatusConnectionRefused, err, "connection refused")
		}
		return nil, dscore.WrapFail(dscore.StatusServerDown, err, "server unreachable")
	}
	return link, nil
}

// FormatDSN renders the connect slots as a postgres URL.
func FormatDSN(cfg *dscore.Config) (string, error) {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Get("host"), cfg.Get("port")),
		Path:   "/" + cfg.Get("dbname"),
	}
	if pass := cfg.Get("password"); pass != "" {
		u.User = url.UserPassword(cfg.Get("user"), pass)
	} else {
		u.User = url.User(cfg.Get("user"))
	}
	q := url.Values{}
	if mode := cfg.Get("sslmode"); mode != "" {
		q.Set("sslmode", mode)
	}
	timeout, err := cfg.Duration("connect_timeout")
	if err != nil {
		return "", dscore.WrapFail(dscore.StatusTimeoutNotChanged, err, "connect_timeout %q", cfg.Get("connect_timeout"))
	}
	if timeout > 0 {
		secs := int(timeout.Seconds())
		if secs < 1 {
			secs = 1
		}
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Errno returns the numeric part of a SQLSTATE when it has one, else 0.
func Errno(err error) int {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0
	}
	n, convErr := strconv.Atoi(pgErr.Code)
	if convErr != nil {
		return -1
	}
	return n
}

func setState(ctx context.Context, link *sqlcore.Link, state dscore.State) error {
	schema, create := state.At(1), dscore.Truthy(state.At(2))
	if schema == "" {
		schema = publicSchema
	}
	quoted := sqlcore.QuoteIdent(schema, '"')
	conn := link.Conn()
	if create && schema != publicSchema {
		if _, err := conn.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoted); err != nil {
			return dscore.WrapFail(dscore.StatusStateNotEstablished, err, "create schema %s", schema)
		}
		logger.Debugf("ensured schema %s", schema)
	}
	if _, err := conn.ExecContext(ctx, "SET search_path TO "+quoted); err != nil {
		return dscore.WrapFail(dscore.StatusStateNotEstablished, err, "set search_path %s", schema)
	}
	return nil
}
