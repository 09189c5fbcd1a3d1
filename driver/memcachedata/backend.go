// Package memcachedata wires memcache sources over the text protocol.
package memcachedata

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/goforj/datasource/dscore"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("datasource.memcache")

var dialMemcached = func(ctx context.Context, network, addr string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, network, addr)
}

// Spec describes the memcache property bag. memcache carries no connection state.
func Spec() dscore.ConfigSpec {
	return dscore.ConfigSpec{
		Type: dscore.TypeMemcache,
		Slots: []dscore.Slot{
			{Name: "host", Default: "localhost"},
			{Name: "port", Default: "11211"},
			{Name: "prefix"},
			{Name: "timeout", Default: "3s"},
		},
		Aliases: map[string]string{
			"h": "host", "server": "host",
			"p":    "port",
			"pref": "prefix",
		},
		Provider: []string{"host", "port", "prefix"},
		Connect:  []string{"host", "port"},
		State:    []string{},
	}
}

// Backend binds the memcache tag to its spec, opener and adapter.
func Backend() dscore.Backend {
	return dscore.Backend{
		Spec:   Spec(),
		Open:   Open,
		Driver: func() dscore.Driver { return NewDriver() },
	}
}

// Link is one pinned memcache connection.
type Link struct {
	mu      sync.Mutex
	addr    string
	timeout time.Duration
	conn    net.Conn
	reader  *bufio.Reader
}

// Open dials the configured server.
func Open(ctx context.Context, cfg *dscore.Config) (dscore.Link, error) {
	timeout, err := cfg.Duration("timeout")
	if err != nil {
		return nil, dscore.WrapFail(dscore.StatusTimeoutNotChanged, err, "timeout %q", cfg.Get("timeout"))
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	addr := net.JoinHostPort(cfg.Get("host"), cfg.Get("port"))
	conn, err := dialMemcached(ctx, "tcp", addr, timeout)
	if err != nil {
		return nil, dscore.WrapFail(dscore.StatusConnectionRefused, err, "dial memcache %s", addr)
	}
	logger.Debugf("connected to memcache %s", addr)
	return &Link{addr: addr, timeout: timeout, conn: conn, reader: bufio.NewReader(conn)}, nil
}

// SetState accepts only the empty state.
func (l *Link) SetState(context.Context, dscore.State) error { return nil }

// Addr returns the server address.
func (l *Link) Addr() string { return l.addr }

func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}
