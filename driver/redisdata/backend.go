// Package redisdata wires redis sources through go-redis. Each link pins one
// server connection so the selected database survives between calls.
package redisdata

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/goforj/datasource/dscore"
	"github.com/juju/loggo"
	"github.com/redis/go-redis/v9"
)

var logger = loggo.GetLogger("datasource.redis")

// Client captures the subset of a pinned redis connection used by the adapter.
type Client interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Select(ctx context.Context, index int) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	SetXX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	FlushDB(ctx context.Context) *redis.StatusCmd
	Close() error
}

// pinned owns the pool that produced its single connection.
type pinned struct {
	*redis.Conn
	owner *redis.Client
}

func (p pinned) Close() error {
	err := p.Conn.Close()
	if ownerErr := p.owner.Close(); err == nil {
		err = ownerErr
	}
	return err
}

var dialRedis = func(opts *redis.Options) Client {
	owner := redis.NewClient(opts)
	return pinned{Conn: owner.Conn(), owner: owner}
}

// Spec describes the redis property bag. The selected database is state.
func Spec() dscore.ConfigSpec {
	return dscore.ConfigSpec{
		Type: dscore.TypeRedis,
		Slots: []dscore.Slot{
			{Name: "host", Default: "localhost"},
			{Name: "port", Default: "6379"},
			{Name: "user"},
			{Name: "password"},
			{Name: "database", Default: "0"},
			{Name: "prefix"},
		},
		Aliases: map[string]string{
			"h": "host", "server": "host",
			"u": "user",
			"p": "password", "pwd": "password", "pass": "password",
			"db": "database", "dbname": "database",
			"pref": "prefix",
		},
		Provider: []string{"host", "port", "user", "password", "database", "prefix"},
		Connect:  []string{"host", "port", "user", "password"},
		State:    []string{"database"},
	}
}

// Backend binds the redis tag to its spec, opener and adapter.
func Backend() dscore.Backend {
	return dscore.Backend{
		Spec:   Spec(),
		Open:   Open,
		Driver: func() dscore.Driver { return NewDriver() },
	}
}

// Link is one pinned redis connection.
type Link struct {
	client Client
	addr   string
}

// NewLink wraps an already-connected client.
func NewLink(client Client, addr string) *Link { return &Link{client: client, addr: addr} }

// Open connects and pings the configured server.
func Open(ctx context.Context, cfg *dscore.Config) (dscore.Link, error) {
	addr := net.JoinHostPort(cfg.Get("host"), cfg.Get("port"))
	client := dialRedis(&redis.Options{
		Addr:     addr,
		Username: cfg.Get("user"),
		Password: cfg.Get("password"),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, dscore.WrapFail(dscore.StatusConnectionRefused, err, "connect redis %s", addr)
	}
	logger.Debugf("connected to redis %s", addr)
	return NewLink(client, addr), nil
}

// SetState selects the database named by the state vector.
func (l *Link) SetState(ctx context.Context, state dscore.State) error {
	raw := state.At(0)
	if raw == "" {
		raw = "0"
	}
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		return dscore.NewFail(dscore.StatusStateNotEstablished, "redis database %q is not an index", raw)
	}
	if err := l.client.Select(ctx, index).Err(); err != nil {
		return dscore.WrapFail(dscore.StatusStateNotEstablished, err, "select database %d", index)
	}
	logger.Tracef("redis %s selected database %d", l.addr, index)
	return nil
}

// Client exposes the pinned connection.
func (l *Link) Client() Client { return l.client }

func (l *Link) Close() error { return l.client.Close() }
