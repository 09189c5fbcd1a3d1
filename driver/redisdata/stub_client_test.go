package redisdata

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// stubClient is an in-memory Client with one keyspace per database index.
type stubClient struct {
	dbs      map[int]map[string]string
	ttl      map[string]time.Duration
	selected int
	closed   int

	pingErr   error
	selectErr error
	getErr    error
	setErr    error
}

func newStubClient() *stubClient {
	return &stubClient{dbs: map[int]map[string]string{}, ttl: map[string]time.Duration{}}
}

func (c *stubClient) keyspace() map[string]string {
	space, ok := c.dbs[c.selected]
	if !ok {
		space = map[string]string{}
		c.dbs[c.selected] = space
	}
	return space
}

func (c *stubClient) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if c.pingErr != nil {
		cmd.SetErr(c.pingErr)
		return cmd
	}
	cmd.SetVal("PONG")
	return cmd
}

func (c *stubClient) Select(ctx context.Context, index int) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if c.selectErr != nil {
		cmd.SetErr(c.selectErr)
		return cmd
	}
	c.selected = index
	cmd.SetVal("OK")
	return cmd
}

func (c *stubClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	if c.getErr != nil {
		cmd.SetErr(c.getErr)
		return cmd
	}
	if val, ok := c.keyspace()[key]; ok {
		cmd.SetVal(val)
		return cmd
	}
	cmd.SetErr(redis.Nil)
	return cmd
}

func (c *stubClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if c.setErr != nil {
		cmd.SetErr(c.setErr)
		return cmd
	}
	c.put(key, value, expiration)
	cmd.SetVal("OK")
	return cmd
}

func (c *stubClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if _, exists := c.keyspace()[key]; exists {
		cmd.SetVal(false)
		return cmd
	}
	c.put(key, value, expiration)
	cmd.SetVal(true)
	return cmd
}

func (c *stubClient) SetXX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	if _, exists := c.keyspace()[key]; !exists {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	c.put(key, value, expiration)
	cmd.SetVal(true)
	return cmd
}

func (c *stubClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	var removed int64
	for _, key := range keys {
		if _, ok := c.keyspace()[key]; ok {
			delete(c.keyspace(), key)
			removed++
		}
	}
	cmd.SetVal(removed)
	return cmd
}

func (c *stubClient) FlushDB(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	delete(c.dbs, c.selected)
	cmd.SetVal("OK")
	return cmd
}

func (c *stubClient) Close() error {
	c.closed++
	return nil
}

func (c *stubClient) put(key string, value interface{}, expiration time.Duration) {
	bytes, _ := value.([]byte)
	c.keyspace()[key] = string(bytes)
	c.ttl[key] = expiration
}
