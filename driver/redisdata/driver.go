package redisdata

import (
	"context"
	"errors"
	"time"

	"github.com/goforj/datasource/dscore"
	"github.com/redis/go-redis/v9"
)

// Driver adapts redis links to the hash capability set.
type Driver struct{}

// NewDriver returns the redis adapter.
func NewDriver() *Driver { return &Driver{} }

func (*Driver) Type() dscore.Type { return dscore.TypeRedis }

func (*Driver) AddData(ctx context.Context, link dscore.Link, key string, value []byte, expire time.Duration) (bool, error) {
	l, err := asLink(link)
	if err != nil {
		return false, err
	}
	created, err := l.client.SetNX(ctx, key, value, expiry(expire)).Result()
	return created, failed(err, "add %s", key)
}

func (*Driver) GetData(ctx context.Context, link dscore.Link, key string) ([]byte, bool, error) {
	l, err := asLink(link)
	if err != nil {
		return nil, false, err
	}
	value, err := l.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, failed(err, "get %s", key)
	}
	return value, true, nil
}

func (*Driver) SetData(ctx context.Context, link dscore.Link, key string, value []byte, expire time.Duration) error {
	l, err := asLink(link)
	if err != nil {
		return err
	}
	return failed(l.client.Set(ctx, key, value, expiry(expire)).Err(), "set %s", key)
}

func (*Driver) ReplaceData(ctx context.Context, link dscore.Link, key string, value []byte, expire time.Duration) (bool, error) {
	l, err := asLink(link)
	if err != nil {
		return false, err
	}
	replaced, err := l.client.SetXX(ctx, key, value, expiry(expire)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return replaced, failed(err, "replace %s", key)
}

func (*Driver) DeleteData(ctx context.Context, link dscore.Link, key string) error {
	l, err := asLink(link)
	if err != nil {
		return err
	}
	return failed(l.client.Del(ctx, key).Err(), "delete %s", key)
}

// FlushData empties the selected database only.
func (*Driver) FlushData(ctx context.Context, link dscore.Link) error {
	l, err := asLink(link)
	if err != nil {
		return err
	}
	return failed(l.client.FlushDB(ctx).Err(), "flush")
}

// expiry maps a non-positive expiry to no expiry.
func expiry(expire time.Duration) time.Duration {
	if expire <= 0 {
		return 0
	}
	return expire
}

func asLink(link dscore.Link) (*Link, error) {
	l, ok := link.(*Link)
	if !ok || l == nil || l.client == nil {
		return nil, dscore.NewFail(dscore.StatusConnectionNotInit, "link %T is not a redis link", link)
	}
	return l, nil
}

func failed(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	logger.Warningf("redis: %v", err)
	return dscore.WrapFail(dscore.StatusQueryFailed, err, format, args...)
}
