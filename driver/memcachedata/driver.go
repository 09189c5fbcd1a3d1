package memcachedata

import (
	"context"
	"time"

	"github.com/goforj/datasource/dscore"
)

// Driver adapts memcache links to the hash capability set.
type Driver struct{}

// NewDriver returns the memcache adapter.
func NewDriver() *Driver { return &Driver{} }

func (*Driver) Type() dscore.Type { return dscore.TypeMemcache }

func (*Driver) AddData(ctx context.Context, link dscore.Link, key string, value []byte, expire time.Duration) (bool, error) {
	l, err := keyed(link, key)
	if err != nil {
		return false, err
	}
	ok, err := l.store(ctx, "add", key, value, expire)
	return ok, failed(err, "add %s", key)
}

func (*Driver) GetData(ctx context.Context, link dscore.Link, key string) ([]byte, bool, error) {
	l, err := keyed(link, key)
	if err != nil {
		return nil, false, err
	}
	value, ok, err := l.get(ctx, key)
	return value, ok, failed(err, "get %s", key)
}

func (*Driver) SetData(ctx context.Context, link dscore.Link, key string, value []byte, expire time.Duration) error {
	l, err := keyed(link, key)
	if err != nil {
		return err
	}
	_, err = l.store(ctx, "set", key, value, expire)
	return failed(err, "set %s", key)
}

func (*Driver) ReplaceData(ctx context.Context, link dscore.Link, key string, value []byte, expire time.Duration) (bool, error) {
	l, err := keyed(link, key)
	if err != nil {
		return false, err
	}
	ok, err := l.store(ctx, "replace", key, value, expire)
	return ok, failed(err, "replace %s", key)
}

func (*Driver) DeleteData(ctx context.Context, link dscore.Link, key string) error {
	l, err := keyed(link, key)
	if err != nil {
		return err
	}
	return failed(l.remove(ctx, key), "delete %s", key)
}

func (*Driver) FlushData(ctx context.Context, link dscore.Link) error {
	l, err := asLink(link)
	if err != nil {
		return err
	}
	return failed(l.flush(ctx), "flush")
}

func asLink(link dscore.Link) (*Link, error) {
	l, ok := link.(*Link)
	if !ok || l == nil {
		return nil, dscore.NewFail(dscore.StatusConnectionNotInit, "link %T is not a memcache link", link)
	}
	return l, nil
}

// maxKeyLen is the longest key the text protocol accepts.
const maxKeyLen = 250

// keyed checks the key before it is written into a command line.
func keyed(link dscore.Link, key string) (*Link, error) {
	l, err := asLink(link)
	if err != nil {
		return nil, err
	}
	if key == "" || len(key) > maxKeyLen {
		return nil, dscore.NewFail(dscore.StatusQueryFailed, "memcache key must be 1 to %d bytes, got %d", maxKeyLen, len(key))
	}
	for i := 0; i < len(key); i++ {
		if c := key[i]; c <= ' ' || c == 0x7f {
			return nil, dscore.NewFail(dscore.StatusQueryFailed, "memcache key %q holds a space or control byte", key)
		}
	}
	return l, nil
}

func failed(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if dscore.StatusOf(err) != 0 {
		return err
	}
	logger.Warningf("memcache: %v", err)
	return dscore.WrapFail(dscore.StatusQueryFailed, err, format, args...)
}
