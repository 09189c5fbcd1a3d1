package memorydata

import (
	"context"
	"time"

	"github.com/goforj/datasource/dscore"
	gocache "github.com/patrickmn/go-cache"
)

// Driver adapts memory links to the hash capability set.
type Driver struct{}

// NewDriver returns the memory adapter.
func NewDriver() *Driver { return &Driver{} }

func (*Driver) Type() dscore.Type { return dscore.TypeMemory }

func (*Driver) AddData(_ context.Context, link dscore.Link, key string, value []byte, expire time.Duration) (bool, error) {
	bucket, err := bucketOf(link)
	if err != nil {
		return false, err
	}
	// go-cache reports an existing key as an error.
	if err := bucket.Add(key, clone(value), expiry(expire)); err != nil {
		return false, nil
	}
	return true, nil
}

func (*Driver) GetData(_ context.Context, link dscore.Link, key string) ([]byte, bool, error) {
	bucket, err := bucketOf(link)
	if err != nil {
		return nil, false, err
	}
	item, ok := bucket.Get(key)
	if !ok {
		return nil, false, nil
	}
	body, ok := item.([]byte)
	if !ok {
		return nil, false, nil
	}
	return clone(body), true, nil
}

func (*Driver) SetData(_ context.Context, link dscore.Link, key string, value []byte, expire time.Duration) error {
	bucket, err := bucketOf(link)
	if err != nil {
		return err
	}
	bucket.Set(key, clone(value), expiry(expire))
	return nil
}

func (*Driver) ReplaceData(_ context.Context, link dscore.Link, key string, value []byte, expire time.Duration) (bool, error) {
	bucket, err := bucketOf(link)
	if err != nil {
		return false, err
	}
	if err := bucket.Replace(key, clone(value), expiry(expire)); err != nil {
		return false, nil
	}
	return true, nil
}

func (*Driver) DeleteData(_ context.Context, link dscore.Link, key string) error {
	bucket, err := bucketOf(link)
	if err != nil {
		return err
	}
	bucket.Delete(key)
	return nil
}

// FlushData empties the selected bucket only.
func (*Driver) FlushData(_ context.Context, link dscore.Link) error {
	bucket, err := bucketOf(link)
	if err != nil {
		return err
	}
	bucket.Flush()
	return nil
}

func expiry(expire time.Duration) time.Duration {
	if expire <= 0 {
		return gocache.NoExpiration
	}
	return expire
}

func clone(body []byte) []byte {
	out := make([]byte, len(body))
	copy(out, body)
	return out
}

func bucketOf(link dscore.Link) (*gocache.Cache, error) {
	l, ok := link.(*Link)
	if !ok || l == nil {
		return nil, dscore.NewFail(dscore.StatusConnectionNotInit, "link %T is not a memory link", link)
	}
	return l.bucket()
}
