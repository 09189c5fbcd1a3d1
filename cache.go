package datasource

import (
	"context"
	"time"

	"github.com/goforj/datasource/dscore"
	"github.com/juju/errors"
	"github.com/vmihailenco/msgpack/v4"
)

// Cache is the key-value contract over a hash backend. Keys are namespaced by
// the config prefix; an expire of zero or less means no expiry.
type Cache struct {
	handle
}

func (c *Cache) Contract() Contract { return ContractCache }

// Prefix returns the namespace applied to every key.
func (c *Cache) Prefix() string { return c.prefix }

func (c *Cache) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

func (c *Cache) hashOp(ctx context.Context, op, key string, fn func(link dscore.Link) error) error {
	start := time.Now()
	err := c.do(ctx, fn)
	observe(ctx, c.observer, op, c.typ, key, start, err)
	return err
}

// Add stores value only when key is absent and reports whether it did.
// @group Cache
//
// Example: add once
//
//	ctx := context.Background()
//	reg := datasource.New()
//	c, _ := reg.Cache(ctx, "memory://sessions")
//	first, _ := c.Add(ctx, "token", []byte("a"), time.Minute)
//	second, _ := c.Add(ctx, "token", []byte("b"), time.Minute)
//	fmt.Println(first, second) // true false
func (c *Cache) Add(ctx context.Context, key string, value []byte, expire time.Duration) (bool, error) {
	var added bool
	err := c.hashOp(ctx, "add", key, func(link dscore.Link) (err error) {
		added, err = c.hash.AddData(ctx, link, c.key(key), value, expire)
		return err
	})
	return added, err
}

// Get returns the value of key and whether it was present.
// @group Cache
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		ok    bool
	)
	err := c.hashOp(ctx, "get", key, func(link dscore.Link) (err error) {
		value, ok, err = c.hash.GetData(ctx, link, c.key(key))
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return value, ok, nil
}

// GetMany returns the present keys with their values. The first failure
// stops the lookup.
func (c *Cache) GetMany(ctx context.Context, keys ...string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		value, ok, err := c.Get(ctx, key)
		if err != nil {
			return map[string][]byte{}, err
		}
		if ok {
			out[key] = value
		}
	}
	return out, nil
}

// Set stores value unconditionally.
// @group Cache
func (c *Cache) Set(ctx context.Context, key string, value []byte, expire time.Duration) error {
	return c.hashOp(ctx, "set", key, func(link dscore.Link) error {
		return c.hash.SetData(ctx, link, c.key(key), value, expire)
	})
}

// Replace stores value only when key is present and reports whether it did.
// @group Cache
func (c *Cache) Replace(ctx context.Context, key string, value []byte, expire time.Duration) (bool, error) {
	var replaced bool
	err := c.hashOp(ctx, "replace", key, func(link dscore.Link) (err error) {
		replaced, err = c.hash.ReplaceData(ctx, link, c.key(key), value, expire)
		return err
	})
	return replaced, err
}

// Delete removes key. A missing key is not an error.
// @group Cache
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.hashOp(ctx, "delete", key, func(link dscore.Link) error {
		return c.hash.DeleteData(ctx, link, c.key(key))
	})
}

// Flush drops every key of the current logical view (bucket, database or table).
// @group Cache
func (c *Cache) Flush(ctx context.Context) error {
	return c.hashOp(ctx, "flush", "*", func(link dscore.Link) error {
		return c.hash.FlushData(ctx, link)
	})
}

// SetValue msgpack-encodes value and stores it under key.
// @group Cache Values
//
// Example: typed values
//
//	type Profile struct{ Name string }
//	_ = datasource.SetValue(ctx, c, "profile:42", Profile{Name: "Ada"}, time.Minute)
//	p, ok, _ := datasource.GetValue[Profile](ctx, c, "profile:42")
//	fmt.Println(ok, p.Name) // true Ada
func SetValue[T any](ctx context.Context, c *Cache, key string, value T, expire time.Duration) error {
	body, err := msgpack.Marshal(value)
	if err != nil {
		return errors.Annotatef(err, "encode %q", key)
	}
	return c.Set(ctx, key, body, expire)
}

// AddValue is Add for a msgpack-encoded value.
// @group Cache Values
func AddValue[T any](ctx context.Context, c *Cache, key string, value T, expire time.Duration) (bool, error) {
	body, err := msgpack.Marshal(value)
	if err != nil {
		return false, errors.Annotatef(err, "encode %q", key)
	}
	return c.Add(ctx, key, body, expire)
}

// ReplaceValue is Replace for a msgpack-encoded value.
// @group Cache Values
func ReplaceValue[T any](ctx context.Context, c *Cache, key string, value T, expire time.Duration) (bool, error) {
	body, err := msgpack.Marshal(value)
	if err != nil {
		return false, errors.Annotatef(err, "encode %q", key)
	}
	return c.Replace(ctx, key, body, expire)
}

// GetValue loads and msgpack-decodes the value under key.
// @group Cache Values
func GetValue[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var out T
	body, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return out, ok, err
	}
	if err := msgpack.Unmarshal(body, &out); err != nil {
		return out, false, errors.Annotatef(err, "decode %q", key)
	}
	return out, true, nil
}

// RememberValue returns the cached value of key, or computes, stores and
// returns it when missing.
// @group Cache Values
func RememberValue[T any](ctx context.Context, c *Cache, key string, expire time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if fn == nil {
		return zero, errors.New("remember requires a callback")
	}
	value, ok, err := GetValue[T](ctx, c, key)
	if err != nil {
		return zero, err
	}
	if ok {
		return value, nil
	}
	value, err = fn(ctx)
	if err != nil {
		return zero, err
	}
	if err := SetValue(ctx, c, key, value, expire); err != nil {
		return zero, err
	}
	return value, nil
}
