package natsdata

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goforj/datasource/dscore"
	"github.com/nats-io/nats.go"
)

const (
	envelopeMarker = "ds-v1"
	keyPrefix      = "k."
	maxRetries     = 16
)

// envelope carries the per-key expiry that JetStream buckets lack.
type envelope struct {
	Marker    string `json:"m"`
	Value     []byte `json:"v"`
	ExpiresAt int64  `json:"ea,omitempty"`
}

// Driver adapts nats links to the hash capability set.
type Driver struct{}

// NewDriver returns the nats adapter.
func NewDriver() *Driver { return &Driver{} }

func (*Driver) Type() dscore.Type { return dscore.TypeNATS }

func (*Driver) AddData(_ context.Context, link dscore.Link, key string, value []byte, expire time.Duration) (bool, error) {
	kv, err := storeOf(link)
	if err != nil {
		return false, err
	}
	full := encodeKey(key)
	if _, _, ok, err := read(kv, full); err != nil || ok {
		return false, failed(err, "add %s", key)
	}
	body, err := encode(value, expire)
	if err != nil {
		return false, failed(err, "add %s", key)
	}
	if _, err := kv.Create(full, body); err != nil {
		if errors.Is(err, nats.ErrKeyExists) {
			return false, nil
		}
		return false, failed(err, "add %s", key)
	}
	return true, nil
}

func (*Driver) GetData(_ context.Context, link dscore.Link, key string) ([]byte, bool, error) {
	kv, err := storeOf(link)
	if err != nil {
		return nil, false, err
	}
	value, _, ok, err := read(kv, encodeKey(key))
	return value, ok, failed(err, "get %s", key)
}

func (*Driver) SetData(_ context.Context, link dscore.Link, key string, value []byte, expire time.Duration) error {
	kv, err := storeOf(link)
	if err != nil {
		return err
	}
	body, err := encode(value, expire)
	if err != nil {
		return failed(err, "set %s", key)
	}
	_, err = kv.Put(encodeKey(key), body)
	return failed(err, "set %s", key)
}

// ReplaceData updates a live key with optimistic revision checks.
func (*Driver) ReplaceData(_ context.Context, link dscore.Link, key string, value []byte, expire time.Duration) (bool, error) {
	kv, err := storeOf(link)
	if err != nil {
		return false, err
	}
	full := encodeKey(key)
	body, err := encode(value, expire)
	if err != nil {
		return false, failed(err, "replace %s", key)
	}
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, revision, ok, err := read(kv, full)
		if err != nil || !ok {
			return false, failed(err, "replace %s", key)
		}
		_, err = kv.Update(full, body, revision)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, nats.ErrKeyExists) && !isMiss(err) {
			return false, failed(err, "replace %s", key)
		}
	}
	return false, failed(errors.New("revision conflict retry limit"), "replace %s", key)
}

func (*Driver) DeleteData(_ context.Context, link dscore.Link, key string) error {
	kv, err := storeOf(link)
	if err != nil {
		return err
	}
	err = kv.Delete(encodeKey(key))
	if isMiss(err) {
		return nil
	}
	return failed(err, "delete %s", key)
}

// FlushData purges every key this adapter wrote into the selected bucket.
func (*Driver) FlushData(_ context.Context, link dscore.Link) error {
	kv, err := storeOf(link)
	if err != nil {
		return err
	}
	lister, err := kv.ListKeys(nats.IgnoreDeletes())
	if errors.Is(err, nats.ErrNoKeysFound) {
		return nil
	}
	if err != nil {
		return failed(err, "flush")
	}
	defer func() { _ = lister.Stop() }()

	for key := range lister.Keys() {
		if !strings.HasPrefix(key, keyPrefix) {
			continue
		}
		if err := kv.Purge(key); err != nil && !isMiss(err) {
			return failed(err, "flush")
		}
	}
	for err := range lister.Error() {
		if err != nil {
			return failed(err, "flush")
		}
	}
	return nil
}

// read returns a live value and its revision, purging expired entries.
func read(kv KeyValue, full string) ([]byte, uint64, bool, error) {
	entry, err := kv.Get(full)
	if isMiss(err) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	if entry.Operation() != nats.KeyValuePut {
		return nil, 0, false, nil
	}
	env, err := decode(entry.Value())
	if err != nil {
		return nil, 0, false, err
	}
	if env.ExpiresAt > 0 && time.Now().UnixMilli() > env.ExpiresAt {
		_ = kv.Purge(full)
		return nil, 0, false, nil
	}
	return env.Value, entry.Revision(), true, nil
}

func encode(value []byte, expire time.Duration) ([]byte, error) {
	env := envelope{Marker: envelopeMarker, Value: value}
	if expire > 0 {
		env.ExpiresAt = time.Now().Add(expire).UnixMilli()
	}
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return body, nil
}

// decode accepts raw values written by other clients as non-expiring.
func decode(body []byte) (envelope, error) {
	if len(body) == 0 || body[0] != '{' {
		return envelope{Value: body}, nil
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Marker != envelopeMarker {
		return envelope{Value: body}, nil
	}
	return env, nil
}

// encodeKey maps arbitrary keys onto the bucket's restricted key alphabet.
func encodeKey(key string) string {
	if key == "" {
		return keyPrefix + "_"
	}
	return keyPrefix + base64.RawURLEncoding.EncodeToString([]byte(key))
}

func isMiss(err error) bool {
	return errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted)
}

func storeOf(link dscore.Link) (KeyValue, error) {
	l, ok := link.(*Link)
	if !ok || l == nil {
		return nil, dscore.NewFail(dscore.StatusConnectionNotInit, "link %T is not a nats link", link)
	}
	return l.store()
}

func failed(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	logger.Warningf("nats: %v", err)
	return dscore.WrapFail(dscore.StatusQueryFailed, err, format, args...)
}
