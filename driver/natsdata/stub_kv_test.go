package natsdata

import (
	"slices"
	"time"

	"github.com/nats-io/nats.go"
)

type stubKeyValue struct {
	bucket string
	rev    uint64

	entries map[string]*stubEntry

	getErr    error
	putErr    error
	updateErr error
	listErr   error
}

func newStubKeyValue(bucket string) *stubKeyValue {
	return &stubKeyValue{bucket: bucket, entries: make(map[string]*stubEntry)}
}

func (s *stubKeyValue) Get(key string) (nats.KeyValueEntry, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	if entry.op != nats.KeyValuePut {
		return nil, nats.ErrKeyDeleted
	}
	cp := *entry
	cp.value = slices.Clone(entry.value)
	return &cp, nil
}

func (s *stubKeyValue) Put(key string, value []byte) (uint64, error) {
	if s.putErr != nil {
		return 0, s.putErr
	}
	s.rev++
	s.entries[key] = &stubEntry{
		bucket:   s.bucket,
		key:      key,
		value:    slices.Clone(value),
		revision: s.rev,
		created:  time.Now(),
		op:       nats.KeyValuePut,
	}
	return s.rev, nil
}

func (s *stubKeyValue) Create(key string, value []byte) (uint64, error) {
	if existing, ok := s.entries[key]; ok && existing.op == nats.KeyValuePut {
		return 0, nats.ErrKeyExists
	}
	return s.Put(key, value)
}

func (s *stubKeyValue) Update(key string, value []byte, last uint64) (uint64, error) {
	if s.updateErr != nil {
		return 0, s.updateErr
	}
	existing, ok := s.entries[key]
	if !ok || existing.op != nats.KeyValuePut {
		return 0, nats.ErrKeyNotFound
	}
	if existing.revision != last {
		return 0, nats.ErrKeyExists
	}
	return s.Put(key, value)
}

func (s *stubKeyValue) Delete(key string, _ ...nats.DeleteOpt) error {
	s.rev++
	s.entries[key] = &stubEntry{bucket: s.bucket, key: key, revision: s.rev, op: nats.KeyValueDelete}
	return nil
}

func (s *stubKeyValue) Purge(key string, _ ...nats.DeleteOpt) error {
	delete(s.entries, key)
	return nil
}

func (s *stubKeyValue) ListKeys(_ ...nats.WatchOpt) (nats.KeyLister, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if len(s.entries) == 0 {
		return nil, nats.ErrNoKeysFound
	}
	keys := make(chan string, len(s.entries))
	for key, entry := range s.entries {
		if entry.op == nats.KeyValuePut {
			keys <- key
		}
	}
	close(keys)
	errs := make(chan error)
	close(errs)
	return &stubLister{keys: keys, errs: errs}, nil
}

type stubEntry struct {
	bucket   string
	key      string
	value    []byte
	revision uint64
	created  time.Time
	op       nats.KeyValueOp
}

func (e *stubEntry) Bucket() string             { return e.bucket }
func (e *stubEntry) Key() string                { return e.key }
func (e *stubEntry) Value() []byte              { return e.value }
func (e *stubEntry) Revision() uint64           { return e.revision }
func (e *stubEntry) Created() time.Time         { return e.created }
func (e *stubEntry) Delta() uint64              { return 0 }
func (e *stubEntry) Operation() nats.KeyValueOp { return e.op }

type stubLister struct {
	keys chan string
	errs chan error
}

func (l *stubLister) Keys() <-chan string { return l.keys }
func (l *stubLister) Error() <-chan error { return l.errs }
func (l *stubLister) Stop() error         { return nil }

// stubBuckets resolves buckets from a fixed set and records creations.
type stubBuckets struct {
	buckets map[string]*stubKeyValue
	created []string
	closed  bool
}

func newStubBuckets(existing ...string) *stubBuckets {
	b := &stubBuckets{buckets: map[string]*stubKeyValue{}}
	for _, name := range existing {
		b.buckets[name] = newStubKeyValue(name)
	}
	return b
}

func (b *stubBuckets) Bucket(name string) (KeyValue, error) {
	kv, ok := b.buckets[name]
	if !ok {
		return nil, nats.ErrBucketNotFound
	}
	return kv, nil
}

func (b *stubBuckets) CreateBucket(name string) (KeyValue, error) {
	if name == "" {
		return nil, nats.ErrInvalidBucketName
	}
	b.created = append(b.created, name)
	kv := newStubKeyValue(name)
	b.buckets[name] = kv
	return kv, nil
}

func (b *stubBuckets) Close() { b.closed = true }
