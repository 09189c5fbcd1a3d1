package datasource

import (
	"sync"
	"sync/atomic"
)

// memo is a get-or-create map. Each key is built at most once, failures
// included, and concurrent callers for one key wait for the first build.
type memo[V any] struct {
	mu      sync.Mutex
	entries map[string]*memoEntry[V]
}

type memoEntry[V any] struct {
	once    sync.Once
	settled atomic.Bool
	value   V
	err     error
}

func (m *memo[V]) get(key string, build func() (V, error)) (V, error) {
	m.mu.Lock()
	if m.entries == nil {
		m.entries = make(map[string]*memoEntry[V])
	}
	entry, ok := m.entries[key]
	if !ok {
		entry = &memoEntry[V]{}
		m.entries[key] = entry
	}
	m.mu.Unlock()

	entry.once.Do(func() {
		entry.value, entry.err = build()
		entry.settled.Store(true)
	})
	return entry.value, entry.err
}

// each visits every settled entry; builds still in flight are skipped.
func (m *memo[V]) each(fn func(key string, value V, err error)) {
	m.mu.Lock()
	entries := make(map[string]*memoEntry[V], len(m.entries))
	for k, e := range m.entries {
		entries[k] = e
	}
	m.mu.Unlock()
	for _, k := range sortedKeys(entries) {
		if e := entries[k]; e.settled.Load() {
			fn(k, e.value, e.err)
		}
	}
}

func (m *memo[V]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
