// Package memorydata keeps hash sources in process memory, one go-cache
// bucket per logical database.
package memorydata

import (
	"context"
	"sync"
	"time"

	"github.com/goforj/datasource/dscore"
	"github.com/juju/loggo"
	gocache "github.com/patrickmn/go-cache"
)

var logger = loggo.GetLogger("datasource.memory")

const defaultCleanup = 10 * time.Minute

// Spec describes the memory property bag. The bucket is state.
func Spec() dscore.ConfigSpec {
	return dscore.ConfigSpec{
		Type: dscore.TypeMemory,
		Slots: []dscore.Slot{
			{Name: "bucket", Default: "default"},
			{Name: "prefix"},
			{Name: "cleanup", Default: "10m"},
		},
		Aliases: map[string]string{
			"host": "bucket", "db": "bucket", "name": "bucket",
			"pref": "prefix",
		},
		Provider: []string{"bucket", "prefix"},
		Connect:  []string{"cleanup"},
		State:    []string{"bucket"},
	}
}

// Backend binds the memory tag to its spec, opener and adapter.
func Backend() dscore.Backend {
	return dscore.Backend{
		Spec:   Spec(),
		Open:   Open,
		Driver: func() dscore.Driver { return NewDriver() },
	}
}

// Link holds every bucket opened through one connector.
type Link struct {
	mu      sync.Mutex
	cleanup time.Duration
	buckets map[string]*gocache.Cache
	current *gocache.Cache
}

// Open builds an empty bucket set.
func Open(_ context.Context, cfg *dscore.Config) (dscore.Link, error) {
	cleanup, err := cfg.Duration("cleanup")
	if err != nil {
		return nil, dscore.WrapFail(dscore.StatusTimeoutNotChanged, err, "cleanup %q", cfg.Get("cleanup"))
	}
	return NewLink(cleanup), nil
}

// NewLink returns a bucket set swept every cleanup interval.
func NewLink(cleanup time.Duration) *Link {
	if cleanup <= 0 {
		cleanup = defaultCleanup
	}
	return &Link{cleanup: cleanup, buckets: make(map[string]*gocache.Cache)}
}

// SetState selects a bucket, creating it on first use.
func (l *Link) SetState(_ context.Context, state dscore.State) error {
	name := state.At(0)
	if name == "" {
		return dscore.NewFail(dscore.StatusStateNotEstablished, "memory bucket name is empty")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buckets == nil {
		return dscore.NewFail(dscore.StatusConnectionNotInit, "memory link is closed")
	}
	bucket, ok := l.buckets[name]
	if !ok {
		bucket = gocache.New(gocache.NoExpiration, l.cleanup)
		l.buckets[name] = bucket
		logger.Debugf("created memory bucket %s", name)
	}
	l.current = bucket
	return nil
}

// Buckets reports how many buckets exist.
func (l *Link) Buckets() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Link) bucket() (*gocache.Cache, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil, dscore.NewFail(dscore.StatusConnectionNotInit, "no memory bucket selected")
	}
	return l.current, nil
}

// Close drops every bucket.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, bucket := range l.buckets {
		bucket.Flush()
	}
	l.buckets = nil
	l.current = nil
	return nil
}
