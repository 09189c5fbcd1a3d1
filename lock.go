package datasource

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
)

const (
	lockSuffix        = ":__lock"
	lockRetryInterval = 25 * time.Millisecond
)

// LockHandle is an advisory lock stored as a key in a Cache. Acquire is an
// Add of the lock key, so every hash backend with atomic add can carry it.
//
// Release does not validate ownership; a lock that outlived its ttl may
// belong to someone else by then.
// @group Locking
type LockHandle struct {
	cache *Cache
	key   string
	ttl   time.Duration
	held  atomic.Bool
}

// NewLockHandle creates a reusable lock for key held at most ttl.
// @group Locking
//
// Example: guard a job
//
//	lock := c.NewLockHandle("job:sync", 10*time.Second)
//	locked, err := lock.Get(ctx, func(context.Context) error {
//		return runSync()
//	})
//	fmt.Println(err == nil, locked) // true true
func (c *Cache) NewLockHandle(key string, ttl time.Duration) *LockHandle {
	return &LockHandle{cache: c, key: key + lockSuffix, ttl: ttl}
}

// Held reports whether this handle acquired the lock and has not released it.
func (l *LockHandle) Held() bool { return l.held.Load() }

// Acquire makes one attempt to take the lock.
// @group Locking
func (l *LockHandle) Acquire(ctx context.Context) (bool, error) {
	locked, err := l.cache.Add(ctx, l.key, []byte{1}, l.ttl)
	if err != nil {
		return false, errors.Trace(err)
	}
	if locked {
		l.held.Store(true)
	}
	return locked, nil
}

// Release drops the lock if this handle holds it. Repeated calls are no-ops.
// @group Locking
func (l *LockHandle) Release(ctx context.Context) error {
	if !l.held.Load() {
		return nil
	}
	if err := l.cache.Delete(ctx, l.key); err != nil {
		return errors.Trace(err)
	}
	l.held.Store(false)
	return nil
}

// Get runs fn only if one acquire attempt succeeds, then releases.
// @group Locking
func (l *LockHandle) Get(ctx context.Context, fn func(context.Context) error) (bool, error) {
	if fn == nil {
		return false, errors.New("lock requires a callback")
	}
	locked, err := l.Acquire(ctx)
	if err != nil || !locked {
		return locked, err
	}
	defer func() { _ = l.Release(ctx) }()
	return true, fn(ctx)
}

// Block retries the acquire every retry until ctx is done, runs fn and
// releases. retry <= 0 uses the default interval.
// @group Locking
func (l *LockHandle) Block(ctx context.Context, retry time.Duration, fn func(context.Context) error) (bool, error) {
	if fn == nil {
		return false, errors.New("lock requires a callback")
	}
	if retry <= 0 {
		retry = lockRetryInterval
	}
	ticker := time.NewTicker(retry)
	defer ticker.Stop()
	for {
		locked, err := l.Acquire(ctx)
		if err != nil {
			return false, err
		}
		if locked {
			break
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
	defer func() { _ = l.Release(ctx) }()
	return true, fn(ctx)
}
