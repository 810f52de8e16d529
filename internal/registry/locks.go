package registry

import (
	"context"
	"errors"
	"sync"
	"time"
)

// errLockTimeout is internal; the service surfaces it as ConflictTimeoutError.
var errLockTimeout = errors.New("lock wait timed out")

// keyedLocks serializes writers per alert identity. Each key gets its own
// scope so writes to different alerts never contend; entries are reference
// counted and removed once the last waiter is gone.
type keyedLocks struct {
	mu   sync.Mutex
	held map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{held: make(map[string]*lockEntry)}
}

// acquire blocks until the key's scope is free, the wait elapses, or ctx is
// cancelled. On success it returns a release func that must be called exactly
// once.
func (l *keyedLocks) acquire(ctx context.Context, key string, wait time.Duration) (func(), error) {
	l.mu.Lock()
	e := l.held[key]
	if e == nil {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.held[key] = e
	}
	e.refs++
	l.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			l.unref(key, e)
		}, nil
	case <-timer.C:
		l.unref(key, e)
		return nil, errLockTimeout
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	}
}

func (l *keyedLocks) unref(key string, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.held, key)
	}
	l.mu.Unlock()
}
