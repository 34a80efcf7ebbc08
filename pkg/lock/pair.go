// Package lock serializes work on an unordered pair of keys, so that two
// mutations touching the same pair of rows never interleave.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrLockTimeout is returned when a distributed pair lock could not be taken in time.
var ErrLockTimeout = errors.New("lock: timed out acquiring pair lock")

// PairLocker locks the unordered pair {a, b}. The returned release func must be called once.
type PairLocker interface {
	Lock(ctx context.Context, a, b string) (release func(), err error)
}

// pairKey orders the pair so {a, b} and {b, a} share a lock.
func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// Noop never blocks; used when store-level atomicity is considered sufficient.
type Noop struct{}

func (Noop) Lock(context.Context, string, string) (func(), error) {
	return func() {}, nil
}

type localEntry struct {
	mu   sync.Mutex
	refs int
}

// Local is an in-process keyed mutex. Entries are removed once unreferenced.
type Local struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

func NewLocal() *Local {
	return &Local{entries: make(map[string]*localEntry)}
}

func (l *Local) Lock(ctx context.Context, a, b string) (func(), error) {
	key := pairKey(a, b)

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-ctx.Done():
		// The goroutine still takes the mutex eventually; hand it straight back.
		go func() {
			<-acquired
			l.release(key, e)
		}()
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, e) })
	}, nil
}

func (l *Local) release(key string, e *localEntry) {
	e.mu.Unlock()

	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

// held reports how many pairs currently have waiters or holders.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Backend is the subset of the Redis client the distributed lock needs.
type Backend interface {
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) error
}

// Distributed takes the pair lock in Redis so every replica observes it.
type Distributed struct {
	backend Backend
	prefix  string
	ttl     time.Duration
	wait    time.Duration
	retry   time.Duration
	logger  *zap.Logger
}

func NewDistributed(backend Backend, prefix string, ttl time.Duration, logger *zap.Logger) *Distributed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Distributed{
		backend: backend,
		prefix:  prefix,
		ttl:     ttl,
		wait:    ttl,
		retry:   25 * time.Millisecond,
		logger:  logger,
	}
}

func (d *Distributed) Lock(ctx context.Context, a, b string) (func(), error) {
	key := d.prefix + pairKey(a, b)
	token := uuid.NewString()

	deadline := time.NewTimer(d.wait)
	defer deadline.Stop()

	backoff := d.retry
	for {
		ok, err := d.backend.TryLock(ctx, key, token, d.ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					// The lock still lapses after ttl, so a failed unlock only delays the next holder.
					if err := d.backend.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
						d.logger.Warn("Failed to release pair lock",
							zap.String("key", key),
							zap.Duration("expires_in", d.ttl),
							zap.Error(err),
						)
					}
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrLockTimeout
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}
