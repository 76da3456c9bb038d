// Package lock serializes mutations that share a ledger resource: the
// System pool, an owner's holdings, an asset's held values or a contract
// term's pending obligations.
package lock

import (
	"context"
	"sync"

	"github.com/xraph/tally/id"
)

// Locker acquires exclusive, context-bounded locks by key. The returned
// release function is safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Key helpers for the resources the engine serializes on.
func PoolKey(systemID id.OwnerID) string { return "pool:" + systemID.String() }
func OwnerKey(ownerID id.OwnerID) string { return "owner:" + ownerID.String() }
func AssetKey(assetID id.AssetID) string { return "asset:" + assetID.String() }
func TermKey(termID id.TermID) string    { return "term:" + termID.String() }

// compile-time interface check
var _ Locker = (*Local)(nil)

// Local is an in-process keyed mutex. Entries are dropped once no goroutine
// holds or waits on them.
type Local struct {
	mu   sync.Mutex
	keys map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewLocal returns an empty in-process Locker.
func NewLocal() *Local {
	return &Local{keys: make(map[string]*keyLock)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	k, ok := l.keys[key]
	if !ok {
		k = &keyLock{ch: make(chan struct{}, 1)}
		l.keys[key] = k
	}
	k.refs++
	l.mu.Unlock()

	select {
	case k.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, k)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-k.ch
			l.drop(key, k)
		})
	}, nil
}

// Held reports how many keys currently have a holder or waiter.
func (l *Local) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

func (l *Local) drop(key string, k *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k.refs--
	if k.refs == 0 {
		delete(l.keys, key)
	}
}
