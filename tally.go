package tally

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/lock"
	"github.com/xraph/tally/owner"
	"github.com/xraph/tally/plugin"
	"github.com/xraph/tally/store"
)

// Engine is the value ledger. It moves value between owners and assets,
// records every movement as an activity and settles recurring contract
// terms in a background worker.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	locker  lock.Locker

	// System identity, adopted from the store or created by Reset.
	identMu sync.RWMutex
	system  *owner.Owner
	poolID  id.ValueID

	rngMu sync.Mutex
	rng   *rand.Rand

	// Background worker
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Configuration
	pollInterval time.Duration
	totalSupply  int64
	rewards      map[asset.Type]int64
	storeTimeout time.Duration
	bootstrap    bool
	now          func() time.Time
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:        s,
		plugins:      plugin.NewRegistry(),
		logger:       slog.Default(),
		locker:       lock.NewLocal(),
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		stopChan:     make(chan struct{}),
		pollInterval: DefaultPollInterval,
		totalSupply:  DefaultTotalSupply,
		rewards:      DefaultRewards(),
		storeTimeout: DefaultStoreTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// TotalSupply returns the amount minted at genesis.
func (e *Engine) TotalSupply() int64 { return e.totalSupply }

// Reward returns the value minted for a newly created asset of type t.
func (e *Engine) Reward(t asset.Type) int64 { return e.rewards[t] }

// SystemID returns the adopted System owner id, loading it from the store
// on first use.
func (e *Engine) SystemID(ctx context.Context) (id.OwnerID, error) {
	sys, _, err := e.identity(ctx)
	if err != nil {
		return id.Nil, err
	}
	return sys.ID, nil
}

// identity returns the System owner and its pool record id.
func (e *Engine) identity(ctx context.Context) (*owner.Owner, id.ValueID, error) {
	e.identMu.RLock()
	sys, pool := e.system, e.poolID
	e.identMu.RUnlock()
	if sys != nil {
		return sys, pool, nil
	}
	if err := e.adopt(ctx); err != nil {
		return nil, id.Nil, err
	}
	e.identMu.RLock()
	defer e.identMu.RUnlock()
	return e.system, e.poolID, nil
}

// adopt loads the System owner and pool from the store.
func (e *Engine) adopt(ctx context.Context) error {
	sys, err := call(ctx, e, "get system owner", func(ctx context.Context) (*owner.Owner, error) {
		return e.store.GetSystemOwner(ctx)
	})
	if err != nil {
		return err
	}
	pool, err := call(ctx, e, "get pool", func(ctx context.Context) (id.ValueID, error) {
		v, err := e.store.GetPool(ctx, sys.ID)
		if err != nil {
			return id.Nil, err
		}
		return v.ID, nil
	})
	if err != nil {
		return fmt.Errorf("tally: system pool: %w", err)
	}
	e.setIdentity(sys, pool)
	return nil
}

func (e *Engine) setIdentity(sys *owner.Owner, pool id.ValueID) {
	e.identMu.Lock()
	defer e.identMu.Unlock()
	e.system = sys
	e.poolID = pool
}

func (e *Engine) clearIdentity() {
	e.setIdentity(nil, id.Nil)
}

// lock acquires key, translating a context expiry into ErrLockTimeout.
func (e *Engine) lock(ctx context.Context, key string) (func(), error) {
	release, err := e.locker.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, key, err)
	}
	return release, nil
}

// call runs one store operation bounded by the store timeout.
func call[T any](ctx context.Context, e *Engine, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	v, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, storeErr(op, err)
	}
	return v, nil
}

// exec is call for operations without a result.
func exec(ctx context.Context, e *Engine, op string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	return storeErr(op, fn(ctx))
}

func (e *Engine) intn(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.IntN(n)
}
