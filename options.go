package tally

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/lock"
	"github.com/xraph/tally/plugin"
)

// Defaults applied by New.
const (
	DefaultPollInterval = time.Second
	DefaultTotalSupply  = int64(1_000_000_000)
	DefaultStoreTimeout = 5 * time.Second
)

// DefaultRewards returns the value minted to an asset when it is created.
func DefaultRewards() map[asset.Type]int64 {
	return map[asset.Type]int64{
		asset.TypePost:       3,
		asset.TypeComment:    2,
		asset.TypeExpression: 1,
		asset.TypeBoard:      0,
	}
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		if err := e.plugins.Register(p); err != nil {
			e.logger.Warn("tally: plugin registration failed", "plugin", p.Name(), "error", err)
		}
	}
}

// WithLocker replaces the in-process locker, e.g. with lock/redis for
// multi-instance deployments.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithPollInterval sets how often the settlement worker scans contracts.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pollInterval = d
		}
	}
}

// WithTotalSupply sets the amount minted into the pool at genesis.
func WithTotalSupply(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.totalSupply = n
		}
	}
}

// WithRewards overrides contribution rewards. Types missing from r keep
// their default reward.
func WithRewards(r map[asset.Type]int64) Option {
	return func(e *Engine) {
		for t, n := range r {
			e.rewards[t] = n
		}
	}
}

// WithRandSource sets the source used to draw airdrop recipients.
func WithRandSource(src rand.Source) Option {
	return func(e *Engine) {
		e.rng = rand.New(src)
	}
}

// WithStoreTimeout bounds every store call the engine makes.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.storeTimeout = d
		}
	}
}

// WithBootstrap makes Start run genesis when the store has no System owner.
func WithBootstrap(enabled bool) Option {
	return func(e *Engine) {
		e.bootstrap = enabled
	}
}

// WithClock sets the time source for entity and activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
