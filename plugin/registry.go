package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/owner"
)

// DefaultTimeout bounds every plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit               []OnInit
	onShutdown           []OnShutdown
	onGenesis            []OnGenesis
	onOwnerCreated       []OnOwnerCreated
	onAssetCreated       []OnAssetCreated
	onValueTransferred   []OnValueTransferred
	onAssetsTransferred  []OnAssetsTransferred
	onAssetContributed   []OnAssetContributed
	onAssetOffered       []OnAssetOffered
	onAccountChecked     []OnAccountChecked
	onObligationExecuted []OnObligationExecuted
	onObligationFailed   []OnObligationFailed
	onSettlementTick     []OnSettlementTick
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnGenesis); ok {
		r.onGenesis = append(r.onGenesis, v)
	}
	if v, ok := p.(OnOwnerCreated); ok {
		r.onOwnerCreated = append(r.onOwnerCreated, v)
	}
	if v, ok := p.(OnAssetCreated); ok {
		r.onAssetCreated = append(r.onAssetCreated, v)
	}
	if v, ok := p.(OnValueTransferred); ok {
		r.onValueTransferred = append(r.onValueTransferred, v)
	}
	if v, ok := p.(OnAssetsTransferred); ok {
		r.onAssetsTransferred = append(r.onAssetsTransferred, v)
	}
	if v, ok := p.(OnAssetContributed); ok {
		r.onAssetContributed = append(r.onAssetContributed, v)
	}
	if v, ok := p.(OnAssetOffered); ok {
		r.onAssetOffered = append(r.onAssetOffered, v)
	}
	if v, ok := p.(OnAccountChecked); ok {
		r.onAccountChecked = append(r.onAccountChecked, v)
	}
	if v, ok := p.(OnObligationExecuted); ok {
		r.onObligationExecuted = append(r.onObligationExecuted, v)
	}
	if v, ok := p.(OnObligationFailed); ok {
		r.onObligationFailed = append(r.onObligationFailed, v)
	}
	if v, ok := p.(OnSettlementTick); ok {
		r.onSettlementTick = append(r.onSettlementTick, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnGenesis", reflect.TypeFor[OnGenesis]()},
	{"OnOwnerCreated", reflect.TypeFor[OnOwnerCreated]()},
	{"OnAssetCreated", reflect.TypeFor[OnAssetCreated]()},
	{"OnValueTransferred", reflect.TypeFor[OnValueTransferred]()},
	{"OnAssetsTransferred", reflect.TypeFor[OnAssetsTransferred]()},
	{"OnAssetContributed", reflect.TypeFor[OnAssetContributed]()},
	{"OnAssetOffered", reflect.TypeFor[OnAssetOffered]()},
	{"OnAccountChecked", reflect.TypeFor[OnAccountChecked]()},
	{"OnObligationExecuted", reflect.TypeFor[OnObligationExecuted]()},
	{"OnObligationFailed", reflect.TypeFor[OnObligationFailed]()},
	{"OnSettlementTick", reflect.TypeFor[OnSettlementTick]()},
}

// implementedInterfaces returns the hook names implemented by p.
func implementedInterfaces(p Plugin) []string {
	var names []string
	t := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if t.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit calls fn for each hook implementation, logging failures.
func emit[T Plugin](ctx context.Context, r *Registry, hooks []T, hook string, fn func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

func snapshot[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, snapshot(r, &r.onInit), "OnInit", func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, snapshot(r, &r.onShutdown), "OnShutdown", func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitGenesis emits a genesis event.
func (r *Registry) EmitGenesis(ctx context.Context, system *owner.Owner, supply int64) {
	emit(ctx, r, snapshot(r, &r.onGenesis), "OnGenesis", func(p OnGenesis) error {
		return p.OnGenesis(ctx, system, supply)
	})
}

// EmitOwnerCreated emits an owner created event.
func (r *Registry) EmitOwnerCreated(ctx context.Context, o *owner.Owner) {
	emit(ctx, r, snapshot(r, &r.onOwnerCreated), "OnOwnerCreated", func(p OnOwnerCreated) error {
		return p.OnOwnerCreated(ctx, o)
	})
}

// EmitAssetCreated emits an asset created event.
func (r *Registry) EmitAssetCreated(ctx context.Context, a *asset.Asset) {
	emit(ctx, r, snapshot(r, &r.onAssetCreated), "OnAssetCreated", func(p OnAssetCreated) error {
		return p.OnAssetCreated(ctx, a)
	})
}

// EmitValueTransferred emits a value transferred event.
func (r *Registry) EmitValueTransferred(ctx context.Context, act *activity.Activity, amount int64) {
	emit(ctx, r, snapshot(r, &r.onValueTransferred), "OnValueTransferred", func(p OnValueTransferred) error {
		return p.OnValueTransferred(ctx, act, amount)
	})
}

// EmitAssetsTransferred emits an assets transferred event.
func (r *Registry) EmitAssetsTransferred(ctx context.Context, act *activity.Activity) {
	emit(ctx, r, snapshot(r, &r.onAssetsTransferred), "OnAssetsTransferred", func(p OnAssetsTransferred) error {
		return p.OnAssetsTransferred(ctx, act)
	})
}

// EmitAssetContributed emits an asset contributed event.
func (r *Registry) EmitAssetContributed(ctx context.Context, act *activity.Activity, reward int64) {
	emit(ctx, r, snapshot(r, &r.onAssetContributed), "OnAssetContributed", func(p OnAssetContributed) error {
		return p.OnAssetContributed(ctx, act, reward)
	})
}

// EmitAssetOffered emits an asset offered event.
func (r *Registry) EmitAssetOffered(ctx context.Context, act *activity.Activity, amount int64) {
	emit(ctx, r, snapshot(r, &r.onAssetOffered), "OnAssetOffered", func(p OnAssetOffered) error {
		return p.OnAssetOffered(ctx, act, amount)
	})
}

// EmitAccountChecked emits an account checked event.
func (r *Registry) EmitAccountChecked(ctx context.Context, act *activity.Activity) {
	emit(ctx, r, snapshot(r, &r.onAccountChecked), "OnAccountChecked", func(p OnAccountChecked) error {
		return p.OnAccountChecked(ctx, act)
	})
}

// EmitObligationExecuted emits an obligation executed event.
func (r *Registry) EmitObligationExecuted(ctx context.Context, termID id.TermID, act *activity.Activity) {
	emit(ctx, r, snapshot(r, &r.onObligationExecuted), "OnObligationExecuted", func(p OnObligationExecuted) error {
		return p.OnObligationExecuted(ctx, termID, act)
	})
}

// EmitObligationFailed emits an obligation failed event.
func (r *Registry) EmitObligationFailed(ctx context.Context, termID id.TermID, pending *activity.Activity, cause error) {
	emit(ctx, r, snapshot(r, &r.onObligationFailed), "OnObligationFailed", func(p OnObligationFailed) error {
		return p.OnObligationFailed(ctx, termID, pending, cause)
	})
}

// EmitSettlementTick emits a settlement tick event.
func (r *Registry) EmitSettlementTick(ctx context.Context, executed, failed int, elapsed time.Duration) {
	emit(ctx, r, snapshot(r, &r.onSettlementTick), "OnSettlementTick", func(p OnSettlementTick) error {
		return p.OnSettlementTick(ctx, executed, failed, elapsed)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger or the settlement worker.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
