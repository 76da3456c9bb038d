// Package plugin provides an extensible plugin system for Tally.
// Plugins can hook into ledger and settlement events to extend functionality.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/owner"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// OnGenesis is called after a reset has created the System owner and pool.
type OnGenesis interface {
	Plugin
	OnGenesis(ctx context.Context, system *owner.Owner, supply int64) error
}

// ──────────────────────────────────────────────────
// Entity hooks
// ──────────────────────────────────────────────────

// OnOwnerCreated is called when a team or user is created.
type OnOwnerCreated interface {
	Plugin
	OnOwnerCreated(ctx context.Context, o *owner.Owner) error
}

// OnAssetCreated is called when an asset is created.
type OnAssetCreated interface {
	Plugin
	OnAssetCreated(ctx context.Context, a *asset.Asset) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnValueTransferred is called after value moves between owners.
type OnValueTransferred interface {
	Plugin
	OnValueTransferred(ctx context.Context, act *activity.Activity, amount int64) error
}

// OnAssetsTransferred is called after asset ownership changes.
type OnAssetsTransferred interface {
	Plugin
	OnAssetsTransferred(ctx context.Context, act *activity.Activity) error
}

// OnAssetContributed is called after a contribution reward is minted.
type OnAssetContributed interface {
	Plugin
	OnAssetContributed(ctx context.Context, act *activity.Activity, reward int64) error
}

// OnAssetOffered is called after an asset's held value is paid out.
type OnAssetOffered interface {
	Plugin
	OnAssetOffered(ctx context.Context, act *activity.Activity, amount int64) error
}

// OnAccountChecked is called after a balance check.
type OnAccountChecked interface {
	Plugin
	OnAccountChecked(ctx context.Context, act *activity.Activity) error
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnObligationExecuted is called when a pending contract obligation completes.
type OnObligationExecuted interface {
	Plugin
	OnObligationExecuted(ctx context.Context, termID id.TermID, act *activity.Activity) error
}

// OnObligationFailed is called when a pending contract obligation fails.
type OnObligationFailed interface {
	Plugin
	OnObligationFailed(ctx context.Context, termID id.TermID, pending *activity.Activity, cause error) error
}

// OnSettlementTick is called after every settlement scan.
type OnSettlementTick interface {
	Plugin
	OnSettlementTick(ctx context.Context, executed, failed int, elapsed time.Duration) error
}
