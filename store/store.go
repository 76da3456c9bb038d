package store

import (
	"context"

	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/owner"
	"github.com/xraph/tally/value"
)

// Store is the unified storage interface for all Tally entities.
// Methods are declared explicitly, mirroring the entity sub-interfaces, so
// each backend satisfies owner.Store, asset.Store, value.Store and
// activity.Store at once.
type Store interface {
	// Owner methods
	CreateOwner(ctx context.Context, o *owner.Owner) error
	GetOwner(ctx context.Context, ownerID id.OwnerID) (*owner.Owner, error)
	GetSystemOwner(ctx context.Context) (*owner.Owner, error)
	ListOwners(ctx context.Context, opts owner.ListOpts) ([]*owner.Owner, error)
	UpdateOwner(ctx context.Context, o *owner.Owner) error

	// Asset methods
	CreateAsset(ctx context.Context, a *asset.Asset) error
	GetAsset(ctx context.Context, assetID id.AssetID) (*asset.Asset, error)
	ListAssets(ctx context.Context, opts asset.ListOpts) ([]*asset.Asset, error)
	UpdateAsset(ctx context.Context, a *asset.Asset) error

	// Value methods
	CreateValue(ctx context.Context, v *value.Value) error
	InsertValues(ctx context.Context, vs []*value.Value) error
	GetValue(ctx context.Context, valueID id.ValueID) (*value.Value, error)
	GetPool(ctx context.Context, ownerID id.OwnerID) (*value.Value, error)
	ListValues(ctx context.Context, opts value.ListOpts) ([]*value.Value, error)
	SumValues(ctx context.Context, opts value.ListOpts) (int64, error)
	DebitPool(ctx context.Context, poolID id.ValueID, amount int64) error
	CreditPool(ctx context.Context, poolID id.ValueID, amount int64) error
	ReassignValues(ctx context.Context, valueIDs []id.ValueID, from, to value.Holder) (int64, error)

	// Activity methods
	CreateActivity(ctx context.Context, a *activity.Activity) error
	GetActivity(ctx context.Context, activityID id.ActivityID) (*activity.Activity, error)
	ListActivities(ctx context.Context, opts activity.ListOpts) ([]*activity.Activity, error)
	UpdateActivityStatus(ctx context.Context, activityID id.ActivityID, from, to activity.Status) error

	// Core methods

	// Reset deletes every owner, asset, value and activity.
	Reset(ctx context.Context) error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ owner.Store    = Store(nil)
	_ asset.Store    = Store(nil)
	_ value.Store    = Store(nil)
	_ activity.Store = Store(nil)
)
