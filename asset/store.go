package asset

import (
	"context"

	"github.com/xraph/tally/contract"
	"github.com/xraph/tally/id"
)

type Store interface {
	CreateAsset(ctx context.Context, a *Asset) error
	GetAsset(ctx context.Context, assetID id.AssetID) (*Asset, error)
	ListAssets(ctx context.Context, opts ListOpts) ([]*Asset, error)
	UpdateAsset(ctx context.Context, a *Asset) error
}

// ListOpts filters assets. ContractStatus only matches contract assets.
// Results are ordered by ID ascending.
type ListOpts struct {
	Type           Type
	ContractStatus contract.Status
	OwnerID        id.OwnerID
	ParentID       id.AssetID
	Limit          int
	Offset         int
}
