package value

import (
	"context"

	"github.com/xraph/tally/id"
)

type Store interface {
	CreateValue(ctx context.Context, v *Value) error
	InsertValues(ctx context.Context, vs []*Value) error
	GetValue(ctx context.Context, valueID id.ValueID) (*Value, error)
	// GetPool returns the pool record held by ownerID.
	GetPool(ctx context.Context, ownerID id.OwnerID) (*Value, error)
	ListValues(ctx context.Context, opts ListOpts) ([]*Value, error)
	SumValues(ctx context.Context, opts ListOpts) (int64, error)
	// DebitPool decrements the pool by amount only if it holds at least that
	// much; otherwise it fails with the insufficient funds error and leaves
	// the pool untouched.
	DebitPool(ctx context.Context, poolID id.ValueID, amount int64) error
	CreditPool(ctx context.Context, poolID id.ValueID, amount int64) error
	// ReassignValues moves the listed values from one holder to another. Only
	// values currently held by from are moved; the count moved is returned.
	ReassignValues(ctx context.Context, valueIDs []id.ValueID, from, to Holder) (int64, error)
}

// ListOpts filters values. Results are ordered by ID ascending.
type ListOpts struct {
	OwnerID     id.OwnerID
	AssetID     id.AssetID
	HolderType  HolderType
	ExcludePool bool
	Limit       int
}
