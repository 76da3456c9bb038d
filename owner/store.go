package owner

import (
	"context"

	"github.com/xraph/tally/id"
)

type Store interface {
	CreateOwner(ctx context.Context, o *Owner) error
	GetOwner(ctx context.Context, ownerID id.OwnerID) (*Owner, error)
	GetSystemOwner(ctx context.Context) (*Owner, error)
	ListOwners(ctx context.Context, opts ListOpts) ([]*Owner, error)
	UpdateOwner(ctx context.Context, o *Owner) error
}

// ListOpts filters owners. Results are ordered by ID ascending.
type ListOpts struct {
	Role         Role
	ExcludeRoles []Role
	ExcludeIDs   []id.OwnerID
	MemberOf     id.OwnerID
	Limit        int
	Offset       int
}
