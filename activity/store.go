package activity

import (
	"context"

	"github.com/xraph/tally/id"
)

type Store interface {
	CreateActivity(ctx context.Context, a *Activity) error
	GetActivity(ctx context.Context, activityID id.ActivityID) (*Activity, error)
	ListActivities(ctx context.Context, opts ListOpts) ([]*Activity, error)
	// UpdateActivityStatus moves an activity from one status to another. It
	// fails with the invalid state error when the stored status is not from.
	UpdateActivityStatus(ctx context.Context, activityID id.ActivityID, from, to Status) error
}

// ListOpts filters activities. Results are ordered by timestamp, then ID.
type ListOpts struct {
	Type           Type
	Status         Status
	TransferType   TransferType
	TransferToID   id.ID
	ContractTermID id.TermID
	OwnerID        id.OwnerID
	Limit          int
	Offset         int
}
