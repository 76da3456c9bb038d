package activity_test

import (
	"testing"
	"time"

	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/id"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to activity.Status
		want     bool
	}{
		{activity.StatusPending, activity.StatusCompleted, true},
		{activity.StatusPending, activity.StatusFailed, true},
		{activity.StatusPending, activity.StatusCanceled, true},
		{activity.StatusPending, activity.StatusPending, false},
		{activity.StatusCompleted, activity.StatusFailed, false},
		{activity.StatusFailed, activity.StatusCompleted, false},
		{activity.StatusCanceled, activity.StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanMoveTo(tt.to); got != tt.want {
				t.Errorf("CanMoveTo = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewStampsTimes(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	actor := id.NewOwnerID()
	a := activity.New(activity.TypeTransfer, activity.StatusPending, actor, now)

	if a.ID.Prefix() != id.PrefixActivity {
		t.Errorf("prefix = %q", a.ID.Prefix())
	}
	if !a.Timestamp.Equal(now) || !a.CreatedAt.Equal(now) {
		t.Errorf("timestamps not set to now: %v %v", a.Timestamp, a.CreatedAt)
	}
	if a.OwnerID != actor || a.Status != activity.StatusPending {
		t.Errorf("unexpected activity: %+v", a)
	}
}

func TestCloneCopiesTransferIDs(t *testing.T) {
	a := activity.New(activity.TypeTransfer, activity.StatusCompleted, id.NewOwnerID(), time.Now())
	a.Transfer = &activity.Transfer{Type: activity.TransferValuesFromOwnerToOwner, IDs: []id.ID{id.NewValueID()}}

	c := a.Clone()
	c.Transfer.IDs[0] = id.NewValueID()
	if a.Transfer.IDs[0] == c.Transfer.IDs[0] {
		t.Error("clone shares transfer ids with original")
	}
}
