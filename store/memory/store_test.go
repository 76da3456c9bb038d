package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/contract"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/owner"
	"github.com/xraph/tally/store/memory"
	"github.com/xraph/tally/types"
	"github.com/xraph/tally/value"
)

func newOwner(role owner.Role, name string) *owner.Owner {
	return &owner.Owner{Entity: types.NewEntity(), ID: id.NewOwnerID(), Role: role, Name: name}
}

func TestOwners(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	sys := newOwner(owner.RoleSystem, "System")
	if err := s.CreateOwner(ctx, sys); err != nil {
		t.Fatalf("CreateOwner: %v", err)
	}
	if err := s.CreateOwner(ctx, newOwner(owner.RoleSystem, "Other")); !errors.Is(err, tally.ErrAlreadyExists) {
		t.Fatalf("second system owner: got %v, want ErrAlreadyExists", err)
	}

	user := newOwner(owner.RoleUser, "Alice")
	user.MemberOf = []id.OwnerID{sys.ID}
	team := newOwner(owner.RoleTeam, "Directors")
	for _, o := range []*owner.Owner{user, team} {
		if err := s.CreateOwner(ctx, o); err != nil {
			t.Fatalf("CreateOwner: %v", err)
		}
	}

	got, err := s.GetSystemOwner(ctx)
	if err != nil || got.ID != sys.ID {
		t.Fatalf("GetSystemOwner = %v, %v", got, err)
	}

	tests := []struct {
		name string
		opts owner.ListOpts
		want int
	}{
		{"all", owner.ListOpts{}, 3},
		{"users", owner.ListOpts{Role: owner.RoleUser}, 1},
		{"non system", owner.ListOpts{ExcludeRoles: []owner.Role{owner.RoleSystem}}, 2},
		{"exclude id", owner.ListOpts{ExcludeIDs: []id.OwnerID{user.ID}}, 2},
		{"members of system", owner.ListOpts{MemberOf: sys.ID}, 1},
		{"limit", owner.ListOpts{Limit: 2}, 2},
		{"offset past end", owner.ListOpts{Offset: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListOwners(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListOwners: %v", err)
			}
			if len(list) != tt.want {
				t.Errorf("len = %d, want %d", len(list), tt.want)
			}
		})
	}

	// returned owners are copies
	got.Name = "mutated"
	again, _ := s.GetOwner(ctx, sys.ID)
	if again.Name != "System" {
		t.Error("store returned an aliased owner")
	}

	if _, err := s.GetOwner(ctx, id.NewOwnerID()); !errors.Is(err, tally.ErrOwnerNotFound) {
		t.Errorf("GetOwner missing: %v", err)
	}
}

func TestAssetsFilterByContractStatus(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	ownerID := id.NewOwnerID()

	active := &asset.Asset{ID: id.NewAssetID(), Type: asset.TypeContract, OwnerID: ownerID,
		Contract: &contract.Contract{Status: contract.StatusActive}}
	expired := &asset.Asset{ID: id.NewAssetID(), Type: asset.TypeContract, OwnerID: ownerID,
		Contract: &contract.Contract{Status: contract.StatusExpired}}
	board := &asset.Asset{ID: id.NewAssetID(), Type: asset.TypeBoard, OwnerID: ownerID,
		Board: &asset.Board{Name: "General"}}
	for _, a := range []*asset.Asset{active, expired, board} {
		if err := s.CreateAsset(ctx, a); err != nil {
			t.Fatalf("CreateAsset: %v", err)
		}
	}

	list, err := s.ListAssets(ctx, asset.ListOpts{Type: asset.TypeContract, ContractStatus: contract.StatusActive})
	if err != nil {
		t.Fatalf("ListAssets: %v", err)
	}
	if len(list) != 1 || list[0].ID != active.ID {
		t.Fatalf("expected only the active contract, got %d", len(list))
	}
}

func TestPoolDebitIsConditional(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	sys := id.NewOwnerID()

	pool := &value.Value{ID: id.NewValueID(), Amount: 5, HolderType: value.HolderOwner, OwnerID: sys, Pool: true}
	if err := s.CreateValue(ctx, pool); err != nil {
		t.Fatalf("CreateValue: %v", err)
	}
	dup := &value.Value{ID: id.NewValueID(), Amount: 1, HolderType: value.HolderOwner, OwnerID: sys, Pool: true}
	if err := s.CreateValue(ctx, dup); !errors.Is(err, tally.ErrAlreadyExists) {
		t.Fatalf("second pool: got %v, want ErrAlreadyExists", err)
	}

	if err := s.DebitPool(ctx, pool.ID, 3); err != nil {
		t.Fatalf("DebitPool: %v", err)
	}
	if err := s.DebitPool(ctx, pool.ID, 3); !errors.Is(err, tally.ErrInsufficientFunds) {
		t.Fatalf("overdraw: got %v, want ErrInsufficientFunds", err)
	}
	got, _ := s.GetPool(ctx, sys)
	if got.Amount != 2 {
		t.Fatalf("pool = %d, want 2", got.Amount)
	}
	if err := s.CreditPool(ctx, pool.ID, 3); err != nil {
		t.Fatalf("CreditPool: %v", err)
	}
	got, _ = s.GetPool(ctx, sys)
	if got.Amount != 5 {
		t.Fatalf("pool = %d, want 5", got.Amount)
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	sys := id.NewOwnerID()
	pool := &value.Value{ID: id.NewValueID(), Amount: 50, HolderType: value.HolderOwner, OwnerID: sys, Pool: true}
	_ = s.CreateValue(ctx, pool)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.DebitPool(ctx, pool.ID, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 50 {
		t.Errorf("succeeded = %d, want 50", succeeded)
	}
	got, _ := s.GetPool(ctx, sys)
	if got.Amount != 0 {
		t.Errorf("pool = %d, want 0", got.Amount)
	}
}

func TestReassignValuesChecksCurrentHolder(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	alice, bob := id.NewOwnerID(), id.NewOwnerID()
	post := id.NewAssetID()

	units := value.NewUnits(3, value.AssetHolder(post))
	if err := s.InsertValues(ctx, units); err != nil {
		t.Fatalf("InsertValues: %v", err)
	}

	moved, err := s.ReassignValues(ctx, value.IDs(units), value.AssetHolder(post), value.OwnerHolder(alice))
	if err != nil || moved != 3 {
		t.Fatalf("ReassignValues = %d, %v", moved, err)
	}
	// stale holder: nothing moves
	moved, err = s.ReassignValues(ctx, value.IDs(units), value.AssetHolder(post), value.OwnerHolder(bob))
	if err != nil || moved != 0 {
		t.Fatalf("stale ReassignValues = %d, %v", moved, err)
	}

	sum, _ := s.SumValues(ctx, value.ListOpts{OwnerID: alice})
	if sum != 3 {
		t.Errorf("alice sum = %d, want 3", sum)
	}
	left, _ := s.ListValues(ctx, value.ListOpts{AssetID: post})
	if len(left) != 0 {
		t.Errorf("post still holds %d values", len(left))
	}
	for _, v := range units {
		got, _ := s.GetValue(ctx, v.ID)
		if err := got.Validate(); err != nil {
			t.Errorf("value %s violates holder rule: %v", v.ID, err)
		}
	}
}

func TestListValuesOrderedByID(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	alice := id.NewOwnerID()
	units := value.NewUnits(10, value.OwnerHolder(alice))
	_ = s.InsertValues(ctx, units)

	list, err := s.ListValues(ctx, value.ListOpts{OwnerID: alice, ExcludePool: true, Limit: 4})
	if err != nil {
		t.Fatalf("ListValues: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("len = %d, want 4", len(list))
	}
	for k := 1; k < len(list); k++ {
		if !list[k-1].ID.Less(list[k].ID) {
			t.Fatalf("values not sorted at %d", k)
		}
	}
}

func TestInsertValuesRejectsInvalidBatch(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	good := value.NewUnits(2, value.OwnerHolder(id.NewOwnerID()))
	bad := &value.Value{ID: id.NewValueID(), Amount: 1, HolderType: value.HolderOwner}

	err := s.InsertValues(ctx, append(good, bad))
	if !errors.Is(err, tally.ErrInvalidInput) {
		t.Fatalf("got %v, want ErrInvalidInput", err)
	}
	if _, err := s.GetValue(ctx, good[0].ID); !errors.Is(err, tally.ErrValueNotFound) {
		t.Error("partial batch was written")
	}
}

func TestActivityStatusIsConditional(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	term := id.NewTermID()

	a := activity.New(activity.TypeTransfer, activity.StatusPending, id.NewOwnerID(), time.Now())
	a.ContractTermID = term
	a.Transfer = &activity.Transfer{Type: activity.TransferValuesFromOwnerToOwner}
	if err := s.CreateActivity(ctx, a); err != nil {
		t.Fatalf("CreateActivity: %v", err)
	}

	if err := s.UpdateActivityStatus(ctx, a.ID, activity.StatusPending, activity.StatusCompleted); err != nil {
		t.Fatalf("UpdateActivityStatus: %v", err)
	}
	err := s.UpdateActivityStatus(ctx, a.ID, activity.StatusPending, activity.StatusFailed)
	if !errors.Is(err, tally.ErrInvalidState) {
		t.Fatalf("second move: got %v, want ErrInvalidState", err)
	}

	pending, _ := s.ListActivities(ctx, activity.ListOpts{ContractTermID: term, Status: activity.StatusPending})
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
	transfers, _ := s.ListActivities(ctx, activity.ListOpts{TransferType: activity.TransferValuesFromOwnerToOwner})
	if len(transfers) != 1 {
		t.Errorf("transfers = %d, want 1", len(transfers))
	}
}

func TestListActivitiesByRecipient(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	target := id.NewAssetID()

	for _, to := range []id.ID{target, id.NewAssetID()} {
		a := activity.New(activity.TypeTransfer, activity.StatusCompleted, id.NewOwnerID(), time.Now())
		a.Transfer = &activity.Transfer{Type: activity.TransferValuesFromOwnerToAsset, ToID: to}
		if err := s.CreateActivity(ctx, a); err != nil {
			t.Fatalf("CreateActivity: %v", err)
		}
	}
	check := activity.New(activity.TypeCheckAccount, activity.StatusCompleted, id.NewOwnerID(), time.Now())
	if err := s.CreateActivity(ctx, check); err != nil {
		t.Fatalf("CreateActivity: %v", err)
	}

	got, err := s.ListActivities(ctx, activity.ListOpts{TransferToID: target})
	if err != nil {
		t.Fatalf("ListActivities: %v", err)
	}
	if len(got) != 1 || got[0].Transfer.ToID != target {
		t.Errorf("got %d activities, want the one sent to %s", len(got), target)
	}
}

func TestResetAndClose(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_ = s.CreateOwner(ctx, newOwner(owner.RoleSystem, "System"))

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := s.GetSystemOwner(ctx); !errors.Is(err, tally.ErrSystemNotInitialized) {
		t.Errorf("after reset: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
	_ = s.Close()
	if err := s.Ping(ctx); !errors.Is(err, tally.ErrStoreClosed) {
		t.Errorf("Ping after close: %v", err)
	}
}
