package tally_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/contract"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/lock"
	"github.com/xraph/tally/owner"
	"github.com/xraph/tally/store/memory"
	"github.com/xraph/tally/value"
)

func newEngine(t *testing.T, opts ...tally.Option) (*tally.Engine, *memory.Store) {
	t.Helper()
	s := memory.New()
	base := []tally.Option{tally.WithLogger(slog.New(slog.DiscardHandler))}
	e := tally.New(s, append(base, opts...)...)
	if _, err := e.Reset(context.Background()); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	return e, s
}

// totalValue sums every value record, pool included.
func totalValue(t *testing.T, s *memory.Store) int64 {
	t.Helper()
	total, err := s.SumValues(context.Background(), value.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	return total
}

func poolAmount(t *testing.T, e *tally.Engine, s *memory.Store) int64 {
	t.Helper()
	ctx := context.Background()
	sysID, err := e.SystemID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	pool, err := s.GetPool(ctx, sysID)
	if err != nil {
		t.Fatal(err)
	}
	return pool.Amount
}

func balance(t *testing.T, e *tally.Engine, ownerID id.OwnerID) int64 {
	t.Helper()
	n, err := e.Balance(context.Background(), ownerID)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// setup returns the System actor and two users.
func setup(t *testing.T, e *tally.Engine) (sys, alice, bob *tally.Actor) {
	t.Helper()
	ctx := context.Background()
	sys, err := e.System(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if alice, err = sys.CreateUser(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	if bob, err = sys.CreateUser(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	return sys, alice, bob
}

func TestGenesis(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)

	sys, err := s.GetSystemOwner(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sys.Name != tally.SystemName || sys.Role != owner.RoleSystem {
		t.Errorf("unexpected system owner %+v", sys)
	}
	if got := poolAmount(t, e, s); got != tally.DefaultTotalSupply {
		t.Errorf("pool = %d, want %d", got, tally.DefaultTotalSupply)
	}
	if got := totalValue(t, s); got != tally.DefaultTotalSupply {
		t.Errorf("total value = %d", got)
	}

	contracts, err := e.Assets(ctx, asset.ListOpts{Type: asset.TypeContract, ContractStatus: contract.StatusActive})
	if err != nil {
		t.Fatal(err)
	}
	if len(contracts) != 1 {
		t.Fatalf("expected 1 active contract, got %d", len(contracts))
	}
	c := contracts[0].Contract
	if c.Title != tally.AirdropTitle || len(c.Terms) != 1 {
		t.Fatalf("unexpected contract %+v", c)
	}
	term := c.Terms[0]
	if term.Status != contract.TermAgreed || term.Interval != tally.AirdropInterval || term.RecurringTransfer.Amount != 1 {
		t.Errorf("unexpected term %+v", term)
	}

	pending, err := e.Activities(ctx, activity.ListOpts{ContractTermID: term.ID, Status: activity.StatusPending})
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending obligation, got %d", len(pending))
	}
	if !pending[0].Transfer.ToID.IsNil() || pending[0].Transfer.FromID != sys.ID {
		t.Errorf("unexpected pending transfer %+v", pending[0].Transfer)
	}

	boards, err := e.Assets(ctx, asset.ListOpts{Type: asset.TypeBoard, OwnerID: sys.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(boards) != 1 || boards[0].Board.Description != tally.SystemBoardDescription {
		t.Errorf("unexpected system boards %+v", boards)
	}
}

func TestResetDiscardsPreviousEconomy(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	_, alice, _ := setup(t, e)

	sys, err := e.System(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := sys.Reset(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Owner(ctx, alice.ID()); !tally.IsNotFound(err) {
		t.Errorf("expected alice to be gone, got %v", err)
	}
	newSys, err := e.SystemID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if newSys != sys.ID() {
		t.Errorf("actor not rebound: %s vs %s", sys.ID(), newSys)
	}
	if got := totalValue(t, s); got != tally.DefaultTotalSupply {
		t.Errorf("total value = %d", got)
	}
}

func TestScenario(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	sys, alice, bob := setup(t, e)

	board, err := alice.CreateBoard(ctx, "Ideas", "alice's board")
	if err != nil {
		t.Fatal(err)
	}
	post, err := alice.CreatePost(ctx, board.ID, "first post")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bob.CreateComment(ctx, post.ID, "nice"); err != nil {
		t.Fatal(err)
	}

	if got := poolAmount(t, e, s); got != 999_999_995 {
		t.Errorf("pool = %d, want 999999995", got)
	}

	acts, err := alice.TransferAssets(ctx, sys.ID(), []id.AssetID{post.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(acts) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(acts))
	}
	if acts[0].Transfer.Type != activity.TransferAssetsFromOwnerToOwner {
		t.Errorf("first activity type = %q", acts[0].Transfer.Type)
	}
	if acts[1].Transfer.Type != activity.TransferValuesFromAssetToOwner || len(acts[1].Transfer.IDs) != 3 {
		t.Errorf("unexpected offer activity %+v", acts[1].Transfer)
	}

	if got := balance(t, e, alice.ID()); got != 3 {
		t.Errorf("alice holds %d, want 3", got)
	}
	moved, err := e.Asset(ctx, post.ID)
	if err != nil {
		t.Fatal(err)
	}
	if moved.OwnerID != sys.ID() {
		t.Errorf("post owner = %s, want system", moved.OwnerID)
	}
	if got := totalValue(t, s); got != tally.DefaultTotalSupply {
		t.Errorf("conservation broken: total = %d", got)
	}
}

func TestRewards(t *testing.T) {
	tests := []struct {
		name string
		opts []tally.Option
		want map[asset.Type]int64
	}{
		{
			name: "defaults",
			want: map[asset.Type]int64{asset.TypeBoard: 0, asset.TypePost: 3, asset.TypeComment: 2, asset.TypeExpression: 1},
		},
		{
			name: "override",
			opts: []tally.Option{tally.WithRewards(map[asset.Type]int64{asset.TypePost: 10, asset.TypeBoard: 1})},
			want: map[asset.Type]int64{asset.TypeBoard: 1, asset.TypePost: 10, asset.TypeComment: 2, asset.TypeExpression: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e, s := newEngine(t, tt.opts...)
			_, alice, _ := setup(t, e)

			board, err := alice.CreateBoard(ctx, "b", "")
			if err != nil {
				t.Fatal(err)
			}
			post, err := alice.CreatePost(ctx, board.ID, "p")
			if err != nil {
				t.Fatal(err)
			}
			comment, err := alice.CreateComment(ctx, post.ID, "c")
			if err != nil {
				t.Fatal(err)
			}
			expr, err := alice.CreateExpression(ctx, comment.ID, asset.ExpressionWorth)
			if err != nil {
				t.Fatal(err)
			}

			for _, a := range []*asset.Asset{board, post, comment, expr} {
				held, err := s.SumValues(ctx, value.ListOpts{AssetID: a.ID})
				if err != nil {
					t.Fatal(err)
				}
				if held != tt.want[a.Type] {
					t.Errorf("%s holds %d, want %d", a.Type, held, tt.want[a.Type])
				}
			}

			contributions, err := e.Activities(ctx, activity.ListOpts{TransferType: activity.TransferValuesFromOwnerToAsset})
			if err != nil {
				t.Fatal(err)
			}
			if len(contributions) != 4 {
				t.Errorf("expected 4 contribution activities, got %d", len(contributions))
			}
			if got := totalValue(t, s); got != tally.DefaultTotalSupply {
				t.Errorf("conservation broken: total = %d", got)
			}
		})
	}
}

func TestTransferValue(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	sys, alice, bob := setup(t, e)

	act, err := sys.TransferValue(ctx, alice.ID(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(act.Transfer.IDs) != 5 || act.Status != activity.StatusCompleted {
		t.Errorf("unexpected system transfer %+v", act)
	}

	act, err = alice.TransferValue(ctx, bob.ID(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if act.Transfer.Type != activity.TransferValuesFromOwnerToOwner || act.OwnerID != alice.ID() {
		t.Errorf("unexpected user transfer %+v", act)
	}

	if got := balance(t, e, alice.ID()); got != 3 {
		t.Errorf("alice = %d, want 3", got)
	}
	if got := balance(t, e, bob.ID()); got != 2 {
		t.Errorf("bob = %d, want 2", got)
	}
	if got := poolAmount(t, e, s); got != tally.DefaultTotalSupply-5 {
		t.Errorf("pool = %d", got)
	}
	if got := totalValue(t, s); got != tally.DefaultTotalSupply {
		t.Errorf("conservation broken: total = %d", got)
	}
}

func TestTransferValueRejects(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	_, alice, bob := setup(t, e)

	before, err := e.Activities(ctx, activity.ListOpts{Type: activity.TypeTransfer})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		to     id.OwnerID
		amount int64
		want   error
	}{
		{"zero amount", bob.ID(), 0, tally.ErrInvalidInput},
		{"negative amount", bob.ID(), -1, tally.ErrInvalidInput},
		{"self", alice.ID(), 1, tally.ErrInvalidInput},
		{"unknown recipient", id.NewOwnerID(), 1, tally.ErrNotFound},
		{"insufficient funds", bob.ID(), 1, tally.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := alice.TransferValue(ctx, tt.to, tt.amount)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	after, err := e.Activities(ctx, activity.ListOpts{Type: activity.TypeTransfer})
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != len(before) {
		t.Errorf("rejected transfers wrote %d activities", len(after)-len(before))
	}
	if got := totalValue(t, s); got != tally.DefaultTotalSupply {
		t.Errorf("conservation broken: total = %d", got)
	}
}

func TestCheckAccountIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	sys, alice, _ := setup(t, e)

	if _, err := sys.TransferValue(ctx, alice.ID(), 7); err != nil {
		t.Fatal(err)
	}

	first, err := alice.CheckAccount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := alice.CheckAccount(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if first.CheckAccount.Amount != 7 || second.CheckAccount.Amount != 7 {
		t.Errorf("amounts = %d, %d; want 7", first.CheckAccount.Amount, second.CheckAccount.Amount)
	}
	if first.CheckAccount.Name != "alice" || first.Type != activity.TypeCheckAccount {
		t.Errorf("unexpected activity %+v", first)
	}
	if got := balance(t, e, alice.ID()); got != 7 {
		t.Errorf("balance changed to %d", got)
	}
}

func TestTransferAssets(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	sys, alice, bob := setup(t, e)

	board, err := alice.CreateBoard(ctx, "b", "")
	if err != nil {
		t.Fatal(err)
	}
	p1, err := alice.CreatePost(ctx, board.ID, "one")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := alice.CreatePost(ctx, board.ID, "two")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("multiple assets to system unsupported", func(t *testing.T) {
		_, err := alice.TransferAssets(ctx, sys.ID(), []id.AssetID{p1.ID, p2.ID})
		if !errors.Is(err, tally.ErrUnsupportedOperation) {
			t.Fatalf("got %v, want ErrUnsupportedOperation", err)
		}
		for _, pid := range []id.AssetID{p1.ID, p2.ID} {
			a, err := e.Asset(ctx, pid)
			if err != nil {
				t.Fatal(err)
			}
			if a.OwnerID != alice.ID() {
				t.Errorf("asset %s moved despite rejection", pid)
			}
		}
		if got := balance(t, e, alice.ID()); got != 0 {
			t.Errorf("alice was paid %d", got)
		}
	})

	t.Run("not owner", func(t *testing.T) {
		_, err := bob.TransferAssets(ctx, alice.ID(), []id.AssetID{p1.ID})
		if !errors.Is(err, tally.ErrInvalidState) {
			t.Fatalf("got %v, want ErrInvalidState", err)
		}
	})

	t.Run("duplicate ids", func(t *testing.T) {
		_, err := alice.TransferAssets(ctx, bob.ID(), []id.AssetID{p1.ID, p1.ID})
		if !errors.Is(err, tally.ErrInvalidInput) {
			t.Fatalf("got %v, want ErrInvalidInput", err)
		}
	})

	t.Run("between users keeps held value on asset", func(t *testing.T) {
		acts, err := alice.TransferAssets(ctx, bob.ID(), []id.AssetID{p1.ID, p2.ID})
		if err != nil {
			t.Fatal(err)
		}
		if len(acts) != 1 {
			t.Fatalf("expected 1 activity, got %d", len(acts))
		}
		a, err := e.Asset(ctx, p1.ID)
		if err != nil {
			t.Fatal(err)
		}
		if a.OwnerID != bob.ID() {
			t.Errorf("owner = %s, want bob", a.OwnerID)
		}
		held, err := s.SumValues(ctx, value.ListOpts{AssetID: p1.ID})
		if err != nil {
			t.Fatal(err)
		}
		if held != 3 {
			t.Errorf("post holds %d, want 3", held)
		}
	})
}

func TestOfferAndContributeValidation(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	checkAct := &activity.Activity{ID: id.NewActivityID(), Type: activity.TypeCheckAccount}
	multi := &activity.Activity{
		ID:   id.NewActivityID(),
		Type: activity.TypeTransfer,
		Transfer: &activity.Transfer{
			Type: activity.TransferAssetsFromOwnerToOwner,
			IDs:  []id.ID{id.NewAssetID(), id.NewAssetID()},
		},
	}
	valuesAct := &activity.Activity{
		ID:       id.NewActivityID(),
		Type:     activity.TypeTransfer,
		Transfer: &activity.Transfer{Type: activity.TransferValuesFromOwnerToOwner},
	}

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"offer non-transfer", func() error { _, err := e.OfferAsset(ctx, checkAct); return err }, tally.ErrInvalidState},
		{"offer value transfer", func() error { _, err := e.OfferAsset(ctx, valuesAct); return err }, tally.ErrInvalidState},
		{"offer multiple", func() error { _, err := e.OfferAsset(ctx, multi); return err }, tally.ErrUnsupportedOperation},
		{"contribute non-create", func() error { _, err := e.ContributeAsset(ctx, checkAct); return err }, tally.ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPoolExhaustion(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t, tally.WithTotalSupply(4))
	_, alice, _ := setup(t, e)

	board, err := alice.CreateBoard(ctx, "b", "")
	if err != nil {
		t.Fatal(err)
	}
	post, err := alice.CreatePost(ctx, board.ID, "p")
	if err != nil {
		t.Fatal(err)
	}

	comment, err := alice.CreateComment(ctx, post.ID, "c")
	if !tally.IsInsufficientFunds(err) {
		t.Fatalf("got %v, want insufficient funds", err)
	}
	if comment == nil {
		t.Fatal("expected the comment to be returned with the reward error")
	}
	if got := poolAmount(t, e, s); got != 1 {
		t.Errorf("pool = %d, want 1", got)
	}
	if got := totalValue(t, s); got != 4 {
		t.Errorf("conservation broken: total = %d", got)
	}
}

func TestConcurrentMints(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t, tally.WithTotalSupply(50))
	sys, alice, _ := setup(t, e)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sys.TransferValue(ctx, alice.ID(), 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case tally.IsInsufficientFunds(err):
				fail++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 50 || fail != 50 {
		t.Errorf("ok=%d fail=%d, want 50/50", ok, fail)
	}
	if got := balance(t, e, alice.ID()); got != 50 {
		t.Errorf("alice = %d, want 50", got)
	}
	if got := poolAmount(t, e, s); got != 0 {
		t.Errorf("pool = %d, want 0", got)
	}
}

func TestSplitValues(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	sys, alice, _ := setup(t, e)

	board, err := alice.CreateBoard(ctx, "b", "")
	if err != nil {
		t.Fatal(err)
	}

	act, err := sys.SplitValues(ctx, 4, value.HolderAsset, board.ID)
	if err != nil {
		t.Fatal(err)
	}
	if act.Transfer.Type != activity.TransferValuesFromOwnerToAsset || len(act.Transfer.IDs) != 4 {
		t.Errorf("unexpected split activity %+v", act.Transfer)
	}
	held, err := s.SumValues(ctx, value.ListOpts{AssetID: board.ID})
	if err != nil {
		t.Fatal(err)
	}
	if held != 4 {
		t.Errorf("board holds %d, want 4", held)
	}

	tests := []struct {
		name  string
		actor *tally.Actor
		ht    value.HolderType
		to    id.ID
		want  error
	}{
		{"user forbidden", alice, value.HolderOwner, alice.ID(), tally.ErrForbidden},
		{"unknown holder type", sys, value.HolderType("pool"), alice.ID(), tally.ErrInvalidInput},
		{"to system", sys, value.HolderOwner, sys.ID(), tally.ErrInvalidInput},
		{"missing asset", sys, value.HolderAsset, id.NewAssetID(), tally.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.actor.SplitValues(ctx, 1, tt.ht, tt.to); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func heldByAsset(t *testing.T, s *memory.Store, assetID id.AssetID) int64 {
	t.Helper()
	n, err := s.SumValues(context.Background(), value.ListOpts{AssetID: assetID, HolderType: value.HolderAsset})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func createActivityFor(t *testing.T, e *tally.Engine, assetID id.AssetID) *activity.Activity {
	t.Helper()
	acts, err := e.Activities(context.Background(), activity.ListOpts{Type: activity.TypeCreate})
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range acts {
		if a.Create != nil && a.Create.Asset != nil && a.Create.Asset.ID == assetID {
			return a
		}
	}
	t.Fatalf("no create activity for %s", assetID)
	return nil
}

func TestOfferAssetRequiresRecordedCashOut(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	sys, alice, bob := setup(t, e)

	board, err := alice.CreateBoard(ctx, "b", "")
	if err != nil {
		t.Fatal(err)
	}
	post, err := alice.CreatePost(ctx, board.ID, "p")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("unrecorded transfer", func(t *testing.T) {
		forged := activity.New(activity.TypeTransfer, activity.StatusCompleted, bob.ID(), time.Now())
		forged.Transfer = &activity.Transfer{
			Type:   activity.TransferAssetsFromOwnerToOwner,
			FromID: bob.ID(),
			ToID:   sys.ID(),
			IDs:    []id.ID{post.ID},
		}
		if _, err := e.OfferAsset(ctx, forged); !errors.Is(err, tally.ErrInvalidState) {
			t.Fatalf("got %v, want ErrInvalidState", err)
		}
		if got := balance(t, e, bob.ID()); got != 0 {
			t.Errorf("bob was paid %d", got)
		}
		if got := heldByAsset(t, s, post.ID); got != 3 {
			t.Errorf("post holds %d, want 3", got)
		}
	})

	t.Run("transfer between users", func(t *testing.T) {
		other, err := alice.CreatePost(ctx, board.ID, "q")
		if err != nil {
			t.Fatal(err)
		}
		acts, err := alice.TransferAssets(ctx, bob.ID(), []id.AssetID{other.ID})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := e.OfferAsset(ctx, acts[0]); !errors.Is(err, tally.ErrInvalidState) {
			t.Fatalf("got %v, want ErrInvalidState", err)
		}

		// the recorded copy wins over an edited payload
		edited := *acts[0]
		edited.Transfer = &activity.Transfer{
			Type:   activity.TransferAssetsFromOwnerToOwner,
			FromID: alice.ID(),
			ToID:   sys.ID(),
			IDs:    []id.ID{other.ID},
		}
		if _, err := e.OfferAsset(ctx, &edited); !errors.Is(err, tally.ErrInvalidState) {
			t.Fatalf("edited: got %v, want ErrInvalidState", err)
		}
		if got := balance(t, e, alice.ID()); got != 0 {
			t.Errorf("alice was paid %d", got)
		}
		if got := heldByAsset(t, s, other.ID); got != 3 {
			t.Errorf("asset holds %d, want 3", got)
		}
	})

	t.Run("post keeps its owner", func(t *testing.T) {
		a, err := e.Asset(ctx, post.ID)
		if err != nil {
			t.Fatal(err)
		}
		if a.OwnerID != alice.ID() {
			t.Errorf("owner = %s, want alice", a.OwnerID)
		}
	})
}

func TestContributeAssetOnce(t *testing.T) {
	ctx := context.Background()
	e, s := newEngine(t)
	_, alice, _ := setup(t, e)

	board, err := alice.CreateBoard(ctx, "b", "")
	if err != nil {
		t.Fatal(err)
	}
	post, err := alice.CreatePost(ctx, board.ID, "p")
	if err != nil {
		t.Fatal(err)
	}
	want := tally.DefaultTotalSupply - tally.DefaultRewards()[asset.TypePost]

	tests := []struct {
		name   string
		create *activity.Activity
	}{
		{"repeated post", createActivityFor(t, e, post.ID)},
		{"repeated zero-reward board", createActivityFor(t, e, board.ID)},
		{"unrecorded create", &activity.Activity{
			ID:     id.NewActivityID(),
			Type:   activity.TypeCreate,
			Create: &activity.Create{Asset: &activity.CreateAsset{ID: post.ID}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 3 {
				if _, err := e.ContributeAsset(ctx, tt.create); !errors.Is(err, tally.ErrInvalidState) {
					t.Fatalf("got %v, want ErrInvalidState", err)
				}
			}
			if got := poolAmount(t, e, s); got != want {
				t.Errorf("pool = %d, want %d", got, want)
			}
			if got := heldByAsset(t, s, post.ID); got != 3 {
				t.Errorf("post holds %d, want 3", got)
			}
		})
	}
}

// assetLockFailer fails the nth asset lock taken after arm.
type assetLockFailer struct {
	lock.Locker

	mu     sync.Mutex
	calls  int
	failAt int
}

func (l *assetLockFailer) arm(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls, l.failAt = 0, n
}

func (l *assetLockFailer) Lock(ctx context.Context, key string) (func(), error) {
	if strings.HasPrefix(key, "asset:") {
		l.mu.Lock()
		l.calls++
		fail := l.failAt > 0 && l.calls == l.failAt
		l.mu.Unlock()
		if fail {
			return nil, errors.New("asset lock unavailable")
		}
	}
	return l.Locker.Lock(ctx, key)
}

func TestCashOutRevertsWhenOfferFails(t *testing.T) {
	ctx := context.Background()
	locker := &assetLockFailer{Locker: lock.NewLocal()}
	e, s := newEngine(t, tally.WithLocker(locker))
	sys, alice, _ := setup(t, e)

	board, err := alice.CreateBoard(ctx, "b", "")
	if err != nil {
		t.Fatal(err)
	}
	post, err := alice.CreatePost(ctx, board.ID, "p")
	if err != nil {
		t.Fatal(err)
	}

	// the first asset lock moves the post, the second releases its values
	locker.arm(2)
	if _, err := alice.TransferAssets(ctx, sys.ID(), []id.AssetID{post.ID}); err == nil {
		t.Fatal("expected cash-out to fail")
	}

	a, err := e.Asset(ctx, post.ID)
	if err != nil {
		t.Fatal(err)
	}
	if a.OwnerID != alice.ID() {
		t.Errorf("owner = %s, want alice after revert", a.OwnerID)
	}
	if got := heldByAsset(t, s, post.ID); got != 3 {
		t.Errorf("post holds %d, want 3", got)
	}
	if got := balance(t, e, alice.ID()); got != 0 {
		t.Errorf("alice was paid %d", got)
	}

	failed, err := e.Activities(ctx, activity.ListOpts{
		TransferType: activity.TransferAssetsFromOwnerToOwner,
		Status:       activity.StatusFailed,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed cash-out, got %d", len(failed))
	}
	completed, err := e.Activities(ctx, activity.ListOpts{
		TransferType: activity.TransferAssetsFromOwnerToOwner,
		Status:       activity.StatusCompleted,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(completed) != 0 {
		t.Errorf("expected no completed cash-out, got %d", len(completed))
	}

	// a later attempt succeeds
	locker.arm(0)
	acts, err := alice.TransferAssets(ctx, sys.ID(), []id.AssetID{post.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(acts) != 2 || acts[0].Status != activity.StatusCompleted {
		t.Fatalf("unexpected activities %+v", acts)
	}
	if got := balance(t, e, alice.ID()); got != 3 {
		t.Errorf("alice balance = %d, want 3", got)
	}
}
