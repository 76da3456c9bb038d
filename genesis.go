package tally

import (
	"context"
	"time"

	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/contract"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/owner"
	"github.com/xraph/tally/types"
	"github.com/xraph/tally/value"
)

// Genesis content written by Reset.
const (
	SystemName = "System"

	AirdropInterval    = 15 * time.Minute
	AirdropAmount      = int64(1)
	AirdropDescription = "Send 1 AVC to one randomly picked owner every 15 minutes."
	AirdropTitle       = "System Quarter-hour Air Drop Contract"
	AirdropSummary     = "System distributes agreed upon values to one random active user or team every 15 mintues."

	GeneralBoardName       = "General"
	SystemBoardDescription = "System's general board."
	TeamBoardDescription   = "Director's general board."
)

// Reset wipes the store and recreates the economy: the System owner, the
// pool holding the total supply, the airdrop contract with its first
// pending obligation and the System's general board.
func (e *Engine) Reset(ctx context.Context) (*owner.Owner, error) {
	e.logger.Warn("tally: resetting ledger", "total_supply", e.totalSupply)

	e.clearIdentity()
	if err := exec(ctx, e, "reset", e.store.Reset); err != nil {
		return nil, err
	}

	now := e.now()

	sys := &owner.Owner{
		Entity:   types.NewEntityAt(now),
		ID:       id.NewOwnerID(),
		Role:     owner.RoleSystem,
		Name:     SystemName,
		MemberOf: []id.OwnerID{},
	}
	if err := e.createOwner(ctx, sys); err != nil {
		return nil, err
	}

	pool := &value.Value{
		Entity:     types.NewEntityAt(now),
		ID:         id.NewValueID(),
		Amount:     e.totalSupply,
		HolderType: value.HolderOwner,
		OwnerID:    sys.ID,
		Pool:       true,
	}
	if err := exec(ctx, e, "create pool", func(ctx context.Context) error {
		return e.store.CreateValue(ctx, pool)
	}); err != nil {
		return nil, err
	}

	genesis := activity.New(activity.TypeCreate, activity.StatusCompleted, id.Nil, now)
	genesis.ValueID = pool.ID
	genesis.Create = &activity.Create{Owner: createOwnerPayload(sys)}
	if err := e.record(ctx, genesis); err != nil {
		return nil, err
	}

	e.setIdentity(sys, pool.ID)

	term := contract.Term{
		ID:                id.NewTermID(),
		Description:       AirdropDescription,
		Type:              contract.TermRecurringTransfer,
		Interval:          AirdropInterval,
		Status:            contract.TermAgreed,
		RecurringTransfer: &contract.RecurringTransfer{Amount: AirdropAmount},
	}
	if err := e.record(ctx, nextObligation(sys.ID, term.ID, id.Nil, now)); err != nil {
		return nil, err
	}

	airdrop := &asset.Asset{
		Entity:  types.NewEntityAt(now),
		ID:      id.NewAssetID(),
		Type:    asset.TypeContract,
		OwnerID: sys.ID,
		Contract: &contract.Contract{
			Title:   AirdropTitle,
			Summary: AirdropSummary,
			Status:  contract.StatusActive,
			Terms:   []contract.Term{term},
		},
	}
	if _, err := e.createAsset(ctx, sys.ID, airdrop); err != nil {
		return nil, err
	}

	board := newBoard(sys.ID, GeneralBoardName, SystemBoardDescription, now)
	if _, err := e.createAsset(ctx, sys.ID, board); err != nil {
		return nil, err
	}

	e.logger.Info("tally genesis complete",
		"system", sys.ID,
		"pool", pool.ID,
		"supply", e.totalSupply,
		"airdrop_term", term.ID,
	)
	e.plugins.EmitGenesis(ctx, sys, e.totalSupply)
	return sys, nil
}

// nextObligation builds the pending transfer the settlement worker consumes
// on the term's next occurrence. A Nil recipient is drawn at execution.
func nextObligation(from id.OwnerID, termID id.TermID, to id.OwnerID, now time.Time) *activity.Activity {
	act := activity.New(activity.TypeTransfer, activity.StatusPending, from, now)
	act.ContractTermID = termID
	act.Transfer = &activity.Transfer{
		Type:   activity.TransferValuesFromOwnerToOwner,
		FromID: from,
		ToID:   to,
	}
	return act
}

func newBoard(ownerID id.OwnerID, name, description string, now time.Time) *asset.Asset {
	return &asset.Asset{
		Entity:  types.NewEntityAt(now),
		ID:      id.NewAssetID(),
		Type:    asset.TypeBoard,
		OwnerID: ownerID,
		Board:   &asset.Board{Name: name, Description: description},
	}
}

// createOwner persists o and announces it to plugins.
func (e *Engine) createOwner(ctx context.Context, o *owner.Owner) error {
	if err := exec(ctx, e, "create owner", func(ctx context.Context) error {
		return e.store.CreateOwner(ctx, o)
	}); err != nil {
		return err
	}
	e.plugins.EmitOwnerCreated(ctx, o)
	return nil
}

// createAsset validates and persists a, then writes its create activity
// on behalf of actor.
func (e *Engine) createAsset(ctx context.Context, actor id.OwnerID, a *asset.Asset) (*activity.Activity, error) {
	if err := a.Validate(); err != nil {
		return nil, ValidationError{Field: "asset", Message: err.Error()}
	}
	if err := exec(ctx, e, "create asset", func(ctx context.Context) error {
		return e.store.CreateAsset(ctx, a)
	}); err != nil {
		return nil, err
	}

	act := activity.New(activity.TypeCreate, activity.StatusCompleted, actor, a.CreatedAt)
	act.Create = &activity.Create{Asset: &activity.CreateAsset{
		ID:       a.ID,
		Type:     string(a.Type),
		ParentID: a.ParentID,
		OwnerID:  a.OwnerID,
	}}
	if err := e.record(ctx, act); err != nil {
		return nil, err
	}

	e.plugins.EmitAssetCreated(ctx, a)
	return act, nil
}

func createOwnerPayload(o *owner.Owner) *activity.CreateOwner {
	return &activity.CreateOwner{
		ID:       o.ID,
		Name:     o.Name,
		Role:     string(o.Role),
		MemberOf: o.MemberOf,
	}
}
