package tally

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/lock"
	"github.com/xraph/tally/owner"
	"github.com/xraph/tally/value"
)

// ──────────────────────────────────────────────────
// Value transfers
// ──────────────────────────────────────────────────

// TransferValue moves amount units from one owner to another. When from is
// the System the units are split out of the pool; otherwise the sender's
// oldest unit records are reassigned.
func (e *Engine) TransferValue(ctx context.Context, from, to id.OwnerID, amount int64) (*activity.Activity, error) {
	return e.transferValue(ctx, from, to, amount, id.Nil)
}

func (e *Engine) transferValue(ctx context.Context, from, to id.OwnerID, amount int64, termID id.TermID) (*activity.Activity, error) {
	if amount <= 0 {
		return nil, ValidationError{Field: "amount", Message: "must be positive"}
	}
	if from == to {
		return nil, ValidationError{Field: "to", Message: "must differ from sender"}
	}

	sys, poolID, err := e.identity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := e.getOwner(ctx, from); err != nil {
		return nil, err
	}
	if _, err := e.getOwner(ctx, to); err != nil {
		return nil, err
	}

	var moved []id.ValueID
	if from == sys.ID {
		vals, err := e.mint(ctx, sys.ID, poolID, amount, value.OwnerHolder(to))
		if err != nil {
			return nil, err
		}
		moved = value.IDs(vals)
	} else {
		moved, err = e.reassignHoldings(ctx, from, to, amount)
		if err != nil {
			return nil, err
		}
	}

	act := activity.New(activity.TypeTransfer, activity.StatusCompleted, from, e.now())
	act.ContractTermID = termID
	act.Transfer = &activity.Transfer{
		Type:   activity.TransferValuesFromOwnerToOwner,
		FromID: from,
		ToID:   to,
		IDs:    moved,
	}
	if err := e.record(ctx, act); err != nil {
		return nil, err
	}

	e.logger.Debug("value transferred", "from", from, "to", to, "amount", amount)
	e.plugins.EmitValueTransferred(ctx, act, amount)
	return act, nil
}

// reassignHoldings moves amount of from's unit records to to, oldest first.
func (e *Engine) reassignHoldings(ctx context.Context, from, to id.OwnerID, amount int64) ([]id.ValueID, error) {
	release, err := e.lock(ctx, lock.OwnerKey(from))
	if err != nil {
		return nil, err
	}
	defer release()

	held, err := call(ctx, e, "list values", func(ctx context.Context) ([]*value.Value, error) {
		return e.store.ListValues(ctx, value.ListOpts{
			OwnerID:     from,
			HolderType:  value.HolderOwner,
			ExcludePool: true,
			Limit:       int(amount),
		})
	})
	if err != nil {
		return nil, err
	}
	if int64(len(held)) < amount {
		return nil, fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from, len(held), amount)
	}

	ids := value.IDs(held)
	src, dst := value.OwnerHolder(from), value.OwnerHolder(to)
	n, err := call(ctx, e, "reassign values", func(ctx context.Context) (int64, error) {
		return e.store.ReassignValues(ctx, ids, src, dst)
	})
	if err != nil {
		return nil, err
	}
	if n != amount {
		// Another writer touched the records between list and update.
		if _, rerr := call(ctx, e, "revert reassign", func(ctx context.Context) (int64, error) {
			return e.store.ReassignValues(ctx, ids, dst, src)
		}); rerr != nil {
			e.logger.Error("tally: revert of partial reassign failed", "from", from, "to", to, "error", rerr)
		}
		return nil, fmt.Errorf("%w: moved %d of %d values", ErrConflict, n, amount)
	}
	return ids, nil
}

// SplitValues mints amount unit records from the System pool to target,
// which is an owner or an asset according to holderType.
func (e *Engine) SplitValues(ctx context.Context, amount int64, holderType value.HolderType, target id.ID) (*activity.Activity, error) {
	if amount <= 0 {
		return nil, ValidationError{Field: "amount", Message: "must be positive"}
	}

	sys, poolID, err := e.identity(ctx)
	if err != nil {
		return nil, err
	}

	var (
		holder value.Holder
		kind   activity.TransferType
	)
	switch holderType {
	case value.HolderOwner:
		if _, err := e.getOwner(ctx, target); err != nil {
			return nil, err
		}
		if target == sys.ID {
			return nil, ValidationError{Field: "target", Message: "cannot split to the pool holder"}
		}
		holder, kind = value.OwnerHolder(target), activity.TransferValuesFromOwnerToOwner
	case value.HolderAsset:
		if _, err := e.getAsset(ctx, target); err != nil {
			return nil, err
		}
		holder, kind = value.AssetHolder(target), activity.TransferValuesFromOwnerToAsset
	default:
		return nil, ValidationError{Field: "holder_type", Message: fmt.Sprintf("unknown holder type %q", holderType)}
	}

	vals, err := e.mint(ctx, sys.ID, poolID, amount, holder)
	if err != nil {
		return nil, err
	}

	act := activity.New(activity.TypeTransfer, activity.StatusCompleted, sys.ID, e.now())
	act.Transfer = &activity.Transfer{
		Type:   kind,
		FromID: sys.ID,
		ToID:   target,
		IDs:    value.IDs(vals),
	}
	if err := e.record(ctx, act); err != nil {
		return nil, err
	}

	e.plugins.EmitValueTransferred(ctx, act, amount)
	return act, nil
}

// mint debits the pool and inserts amount unit records held by h. The pool
// is credited back when the insert fails.
func (e *Engine) mint(ctx context.Context, systemID id.OwnerID, poolID id.ValueID, amount int64, h value.Holder) ([]*value.Value, error) {
	release, err := e.lock(ctx, lock.PoolKey(systemID))
	if err != nil {
		return nil, err
	}
	defer release()

	if err := exec(ctx, e, "debit pool", func(ctx context.Context) error {
		return e.store.DebitPool(ctx, poolID, amount)
	}); err != nil {
		return nil, err
	}

	vals := value.NewUnits(amount, h)
	if err := exec(ctx, e, "insert values", func(ctx context.Context) error {
		return e.store.InsertValues(ctx, vals)
	}); err != nil {
		if cerr := exec(ctx, e, "credit pool", func(ctx context.Context) error {
			return e.store.CreditPool(ctx, poolID, amount)
		}); cerr != nil {
			e.logger.Error("tally: pool credit-back failed", "pool", poolID, "amount", amount, "error", cerr)
		}
		return nil, err
	}
	return vals, nil
}

// ──────────────────────────────────────────────────
// Asset transfers
// ──────────────────────────────────────────────────

// TransferAssets reassigns assets owned by from to to. Transferring a
// single asset to the System cashes it out: the values it holds are paid
// to from and both activities are returned.
func (e *Engine) TransferAssets(ctx context.Context, from, to id.OwnerID, assetIDs []id.AssetID) ([]*activity.Activity, error) {
	if len(assetIDs) == 0 {
		return nil, ValidationError{Field: "asset_ids", Message: "must not be empty"}
	}
	if from == to {
		return nil, ValidationError{Field: "to", Message: "must differ from sender"}
	}
	if hasDuplicates(assetIDs) {
		return nil, ValidationError{Field: "asset_ids", Message: "must not repeat"}
	}

	sys, _, err := e.identity(ctx)
	if err != nil {
		return nil, err
	}
	toSystem := to == sys.ID
	if toSystem && len(assetIDs) > 1 {
		return nil, fmt.Errorf("%w: offering %d assets to the system at once", ErrUnsupportedOperation, len(assetIDs))
	}
	if _, err := e.getOwner(ctx, from); err != nil {
		return nil, err
	}
	if _, err := e.getOwner(ctx, to); err != nil {
		return nil, err
	}

	if err := e.reassignAssets(ctx, from, to, assetIDs); err != nil {
		return nil, err
	}

	// A cash-out stays pending until the asset's values are released.
	status := activity.StatusCompleted
	if toSystem {
		status = activity.StatusPending
	}
	act := activity.New(activity.TypeTransfer, status, from, e.now())
	act.Transfer = &activity.Transfer{
		Type:   activity.TransferAssetsFromOwnerToOwner,
		FromID: from,
		ToID:   to,
		IDs:    slices.Clone(assetIDs),
	}
	if err := e.record(ctx, act); err != nil {
		return nil, err
	}

	if !toSystem {
		e.plugins.EmitAssetsTransferred(ctx, act)
		return []*activity.Activity{act}, nil
	}

	offer, err := e.offerAsset(ctx, act)
	if err != nil {
		return nil, e.revertCashOut(ctx, act, fmt.Errorf("tally: offer asset: %w", err))
	}
	if err := e.settleActivity(ctx, act, activity.StatusCompleted); err != nil {
		return nil, err
	}
	e.plugins.EmitAssetsTransferred(ctx, act)
	e.plugins.EmitAssetOffered(ctx, offer, int64(len(offer.Transfer.IDs)))
	return []*activity.Activity{act, offer}, nil
}

// revertCashOut hands the asset of a failed cash-out back to its sender and
// marks the transfer failed.
func (e *Engine) revertCashOut(ctx context.Context, act *activity.Activity, cause error) error {
	t := act.Transfer
	if err := e.reassignAssets(ctx, t.ToID, t.FromID, t.IDs); err != nil {
		e.logger.Error("revert asset cash-out", "activity", act.ID, "error", err)
		return errors.Join(cause, err)
	}
	if err := e.settleActivity(ctx, act, activity.StatusFailed); err != nil {
		e.logger.Error("mark asset cash-out failed", "activity", act.ID, "error", err)
		return errors.Join(cause, err)
	}
	return cause
}

func (e *Engine) settleActivity(ctx context.Context, act *activity.Activity, to activity.Status) error {
	if err := exec(ctx, e, "update activity status", func(ctx context.Context) error {
		return e.store.UpdateActivityStatus(ctx, act.ID, act.Status, to)
	}); err != nil {
		return err
	}
	act.Status = to
	act.TouchAt(e.now())
	return nil
}

func (e *Engine) reassignAssets(ctx context.Context, from, to id.OwnerID, assetIDs []id.AssetID) error {
	keys := make([]string, len(assetIDs))
	for k, aid := range assetIDs {
		keys[k] = lock.AssetKey(aid)
	}
	slices.Sort(keys)
	for _, key := range keys {
		release, err := e.lock(ctx, key)
		if err != nil {
			return err
		}
		defer release()
	}

	assets := make([]*asset.Asset, 0, len(assetIDs))
	for _, aid := range assetIDs {
		a, err := e.getAsset(ctx, aid)
		if err != nil {
			return err
		}
		if a.OwnerID != from {
			return fmt.Errorf("%w: %s", ErrNotAssetOwner, aid)
		}
		assets = append(assets, a)
	}

	now := e.now()
	for _, a := range assets {
		a.OwnerID = to
		a.TouchAt(now)
		if err := exec(ctx, e, "update asset", func(ctx context.Context) error {
			return e.store.UpdateAsset(ctx, a)
		}); err != nil {
			return err
		}
	}
	return nil
}

// OfferAsset pays the values held by a transferred asset to its former
// owner. The activity must be a recorded, completed single-asset transfer
// to the System, and the System must still own the asset.
func (e *Engine) OfferAsset(ctx context.Context, transfer *activity.Activity) (*activity.Activity, error) {
	if err := checkAssetTransfer(transfer); err != nil {
		return nil, err
	}

	stored, err := e.storedActivity(ctx, transfer.ID)
	if err != nil {
		return nil, err
	}
	if err := checkAssetTransfer(stored); err != nil {
		return nil, err
	}
	if stored.Status != activity.StatusCompleted {
		return nil, fmt.Errorf("%w: transfer %s is %s", ErrInvalidState, stored.ID, stored.Status)
	}

	act, err := e.offerAsset(ctx, stored)
	if err != nil {
		return nil, err
	}
	e.plugins.EmitAssetOffered(ctx, act, int64(len(act.Transfer.IDs)))
	return act, nil
}

func checkAssetTransfer(transfer *activity.Activity) error {
	if transfer == nil || transfer.Type != activity.TypeTransfer || transfer.Transfer == nil ||
		transfer.Transfer.Type != activity.TransferAssetsFromOwnerToOwner {
		return fmt.Errorf("%w: not an asset transfer", ErrInvalidState)
	}
	if len(transfer.Transfer.IDs) != 1 {
		return fmt.Errorf("%w: offer of %d assets", ErrUnsupportedOperation, len(transfer.Transfer.IDs))
	}
	return nil
}

// storedActivity loads the recorded copy of an activity. Activities the
// store does not know are rejected as invalid state.
func (e *Engine) storedActivity(ctx context.Context, activityID id.ActivityID) (*activity.Activity, error) {
	if activityID.IsNil() {
		return nil, fmt.Errorf("%w: activity not recorded", ErrInvalidState)
	}
	stored, err := call(ctx, e, "get activity", func(ctx context.Context) (*activity.Activity, error) {
		return e.store.GetActivity(ctx, activityID)
	})
	if IsNotFound(err) {
		return nil, fmt.Errorf("%w: activity %s not recorded", ErrInvalidState, activityID)
	}
	return stored, err
}

func (e *Engine) offerAsset(ctx context.Context, transfer *activity.Activity) (*activity.Activity, error) {
	sys, _, err := e.identity(ctx)
	if err != nil {
		return nil, err
	}
	t := transfer.Transfer
	if t.ToID != sys.ID {
		return nil, fmt.Errorf("%w: asset offered to %s, not the system", ErrInvalidState, t.ToID)
	}

	assetID := t.IDs[0]
	transferor := t.FromID

	moved, err := e.releaseAssetValues(ctx, assetID, t.ToID, transferor)
	if err != nil {
		return nil, err
	}

	act := activity.New(activity.TypeTransfer, activity.StatusCompleted, t.ToID, e.now())
	act.Transfer = &activity.Transfer{
		Type:   activity.TransferValuesFromAssetToOwner,
		FromID: assetID,
		ToID:   transferor,
		IDs:    moved,
	}
	if err := e.record(ctx, act); err != nil {
		return nil, err
	}

	e.logger.Debug("asset offered", "asset", assetID, "transferor", transferor, "amount", len(moved))
	return act, nil
}

func (e *Engine) releaseAssetValues(ctx context.Context, assetID id.AssetID, holder, to id.OwnerID) ([]id.ValueID, error) {
	release, err := e.lock(ctx, lock.AssetKey(assetID))
	if err != nil {
		return nil, err
	}
	defer release()

	a, err := e.getAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != holder {
		return nil, fmt.Errorf("%w: %s", ErrNotAssetOwner, assetID)
	}

	held, err := call(ctx, e, "list values", func(ctx context.Context) ([]*value.Value, error) {
		return e.store.ListValues(ctx, value.ListOpts{AssetID: assetID, HolderType: value.HolderAsset})
	})
	if err != nil {
		return nil, err
	}
	if len(held) == 0 {
		return []id.ValueID{}, nil
	}

	ids := value.IDs(held)
	n, err := call(ctx, e, "reassign values", func(ctx context.Context) (int64, error) {
		return e.store.ReassignValues(ctx, ids, value.AssetHolder(assetID), value.OwnerHolder(to))
	})
	if err != nil {
		return nil, err
	}
	if n != int64(len(ids)) {
		return nil, fmt.Errorf("%w: released %d of %d values", ErrConflict, n, len(ids))
	}
	return ids, nil
}

// ──────────────────────────────────────────────────
// Contributions
// ──────────────────────────────────────────────────

// ContributeAsset rewards a newly created asset with value from the pool.
// The activity must be the asset's recorded create activity and the asset
// is rewarded at most once. Assets with no reward still get a contribution
// activity.
func (e *Engine) ContributeAsset(ctx context.Context, create *activity.Activity) (*activity.Activity, error) {
	if create == nil || create.Create == nil || create.Create.Asset == nil {
		return nil, fmt.Errorf("%w: not an asset create activity", ErrInvalidState)
	}

	stored, err := e.storedActivity(ctx, create.ID)
	if err != nil {
		return nil, err
	}
	if stored.Type != activity.TypeCreate || stored.Create == nil || stored.Create.Asset == nil {
		return nil, fmt.Errorf("%w: not an asset create activity", ErrInvalidState)
	}

	a, err := e.getAsset(ctx, stored.Create.Asset.ID)
	if err != nil {
		return nil, err
	}
	sys, poolID, err := e.identity(ctx)
	if err != nil {
		return nil, err
	}

	release, err := e.lock(ctx, lock.AssetKey(a.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	if err := e.checkUncontributed(ctx, a.ID); err != nil {
		return nil, err
	}

	reward := e.rewards[a.Type]
	moved := []id.ValueID{}
	if reward > 0 {
		vals, err := e.mint(ctx, sys.ID, poolID, reward, value.AssetHolder(a.ID))
		if err != nil {
			return nil, err
		}
		moved = value.IDs(vals)
	}

	act := activity.New(activity.TypeTransfer, activity.StatusCompleted, sys.ID, e.now())
	act.Transfer = &activity.Transfer{
		Type:   activity.TransferValuesFromOwnerToAsset,
		FromID: sys.ID,
		ToID:   a.ID,
		IDs:    moved,
	}
	if err := e.record(ctx, act); err != nil {
		return nil, err
	}

	e.plugins.EmitAssetContributed(ctx, act, reward)
	return act, nil
}

// checkUncontributed fails when the asset was already rewarded or holds
// value. Callers hold the asset lock.
func (e *Engine) checkUncontributed(ctx context.Context, assetID id.AssetID) error {
	prior, err := call(ctx, e, "list activities", func(ctx context.Context) ([]*activity.Activity, error) {
		return e.store.ListActivities(ctx, activity.ListOpts{
			TransferType: activity.TransferValuesFromOwnerToAsset,
			TransferToID: assetID,
			Limit:        1,
		})
	})
	if err != nil {
		return err
	}
	if len(prior) > 0 {
		return fmt.Errorf("%w: asset %s already contributed", ErrInvalidState, assetID)
	}

	held, err := call(ctx, e, "list values", func(ctx context.Context) ([]*value.Value, error) {
		return e.store.ListValues(ctx, value.ListOpts{AssetID: assetID, HolderType: value.HolderAsset, Limit: 1})
	})
	if err != nil {
		return err
	}
	if len(held) > 0 {
		return fmt.Errorf("%w: asset %s already holds value", ErrInvalidState, assetID)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// CheckAccount records the current balance of an owner. It never mutates
// holdings.
func (e *Engine) CheckAccount(ctx context.Context, ownerID id.OwnerID) (*activity.Activity, error) {
	o, err := e.getOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	balance, err := e.Balance(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	act := activity.New(activity.TypeCheckAccount, activity.StatusCompleted, ownerID, e.now())
	act.CheckAccount = &activity.CheckAccount{
		ID:     o.ID,
		Name:   o.Name,
		Amount: balance,
	}
	if err := e.record(ctx, act); err != nil {
		return nil, err
	}

	e.plugins.EmitAccountChecked(ctx, act)
	return act, nil
}

// Balance sums the values an owner holds directly, the pool included.
func (e *Engine) Balance(ctx context.Context, ownerID id.OwnerID) (int64, error) {
	return call(ctx, e, "sum values", func(ctx context.Context) (int64, error) {
		return e.store.SumValues(ctx, value.ListOpts{OwnerID: ownerID, HolderType: value.HolderOwner})
	})
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func (e *Engine) record(ctx context.Context, act *activity.Activity) error {
	return exec(ctx, e, "create activity", func(ctx context.Context) error {
		return e.store.CreateActivity(ctx, act)
	})
}

func (e *Engine) getOwner(ctx context.Context, ownerID id.OwnerID) (*owner.Owner, error) {
	if ownerID.IsNil() {
		return nil, ValidationError{Field: "owner_id", Message: "required"}
	}
	return call(ctx, e, "get owner", func(ctx context.Context) (*owner.Owner, error) {
		return e.store.GetOwner(ctx, ownerID)
	})
}

func (e *Engine) getAsset(ctx context.Context, assetID id.AssetID) (*asset.Asset, error) {
	if assetID.IsNil() {
		return nil, ValidationError{Field: "asset_id", Message: "required"}
	}
	return call(ctx, e, "get asset", func(ctx context.Context) (*asset.Asset, error) {
		return e.store.GetAsset(ctx, assetID)
	})
}

func hasDuplicates(ids []id.ID) bool {
	seen := make(map[id.ID]struct{}, len(ids))
	for _, v := range ids {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}
