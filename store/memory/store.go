package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/xraph/tally"
	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/owner"
	tallystore "github.com/xraph/tally/store"
	"github.com/xraph/tally/value"
)

// compile-time interface check
var _ tallystore.Store = (*Store)(nil)

// Store is an in-memory store.Store. Every read returns a copy, so callers
// never alias stored state.
type Store struct {
	mu sync.RWMutex

	owners     map[id.OwnerID]*owner.Owner
	assets     map[id.AssetID]*asset.Asset
	values     map[id.ValueID]*value.Value
	activities map[id.ActivityID]*activity.Activity

	closed bool
}

func New() *Store {
	s := &Store{}
	s.init()
	return s
}

func (s *Store) init() {
	s.owners = make(map[id.OwnerID]*owner.Owner)
	s.assets = make(map[id.AssetID]*asset.Asset)
	s.values = make(map[id.ValueID]*value.Value)
	s.activities = make(map[id.ActivityID]*activity.Activity)
}

// ==================== Owner Store ====================

func (s *Store) CreateOwner(_ context.Context, o *owner.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.owners[o.ID]; exists {
		return tally.ErrAlreadyExists
	}
	if o.Role == owner.RoleSystem {
		for _, existing := range s.owners {
			if existing.Role == owner.RoleSystem {
				return fmt.Errorf("%w: system owner", tally.ErrAlreadyExists)
			}
		}
	}
	s.owners[o.ID] = o.Clone()
	return nil
}

func (s *Store) GetOwner(_ context.Context, ownerID id.OwnerID) (*owner.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.owners[ownerID]; ok {
		return o.Clone(), nil
	}
	return nil, tally.ErrOwnerNotFound
}

func (s *Store) GetSystemOwner(_ context.Context) (*owner.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.owners {
		if o.Role == owner.RoleSystem {
			return o.Clone(), nil
		}
	}
	return nil, tally.ErrSystemNotInitialized
}

func (s *Store) ListOwners(_ context.Context, opts owner.ListOpts) ([]*owner.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*owner.Owner, 0)
	for _, o := range s.owners {
		if opts.Role != "" && o.Role != opts.Role {
			continue
		}
		if slices.Contains(opts.ExcludeRoles, o.Role) || slices.Contains(opts.ExcludeIDs, o.ID) {
			continue
		}
		if !opts.MemberOf.IsNil() && !o.IsMemberOf(opts.MemberOf) {
			continue
		}
		result = append(result, o.Clone())
	}
	slices.SortFunc(result, func(a, b *owner.Owner) int { return compareIDs(a.ID, b.ID) })
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateOwner(_ context.Context, o *owner.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.owners[o.ID]
	if !exists {
		return tally.ErrOwnerNotFound
	}
	if existing.Role != o.Role {
		return tally.ErrRoleMismatch
	}
	s.owners[o.ID] = o.Clone()
	return nil
}

// ==================== Asset Store ====================

func (s *Store) CreateAsset(_ context.Context, a *asset.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.assets[a.ID]; exists {
		return tally.ErrAlreadyExists
	}
	s.assets[a.ID] = a.Clone()
	return nil
}

func (s *Store) GetAsset(_ context.Context, assetID id.AssetID) (*asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.assets[assetID]; ok {
		return a.Clone(), nil
	}
	return nil, tally.ErrAssetNotFound
}

func (s *Store) ListAssets(_ context.Context, opts asset.ListOpts) ([]*asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*asset.Asset, 0)
	for _, a := range s.assets {
		if opts.Type != "" && a.Type != opts.Type {
			continue
		}
		if opts.ContractStatus != "" && (a.Contract == nil || a.Contract.Status != opts.ContractStatus) {
			continue
		}
		if !opts.OwnerID.IsNil() && a.OwnerID != opts.OwnerID {
			continue
		}
		if !opts.ParentID.IsNil() && a.ParentID != opts.ParentID {
			continue
		}
		result = append(result, a.Clone())
	}
	slices.SortFunc(result, func(a, b *asset.Asset) int { return compareIDs(a.ID, b.ID) })
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateAsset(_ context.Context, a *asset.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.assets[a.ID]; !exists {
		return tally.ErrAssetNotFound
	}
	s.assets[a.ID] = a.Clone()
	return nil
}

// ==================== Value Store ====================

func (s *Store) CreateValue(_ context.Context, v *value.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertValueLocked(v)
}

// InsertValues inserts all records or none.
func (s *Store) InsertValues(_ context.Context, vs []*value.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range vs {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", tally.ErrInvalidInput, err)
		}
		if _, exists := s.values[v.ID]; exists {
			return tally.ErrAlreadyExists
		}
	}
	for _, v := range vs {
		c := *v
		s.values[v.ID] = &c
	}
	return nil
}

func (s *Store) insertValueLocked(v *value.Value) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %w", tally.ErrInvalidInput, err)
	}
	if _, exists := s.values[v.ID]; exists {
		return tally.ErrAlreadyExists
	}
	if v.Pool {
		for _, existing := range s.values {
			if existing.Pool && existing.OwnerID == v.OwnerID {
				return fmt.Errorf("%w: pool for owner %s", tally.ErrAlreadyExists, v.OwnerID)
			}
		}
	}
	c := *v
	s.values[v.ID] = &c
	return nil
}

func (s *Store) GetValue(_ context.Context, valueID id.ValueID) (*value.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.values[valueID]; ok {
		c := *v
		return &c, nil
	}
	return nil, tally.ErrValueNotFound
}

func (s *Store) GetPool(_ context.Context, ownerID id.OwnerID) (*value.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.values {
		if v.Pool && v.OwnerID == ownerID {
			c := *v
			return &c, nil
		}
	}
	return nil, tally.ErrValueNotFound
}

func (s *Store) ListValues(_ context.Context, opts value.ListOpts) ([]*value.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := s.filterValuesLocked(opts)
	slices.SortFunc(result, func(a, b *value.Value) int { return compareIDs(a.ID, b.ID) })
	return paginate(result, 0, opts.Limit), nil
}

func (s *Store) SumValues(_ context.Context, opts value.ListOpts) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return value.Sum(s.filterValuesLocked(opts)), nil
}

func (s *Store) filterValuesLocked(opts value.ListOpts) []*value.Value {
	result := make([]*value.Value, 0)
	for _, v := range s.values {
		if opts.HolderType != "" && v.HolderType != opts.HolderType {
			continue
		}
		if !opts.OwnerID.IsNil() && (v.HolderType != value.HolderOwner || v.OwnerID != opts.OwnerID) {
			continue
		}
		if !opts.AssetID.IsNil() && (v.HolderType != value.HolderAsset || v.AssetID != opts.AssetID) {
			continue
		}
		if opts.ExcludePool && v.Pool {
			continue
		}
		c := *v
		result = append(result, &c)
	}
	return result
}

func (s *Store) DebitPool(_ context.Context, poolID id.ValueID, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[poolID]
	if !ok || !v.Pool {
		return tally.ErrValueNotFound
	}
	if v.Amount < amount {
		return tally.ErrInsufficientFunds
	}
	v.Amount -= amount
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) CreditPool(_ context.Context, poolID id.ValueID, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[poolID]
	if !ok || !v.Pool {
		return tally.ErrValueNotFound
	}
	v.Amount += amount
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) ReassignValues(_ context.Context, valueIDs []id.ValueID, from, to value.Holder) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var moved int64
	for _, vid := range valueIDs {
		v, ok := s.values[vid]
		if !ok || v.Pool || v.Holder() != from {
			continue
		}
		v.SetHolder(to)
		v.UpdatedAt = now
		moved++
	}
	return moved, nil
}

// ==================== Activity Store ====================

func (s *Store) CreateActivity(_ context.Context, a *activity.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.activities[a.ID]; exists {
		return tally.ErrAlreadyExists
	}
	s.activities[a.ID] = a.Clone()
	return nil
}

func (s *Store) GetActivity(_ context.Context, activityID id.ActivityID) (*activity.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.activities[activityID]; ok {
		return a.Clone(), nil
	}
	return nil, tally.ErrActivityNotFound
}

func (s *Store) ListActivities(_ context.Context, opts activity.ListOpts) ([]*activity.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*activity.Activity, 0)
	for _, a := range s.activities {
		if opts.Type != "" && a.Type != opts.Type {
			continue
		}
		if opts.Status != "" && a.Status != opts.Status {
			continue
		}
		if opts.TransferType != "" && (a.Transfer == nil || a.Transfer.Type != opts.TransferType) {
			continue
		}
		if !opts.TransferToID.IsNil() && (a.Transfer == nil || a.Transfer.ToID != opts.TransferToID) {
			continue
		}
		if !opts.ContractTermID.IsNil() && a.ContractTermID != opts.ContractTermID {
			continue
		}
		if !opts.OwnerID.IsNil() && a.OwnerID != opts.OwnerID {
			continue
		}
		result = append(result, a.Clone())
	}
	slices.SortFunc(result, func(a, b *activity.Activity) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return compareIDs(a.ID, b.ID)
	})
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateActivityStatus(_ context.Context, activityID id.ActivityID, from, to activity.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.activities[activityID]
	if !ok {
		return tally.ErrActivityNotFound
	}
	if a.Status != from || !from.CanMoveTo(to) {
		return fmt.Errorf("%w: activity %s is %s", tally.ErrInvalidState, activityID, a.Status)
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// ==================== Core ====================

func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.init()
	return nil
}

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return tally.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func compareIDs(a, b id.ID) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
