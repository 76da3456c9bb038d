package value

import (
	"errors"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

type HolderType string

const (
	HolderOwner HolderType = "owner"
	HolderAsset HolderType = "asset"
)

// ErrInvalidHolder is returned when a value does not have exactly one holder
// matching its HolderType.
var ErrInvalidHolder = errors.New("tally: value must have exactly one holder")

// Value is a unit of the closed economy. Ordinary records carry Amount 1;
// the System's pool record carries the undistributed supply.
type Value struct {
	types.Entity
	ID         id.ValueID `json:"id"`
	Amount     int64      `json:"amount"`
	HolderType HolderType `json:"holder_type"`
	OwnerID    id.OwnerID `json:"owner_id,omitempty"`
	AssetID    id.AssetID `json:"asset_id,omitempty"`
	Pool       bool       `json:"pool,omitempty"`
}

// Holder identifies who holds a value.
type Holder struct {
	Type HolderType
	ID   id.ID
}

func OwnerHolder(ownerID id.OwnerID) Holder { return Holder{Type: HolderOwner, ID: ownerID} }

func AssetHolder(assetID id.AssetID) Holder { return Holder{Type: HolderAsset, ID: assetID} }

func (h Holder) String() string { return string(h.Type) + ":" + h.ID.String() }

// Holder returns the current holder of v.
func (v *Value) Holder() Holder {
	if v.HolderType == HolderAsset {
		return AssetHolder(v.AssetID)
	}
	return OwnerHolder(v.OwnerID)
}

// SetHolder moves v to h, clearing the other holder reference.
func (v *Value) SetHolder(h Holder) {
	v.HolderType = h.Type
	switch h.Type {
	case HolderAsset:
		v.AssetID = h.ID
		v.OwnerID = id.Nil
	default:
		v.OwnerID = h.ID
		v.AssetID = id.Nil
	}
}

// Validate enforces the exclusive-holder rule. Pool records must be owner held.
func (v *Value) Validate() error {
	switch v.HolderType {
	case HolderOwner:
		if v.OwnerID.IsNil() || !v.AssetID.IsNil() {
			return ErrInvalidHolder
		}
	case HolderAsset:
		if v.AssetID.IsNil() || !v.OwnerID.IsNil() || v.Pool {
			return ErrInvalidHolder
		}
	default:
		return ErrInvalidHolder
	}
	if v.Amount < 0 {
		return errors.New("tally: value amount must not be negative")
	}
	return nil
}

// NewUnits builds n unit records held by h.
func NewUnits(n int64, h Holder) []*Value {
	out := make([]*Value, 0, n)
	for range n {
		v := &Value{
			Entity: types.NewEntity(),
			ID:     id.NewValueID(),
			Amount: 1,
		}
		v.SetHolder(h)
		out = append(out, v)
	}
	return out
}

// IDs returns the ids of vs in order.
func IDs(vs []*Value) []id.ValueID {
	out := make([]id.ValueID, len(vs))
	for k, v := range vs {
		out[k] = v.ID
	}
	return out
}

// Sum totals the amounts of vs.
func Sum(vs []*Value) int64 {
	var total int64
	for _, v := range vs {
		total += v.Amount
	}
	return total
}
