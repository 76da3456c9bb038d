package activity

import (
	"slices"
	"time"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

type Type string

const (
	TypeCreate       Type = "create"
	TypeTransfer     Type = "transfer"
	TypeCheckAccount Type = "checkAccount"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether no further status change is allowed.
func (s Status) Terminal() bool { return s != StatusPending }

// CanMoveTo reports whether a status change from s to next is legal.
// Only pending activities move, and only to a terminal status.
func (s Status) CanMoveTo(next Status) bool {
	return s == StatusPending && next.Terminal() && next != ""
}

type TransferType string

const (
	TransferAssetsFromOwnerToOwner TransferType = "assetFromOwnerToOwner"
	TransferValuesFromAssetToOwner TransferType = "valuesFromAssetToOwner"
	TransferValuesFromOwnerToOwner TransferType = "valuesFromOwnerToOwner"
	TransferValuesFromOwnerToAsset TransferType = "valuesFromOwnerToAsset"
)

// Activity is an append-only log entry. Only Status and UpdatedAt change
// after creation.
type Activity struct {
	types.Entity
	ID             id.ActivityID `json:"id"`
	Type           Type          `json:"type"`
	Timestamp      time.Time     `json:"timestamp"`
	Status         Status        `json:"status"`
	OwnerID        id.OwnerID    `json:"owner_id,omitempty"`
	ContractTermID id.TermID     `json:"contract_term_id,omitempty"`
	ValueID        id.ValueID    `json:"value_id,omitempty"`

	Create       *Create       `json:"create,omitempty"`
	Transfer     *Transfer     `json:"transfer,omitempty"`
	CheckAccount *CheckAccount `json:"check_account,omitempty"`
}

type Create struct {
	Owner *CreateOwner `json:"owner,omitempty"`
	Asset *CreateAsset `json:"asset,omitempty"`
}

type CreateOwner struct {
	ID       id.OwnerID   `json:"id"`
	Name     string       `json:"name"`
	Role     string       `json:"type"`
	MemberOf []id.OwnerID `json:"member_of_ids"`
}

type CreateAsset struct {
	ID       id.AssetID `json:"id"`
	Type     string     `json:"type"`
	ParentID id.AssetID `json:"parent_id,omitempty"`
	OwnerID  id.OwnerID `json:"owner_id"`
}

// Transfer records a movement. ToID is Nil on a pending obligation whose
// recipient is drawn at execution time.
type Transfer struct {
	Type   TransferType `json:"type"`
	FromID id.ID        `json:"from_id"`
	ToID   id.ID        `json:"to_id,omitempty"`
	IDs    []id.ID      `json:"ids"`
}

type CheckAccount struct {
	ID     id.OwnerID `json:"id"`
	Name   string     `json:"name"`
	Amount int64      `json:"amount"`
}

// New builds an activity of type t stamped at now.
func New(t Type, status Status, actor id.OwnerID, now time.Time) *Activity {
	return &Activity{
		Entity:    types.NewEntityAt(now),
		ID:        id.NewActivityID(),
		Type:      t,
		Timestamp: now.UTC(),
		Status:    status,
		OwnerID:   actor,
	}
}

// Clone returns a deep copy of a.
func (a *Activity) Clone() *Activity {
	c := *a
	if a.Create != nil {
		cr := Create{}
		if a.Create.Owner != nil {
			o := *a.Create.Owner
			o.MemberOf = slices.Clone(o.MemberOf)
			cr.Owner = &o
		}
		if a.Create.Asset != nil {
			as := *a.Create.Asset
			cr.Asset = &as
		}
		c.Create = &cr
	}
	if a.Transfer != nil {
		tr := *a.Transfer
		tr.IDs = slices.Clone(tr.IDs)
		c.Transfer = &tr
	}
	if a.CheckAccount != nil {
		ca := *a.CheckAccount
		c.CheckAccount = &ca
	}
	return &c
}
