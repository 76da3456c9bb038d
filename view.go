package tally

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/owner"
	"github.com/xraph/tally/value"
)

// Include selects an optional section of an OwnerView.
type Include string

const (
	IncludeValues  Include = "values"
	IncludeMembers Include = "members"
)

// ParseIncludes parses a comma separated include list such as
// "values,members". Empty entries are ignored.
func ParseIncludes(raw string) ([]Include, error) {
	var out []Include
	for _, part := range strings.Split(raw, ",") {
		switch inc := Include(strings.TrimSpace(part)); inc {
		case "":
		case IncludeValues, IncludeMembers:
			out = append(out, inc)
		default:
			return nil, ValidationError{Field: "include", Message: fmt.Sprintf("unknown section %q", inc)}
		}
	}
	return out, nil
}

// OwnerView is an owner with the sections requested by Describe.
type OwnerView struct {
	Owner   *owner.Owner `json:"owner"`
	Values  *ValuesView  `json:"values,omitempty"`
	Members *MembersView `json:"members,omitempty"`
}

// ValuesView lists the records an owner holds directly.
type ValuesView struct {
	Amount int64          `json:"amount"`
	Values []*value.Value `json:"values"`
}

// MembersView lists the owners that are members of an owner.
type MembersView struct {
	Total   int            `json:"total"`
	Members []*owner.Owner `json:"members"`
}

// Describe loads an owner along with the requested sections.
func (e *Engine) Describe(ctx context.Context, ownerID id.OwnerID, includes ...Include) (*OwnerView, error) {
	o, err := e.getOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	view := &OwnerView{Owner: o}

	for _, inc := range includes {
		switch inc {
		case IncludeValues:
			if view.Values != nil {
				continue
			}
			vals, err := call(ctx, e, "list values", func(ctx context.Context) ([]*value.Value, error) {
				return e.store.ListValues(ctx, value.ListOpts{OwnerID: ownerID, HolderType: value.HolderOwner})
			})
			if err != nil {
				return nil, err
			}
			view.Values = &ValuesView{Amount: value.Sum(vals), Values: vals}
		case IncludeMembers:
			if view.Members != nil {
				continue
			}
			members, err := e.Owners(ctx, owner.ListOpts{MemberOf: ownerID})
			if err != nil {
				return nil, err
			}
			view.Members = &MembersView{Total: len(members), Members: members}
		default:
			return nil, ValidationError{Field: "include", Message: fmt.Sprintf("unknown section %q", inc)}
		}
	}
	return view, nil
}

// Owners lists owners, e.g. all users or all teams.
func (e *Engine) Owners(ctx context.Context, opts owner.ListOpts) ([]*owner.Owner, error) {
	return call(ctx, e, "list owners", func(ctx context.Context) ([]*owner.Owner, error) {
		return e.store.ListOwners(ctx, opts)
	})
}

// Assets lists assets, e.g. all boards.
func (e *Engine) Assets(ctx context.Context, opts asset.ListOpts) ([]*asset.Asset, error) {
	return call(ctx, e, "list assets", func(ctx context.Context) ([]*asset.Asset, error) {
		return e.store.ListAssets(ctx, opts)
	})
}

// Activities lists activities, e.g. all transfers.
func (e *Engine) Activities(ctx context.Context, opts activity.ListOpts) ([]*activity.Activity, error) {
	return call(ctx, e, "list activities", func(ctx context.Context) ([]*activity.Activity, error) {
		return e.store.ListActivities(ctx, opts)
	})
}

// Owner returns one owner.
func (e *Engine) Owner(ctx context.Context, ownerID id.OwnerID) (*owner.Owner, error) {
	return e.getOwner(ctx, ownerID)
}

// Asset returns one asset.
func (e *Engine) Asset(ctx context.Context, assetID id.AssetID) (*asset.Asset, error) {
	return e.getAsset(ctx, assetID)
}

// UpdateOwnerProfile renames an owner.
func (e *Engine) UpdateOwnerProfile(ctx context.Context, ownerID id.OwnerID, name string) (*owner.Owner, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ValidationError{Field: "name", Message: "required"}
	}
	o, err := e.getOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	o.Name = name
	o.TouchAt(e.now())
	if err := exec(ctx, e, "update owner", func(ctx context.Context) error {
		return e.store.UpdateOwner(ctx, o)
	}); err != nil {
		return nil, err
	}
	return o, nil
}
