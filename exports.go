package tally

import (
	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/owner"
	"github.com/xraph/tally/types"
	"github.com/xraph/tally/value"
)

// Re-export common types for convenience so users don't have to import
// every entity package.

// Entity is re-exported from types package.
type Entity = types.Entity

type (
	Owner    = owner.Owner
	Asset    = asset.Asset
	Value    = value.Value
	Activity = activity.Activity
)

// Re-export owner roles
const (
	RoleSystem = owner.RoleSystem
	RoleTeam   = owner.RoleTeam
	RoleUser   = owner.RoleUser
)

// Re-export constructors
var (
	NewEntity   = types.NewEntity
	OwnerHolder = value.OwnerHolder
	AssetHolder = value.AssetHolder
)
