package tally

import "github.com/xraph/tally/id"

// ID is the primary identifier type for all Tally entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

// Typed identifier aliases.
type (
	OwnerID    = id.OwnerID
	AssetID    = id.AssetID
	ValueID    = id.ValueID
	ActivityID = id.ActivityID
	TermID     = id.TermID
)
