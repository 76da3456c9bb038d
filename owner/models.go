package owner

import (
	"slices"

	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleTeam   Role = "team"
	RoleUser   Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleTeam, RoleUser:
		return true
	}
	return false
}

type Owner struct {
	types.Entity
	ID       id.OwnerID   `json:"id"`
	Role     Role         `json:"role"`
	Name     string       `json:"name"`
	MemberOf []id.OwnerID `json:"member_of"`
}

func (o *Owner) IsSystem() bool { return o.Role == RoleSystem }

// IsMemberOf reports whether o lists other among its memberships.
func (o *Owner) IsMemberOf(other id.OwnerID) bool {
	return slices.Contains(o.MemberOf, other)
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (o *Owner) Clone() *Owner {
	c := *o
	c.MemberOf = slices.Clone(o.MemberOf)
	return &c
}
