package asset

import (
	"errors"
	"fmt"

	"github.com/xraph/tally/contract"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/types"
)

type Type string

const (
	TypeBoard      Type = "board"
	TypeContract   Type = "contract"
	TypePost       Type = "post"
	TypeComment    Type = "comment"
	TypeExpression Type = "expression"
)

type ExpressionKind string

const (
	ExpressionWorth    ExpressionKind = "worth"
	ExpressionNotWorth ExpressionKind = "notworth"
)

// ErrPayloadMismatch is returned by Validate when the populated payload does
// not match the asset type.
var ErrPayloadMismatch = errors.New("tally: asset payload does not match type")

// Asset is an owned item. Exactly one payload field is set and it matches Type.
type Asset struct {
	types.Entity
	ID       id.AssetID `json:"id"`
	Type     Type       `json:"type"`
	OwnerID  id.OwnerID `json:"owner_id"`
	ParentID id.AssetID `json:"parent_id,omitempty"`

	Board      *Board             `json:"board,omitempty"`
	Post       *Post              `json:"post,omitempty"`
	Comment    *Comment           `json:"comment,omitempty"`
	Expression *Expression        `json:"expression,omitempty"`
	Contract   *contract.Contract `json:"contract,omitempty"`
}

type Board struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Post struct {
	Content string `json:"content"`
}

type Comment struct {
	Content string `json:"content"`
}

type Expression struct {
	Kind ExpressionKind `json:"kind"`
}

func (a *Asset) HasParent() bool { return !a.ParentID.IsNil() }

// Validate checks that the asset has an owner and a payload matching its type.
func (a *Asset) Validate() error {
	if a.OwnerID.IsNil() {
		return fmt.Errorf("%w: missing owner", ErrPayloadMismatch)
	}
	set := 0
	for _, present := range []bool{a.Board != nil, a.Post != nil, a.Comment != nil, a.Expression != nil, a.Contract != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: %d payloads set", ErrPayloadMismatch, set)
	}

	var ok bool
	switch a.Type {
	case TypeBoard:
		ok = a.Board != nil
	case TypePost:
		ok = a.Post != nil
	case TypeComment:
		ok = a.Comment != nil
	case TypeExpression:
		ok = a.Expression != nil &&
			(a.Expression.Kind == ExpressionWorth || a.Expression.Kind == ExpressionNotWorth)
	case TypeContract:
		ok = a.Contract != nil
	}
	if !ok {
		return fmt.Errorf("%w: type %q", ErrPayloadMismatch, a.Type)
	}
	return nil
}

// Clone returns a deep copy of the asset.
func (a *Asset) Clone() *Asset {
	c := *a
	if a.Board != nil {
		b := *a.Board
		c.Board = &b
	}
	if a.Post != nil {
		p := *a.Post
		c.Post = &p
	}
	if a.Comment != nil {
		cm := *a.Comment
		c.Comment = &cm
	}
	if a.Expression != nil {
		e := *a.Expression
		c.Expression = &e
	}
	c.Contract = a.Contract.Clone()
	return &c
}
