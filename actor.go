package tally

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/owner"
	"github.com/xraph/tally/types"
	"github.com/xraph/tally/value"
)

// Actor performs ledger operations on behalf of one owner. System, team
// and user actors share this type; System-only operations fail with
// ErrForbidden for the others.
type Actor struct {
	engine *Engine
	owner  *owner.Owner
}

// System returns the actor for the System owner.
func (e *Engine) System(ctx context.Context) (*Actor, error) {
	sys, _, err := e.identity(ctx)
	if err != nil {
		return nil, err
	}
	return &Actor{engine: e, owner: sys.Clone()}, nil
}

// User returns the actor for a user owner.
func (e *Engine) User(ctx context.Context, ownerID id.OwnerID) (*Actor, error) {
	return e.actorWithRole(ctx, ownerID, owner.RoleUser)
}

// Team returns the actor for a team owner.
func (e *Engine) Team(ctx context.Context, ownerID id.OwnerID) (*Actor, error) {
	return e.actorWithRole(ctx, ownerID, owner.RoleTeam)
}

// Actor returns the actor for any owner.
func (e *Engine) Actor(ctx context.Context, ownerID id.OwnerID) (*Actor, error) {
	return e.actorWithRole(ctx, ownerID, "")
}

func (e *Engine) actorWithRole(ctx context.Context, ownerID id.OwnerID, role owner.Role) (*Actor, error) {
	o, err := e.getOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if role != "" && o.Role != role {
		return nil, fmt.Errorf("%w: %s is a %s, not a %s", ErrRoleMismatch, ownerID, o.Role, role)
	}
	return &Actor{engine: e, owner: o}, nil
}

func (a *Actor) ID() id.OwnerID   { return a.owner.ID }
func (a *Actor) Role() owner.Role { return a.owner.Role }
func (a *Actor) Name() string     { return a.owner.Name }

// Owner returns a copy of the wrapped owner.
func (a *Actor) Owner() *owner.Owner { return a.owner.Clone() }

// ──────────────────────────────────────────────────
// Operations available to every role
// ──────────────────────────────────────────────────

// TransferValue sends amount units to another owner.
func (a *Actor) TransferValue(ctx context.Context, to id.OwnerID, amount int64) (*activity.Activity, error) {
	return a.engine.TransferValue(ctx, a.owner.ID, to, amount)
}

// TransferAssets hands assets to another owner.
func (a *Actor) TransferAssets(ctx context.Context, to id.OwnerID, assetIDs []id.AssetID) ([]*activity.Activity, error) {
	return a.engine.TransferAssets(ctx, a.owner.ID, to, assetIDs)
}

// CheckAccount records the actor's balance.
func (a *Actor) CheckAccount(ctx context.Context) (*activity.Activity, error) {
	return a.engine.CheckAccount(ctx, a.owner.ID)
}

// CreateBoard creates a board owned by the actor.
func (a *Actor) CreateBoard(ctx context.Context, name, description string) (*asset.Asset, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ValidationError{Field: "name", Message: "required"}
	}
	b := newBoard(a.owner.ID, name, description, a.engine.now())
	return a.contribute(ctx, b)
}

// CreatePost creates a post on a board.
func (a *Actor) CreatePost(ctx context.Context, boardID id.AssetID, content string) (*asset.Asset, error) {
	if err := a.requireParent(ctx, boardID, asset.TypeBoard); err != nil {
		return nil, err
	}
	p := a.newAsset(asset.TypePost, boardID)
	p.Post = &asset.Post{Content: content}
	return a.contribute(ctx, p)
}

// CreateComment comments on a post or another comment.
func (a *Actor) CreateComment(ctx context.Context, parentID id.AssetID, content string) (*asset.Asset, error) {
	if err := a.requireParent(ctx, parentID, asset.TypePost, asset.TypeComment); err != nil {
		return nil, err
	}
	c := a.newAsset(asset.TypeComment, parentID)
	c.Comment = &asset.Comment{Content: content}
	return a.contribute(ctx, c)
}

// CreateExpression reacts to a post or comment.
func (a *Actor) CreateExpression(ctx context.Context, parentID id.AssetID, kind asset.ExpressionKind) (*asset.Asset, error) {
	if err := a.requireParent(ctx, parentID, asset.TypePost, asset.TypeComment); err != nil {
		return nil, err
	}
	x := a.newAsset(asset.TypeExpression, parentID)
	x.Expression = &asset.Expression{Kind: kind}
	return a.contribute(ctx, x)
}

func (a *Actor) newAsset(t asset.Type, parentID id.AssetID) *asset.Asset {
	return &asset.Asset{
		Entity:   types.NewEntityAt(a.engine.now()),
		ID:       id.NewAssetID(),
		Type:     t,
		OwnerID:  a.owner.ID,
		ParentID: parentID,
	}
}

func (a *Actor) requireParent(ctx context.Context, parentID id.AssetID, allowed ...asset.Type) error {
	parent, err := a.engine.getAsset(ctx, parentID)
	if err != nil {
		return err
	}
	for _, t := range allowed {
		if parent.Type == t {
			return nil
		}
	}
	return ValidationError{Field: "parent_id", Message: fmt.Sprintf("cannot attach to a %s", parent.Type)}
}

// contribute creates the asset and reports it to the System for a reward.
// A failed reward leaves the asset in place and is returned alongside it.
func (a *Actor) contribute(ctx context.Context, x *asset.Asset) (*asset.Asset, error) {
	create, err := a.engine.createAsset(ctx, a.owner.ID, x)
	if err != nil {
		return nil, err
	}
	if _, err := a.engine.ContributeAsset(ctx, create); err != nil {
		return x, fmt.Errorf("tally: contribute %s: %w", x.ID, err)
	}
	return x, nil
}

// ──────────────────────────────────────────────────
// System-only operations
// ──────────────────────────────────────────────────

func (a *Actor) requireSystem(op string) error {
	if !a.owner.IsSystem() {
		return fmt.Errorf("%w: %s requires the system owner, %s is a %s", ErrForbidden, op, a.owner.ID, a.owner.Role)
	}
	return nil
}

// CreateUser registers a user as a member of the System.
func (a *Actor) CreateUser(ctx context.Context, name string) (*Actor, error) {
	if err := a.requireSystem("create user"); err != nil {
		return nil, err
	}
	o, err := a.createMember(ctx, owner.RoleUser, name)
	if err != nil {
		return nil, err
	}
	return &Actor{engine: a.engine, owner: o}, nil
}

// CreateTeam registers a team as a member of the System and gives it a
// general board.
func (a *Actor) CreateTeam(ctx context.Context, name string) (*Actor, error) {
	if err := a.requireSystem("create team"); err != nil {
		return nil, err
	}
	o, err := a.createMember(ctx, owner.RoleTeam, name)
	if err != nil {
		return nil, err
	}

	board := newBoard(o.ID, GeneralBoardName, TeamBoardDescription, a.engine.now())
	if _, err := a.engine.createAsset(ctx, a.owner.ID, board); err != nil {
		return nil, err
	}
	return &Actor{engine: a.engine, owner: o}, nil
}

func (a *Actor) createMember(ctx context.Context, role owner.Role, name string) (*owner.Owner, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ValidationError{Field: "name", Message: "required"}
	}

	now := a.engine.now()
	o := &owner.Owner{
		Entity:   types.NewEntityAt(now),
		ID:       id.NewOwnerID(),
		Role:     role,
		Name:     name,
		MemberOf: []id.OwnerID{a.owner.ID},
	}
	if err := a.engine.createOwner(ctx, o); err != nil {
		return nil, err
	}

	act := activity.New(activity.TypeCreate, activity.StatusCompleted, a.owner.ID, now)
	act.Create = &activity.Create{Owner: createOwnerPayload(o)}
	if err := a.engine.record(ctx, act); err != nil {
		return nil, err
	}

	a.engine.logger.Info("owner created", "id", o.ID, "role", role, "name", name)
	return o, nil
}

// SplitValues mints amount units from the pool to an owner or asset.
func (a *Actor) SplitValues(ctx context.Context, amount int64, holderType value.HolderType, target id.ID) (*activity.Activity, error) {
	if err := a.requireSystem("split values"); err != nil {
		return nil, err
	}
	return a.engine.SplitValues(ctx, amount, holderType, target)
}

// Reset recreates the economy. The actor is rebound to the new System
// owner.
func (a *Actor) Reset(ctx context.Context) error {
	if err := a.requireSystem("reset"); err != nil {
		return err
	}
	sys, err := a.engine.Reset(ctx)
	if err != nil {
		return err
	}
	a.owner = sys.Clone()
	return nil
}
