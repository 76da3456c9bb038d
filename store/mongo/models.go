package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/contract"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/owner"
	"github.com/xraph/tally/types"
	"github.com/xraph/tally/value"
)

// ==================== Owner models ====================

type ownerModel struct {
	grove.BaseModel `grove:"table:tally_owners"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	Role      string    `grove:"role"       bson:"role"`
	Name      string    `grove:"name"       bson:"name"`
	MemberOf  []string  `grove:"member_of"  bson:"member_of"`
	CreatedAt time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func toOwnerModel(o *owner.Owner) *ownerModel {
	return &ownerModel{
		ID:        o.ID.String(),
		Role:      string(o.Role),
		Name:      o.Name,
		MemberOf:  id.Strings(o.MemberOf),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func fromOwnerModel(m *ownerModel) (*owner.Owner, error) {
	ownerID, err := id.ParseOwnerID(m.ID)
	if err != nil {
		return nil, err
	}
	memberOf, err := id.ParseAll(m.MemberOf)
	if err != nil {
		return nil, err
	}

	return &owner.Owner{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:       ownerID,
		Role:     owner.Role(m.Role),
		Name:     m.Name,
		MemberOf: memberOf,
	}, nil
}

// ==================== Asset models ====================

type assetModel struct {
	grove.BaseModel `grove:"table:tally_assets"`

	ID         string            `grove:"id,pk"      bson:"_id"`
	Type       string            `grove:"type"       bson:"type"`
	OwnerID    string            `grove:"owner_id"   bson:"owner_id"`
	ParentID   string            `grove:"parent_id"  bson:"parent_id,omitempty"`
	Board      *asset.Board      `grove:"board"      bson:"board,omitempty"`
	Post       *asset.Post       `grove:"post"       bson:"post,omitempty"`
	Comment    *asset.Comment    `grove:"comment"    bson:"comment,omitempty"`
	Expression *asset.Expression `grove:"expression" bson:"expression,omitempty"`
	Contract   *contractModel    `grove:"contract"   bson:"contract,omitempty"`
	CreatedAt  time.Time         `grove:"created_at" bson:"created_at"`
	UpdatedAt  time.Time         `grove:"updated_at" bson:"updated_at"`
}

type contractModel struct {
	Title      string      `bson:"title"`
	Summary    string      `bson:"summary"`
	Status     string      `bson:"status"`
	Terms      []termModel `bson:"terms"`
	ExpireDate *time.Time  `bson:"expire_date,omitempty"`
}

type termModel struct {
	ID          string `bson:"id"`
	Description string `bson:"description"`
	Type        string `bson:"type"`
	IntervalMS  int64  `bson:"interval_ms"`
	Status      string `bson:"status"`
	Amount      *int64 `bson:"amount,omitempty"`
}

func toAssetModel(a *asset.Asset) *assetModel {
	m := &assetModel{
		ID:         a.ID.String(),
		Type:       string(a.Type),
		OwnerID:    a.OwnerID.String(),
		ParentID:   a.ParentID.String(),
		Board:      a.Board,
		Post:       a.Post,
		Comment:    a.Comment,
		Expression: a.Expression,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
	if c := a.Contract; c != nil {
		cm := &contractModel{
			Title:      c.Title,
			Summary:    c.Summary,
			Status:     string(c.Status),
			Terms:      make([]termModel, len(c.Terms)),
			ExpireDate: c.ExpireDate,
		}
		for i, t := range c.Terms {
			tm := termModel{
				ID:          t.ID.String(),
				Description: t.Description,
				Type:        string(t.Type),
				IntervalMS:  t.Interval.Milliseconds(),
				Status:      string(t.Status),
			}
			if t.RecurringTransfer != nil {
				amount := t.RecurringTransfer.Amount
				tm.Amount = &amount
			}
			cm.Terms[i] = tm
		}
		m.Contract = cm
	}
	return m
}

func fromAssetModel(m *assetModel) (*asset.Asset, error) {
	assetID, err := id.ParseAssetID(m.ID)
	if err != nil {
		return nil, err
	}
	ownerID, err := id.ParseOptional(m.OwnerID)
	if err != nil {
		return nil, err
	}
	parentID, err := id.ParseOptional(m.ParentID)
	if err != nil {
		return nil, err
	}

	a := &asset.Asset{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         assetID,
		Type:       asset.Type(m.Type),
		OwnerID:    ownerID,
		ParentID:   parentID,
		Board:      m.Board,
		Post:       m.Post,
		Comment:    m.Comment,
		Expression: m.Expression,
	}
	if cm := m.Contract; cm != nil {
		c := &contract.Contract{
			Title:      cm.Title,
			Summary:    cm.Summary,
			Status:     contract.Status(cm.Status),
			Terms:      make([]contract.Term, len(cm.Terms)),
			ExpireDate: cm.ExpireDate,
		}
		for i, tm := range cm.Terms {
			termID, err := id.ParseTermID(tm.ID)
			if err != nil {
				return nil, err
			}
			t := contract.Term{
				ID:          termID,
				Description: tm.Description,
				Type:        contract.TermType(tm.Type),
				Interval:    time.Duration(tm.IntervalMS) * time.Millisecond,
				Status:      contract.TermStatus(tm.Status),
			}
			if tm.Amount != nil {
				t.RecurringTransfer = &contract.RecurringTransfer{Amount: *tm.Amount}
			}
			c.Terms[i] = t
		}
		a.Contract = c
	}
	return a, nil
}

// ==================== Value models ====================

type valueModel struct {
	grove.BaseModel `grove:"table:tally_values"`

	ID         string    `grove:"id,pk"       bson:"_id"`
	Amount     int64     `grove:"amount"      bson:"amount"`
	HolderType string    `grove:"holder_type" bson:"holder_type"`
	OwnerID    string    `grove:"owner_id"    bson:"owner_id"`
	AssetID    string    `grove:"asset_id"    bson:"asset_id"`
	Pool       bool      `grove:"pool"        bson:"pool"`
	CreatedAt  time.Time `grove:"created_at"  bson:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"  bson:"updated_at"`
}

func toValueModel(v *value.Value) *valueModel {
	return &valueModel{
		ID:         v.ID.String(),
		Amount:     v.Amount,
		HolderType: string(v.HolderType),
		OwnerID:    v.OwnerID.String(),
		AssetID:    v.AssetID.String(),
		Pool:       v.Pool,
		CreatedAt:  v.CreatedAt,
		UpdatedAt:  v.UpdatedAt,
	}
}

func fromValueModel(m *valueModel) (*value.Value, error) {
	valueID, err := id.ParseValueID(m.ID)
	if err != nil {
		return nil, err
	}
	ownerID, err := id.ParseOptional(m.OwnerID)
	if err != nil {
		return nil, err
	}
	assetID, err := id.ParseOptional(m.AssetID)
	if err != nil {
		return nil, err
	}

	return &value.Value{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         valueID,
		Amount:     m.Amount,
		HolderType: value.HolderType(m.HolderType),
		OwnerID:    ownerID,
		AssetID:    assetID,
		Pool:       m.Pool,
	}, nil
}

// ==================== Activity models ====================

type activityModel struct {
	grove.BaseModel `grove:"table:tally_activities"`

	ID             string             `grove:"id,pk"            bson:"_id"`
	Type           string             `grove:"type"             bson:"type"`
	Timestamp      time.Time          `grove:"timestamp"        bson:"timestamp"`
	Status         string             `grove:"status"           bson:"status"`
	OwnerID        string             `grove:"owner_id"         bson:"owner_id,omitempty"`
	ContractTermID string             `grove:"contract_term_id" bson:"contract_term_id,omitempty"`
	ValueID        string             `grove:"value_id"         bson:"value_id,omitempty"`
	Create         *createModel       `grove:"create"           bson:"create,omitempty"`
	Transfer       *transferModel     `grove:"transfer"         bson:"transfer,omitempty"`
	CheckAccount   *checkAccountModel `grove:"check_account"    bson:"check_account,omitempty"`
	CreatedAt      time.Time          `grove:"created_at"       bson:"created_at"`
	UpdatedAt      time.Time          `grove:"updated_at"       bson:"updated_at"`
}

type createModel struct {
	Owner *createOwnerModel `bson:"owner,omitempty"`
	Asset *createAssetModel `bson:"asset,omitempty"`
}

type createOwnerModel struct {
	ID          string   `bson:"id"`
	Name        string   `bson:"name"`
	Type        string   `bson:"type"`
	MemberOfIDs []string `bson:"member_of_ids"`
}

type createAssetModel struct {
	ID       string `bson:"id"`
	Type     string `bson:"type"`
	ParentID string `bson:"parent_id,omitempty"`
	OwnerID  string `bson:"owner_id"`
}

type transferModel struct {
	Type   string   `bson:"type"`
	FromID string   `bson:"from_id"`
	ToID   string   `bson:"to_id,omitempty"`
	IDs    []string `bson:"ids"`
}

type checkAccountModel struct {
	ID     string `bson:"id"`
	Name   string `bson:"name"`
	Amount int64  `bson:"amount"`
}

func toActivityModel(a *activity.Activity) *activityModel {
	m := &activityModel{
		ID:             a.ID.String(),
		Type:           string(a.Type),
		Timestamp:      a.Timestamp,
		Status:         string(a.Status),
		OwnerID:        a.OwnerID.String(),
		ContractTermID: a.ContractTermID.String(),
		ValueID:        a.ValueID.String(),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if c := a.Create; c != nil {
		cm := &createModel{}
		if c.Owner != nil {
			cm.Owner = &createOwnerModel{
				ID:          c.Owner.ID.String(),
				Name:        c.Owner.Name,
				Type:        c.Owner.Role,
				MemberOfIDs: id.Strings(c.Owner.MemberOf),
			}
		}
		if c.Asset != nil {
			cm.Asset = &createAssetModel{
				ID:       c.Asset.ID.String(),
				Type:     c.Asset.Type,
				ParentID: c.Asset.ParentID.String(),
				OwnerID:  c.Asset.OwnerID.String(),
			}
		}
		m.Create = cm
	}
	if t := a.Transfer; t != nil {
		m.Transfer = &transferModel{
			Type:   string(t.Type),
			FromID: t.FromID.String(),
			ToID:   t.ToID.String(),
			IDs:    id.Strings(t.IDs),
		}
	}
	if ca := a.CheckAccount; ca != nil {
		m.CheckAccount = &checkAccountModel{
			ID:     ca.ID.String(),
			Name:   ca.Name,
			Amount: ca.Amount,
		}
	}
	return m
}

func fromActivityModel(m *activityModel) (*activity.Activity, error) {
	activityID, err := id.ParseActivityID(m.ID)
	if err != nil {
		return nil, err
	}
	ownerID, err := id.ParseOptional(m.OwnerID)
	if err != nil {
		return nil, err
	}
	termID, err := id.ParseOptional(m.ContractTermID)
	if err != nil {
		return nil, err
	}
	valueID, err := id.ParseOptional(m.ValueID)
	if err != nil {
		return nil, err
	}

	a := &activity.Activity{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             activityID,
		Type:           activity.Type(m.Type),
		Timestamp:      m.Timestamp,
		Status:         activity.Status(m.Status),
		OwnerID:        ownerID,
		ContractTermID: termID,
		ValueID:        valueID,
	}

	if cm := m.Create; cm != nil {
		c := &activity.Create{}
		if om := cm.Owner; om != nil {
			oid, err := id.ParseOptional(om.ID)
			if err != nil {
				return nil, err
			}
			memberOf, err := id.ParseAll(om.MemberOfIDs)
			if err != nil {
				return nil, err
			}
			c.Owner = &activity.CreateOwner{ID: oid, Name: om.Name, Role: om.Type, MemberOf: memberOf}
		}
		if am := cm.Asset; am != nil {
			aid, err := id.ParseOptional(am.ID)
			if err != nil {
				return nil, err
			}
			pid, err := id.ParseOptional(am.ParentID)
			if err != nil {
				return nil, err
			}
			oid, err := id.ParseOptional(am.OwnerID)
			if err != nil {
				return nil, err
			}
			c.Asset = &activity.CreateAsset{ID: aid, Type: am.Type, ParentID: pid, OwnerID: oid}
		}
		a.Create = c
	}
	if tm := m.Transfer; tm != nil {
		from, err := id.ParseOptional(tm.FromID)
		if err != nil {
			return nil, err
		}
		to, err := id.ParseOptional(tm.ToID)
		if err != nil {
			return nil, err
		}
		ids, err := id.ParseAll(tm.IDs)
		if err != nil {
			return nil, err
		}
		a.Transfer = &activity.Transfer{Type: activity.TransferType(tm.Type), FromID: from, ToID: to, IDs: ids}
	}
	if cam := m.CheckAccount; cam != nil {
		oid, err := id.ParseOptional(cam.ID)
		if err != nil {
			return nil, err
		}
		a.CheckAccount = &activity.CheckAccount{ID: oid, Name: cam.Name, Amount: cam.Amount}
	}
	return a, nil
}
