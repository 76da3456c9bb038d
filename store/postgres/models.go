package postgres

import (
	"encoding/json"
	"fmt"
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

	ID        string          `grove:"id,pk"`
	Role      string          `grove:"role"`
	Name      string          `grove:"name"`
	MemberOf  json.RawMessage `grove:"member_of,type:jsonb"`
	CreatedAt time.Time       `grove:"created_at"`
	UpdatedAt time.Time       `grove:"updated_at"`
}

func toOwnerModel(o *owner.Owner) *ownerModel {
	memberOf, _ := json.Marshal(id.Strings(o.MemberOf)) //nolint:errcheck // []string always marshals

	return &ownerModel{
		ID:        o.ID.String(),
		Role:      string(o.Role),
		Name:      o.Name,
		MemberOf:  memberOf,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func fromOwnerModel(m *ownerModel) (*owner.Owner, error) {
	ownerID, err := id.ParseOwnerID(m.ID)
	if err != nil {
		return nil, err
	}

	var raw []string
	if len(m.MemberOf) > 0 {
		if err := json.Unmarshal(m.MemberOf, &raw); err != nil {
			return nil, fmt.Errorf("tally/postgres: decode member_of: %w", err)
		}
	}
	memberOf, err := id.ParseAll(raw)
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

type assetPayload struct {
	Board      *asset.Board       `json:"board,omitempty"`
	Post       *asset.Post        `json:"post,omitempty"`
	Comment    *asset.Comment     `json:"comment,omitempty"`
	Expression *asset.Expression  `json:"expression,omitempty"`
	Contract   *contract.Contract `json:"contract,omitempty"`
}

type assetModel struct {
	grove.BaseModel `grove:"table:tally_assets"`

	ID             string          `grove:"id,pk"`
	Type           string          `grove:"type"`
	OwnerID        string          `grove:"owner_id"`
	ParentID       string          `grove:"parent_id"`
	ContractStatus string          `grove:"contract_status"`
	Payload        json.RawMessage `grove:"payload,type:jsonb"`
	CreatedAt      time.Time       `grove:"created_at"`
	UpdatedAt      time.Time       `grove:"updated_at"`
}

func toAssetModel(a *asset.Asset) (*assetModel, error) {
	payload, err := json.Marshal(assetPayload{
		Board:      a.Board,
		Post:       a.Post,
		Comment:    a.Comment,
		Expression: a.Expression,
		Contract:   a.Contract,
	})
	if err != nil {
		return nil, fmt.Errorf("tally/postgres: encode asset payload: %w", err)
	}

	m := &assetModel{
		ID:        a.ID.String(),
		Type:      string(a.Type),
		OwnerID:   a.OwnerID.String(),
		ParentID:  a.ParentID.String(),
		Payload:   payload,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.Contract != nil {
		m.ContractStatus = string(a.Contract.Status)
	}
	return m, nil
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

	var p assetPayload
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, fmt.Errorf("tally/postgres: decode asset payload: %w", err)
		}
	}

	return &asset.Asset{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         assetID,
		Type:       asset.Type(m.Type),
		OwnerID:    ownerID,
		ParentID:   parentID,
		Board:      p.Board,
		Post:       p.Post,
		Comment:    p.Comment,
		Expression: p.Expression,
		Contract:   p.Contract,
	}, nil
}

// ==================== Value models ====================

type valueModel struct {
	grove.BaseModel `grove:"table:tally_values"`

	ID         string    `grove:"id,pk"`
	Amount     int64     `grove:"amount"`
	HolderType string    `grove:"holder_type"`
	OwnerID    string    `grove:"owner_id"`
	AssetID    string    `grove:"asset_id"`
	Pool       bool      `grove:"pool"`
	CreatedAt  time.Time `grove:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"`
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

type activityPayload struct {
	Create       *activity.Create       `json:"create,omitempty"`
	Transfer     *activity.Transfer     `json:"transfer,omitempty"`
	CheckAccount *activity.CheckAccount `json:"check_account,omitempty"`
}

type activityModel struct {
	grove.BaseModel `grove:"table:tally_activities"`

	ID             string          `grove:"id,pk"`
	Type           string          `grove:"type"`
	Timestamp      time.Time       `grove:"timestamp"`
	Status         string          `grove:"status"`
	OwnerID        string          `grove:"owner_id"`
	ContractTermID string          `grove:"contract_term_id"`
	ValueID        string          `grove:"value_id"`
	TransferType   string          `grove:"transfer_type"`
	Payload        json.RawMessage `grove:"payload,type:jsonb"`
	CreatedAt      time.Time       `grove:"created_at"`
	UpdatedAt      time.Time       `grove:"updated_at"`
}

func toActivityModel(a *activity.Activity) (*activityModel, error) {
	payload, err := json.Marshal(activityPayload{
		Create:       a.Create,
		Transfer:     a.Transfer,
		CheckAccount: a.CheckAccount,
	})
	if err != nil {
		return nil, fmt.Errorf("tally/postgres: encode activity payload: %w", err)
	}

	m := &activityModel{
		ID:             a.ID.String(),
		Type:           string(a.Type),
		Timestamp:      a.Timestamp,
		Status:         string(a.Status),
		OwnerID:        a.OwnerID.String(),
		ContractTermID: a.ContractTermID.String(),
		ValueID:        a.ValueID.String(),
		Payload:        payload,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if a.Transfer != nil {
		m.TransferType = string(a.Transfer.Type)
	}
	return m, nil
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

	var p activityPayload
	if len(m.Payload) > 0 {
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return nil, fmt.Errorf("tally/postgres: decode activity payload: %w", err)
		}
	}

	return &activity.Activity{
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
		Create:         p.Create,
		Transfer:       p.Transfer,
		CheckAccount:   p.CheckAccount,
	}, nil
}
