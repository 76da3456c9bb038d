package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/tally"
	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/owner"
	tallystore "github.com/xraph/tally/store"
	"github.com/xraph/tally/value"
)

// Collection name constants.
const (
	colOwners     = "tally_owners"
	colAssets     = "tally_assets"
	colValues     = "tally_values"
	colActivities = "tally_activities"
)

// compile-time interface check
var _ tallystore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all tally collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("tally/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Reset deletes every document in the tally collections.
func (s *Store) Reset(ctx context.Context) error {
	for _, col := range []string{colActivities, colValues, colAssets, colOwners} {
		if _, err := s.mdb.Collection(col).DeleteMany(ctx, bson.M{}); err != nil {
			return fmt.Errorf("tally/mongo: reset %s: %w", col, err)
		}
	}
	return nil
}

// ==================== Owner Store ====================

func (s *Store) CreateOwner(ctx context.Context, o *owner.Owner) error {
	_, err := s.mdb.NewInsert(toOwnerModel(o)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return tally.ErrAlreadyExists
		}
		return fmt.Errorf("tally/mongo: create owner: %w", err)
	}
	return nil
}

func (s *Store) GetOwner(ctx context.Context, ownerID id.OwnerID) (*owner.Owner, error) {
	var m ownerModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": ownerID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrOwnerNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get owner: %w", err)
	}
	return fromOwnerModel(&m)
}

func (s *Store) GetSystemOwner(ctx context.Context) (*owner.Owner, error) {
	var m ownerModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"role": string(owner.RoleSystem)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrSystemNotInitialized
		}
		return nil, fmt.Errorf("tally/mongo: get system owner: %w", err)
	}
	return fromOwnerModel(&m)
}

func (s *Store) ListOwners(ctx context.Context, opts owner.ListOpts) ([]*owner.Owner, error) {
	var models []ownerModel

	filter := bson.M{}
	roleFilter := bson.M{}
	if opts.Role != "" {
		roleFilter["$eq"] = string(opts.Role)
	}
	if len(opts.ExcludeRoles) > 0 {
		roles := make(bson.A, len(opts.ExcludeRoles))
		for i, r := range opts.ExcludeRoles {
			roles[i] = string(r)
		}
		roleFilter["$nin"] = roles
	}
	if len(roleFilter) > 0 {
		filter["role"] = roleFilter
	}
	if len(opts.ExcludeIDs) > 0 {
		filter["_id"] = bson.M{"$nin": id.Strings(opts.ExcludeIDs)}
	}
	if !opts.MemberOf.IsNil() {
		filter["member_of"] = opts.MemberOf.String()
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tally/mongo: list owners: %w", err)
	}

	result := make([]*owner.Owner, len(models))
	for i := range models {
		o, err := fromOwnerModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = o
	}
	return result, nil
}

func (s *Store) UpdateOwner(ctx context.Context, o *owner.Owner) error {
	m := toOwnerModel(o)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: update owner: %w", err)
	}
	if res.MatchedCount() == 0 {
		return tally.ErrOwnerNotFound
	}
	return nil
}

// ==================== Asset Store ====================

func (s *Store) CreateAsset(ctx context.Context, a *asset.Asset) error {
	_, err := s.mdb.NewInsert(toAssetModel(a)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: create asset: %w", err)
	}
	return nil
}

func (s *Store) GetAsset(ctx context.Context, assetID id.AssetID) (*asset.Asset, error) {
	var m assetModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": assetID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrAssetNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get asset: %w", err)
	}
	return fromAssetModel(&m)
}

func (s *Store) ListAssets(ctx context.Context, opts asset.ListOpts) ([]*asset.Asset, error) {
	var models []assetModel

	filter := bson.M{}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if opts.ContractStatus != "" {
		filter["contract.status"] = string(opts.ContractStatus)
	}
	if !opts.OwnerID.IsNil() {
		filter["owner_id"] = opts.OwnerID.String()
	}
	if !opts.ParentID.IsNil() {
		filter["parent_id"] = opts.ParentID.String()
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tally/mongo: list assets: %w", err)
	}

	result := make([]*asset.Asset, len(models))
	for i := range models {
		a, err := fromAssetModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

func (s *Store) UpdateAsset(ctx context.Context, a *asset.Asset) error {
	m := toAssetModel(a)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: update asset: %w", err)
	}
	if res.MatchedCount() == 0 {
		return tally.ErrAssetNotFound
	}
	return nil
}

// ==================== Value Store ====================

func (s *Store) CreateValue(ctx context.Context, v *value.Value) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %w", tally.ErrInvalidInput, err)
	}
	_, err := s.mdb.NewInsert(toValueModel(v)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return tally.ErrAlreadyExists
		}
		return fmt.Errorf("tally/mongo: create value: %w", err)
	}
	return nil
}

// InsertValues writes the batch with one ordered InsertMany.
func (s *Store) InsertValues(ctx context.Context, vs []*value.Value) error {
	if len(vs) == 0 {
		return nil
	}
	docs := make([]any, len(vs))
	for i, v := range vs {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", tally.ErrInvalidInput, err)
		}
		docs[i] = toValueModel(v)
	}
	if _, err := s.mdb.Collection(colValues).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("tally/mongo: insert values: %w", err)
	}
	return nil
}

func (s *Store) GetValue(ctx context.Context, valueID id.ValueID) (*value.Value, error) {
	var m valueModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": valueID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrValueNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get value: %w", err)
	}
	return fromValueModel(&m)
}

func (s *Store) GetPool(ctx context.Context, ownerID id.OwnerID) (*value.Value, error) {
	var m valueModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"owner_id": ownerID.String(), "pool": true}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrValueNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get pool: %w", err)
	}
	return fromValueModel(&m)
}

func valueFilter(opts value.ListOpts) bson.M {
	filter := bson.M{}
	if opts.HolderType != "" {
		filter["holder_type"] = string(opts.HolderType)
	}
	if !opts.OwnerID.IsNil() {
		filter["holder_type"] = string(value.HolderOwner)
		filter["owner_id"] = opts.OwnerID.String()
	}
	if !opts.AssetID.IsNil() {
		filter["holder_type"] = string(value.HolderAsset)
		filter["asset_id"] = opts.AssetID.String()
	}
	if opts.ExcludePool {
		filter["pool"] = false
	}
	return filter
}

func (s *Store) ListValues(ctx context.Context, opts value.ListOpts) ([]*value.Value, error) {
	var models []valueModel

	q := s.mdb.NewFind(&models).
		Filter(valueFilter(opts)).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tally/mongo: list values: %w", err)
	}

	result := make([]*value.Value, len(models))
	for i := range models {
		v, err := fromValueModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

func (s *Store) SumValues(ctx context.Context, opts value.ListOpts) (int64, error) {
	pipeline := bson.A{
		bson.M{"$match": valueFilter(opts)},
		bson.M{
			"$group": bson.M{
				"_id":   nil,
				"total": bson.M{"$sum": "$amount"},
			},
		},
	}

	cursor, err := s.mdb.Collection(colValues).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("tally/mongo: sum values: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("tally/mongo: sum values decode: %w", err)
	}

	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

// DebitPool uses a guarded $inc so the pool is never driven negative.
func (s *Store) DebitPool(ctx context.Context, poolID id.ValueID, amount int64) error {
	res, err := s.mdb.Collection(colValues).UpdateOne(ctx,
		bson.M{"_id": poolID.String(), "pool": true, "amount": bson.M{"$gte": amount}},
		bson.M{"$inc": bson.M{"amount": -amount}, "$set": bson.M{"updated_at": now()}},
	)
	if err != nil {
		return fmt.Errorf("tally/mongo: debit pool: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetValue(ctx, poolID); err != nil {
			return err
		}
		return tally.ErrInsufficientFunds
	}
	return nil
}

func (s *Store) CreditPool(ctx context.Context, poolID id.ValueID, amount int64) error {
	res, err := s.mdb.Collection(colValues).UpdateOne(ctx,
		bson.M{"_id": poolID.String(), "pool": true},
		bson.M{"$inc": bson.M{"amount": amount}, "$set": bson.M{"updated_at": now()}},
	)
	if err != nil {
		return fmt.Errorf("tally/mongo: credit pool: %w", err)
	}
	if res.MatchedCount == 0 {
		return tally.ErrValueNotFound
	}
	return nil
}

func (s *Store) ReassignValues(ctx context.Context, valueIDs []id.ValueID, from, to value.Holder) (int64, error) {
	if len(valueIDs) == 0 {
		return 0, nil
	}
	filter := bson.M{
		"_id":         bson.M{"$in": id.Strings(valueIDs)},
		"holder_type": string(from.Type),
		"pool":        false,
	}
	if from.Type == value.HolderAsset {
		filter["asset_id"] = from.ID.String()
	} else {
		filter["owner_id"] = from.ID.String()
	}

	set := bson.M{"holder_type": string(to.Type), "updated_at": now()}
	if to.Type == value.HolderAsset {
		set["asset_id"] = to.ID.String()
		set["owner_id"] = ""
	} else {
		set["owner_id"] = to.ID.String()
		set["asset_id"] = ""
	}

	res, err := s.mdb.Collection(colValues).UpdateMany(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return 0, fmt.Errorf("tally/mongo: reassign values: %w", err)
	}
	return res.ModifiedCount, nil
}

// ==================== Activity Store ====================

func (s *Store) CreateActivity(ctx context.Context, a *activity.Activity) error {
	_, err := s.mdb.NewInsert(toActivityModel(a)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: create activity: %w", err)
	}
	return nil
}

func (s *Store) GetActivity(ctx context.Context, activityID id.ActivityID) (*activity.Activity, error) {
	var m activityModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": activityID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tally.ErrActivityNotFound
		}
		return nil, fmt.Errorf("tally/mongo: get activity: %w", err)
	}
	return fromActivityModel(&m)
}

func (s *Store) ListActivities(ctx context.Context, opts activity.ListOpts) ([]*activity.Activity, error) {
	var models []activityModel

	filter := bson.M{}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.TransferType != "" {
		filter["transfer.type"] = string(opts.TransferType)
	}
	if !opts.TransferToID.IsNil() {
		filter["transfer.to_id"] = opts.TransferToID.String()
	}
	if !opts.ContractTermID.IsNil() {
		filter["contract_term_id"] = opts.ContractTermID.String()
	}
	if !opts.OwnerID.IsNil() {
		filter["owner_id"] = opts.OwnerID.String()
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tally/mongo: list activities: %w", err)
	}

	result := make([]*activity.Activity, len(models))
	for i := range models {
		a, err := fromActivityModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

func (s *Store) UpdateActivityStatus(ctx context.Context, activityID id.ActivityID, from, to activity.Status) error {
	if !from.CanMoveTo(to) {
		return fmt.Errorf("%w: %s -> %s", tally.ErrInvalidState, from, to)
	}
	res, err := s.mdb.NewUpdate((*activityModel)(nil)).
		Filter(bson.M{"_id": activityID.String(), "status": string(from)}).
		Set("status", string(to)).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("tally/mongo: update activity status: %w", err)
	}
	if res.MatchedCount() == 0 {
		if _, err := s.GetActivity(ctx, activityID); err != nil {
			return err
		}
		return fmt.Errorf("%w: activity %s is not %s", tally.ErrInvalidState, activityID, from)
	}
	return nil
}

// ==================== Helpers ====================

func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all tally collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colOwners: {
			{
				Keys: bson.D{{Key: "role", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"role": string(owner.RoleSystem)}),
			},
			{Keys: bson.D{{Key: "member_of", Value: 1}}},
		},
		colAssets: {
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "contract.status", Value: 1}}},
			{Keys: bson.D{{Key: "owner_id", Value: 1}}},
			{Keys: bson.D{{Key: "parent_id", Value: 1}}},
		},
		colValues: {
			{Keys: bson.D{{Key: "holder_type", Value: 1}, {Key: "owner_id", Value: 1}, {Key: "_id", Value: 1}}},
			{Keys: bson.D{{Key: "holder_type", Value: 1}, {Key: "asset_id", Value: 1}, {Key: "_id", Value: 1}}},
			{
				Keys: bson.D{{Key: "owner_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"pool": true}),
			},
		},
		colActivities: {
			{Keys: bson.D{{Key: "contract_term_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "timestamp", Value: 1}}},
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "transfer.type", Value: 1}, {Key: "timestamp", Value: 1}}},
		},
	}
}
