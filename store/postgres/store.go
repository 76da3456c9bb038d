package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/tally"
	"github.com/xraph/tally/activity"
	"github.com/xraph/tally/asset"
	"github.com/xraph/tally/id"
	"github.com/xraph/tally/owner"
	tallystore "github.com/xraph/tally/store"
	"github.com/xraph/tally/value"
)

// compile-time interface check
var _ tallystore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("tally/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tally/postgres: migration failed: %w", err)
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

// Reset deletes every row owned by Tally.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.pg.NewDelete((*activityModel)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return fmt.Errorf("tally/postgres: reset activities: %w", err)
	}
	if _, err := s.pg.NewDelete((*valueModel)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return fmt.Errorf("tally/postgres: reset values: %w", err)
	}
	if _, err := s.pg.NewDelete((*assetModel)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return fmt.Errorf("tally/postgres: reset assets: %w", err)
	}
	if _, err := s.pg.NewDelete((*ownerModel)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return fmt.Errorf("tally/postgres: reset owners: %w", err)
	}
	return nil
}

// ==================== Owner Store ====================

func (s *Store) CreateOwner(ctx context.Context, o *owner.Owner) error {
	_, err := s.pg.NewInsert(toOwnerModel(o)).Exec(ctx)
	return err
}

func (s *Store) GetOwner(ctx context.Context, ownerID id.OwnerID) (*owner.Owner, error) {
	m := new(ownerModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", ownerID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrOwnerNotFound
		}
		return nil, err
	}
	return fromOwnerModel(m)
}

func (s *Store) GetSystemOwner(ctx context.Context) (*owner.Owner, error) {
	m := new(ownerModel)
	err := s.pg.NewSelect(m).
		Where("role = $1", string(owner.RoleSystem)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrSystemNotInitialized
		}
		return nil, err
	}
	return fromOwnerModel(m)
}

func (s *Store) ListOwners(ctx context.Context, opts owner.ListOpts) ([]*owner.Owner, error) {
	var f filter
	if opts.Role != "" {
		f.add("role = $%d", string(opts.Role))
	}
	for _, r := range opts.ExcludeRoles {
		f.add("role <> $%d", string(r))
	}
	for _, x := range opts.ExcludeIDs {
		f.add("id <> $%d", x.String())
	}
	if !opts.MemberOf.IsNil() {
		f.add("member_of @> $%d::jsonb", fmt.Sprintf("[%q]", opts.MemberOf.String()))
	}

	var models []ownerModel
	q := s.pg.NewSelect(&models)
	for _, c := range f.conds {
		q = q.Where(c.expr, c.args...)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tally.ErrOwnerNotFound
	}
	return nil
}

// ==================== Asset Store ====================

func (s *Store) CreateAsset(ctx context.Context, a *asset.Asset) error {
	m, err := toAssetModel(a)
	if err != nil {
		return err
	}
	_, err = s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetAsset(ctx context.Context, assetID id.AssetID) (*asset.Asset, error) {
	m := new(assetModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", assetID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrAssetNotFound
		}
		return nil, err
	}
	return fromAssetModel(m)
}

func (s *Store) ListAssets(ctx context.Context, opts asset.ListOpts) ([]*asset.Asset, error) {
	var f filter
	if opts.Type != "" {
		f.add("type = $%d", string(opts.Type))
	}
	if opts.ContractStatus != "" {
		f.add("contract_status = $%d", string(opts.ContractStatus))
	}
	if !opts.OwnerID.IsNil() {
		f.add("owner_id = $%d", opts.OwnerID.String())
	}
	if !opts.ParentID.IsNil() {
		f.add("parent_id = $%d", opts.ParentID.String())
	}

	var models []assetModel
	q := s.pg.NewSelect(&models)
	for _, c := range f.conds {
		q = q.Where(c.expr, c.args...)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	m, err := toAssetModel(a)
	if err != nil {
		return err
	}
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tally.ErrAssetNotFound
	}
	return nil
}

// ==================== Value Store ====================

func (s *Store) CreateValue(ctx context.Context, v *value.Value) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %w", tally.ErrInvalidInput, err)
	}
	_, err := s.pg.NewInsert(toValueModel(v)).Exec(ctx)
	return err
}

// InsertValues writes the batch in a single statement.
func (s *Store) InsertValues(ctx context.Context, vs []*value.Value) error {
	if len(vs) == 0 {
		return nil
	}
	models := make([]valueModel, len(vs))
	for i, v := range vs {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", tally.ErrInvalidInput, err)
		}
		models[i] = *toValueModel(v)
	}
	_, err := s.pg.NewInsert(&models).Exec(ctx)
	return err
}

func (s *Store) GetValue(ctx context.Context, valueID id.ValueID) (*value.Value, error) {
	m := new(valueModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", valueID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrValueNotFound
		}
		return nil, err
	}
	return fromValueModel(m)
}

func (s *Store) GetPool(ctx context.Context, ownerID id.OwnerID) (*value.Value, error) {
	m := new(valueModel)
	err := s.pg.NewSelect(m).
		Where("owner_id = $1", ownerID.String()).
		Where("pool = TRUE").
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrValueNotFound
		}
		return nil, err
	}
	return fromValueModel(m)
}

func valueFilter(opts value.ListOpts) filter {
	var f filter
	if opts.HolderType != "" {
		f.add("holder_type = $%d", string(opts.HolderType))
	}
	if !opts.OwnerID.IsNil() {
		f.add("holder_type = $%d", string(value.HolderOwner))
		f.add("owner_id = $%d", opts.OwnerID.String())
	}
	if !opts.AssetID.IsNil() {
		f.add("holder_type = $%d", string(value.HolderAsset))
		f.add("asset_id = $%d", opts.AssetID.String())
	}
	if opts.ExcludePool {
		f.raw("pool = FALSE")
	}
	return f
}

func (s *Store) ListValues(ctx context.Context, opts value.ListOpts) ([]*value.Value, error) {
	f := valueFilter(opts)

	var models []valueModel
	q := s.pg.NewSelect(&models)
	for _, c := range f.conds {
		q = q.Where(c.expr, c.args...)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	where, args := valueFilter(opts).sql()

	var total int64
	err := s.pg.NewRaw(`SELECT COALESCE(SUM(amount), 0) FROM tally_values`+where, args...).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// DebitPool decrements the pool with a single conditional UPDATE so
// concurrent debits can never take it below zero.
func (s *Store) DebitPool(ctx context.Context, poolID id.ValueID, amount int64) error {
	res, err := s.pg.NewUpdate((*valueModel)(nil)).
		Set("amount = amount - $1", amount).
		Set("updated_at = $2", now()).
		Where("id = $3", poolID.String()).
		Where("pool = TRUE").
		Where("amount >= $4", amount).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetValue(ctx, poolID); err != nil {
			return err
		}
		return tally.ErrInsufficientFunds
	}
	return nil
}

func (s *Store) CreditPool(ctx context.Context, poolID id.ValueID, amount int64) error {
	res, err := s.pg.NewUpdate((*valueModel)(nil)).
		Set("amount = amount + $1", amount).
		Set("updated_at = $2", now()).
		Where("id = $3", poolID.String()).
		Where("pool = TRUE").
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return tally.ErrValueNotFound
	}
	return nil
}

// ReassignValues issues one conditional UPDATE per value. A value whose
// holder changed since it was selected is skipped.
func (s *Store) ReassignValues(ctx context.Context, valueIDs []id.ValueID, from, to value.Holder) (int64, error) {
	ownerID, assetID := holderColumns(to)
	fromCol := holderColumn(from)
	t := now()

	var moved int64
	for _, vid := range valueIDs {
		res, err := s.pg.NewUpdate((*valueModel)(nil)).
			Set("holder_type = $1", string(to.Type)).
			Set("owner_id = $2", ownerID).
			Set("asset_id = $3", assetID).
			Set("updated_at = $4", t).
			Where("id = $5", vid.String()).
			Where("holder_type = $6", string(from.Type)).
			Where(fromCol+" = $7", from.ID.String()).
			Where("pool = FALSE").
			Exec(ctx)
		if err != nil {
			return moved, err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return moved, err
		}
		moved += rows
	}
	return moved, nil
}

func holderColumn(h value.Holder) string {
	if h.Type == value.HolderAsset {
		return "asset_id"
	}
	return "owner_id"
}

func holderColumns(h value.Holder) (ownerID, assetID string) {
	if h.Type == value.HolderAsset {
		return "", h.ID.String()
	}
	return h.ID.String(), ""
}

// ==================== Activity Store ====================

func (s *Store) CreateActivity(ctx context.Context, a *activity.Activity) error {
	m, err := toActivityModel(a)
	if err != nil {
		return err
	}
	_, err = s.pg.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) GetActivity(ctx context.Context, activityID id.ActivityID) (*activity.Activity, error) {
	m := new(activityModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", activityID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tally.ErrActivityNotFound
		}
		return nil, err
	}
	return fromActivityModel(m)
}

func (s *Store) ListActivities(ctx context.Context, opts activity.ListOpts) ([]*activity.Activity, error) {
	var f filter
	if opts.Type != "" {
		f.add("type = $%d", string(opts.Type))
	}
	if opts.Status != "" {
		f.add("status = $%d", string(opts.Status))
	}
	if opts.TransferType != "" {
		f.add("transfer_type = $%d", string(opts.TransferType))
	}
	if !opts.TransferToID.IsNil() {
		f.add("payload->'transfer'->>'to_id' = $%d", opts.TransferToID.String())
	}
	if !opts.ContractTermID.IsNil() {
		f.add("contract_term_id = $%d", opts.ContractTermID.String())
	}
	if !opts.OwnerID.IsNil() {
		f.add("owner_id = $%d", opts.OwnerID.String())
	}

	var models []activityModel
	q := s.pg.NewSelect(&models)
	for _, c := range f.conds {
		q = q.Where(c.expr, c.args...)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("timestamp ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.pg.NewUpdate((*activityModel)(nil)).
		Set("status = $1", string(to)).
		Set("updated_at = $2", now()).
		Where("id = $3", activityID.String()).
		Where("status = $4", string(from)).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		if _, err := s.GetActivity(ctx, activityID); err != nil {
			return err
		}
		return fmt.Errorf("%w: activity %s is not %s", tally.ErrInvalidState, activityID, from)
	}
	return nil
}

// ==================== Helpers ====================

type cond struct {
	expr string
	args []any
}

// filter accumulates WHERE conditions with sequentially numbered
// placeholders.
type filter struct {
	conds []cond
	n     int
}

func (f *filter) add(format string, arg any) {
	f.n++
	f.conds = append(f.conds, cond{expr: fmt.Sprintf(format, f.n), args: []any{arg}})
}

func (f *filter) raw(expr string) {
	f.conds = append(f.conds, cond{expr: expr})
}

func (f filter) sql() (string, []any) {
	if len(f.conds) == 0 {
		return "", nil
	}
	exprs := make([]string, len(f.conds))
	var args []any
	for i, c := range f.conds {
		exprs[i] = c.expr
		args = append(args, c.args...)
	}
	return " WHERE " + strings.Join(exprs, " AND "), args
}

func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
