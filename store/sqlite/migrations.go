package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Tally store (SQLite).
var Migrations = migrate.NewGroup("tally")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_tally_owners",
			Version: "20240601000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_owners (
    id          TEXT PRIMARY KEY,
    role        TEXT NOT NULL,
    name        TEXT NOT NULL DEFAULT '',
    member_of   TEXT NOT NULL DEFAULT '[]',
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tally_owners_role ON tally_owners (role);
CREATE UNIQUE INDEX IF NOT EXISTS idx_tally_owners_system ON tally_owners (role) WHERE role = 'system';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_owners`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tally_assets",
			Version: "20240601000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_assets (
    id              TEXT PRIMARY KEY,
    type            TEXT NOT NULL,
    owner_id        TEXT NOT NULL,
    parent_id       TEXT NOT NULL DEFAULT '',
    contract_status TEXT NOT NULL DEFAULT '',
    payload         TEXT NOT NULL DEFAULT '{}',
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tally_assets_owner ON tally_assets (owner_id);
CREATE INDEX IF NOT EXISTS idx_tally_assets_parent ON tally_assets (parent_id);
CREATE INDEX IF NOT EXISTS idx_tally_assets_contracts ON tally_assets (type, contract_status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_assets`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tally_values",
			Version: "20240601000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_values (
    id          TEXT PRIMARY KEY,
    amount      INTEGER NOT NULL CHECK (amount >= 0),
    holder_type TEXT NOT NULL,
    owner_id    TEXT NOT NULL DEFAULT '',
    asset_id    TEXT NOT NULL DEFAULT '',
    pool        INTEGER NOT NULL DEFAULT 0,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CONSTRAINT chk_tally_values_holder CHECK (
        (holder_type = 'owner' AND owner_id <> '' AND asset_id = '') OR
        (holder_type = 'asset' AND asset_id <> '' AND owner_id = '' AND pool = 0)
    )
);

CREATE INDEX IF NOT EXISTS idx_tally_values_owner ON tally_values (owner_id, id) WHERE holder_type = 'owner';
CREATE INDEX IF NOT EXISTS idx_tally_values_asset ON tally_values (asset_id, id) WHERE holder_type = 'asset';
CREATE UNIQUE INDEX IF NOT EXISTS idx_tally_values_pool ON tally_values (owner_id) WHERE pool = 1;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_values`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tally_activities",
			Version: "20240601000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tally_activities (
    id               TEXT PRIMARY KEY,
    type             TEXT NOT NULL,
    timestamp        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    status           TEXT NOT NULL,
    owner_id         TEXT NOT NULL DEFAULT '',
    contract_term_id TEXT NOT NULL DEFAULT '',
    value_id         TEXT NOT NULL DEFAULT '',
    transfer_type    TEXT NOT NULL DEFAULT '',
    payload          TEXT NOT NULL DEFAULT '{}',
    created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tally_activities_term ON tally_activities (contract_term_id, status);
CREATE INDEX IF NOT EXISTS idx_tally_activities_owner ON tally_activities (owner_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_tally_activities_type ON tally_activities (type, transfer_type, timestamp);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tally_activities`)
				return err
			},
		},
	)
}
