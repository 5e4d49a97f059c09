package database

import (
	"context"
	"database/sql"
	"fmt"
)

// floor_cells is the whole persisted state of the allocator.  Seeding
// fills it once; afterwards rows are only updated, never inserted or
// deleted.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS floor_cells (
		cell_id      VARCHAR(32)  NOT NULL PRIMARY KEY,
		rectangle_id VARCHAR(8)   NOT NULL,
		seq          INT UNSIGNED NOT NULL,
		cell_type    VARCHAR(8)   NOT NULL,
		area_cm2     INT UNSIGNED NOT NULL,
		status       VARCHAR(16)  NOT NULL DEFAULT 'available',
		pledge_ref   VARCHAR(64)  NULL,
		payment_ref  VARCHAR(64)  NULL,
		donor_name   VARCHAR(255) NULL,
		amount_pence BIGINT       NULL,
		assigned_at  DATETIME     NULL,
		UNIQUE KEY uq_floor_cells_slot (rectangle_id, cell_type, seq),
		KEY idx_floor_cells_scan (cell_type, status, rectangle_id, seq),
		KEY idx_floor_cells_pledge (pledge_ref),
		KEY idx_floor_cells_payment (payment_ref)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS floor_cells (
		cell_id      TEXT     NOT NULL PRIMARY KEY,
		rectangle_id TEXT     NOT NULL,
		seq          INTEGER  NOT NULL,
		cell_type    TEXT     NOT NULL,
		area_cm2     INTEGER  NOT NULL,
		status       TEXT     NOT NULL DEFAULT 'available',
		pledge_ref   TEXT     NULL,
		payment_ref  TEXT     NULL,
		donor_name   TEXT     NULL,
		amount_pence INTEGER  NULL,
		assigned_at  DATETIME NULL,
		UNIQUE (rectangle_id, cell_type, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_floor_cells_scan ON floor_cells (cell_type, status, rectangle_id, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_floor_cells_pledge ON floor_cells (pledge_ref)`,
	`CREATE INDEX IF NOT EXISTS idx_floor_cells_payment ON floor_cells (payment_ref)`,
}

// Migrate creates the floor_cells table for the given dialect.  It is
// safe to run repeatedly.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	stmts := mysqlSchema
	if d.Name == SQLite.Name {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", d.Name, err)
		}
	}
	return nil
}
