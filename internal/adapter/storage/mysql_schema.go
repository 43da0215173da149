package storage

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// schema is applied statement by statement; the driver runs without
// multiStatements.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS survivors (
		id CHAR(36) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		age INT NOT NULL,
		gender VARCHAR(32) NOT NULL,
		infected BOOLEAN NOT NULL DEFAULT FALSE,
		last_location_lat DECIMAL(10,8) NOT NULL DEFAULT 0,
		last_location_long DECIMAL(11,8) NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		deleted_at DATETIME(6) NULL,
		INDEX idx_survivors_deleted_at (deleted_at)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS items (
		id CHAR(36) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		deleted_at DATETIME(6) NULL,
		INDEX idx_items_deleted_at (deleted_at)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS inventory (
		survivor_id CHAR(36) NOT NULL,
		item_id CHAR(36) NOT NULL,
		quantity INT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		deleted_at DATETIME(6) NULL,
		PRIMARY KEY (survivor_id, item_id),
		CONSTRAINT chk_inventory_quantity CHECK (quantity >= 0),
		CONSTRAINT fk_inventory_survivor FOREIGN KEY (survivor_id) REFERENCES survivors (id),
		CONSTRAINT fk_inventory_item FOREIGN KEY (item_id) REFERENCES items (id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS trades (
		id CHAR(36) NOT NULL PRIMARY KEY,
		survivor1_id CHAR(36) NOT NULL,
		survivor2_id CHAR(36) NOT NULL,
		item_given_id CHAR(36) NOT NULL,
		item_received_id CHAR(36) NOT NULL,
		quantity_given INT NOT NULL,
		quantity_received INT NOT NULL,
		created_at DATETIME(6) NOT NULL,
		deleted_at DATETIME(6) NULL,
		INDEX idx_trades_survivor1 (survivor1_id, deleted_at),
		INDEX idx_trades_survivor2 (survivor2_id, deleted_at),
		CONSTRAINT fk_trades_survivor1 FOREIGN KEY (survivor1_id) REFERENCES survivors (id),
		CONSTRAINT fk_trades_survivor2 FOREIGN KEY (survivor2_id) REFERENCES survivors (id),
		CONSTRAINT fk_trades_item_given FOREIGN KEY (item_given_id) REFERENCES items (id),
		CONSTRAINT fk_trades_item_received FOREIGN KEY (item_received_id) REFERENCES items (id)
	) ENGINE=InnoDB`,
}

// Migrate creates the tables the service needs if they are missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "apply schema")
		}
	}
	return nil
}
