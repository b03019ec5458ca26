package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is idempotent. The expression index makes a second reading for the
// same customer, meter type and UTC calendar month impossible at the store
// level, independent of the application level check.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS measure_read (
		measure_read_id BIGSERIAL PRIMARY KEY,
		measure_uuid UUID NOT NULL UNIQUE,
		customer_code UUID NOT NULL,
		measure_datetime TIMESTAMPTZ NOT NULL,
		measure_type VARCHAR(5) NOT NULL CHECK (measure_type IN ('WATER', 'GAS')),
		measure_value NUMERIC NOT NULL,
		image_url TEXT NOT NULL,
		has_confirmed BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS measure_read_customer_type_month_key
		ON measure_read (customer_code, measure_type, (date_trunc('month', measure_datetime AT TIME ZONE 'UTC')))`,
	`CREATE INDEX IF NOT EXISTS measure_read_customer_datetime_idx
		ON measure_read (customer_code, measure_datetime DESC)`,
}

// Migrate applies the measure_read schema inside a single transaction.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
