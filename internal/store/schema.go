package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the DDL for every table the pipeline persists to.
// Statements are idempotent so Migrate can run on every startup.
var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS nowcast`,

	`CREATE TABLE IF NOT EXISTS nowcast.attention (
		date            DATE             NOT NULL,
		ticker          TEXT             NOT NULL,
		mention_count   INTEGER          NOT NULL,
		mean_sentiment  DOUBLE PRECISION NOT NULL,
		source_count    INTEGER          NOT NULL,
		updated_at      TIMESTAMPTZ      NOT NULL DEFAULT now(),
		PRIMARY KEY (date, ticker)
	)`,

	`CREATE TABLE IF NOT EXISTS nowcast.daily_prices (
		ticker      TEXT             NOT NULL,
		trade_date  DATE             NOT NULL,
		open_price  DOUBLE PRECISION NOT NULL,
		high_price  DOUBLE PRECISION NOT NULL,
		low_price   DOUBLE PRECISION NOT NULL,
		close_price DOUBLE PRECISION NOT NULL,
		volume      BIGINT           NOT NULL,
		PRIMARY KEY (ticker, trade_date)
	)`,

	`CREATE TABLE IF NOT EXISTS nowcast.run_metrics (
		id                        BIGSERIAL PRIMARY KEY,
		run_at                    TIMESTAMPTZ      NOT NULL DEFAULT now(),
		model_name                TEXT             NOT NULL,
		holdout_accuracy          DOUBLE PRECISION NOT NULL,
		baseline_accuracy         DOUBLE PRECISION NOT NULL,
		decile_spread_daily       DOUBLE PRECISION NOT NULL,
		decile_spread_annualized  DOUBLE PRECISION NOT NULL,
		n_train                   INTEGER          NOT NULL,
		n_holdout                 INTEGER          NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_run_metrics_run_at
		ON nowcast.run_metrics (run_at DESC)`,
}

// Migrate applies the schema. Safe to call on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
