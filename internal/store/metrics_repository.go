package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ejames/nowcast/internal/contracts"
)

// MetricsRepository persists run evaluation metrics. Every run appends
// one row per model; history is never rewritten.
type MetricsRepository struct {
	pool *pgxpool.Pool
}

// NewMetricsRepository creates a metrics repository
func NewMetricsRepository(pool *pgxpool.Pool) *MetricsRepository {
	return &MetricsRepository{pool: pool}
}

// StoredMetrics is a persisted metrics row with its run timestamp
type StoredMetrics struct {
	ID    int64
	RunAt time.Time
	contracts.RunMetrics
}

// Save appends the metrics of one run (one row per model). All rows of
// the run share a transaction so a run never persists partially.
func (r *MetricsRepository) Save(ctx context.Context, runAt time.Time, metrics []contracts.RunMetrics) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO nowcast.run_metrics
			(run_at, model_name, holdout_accuracy, baseline_accuracy,
			 decile_spread_daily, decile_spread_annualized, n_train, n_holdout)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, m := range metrics {
		_, err := tx.Exec(ctx, query,
			runAt, m.ModelName, m.HoldoutAccuracy, m.BaselineAccuracy,
			m.DecileSpreadDaily, m.DecileSpreadAnnualized, m.NTrain, m.NHoldout,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Latest returns the metrics rows of the most recent run
func (r *MetricsRepository) Latest(ctx context.Context) ([]StoredMetrics, error) {
	query := `
		SELECT id, run_at, model_name, holdout_accuracy, baseline_accuracy,
		       decile_spread_daily, decile_spread_annualized, n_train, n_holdout
		FROM nowcast.run_metrics
		WHERE run_at = (SELECT MAX(run_at) FROM nowcast.run_metrics)
		ORDER BY model_name ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredMetrics
	for rows.Next() {
		var m StoredMetrics
		if err := rows.Scan(
			&m.ID, &m.RunAt, &m.ModelName, &m.HoldoutAccuracy, &m.BaselineAccuracy,
			&m.DecileSpreadDaily, &m.DecileSpreadAnnualized, &m.NTrain, &m.NHoldout,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// History returns metrics rows for the last n runs, newest first
func (r *MetricsRepository) History(ctx context.Context, n int) ([]StoredMetrics, error) {
	query := `
		SELECT id, run_at, model_name, holdout_accuracy, baseline_accuracy,
		       decile_spread_daily, decile_spread_annualized, n_train, n_holdout
		FROM nowcast.run_metrics
		WHERE run_at IN (
			SELECT DISTINCT run_at FROM nowcast.run_metrics
			ORDER BY run_at DESC LIMIT $1
		)
		ORDER BY run_at DESC, model_name ASC
	`

	rows, err := r.pool.Query(ctx, query, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredMetrics
	for rows.Next() {
		var m StoredMetrics
		if err := rows.Scan(
			&m.ID, &m.RunAt, &m.ModelName, &m.HoldoutAccuracy, &m.BaselineAccuracy,
			&m.DecileSpreadDaily, &m.DecileSpreadAnnualized, &m.NTrain, &m.NHoldout,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
