package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ejames/nowcast/internal/contracts"
)

// PriceRepository persists daily OHLCV bars
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// Save upserts a single daily bar
func (r *PriceRepository) Save(ctx context.Context, rec contracts.PriceRecord) error {
	query := `
		INSERT INTO nowcast.daily_prices (ticker, trade_date, open_price, high_price, low_price, close_price, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticker, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume
	`

	_, err := r.pool.Exec(ctx, query,
		rec.Ticker, rec.Date, rec.Open, rec.High, rec.Low, rec.Close, rec.Volume,
	)
	return err
}

// SaveBatch upserts multiple daily bars
func (r *PriceRepository) SaveBatch(ctx context.Context, recs []contracts.PriceRecord) error {
	for _, rec := range recs {
		if err := r.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// GetByDateRange retrieves bars for all tickers within [from, to]
func (r *PriceRepository) GetByDateRange(ctx context.Context, from, to time.Time) ([]contracts.PriceRecord, error) {
	query := `
		SELECT ticker, trade_date, open_price, high_price, low_price, close_price, volume
		FROM nowcast.daily_prices
		WHERE trade_date BETWEEN $1 AND $2
		ORDER BY ticker ASC, trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetByTicker retrieves one ticker's bars within [from, to]
func (r *PriceRepository) GetByTicker(ctx context.Context, ticker string, from, to time.Time) ([]contracts.PriceRecord, error) {
	query := `
		SELECT ticker, trade_date, open_price, high_price, low_price, close_price, volume
		FROM nowcast.daily_prices
		WHERE ticker = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, ticker, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPrices(rows)
}

// LatestDate returns the most recent trade date stored, zero when the
// table is empty
func (r *PriceRepository) LatestDate(ctx context.Context) (time.Time, error) {
	query := `SELECT COALESCE(MAX(trade_date), '0001-01-01'::date) FROM nowcast.daily_prices`

	var latest time.Time
	if err := r.pool.QueryRow(ctx, query).Scan(&latest); err != nil {
		return time.Time{}, err
	}
	if latest.Year() <= 1 {
		return time.Time{}, nil
	}
	return latest, nil
}

func scanPrices(rows pgx.Rows) ([]contracts.PriceRecord, error) {
	var recs []contracts.PriceRecord
	for rows.Next() {
		var rec contracts.PriceRecord
		if err := rows.Scan(&rec.Ticker, &rec.Date, &rec.Open, &rec.High, &rec.Low, &rec.Close, &rec.Volume); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
