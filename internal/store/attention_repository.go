package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ejames/nowcast/internal/contracts"
)

// AttentionRepository persists daily attention records
type AttentionRepository struct {
	pool *pgxpool.Pool
}

// NewAttentionRepository creates an attention repository
func NewAttentionRepository(pool *pgxpool.Pool) *AttentionRepository {
	return &AttentionRepository{pool: pool}
}

// Save upserts a single attention record. Collections within the same
// day accumulate mentions: counts add, sentiment averages by mention
// weight, source counts take the max seen.
func (r *AttentionRepository) Save(ctx context.Context, rec contracts.AttentionRecord) error {
	query := `
		INSERT INTO nowcast.attention (date, ticker, mention_count, mean_sentiment, source_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date, ticker) DO UPDATE SET
			mean_sentiment = (nowcast.attention.mean_sentiment * nowcast.attention.mention_count
				+ EXCLUDED.mean_sentiment * EXCLUDED.mention_count)
				/ (nowcast.attention.mention_count + EXCLUDED.mention_count),
			mention_count = nowcast.attention.mention_count + EXCLUDED.mention_count,
			source_count = GREATEST(nowcast.attention.source_count, EXCLUDED.source_count),
			updated_at = now()
	`

	_, err := r.pool.Exec(ctx, query,
		rec.Date, rec.Ticker, rec.MentionCount, rec.MeanSentiment, rec.SourceCount,
	)
	return err
}

// SaveBatch upserts multiple attention records
func (r *AttentionRepository) SaveBatch(ctx context.Context, recs []contracts.AttentionRecord) error {
	for _, rec := range recs {
		if err := r.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// GetByDateRange retrieves attention records within [from, to]
func (r *AttentionRepository) GetByDateRange(ctx context.Context, from, to time.Time) ([]contracts.AttentionRecord, error) {
	query := `
		SELECT date, ticker, mention_count, mean_sentiment, source_count
		FROM nowcast.attention
		WHERE date BETWEEN $1 AND $2
		ORDER BY date ASC, ticker ASC
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []contracts.AttentionRecord
	for rows.Next() {
		var rec contracts.AttentionRecord
		if err := rows.Scan(&rec.Date, &rec.Ticker, &rec.MentionCount, &rec.MeanSentiment, &rec.SourceCount); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
