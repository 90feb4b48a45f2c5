package nowcast

import (
	"context"
	"fmt"
	"time"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/pkg/logger"
)

// priceLookbackDays is how far before the feature window price history
// is loaded so long-lookback indicators have data on the first dates
const priceLookbackDays = 550

// AttentionSource loads attention records for a date range
type AttentionSource interface {
	GetByDateRange(ctx context.Context, from, to time.Time) ([]contracts.AttentionRecord, error)
}

// PriceSource loads daily bars for a date range
type PriceSource interface {
	GetByDateRange(ctx context.Context, from, to time.Time) ([]contracts.PriceRecord, error)
}

// MetricsSink persists the metrics of a completed run
type MetricsSink interface {
	Save(ctx context.Context, runAt time.Time, metrics []contracts.RunMetrics) error
}

// Service runs the pipeline against stored data: it loads the window
// from the repositories, executes a run, and persists the metrics.
type Service struct {
	runner    *Runner
	attention AttentionSource
	prices    PriceSource
	metrics   MetricsSink
	logger    *logger.Logger
}

// NewService wires a runner to its data sources and metrics sink
func NewService(runner *Runner, attention AttentionSource, prices PriceSource, metrics MetricsSink, log *logger.Logger) *Service {
	return &Service{
		runner:    runner,
		attention: attention,
		prices:    prices,
		metrics:   metrics,
		logger:    log.Component("nowcast.service"),
	}
}

// RunWindow executes one run over the [from, to] feature window.
// Prices are loaded with extra lookback before the window so the
// long-horizon indicators are defined at its start. Metrics persist
// only when the whole run succeeds.
func (s *Service) RunWindow(ctx context.Context, from, to time.Time) (*RunResult, error) {
	attention, err := s.attention.GetByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load attention: %w", err)
	}

	prices, err := s.prices.GetByDateRange(ctx, from.AddDate(0, 0, -priceLookbackDays), to)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}

	result, err := s.runner.Run(ctx, RunInput{
		Attention: attention,
		Prices:    prices,
		From:      from,
		To:        to,
	})
	if err != nil {
		return nil, err
	}

	if err := s.metrics.Save(ctx, time.Now().UTC(), result.Metrics); err != nil {
		return nil, fmt.Errorf("save metrics: %w", err)
	}

	return result, nil
}

// FeatureWindow builds the finalized feature table for [from, to]
// without training. Nothing is persisted.
func (s *Service) FeatureWindow(ctx context.Context, from, to time.Time) (*contracts.FeatureTable, error) {
	attention, err := s.attention.GetByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load attention: %w", err)
	}

	prices, err := s.prices.GetByDateRange(ctx, from.AddDate(0, 0, -priceLookbackDays), to)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}

	return s.runner.BuildTable(ctx, RunInput{
		Attention: attention,
		Prices:    prices,
		From:      from,
		To:        to,
	})
}
