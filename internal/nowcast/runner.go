package nowcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/pkg/config"
	"github.com/ejames/nowcast/pkg/logger"
)

// Runner coordinates one nowcast evaluation run:
// normalize → build table → assign labels → temporal split →
// train/score per variant → decile evaluation.
// All inputs are caller-owned and passed per run; the runner keeps no
// state between runs, so repeated runs over identical inputs are
// reproducible in isolation.
type Runner struct {
	cfg config.NowcastConfig

	normalizer *Normalizer
	builder    *Builder
	labeler    *Labeler
	splitter   *Splitter
	trainer    *Trainer
	evaluator  *Evaluator

	logger *logger.Logger
}

// NewRunner wires the pipeline components from config
func NewRunner(cfg config.NowcastConfig, log *logger.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		normalizer: NewNormalizer(log),
		builder:    NewBuilder(cfg.Workers, log),
		labeler:    NewLabeler(cfg.HorizonDays, cfg.UpThreshold),
		splitter:   NewSplitter(cfg.MinTrainRows, DefaultMinHoldoutRows),
		trainer:    NewTrainer(cfg.Seed, log),
		evaluator:  NewEvaluator(cfg.HorizonDays, log),
		logger:     log.Component("nowcast.runner"),
	}
}

// RunInput carries the already-fetched, in-memory records for one run
type RunInput struct {
	Attention []contracts.AttentionRecord
	Prices    []contracts.PriceRecord
	From, To  time.Time
}

// RunResult is the all-or-nothing output of a successful run
type RunResult struct {
	Table   *contracts.FeatureTable // finalized read-only snapshot
	Metrics []contracts.RunMetrics  // one per model variant

	DroppedAttention int
	DroppedPrices    int
	NTrain           int
	NHoldout         int
	Duration         time.Duration
}

// Run executes the full pipeline under the configured run budget.
// Exceeding the budget aborts with contracts.ErrTimeout and emits no
// partial metrics; split/training failures surface their sentinel
// errors unchanged.
func (r *Runner) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	start := time.Now()

	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}

	r.logger.WithFields(map[string]interface{}{
		"attention": len(in.Attention),
		"prices":    len(in.Prices),
		"from":      in.From.Format(contracts.DateFormat),
		"to":        in.To.Format(contracts.DateFormat),
		"horizon":   r.cfg.HorizonDays,
		"models":    r.cfg.Models,
	}).Info("Starting nowcast run")

	// Normalize
	attention := r.normalizer.NormalizeAttention(in.Attention)
	prices := r.normalizer.NormalizePrices(in.Prices)
	if err := r.budget(ctx); err != nil {
		return nil, err
	}

	// Build feature table
	table, err := r.builder.Build(ctx, BuildInput{
		Prices:    prices.History,
		Attention: attention.Vectors,
		From:      in.From,
		To:        in.To,
	})
	if err != nil {
		return nil, r.wrapBudget(ctx, fmt.Errorf("build feature table: %w", err))
	}

	// Assign labels
	r.labeler.Assign(table, prices.History)
	if err := r.budget(ctx); err != nil {
		return nil, err
	}

	// Temporal split over labeled rows only
	train, holdout, err := r.splitter.SplitByHoldoutDays(table.Labeled(), r.cfg.HoldoutDays)
	if err != nil {
		return nil, err
	}

	// Train, score, evaluate each configured variant
	metrics := make([]contracts.RunMetrics, 0, len(r.cfg.Models))
	for _, name := range r.cfg.Models {
		kind, err := contracts.ParseModelKind(name)
		if err != nil {
			return nil, err
		}

		fitted, err := r.trainer.Train(ctx, kind, train)
		if err != nil {
			return nil, r.wrapBudget(ctx, err)
		}

		preds := scoreHoldout(fitted, holdout)
		if err := r.budget(ctx); err != nil {
			return nil, err
		}

		metrics = append(metrics, r.evaluator.Evaluate(fitted.Model.Name(), preds, len(train)))
	}

	result := &RunResult{
		Table:            table,
		Metrics:          metrics,
		DroppedAttention: attention.Dropped,
		DroppedPrices:    prices.Dropped,
		NTrain:           len(train),
		NHoldout:         len(holdout),
		Duration:         time.Since(start),
	}

	r.logger.WithFields(map[string]interface{}{
		"rows":              table.Len(),
		"train":             result.NTrain,
		"holdout":           result.NHoldout,
		"dropped_attention": result.DroppedAttention,
		"dropped_prices":    result.DroppedPrices,
		"duration":          result.Duration.String(),
	}).Info("Nowcast run completed")

	return result, nil
}

// BuildTable runs the pipeline through label assignment and returns
// the finalized table without training or evaluating. Used by the
// read-only feature snapshot surface.
func (r *Runner) BuildTable(ctx context.Context, in RunInput) (*contracts.FeatureTable, error) {
	attention := r.normalizer.NormalizeAttention(in.Attention)
	prices := r.normalizer.NormalizePrices(in.Prices)

	table, err := r.builder.Build(ctx, BuildInput{
		Prices:    prices.History,
		Attention: attention.Vectors,
		From:      in.From,
		To:        in.To,
	})
	if err != nil {
		return nil, fmt.Errorf("build feature table: %w", err)
	}

	r.labeler.Assign(table, prices.History)
	return table, nil
}

// scoreHoldout produces one PredictionRow per holdout row. The rows
// live only until the run's metrics are emitted.
func scoreHoldout(fitted *Fitted, holdout []contracts.FeatureRow) []contracts.PredictionRow {
	preds := make([]contracts.PredictionRow, len(holdout))
	for i, row := range holdout {
		preds[i] = contracts.PredictionRow{
			Date:          row.Date,
			Ticker:        row.Ticker,
			Probability:   fitted.ScoreRow(row),
			ForwardReturn: row.ForwardReturn,
			Label:         row.Label.Value,
		}
	}
	return preds
}

// budget translates an expired run budget into ErrTimeout
func (r *Runner) budget(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", contracts.ErrTimeout, r.cfg.RunTimeout)
		}
		return err
	}
	return nil
}

// wrapBudget prefers the budget error when a stage failed because the
// context expired underneath it
func (r *Runner) wrapBudget(ctx context.Context, err error) error {
	if budgetErr := r.budget(ctx); budgetErr != nil {
		return budgetErr
	}
	return err
}
