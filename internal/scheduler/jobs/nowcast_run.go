package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ejames/nowcast/internal/contracts"
	"github.com/ejames/nowcast/internal/nowcast"
	"github.com/ejames/nowcast/pkg/config"
	"github.com/ejames/nowcast/pkg/logger"
	"github.com/ejames/nowcast/pkg/redis"
)

// RunService executes a pipeline run over a date window
type RunService interface {
	RunWindow(ctx context.Context, from, to time.Time) (*nowcast.RunResult, error)
}

// Broadcaster pushes completed run metrics to live subscribers
type Broadcaster interface {
	BroadcastMetrics(metrics []contracts.RunMetrics)
}

// runWindowDays is the feature window for scheduled runs
const runWindowDays = 365

// NowcastRunJob executes the daily pipeline run after both collectors
// have finished, then invalidates the metrics cache and notifies
// websocket subscribers.
type NowcastRunJob struct {
	service     RunService
	broadcaster Broadcaster
	cache       *redis.Cache
	cfg         *config.Config
	logger      *logger.Logger
}

// NewNowcastRunJob creates the daily run job
func NewNowcastRunJob(service RunService, broadcaster Broadcaster, cache *redis.Cache, cfg *config.Config, log *logger.Logger) *NowcastRunJob {
	return &NowcastRunJob{
		service:     service,
		broadcaster: broadcaster,
		cache:       cache,
		cfg:         cfg,
		logger:      log,
	}
}

// Name returns the job name
func (j *NowcastRunJob) Name() string {
	return "nowcast_run"
}

// Schedule returns the cron expression
func (j *NowcastRunJob) Schedule() string {
	return j.cfg.Scheduler.RunCron
}

// Run executes the pipeline over the trailing feature window
func (j *NowcastRunJob) Run(ctx context.Context) error {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -runWindowDays)

	result, err := j.service.RunWindow(ctx, from, to)
	if err != nil {
		return fmt.Errorf("nowcast run: %w", err)
	}

	if err := j.cache.Delete(ctx, "metrics:latest"); err != nil {
		j.logger.WithError(err).Warn("Failed to invalidate metrics cache")
	}
	if j.broadcaster != nil {
		j.broadcaster.BroadcastMetrics(result.Metrics)
	}

	j.logger.WithFields(map[string]interface{}{
		"rows":      result.Table.Len(),
		"n_train":   result.NTrain,
		"n_holdout": result.NHoldout,
		"models":    len(result.Metrics),
		"duration":  result.Duration,
	}).Info("Scheduled nowcast run completed")

	return nil
}
