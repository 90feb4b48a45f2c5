package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/ejames/nowcast/internal/ingest/feeds"
	"github.com/ejames/nowcast/internal/ingest/prices"
	"github.com/ejames/nowcast/internal/nowcast"
	"github.com/ejames/nowcast/internal/store"
	"github.com/ejames/nowcast/internal/universe"
	"github.com/ejames/nowcast/pkg/config"
	"github.com/ejames/nowcast/pkg/database"
	"github.com/ejames/nowcast/pkg/httputil"
	"github.com/ejames/nowcast/pkg/logger"
	"github.com/ejames/nowcast/pkg/redis"
)

// deps bundles everything a command needs after wiring. Close releases
// the database pool and redis connection.
type deps struct {
	cfg *config.Config
	log *logger.Logger

	db    *database.DB
	redis *redis.Client
	cache *redis.Cache

	attentionRepo *store.AttentionRepository
	priceRepo     *store.PriceRepository
	metricsRepo   *store.MetricsRepository

	universes     *universe.Loader
	feedCollector *feeds.Collector
	priceFetcher  *prices.Fetcher

	service *nowcast.Service
}

// initDeps loads config, connects to postgres and redis, runs the
// schema migrations, and wires the collectors and pipeline service
func initDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.Migrate(ctx, db.Pool); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	feedClient := httputil.New(log, cfg.Feeds.Timeout).
		WithRateLimit(cfg.Feeds.RatePerSec).
		WithMaxBodySize(cfg.Feeds.MaxBodySize)
	dedup := redis.NewDedup(redisClient, "feeds", cfg.Feeds.DedupTTL)

	attentionRepo := store.NewAttentionRepository(db.Pool)
	priceRepo := store.NewPriceRepository(db.Pool)
	metricsRepo := store.NewMetricsRepository(db.Pool)

	runner := nowcast.NewRunner(cfg.Nowcast, log)

	return &deps{
		cfg:           cfg,
		log:           log,
		db:            db,
		redis:         redisClient,
		cache:         redis.NewCache(redisClient, "nowcast"),
		attentionRepo: attentionRepo,
		priceRepo:     priceRepo,
		metricsRepo:   metricsRepo,
		universes:     universe.NewLoader(log),
		feedCollector: feeds.NewCollector(feedClient, dedup, log),
		priceFetcher:  prices.NewFetcher(prices.NewYahooSource(), cfg.Prices.RatePerSec, log),
		service:       nowcast.NewService(runner, attentionRepo, priceRepo, metricsRepo, log),
	}, nil
}

// Close releases held connections
func (d *deps) Close() {
	if d.redis != nil {
		d.redis.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}
