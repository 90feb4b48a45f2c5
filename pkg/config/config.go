package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// All environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Ingestion
	Feeds    FeedsConfig
	Prices   PricesConfig
	Universe UniverseConfig

	// Nowcast core
	Nowcast NowcastConfig

	// Scheduler
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FeedsConfig holds RSS/Reddit attention collector configuration
type FeedsConfig struct {
	URLs        []string
	RatePerSec  float64 // feed fetches per second
	Timeout     time.Duration
	DedupTTL    time.Duration // how long seen entry IDs stay deduplicated
	MaxBodySize int64
}

// PricesConfig holds market-data collector configuration
type PricesConfig struct {
	LookbackDays int     // calendar days of daily bars to fetch
	Workers      int
	RatePerSec   float64 // upstream chart API requests per second
}

// UniverseConfig holds ticker universe configuration
type UniverseConfig struct {
	CSVPath string // column "ticker"; falls back to a built-in set
}

// NowcastConfig holds the evaluation core configuration
type NowcastConfig struct {
	HorizonDays  int     // forward return horizon K in trading days
	UpThreshold  float64 // label 1 iff forward return strictly exceeds this
	HoldoutDays  int     // distinct trading days reserved for holdout
	MinTrainRows int
	Seed         int64 // ensemble bootstrap seed
	Models       []string
	Workers      int // per-ticker feature workers
	RunTimeout   time.Duration
}

// SchedulerConfig holds cron schedules for the daily pipeline.
// Expressions use the six-field form (with seconds).
type SchedulerConfig struct {
	Enabled    bool
	BuzzCron   string // attention collection
	PricesCron string // daily bar collection, after US close
	RunCron    string // nowcast run, after both collectors
	MaxRetries int
	RetryDelay time.Duration
}

// defaultFeeds lists the sources the attention collector monitors
var defaultFeeds = []string{
	"https://feeds.a.dj.com/rss/RSSMarketsMain.xml",
	"https://www.investopedia.com/feedbuilder/feed/GetFeed?feedName=news",
	"https://finance.yahoo.com/news/rssindex",
	"https://www.reddit.com/r/stocks/.rss",
	"https://www.reddit.com/r/investing/.rss",
	"https://www.reddit.com/r/wallstreetbets/.rss",
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Feeds: FeedsConfig{
			URLs:        getEnvAsList("FEED_URLS", defaultFeeds),
			RatePerSec:  getEnvAsFloat("FEED_RATE_PER_SEC", 1.0),
			Timeout:     getEnvAsDuration("FEED_TIMEOUT", "30s"),
			DedupTTL:    getEnvAsDuration("FEED_DEDUP_TTL", "72h"),
			MaxBodySize: int64(getEnvAsInt("FEED_MAX_BODY_SIZE", 4<<20)),
		},

		Prices: PricesConfig{
			LookbackDays: getEnvAsInt("PRICES_LOOKBACK_DAYS", 730),
			Workers:      getEnvAsInt("PRICES_WORKERS", 8),
			RatePerSec:   getEnvAsFloat("PRICES_RATE_PER_SEC", 5.0),
		},

		Universe: UniverseConfig{
			CSVPath: getEnv("UNIVERSE_CSV", "data/universe/sp500.csv"),
		},

		Nowcast: NowcastConfig{
			HorizonDays:  getEnvAsInt("NOWCAST_HORIZON_DAYS", 1),
			UpThreshold:  getEnvAsFloat("NOWCAST_UP_THRESHOLD", 0.0),
			HoldoutDays:  getEnvAsInt("NOWCAST_HOLDOUT_DAYS", 60),
			MinTrainRows: getEnvAsInt("NOWCAST_MIN_TRAIN_ROWS", 50),
			Seed:         int64(getEnvAsInt("NOWCAST_SEED", 42)),
			Models:       getEnvAsList("NOWCAST_MODELS", []string{"linear", "forest"}),
			Workers:      getEnvAsInt("NOWCAST_WORKERS", 4),
			RunTimeout:   getEnvAsDuration("NOWCAST_RUN_TIMEOUT", "10m"),
		},

		Scheduler: SchedulerConfig{
			Enabled:    getEnvAsBool("SCHEDULER_ENABLED", true),
			BuzzCron:   getEnv("SCHEDULER_BUZZ_CRON", "0 0 * * * *"),      // hourly
			PricesCron: getEnv("SCHEDULER_PRICES_CRON", "0 30 21 * * 1-5"), // 21:30 UTC weekdays
			RunCron:    getEnv("SCHEDULER_RUN_CRON", "0 0 22 * * 1-5"),     // 22:00 UTC weekdays
			MaxRetries: getEnvAsInt("SCHEDULER_MAX_RETRIES", 3),
			RetryDelay: getEnvAsDuration("SCHEDULER_RETRY_DELAY", "1m"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are sane
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Nowcast.HorizonDays < 1 {
		return fmt.Errorf("NOWCAST_HORIZON_DAYS must be >= 1")
	}
	if c.Nowcast.HoldoutDays < 1 {
		return fmt.Errorf("NOWCAST_HOLDOUT_DAYS must be >= 1")
	}
	if c.Nowcast.UpThreshold < 0 {
		return fmt.Errorf("NOWCAST_UP_THRESHOLD must be >= 0")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
