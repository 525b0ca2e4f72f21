package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"regexp"
	"strconv"
	"time"
	_ "time/tzdata" // REPORT_TIMEZONE must resolve on hosts without zoneinfo

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds all service settings, populated from environment variables.
type Config struct {
	InboxDir     string
	ArchiveDir   string
	RejectDir    string
	BasinMapPath string

	StoreDriver string
	StoreDSN    string
	StoreTable  string
	BatchSize   int

	ReportLocation  *time.Location
	AmbiguityPolicy domain.AmbiguityPolicy
	HourOrdering    domain.HourOrdering
	TrendTolerance  float64

	PollInterval time.Duration

	// Record publishing is enabled when at least one broker is configured.
	KafkaBrokers   []string
	KafkaSinkTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// PublishEnabled reports whether normalized records are also sent to Kafka.
func (c *Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

// NormalizerOptions returns the domain options derived from the configuration.
func (c *Config) NormalizerOptions() domain.Options {
	return domain.Options{
		Location:        c.ReportLocation,
		AmbiguityPolicy: c.AmbiguityPolicy,
		HourOrdering:    c.HourOrdering,
		TrendTolerance:  c.TrendTolerance,
	}
}

// Load reads configuration from environment variables, applying defaults where unset.
// Variables from an optional .env file (ENV_FILE, default ".env") fill in
// anything not already set in the environment.
func Load() (*Config, error) {
	if err := loadDotEnv(sharedcfg.EnvOrDefault("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("REPORT_TIMEZONE", "Asia/Colombo"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_TIMEZONE: %w", err)
	}

	policy, err := domain.ParseAmbiguityPolicy(sharedcfg.EnvOrDefault("AMBIGUITY_POLICY", string(domain.AmbiguityFirstMatch)))
	if err != nil {
		return nil, fmt.Errorf("invalid AMBIGUITY_POLICY: %w", err)
	}

	ordering, err := domain.ParseHourOrdering(sharedcfg.EnvOrDefault("HOUR_ORDERING", string(domain.OrderClock24)))
	if err != nil {
		return nil, fmt.Errorf("invalid HOUR_ORDERING: %w", err)
	}

	tolerance, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("TREND_TOLERANCE", "0"), 64)
	if err != nil || tolerance < 0 || math.IsNaN(tolerance) || math.IsInf(tolerance, 0) {
		return nil, errors.New("invalid TREND_TOLERANCE")
	}

	pollInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("POLL_INTERVAL", "5m"))
	if err != nil || pollInterval <= 0 {
		return nil, errors.New("invalid POLL_INTERVAL")
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		InboxDir:     sharedcfg.EnvOrDefault("INBOX_DIR", "data/json"),
		ArchiveDir:   sharedcfg.EnvOrDefault("ARCHIVE_DIR", "data/archive/json"),
		RejectDir:    sharedcfg.EnvOrDefault("REJECT_DIR", "data/rejected/json"),
		BasinMapPath: sharedcfg.EnvOrDefault("BASIN_MAP_PATH", "maps/river_basins.json"),

		StoreDriver: sharedcfg.EnvOrDefault("STORE_DRIVER", "sqlite"),
		StoreDSN:    sharedcfg.EnvOrDefault("STORE_DSN", "data/flood_db.sqlite"),
		StoreTable:  sharedcfg.EnvOrDefault("STORE_TABLE", "incidents_report"),
		BatchSize:   batchSize,

		ReportLocation:  loc,
		AmbiguityPolicy: policy,
		HourOrdering:    ordering,
		TrendTolerance:  tolerance,
		PollInterval:    pollInterval,

		KafkaBrokers:   brokers,
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "normalized-gauge-readings"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	switch cfg.StoreDriver {
	case "sqlite", "postgres", "duckdb":
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: want sqlite, postgres or duckdb", cfg.StoreDriver)
	}
	if cfg.StoreDSN == "" {
		return nil, errors.New("STORE_DSN is required")
	}
	if !tableNameRe.MatchString(cfg.StoreTable) {
		return nil, fmt.Errorf("invalid STORE_TABLE %q", cfg.StoreTable)
	}
	if cfg.InboxDir == "" {
		return nil, errors.New("INBOX_DIR is required")
	}
	if cfg.PublishEnabled() && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
