package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ErrInvalidConfig marks every configuration failure. Callers match it with
// errors.Is and refuse to start the run.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
	LedgerMemory   = "memory"

	SourceGDELT = "gdelt"
	SourceRSS   = "rss"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"LOG_FILE" default:""`

	DatabaseURL string `envconfig:"DATABASE_URL" default:""`
	DBMinConns  int32  `envconfig:"NG_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"NG_DB_MAX_CONNS" default:"8"`

	LedgerBackend  string        `envconfig:"NG_LEDGER_BACKEND" default:"postgres"`
	RedisAddr      string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB        int           `envconfig:"REDIS_DB" default:"0"`
	RedisLedgerKey string        `envconfig:"REDIS_LEDGER_KEY" default:"news-gatherer:seen"`
	SeenRetention  time.Duration `envconfig:"NG_SEEN_RETENTION" default:"168h"`

	TimeWindow          time.Duration `envconfig:"NG_TIME_WINDOW" default:"48h"`
	SimilarityThreshold float64       `envconfig:"NG_SIMILARITY_THRESHOLD" default:"0.80"`
	ShingleSize         int           `envconfig:"NG_SHINGLE_SIZE" default:"4"`
	Locale              string        `envconfig:"NG_LOCALE" default:"tr"`
	StopWords           []string      `envconfig:"NG_STOP_WORDS" default:""`
	TrackingParams      []string      `envconfig:"NG_TRACKING_PARAMS" default:""`
	WireDomains         []string      `envconfig:"NG_WIRE_DOMAINS" default:""`
	PublisherDomains    []string      `envconfig:"NG_PUBLISHER_DOMAINS" default:""`
	AggregatorDomains   []string      `envconfig:"NG_AGGREGATOR_DOMAINS" default:""`
	LexiconFile         string        `envconfig:"NG_LEXICON_FILE" default:""`
	LanguageDetector    string        `envconfig:"NG_LANGUAGE_DETECTOR" default:"lingua"`

	Source              string        `envconfig:"NG_SOURCE" default:"gdelt"`
	FeedsFile           string        `envconfig:"NG_FEEDS_FILE" default:"feeds.yaml"`
	GDELTEndpoint       string        `envconfig:"GDELT_ENDPOINT" default:"https://api.gdeltproject.org/api/v2/doc/doc"`
	GDELTTimeout        time.Duration `envconfig:"GDELT_TIMEOUT" default:"30s"`
	GDELTMaxRecords     int           `envconfig:"GDELT_MAX_RECORDS" default:"200"`
	GDELTMinInterval    time.Duration `envconfig:"GDELT_MIN_REQUEST_INTERVAL" default:"2s"`
	GDELTMaxAttempts    int           `envconfig:"GDELT_MAX_ATTEMPTS" default:"3"`
	GDELTQuery          string        `envconfig:"GDELT_QUERY" default:"sourcecountry:turkey sourcelang:turkish"`
	GDELTTimespan       string        `envconfig:"GDELT_TIMESPAN" default:"2h"`
	BackfillConcurrency int           `envconfig:"NG_BACKFILL_CONCURRENCY" default:"2"`
}

// Clustering is the validated, immutable subset consumed by the dedup engine.
type Clustering struct {
	TimeWindow          time.Duration
	SimilarityThreshold float64
	ShingleSize         int
	Locale              string
	StopWords           []string
	TrackingParams      []string
	WireDomains         []string
	PublisherDomains    []string
	AggregatorDomains   []string
	SeenRetention       time.Duration
}

// Load reads the environment, merges NG_LEXICON_FILE when set, applies
// overrides (usually from command flags) and validates the result.
func Load(overrides ...func(*Config)) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for _, override := range overrides {
		if override != nil {
			override(&cfg)
		}
	}
	if path := strings.TrimSpace(cfg.LexiconFile); path != "" {
		lexicon, err := LoadLexicon(path)
		if err != nil {
			return nil, err
		}
		lexicon.ApplyTo(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBMinConns < 0 {
		return invalid("NG_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return invalid("NG_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return invalid("NG_DB_MIN_CONNS (%d) cannot exceed NG_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	switch c.LedgerBackendName() {
	case LedgerPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return invalid("DATABASE_URL is required when NG_LEDGER_BACKEND=%s", LedgerPostgres)
		}
	case LedgerRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return invalid("REDIS_ADDR is required when NG_LEDGER_BACKEND=%s", LedgerRedis)
		}
		if strings.TrimSpace(c.RedisLedgerKey) == "" {
			return invalid("REDIS_LEDGER_KEY must not be empty")
		}
	case LedgerMemory:
	default:
		return invalid("NG_LEDGER_BACKEND must be one of %s, %s, %s", LedgerPostgres, LedgerRedis, LedgerMemory)
	}
	if c.SeenRetention <= 0 {
		return invalid("NG_SEEN_RETENTION must be > 0")
	}

	if err := c.Clustering().Validate(); err != nil {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(c.LanguageDetector)) {
	case "lingua", "whatlang", "off":
	default:
		return invalid("NG_LANGUAGE_DETECTOR must be one of lingua, whatlang, off")
	}

	switch strings.ToLower(strings.TrimSpace(c.Source)) {
	case SourceGDELT, SourceRSS:
	default:
		return invalid("NG_SOURCE must be %s or %s", SourceGDELT, SourceRSS)
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(c.GDELTEndpoint)); err != nil {
		return invalid("GDELT_ENDPOINT is not a valid URL: %v", err)
	}
	if c.GDELTTimeout <= 0 {
		return invalid("GDELT_TIMEOUT must be > 0")
	}
	if c.GDELTMaxRecords < 1 || c.GDELTMaxRecords > 250 {
		return invalid("GDELT_MAX_RECORDS must be between 1 and 250")
	}
	if c.GDELTMinInterval < 0 {
		return invalid("GDELT_MIN_REQUEST_INTERVAL must be >= 0")
	}
	if c.GDELTMaxAttempts < 1 {
		return invalid("GDELT_MAX_ATTEMPTS must be >= 1")
	}
	if c.BackfillConcurrency < 1 {
		return invalid("NG_BACKFILL_CONCURRENCY must be >= 1")
	}
	return nil
}

// LedgerBackendName is the lowercased NG_LEDGER_BACKEND value.
func (c *Config) LedgerBackendName() string {
	return strings.ToLower(strings.TrimSpace(c.LedgerBackend))
}

// Clustering resolves the dedup settings, filling empty lists with defaults.
func (c *Config) Clustering() Clustering {
	return Clustering{
		TimeWindow:          c.TimeWindow,
		SimilarityThreshold: c.SimilarityThreshold,
		ShingleSize:         c.ShingleSize,
		Locale:              strings.TrimSpace(c.Locale),
		StopWords:           cleanList(c.StopWords, DefaultStopWords),
		TrackingParams:      cleanList(c.TrackingParams, DefaultTrackingParams),
		WireDomains:         cleanList(c.WireDomains, nil),
		PublisherDomains:    cleanList(c.PublisherDomains, nil),
		AggregatorDomains:   cleanList(c.AggregatorDomains, nil),
		SeenRetention:       c.SeenRetention,
	}
}

// Validate checks the ranges the dedup engine relies on.
func (c Clustering) Validate() error {
	if c.TimeWindow <= 0 {
		return invalid("time window must be > 0, got %s", c.TimeWindow)
	}
	if c.TimeWindow > MaxTimeWindow {
		return invalid("time window must not exceed %s, got %s", MaxTimeWindow, c.TimeWindow)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return invalid("similarity threshold must be within [0,1], got %v", c.SimilarityThreshold)
	}
	if c.ShingleSize < 2 || c.ShingleSize > 10 {
		return invalid("shingle size must be between 2 and 10, got %d", c.ShingleSize)
	}
	if c.Locale == "" {
		return invalid("locale must not be empty")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func cleanList(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
