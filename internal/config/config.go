package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults match the public PokeAPI's documented fair-use limits.
const (
	DefaultBaseURL        = "https://pokeapi.co/api/v2"
	DefaultConcurrency    = 5
	DefaultRatePerSec     = 4.0
	DefaultRequestTimeout = 10 * time.Second
	DefaultMaxAttempts    = 3
	DefaultTargetLimit    = 20
	DefaultLoadWorkers    = 2
	DefaultPoolSize       = 4
	DefaultAbortRatio     = 0.5
)

// Config carries everything the pipeline run needs. Values come from
// environment variables with flag overrides in cmd/pokepipe.
type Config struct {
	BaseURL        string
	PostgresDSN    string
	ClickHouseAddr string

	Concurrency    int
	RatePerSec     float64
	RequestTimeout time.Duration
	MaxAttempts    int

	TargetLimit  int
	TargetOffset int
	TargetIDs    []int

	LoadWorkers int
	PoolSize    int

	AbortRatio  float64
	RunDeadline time.Duration

	WithSpecies bool
	JSONSummary bool
}

// FromEnv builds a Config from environment variables, falling back to
// defaults for anything unset.
func FromEnv() Config {
	return Config{
		BaseURL:        EnvString("API_BASE_URL", DefaultBaseURL),
		PostgresDSN:    EnvString("DATABASE_URL", ""),
		ClickHouseAddr: EnvString("CLICKHOUSE_ADDR", ""),
		Concurrency:    EnvInt("HTTP_CONCURRENCY", DefaultConcurrency),
		RatePerSec:     EnvFloat("RATE_LIMIT_PER_SEC", DefaultRatePerSec),
		RequestTimeout: time.Duration(EnvInt("REQUEST_TIMEOUT_SEC", int(DefaultRequestTimeout/time.Second))) * time.Second,
		MaxAttempts:    EnvInt("MAX_ATTEMPTS", DefaultMaxAttempts),
		TargetLimit:    EnvInt("TARGET_LIMIT", DefaultTargetLimit),
		TargetOffset:   EnvInt("TARGET_OFFSET", 0),
		LoadWorkers:    EnvInt("LOAD_WORKERS", DefaultLoadWorkers),
		PoolSize:       EnvInt("PG_POOL_SIZE", DefaultPoolSize),
		AbortRatio:     EnvFloat("FETCH_ABORT_RATIO", DefaultAbortRatio),
		RunDeadline:    time.Duration(EnvInt("RUN_DEADLINE_SEC", 0)) * time.Second,
		WithSpecies:    EnvBool("ENABLE_EVOLUTION", false),
		JSONSummary:    EnvBool("JSON_SUMMARY", false),
	}
}

// Normalize clamps nonsensical values instead of failing the run.
func (c *Config) Normalize() {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = DefaultRatePerSec
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.LoadWorkers < 1 {
		c.LoadWorkers = 1
	}
	if c.PoolSize < c.LoadWorkers+1 {
		// Load workers must not starve the read side of the pool.
		c.PoolSize = c.LoadWorkers + 1
	}
	if c.AbortRatio <= 0 || c.AbortRatio > 1 {
		c.AbortRatio = DefaultAbortRatio
	}
}

func EnvString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func EnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func EnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func EnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}
