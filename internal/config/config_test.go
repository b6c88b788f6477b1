package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("Expected default base URL, got %q", cfg.BaseURL)
	}
	if cfg.Concurrency != DefaultConcurrency || cfg.RatePerSec != DefaultRatePerSec {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
	if cfg.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("Expected %v timeout, got %v", DefaultRequestTimeout, cfg.RequestTimeout)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_CONCURRENCY", "12")
	t.Setenv("RATE_LIMIT_PER_SEC", "2.5")
	t.Setenv("ENABLE_EVOLUTION", "yes")
	t.Setenv("RUN_DEADLINE_SEC", "90")

	cfg := FromEnv()
	if cfg.Concurrency != 12 {
		t.Errorf("Expected 12, got %d", cfg.Concurrency)
	}
	if cfg.RatePerSec != 2.5 {
		t.Errorf("Expected 2.5, got %f", cfg.RatePerSec)
	}
	if !cfg.WithSpecies {
		t.Error("Expected species enrichment enabled")
	}
	if cfg.RunDeadline != 90*time.Second {
		t.Errorf("Expected 90s deadline, got %v", cfg.RunDeadline)
	}
}

func TestFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("HTTP_CONCURRENCY", "many")
	t.Setenv("FETCH_ABORT_RATIO", "oops")

	cfg := FromEnv()
	if cfg.Concurrency != DefaultConcurrency {
		t.Errorf("Expected default on bad int, got %d", cfg.Concurrency)
	}
	if cfg.AbortRatio != DefaultAbortRatio {
		t.Errorf("Expected default on bad float, got %f", cfg.AbortRatio)
	}
}

func TestNormalizeClamps(t *testing.T) {
	cfg := Config{Concurrency: -1, RatePerSec: 0, MaxAttempts: 0, LoadWorkers: 0, PoolSize: 1, AbortRatio: 2}
	cfg.Normalize()

	if cfg.Concurrency != 1 || cfg.MaxAttempts != 1 || cfg.LoadWorkers != 1 {
		t.Errorf("Clamps wrong: %+v", cfg)
	}
	if cfg.PoolSize != cfg.LoadWorkers+1 {
		t.Errorf("Expected pool size %d, got %d", cfg.LoadWorkers+1, cfg.PoolSize)
	}
	if cfg.AbortRatio != DefaultAbortRatio {
		t.Errorf("Expected abort ratio reset, got %f", cfg.AbortRatio)
	}
}
