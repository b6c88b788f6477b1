// Pokemon catalog load pipeline: fetches records from the PokeAPI at a
// bounded rate, normalizes and validates them, and upserts them into
// PostgreSQL (optionally mirroring to ClickHouse for analytics).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/pokedex-pipeline/internal/config"
	"github.com/pokedex-pipeline/internal/fetch"
	"github.com/pokedex-pipeline/internal/quality"
	"github.com/pokedex-pipeline/internal/runner"
	"github.com/pokedex-pipeline/internal/store/clickhouse"
	"github.com/pokedex-pipeline/internal/store/postgres"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmsgprefix)
	log.SetOutput(os.Stdout)

	cfg := config.FromEnv()

	flag.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Source API base URL")
	flag.StringVar(&cfg.PostgresDSN, "database-url", cfg.PostgresDSN, "PostgreSQL DSN (required)")
	flag.StringVar(&cfg.ClickHouseAddr, "clickhouse-addr", cfg.ClickHouseAddr, "ClickHouse host:port for the analytics mirror (optional)")
	flag.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Max in-flight HTTP requests")
	flag.Float64Var(&cfg.RatePerSec, "rate", cfg.RatePerSec, "Global request rate limit (requests/sec)")
	flag.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Attempts per request before terminal failure")
	flag.IntVar(&cfg.TargetLimit, "limit", cfg.TargetLimit, "Number of ids to process when --ids is not given")
	flag.IntVar(&cfg.TargetOffset, "offset", cfg.TargetOffset, "Listing offset when --ids is not given")
	ids := flag.String("ids", "", "Comma-separated explicit ids to process (overrides --limit/--offset)")
	flag.IntVar(&cfg.LoadWorkers, "load-workers", cfg.LoadWorkers, "Concurrent database load workers")
	flag.IntVar(&cfg.PoolSize, "pool-size", cfg.PoolSize, "PostgreSQL connection pool size")
	flag.Float64Var(&cfg.AbortRatio, "abort-ratio", cfg.AbortRatio, "Fetch failure ratio that aborts the run (0 disables)")
	flag.DurationVar(&cfg.RunDeadline, "deadline", cfg.RunDeadline, "Overall run deadline (0 = none)")
	flag.BoolVar(&cfg.WithSpecies, "species", cfg.WithSpecies, "Enrich records with evolution chain ids via species lookups")
	flag.BoolVar(&cfg.JSONSummary, "json-summary", cfg.JSONSummary, "Print the run summary as one JSON line")
	flag.Parse()

	if cfg.PostgresDSN == "" {
		flag.Usage()
		log.Fatal("--database-url (or DATABASE_URL) is required")
	}
	if *ids != "" {
		parsed, err := parseIDList(*ids)
		if err != nil {
			log.Fatalf("--ids: %v", err)
		}
		cfg.TargetIDs = parsed
	}
	cfg.Normalize()

	ctx := context.Background()
	var cancel context.CancelFunc
	if cfg.RunDeadline > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.RunDeadline)
		defer cancel()
	}

	client := fetch.NewClient(fetch.Options{
		BaseURL:     cfg.BaseURL,
		Concurrency: cfg.Concurrency,
		RatePerSec:  cfg.RatePerSec,
		Timeout:     cfg.RequestTimeout,
		MaxAttempts: cfg.MaxAttempts,
	})

	store, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PoolSize)
	if err != nil {
		log.Fatalf("postgres connect: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}

	pipeline := &runner.Pipeline{
		Fetcher:     client,
		Loader:      store,
		Gate:        quality.NewGate(),
		Concurrency: cfg.Concurrency,
		LoadWorkers: cfg.LoadWorkers,
		AbortRatio:  cfg.AbortRatio,
		WithSpecies: cfg.WithSpecies,
	}

	if cfg.ClickHouseAddr != "" {
		mirror, err := clickhouse.Connect(ctx, cfg.ClickHouseAddr,
			config.EnvString("CLICKHOUSE_DB", "default"),
			config.EnvString("CLICKHOUSE_USER", "default"),
			config.EnvString("CLICKHOUSE_PASSWORD", ""))
		if err != nil {
			// The mirror is best-effort from the start.
			log.Printf("analytics mirror unavailable: %v", err)
		} else {
			defer mirror.Close()
			pipeline.Mirror = mirror
		}
	}

	targets := cfg.TargetIDs
	if len(targets) == 0 {
		targets, err = client.ListPokemonIDs(ctx, cfg.TargetLimit, cfg.TargetOffset)
		if err != nil {
			log.Fatalf("listing targets: %v", err)
		}
	}
	if len(targets) == 0 {
		log.Fatal("no target ids to process")
	}

	summary, runErr := pipeline.Run(ctx, targets)

	for _, f := range summary.Failures {
		log.Printf("id %d [%s]: %s", f.ID, f.Stage, f.Cause)
	}
	if cfg.JSONSummary {
		line, err := json.Marshal(summary)
		if err != nil {
			log.Fatalf("summary encode: %v", err)
		}
		os.Stdout.Write(append(line, '\n'))
	}
	if runErr != nil {
		log.Fatalf("run ended on outage: %v", runErr)
	}
}

func parseIDList(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil || id <= 0 {
			return nil, errors.New("ids must be positive integers")
		}
		out = append(out, id)
	}
	return out, nil
}
