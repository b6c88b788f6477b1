// Package postgres is the durable sink for normalized records: idempotent
// per-record upserts into a pokemon table plus its dimension and junction
// tables, with additive schema provisioning on first use.
package postgres

import (
	"context"
	"errors"
	"log"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pokedex-pipeline/internal/model"
)

// schemaLockKey serializes concurrent first-run provisioning across
// instances (advisory lock, transaction scoped).
const schemaLockKey = 7420011

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS pokemon (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    height INTEGER,
    weight INTEGER,
    base_experience INTEGER,
    height_m DOUBLE PRECISION,
    weight_kg DOUBLE PRECISION,
    base_stat_total INTEGER,
    bulk_index DOUBLE PRECISION,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS type (
    id SERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS ability (
    id SERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS stat (
    id SERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS pokemon_type (
    pokemon_id INTEGER NOT NULL REFERENCES pokemon(id) ON DELETE CASCADE,
    type_id INTEGER NOT NULL REFERENCES type(id) ON DELETE CASCADE,
    PRIMARY KEY (pokemon_id, type_id)
);
CREATE TABLE IF NOT EXISTS pokemon_ability (
    pokemon_id INTEGER NOT NULL REFERENCES pokemon(id) ON DELETE CASCADE,
    ability_id INTEGER NOT NULL REFERENCES ability(id) ON DELETE CASCADE,
    is_hidden BOOLEAN NOT NULL DEFAULT FALSE,
    slot INTEGER,
    PRIMARY KEY (pokemon_id, ability_id)
);
CREATE TABLE IF NOT EXISTS pokemon_stat (
    pokemon_id INTEGER NOT NULL REFERENCES pokemon(id) ON DELETE CASCADE,
    stat_id INTEGER NOT NULL REFERENCES stat(id) ON DELETE CASCADE,
    base_value INTEGER NOT NULL,
    effort INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (pokemon_id, stat_id)
);
CREATE INDEX IF NOT EXISTS idx_pokemon_name ON pokemon(name);
`

// Columns introduced after the initial schema. Additive only: provisioning
// never drops or narrows anything.
var addColumnsSQL = []string{
	`ALTER TABLE pokemon ADD COLUMN IF NOT EXISTS evolution_chain_id INTEGER`,
}

// Store wraps a pgx pool. Pool size is configured independently of the fetch
// concurrency so the load stage cannot be starved.
type Store struct {
	pool *pgxpool.Pool
}

// Connect creates the pool and verifies connectivity.
func Connect(ctx context.Context, dsn string, poolSize int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if poolSize > 0 {
		cfg.MaxConns = int32(poolSize)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema provisions missing tables and columns. It is a no-op when
// everything already exists and safe to run repeatedly; the advisory lock
// keeps concurrently starting instances from racing the first run.
func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(0, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return classify(0, err)
	}
	if _, err := tx.Exec(ctx, createTablesSQL); err != nil {
		return classify(0, err)
	}
	for _, stmt := range addColumnsSQL {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return classify(0, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(0, err)
	}
	log.Println("schema ensured (PostgreSQL)")
	return nil
}

// classify maps a pgx error to the pipeline taxonomy: a server-reported error
// is a row-level PersistenceError; anything else (broken conn, closed pool,
// expired context) means the store is unreachable and the run cannot go on.
func classify(id int, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &model.PersistenceError{ID: id, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &model.OutageError{Reason: "store operation cancelled", Err: err}
	}
	return &model.OutageError{Reason: "database connection lost", Err: err}
}
