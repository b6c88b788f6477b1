// Package clickhouse mirrors loaded records into an analytics table. The
// mirror is best-effort: failures are logged and never affect the primary
// Postgres result.
package clickhouse

import (
	"context"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/pokedex-pipeline/internal/model"
)

// ReplacingMergeTree keyed by id and versioned by updated_at keeps the
// mirror idempotent under re-runs: the newest row per id wins at merge time.
const createTableSQL = `CREATE TABLE IF NOT EXISTS pokemon_analytics (
	id Int32,
	name String,
	height Nullable(Int32),
	weight Nullable(Int32),
	base_experience Nullable(Int32),
	height_m Nullable(Float64),
	weight_kg Nullable(Float64),
	base_stat_total Nullable(Int32),
	bulk_index Nullable(Float64),
	evolution_chain_id Nullable(Int32),
	updated_at DateTime64(3)
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY id`

// Mirror holds one ClickHouse connection. It is optional; a nil *Mirror is a
// no-op sink.
type Mirror struct {
	conn driver.Conn
}

// Connect opens a connection and provisions the analytics table.
func Connect(ctx context.Context, addr, database, user, password string) (*Mirror, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.Exec(ctx, createTableSQL); err != nil {
		conn.Close()
		return nil, err
	}
	log.Println("analytics mirror ready (ClickHouse)")
	return &Mirror{conn: conn}, nil
}

func (m *Mirror) Close() {
	if m != nil && m.conn != nil {
		m.conn.Close()
	}
}

// Write appends one record version to the mirror. Errors are returned for
// logging only; callers must not fail the record on them.
func (m *Mirror) Write(ctx context.Context, rec *model.NormalizedRecord) error {
	if m == nil || m.conn == nil {
		return nil
	}
	return m.conn.Exec(ctx,
		`INSERT INTO pokemon_analytics
		 (id, name, height, weight, base_experience, height_m, weight_kg,
		  base_stat_total, bulk_index, evolution_chain_id, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		int32(rec.ID), rec.Name, intPtr32(rec.Height), intPtr32(rec.Weight),
		intPtr32(rec.BaseExperience), rec.HeightM, rec.WeightKG,
		intPtr32(rec.BaseStatTotal), rec.BulkIndex, intPtr32(rec.EvolutionChainID),
		time.Now().UTC(),
	)
}

func intPtr32(v *int) *int32 {
	if v == nil {
		return nil
	}
	out := int32(*v)
	return &out
}
