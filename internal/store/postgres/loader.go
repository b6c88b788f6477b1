package postgres

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/pokedex-pipeline/internal/model"
)

// pokemonColumns is the upsert column order; id is the conflict key.
var pokemonColumns = []string{
	"id", "name", "height", "weight", "base_experience",
	"height_m", "weight_kg", "base_stat_total", "bulk_index",
	"evolution_chain_id",
}

// buildUpsertSQL renders the single-statement insert-or-update for the
// pokemon row. created_at keeps its insert-time value on conflict;
// updated_at is refreshed.
func buildUpsertSQL() string {
	cols := ""
	placeholders := ""
	for i, c := range pokemonColumns {
		if i > 0 {
			cols += ", "
			placeholders += ", "
		}
		cols += c
		placeholders += "$" + strconv.Itoa(i+1)
	}
	setClause := ""
	for _, c := range pokemonColumns {
		if c == "id" {
			continue
		}
		if setClause != "" {
			setClause += ", "
		}
		setClause += c + " = EXCLUDED." + c
	}
	return "INSERT INTO pokemon (" + cols + ") VALUES (" + placeholders + ")" +
		" ON CONFLICT (id) DO UPDATE SET " + setClause + ", updated_at = now()"
}

var upsertPokemonSQL = buildUpsertSQL()

// Load persists one accepted record: the entity row as one atomic upsert,
// dimension names as insert-if-missing, and junction rows replaced so the
// stored relations mirror the input exactly. Re-running with unchanged input
// leaves the store unchanged.
func (s *Store) Load(ctx context.Context, rec *model.NormalizedRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(rec.ID, err)
	}
	defer tx.Rollback(ctx)

	args := []interface{}{
		rec.ID, rec.Name, rec.Height, rec.Weight, rec.BaseExperience,
		rec.HeightM, rec.WeightKG, rec.BaseStatTotal, rec.BulkIndex,
		rec.EvolutionChainID,
	}
	if _, err := tx.Exec(ctx, upsertPokemonSQL, args...); err != nil {
		return classify(rec.ID, err)
	}

	if err := s.upsertDimensions(ctx, tx, rec); err != nil {
		return classify(rec.ID, err)
	}
	if err := s.replaceLinks(ctx, tx, rec); err != nil {
		return classify(rec.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(rec.ID, err)
	}
	return nil
}

// upsertDimensions inserts any new type/ability/stat names.
func (s *Store) upsertDimensions(ctx context.Context, tx pgx.Tx, rec *model.NormalizedRecord) error {
	b := &pgx.Batch{}
	n := 0
	for _, t := range rec.Types {
		b.Queue(`INSERT INTO type (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, t.Name)
		n++
	}
	for _, a := range rec.Abilities {
		b.Queue(`INSERT INTO ability (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, a.Name)
		n++
	}
	for _, st := range rec.Stats {
		b.Queue(`INSERT INTO stat (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, st.Name)
		n++
	}
	if n == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, b)
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}

// replaceLinks deletes the record's stale junction rows and inserts the
// current relations, resolving dimension ids by name.
func (s *Store) replaceLinks(ctx context.Context, tx pgx.Tx, rec *model.NormalizedRecord) error {
	for _, table := range []string{"pokemon_type", "pokemon_ability", "pokemon_stat"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE pokemon_id = $1", rec.ID); err != nil {
			return err
		}
	}

	b := &pgx.Batch{}
	n := 0
	for _, t := range rec.Types {
		b.Queue(`INSERT INTO pokemon_type (pokemon_id, type_id)
			SELECT $1, id FROM type WHERE name = $2`, rec.ID, t.Name)
		n++
	}
	for _, a := range rec.Abilities {
		b.Queue(`INSERT INTO pokemon_ability (pokemon_id, ability_id, is_hidden, slot)
			SELECT $1, id, $3, $4 FROM ability WHERE name = $2`, rec.ID, a.Name, a.IsHidden, a.Slot)
		n++
	}
	for _, st := range rec.Stats {
		b.Queue(`INSERT INTO pokemon_stat (pokemon_id, stat_id, base_value, effort)
			SELECT $1, id, $3, $4 FROM stat WHERE name = $2`, rec.ID, st.Name, st.BaseValue, st.Effort)
		n++
	}
	if n == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, b)
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	return br.Close()
}
