package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

// PersistedRecord is one stored row plus storage-managed timestamps.
type PersistedRecord struct {
	ID               int       `json:"id"`
	Name             string    `json:"name"`
	Height           *int      `json:"height,omitempty"`
	Weight           *int      `json:"weight,omitempty"`
	BaseExperience   *int      `json:"base_experience,omitempty"`
	HeightM          *float64  `json:"height_m,omitempty"`
	WeightKG         *float64  `json:"weight_kg,omitempty"`
	BaseStatTotal    *int      `json:"base_stat_total,omitempty"`
	BulkIndex        *float64  `json:"bulk_index,omitempty"`
	EvolutionChainID *int      `json:"evolution_chain_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

const selectColumns = `id, name, height, weight, base_experience,
	height_m, weight_kg, base_stat_total, bulk_index, evolution_chain_id,
	created_at, updated_at`

// ErrNotFound is returned by GetPokemon for an unknown id.
var ErrNotFound = errors.New("pokemon not found")

// ListParams filters, orders and paginates the persisted table. OrderBy must
// be one of the whitelisted columns; anything else falls back to id.
type ListParams struct {
	Limit            int
	Offset           int
	NameContains     string
	MinBaseStatTotal *int
	OrderBy          string
	Desc             bool
}

// orderColumns whitelists sortable columns; the order expression is built
// only from these fixed strings.
var orderColumns = map[string]string{
	"id":              "id",
	"name":            "name",
	"base_stat_total": "base_stat_total",
	"bulk_index":      "bulk_index",
	"height_m":        "height_m",
	"weight_kg":       "weight_kg",
}

// ValidOrderColumn reports whether name is a sortable column.
func ValidOrderColumn(name string) bool {
	_, ok := orderColumns[name]
	return ok
}

// GetPokemon returns a single row by id.
func (s *Store) GetPokemon(ctx context.Context, id int) (*PersistedRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM pokemon WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListPokemon returns a filtered, ordered page of rows. Read-only.
func (s *Store) ListPokemon(ctx context.Context, p ListParams) ([]*PersistedRecord, error) {
	if p.Limit <= 0 || p.Limit > 200 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	orderCol, ok := orderColumns[p.OrderBy]
	if !ok {
		orderCol = "id"
	}
	direction := "ASC"
	if p.Desc {
		direction = "DESC"
	}

	sql := `SELECT ` + selectColumns + ` FROM pokemon`
	var args []interface{}
	where := ""
	if p.NameContains != "" {
		args = append(args, "%"+p.NameContains+"%")
		where = appendCond(where, "name ILIKE $"+strconv.Itoa(len(args)))
	}
	if p.MinBaseStatTotal != nil {
		args = append(args, *p.MinBaseStatTotal)
		where = appendCond(where, "base_stat_total >= $"+strconv.Itoa(len(args)))
	}
	sql += where + " ORDER BY " + orderCol + " " + direction
	args = append(args, p.Limit)
	sql += " LIMIT $" + strconv.Itoa(len(args))
	args = append(args, p.Offset)
	sql += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PersistedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountPokemon reports the number of persisted rows.
func (s *Store) CountPokemon(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM pokemon`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*PersistedRecord, error) {
	var rec PersistedRecord
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Height, &rec.Weight, &rec.BaseExperience,
		&rec.HeightM, &rec.WeightKG, &rec.BaseStatTotal, &rec.BulkIndex,
		&rec.EvolutionChainID, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func appendCond(where, cond string) string {
	if where == "" {
		return " WHERE " + cond
	}
	return where + " AND " + cond
}
