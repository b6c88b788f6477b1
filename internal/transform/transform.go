// Package transform maps raw API payloads into the flat internal record and
// computes derived fields. Everything here is pure: no I/O, no lookups.
package transform

import (
	"strings"

	"github.com/pokedex-pipeline/internal/model"
)

// RequiredStats is the fixed, ordered component list of the base stat total.
var RequiredStats = []string{
	"hp", "attack", "defense", "special-attack", "special-defense", "speed",
}

// Normalize flattens a RawRecord. Missing identity or name is fatal for the
// record (*model.MalformedInputError); missing non-critical fields leave the
// corresponding record fields unset.
func Normalize(raw *model.RawRecord) (*model.NormalizedRecord, error) {
	if raw == nil {
		return nil, &model.MalformedInputError{Reason: "nil payload"}
	}
	if raw.ID <= 0 {
		return nil, &model.MalformedInputError{ID: raw.ID, Reason: "missing or non-positive id"}
	}
	name := NormalizeName(raw.Name)
	if name == "" {
		return nil, &model.MalformedInputError{ID: raw.ID, Reason: "empty name"}
	}

	rec := &model.NormalizedRecord{
		ID:             raw.ID,
		Name:           name,
		Height:         positive(raw.Height),
		Weight:         positive(raw.Weight),
		BaseExperience: positive(raw.BaseExperience),
	}

	for _, t := range raw.Types {
		tn := NormalizeName(t.Type.Name)
		if tn == "" {
			continue
		}
		rec.Types = append(rec.Types, model.TypeLink{Name: tn})
	}
	if len(rec.Types) == 0 {
		return nil, &model.MalformedInputError{ID: raw.ID, Reason: "no types"}
	}

	for _, a := range raw.Abilities {
		an := NormalizeName(a.Ability.Name)
		if an == "" {
			continue
		}
		rec.Abilities = append(rec.Abilities, model.AbilityLink{
			Name:     an,
			IsHidden: a.IsHidden,
			Slot:     a.Slot,
		})
	}

	for _, s := range raw.Stats {
		sn := NormalizeName(s.Stat.Name)
		if sn == "" {
			continue
		}
		rec.Stats = append(rec.Stats, model.StatLink{
			Name:      sn,
			BaseValue: s.BaseStat,
			Effort:    s.Effort,
		})
	}

	return rec, nil
}

// Enrich returns a copy with derived fields computed from the normalized
// fields already present:
//
//	height_m        = height / 10 (decimetres to metres)
//	weight_kg       = weight / 10 (hectograms to kilograms)
//	base_stat_total = sum over RequiredStats, absent unless all are present
//	bulk_index      = weight_kg / height_m^2, absent on zero/absent divisor
func Enrich(rec *model.NormalizedRecord) *model.NormalizedRecord {
	out := *rec

	if rec.Height != nil {
		m := float64(*rec.Height) / 10.0
		out.HeightM = &m
	}
	if rec.Weight != nil {
		kg := float64(*rec.Weight) / 10.0
		out.WeightKG = &kg
	}
	out.BaseStatTotal = baseStatTotal(rec.Stats)
	out.BulkIndex = bulkIndex(out.HeightM, out.WeightKG)
	return &out
}

// baseStatTotal sums the named components. Any absent component makes the
// total absent, never zero.
func baseStatTotal(stats []model.StatLink) *int {
	byName := make(map[string]int, len(stats))
	for _, s := range stats {
		byName[s.Name] = s.BaseValue
	}
	total := 0
	for _, name := range RequiredStats {
		v, ok := byName[name]
		if !ok {
			return nil
		}
		total += v
	}
	return &total
}

// bulkIndex is kg / m^2, guarded so a zero or absent divisor yields an
// absent field rather than Inf/NaN.
func bulkIndex(m, kg *float64) *float64 {
	if m == nil || kg == nil || *m <= 0 {
		return nil
	}
	idx := *kg / (*m * *m)
	return &idx
}

// NormalizeName lowercases and trims a source name.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MissingStats reports which required stat components a record lacks, in
// component order.
func MissingStats(rec *model.NormalizedRecord) []string {
	present := make(map[string]bool, len(rec.Stats))
	for _, s := range rec.Stats {
		present[s.Name] = true
	}
	var missing []string
	for _, name := range RequiredStats {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

func positive(v *int) *int {
	if v == nil || *v <= 0 {
		return nil
	}
	out := *v
	return &out
}
