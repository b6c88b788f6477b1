package transform

import (
	"errors"
	"math"
	"testing"

	"github.com/pokedex-pipeline/internal/model"
)

func intp(v int) *int { return &v }

func rawFixture() *model.RawRecord {
	return &model.RawRecord{
		ID:             25,
		Name:           " Pikachu ",
		Height:         intp(4),
		Weight:         intp(60),
		BaseExperience: intp(112),
		Types: []model.TypeSlot{
			{Slot: 1, Type: model.NamedRef{Name: "Electric"}},
		},
		Abilities: []model.AbilitySlot{
			{Ability: model.NamedRef{Name: "Static"}, Slot: intp(1)},
			{Ability: model.NamedRef{Name: "Lightning-Rod"}, IsHidden: true, Slot: intp(3)},
		},
		Stats: []model.StatSlot{
			{BaseStat: 35, Stat: model.NamedRef{Name: "hp"}},
			{BaseStat: 55, Stat: model.NamedRef{Name: "attack"}},
			{BaseStat: 40, Stat: model.NamedRef{Name: "defense"}},
			{BaseStat: 50, Stat: model.NamedRef{Name: "special-attack"}},
			{BaseStat: 50, Stat: model.NamedRef{Name: "special-defense"}},
			{BaseStat: 90, Stat: model.NamedRef{Name: "speed"}},
		},
	}
}

func TestNormalizeLowercasesAndTrims(t *testing.T) {
	rec, err := Normalize(rawFixture())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rec.Name != "pikachu" {
		t.Errorf("Expected pikachu, got %q", rec.Name)
	}
	if len(rec.Types) != 1 || rec.Types[0].Name != "electric" {
		t.Errorf("Expected [electric], got %v", rec.Types)
	}
	if len(rec.Abilities) != 2 || rec.Abilities[1].Name != "lightning-rod" {
		t.Errorf("Expected lowercased abilities, got %v", rec.Abilities)
	}
	if !rec.Abilities[1].IsHidden {
		t.Error("Expected second ability hidden")
	}
}

func TestNormalizeFatalCases(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(r *model.RawRecord)
	}{
		{"zero id", func(r *model.RawRecord) { r.ID = 0 }},
		{"blank name", func(r *model.RawRecord) { r.Name = "   " }},
		{"no types", func(r *model.RawRecord) { r.Types = nil }},
		{"only empty type names", func(r *model.RawRecord) {
			r.Types = []model.TypeSlot{{Type: model.NamedRef{Name: " "}}}
		}},
	}
	for _, tc := range cases {
		raw := rawFixture()
		tc.mutate(raw)
		_, err := Normalize(raw)
		var malformed *model.MalformedInputError
		if !errors.As(err, &malformed) {
			t.Errorf("%s: expected MalformedInputError, got %v", tc.name, err)
		}
	}
	if _, err := Normalize(nil); err == nil {
		t.Error("nil payload: expected error")
	}
}

func TestNormalizeDropsNonPositiveOptionals(t *testing.T) {
	raw := rawFixture()
	raw.Height = intp(0)
	raw.Weight = intp(-5)
	rec, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if rec.Height != nil || rec.Weight != nil {
		t.Errorf("Expected nil height/weight, got %v/%v", rec.Height, rec.Weight)
	}
}

func TestEnrichDerivedFields(t *testing.T) {
	rec, _ := Normalize(rawFixture())
	out := Enrich(rec)

	if out.HeightM == nil || *out.HeightM != 0.4 {
		t.Fatalf("Expected height_m 0.4, got %v", out.HeightM)
	}
	if out.WeightKG == nil || *out.WeightKG != 6.0 {
		t.Fatalf("Expected weight_kg 6.0, got %v", out.WeightKG)
	}
	if out.BaseStatTotal == nil || *out.BaseStatTotal != 320 {
		t.Fatalf("Expected base_stat_total 320, got %v", out.BaseStatTotal)
	}
	want := 6.0 / (0.4 * 0.4)
	if out.BulkIndex == nil || math.Abs(*out.BulkIndex-want) > 1e-9 {
		t.Fatalf("Expected bulk_index %.4f, got %v", want, out.BulkIndex)
	}
}

func TestEnrichDoesNotMutateInput(t *testing.T) {
	rec, _ := Normalize(rawFixture())
	Enrich(rec)
	if rec.HeightM != nil || rec.BaseStatTotal != nil {
		t.Error("Enrich mutated its input")
	}
}

func TestBaseStatTotalAbsentWhenComponentMissing(t *testing.T) {
	raw := rawFixture()
	raw.Stats = raw.Stats[:5] // drop speed
	rec, _ := Normalize(raw)
	out := Enrich(rec)
	if out.BaseStatTotal != nil {
		t.Errorf("Expected absent base_stat_total, got %d", *out.BaseStatTotal)
	}
}

func TestBulkIndexGuards(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(r *model.RawRecord)
	}{
		{"absent height", func(r *model.RawRecord) { r.Height = nil }},
		{"zero height", func(r *model.RawRecord) { r.Height = intp(0) }},
		{"absent weight", func(r *model.RawRecord) { r.Weight = nil }},
	}
	for _, tc := range cases {
		raw := rawFixture()
		tc.mutate(raw)
		rec, err := Normalize(raw)
		if err != nil {
			t.Fatalf("%s: Normalize: %v", tc.name, err)
		}
		out := Enrich(rec)
		if out.BulkIndex != nil {
			t.Errorf("%s: expected absent bulk_index, got %v", tc.name, *out.BulkIndex)
		}
	}
}

func TestMissingStatsOrder(t *testing.T) {
	raw := rawFixture()
	raw.Stats = []model.StatSlot{
		{BaseStat: 90, Stat: model.NamedRef{Name: "speed"}},
		{BaseStat: 35, Stat: model.NamedRef{Name: "hp"}},
	}
	rec, _ := Normalize(raw)
	missing := MissingStats(rec)
	want := []string{"attack", "defense", "special-attack", "special-defense"}
	if len(missing) != len(want) {
		t.Fatalf("Expected %v, got %v", want, missing)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, missing)
		}
	}
}
