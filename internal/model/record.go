package model

// NamedRef is a name/url pair as returned by the source API.
type NamedRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TypeSlot, AbilitySlot and StatSlot mirror the nested API payload.
type TypeSlot struct {
	Slot int      `json:"slot"`
	Type NamedRef `json:"type"`
}

type AbilitySlot struct {
	IsHidden bool     `json:"is_hidden"`
	Slot     *int     `json:"slot"`
	Ability  NamedRef `json:"ability"`
}

type StatSlot struct {
	BaseStat int      `json:"base_stat"`
	Effort   int      `json:"effort"`
	Stat     NamedRef `json:"stat"`
}

// RawRecord is the decoded payload for one pokemon, as fetched.
// It is discarded once normalized.
type RawRecord struct {
	ID             int           `json:"id"`
	Name           string        `json:"name"`
	Height         *int          `json:"height"`
	Weight         *int          `json:"weight"`
	BaseExperience *int          `json:"base_experience"`
	Types          []TypeSlot    `json:"types"`
	Abilities      []AbilitySlot `json:"abilities"`
	Stats          []StatSlot    `json:"stats"`
}

// TypeLink, AbilityLink and StatLink are flattened relations carried on a
// NormalizedRecord and persisted as junction rows.
type TypeLink struct {
	Name string
}

type AbilityLink struct {
	Name     string
	IsHidden bool
	Slot     *int
}

type StatLink struct {
	Name      string
	BaseValue int
	Effort    int
}

// NormalizedRecord is the flat internal representation of one pokemon.
// Derived fields are nil when their inputs are absent, never zeroed.
type NormalizedRecord struct {
	ID             int
	Name           string
	Height         *int
	Weight         *int
	BaseExperience *int

	HeightM       *float64
	WeightKG      *float64
	BaseStatTotal *int
	BulkIndex     *float64

	EvolutionChainID *int

	Types     []TypeLink
	Abilities []AbilityLink
	Stats     []StatLink
}

// ValidationOutcome tags a NormalizedRecord as accepted or rejected.
// Violations lists every failed rule name, not just the first.
type ValidationOutcome struct {
	Accepted   bool
	Violations []string
}
