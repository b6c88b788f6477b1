// Package quality validates normalized records against a fixed, ordered rule
// set. Rules are evaluated exhaustively so a rejection carries every violated
// rule, not just the first.
package quality

import (
	"math"

	"github.com/pokedex-pipeline/internal/model"
	"github.com/pokedex-pipeline/internal/transform"
)

// Plausible bounds for the base stat total: six stats of 1..255 each.
const (
	minBaseStatTotal = 6
	maxBaseStatTotal = 1530
)

// Rule is a named predicate over a record. Check returns true when the
// record satisfies the rule.
type Rule struct {
	Name  string
	Check func(rec *model.NormalizedRecord) bool
}

// Gate holds the ordered rule list. The zero-argument constructor returns
// the standard pipeline rule set.
type Gate struct {
	rules []Rule
}

func NewGate() *Gate {
	return &Gate{rules: []Rule{
		{Name: "id-positive", Check: func(r *model.NormalizedRecord) bool {
			return r.ID > 0
		}},
		{Name: "name-nonempty", Check: func(r *model.NormalizedRecord) bool {
			return r.Name != ""
		}},
		{Name: "required-stats-present", Check: func(r *model.NormalizedRecord) bool {
			return len(transform.MissingStats(r)) == 0
		}},
		{Name: "base-stat-total-range", Check: func(r *model.NormalizedRecord) bool {
			if r.BaseStatTotal == nil {
				return true
			}
			return *r.BaseStatTotal >= minBaseStatTotal && *r.BaseStatTotal <= maxBaseStatTotal
		}},
		{Name: "bulk-index-finite", Check: func(r *model.NormalizedRecord) bool {
			if r.BulkIndex == nil {
				return true
			}
			return *r.BulkIndex > 0 && !math.IsInf(*r.BulkIndex, 0) && !math.IsNaN(*r.BulkIndex)
		}},
	}}
}

// Rules exposes the rule names in evaluation order.
func (g *Gate) Rules() []string {
	names := make([]string, len(g.rules))
	for i, r := range g.rules {
		names[i] = r.Name
	}
	return names
}

// Validate runs every rule against the record and never mutates it. A record
// with zero violations is accepted.
func (g *Gate) Validate(rec *model.NormalizedRecord) model.ValidationOutcome {
	var violations []string
	for _, rule := range g.rules {
		if !rule.Check(rec) {
			violations = append(violations, rule.Name)
		}
	}
	return model.ValidationOutcome{
		Accepted:   len(violations) == 0,
		Violations: violations,
	}
}
