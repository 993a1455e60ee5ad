// Package alert implements edge-triggered threshold evaluation: a rule fires
// on the transition into its zone, stays silent while the condition holds,
// and re-arms once the price returns to the other side.
package alert

import (
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
)

// Evaluate decides which rules fire for the new price. previous is nil on
// the first observation, which still fires a rule whose condition already
// holds (treated as a crossing from unknown). triggered is the caller-owned
// edge-trigger memory and is the only thing mutated here.
func Evaluate(current float64, previous *float64, rules []models.AlertRule, triggered map[string]struct{}) []models.AlertRule {
	var fired []models.AlertRule
	seen := make(map[string]bool, len(rules))

	for _, rule := range rules {
		key := rule.Key()
		if seen[key] {
			// One fire per rule key per tick.
			continue
		}
		seen[key] = true

		switch rule.Type {
		case models.AlertUp:
			if current >= rule.Price {
				_, held := triggered[key]
				if !held || (previous != nil && *previous < rule.Price) {
					fired = append(fired, rule)
				}
				triggered[key] = struct{}{}
			} else {
				delete(triggered, key)
			}
		case models.AlertDown:
			if current <= rule.Price {
				_, held := triggered[key]
				if !held || (previous != nil && *previous > rule.Price) {
					fired = append(fired, rule)
				}
				triggered[key] = struct{}{}
			} else {
				delete(triggered, key)
			}
		}
	}
	return fired
}
